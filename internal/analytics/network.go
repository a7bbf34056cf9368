package analytics

import (
	"netinspect/pkg/model"
)

// NetworkMetrics 基础网络指标。
// 成功率与错误率以已收到响应的事务为分母，TotalCalls 包含全部事务。
type NetworkMetrics struct {
	TotalCalls      int     `json:"totalCalls"`
	CompletedCalls  int     `json:"completedCalls"`
	SuccessfulCalls int     `json:"successfulCalls"`
	ErrorCalls      int     `json:"errorCalls"`
	PendingCalls    int     `json:"pendingCalls"`
	NoResponseCalls int     `json:"noResponseCalls"`
	SuccessRate     float64 `json:"successRate"`
	ErrorRate       float64 `json:"errorRate"`

	AverageSpeed float64 `json:"averageSpeed"`
	MinDuration  float64 `json:"minDuration"`
	MaxDuration  float64 `json:"maxDuration"`
	P50Duration  float64 `json:"p50Duration"`
	P90Duration  float64 `json:"p90Duration"`
	P95Duration  float64 `json:"p95Duration"`
	P99Duration  float64 `json:"p99Duration"`

	BytesSent     int64 `json:"bytesSent"`
	BytesReceived int64 `json:"bytesReceived"`

	MethodDistribution map[model.HTTPMethod]int `json:"methodDistribution"`
}

// IsSuccessful 有响应且状态码在 [200,400)
func IsSuccessful(tx model.NetworkTransaction) bool {
	return tx.Response != nil && model.IsSuccessCode(tx.Response.StatusCode)
}

// IsError 有响应且状态码 >= 400
func IsError(tx model.NetworkTransaction) bool {
	return tx.Response != nil && model.IsErrorCode(tx.Response.StatusCode)
}

// ComputeNetworkMetrics 计算基础指标
func ComputeNetworkMetrics(txs []model.NetworkTransaction) NetworkMetrics {
	m := NetworkMetrics{
		TotalCalls:         len(txs),
		MethodDistribution: make(map[model.HTTPMethod]int),
	}
	var durations []float64
	for _, tx := range txs {
		m.MethodDistribution[tx.Request.Method]++
		m.BytesSent += tx.Request.BodySize
		if tx.Status == model.StatusPending {
			m.PendingCalls++
		}
		if tx.Response == nil {
			if tx.Status != model.StatusPending {
				m.NoResponseCalls++
			}
			continue
		}
		m.CompletedCalls++
		m.BytesReceived += tx.Response.BodySize
		switch {
		case IsSuccessful(tx):
			m.SuccessfulCalls++
		case IsError(tx):
			m.ErrorCalls++
		}
		if d, ok := tx.DurationSeconds(); ok {
			durations = append(durations, d)
		}
	}

	m.SuccessRate = ratio(m.SuccessfulCalls, m.CompletedCalls)
	m.ErrorRate = ratio(m.ErrorCalls, m.CompletedCalls)
	if len(durations) > 0 {
		m.AverageSpeed = mean(durations)
		m.MinDuration, m.MaxDuration = durations[0], durations[0]
		for _, d := range durations[1:] {
			m.MinDuration = min(m.MinDuration, d)
			m.MaxDuration = max(m.MaxDuration, d)
		}
		m.P50Duration = Percentile(durations, 0.50)
		m.P90Duration = Percentile(durations, 0.90)
		m.P95Duration = Percentile(durations, 0.95)
		m.P99Duration = Percentile(durations, 0.99)
	}
	return m
}

// completedDurations 已收到响应且有耗时的事务耗时
func completedDurations(txs []model.NetworkTransaction) []float64 {
	var out []float64
	for _, tx := range txs {
		if tx.Response == nil {
			continue
		}
		if d, ok := tx.DurationSeconds(); ok {
			out = append(out, d)
		}
	}
	return out
}
