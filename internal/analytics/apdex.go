package analytics

import "netinspect/pkg/model"

// DefaultApdexThreshold 默认满意阈值（秒）
const DefaultApdexThreshold = 1.0

// Apdex 应用性能指数
type Apdex struct {
	Score      float64 `json:"score"`
	Threshold  float64 `json:"threshold"`
	Satisfied  int     `json:"satisfied"`
	Tolerated  int     `json:"tolerated"`
	Frustrated int     `json:"frustrated"`
}

// ApdexScore 基于耗时列表计算；空输入视为 1.0
func ApdexScore(durations []float64, threshold float64) Apdex {
	if threshold <= 0 {
		threshold = DefaultApdexThreshold
	}
	a := Apdex{Score: 1, Threshold: threshold}
	if len(durations) == 0 {
		return a
	}
	for _, d := range durations {
		switch {
		case d <= threshold:
			a.Satisfied++
		case d <= 4*threshold:
			a.Tolerated++
		default:
			a.Frustrated++
		}
	}
	a.Score = (float64(a.Satisfied) + float64(a.Tolerated)/2) / float64(len(durations))
	return a
}

// ComputeApdex 只统计成功且有耗时的事务
func ComputeApdex(txs []model.NetworkTransaction, threshold float64) Apdex {
	var durations []float64
	for _, tx := range txs {
		if !IsSuccessful(tx) {
			continue
		}
		if d, ok := tx.DurationSeconds(); ok {
			durations = append(durations, d)
		}
	}
	return ApdexScore(durations, threshold)
}
