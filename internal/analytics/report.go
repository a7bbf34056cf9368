package analytics

import (
	"time"

	"netinspect/pkg/model"
)

// Options 报告参数，零值使用默认配置
type Options struct {
	ApdexThreshold float64
	EndpointLimit  int
	BucketWidth    time.Duration
	MaxPoints      int
}

// Report 一次完整分析的结果
type Report struct {
	Network       NetworkMetrics      `json:"network"`
	Apdex         Apdex               `json:"apdex"`
	Performance   Rating              `json:"performance"`
	Health        HealthScore         `json:"health"`
	TopEndpoints  []EndpointStats     `json:"topEndpoints"`
	SlowEndpoints []EndpointStats     `json:"slowEndpoints"`
	TimeSeries    []TimeSeriesPoint   `json:"timeSeries"`
	StatusCodes   map[int]int         `json:"statusCodes"`
	ResponseTime  ResponseTimeBuckets `json:"responseTime"`
	Preferences   PreferenceMetrics   `json:"preferences"`
}

// Analyze 对快照计算全部指标，输入切片不会被修改
func Analyze(txs []model.NetworkTransaction, prefs []model.Preference, opts Options) Report {
	nm := ComputeNetworkMetrics(txs)
	apdex := ComputeApdex(txs, opts.ApdexThreshold)
	return Report{
		Network:       nm,
		Apdex:         apdex,
		Performance:   RatePerformance(nm.ErrorRate, apdex.Score),
		Health:        ComputeHealth(txs, len(prefs)),
		TopEndpoints:  TopEndpoints(txs, opts.EndpointLimit),
		SlowEndpoints: SlowEndpoints(txs, SlowEndpointThreshold, opts.EndpointLimit),
		TimeSeries:    TimeSeries(txs, opts.BucketWidth, opts.MaxPoints),
		StatusCodes:   StatusCodeHistogram(txs),
		ResponseTime:  ResponseTimeHistogram(txs),
		Preferences:   ComputePreferenceMetrics(prefs),
	}
}
