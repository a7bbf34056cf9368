package analytics

import (
	"time"

	"netinspect/pkg/model"
)

const (
	DefaultBucketWidth = time.Minute
	DefaultMaxPoints   = 20
)

// TimeSeriesPoint 一个时间桶
type TimeSeriesPoint struct {
	Timestamp       int64   `json:"timestamp"`
	Count           int     `json:"count"`
	ErrorCount      int     `json:"errorCount"`
	AverageDuration float64 `json:"averageDuration"`
}

// TimeSeries 从最早到最晚开始时间按固定宽度分桶；
// 桶数超过 maxPoints 时按等步长抽样，不做平均。
func TimeSeries(txs []model.NetworkTransaction, width time.Duration, maxPoints int) []TimeSeriesPoint {
	if len(txs) == 0 {
		return []TimeSeriesPoint{}
	}
	if width <= 0 {
		width = DefaultBucketWidth
	}
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPoints
	}
	step := width.Milliseconds()
	if step <= 0 {
		step = DefaultBucketWidth.Milliseconds()
	}
	first, last := txs[0].StartTime, txs[0].StartTime
	for _, tx := range txs[1:] {
		first = min(first, tx.StartTime)
		last = max(last, tx.StartTime)
	}
	origin := first - first%step
	buckets := (last-origin)/step + 1

	// 先确定步长，只为被抽中的桶分配空间，桶数与时间跨度无关
	stride := int64(1)
	if buckets > int64(maxPoints) {
		stride = (buckets + int64(maxPoints) - 1) / int64(maxPoints)
	}
	n := (buckets + stride - 1) / stride

	points := make([]TimeSeriesPoint, n)
	durations := make([][]float64, n)
	for i := range points {
		points[i].Timestamp = origin + int64(i)*stride*step
	}
	for _, tx := range txs {
		b := (tx.StartTime - origin) / step
		if b%stride != 0 {
			continue
		}
		i := b / stride
		points[i].Count++
		if IsError(tx) {
			points[i].ErrorCount++
		}
		if d, ok := tx.DurationSeconds(); ok {
			durations[i] = append(durations[i], d)
		}
	}
	for i := range points {
		points[i].AverageDuration = mean(durations[i])
	}
	return points
}
