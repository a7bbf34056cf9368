package analytics

import "netinspect/pkg/model"

// ResponseTimeBuckets 耗时分布
type ResponseTimeBuckets struct {
	Under100ms int `json:"under100ms"`
	Under500ms int `json:"under500ms"`
	Under1s    int `json:"under1s"`
	Under5s    int `json:"under5s"`
	Over5s     int `json:"over5s"`
}

// StatusCodeHistogram 状态码计数，无响应的事务不计入
func StatusCodeHistogram(txs []model.NetworkTransaction) map[int]int {
	out := make(map[int]int)
	for _, tx := range txs {
		if tx.Response != nil {
			out[tx.Response.StatusCode]++
		}
	}
	return out
}

// ResponseTimeHistogram 按 <100ms/<500ms/<1s/<5s/>=5s 分桶
func ResponseTimeHistogram(txs []model.NetworkTransaction) ResponseTimeBuckets {
	var b ResponseTimeBuckets
	for _, tx := range txs {
		d, ok := tx.DurationSeconds()
		if !ok {
			continue
		}
		switch {
		case d < 0.1:
			b.Under100ms++
		case d < 0.5:
			b.Under500ms++
		case d < 1:
			b.Under1s++
		case d < 5:
			b.Under5s++
		default:
			b.Over5s++
		}
	}
	return b
}
