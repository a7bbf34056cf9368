package analytics

import (
	"regexp"
	"sort"
	"strings"

	"netinspect/pkg/model"
)

const (
	// IDPlaceholder 替换路径中的标识段
	IDPlaceholder = "{id}"
	// SlowEndpointThreshold 平均耗时超过该值（秒）视为慢接口
	SlowEndpointThreshold = 1.0
	// DefaultEndpointLimit 排行榜默认条数
	DefaultEndpointLimit = 10
)

var (
	numericSegment = regexp.MustCompile(`^\d+$`)
	uuidSegment    = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
)

// NormalizePath 数字与 UUID 段替换为 {id}，去掉查询串
func NormalizePath(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	segs := strings.Split(path, "/")
	for i, s := range segs {
		if numericSegment.MatchString(s) || uuidSegment.MatchString(s) {
			segs[i] = IDPlaceholder
		}
	}
	return strings.Join(segs, "/")
}

// EndpointStats 单个接口（方法 + 归一化路径）的统计
type EndpointStats struct {
	Method          model.HTTPMethod `json:"method"`
	Path            string           `json:"path"`
	Count           int              `json:"count"`
	ErrorCount      int              `json:"errorCount"`
	AverageDuration float64          `json:"averageDuration"`
	P95Duration     float64          `json:"p95Duration"`
}

// Key 分组键
func (e EndpointStats) Key() string { return string(e.Method) + " " + e.Path }

// GroupEndpoints 按方法与归一化路径分组，结果按 Key 排序
func GroupEndpoints(txs []model.NetworkTransaction) []EndpointStats {
	type acc struct {
		stats     EndpointStats
		durations []float64
	}
	groups := make(map[string]*acc)
	for _, tx := range txs {
		es := EndpointStats{Method: tx.Request.Method, Path: NormalizePath(tx.Request.Path)}
		g, ok := groups[es.Key()]
		if !ok {
			g = &acc{stats: es}
			groups[es.Key()] = g
		}
		g.stats.Count++
		if IsError(tx) {
			g.stats.ErrorCount++
		}
		if d, ok := tx.DurationSeconds(); ok {
			g.durations = append(g.durations, d)
		}
	}

	out := make([]EndpointStats, 0, len(groups))
	for _, g := range groups {
		g.stats.AverageDuration = mean(g.durations)
		g.stats.P95Duration = Percentile(g.durations, 0.95)
		out = append(out, g.stats)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// TopEndpoints 按请求数降序取前 limit 个
func TopEndpoints(txs []model.NetworkTransaction, limit int) []EndpointStats {
	eps := GroupEndpoints(txs)
	sort.SliceStable(eps, func(i, j int) bool { return eps[i].Count > eps[j].Count })
	return head(eps, limit)
}

// SlowEndpoints 平均耗时超过阈值的接口，按平均耗时降序取前 limit 个
func SlowEndpoints(txs []model.NetworkTransaction, threshold float64, limit int) []EndpointStats {
	var slow []EndpointStats
	for _, e := range GroupEndpoints(txs) {
		if e.AverageDuration > threshold {
			slow = append(slow, e)
		}
	}
	sort.SliceStable(slow, func(i, j int) bool { return slow[i].AverageDuration > slow[j].AverageDuration })
	return head(slow, limit)
}

func head(eps []EndpointStats, limit int) []EndpointStats {
	if limit <= 0 {
		limit = DefaultEndpointLimit
	}
	if len(eps) > limit {
		return eps[:limit]
	}
	if eps == nil {
		return []EndpointStats{}
	}
	return eps
}
