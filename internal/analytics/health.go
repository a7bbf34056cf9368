package analytics

import "netinspect/pkg/model"

const (
	weightNetwork   = 0.40
	weightErrorRate = 0.30
	weightResponse  = 0.20
	weightResources = 0.10
)

// HealthComponents 各分项得分
type HealthComponents struct {
	NetworkPerformance float64 `json:"networkPerformance"`
	ErrorRate          float64 `json:"errorRate"`
	ResponseTime       float64 `json:"responseTime"`
	SystemResources    float64 `json:"systemResources"`
}

// HealthScore 加权健康分
type HealthScore struct {
	Score      float64          `json:"score"`
	Rating     Rating           `json:"rating"`
	Components HealthComponents `json:"components"`
}

// ComputeHealth 计算健康分。
// networkPerformance 取平均耗时，responseTime 取 p95 耗时，
// systemResources 以偏好数量近似。无事务时为满分。
func ComputeHealth(txs []model.NetworkTransaction, preferenceCount int) HealthScore {
	if len(txs) == 0 {
		return HealthScore{
			Score:  100,
			Rating: RatingExcellent,
			Components: HealthComponents{
				NetworkPerformance: 100,
				ErrorRate:          100,
				ResponseTime:       100,
				SystemResources:    100,
			},
		}
	}

	nm := ComputeNetworkMetrics(txs)
	durations := completedDurations(txs)
	c := HealthComponents{
		NetworkPerformance: responseTimeScore(mean(durations) * 1000),
		ErrorRate:          errorRateScore(nm.ErrorRate),
		ResponseTime:       responseTimeScore(Percentile(durations, 0.95) * 1000),
		SystemResources:    resourceScore(preferenceCount),
	}
	score := c.NetworkPerformance*weightNetwork +
		c.ErrorRate*weightErrorRate +
		c.ResponseTime*weightResponse +
		c.SystemResources*weightResources
	return HealthScore{Score: score, Rating: RateHealth(score), Components: c}
}

func responseTimeScore(ms float64) float64 {
	switch {
	case ms < 100:
		return 100
	case ms < 300:
		return 90
	case ms < 500:
		return 80
	case ms < 1000:
		return 60
	case ms < 2000:
		return 40
	default:
		return 20
	}
}

func errorRateScore(pct float64) float64 {
	switch {
	case pct == 0:
		return 100
	case pct < 1:
		return 95
	case pct < 3:
		return 85
	case pct < 5:
		return 70
	case pct < 10:
		return 50
	default:
		return 20
	}
}

func resourceScore(prefs int) float64 {
	switch {
	case prefs < 50:
		return 100
	case prefs < 100:
		return 90
	case prefs < 200:
		return 80
	case prefs < 500:
		return 60
	default:
		return 40
	}
}
