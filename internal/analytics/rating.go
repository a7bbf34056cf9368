package analytics

// Rating 性能/健康等级
type Rating string

const (
	RatingExcellent Rating = "excellent"
	RatingGood      Rating = "good"
	RatingAverage   Rating = "average"
	RatingPoor      Rating = "poor"
	RatingCritical  Rating = "critical"
)

// RatePerformance 错误率（百分比）优先，其次按 apdex 分档
func RatePerformance(errorRate, apdex float64) Rating {
	switch {
	case errorRate > 10:
		return RatingCritical
	case errorRate > 5:
		return RatingPoor
	case apdex >= 0.94:
		return RatingExcellent
	case apdex >= 0.85:
		return RatingGood
	case apdex >= 0.70:
		return RatingAverage
	case apdex >= 0.50:
		return RatingPoor
	default:
		return RatingCritical
	}
}

// RateHealth 健康分 0-100 分档
func RateHealth(score float64) Rating {
	switch {
	case score >= 90:
		return RatingExcellent
	case score >= 75:
		return RatingGood
	case score >= 50:
		return RatingAverage
	case score >= 25:
		return RatingPoor
	default:
		return RatingCritical
	}
}
