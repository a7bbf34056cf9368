package analytics

import (
	"testing"
	"time"

	"netinspect/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.UnixMilli(1_700_000_000_000)

// txAt status 为 0 表示网络层失败，-1 表示仍在进行中
func txAt(method model.HTTPMethod, path string, offset time.Duration, status int, dur time.Duration) model.NetworkTransaction {
	start := base.Add(offset)
	req := model.NewNetworkRequest(model.RequestParams{
		URL:    "https://api.example.com" + path,
		Method: method,
		Time:   start,
	})
	tx := model.NewNetworkTransaction(req, start)
	switch status {
	case -1:
		return tx
	case 0:
		return tx.MarkAsFailed(start.Add(dur), "offline")
	}
	resp := model.NewNetworkResponse(model.ResponseParams{StatusCode: status, ResponseTime: dur, Time: start.Add(dur)})
	return tx.WithResponse(resp, start.Add(dur))
}

func TestPercentile(t *testing.T) {
	testCases := []struct {
		name string
		xs   []float64
		p    float64
		want float64
	}{
		{"median of three", []float64{100, 200, 300}, 0.5, 200},
		{"empty", nil, 0.5, 0},
		{"single", []float64{42}, 0.99, 42},
		{"interpolated", []float64{1, 2, 3, 4}, 0.5, 2.5},
		{"unsorted input", []float64{300, 100, 200}, 0.5, 200},
		{"p95", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.95, 9.55},
		{"max", []float64{1, 5, 3}, 1, 5},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, Percentile(tc.xs, tc.p), 1e-9)
		})
	}

	xs := []float64{3, 1, 2}
	Percentile(xs, 0.5)
	assert.Equal(t, []float64{3, 1, 2}, xs, "input is not sorted in place")
}

func TestApdexScore(t *testing.T) {
	a := ApdexScore([]float64{0.5, 1.0, 1.5, 5.0}, 1.0)
	assert.Equal(t, 2, a.Satisfied)
	assert.Equal(t, 1, a.Tolerated)
	assert.Equal(t, 1, a.Frustrated)
	assert.InDelta(t, 0.625, a.Score, 1e-9)

	assert.Equal(t, 1.0, ApdexScore(nil, 1.0).Score)
	assert.Equal(t, DefaultApdexThreshold, ApdexScore(nil, 0).Threshold)
}

func TestComputeApdex_OnlySuccessful(t *testing.T) {
	txs := []model.NetworkTransaction{
		txAt(model.MethodGet, "/a", 0, 200, 500*time.Millisecond),
		txAt(model.MethodGet, "/a", 0, 500, 10*time.Second),
		txAt(model.MethodGet, "/a", 0, 0, 10*time.Second),
	}
	a := ComputeApdex(txs, 1.0)
	assert.Equal(t, 1, a.Satisfied)
	assert.Equal(t, 1.0, a.Score)
}

func TestComputeNetworkMetrics_Boundaries(t *testing.T) {
	txs := []model.NetworkTransaction{
		txAt(model.MethodGet, "/ok", 0, 200, 100*time.Millisecond),
		txAt(model.MethodGet, "/redirect", 0, 399, 200*time.Millisecond),
		txAt(model.MethodPost, "/bad", 0, 400, 300*time.Millisecond),
		txAt(model.MethodPost, "/offline", 0, 0, time.Second),
		txAt(model.MethodGet, "/inflight", 0, -1, 0),
	}
	m := ComputeNetworkMetrics(txs)

	assert.Equal(t, 5, m.TotalCalls)
	assert.Equal(t, 3, m.CompletedCalls)
	assert.Equal(t, 2, m.SuccessfulCalls, "399 is successful")
	assert.Equal(t, 1, m.ErrorCalls, "400 is an error")
	assert.Equal(t, 1, m.PendingCalls)
	assert.Equal(t, 1, m.NoResponseCalls)
	assert.InDelta(t, 66.666, m.SuccessRate, 0.01)
	assert.InDelta(t, 33.333, m.ErrorRate, 0.01)
	assert.InDelta(t, 0.2, m.AverageSpeed, 1e-9)
	assert.InDelta(t, 0.1, m.MinDuration, 1e-9)
	assert.InDelta(t, 0.3, m.MaxDuration, 1e-9)
	assert.Equal(t, 3, m.MethodDistribution[model.MethodGet])
	assert.Equal(t, 2, m.MethodDistribution[model.MethodPost])
}

func TestComputeNetworkMetrics_Empty(t *testing.T) {
	m := ComputeNetworkMetrics(nil)
	assert.Zero(t, m.TotalCalls)
	assert.Zero(t, m.SuccessRate)
	assert.Zero(t, m.ErrorRate)
	assert.Zero(t, m.AverageSpeed)
	assert.NotNil(t, m.MethodDistribution)
}

func TestRatePerformance(t *testing.T) {
	testCases := []struct {
		errorRate, apdex float64
		want             Rating
	}{
		{11, 1, RatingCritical},
		{6, 1, RatingPoor},
		{0, 0.94, RatingExcellent},
		{0, 0.90, RatingGood},
		{0, 0.70, RatingAverage},
		{0, 0.50, RatingPoor},
		{0, 0.49, RatingCritical},
		{5, 1, RatingExcellent},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, RatePerformance(tc.errorRate, tc.apdex), "errorRate=%v apdex=%v", tc.errorRate, tc.apdex)
	}
}

func TestComputeHealth(t *testing.T) {
	t.Run("no transactions is perfect", func(t *testing.T) {
		h := ComputeHealth(nil, 1000)
		assert.Equal(t, 100.0, h.Score)
		assert.Equal(t, RatingExcellent, h.Rating)
	})

	t.Run("weighted components", func(t *testing.T) {
		var txs []model.NetworkTransaction
		for i := 0; i < 9; i++ {
			txs = append(txs, txAt(model.MethodGet, "/fast", 0, 200, 50*time.Millisecond))
		}
		txs = append(txs, txAt(model.MethodGet, "/slow", 0, 503, 1500*time.Millisecond))

		h := ComputeHealth(txs, 120)
		// avg 195ms -> 90, error rate 10% -> 20, p95 ~ 848ms -> 60, 120 prefs -> 80
		assert.Equal(t, 90.0, h.Components.NetworkPerformance)
		assert.Equal(t, 20.0, h.Components.ErrorRate)
		assert.Equal(t, 60.0, h.Components.ResponseTime)
		assert.Equal(t, 80.0, h.Components.SystemResources)
		assert.InDelta(t, 90*0.4+20*0.3+60*0.2+80*0.1, h.Score, 1e-9)
		assert.Equal(t, RatingAverage, h.Rating)
	})
}

func TestRateHealth(t *testing.T) {
	assert.Equal(t, RatingExcellent, RateHealth(90))
	assert.Equal(t, RatingGood, RateHealth(75))
	assert.Equal(t, RatingAverage, RateHealth(50))
	assert.Equal(t, RatingPoor, RateHealth(25))
	assert.Equal(t, RatingCritical, RateHealth(24.9))
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "/users/{id}/profile", NormalizePath("/users/42/profile"))
	assert.Equal(t, NormalizePath("/users/42/profile"), NormalizePath("/users/17/profile"))
	assert.Equal(t, "/orders/{id}", NormalizePath("/orders/3F2504E0-4F89-11D3-9A0C-0305E82C3301"))
	assert.Equal(t, "/v2/items", NormalizePath("/v2/items?page=3"))
	assert.Equal(t, "/", NormalizePath(""))
}

func TestEndpoints(t *testing.T) {
	var txs []model.NetworkTransaction
	for i := 0; i < 3; i++ {
		txs = append(txs, txAt(model.MethodGet, "/users/"+string(rune('1'+i))+"/profile", 0, 200, 100*time.Millisecond))
	}
	txs = append(txs,
		txAt(model.MethodPost, "/users/9/profile", 0, 500, 2*time.Second),
		txAt(model.MethodGet, "/reports", 0, 200, 3*time.Second),
		txAt(model.MethodGet, "/reports", 0, 200, 1*time.Second),
	)

	top := TopEndpoints(txs, 2)
	require.Len(t, top, 2)
	assert.Equal(t, "GET /users/{id}/profile", top[0].Key())
	assert.Equal(t, 3, top[0].Count)
	assert.Equal(t, "GET /reports", top[1].Key())

	slow := SlowEndpoints(txs, SlowEndpointThreshold, 0)
	require.Len(t, slow, 2)
	assert.Equal(t, "GET /reports", slow[0].Key())
	assert.InDelta(t, 2.0, slow[0].AverageDuration, 1e-9)
	assert.InDelta(t, 2.9, slow[0].P95Duration, 1e-9)
	assert.Equal(t, "POST /users/{id}/profile", slow[1].Key())
	assert.Equal(t, 1, slow[1].ErrorCount)

	assert.Empty(t, SlowEndpoints(nil, SlowEndpointThreshold, 10))
}

func TestTimeSeries(t *testing.T) {
	t.Run("one bucket per minute", func(t *testing.T) {
		txs := []model.NetworkTransaction{
			txAt(model.MethodGet, "/", 10*time.Second, 200, time.Second),
			txAt(model.MethodGet, "/", 20*time.Second, 404, 3*time.Second),
			txAt(model.MethodGet, "/", 2*time.Minute+time.Second, 200, time.Second),
		}
		pts := TimeSeries(txs, time.Minute, 20)
		require.Len(t, pts, 3)
		assert.Equal(t, 2, pts[0].Count)
		assert.Equal(t, 1, pts[0].ErrorCount)
		assert.InDelta(t, 2.0, pts[0].AverageDuration, 1e-9)
		assert.Equal(t, 0, pts[1].Count)
		assert.Equal(t, 1, pts[2].Count)
		assert.Equal(t, pts[0].Timestamp+time.Minute.Milliseconds(), pts[1].Timestamp)
	})

	t.Run("downsampled by stride", func(t *testing.T) {
		var txs []model.NetworkTransaction
		for i := 0; i < 45; i++ {
			txs = append(txs, txAt(model.MethodGet, "/", time.Duration(i)*time.Minute, 200, time.Second))
		}
		pts := TimeSeries(txs, time.Minute, 20)
		assert.LessOrEqual(t, len(pts), 20)
		assert.Equal(t, 15, len(pts))
		assert.Equal(t, 3*time.Minute.Milliseconds(), pts[1].Timestamp-pts[0].Timestamp)
	})

	t.Run("far future start stays bounded", func(t *testing.T) {
		txs := []model.NetworkTransaction{
			txAt(model.MethodGet, "/", 0, 200, time.Second),
			txAt(model.MethodGet, "/", 50*365*24*time.Hour, 200, time.Second),
		}
		pts := TimeSeries(txs, time.Minute, 20)
		require.NotEmpty(t, pts)
		assert.LessOrEqual(t, len(pts), 20)
		assert.Equal(t, 1, pts[0].Count)
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, TimeSeries(nil, 0, 0))
	})
}

func TestHistograms(t *testing.T) {
	txs := []model.NetworkTransaction{
		txAt(model.MethodGet, "/", 0, 200, 50*time.Millisecond),
		txAt(model.MethodGet, "/", 0, 200, 300*time.Millisecond),
		txAt(model.MethodGet, "/", 0, 404, 700*time.Millisecond),
		txAt(model.MethodGet, "/", 0, 500, 2*time.Second),
		txAt(model.MethodGet, "/", 0, 0, 6*time.Second),
		txAt(model.MethodGet, "/", 0, -1, 0),
	}
	assert.Equal(t, map[int]int{200: 2, 404: 1, 500: 1}, StatusCodeHistogram(txs))
	assert.Equal(t, ResponseTimeBuckets{Under100ms: 1, Under500ms: 1, Under1s: 1, Under5s: 1, Over5s: 1}, ResponseTimeHistogram(txs))
}

func TestAnalyze_IsDeterministic(t *testing.T) {
	txs := []model.NetworkTransaction{
		txAt(model.MethodGet, "/a/1", 0, 200, 100*time.Millisecond),
		txAt(model.MethodPut, "/a/2", time.Minute, 409, 2*time.Second),
	}
	prefs := []model.Preference{
		model.NewPreference("theme", model.StringValue("dark"), model.SourceUserDefaults, "app", base),
	}
	first := Analyze(txs, prefs, Options{})
	second := Analyze(txs, prefs, Options{})
	assert.Equal(t, first, second)
	assert.Equal(t, 1, first.Preferences.Total)
	assert.Equal(t, 1, first.Preferences.ByType[model.KindString])
}
