package dashboard

import (
	"context"
	"fmt"
	"time"

	"netinspect/internal/analytics"
	"netinspect/internal/logger"
	"netinspect/internal/storage"
	"netinspect/pkg/model"
)

// SessionFilter 时间窗口
type SessionFilter string

const (
	FilterLastSession SessionFilter = "lastSession"
	FilterLast24Hours SessionFilter = "last24Hours"
)

// ParseFilter 解析过滤器，空字符串为 lastSession
func ParseFilter(s string) (SessionFilter, error) {
	switch SessionFilter(s) {
	case "", FilterLastSession:
		return FilterLastSession, nil
	case FilterLast24Hours:
		return FilterLast24Hours, nil
	}
	return "", fmt.Errorf("unknown session filter %q", s)
}

// Window 窗口长度
func (f SessionFilter) Window() time.Duration {
	if f == FilterLast24Hours {
		return 24 * time.Hour
	}
	return time.Hour
}

// PreferenceSource 当前偏好快照
type PreferenceSource interface {
	Preferences(ctx context.Context) ([]model.Preference, error)
}

// Snapshot 只读的仪表盘快照
type Snapshot struct {
	Filter           SessionFilter    `json:"filter"`
	GeneratedAt      int64            `json:"generatedAt"`
	WindowStart      int64            `json:"windowStart"`
	SessionStartedAt int64            `json:"sessionStartedAt"`
	StorageMode      storage.Mode     `json:"storageMode,omitempty"`
	Report           analytics.Report `json:"report"`
	// Warnings 读取失败时的降级说明，快照仍然可用
	Warnings []string `json:"warnings,omitempty"`
}

// Aggregator 按时间窗口筛选事务后交给分析引擎
type Aggregator struct {
	store   storage.Reader
	prefs   PreferenceSource
	opts    analytics.Options
	log     logger.Logger
	now     func() time.Time
	started time.Time
}

// Option 可选参数
type Option func(*Aggregator)

func WithClock(now func() time.Time) Option { return func(a *Aggregator) { a.now = now } }

func WithAnalyticsOptions(o analytics.Options) Option { return func(a *Aggregator) { a.opts = o } }

func WithLogger(l logger.Logger) Option { return func(a *Aggregator) { a.log = l } }

// NewAggregator prefs 可以为 nil
func NewAggregator(store storage.Reader, prefs PreferenceSource, opts ...Option) *Aggregator {
	a := &Aggregator{
		store: store,
		prefs: prefs,
		log:   logger.NewNop(),
		now:   time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	a.started = a.now()
	return a
}

// Snapshot 生成指定窗口的快照。偏好代表当前状态，不做时间过滤。
func (a *Aggregator) Snapshot(ctx context.Context, filter SessionFilter) Snapshot {
	now := a.now()
	since := now.Add(-filter.Window())
	snap := Snapshot{
		Filter:           filter,
		GeneratedAt:      now.UnixMilli(),
		WindowStart:      since.UnixMilli(),
		SessionStartedAt: a.started.UnixMilli(),
	}
	if m, ok := a.store.(interface{ Mode() storage.Mode }); ok {
		snap.StorageMode = m.Mode()
	}

	txs, err := a.store.FetchSince(ctx, since)
	if err != nil {
		a.log.Err(err, "读取事务失败，使用空数据", "filter", string(filter))
		snap.Warnings = append(snap.Warnings, "transactions unavailable: "+err.Error())
		txs = nil
	}
	var prefs []model.Preference
	if a.prefs != nil {
		prefs, err = a.prefs.Preferences(ctx)
		if err != nil {
			a.log.Err(err, "读取偏好失败，使用空数据")
			snap.Warnings = append(snap.Warnings, "preferences unavailable: "+err.Error())
			prefs = nil
		}
	}
	snap.Report = analytics.Analyze(txs, prefs, a.opts)
	return snap
}
