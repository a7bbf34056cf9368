package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"

	"netinspect/internal/capture"
	"netinspect/internal/cdp"
	"netinspect/internal/config"
	"netinspect/internal/dashboard"
	"netinspect/internal/events"
	"netinspect/internal/logger"
	"netinspect/internal/observability"
	"netinspect/internal/preferences"
	"netinspect/internal/rules"
	"netinspect/internal/storage"
	"netinspect/pkg/model"
	"netinspect/pkg/rulespec"
)

// State SDK 生命周期状态
type State string

const (
	StateNew         State = "new"
	StateInitialized State = "initialized"
	StateActive      State = "active"
	StateInactive    State = "inactive"
	StateClosed      State = "closed"
)

var (
	// ErrNotInitialized 尚未调用 Initialize 或 Activate
	ErrNotInitialized = errors.New("service not initialized")
	// ErrClosed 服务已关闭
	ErrClosed = errors.New("service closed")
)

// Query 事务列表查询条件，零值表示不过滤
type Query struct {
	Method     model.HTTPMethod
	StatusCode int
	Limit      int
}

// Service 组合根：持有存储、拦截器、分析与偏好组件。
// 状态切换在同一把锁内串行执行，查询直接委托给各组件。
type Service struct {
	mu    sync.Mutex
	state State

	cfg *config.Config
	log logger.Logger

	store       storage.TransactionStore
	writer      *capture.Writer
	interceptor *capture.Interceptor
	uninstall   func()
	rules       *rules.Engine
	hub         *events.Hub
	metrics     *observability.Metrics
	prefs       *preferences.Manager
	dashboard   *dashboard.Aggregator
}

// New 创建服务，组件在 Initialize 时才会创建
func New(cfg *config.Config, l logger.Logger) *Service {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if l == nil {
		l = logger.NewNop()
	}
	return &Service{state: StateNew, cfg: cfg, log: l}
}

// Initialize 打开存储并装配组件，重复调用无副作用
func (s *Service) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initLocked(ctx)
}

func (s *Service) initLocked(_ context.Context) error {
	switch s.state {
	case StateClosed:
		return ErrClosed
	case StateNew:
	default:
		return nil
	}

	s.metrics = observability.NewMetrics()
	s.hub = events.NewHub(s.log)
	s.store = storage.Open(storage.Options{
		Dir:    s.cfg.Storage.Dir,
		File:   s.cfg.Storage.File,
		Prefix: s.cfg.Storage.Prefix,
		Logger: s.log,
	})
	s.writer = capture.NewWriter(s.store,
		capture.WithPublisher(s.hub),
		capture.WithMetrics(s.metrics),
		capture.WithLogger(s.log),
	)
	s.rules = rules.New(s.cfg.NetworkInspection.Rules)
	s.interceptor = capture.New(capture.Options{
		Writer:        s.writer,
		Rules:         s.rules,
		Metrics:       s.metrics,
		Logger:        s.log,
		CaptureBodies: s.cfg.NetworkInspection.CaptureBodies,
		BodyMaxBytes:  s.cfg.NetworkInspection.BodyMaxBytes,
	})
	prefCfg := s.cfg.Preferences
	if prefCfg.DefaultsDir == "" {
		prefCfg.DefaultsDir = filepath.Join(s.cfg.Storage.Dir, "defaults")
	}
	s.prefs = preferences.NewManager(prefCfg, storage.NewCredentialStore(s.store), s.log)
	s.dashboard = dashboard.NewAggregator(s.store, s.prefs, dashboard.WithLogger(s.log))

	s.state = StateInitialized
	s.log.Info("服务已初始化", "storage", string(s.store.Mode()), "dir", s.cfg.Storage.Dir)
	return nil
}

// Activate 开始监控；关闭网络记录的配置下只激活偏好与仪表盘
func (s *Service) Activate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.initLocked(ctx); err != nil {
		return err
	}
	if s.state == StateActive {
		return nil
	}
	if s.cfg.NetworkInspection.EnableNetworkLogging {
		if s.uninstall == nil {
			s.uninstall = capture.Install(s.interceptor)
		}
		s.interceptor.Start()
	}
	s.state = StateActive
	s.log.Info("服务已激活", "networkLogging", s.cfg.NetworkInspection.EnableNetworkLogging)
	return nil
}

// Deactivate 停止记录，拦截器保持安装但直接透传
func (s *Service) Deactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deactivateLocked()
}

func (s *Service) deactivateLocked() {
	if s.state != StateActive {
		return
	}
	s.interceptor.Stop()
	s.state = StateInactive
	s.log.Info("服务已停用")
}

// Dismiss 关闭展示层并停用，通知订阅者
func (s *Service) Dismiss() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hub == nil {
		return
	}
	s.deactivateLocked()
	s.hub.Publish(events.Event{Kind: events.KindDismissed})
}

// Close 写完队列后释放全部资源
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed || s.state == StateNew {
		s.state = StateClosed
		return nil
	}
	s.deactivateLocked()
	if s.uninstall != nil {
		s.uninstall()
		s.uninstall = nil
	}
	var errs []error
	if err := s.writer.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("flush writer: %w", err))
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	s.hub.Close()
	s.state = StateClosed
	s.log.Info("服务已关闭")
	return errors.Join(errs...)
}

// State 当前状态
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Config 生效的配置
func (s *Service) Config() *config.Config { return s.cfg }

// ready 组件在 Initialize 之后才可用
func (s *Service) ready() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateNew:
		return ErrNotInitialized
	case StateClosed:
		return ErrClosed
	}
	return nil
}

// Transactions 按条件查询，结果按开始时间倒序
func (s *Service) Transactions(ctx context.Context, q Query) ([]model.NetworkTransaction, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var (
		txs []model.NetworkTransaction
		err error
	)
	switch {
	case q.Method != "":
		txs, err = s.store.FetchByMethod(ctx, q.Method)
	case q.StatusCode != 0:
		txs, err = s.store.FetchByStatusCode(ctx, q.StatusCode)
	case q.Limit > 0:
		return s.store.FetchRecent(ctx, q.Limit)
	default:
		return s.store.FetchAll(ctx)
	}
	if err != nil {
		return nil, err
	}
	if q.Method != "" && q.StatusCode != 0 {
		filtered := txs[:0]
		for _, tx := range txs {
			if tx.StatusCode() == q.StatusCode {
				filtered = append(filtered, tx)
			}
		}
		txs = filtered
	}
	if q.Limit > 0 && len(txs) > q.Limit {
		txs = txs[:q.Limit]
	}
	return txs, nil
}

// Transaction 按 ID 查询
func (s *Service) Transaction(ctx context.Context, id string) (model.NetworkTransaction, error) {
	if err := s.ready(); err != nil {
		return model.NetworkTransaction{}, err
	}
	return s.store.Fetch(ctx, id)
}

// DeleteTransaction 删除单条，先等待队列中的写入完成
func (s *Service) DeleteTransaction(ctx context.Context, id string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.writer.Flush(ctx); err != nil && !errors.Is(err, capture.ErrWriterClosed) {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.hub.Publish(events.Event{Kind: events.KindDeleted, ID: id})
	return nil
}

// ClearTransactions 删除全部事务
func (s *Service) ClearTransactions(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.writer.Flush(ctx); err != nil && !errors.Is(err, capture.ErrWriterClosed) {
		return err
	}
	if err := s.store.DeleteAll(ctx); err != nil {
		return err
	}
	s.hub.Publish(events.Event{Kind: events.KindCleared})
	return nil
}

// Dashboard 指定时间窗口的快照
func (s *Service) Dashboard(ctx context.Context, filter dashboard.SessionFilter) (dashboard.Snapshot, error) {
	if err := s.ready(); err != nil {
		return dashboard.Snapshot{}, err
	}
	return s.dashboard.Snapshot(ctx, filter), nil
}

// Preferences 重新扫描偏好
func (s *Service) Preferences(ctx context.Context) ([]model.Preference, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.prefs.Preferences(ctx)
}

// UpdatePreference 写回偏好来源
func (s *Service) UpdatePreference(ctx context.Context, pref model.Preference, v model.Value) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.prefs.Update(ctx, pref, v)
}

// LoadRules 替换捕获规则，对之后的请求生效
func (s *Service) LoadRules(cfg *rulespec.Config) error {
	if err := s.ready(); err != nil {
		return err
	}
	if cfg == nil {
		s.rules.Update(nil)
		return nil
	}
	s.rules.Update(cfg.Rules)
	s.log.Info("捕获规则已更新", "count", len(cfg.Rules))
	return nil
}

// Subscribe 订阅存储变化
func (s *Service) Subscribe(buffer int) (events.SubscriberID, <-chan events.Event, error) {
	if err := s.ready(); err != nil {
		return "", nil, err
	}
	id, ch := s.hub.Subscribe(buffer)
	return id, ch, nil
}

// Unsubscribe 取消订阅
func (s *Service) Unsubscribe(id events.SubscriberID) {
	if err := s.ready(); err != nil {
		return
	}
	s.hub.Unsubscribe(id)
}

// Client 经过拦截器的 HTTP 客户端，不依赖进程级安装
func (s *Service) Client() *http.Client {
	if err := s.ready(); err != nil {
		return http.DefaultClient
	}
	return s.interceptor.Client()
}

// Flush 等待捕获队列写入完成
func (s *Service) Flush(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.writer.Flush(ctx)
}

// Metrics 捕获流水线指标
func (s *Service) Metrics() *observability.Metrics {
	if err := s.ready(); err != nil {
		return nil
	}
	return s.metrics
}

// StorageMode 存储模式
func (s *Service) StorageMode() storage.Mode {
	if err := s.ready(); err != nil {
		return ""
	}
	return s.store.Mode()
}

// NewMonitor 创建写入同一存储的 CDP 网络监控
func (s *Service) NewMonitor(targetID string) (*cdp.Monitor, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return cdp.New(cdp.Options{
		DevToolsURL:   s.cfg.CDP.DevToolsURL,
		TargetID:      targetID,
		Writer:        s.writer,
		Rules:         s.rules,
		Metrics:       s.metrics,
		Logger:        s.log,
		CaptureBodies: s.cfg.NetworkInspection.CaptureBodies,
		BodyMaxBytes:  s.cfg.NetworkInspection.BodyMaxBytes,
	}), nil
}
