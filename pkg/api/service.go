package api

import (
	"context"
	"net/http"

	"netinspect/internal/cdp"
	"netinspect/internal/config"
	"netinspect/internal/dashboard"
	"netinspect/internal/events"
	"netinspect/internal/logger"
	"netinspect/internal/observability"
	"netinspect/internal/service"
	"netinspect/pkg/model"
	"netinspect/pkg/rulespec"
)

type (
	// Config SDK 配置
	Config = config.Config
	// Logger 日志接口
	Logger = logger.Logger
	// Query 事务查询条件
	Query = service.Query
	// State 生命周期状态
	State = service.State
	// SessionFilter 仪表盘时间窗口
	SessionFilter = dashboard.SessionFilter
	// Snapshot 仪表盘快照
	Snapshot = dashboard.Snapshot
	// Event 存储变化事件
	Event = events.Event
	// SubscriberID 订阅者标识
	SubscriberID = events.SubscriberID
)

const (
	FilterLastSession = dashboard.FilterLastSession
	FilterLast24Hours = dashboard.FilterLast24Hours
)

// Service 服务接口
type Service interface {
	// Initialize 打开存储并装配组件
	Initialize(ctx context.Context) error

	// Activate 开始记录网络请求
	Activate(ctx context.Context) error

	// Deactivate 停止记录，已安装的拦截器直接透传
	Deactivate()

	// Dismiss 关闭展示层
	Dismiss()

	// Close 写完队列并释放资源
	Close(ctx context.Context) error

	// State 当前状态
	State() State

	// Transactions 查询事务，按开始时间倒序
	Transactions(ctx context.Context, q Query) ([]model.NetworkTransaction, error)

	// Transaction 按 ID 查询
	Transaction(ctx context.Context, id string) (model.NetworkTransaction, error)

	// DeleteTransaction 删除单条事务
	DeleteTransaction(ctx context.Context, id string) error

	// ClearTransactions 删除全部事务
	ClearTransactions(ctx context.Context) error

	// Dashboard 仪表盘快照
	Dashboard(ctx context.Context, filter SessionFilter) (Snapshot, error)

	// Preferences 扫描偏好
	Preferences(ctx context.Context) ([]model.Preference, error)

	// UpdatePreference 写回偏好
	UpdatePreference(ctx context.Context, pref model.Preference, v model.Value) error

	// LoadRules 加载捕获规则
	LoadRules(cfg *rulespec.Config) error

	// Subscribe 订阅存储变化
	Subscribe(buffer int) (SubscriberID, <-chan Event, error)

	// Unsubscribe 取消订阅
	Unsubscribe(id SubscriberID)

	// Client 经过拦截器的 HTTP 客户端
	Client() *http.Client

	// Flush 等待已捕获的事务写入存储
	Flush(ctx context.Context) error

	// Metrics 捕获流水线指标
	Metrics() *observability.Metrics

	// NewMonitor 创建浏览器网络监控
	NewMonitor(targetID string) (*cdp.Monitor, error)
}

var _ Service = (*service.Service)(nil)

// NewService 创建并返回服务接口实现
func NewService(cfg *Config, l Logger) Service {
	return service.New(cfg, l)
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return config.NewConfig()
}

// LoadConfig 读取配置文件与环境变量
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}
