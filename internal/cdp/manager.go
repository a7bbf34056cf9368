package cdp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"netinspect/internal/capture"
	"netinspect/internal/logger"
	"netinspect/internal/observability"
	"netinspect/internal/rules"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/devtool"
	"github.com/mafredri/cdp/protocol/network"
	"github.com/mafredri/cdp/rpcc"
)

// ErrNoTarget 没有可附加的页面
var ErrNoTarget = errors.New("no devtools target")

// Options 监控参数
type Options struct {
	DevToolsURL   string
	TargetID      string
	Writer        *capture.Writer
	Rules         *rules.Engine
	Metrics       *observability.Metrics
	Logger        logger.Logger
	CaptureBodies bool
	BodyMaxBytes  int
}

// Monitor 通过 DevTools 协议的 Network 域被动记录浏览器流量。
// 与 Interceptor 共用同一个写入器，产生的事务格式一致。
type Monitor struct {
	opts    Options
	log     logger.Logger
	tracker *tracker

	mu     sync.Mutex
	conn   *rpcc.Conn
	client *cdp.Client
}

// New 创建监控器
func New(opts Options) *Monitor {
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.Rules == nil {
		opts.Rules = rules.New(nil)
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.NewMetrics()
	}
	if opts.BodyMaxBytes <= 0 {
		opts.BodyMaxBytes = 1 << 20
	}
	return &Monitor{
		opts:    opts,
		log:     opts.Logger,
		tracker: newTracker(opts.Writer, opts.Rules, opts.Metrics, opts.Logger),
	}
}

// Targets 列出可附加的页面
func (m *Monitor) Targets(ctx context.Context) ([]*devtool.Target, error) {
	targets, err := devtool.New(m.opts.DevToolsURL).List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list devtools targets: %w", err)
	}
	out := targets[:0]
	for _, t := range targets {
		if t.Type == devtool.Page {
			out = append(out, t)
		}
	}
	return out, nil
}

// Run 附加到目标并持续记录，直到 ctx 结束或连接断开
func (m *Monitor) Run(ctx context.Context) error {
	if m.opts.Writer == nil {
		return errors.New("cdp monitor requires a writer")
	}
	if err := m.attach(ctx); err != nil {
		return err
	}
	defer m.detach()

	client := m.client
	if err := client.Network.Enable(ctx, network.NewEnableArgs()); err != nil {
		return fmt.Errorf("enable network domain: %w", err)
	}

	willBeSent, err := client.Network.RequestWillBeSent(ctx)
	if err != nil {
		return err
	}
	defer willBeSent.Close()
	received, err := client.Network.ResponseReceived(ctx)
	if err != nil {
		return err
	}
	defer received.Close()
	finished, err := client.Network.LoadingFinished(ctx)
	if err != nil {
		return err
	}
	defer finished.Close()
	failed, err := client.Network.LoadingFailed(ctx)
	if err != nil {
		return err
	}
	defer failed.Close()

	// 保证四类事件按浏览器发出的顺序到达
	if err := cdp.Sync(willBeSent, received, finished, failed); err != nil {
		return fmt.Errorf("sync network events: %w", err)
	}
	m.log.Info("CDP 网络监控已启动", "devtools", m.opts.DevToolsURL)

	defer m.tracker.abandon(time.Now())
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-willBeSent.Ready():
			ev, err := willBeSent.Recv()
			if err != nil {
				return m.streamErr(ctx, err)
			}
			m.tracker.onRequest(ev)
		case <-received.Ready():
			ev, err := received.Recv()
			if err != nil {
				return m.streamErr(ctx, err)
			}
			m.tracker.onResponse(ev)
		case <-finished.Ready():
			ev, err := finished.Recv()
			if err != nil {
				return m.streamErr(ctx, err)
			}
			m.tracker.onFinished(ev.RequestID, ev.Timestamp, m.responseBody(ctx, ev.RequestID))
		case <-failed.Ready():
			ev, err := failed.Recv()
			if err != nil {
				return m.streamErr(ctx, err)
			}
			m.tracker.onFailed(ev)
		}
	}
}

func (m *Monitor) attach(ctx context.Context) error {
	targets, err := m.Targets(ctx)
	if err != nil {
		return err
	}
	var sel *devtool.Target
	for _, t := range targets {
		if m.opts.TargetID == "" || t.ID == m.opts.TargetID {
			sel = t
			break
		}
	}
	if sel == nil {
		return fmt.Errorf("%w: %q", ErrNoTarget, m.opts.TargetID)
	}
	conn, err := rpcc.DialContext(ctx, sel.WebSocketDebuggerURL)
	if err != nil {
		return fmt.Errorf("dial %s: %w", sel.WebSocketDebuggerURL, err)
	}

	m.mu.Lock()
	m.conn = conn
	m.client = cdp.NewClient(conn)
	m.mu.Unlock()
	m.log.Info("已附加到页面", "target", sel.ID, "url", sel.URL)
	return nil
}

func (m *Monitor) detach() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != nil {
		_ = m.conn.Close()
	}
	m.conn, m.client = nil, nil
}

// responseBody 只在需要时拉取响应体，失败返回 nil
func (m *Monitor) responseBody(ctx context.Context, id network.RequestID) []byte {
	if !m.opts.CaptureBodies || !m.tracker.has(id) {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	reply, err := m.client.Network.GetResponseBody(ctx, network.NewGetResponseBodyArgs(id))
	if err != nil {
		m.log.Debug("获取响应体失败", "requestId", string(id), "error", err.Error())
		return nil
	}
	return decodeBody(reply, m.opts.BodyMaxBytes)
}

func (m *Monitor) streamErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	m.log.Err(err, "CDP 事件流中断")
	return err
}
