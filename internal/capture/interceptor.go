package capture

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"netinspect/internal/logger"
	"netinspect/internal/observability"
	"netinspect/internal/rules"
	"netinspect/pkg/model"
	"netinspect/pkg/traffic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const sourceHTTP = "http"

// Options 拦截器参数
type Options struct {
	// Base 实际发送请求的 RoundTripper，为空时使用创建时的 http.DefaultTransport
	Base    http.RoundTripper
	Writer  *Writer
	Rules   *rules.Engine
	Metrics *observability.Metrics
	Tracer  trace.Tracer
	Logger  logger.Logger

	CaptureBodies bool
	BodyMaxBytes  int
	Now           func() time.Time
}

// Interceptor 透明记录经过的 HTTP 请求。
//
// 停止状态下直接透传；记录失败只写日志，不影响调用方拿到的响应与错误。
type Interceptor struct {
	base    http.RoundTripper
	writer  *Writer
	rules   *rules.Engine
	metrics *observability.Metrics
	tracer  trace.Tracer
	log     logger.Logger

	captureBodies bool
	maxBody       int
	now           func() time.Time

	active atomic.Bool
}

var _ http.RoundTripper = (*Interceptor)(nil)

// New 创建拦截器，初始为停止状态
func New(opts Options) *Interceptor {
	base := opts.Base
	if base == nil {
		base = http.DefaultTransport
	}
	// 已安装的拦截器不能作为自己的下游
	for {
		inner, ok := base.(*Interceptor)
		if !ok {
			break
		}
		base = inner.base
	}
	i := &Interceptor{
		base:          base,
		writer:        opts.Writer,
		rules:         opts.Rules,
		metrics:       opts.Metrics,
		tracer:        opts.Tracer,
		log:           opts.Logger,
		captureBodies: opts.CaptureBodies,
		maxBody:       opts.BodyMaxBytes,
		now:           opts.Now,
	}
	if i.rules == nil {
		i.rules = rules.New(nil)
	}
	if i.metrics == nil {
		i.metrics = observability.NewMetrics()
	}
	if i.tracer == nil {
		i.tracer = otel.Tracer("netinspect/capture")
	}
	if i.log == nil {
		i.log = logger.NewNop()
	}
	if i.maxBody <= 0 {
		i.maxBody = 1 << 20
	}
	if i.now == nil {
		i.now = time.Now
	}
	return i
}

// Start 开始记录，可重复调用
func (i *Interceptor) Start() {
	if !i.active.Swap(true) {
		i.log.Info("网络监控已开启")
	}
}

// Stop 停止记录，可重复调用
func (i *Interceptor) Stop() {
	if i.active.Swap(false) {
		i.log.Info("网络监控已停止")
	}
}

// Active 是否正在记录
func (i *Interceptor) Active() bool { return i.active.Load() }

// Client 返回经过拦截器的 http.Client
func (i *Interceptor) Client() *http.Client { return &http.Client{Transport: i} }

// RoundTrip 实现 http.RoundTripper
func (i *Interceptor) RoundTrip(req *http.Request) (*http.Response, error) {
	if !i.active.Load() || i.writer == nil {
		return i.base.RoundTrip(req)
	}

	reqBody, tee := i.requestBody(req)
	headers := traffic.FromHTTP(req.Header)
	decision := i.rules.Eval(rules.Ctx{
		URL:     req.URL.String(),
		Method:  req.Method,
		Headers: headers,
		Body:    reqBody,
	})
	if decision.Skip {
		i.metrics.SkippedTotal.Inc()
		return i.base.RoundTrip(req)
	}
	if tee != nil {
		req = cloneWithBody(req, tee)
	}

	start := i.now()
	snapshot := func(body []byte) model.NetworkRequest {
		return model.NewNetworkRequest(model.RequestParams{
			URL:     req.URL.String(),
			Method:  model.ParseHTTPMethod(req.Method),
			Headers: decision.RedactHeaders(headers),
			Body:    decision.RedactBody(body),
			Proto:   req.Proto,
			Time:    start,
		})
	}
	pending := model.NewNetworkTransaction(snapshot(reqBody), start)
	i.enqueue(pending)
	i.metrics.InFlight.Inc()
	defer i.metrics.InFlight.Dec()

	ctx, span := i.tracer.Start(req.Context(), "HTTP "+req.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", req.Method),
			attribute.String("http.url", req.URL.String()),
			attribute.String("netinspect.transaction_id", pending.ID),
		))
	defer span.End()

	resp, err := i.base.RoundTrip(req.WithContext(ctx))
	end := i.now()

	tx := pending
	if tee != nil {
		tx.Request = snapshot(tee.Bytes())
	}

	if err != nil {
		if isCancellation(req.Context(), err) {
			tx = tx.MarkAsCancelled(end)
		} else {
			tx = tx.MarkAsFailed(end, err.Error())
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		i.finish(tx)
		return resp, err
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode >= 400 {
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
	}

	respHeaders := decision.RedactHeaders(traffic.FromHTTP(resp.Header))
	respParams := model.ResponseParams{
		StatusCode:   resp.StatusCode,
		Headers:      respHeaders,
		ResponseTime: end.Sub(start),
		Time:         end,
	}
	tx = tx.WithResponse(model.NewNetworkResponse(respParams), end)
	i.finish(tx)

	if i.captureBodies && resp.Body != nil && resp.Body != http.NoBody {
		final := tx
		resp.Body = newBodyRecorder(resp.Body, i.maxBody, func(body []byte) {
			if len(body) == 0 {
				return
			}
			p := respParams
			p.Body = decision.RedactBody(body)
			i.update(final.WithResponse(model.NewNetworkResponse(p), end))
		})
	}
	return resp, nil
}

func (i *Interceptor) finish(tx model.NetworkTransaction) {
	i.metrics.TransactionsTotal.WithLabelValues(sourceHTTP, string(tx.Status)).Inc()
	if d, ok := tx.DurationSeconds(); ok {
		i.metrics.Duration.WithLabelValues(string(tx.Request.Method)).Observe(d)
	}
	i.update(tx)
}

func (i *Interceptor) enqueue(tx model.NetworkTransaction) {
	if err := i.writer.Enqueue(tx); err != nil {
		i.log.Debug("事务未入队", "id", tx.ID, "error", err.Error())
	}
}

// update pending 之后的状态只更新已有记录，期间被删除的事务不会复活
func (i *Interceptor) update(tx model.NetworkTransaction) {
	if err := i.writer.EnqueueUpdate(tx); err != nil {
		i.log.Debug("事务未入队", "id", tx.ID, "error", err.Error())
	}
}

// requestBody 优先通过 GetBody 读取副本；无法重放时返回 tee，在发送过程中截取
func (i *Interceptor) requestBody(req *http.Request) ([]byte, *limitedBuffer) {
	if !i.captureBodies || req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	if req.GetBody != nil {
		rc, err := req.GetBody()
		if err != nil {
			return nil, nil
		}
		defer rc.Close()
		buf := &limitedBuffer{max: i.maxBody}
		_, _ = io.Copy(buf, rc)
		return buf.Bytes(), nil
	}
	return nil, &limitedBuffer{max: i.maxBody}
}

func cloneWithBody(req *http.Request, tee *limitedBuffer) *http.Request {
	r := req.Clone(req.Context())
	r.Body = &teeReadCloser{Reader: io.TeeReader(req.Body, tee), c: req.Body}
	return r
}

func isCancellation(ctx context.Context, err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	return errors.Is(ctx.Err(), context.Canceled)
}

// limitedBuffer 超过上限的部分直接丢弃，写入永远成功
type limitedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	max int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.max - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, b.buf.Len())
	copy(out, b.buf.Bytes())
	return out
}

type teeReadCloser struct {
	io.Reader
	c io.Closer
}

func (t *teeReadCloser) Close() error { return t.c.Close() }

// bodyRecorder 在调用方读到 EOF 或关闭时回调一次已截取的响应体
type bodyRecorder struct {
	rc   io.ReadCloser
	buf  *limitedBuffer
	once sync.Once
	done func([]byte)
}

func newBodyRecorder(rc io.ReadCloser, max int, done func([]byte)) *bodyRecorder {
	return &bodyRecorder{rc: rc, buf: &limitedBuffer{max: max}, done: done}
}

func (b *bodyRecorder) Read(p []byte) (int, error) {
	n, err := b.rc.Read(p)
	if n > 0 {
		_, _ = b.buf.Write(p[:n])
	}
	if errors.Is(err, io.EOF) {
		b.complete()
	}
	return n, err
}

func (b *bodyRecorder) Close() error {
	err := b.rc.Close()
	b.complete()
	return err
}

func (b *bodyRecorder) complete() {
	b.once.Do(func() { b.done(b.buf.Bytes()) })
}
