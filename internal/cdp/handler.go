package cdp

import (
	"sync"
	"time"

	"netinspect/internal/capture"
	"netinspect/internal/logger"
	"netinspect/internal/observability"
	"netinspect/internal/rules"
	"netinspect/pkg/model"

	"github.com/mafredri/cdp/protocol/network"
)

const sourceCDP = "cdp"

// flight 进行中的请求
type flight struct {
	tx       model.NetworkTransaction
	start    time.Time
	ts       network.MonotonicTime
	decision rules.Decision
	resp     *model.ResponseParams
}

// tracker 把 Network 域事件转换为事务。
//
// requestWillBeSent 生成 pending 记录；responseReceived 暂存响应；
// loadingFinished / loadingFailed 产生终态。重定向以新的事务继续跟踪。
type tracker struct {
	mu       sync.Mutex
	inflight map[network.RequestID]*flight

	writer  *capture.Writer
	rules   *rules.Engine
	metrics *observability.Metrics
	log     logger.Logger
}

func newTracker(w *capture.Writer, e *rules.Engine, m *observability.Metrics, l logger.Logger) *tracker {
	return &tracker{
		inflight: make(map[network.RequestID]*flight),
		writer:   w,
		rules:    e,
		metrics:  m,
		log:      l,
	}
}

func (t *tracker) onRequest(ev *network.RequestWillBeSentReply) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.inflight[ev.RequestID]; ok {
		delete(t.inflight, ev.RequestID)
		if ev.RedirectResponse != nil {
			prev.resp = responseParams(prev, *ev.RedirectResponse, ev.Timestamp)
			t.complete(prev, ev.Timestamp, nil)
		} else {
			t.finish(prev, prev.tx.MarkAsFailed(prev.start.Add(elapsed(prev.ts, ev.Timestamp)), "superseded"))
		}
	}

	headers := toHeader(ev.Request.Headers)
	body := postData(ev.Request)
	decision := t.rules.Eval(rules.Ctx{
		URL:     ev.Request.URL,
		Method:  ev.Request.Method,
		Headers: headers,
		Body:    body,
	})
	if decision.Skip {
		t.metrics.SkippedTotal.Inc()
		return
	}

	start := wallTime(ev.WallTime)
	req := model.NewNetworkRequest(model.RequestParams{
		URL:     ev.Request.URL,
		Method:  model.ParseHTTPMethod(ev.Request.Method),
		Headers: decision.RedactHeaders(headers),
		Body:    decision.RedactBody(body),
		Time:    start,
	})
	f := &flight{
		tx:       model.NewNetworkTransaction(req, start),
		start:    start,
		ts:       ev.Timestamp,
		decision: decision,
	}
	t.inflight[ev.RequestID] = f
	t.metrics.InFlight.Inc()
	t.enqueue(f.tx)
}

func (t *tracker) onResponse(ev *network.ResponseReceivedReply) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.inflight[ev.RequestID]
	if !ok {
		return
	}
	f.resp = responseParams(f, ev.Response, ev.Timestamp)
}

// onFinished body 为 nil 表示未获取响应体
func (t *tracker) onFinished(id network.RequestID, ts network.MonotonicTime, body []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.inflight[id]
	if !ok {
		return
	}
	delete(t.inflight, id)
	t.complete(f, ts, body)
}

func (t *tracker) onFailed(ev *network.LoadingFailedReply) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.inflight[ev.RequestID]
	if !ok {
		return
	}
	delete(t.inflight, ev.RequestID)

	end := f.start.Add(elapsed(f.ts, ev.Timestamp))
	if ev.Canceled != nil && *ev.Canceled {
		t.finish(f, f.tx.MarkAsCancelled(end))
		return
	}
	t.finish(f, f.tx.MarkAsFailed(end, ev.ErrorText))
}

// has 是否仍在跟踪
func (t *tracker) has(id network.RequestID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.inflight[id]
	return ok
}

// abandon 连接断开时把所有未完成请求标记为取消
func (t *tracker) abandon(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, f := range t.inflight {
		delete(t.inflight, id)
		t.finish(f, f.tx.MarkAsCancelled(now))
	}
}

func (t *tracker) complete(f *flight, ts network.MonotonicTime, body []byte) {
	end := f.start.Add(elapsed(f.ts, ts))
	if f.resp == nil {
		t.finish(f, f.tx.MarkAsFailed(end, "no response"))
		return
	}
	p := *f.resp
	if len(body) > 0 {
		p.Body = f.decision.RedactBody(body)
	}
	t.finish(f, f.tx.WithResponse(model.NewNetworkResponse(p), end))
}

func (t *tracker) finish(f *flight, tx model.NetworkTransaction) {
	t.metrics.InFlight.Dec()
	t.metrics.TransactionsTotal.WithLabelValues(sourceCDP, string(tx.Status)).Inc()
	if d, ok := tx.DurationSeconds(); ok {
		t.metrics.Duration.WithLabelValues(string(tx.Request.Method)).Observe(d)
	}
	if err := t.writer.EnqueueUpdate(tx); err != nil {
		t.log.Debug("事务未入队", "id", tx.ID, "error", err.Error())
	}
}

func (t *tracker) enqueue(tx model.NetworkTransaction) {
	if err := t.writer.Enqueue(tx); err != nil {
		t.log.Debug("事务未入队", "id", tx.ID, "error", err.Error())
	}
}

func responseParams(f *flight, r network.Response, ts network.MonotonicTime) *model.ResponseParams {
	d := elapsed(f.ts, ts)
	return &model.ResponseParams{
		StatusCode:   r.Status,
		Headers:      f.decision.RedactHeaders(toHeader(r.Headers)),
		ResponseTime: d,
		Time:         f.start.Add(d),
	}
}
