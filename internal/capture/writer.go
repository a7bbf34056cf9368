package capture

import (
	"context"
	"errors"
	"sync"
	"time"

	"netinspect/internal/ctxkeys"
	"netinspect/internal/events"
	"netinspect/internal/logger"
	"netinspect/internal/observability"
	"netinspect/internal/storage"
	"netinspect/pkg/model"
)

// ErrWriterClosed 写入器关闭后再入队
var ErrWriterClosed = errors.New("capture writer closed")

// Publisher 事件发布
type Publisher interface {
	Publish(evt events.Event)
}

type job struct {
	tx     model.NetworkTransaction
	update bool
	flush  chan struct{}
}

// Writer 异步持久化队列。
//
// 入队从不阻塞也不丢弃；单个后台协程按入队顺序写入，
// 同一事务的 pending 记录一定先于终态记录落库。
type Writer struct {
	store   storage.Writer
	pub     Publisher
	metrics *observability.Metrics
	log     logger.Logger
	timeout time.Duration

	mu     sync.Mutex
	queue  []job
	closed bool

	signal chan struct{}
	done   chan struct{}
	exited chan struct{}
}

// WriterOption 写入器选项
type WriterOption func(*Writer)

func WithPublisher(p Publisher) WriterOption { return func(w *Writer) { w.pub = p } }

func WithMetrics(m *observability.Metrics) WriterOption { return func(w *Writer) { w.metrics = m } }

func WithLogger(l logger.Logger) WriterOption { return func(w *Writer) { w.log = l } }

// WithSaveTimeout 单次写入超时，默认 5s
func WithSaveTimeout(d time.Duration) WriterOption { return func(w *Writer) { w.timeout = d } }

// NewWriter 创建并启动写入器
func NewWriter(store storage.Writer, opts ...WriterOption) *Writer {
	w := &Writer{
		store:   store,
		log:     logger.NewNop(),
		timeout: 5 * time.Second,
		signal:  make(chan struct{}, 1),
		done:    make(chan struct{}),
		exited:  make(chan struct{}),
	}
	for _, o := range opts {
		o(w)
	}
	go w.loop()
	return w
}

// Enqueue 入队一次写入，关闭后返回 ErrWriterClosed
func (w *Writer) Enqueue(tx model.NetworkTransaction) error {
	return w.push(job{tx: tx})
}

// EnqueueUpdate 入队一次只更新的写入；记录已被删除时丢弃，不会重新插入
func (w *Writer) EnqueueUpdate(tx model.NetworkTransaction) error {
	return w.push(job{tx: tx, update: true})
}

// Flush 等待此前入队的写入全部完成
func (w *Writer) Flush(ctx context.Context) error {
	marker := make(chan struct{})
	if err := w.push(job{flush: marker}); err != nil {
		return err
	}
	select {
	case <-marker:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close 停止接收并写完剩余队列
func (w *Writer) Close(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()
	close(w.done)

	select {
	case <-w.exited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending 队列中尚未写入的数量
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

func (w *Writer) push(j job) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWriterClosed
	}
	w.queue = append(w.queue, j)
	depth := len(w.queue)
	w.mu.Unlock()

	if w.metrics != nil {
		w.metrics.QueueDepth.Set(float64(depth))
	}
	select {
	case w.signal <- struct{}{}:
	default:
	}
	return nil
}

func (w *Writer) loop() {
	defer close(w.exited)
	for {
		select {
		case <-w.signal:
			w.drain()
		case <-w.done:
			w.drain()
			return
		}
	}
}

func (w *Writer) drain() {
	for {
		w.mu.Lock()
		batch := w.queue
		w.queue = nil
		w.mu.Unlock()
		if len(batch) == 0 {
			if w.metrics != nil {
				w.metrics.QueueDepth.Set(0)
			}
			return
		}
		for _, j := range batch {
			if j.flush != nil {
				close(j.flush)
				continue
			}
			w.save(j)
		}
	}
}

func (w *Writer) save(j job) {
	tx := j.tx
	ctx, cancel := context.WithTimeout(ctxkeys.WithTraceID(context.Background(), tx.ID), w.timeout)
	defer cancel()

	var err error
	if j.update {
		err = w.store.Update(ctx, tx)
	} else {
		err = w.store.Save(ctx, tx)
	}
	if errors.Is(err, storage.ErrNotFound) {
		w.log.Debug("事务已删除，跳过更新", "id", tx.ID, "status", string(tx.Status))
		return
	}
	if err != nil {
		w.log.Err(err, "保存事务失败", "id", tx.ID, "status", string(tx.Status))
		if w.metrics != nil {
			w.metrics.StoreErrorsTotal.WithLabelValues("save").Inc()
		}
		return
	}
	if w.pub != nil {
		t := tx
		w.pub.Publish(events.Event{Kind: events.KindSaved, ID: tx.ID, Transaction: &t})
	}
}
