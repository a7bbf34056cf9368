package events

import (
	"sync"
	"time"

	"netinspect/internal/logger"
	"netinspect/pkg/model"

	"github.com/google/uuid"
)

// Kind 事件类型
type Kind string

const (
	KindSaved     Kind = "saved"
	KindDeleted   Kind = "deleted"
	KindCleared   Kind = "cleared"
	KindDismissed Kind = "dismissed"
)

// Event 存储或 SDK 状态变化
type Event struct {
	Kind        Kind                      `json:"kind"`
	ID          string                    `json:"id,omitempty"`
	Transaction *model.NetworkTransaction `json:"transaction,omitempty"`
	At          int64                     `json:"at"`
}

// SubscriberID 订阅者标识
type SubscriberID string

// Hub 事件订阅中心，发布从不阻塞，订阅者处理不过来的事件会被丢弃
type Hub struct {
	mu   sync.RWMutex
	subs map[SubscriberID]chan Event
	log  logger.Logger
}

// NewHub 创建事件中心
func NewHub(l logger.Logger) *Hub {
	if l == nil {
		l = logger.NewNop()
	}
	return &Hub{
		subs: make(map[SubscriberID]chan Event),
		log:  l,
	}
}

// Subscribe 注册订阅者，buffer 为通道容量
func (h *Hub) Subscribe(buffer int) (SubscriberID, <-chan Event) {
	if buffer <= 0 {
		buffer = 64
	}
	id := SubscriberID(uuid.NewString())
	ch := make(chan Event, buffer)

	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()
	h.log.Debug("新增事件订阅", "subscriber", string(id))
	return id, ch
}

// Unsubscribe 注销并关闭通道，重复调用无副作用
func (h *Hub) Unsubscribe(id SubscriberID) {
	h.mu.Lock()
	ch, ok := h.subs[id]
	delete(h.subs, id)
	h.mu.Unlock()
	if ok {
		close(ch)
		h.log.Debug("注销事件订阅", "subscriber", string(id))
	}
}

// Publish 广播事件
func (h *Hub) Publish(evt Event) {
	if evt.At == 0 {
		evt.At = time.Now().UnixMilli()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, ch := range h.subs {
		select {
		case ch <- evt:
		default:
			h.log.Warn("订阅者事件通道已满，丢弃事件", "subscriber", string(id), "kind", string(evt.Kind))
		}
	}
}

// Len 当前订阅者数量
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close 注销全部订阅者
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[SubscriberID]chan Event)
	h.mu.Unlock()
	for _, ch := range subs {
		close(ch)
	}
}
