package storage

import (
	"context"
	"sync"
	"time"

	"netinspect/pkg/model"
)

var _ TransactionStore = (*MemoryStore)(nil)

// MemoryStore 进程内存储，持久化不可用时的降级方案
type MemoryStore struct {
	mu     sync.RWMutex
	items  map[string]model.NetworkTransaction
	closed bool
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]model.NetworkTransaction)}
}

func (s *MemoryStore) Mode() Mode { return ModeMemory }

func (s *MemoryStore) Save(_ context.Context, tx model.NetworkTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return newError("save", ErrContextNotAvailable, nil)
	}
	s.items[tx.ID] = tx
	return nil
}

func (s *MemoryStore) Update(_ context.Context, tx model.NetworkTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return newError("update", ErrContextNotAvailable, nil)
	}
	if _, ok := s.items[tx.ID]; !ok {
		return newError("update", ErrNotFound, nil)
	}
	s.items[tx.ID] = tx
	return nil
}

func (s *MemoryStore) Fetch(_ context.Context, id string) (model.NetworkTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.NetworkTransaction{}, newError("fetch", ErrContextNotAvailable, nil)
	}
	tx, ok := s.items[id]
	if !ok {
		return model.NetworkTransaction{}, newError("fetch", ErrNotFound, nil)
	}
	return tx, nil
}

func (s *MemoryStore) FetchAll(_ context.Context) ([]model.NetworkTransaction, error) {
	return s.filter(func(model.NetworkTransaction) bool { return true }, 0)
}

func (s *MemoryStore) FetchRecent(_ context.Context, limit int) ([]model.NetworkTransaction, error) {
	return s.filter(func(model.NetworkTransaction) bool { return true }, limit)
}

func (s *MemoryStore) FetchByMethod(_ context.Context, method model.HTTPMethod) ([]model.NetworkTransaction, error) {
	return s.filter(func(tx model.NetworkTransaction) bool { return tx.Request.Method == method }, 0)
}

func (s *MemoryStore) FetchByStatusCode(_ context.Context, code int) ([]model.NetworkTransaction, error) {
	return s.filter(func(tx model.NetworkTransaction) bool { return tx.StatusCode() == code }, 0)
}

func (s *MemoryStore) FetchSince(_ context.Context, since time.Time) ([]model.NetworkTransaction, error) {
	ms := since.UnixMilli()
	return s.filter(func(tx model.NetworkTransaction) bool { return tx.StartTime >= ms }, 0)
}

func (s *MemoryStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, newError("count", ErrContextNotAvailable, nil)
	}
	return int64(len(s.items)), nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return newError("delete", ErrContextNotAvailable, nil)
	}
	delete(s.items, id)
	return nil
}

func (s *MemoryStore) DeleteAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return newError("delete all", ErrContextNotAvailable, nil)
	}
	s.items = make(map[string]model.NetworkTransaction)
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *MemoryStore) filter(keep func(model.NetworkTransaction) bool, limit int) ([]model.NetworkTransaction, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, newError("fetch", ErrContextNotAvailable, nil)
	}
	out := make([]model.NetworkTransaction, 0, len(s.items))
	for _, tx := range s.items {
		if keep(tx) {
			out = append(out, tx)
		}
	}
	s.mu.RUnlock()

	sortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
