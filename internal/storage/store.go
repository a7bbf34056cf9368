package storage

import (
	"context"
	"sort"
	"time"

	"netinspect/pkg/model"
)

// Mode 存储模式
type Mode string

const (
	ModePersistent Mode = "persistent"
	ModeMemory     Mode = "memory"
)

// Reader 只读查询，所有列表按开始时间倒序返回
type Reader interface {
	Fetch(ctx context.Context, id string) (model.NetworkTransaction, error)
	FetchAll(ctx context.Context) ([]model.NetworkTransaction, error)
	FetchRecent(ctx context.Context, limit int) ([]model.NetworkTransaction, error)
	FetchByMethod(ctx context.Context, method model.HTTPMethod) ([]model.NetworkTransaction, error)
	FetchByStatusCode(ctx context.Context, code int) ([]model.NetworkTransaction, error)
	FetchSince(ctx context.Context, since time.Time) ([]model.NetworkTransaction, error)
	Count(ctx context.Context) (int64, error)
}

// Writer 写入与删除，删除不存在的 ID 不视为错误
type Writer interface {
	Save(ctx context.Context, tx model.NetworkTransaction) error
	// Update 只覆盖已存在的记录，记录不存在时返回 ErrNotFound
	Update(ctx context.Context, tx model.NetworkTransaction) error
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) error
}

// TransactionStore 事务存储
type TransactionStore interface {
	Reader
	Writer
	Mode() Mode
	Close() error
}

// sortNewestFirst 开始时间倒序，相同时间按 ID 保证稳定
func sortNewestFirst(txs []model.NetworkTransaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if txs[i].StartTime != txs[j].StartTime {
			return txs[i].StartTime > txs[j].StartTime
		}
		return txs[i].ID < txs[j].ID
	})
}
