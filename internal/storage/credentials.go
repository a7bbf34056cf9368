package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Credential 钥匙串等价的凭据条目
type Credential struct {
	Service   string
	Account   string
	Value     []byte
	Label     string
	UpdatedAt time.Time
}

// CredentialStore 凭据存储，List 按 service、account 排序
type CredentialStore interface {
	List(ctx context.Context) ([]Credential, error)
	Get(ctx context.Context, service, account string) (Credential, error)
	Put(ctx context.Context, c Credential) error
	Remove(ctx context.Context, service, account string) error
}

// NewCredentialStore 持久化存储可用时共用同一个库，否则使用内存实现
func NewCredentialStore(ts TransactionStore) CredentialStore {
	if s, ok := ts.(*SQLStore); ok {
		return &sqlCredentials{store: s}
	}
	return NewMemoryCredentials()
}

type sqlCredentials struct {
	store *SQLStore
}

func (c *sqlCredentials) List(ctx context.Context) ([]Credential, error) {
	db, err := c.store.conn(ctx, "list credentials")
	if err != nil {
		return nil, err
	}
	var recs []CredentialRecord
	if err := db.Order("service ASC").Order("account ASC").Find(&recs).Error; err != nil {
		return nil, newError("list credentials", ErrFetchFailed, err)
	}
	out := make([]Credential, 0, len(recs))
	for _, r := range recs {
		out = append(out, Credential(r))
	}
	return out, nil
}

func (c *sqlCredentials) Get(ctx context.Context, service, account string) (Credential, error) {
	db, err := c.store.conn(ctx, "get credential")
	if err != nil {
		return Credential{}, err
	}
	var rec CredentialRecord
	err = db.First(&rec, "service = ? AND account = ?", service, account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Credential{}, newError("get credential", ErrNotFound, nil)
	}
	if err != nil {
		return Credential{}, newError("get credential", ErrFetchFailed, err)
	}
	return Credential(rec), nil
}

func (c *sqlCredentials) Put(ctx context.Context, cred Credential) error {
	db, err := c.store.conn(ctx, "put credential")
	if err != nil {
		return err
	}
	rec := CredentialRecord(cred)
	if err := db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error; err != nil {
		return newError("put credential", ErrSaveFailed, err)
	}
	return nil
}

func (c *sqlCredentials) Remove(ctx context.Context, service, account string) error {
	db, err := c.store.conn(ctx, "remove credential")
	if err != nil {
		return err
	}
	err = db.Delete(&CredentialRecord{}, "service = ? AND account = ?", service, account).Error
	if err != nil {
		return newError("remove credential", ErrDeleteFailed, err)
	}
	return nil
}

// MemoryCredentials 内存凭据存储
type MemoryCredentials struct {
	mu    sync.RWMutex
	items map[[2]string]Credential
}

func NewMemoryCredentials() *MemoryCredentials {
	return &MemoryCredentials{items: make(map[[2]string]Credential)}
}

func (m *MemoryCredentials) List(_ context.Context) ([]Credential, error) {
	m.mu.RLock()
	out := make([]Credential, 0, len(m.items))
	for _, c := range m.items {
		out = append(out, c)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Service != out[j].Service {
			return out[i].Service < out[j].Service
		}
		return out[i].Account < out[j].Account
	})
	return out, nil
}

func (m *MemoryCredentials) Get(_ context.Context, service, account string) (Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.items[[2]string{service, account}]
	if !ok {
		return Credential{}, newError("get credential", ErrNotFound, nil)
	}
	return c, nil
}

func (m *MemoryCredentials) Put(_ context.Context, c Credential) error {
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now()
	}
	m.mu.Lock()
	m.items[[2]string{c.Service, c.Account}] = c
	m.mu.Unlock()
	return nil
}

func (m *MemoryCredentials) Remove(_ context.Context, service, account string) error {
	m.mu.Lock()
	delete(m.items, [2]string{service, account})
	m.mu.Unlock()
	return nil
}
