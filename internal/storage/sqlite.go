package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"netinspect/internal/logger"
	"netinspect/pkg/model"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

var _ TransactionStore = (*SQLStore)(nil)

// SQLStore 基于 GORM + SQLite 的持久化存储
type SQLStore struct {
	mu sync.RWMutex
	db *gorm.DB
}

// OpenSQL 打开数据库并同步表结构
func OpenSQL(dsn, prefix string, l logger.Logger) (*SQLStore, error) {
	if l == nil {
		l = logger.NewNop()
	}
	gl := NewGormLogger(l).LogMode(gormlogger.Warn)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gl,
		NamingStrategy: schema.NamingStrategy{TablePrefix: prefix},
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	// SQLite 只允许单写者
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&TransactionRecord{}, &CredentialRecord{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Mode() Mode { return ModePersistent }

// DB 暴露底层连接，供同库的其他表使用
func (s *SQLStore) DB() *gorm.DB {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db
}

func (s *SQLStore) conn(ctx context.Context, op string) (*gorm.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, newError(op, ErrContextNotAvailable, nil)
	}
	return s.db.WithContext(ctx), nil
}

func (s *SQLStore) Save(ctx context.Context, tx model.NetworkTransaction) error {
	db, err := s.conn(ctx, "save")
	if err != nil {
		return err
	}
	rec, err := toRecord(tx)
	if err != nil {
		return newError("save", ErrSaveFailed, err)
	}
	err = db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
	if err != nil {
		return newError("save", ErrSaveFailed, err)
	}
	return nil
}

func (s *SQLStore) Update(ctx context.Context, tx model.NetworkTransaction) error {
	db, err := s.conn(ctx, "update")
	if err != nil {
		return err
	}
	rec, err := toRecord(tx)
	if err != nil {
		return newError("update", ErrSaveFailed, err)
	}
	res := db.Model(&TransactionRecord{}).Where("id = ?", rec.ID).Updates(map[string]any{
		"method":      rec.Method,
		"url":         rec.URL,
		"host":        rec.Host,
		"status_code": rec.StatusCode,
		"status":      rec.Status,
		"start_time":  rec.StartTime,
		"end_time":    rec.EndTime,
		"payload":     rec.Payload,
		"updated_at":  time.Now(),
	})
	if res.Error != nil {
		return newError("update", ErrSaveFailed, res.Error)
	}
	if res.RowsAffected == 0 {
		return newError("update", ErrNotFound, nil)
	}
	return nil
}

func (s *SQLStore) Fetch(ctx context.Context, id string) (model.NetworkTransaction, error) {
	db, err := s.conn(ctx, "fetch")
	if err != nil {
		return model.NetworkTransaction{}, err
	}
	var rec TransactionRecord
	if err := db.First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.NetworkTransaction{}, newError("fetch", ErrNotFound, nil)
		}
		return model.NetworkTransaction{}, newError("fetch", ErrFetchFailed, err)
	}
	tx, err := fromRecord(rec)
	if err != nil {
		return model.NetworkTransaction{}, newError("fetch", ErrFetchFailed, err)
	}
	return tx, nil
}

func (s *SQLStore) FetchAll(ctx context.Context) ([]model.NetworkTransaction, error) {
	return s.list(ctx, 0, nil)
}

func (s *SQLStore) FetchRecent(ctx context.Context, limit int) ([]model.NetworkTransaction, error) {
	return s.list(ctx, limit, nil)
}

func (s *SQLStore) FetchByMethod(ctx context.Context, method model.HTTPMethod) ([]model.NetworkTransaction, error) {
	return s.list(ctx, 0, func(db *gorm.DB) *gorm.DB { return db.Where("method = ?", string(method)) })
}

func (s *SQLStore) FetchByStatusCode(ctx context.Context, code int) ([]model.NetworkTransaction, error) {
	return s.list(ctx, 0, func(db *gorm.DB) *gorm.DB { return db.Where("status_code = ?", code) })
}

func (s *SQLStore) FetchSince(ctx context.Context, since time.Time) ([]model.NetworkTransaction, error) {
	return s.list(ctx, 0, func(db *gorm.DB) *gorm.DB { return db.Where("start_time >= ?", since.UnixMilli()) })
}

func (s *SQLStore) Count(ctx context.Context) (int64, error) {
	db, err := s.conn(ctx, "count")
	if err != nil {
		return 0, err
	}
	var n int64
	if err := db.Model(&TransactionRecord{}).Count(&n).Error; err != nil {
		return 0, newError("count", ErrFetchFailed, err)
	}
	return n, nil
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	db, err := s.conn(ctx, "delete")
	if err != nil {
		return err
	}
	if err := db.Delete(&TransactionRecord{}, "id = ?", id).Error; err != nil {
		return newError("delete", ErrDeleteFailed, err)
	}
	return nil
}

func (s *SQLStore) DeleteAll(ctx context.Context) error {
	db, err := s.conn(ctx, "delete all")
	if err != nil {
		return err
	}
	err = db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&TransactionRecord{}).Error
	if err != nil {
		return newError("delete all", ErrDeleteFailed, err)
	}
	return nil
}

// Close 关闭连接，之后的调用返回 ErrContextNotAvailable
func (s *SQLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	s.db = nil
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLStore) list(ctx context.Context, limit int, scope func(*gorm.DB) *gorm.DB) ([]model.NetworkTransaction, error) {
	db, err := s.conn(ctx, "fetch")
	if err != nil {
		return nil, err
	}
	q := db.Model(&TransactionRecord{}).Order("start_time DESC").Order("id ASC")
	if scope != nil {
		q = scope(q)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var recs []TransactionRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, newError("fetch", ErrFetchFailed, err)
	}
	out := make([]model.NetworkTransaction, 0, len(recs))
	for _, rec := range recs {
		tx, err := fromRecord(rec)
		if err != nil {
			return nil, newError("fetch", ErrFetchFailed, fmt.Errorf("decode %s: %w", rec.ID, err))
		}
		out = append(out, tx)
	}
	return out, nil
}
