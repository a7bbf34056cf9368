package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"netinspect/internal/logger"
)

// SchemaVersion 当前库结构版本，变更表结构时递增
const SchemaVersion = 3

// sideFileSuffixes SQLite 的辅助文件
var sideFileSuffixes = []string{"-wal", "-shm", "-journal"}

// Options 打开存储的参数
type Options struct {
	Dir    string
	File   string
	Prefix string
	Logger logger.Logger
	// Version 覆盖 SchemaVersion，0 表示使用默认值
	Version int
}

// Open 打开持久化存储。
//
// 记录的结构版本与当前不一致时直接删除数据库文件及其辅助文件后重建；
// 任何初始化失败都会降级为内存存储，调用方无需区分两种模式。
func Open(opts Options) TransactionStore {
	l := opts.Logger
	if l == nil {
		l = logger.NewNop()
	}
	store, err := openPersistent(opts, l)
	if err != nil {
		l.Err(err, "持久化存储不可用，使用内存存储", "dir", opts.Dir)
		return NewMemoryStore()
	}
	return store
}

func openPersistent(opts Options, l logger.Logger) (*SQLStore, error) {
	if opts.Dir == "" {
		return nil, errors.New("storage dir is empty")
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	file := opts.File
	if file == "" {
		file = "transactions.sqlite3"
	}
	version := opts.Version
	if version == 0 {
		version = SchemaVersion
	}

	dbPath := filepath.Join(opts.Dir, file)
	settings := NewSettings(filepath.Join(opts.Dir, "settings.json"))
	if stored := settings.Int(KeySchemaVersion, 0); stored != version {
		if stored != 0 {
			l.Warn("库结构版本变化，清空历史数据", "from", stored, "to", version)
		}
		if err := RemoveDatabase(dbPath); err != nil {
			return nil, err
		}
	}

	store, err := OpenSQL(sqliteDSN(dbPath), opts.Prefix, l)
	if err != nil {
		return nil, err
	}
	if err := settings.Set(KeySchemaVersion, version); err != nil {
		_ = store.Close()
		return nil, err
	}
	l.Info("持久化存储已打开", "path", dbPath, "schemaVersion", version)
	return store, nil
}

// RemoveDatabase 删除数据库文件及 WAL 等辅助文件，文件不存在时忽略
func RemoveDatabase(dbPath string) error {
	for _, p := range append([]string{dbPath}, sideFiles(dbPath)...) {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", p, err)
		}
	}
	return nil
}

func sideFiles(dbPath string) []string {
	out := make([]string, 0, len(sideFileSuffixes))
	for _, s := range sideFileSuffixes {
		out = append(out, dbPath+s)
	}
	return out
}

func sqliteDSN(path string) string {
	return path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}
