package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// KeySchemaVersion 设置文件中记录库结构版本的键
const KeySchemaVersion = "storage.schemaVersion"

// Settings 轻量级键值设置，保存在单个 JSON 文件中
type Settings struct {
	mu   sync.Mutex
	path string
}

// NewSettings 绑定设置文件路径，文件不存在时读取返回零值
func NewSettings(path string) *Settings {
	return &Settings{path: path}
}

// Path 设置文件路径
func (s *Settings) Path() string { return s.path }

// Get 读取 gjson 路径对应的值
func (s *Settings) Get(key string) (gjson.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.read()
	if err != nil {
		return gjson.Result{}, err
	}
	return gjson.GetBytes(data, key), nil
}

// Int 读取整数，缺失时返回 def
func (s *Settings) Int(key string, def int) int {
	r, err := s.Get(key)
	if err != nil || !r.Exists() {
		return def
	}
	return int(r.Int())
}

// Set 写入单个键并整体落盘
func (s *Settings) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.read()
	if err != nil {
		return err
	}
	if len(data) == 0 {
		data = []byte("{}")
	}
	out, err := sjson.SetBytes(data, key, value)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return os.Rename(tmp, s.path)
}

func (s *Settings) read() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	if len(data) > 0 && !gjson.ValidBytes(data) {
		// 损坏的设置文件等同于不存在
		return nil, nil
	}
	return data, nil
}
