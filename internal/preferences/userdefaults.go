package preferences

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"netinspect/pkg/model"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const suiteExt = ".json"

// ErrInvalidSuite 套件名不合法
var ErrInvalidSuite = errors.New("invalid suite name")

// UserDefaults 用户偏好扫描器，每个套件对应目录下的一个 JSON 文件
type UserDefaults struct {
	mu         sync.Mutex
	dir        string
	filter     nameFilter
	showSystem bool
	now        func() time.Time
}

// NewUserDefaults 创建扫描器
func NewUserDefaults(dir string, include, exclude []string, showSystem bool) *UserDefaults {
	return &UserDefaults{
		dir:        dir,
		filter:     nameFilter{include: include, exclude: exclude},
		showSystem: showSystem,
		now:        time.Now,
	}
}

// Suites 可见的套件名，按名称排序
func (u *UserDefaults) Suites() ([]string, error) {
	entries, err := os.ReadDir(u.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read defaults dir: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suiteExt) {
			continue
		}
		suite := strings.TrimSuffix(e.Name(), suiteExt)
		if !u.showSystem && IsSystemKey(suite) {
			continue
		}
		if u.filter.allow(suite) {
			out = append(out, suite)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Scan 读取全部可见套件；单个文件损坏时跳过该文件
func (u *UserDefaults) Scan(ctx context.Context) ([]model.Preference, error) {
	suites, err := u.Suites()
	if err != nil {
		return nil, err
	}
	at := u.now()
	var out []model.Preference
	for _, suite := range suites {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(u.suitePath(suite))
		if err != nil || !gjson.ValidBytes(data) {
			continue
		}
		gjson.ParseBytes(data).ForEach(func(k, v gjson.Result) bool {
			if !u.showSystem && IsSystemKey(k.Str) {
				return true
			}
			if val := fromJSON(v); val != nil {
				out = append(out, model.NewPreference(k.Str, val, model.SourceUserDefaults, suite, at))
			}
			return true
		})
	}
	sortPreferences(out)
	return out, nil
}

// Set 写入单个键，套件文件不存在时创建
func (u *UserDefaults) Set(suite, key string, v model.Value) error {
	return u.rewrite(suite, func(data []byte) ([]byte, error) {
		return sjson.SetBytes(data, escapeKey(key), toJSON(v))
	})
}

// Remove 删除单个键
func (u *UserDefaults) Remove(suite, key string) error {
	return u.rewrite(suite, func(data []byte) ([]byte, error) {
		return sjson.DeleteBytes(data, escapeKey(key))
	})
}

func (u *UserDefaults) rewrite(suite string, edit func([]byte) ([]byte, error)) error {
	if suite == "" || strings.ContainsAny(suite, `/\`) || suite == "." || suite == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidSuite, suite)
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	p := u.suitePath(suite)
	data, err := os.ReadFile(p)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read suite %s: %w", suite, err)
	}
	if len(data) == 0 || !gjson.ValidBytes(data) {
		data = []byte("{}")
	}
	out, err := edit(data)
	if err != nil {
		return fmt.Errorf("edit suite %s: %w", suite, err)
	}
	if err := os.MkdirAll(u.dir, 0o755); err != nil {
		return fmt.Errorf("create defaults dir: %w", err)
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return fmt.Errorf("write suite %s: %w", suite, err)
	}
	return os.Rename(tmp, p)
}

func (u *UserDefaults) suitePath(suite string) string {
	return filepath.Join(u.dir, suite+suiteExt)
}
