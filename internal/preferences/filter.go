package preferences

import (
	"path"
	"strings"
)

var systemKeyPrefixes = []string{"Apple", "NS", "AK", "com.apple."}

// IsSystemKey 系统写入的键，默认隐藏
func IsSystemKey(key string) bool {
	for _, p := range systemKeyPrefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

// nameFilter include 非空时只保留命中项，exclude 优先；支持 path.Match 通配
type nameFilter struct {
	include []string
	exclude []string
}

func (f nameFilter) allow(name string) bool {
	if matchAny(f.exclude, name) {
		return false
	}
	return len(f.include) == 0 || matchAny(f.include, name)
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if p == name {
			return true
		}
		if ok, err := path.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}
