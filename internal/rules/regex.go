package rules

import (
	"regexp"
	"sync"
)

var regexCache = &regexpCache{m: make(map[string]*regexp.Regexp)}

// regexpCache 编译结果缓存，非法表达式不缓存
type regexpCache struct {
	mu sync.RWMutex
	m  map[string]*regexp.Regexp
}

func (c *regexpCache) Get(pattern string) (*regexp.Regexp, error) {
	c.mu.RLock()
	re, ok := c.m[pattern]
	c.mu.RUnlock()
	if ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.m[pattern] = re
	c.mu.Unlock()
	return re, nil
}
