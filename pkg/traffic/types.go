package traffic

import (
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

// Header 封装通用的头部操作，键统一存储为小写
type Header map[string]string

// Get 获取指定 Header 的值（大小写不敏感）
func (h Header) Get(key string) string {
	if h == nil {
		return ""
	}
	return h[strings.ToLower(key)]
}

// Set 设置指定 Header 的值（自动转换为小写）
func (h Header) Set(key, value string) {
	h[strings.ToLower(key)] = value
}

// Del 删除指定 Header
func (h Header) Del(key string) {
	delete(h, strings.ToLower(key))
}

// Clone 返回 Header 的副本
func (h Header) Clone() Header {
	if h == nil {
		return nil
	}
	out := make(Header, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// FromHTTP 将标准库 http.Header 转换为中立 Header，多值以逗号拼接
func FromHTTP(src http.Header) Header {
	out := make(Header, len(src))
	for k, vals := range src {
		out.Set(k, strings.Join(vals, ", "))
	}
	return out
}

// FromMap 将任意大小写的键值对转换为中立 Header
func FromMap(src map[string]string) Header {
	out := make(Header, len(src))
	for k, v := range src {
		out.Set(k, v)
	}
	return out
}

// BodyText 将请求/响应体转换为可读文本，合法 JSON 会被格式化
func BodyText(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if gjson.ValidBytes(body) {
		return strings.TrimRight(string(pretty.Pretty(body)), "\n")
	}
	return string(body)
}
