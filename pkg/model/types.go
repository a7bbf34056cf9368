package model

import (
	"net/http"
	"strings"
)

// HTTPMethod 请求方法
type HTTPMethod string

const (
	MethodGet     HTTPMethod = "GET"
	MethodPost    HTTPMethod = "POST"
	MethodPut     HTTPMethod = "PUT"
	MethodDelete  HTTPMethod = "DELETE"
	MethodPatch   HTTPMethod = "PATCH"
	MethodHead    HTTPMethod = "HEAD"
	MethodOptions HTTPMethod = "OPTIONS"
	MethodTrace   HTTPMethod = "TRACE"
	MethodConnect HTTPMethod = "CONNECT"
)

// AllMethods 所有受支持的方法，顺序固定
var AllMethods = []HTTPMethod{
	MethodGet, MethodPost, MethodPut, MethodDelete, MethodPatch,
	MethodHead, MethodOptions, MethodTrace, MethodConnect,
}

// ParseHTTPMethod 将字符串解析为 HTTPMethod，空字符串视为 GET
func ParseHTTPMethod(s string) HTTPMethod {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return MethodGet
	}
	return HTTPMethod(s)
}

// Valid 是否为已知方法
func (m HTTPMethod) Valid() bool {
	for _, v := range AllMethods {
		if v == m {
			return true
		}
	}
	return false
}

// TransactionStatus 事务状态
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
	StatusCancelled TransactionStatus = "cancelled"
)

// Terminal 是否为终态
func (s TransactionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// StatusCategory 状态码分类
type StatusCategory string

const (
	CategoryInformational StatusCategory = "1xx"
	CategorySuccess       StatusCategory = "2xx"
	CategoryRedirect      StatusCategory = "3xx"
	CategoryClientError   StatusCategory = "4xx"
	CategoryServerError   StatusCategory = "5xx"
	CategoryUnknown       StatusCategory = "unknown"
)

// CategoryOf 返回状态码所属分类
func CategoryOf(code int) StatusCategory {
	switch {
	case code >= 100 && code < 200:
		return CategoryInformational
	case code >= 200 && code < 300:
		return CategorySuccess
	case code >= 300 && code < 400:
		return CategoryRedirect
	case code >= 400 && code < 500:
		return CategoryClientError
	case code >= 500 && code < 600:
		return CategoryServerError
	default:
		return CategoryUnknown
	}
}

// StatusMessage 查表获取状态码文本，未知状态码返回 "Unknown"
func StatusMessage(code int) string {
	if text := http.StatusText(code); text != "" {
		return text
	}
	return "Unknown"
}

// IsSuccessCode 2xx 与 3xx 视为成功
func IsSuccessCode(code int) bool {
	return code >= 200 && code < 400
}

// IsErrorCode 400 及以上视为错误
func IsErrorCode(code int) bool {
	return code >= 400
}
