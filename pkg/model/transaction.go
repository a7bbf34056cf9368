package model

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"netinspect/pkg/traffic"

	"github.com/google/uuid"
)

const defaultProtocol = "HTTP/1.1"

// RequestParams 构造 NetworkRequest 的输入
type RequestParams struct {
	URL     string
	Method  HTTPMethod
	Headers traffic.Header
	Body    []byte
	Proto   string
	Time    time.Time
}

// NetworkRequest 不可变的请求快照，派生字段只在构造时计算
type NetworkRequest struct {
	URL       string         `json:"url"`
	Method    HTTPMethod     `json:"method"`
	Headers   traffic.Header `json:"headers"`
	Body      []byte         `json:"body,omitempty"`
	BodyText  string         `json:"bodyText,omitempty"`
	Protocol  string         `json:"protocol"`
	Path      string         `json:"path"`
	Host      string         `json:"host"`
	Timestamp int64          `json:"timestamp"`
	BodySize  int64          `json:"bodySize"`
	HasBody   bool           `json:"hasBody"`
}

// NewNetworkRequest 创建请求快照
func NewNetworkRequest(p RequestParams) NetworkRequest {
	headers := p.Headers.Clone()
	if headers == nil {
		headers = make(traffic.Header)
	}
	body := normalizeBody(p.Body)
	host, path := parseHostPath(p.URL)
	proto := p.Proto
	if proto == "" {
		proto = defaultProtocol
	}
	method := p.Method
	if method == "" {
		method = MethodGet
	}
	return NetworkRequest{
		URL:       p.URL,
		Method:    method,
		Headers:   headers,
		Body:      body,
		BodyText:  traffic.BodyText(body),
		Protocol:  proto,
		Path:      path,
		Host:      host,
		Timestamp: p.Time.UnixMilli(),
		BodySize:  bodySize(body, headers),
		HasBody:   len(body) > 0,
	}
}

// ContentType 请求的 Content-Type
func (r NetworkRequest) ContentType() string { return r.Headers.Get("Content-Type") }

// ResponseParams 构造 NetworkResponse 的输入
type ResponseParams struct {
	StatusCode   int
	Headers      traffic.Header
	Body         []byte
	ResponseTime time.Duration
	Time         time.Time
}

// NetworkResponse 不可变的响应快照
type NetworkResponse struct {
	StatusCode     int            `json:"statusCode"`
	Headers        traffic.Header `json:"headers"`
	Body           []byte         `json:"body,omitempty"`
	BodyText       string         `json:"bodyText,omitempty"`
	ResponseTime   float64        `json:"responseTime"`
	StatusMessage  string         `json:"statusMessage"`
	Timestamp      int64          `json:"timestamp"`
	BodySize       int64          `json:"bodySize"`
	HasBody        bool           `json:"hasBody"`
	IsJSON         bool           `json:"isJson"`
	IsXML          bool           `json:"isXml"`
	IsImage        bool           `json:"isImage"`
	StatusCategory StatusCategory `json:"statusCategory"`
}

// NewNetworkResponse 创建响应快照
func NewNetworkResponse(p ResponseParams) NetworkResponse {
	headers := p.Headers.Clone()
	if headers == nil {
		headers = make(traffic.Header)
	}
	body := normalizeBody(p.Body)
	ct := strings.ToLower(headers.Get("Content-Type"))
	return NetworkResponse{
		StatusCode:     p.StatusCode,
		Headers:        headers,
		Body:           body,
		BodyText:       traffic.BodyText(body),
		ResponseTime:   p.ResponseTime.Seconds(),
		StatusMessage:  StatusMessage(p.StatusCode),
		Timestamp:      p.Time.UnixMilli(),
		BodySize:       bodySize(body, headers),
		HasBody:        len(body) > 0,
		IsJSON:         strings.Contains(ct, "json"),
		IsXML:          strings.Contains(ct, "xml"),
		IsImage:        strings.HasPrefix(ct, "image/"),
		StatusCategory: CategoryOf(p.StatusCode),
	}
}

// IsSuccess 2xx-3xx
func (r NetworkResponse) IsSuccess() bool { return IsSuccessCode(r.StatusCode) }

// ContentType 响应的 Content-Type
func (r NetworkResponse) ContentType() string { return r.Headers.Get("Content-Type") }

// NetworkTransaction 一次请求及其结果，值类型：状态迁移返回新值
type NetworkTransaction struct {
	ID        string            `json:"id"`
	Request   NetworkRequest    `json:"request"`
	Response  *NetworkResponse  `json:"response,omitempty"`
	Status    TransactionStatus `json:"status"`
	StartTime int64             `json:"startTime"`
	EndTime   *int64            `json:"endTime,omitempty"`
	Duration  *float64          `json:"duration,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// NewNetworkTransaction 创建 pending 状态的事务
func NewNetworkTransaction(req NetworkRequest, start time.Time) NetworkTransaction {
	return NetworkTransaction{
		ID:        uuid.NewString(),
		Request:   req,
		Status:    StatusPending,
		StartTime: start.UnixMilli(),
	}
}

// WithResponse 以响应完成事务；2xx-3xx 为 completed，否则 failed
func (t NetworkTransaction) WithResponse(resp NetworkResponse, end time.Time) NetworkTransaction {
	next := t.finish(end)
	r := resp
	next.Response = &r
	next.Error = ""
	if resp.IsSuccess() {
		next.Status = StatusCompleted
	} else {
		next.Status = StatusFailed
	}
	return next
}

// MarkAsFailed 以网络层错误结束事务，保留已有响应
func (t NetworkTransaction) MarkAsFailed(end time.Time, errText string) NetworkTransaction {
	next := t.finish(end)
	next.Status = StatusFailed
	next.Error = errText
	return next
}

// MarkAsCancelled 宿主取消请求时结束事务
func (t NetworkTransaction) MarkAsCancelled(end time.Time) NetworkTransaction {
	next := t.finish(end)
	next.Status = StatusCancelled
	next.Error = "cancelled"
	return next
}

func (t NetworkTransaction) finish(end time.Time) NetworkTransaction {
	next := t
	ms := end.UnixMilli()
	next.EndTime = &ms
	d := float64(ms-t.StartTime) / 1000
	if d < 0 {
		d = 0
	}
	next.Duration = &d
	return next
}

// IsPending 是否仍在进行中
func (t NetworkTransaction) IsPending() bool { return t.Status == StatusPending }

// StatusCode 响应状态码，无响应时为 0
func (t NetworkTransaction) StatusCode() int {
	if t.Response == nil {
		return 0
	}
	return t.Response.StatusCode
}

// Start 开始时间
func (t NetworkTransaction) Start() time.Time { return time.UnixMilli(t.StartTime) }

// DurationSeconds 返回耗时（秒）及是否存在
func (t NetworkTransaction) DurationSeconds() (float64, bool) {
	if t.Duration == nil {
		return 0, false
	}
	return *t.Duration, true
}

// parseHostPath 解析失败时回退为 ("", "/")
func parseHostPath(raw string) (string, string) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "/"
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return u.Host, path
}

func normalizeBody(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func bodySize(body []byte, h traffic.Header) int64 {
	if len(body) > 0 {
		return int64(len(body))
	}
	if n, err := strconv.ParseInt(h.Get("Content-Length"), 10, 64); err == nil && n > 0 {
		return n
	}
	return 0
}
