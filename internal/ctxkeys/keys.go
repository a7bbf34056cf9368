package ctxkeys

import "context"

// TraceIDKey 上下文中的追踪 ID，捕获写入时为事务 ID
type TraceIDKey struct{}

// WithTraceID 返回携带追踪 ID 的上下文
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TraceIDKey{}, id)
}

// TraceID 读取上下文中的追踪 ID
func TraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(TraceIDKey{}).(string)
	return id
}
