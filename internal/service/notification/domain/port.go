package domain

import "context"

// IdempotencyStore 记录已处理过的事件 ID
type IdempotencyStore interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// Pusher 把消息推送给某个客户当前在线的所有连接，返回送达的连接数
type Pusher interface {
	Push(customerID string, payload []byte) int
}
