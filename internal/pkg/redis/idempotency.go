package redis

import (
	"context"
	"fmt"
	"time"
)

// IdempotencyStore 用 SETNX 记录已处理过的消息
type IdempotencyStore struct {
	client *Client
	prefix string
	ttl    time.Duration
}

func NewIdempotencyStore(client *Client, prefix string, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *IdempotencyStore) Key(id string) string {
	return fmt.Sprintf("idem:%s:%s", s.prefix, id)
}

// Seen 第一次看到 id 时返回 false 并占位，之后在 TTL 内都返回 true
func (s *IdempotencyStore) Seen(ctx context.Context, id string) (bool, error) {
	ok, err := s.client.rdb.SetNX(ctx, s.Key(id), "1", s.ttl).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// Forget 删除占位，处理失败需要重新投递时调用
func (s *IdempotencyStore) Forget(ctx context.Context, id string) error {
	return s.client.rdb.Del(ctx, s.Key(id)).Err()
}
