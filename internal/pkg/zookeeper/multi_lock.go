package zookeeper

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// MultiLock 按调用方给定的顺序依次获取多把锁。调用方必须对资源排序，否则并发请求可能互相死锁。
type MultiLock struct {
	conn    NodeStore
	prefix  string
	timeout time.Duration
}

func NewMultiLock(conn NodeStore, prefix string, timeout time.Duration) *MultiLock {
	return &MultiLock{conn: conn, prefix: prefix, timeout: timeout}
}

// LockAll 获取全部锁，返回的 release 按获取的逆序释放。任一把获取失败时已获取的锁会被立即释放。
func (m *MultiLock) LockAll(ctx context.Context, resourceIDs []string) (release func(), err error) {
	held := make([]*DistributedLock, 0, len(resourceIDs))
	release = func() {
		for i := len(held) - 1; i >= 0; i-- {
			if err := held[i].Unlock(); err != nil {
				log.Warn().Err(err).Str("path", held[i].path).Msg("failed to release lock")
			}
		}
	}

	for _, id := range resourceIDs {
		lock, err := NewDistributedLock(m.conn, m.prefix+id)
		if err != nil {
			release()
			return nil, err
		}
		if err := lock.Lock(ctx, m.timeout); err != nil {
			release()
			return nil, err
		}
		held = append(held, lock)
	}
	return release, nil
}
