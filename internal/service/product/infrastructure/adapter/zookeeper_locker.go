package adapter

import (
	"context"
	"strconv"

	"ecommerce/internal/pkg/zookeeper"
)

// ZookeeperProductLocker 是 port.ProductLocker 的 ZooKeeper 实现
type ZookeeperProductLocker struct {
	locks *zookeeper.MultiLock
}

func NewZookeeperProductLocker(locks *zookeeper.MultiLock) *ZookeeperProductLocker {
	return &ZookeeperProductLocker{locks: locks}
}

func (l *ZookeeperProductLocker) LockProducts(ctx context.Context, productIDs []uint) (func(), error) {
	resources := make([]string, len(productIDs))
	for i, id := range productIDs {
		resources[i] = strconv.FormatUint(uint64(id), 10)
	}
	return l.locks.LockAll(ctx, resources)
}
