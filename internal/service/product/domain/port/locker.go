package port

import "context"

// ProductLocker 提供按商品粒度的互斥锁。实现必须按传入顺序加锁，调用方负责传入升序 ID。
type ProductLocker interface {
	LockProducts(ctx context.Context, productIDs []uint) (unlock func(), err error)
}
