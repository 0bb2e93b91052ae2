package domain

// ReservationStatus 是一次按订单号登记的预留所处的状态
type ReservationStatus string

const (
	ReservationHeld     ReservationStatus = "HELD"
	ReservationReleased ReservationStatus = "RELEASED"
	// ReservationCancelled 表示释放先于预留到达，之后同一订单号的预留一律拒绝
	ReservationCancelled ReservationStatus = "CANCELLED"
)

// Reservation 记录某个订单号实际扣减的明细，释放时以它为准而不是以请求为准
type Reservation struct {
	Reference string
	Status    ReservationStatus
	Lines     []PurchaseRequest
	Version   uint
}

// ReservationTransition 与库存变更在同一事务中写入。
// From 为空表示新建记录；否则按 ExpectedVersion 条件更新，未命中返回 ErrStockConflict。
type ReservationTransition struct {
	Reference       string
	Lines           []PurchaseRequest
	From            ReservationStatus
	ExpectedVersion uint
	To              ReservationStatus
}
