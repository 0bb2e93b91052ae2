package domain

import "errors"

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrCategoryNotFound  = errors.New("category not found")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrStockConflict 表示提交时库存已被并发请求修改（版本号不匹配）
	ErrStockConflict  = errors.New("stock conflict")
	ErrInvalidProduct = errors.New("invalid product")

	ErrReservationNotFound = errors.New("reservation not found")
	// ErrDuplicateReservation 表示该订单号已经持有或取消过预留
	ErrDuplicateReservation = errors.New("duplicate reservation reference")
	ErrInvalidReference     = errors.New("invalid reservation reference")
)
