package domain

import "errors"

var (
	ErrCustomerNotFound   = errors.New("customer not found")
	ErrOrderNotFound      = errors.New("order not found")
	ErrDuplicateReference = errors.New("order reference already exists")
	ErrInvalidOrder       = errors.New("invalid order request")

	// 以下错误由库存服务返回的错误码映射而来
	ErrProductNotFound   = errors.New("product not found")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrStockConflict     = errors.New("stock conflict")
)
