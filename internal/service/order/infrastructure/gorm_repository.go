package infrastructure

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"ecommerce/internal/pkg/database"
	"ecommerce/internal/service/order/domain"
)

// GormOrderRepository 实现 domain.OrderRepository
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

func (r *GormOrderRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&OrderModel{}, &OrderLineModel{})
}

// CreateWithLines 订单与明细在同一个事务中写入
func (r *GormOrderRepository) CreateWithLines(ctx context.Context, order *domain.Order, lines []domain.PurchaseLine) error {
	model := FromDomainOrder(order, lines)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(model).Error
	})
	if err != nil {
		if database.IsDuplicateKey(err) {
			return domain.ErrDuplicateReference
		}
		return err
	}
	order.ID = model.ID
	order.CreatedAt = model.CreatedAt
	return nil
}

func (r *GormOrderRepository) FindByID(ctx context.Context, id uint) (*domain.Order, error) {
	var model OrderModel
	if err := r.db.WithContext(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	o := ToDomainOrder(&model)
	return &o, nil
}

func (r *GormOrderRepository) FindAll(ctx context.Context) ([]domain.Order, error) {
	var models []OrderModel
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	orders := make([]domain.Order, 0, len(models))
	for i := range models {
		orders = append(orders, ToDomainOrder(&models[i]))
	}
	return orders, nil
}

func (r *GormOrderRepository) FindLinesByOrderID(ctx context.Context, orderID uint) ([]domain.OrderLine, error) {
	if _, err := r.FindByID(ctx, orderID); err != nil {
		return nil, err
	}
	var models []OrderLineModel
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	lines := make([]domain.OrderLine, 0, len(models))
	for i := range models {
		lines = append(lines, ToDomainOrderLine(&models[i]))
	}
	return lines, nil
}
