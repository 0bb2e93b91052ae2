package infrastructure

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"ecommerce/internal/pkg/database"
	"ecommerce/internal/service/product/domain"
)

// GormProductRepository 同时实现 domain.StockLedger 与 domain.CatalogRepository
type GormProductRepository struct {
	db *gorm.DB
}

func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// AutoMigrate 创建或更新表结构
func (r *GormProductRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&CategoryModel{}, &ProductModel{}, &ReservationModel{})
}

func (r *GormProductRepository) FindAllByIDsOrderByID(ctx context.Context, ids []uint) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var models []ProductModel
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&models).Error
	if err != nil {
		return nil, err
	}
	products := make([]domain.Product, 0, len(models))
	for i := range models {
		products = append(products, ToDomainProduct(&models[i]))
	}
	return products, nil
}

func (r *GormProductRepository) FindReservation(ctx context.Context, reference string) (*domain.Reservation, error) {
	var model ReservationModel
	err := r.db.WithContext(ctx).Where("reference = ?", reference).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrReservationNotFound
		}
		return nil, err
	}
	res := ToDomainReservation(&model)
	return &res, nil
}

// ApplyStockChanges 在一个事务内按版本号条件更新库存并迁移预留记录，任一行未命中就回滚整个事务
func (r *GormProductRepository) ApplyStockChanges(ctx context.Context, changes []domain.StockChange, transition *domain.ReservationTransition) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, c := range changes {
			res := tx.Model(&ProductModel{}).
				Where("id = ? AND version = ?", c.ProductID, c.ExpectedVersion).
				Updates(map[string]interface{}{
					"available_quantity": c.NewQuantity,
					"version":            gorm.Expr("version + 1"),
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return domain.ErrStockConflict
			}
		}
		if transition == nil {
			return nil
		}
		return applyTransition(tx, transition)
	})
}

// applyTransition 新建记录时撞上唯一索引、或更新时版本不匹配，都视为并发冲突
func applyTransition(tx *gorm.DB, t *domain.ReservationTransition) error {
	if t.From == "" {
		model := &ReservationModel{Reference: t.Reference, Status: string(t.To), Lines: t.Lines, Version: 1}
		if err := tx.Create(model).Error; err != nil {
			if database.IsDuplicateKey(err) {
				return domain.ErrStockConflict
			}
			return err
		}
		return nil
	}

	res := tx.Model(&ReservationModel{}).
		Where("reference = ? AND status = ? AND version = ?", t.Reference, string(t.From), t.ExpectedVersion).
		Select("status", "lines", "version").
		Updates(&ReservationModel{Status: string(t.To), Lines: t.Lines, Version: t.ExpectedVersion + 1})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrStockConflict
	}
	return nil
}

func (r *GormProductRepository) CreateProduct(ctx context.Context, p *domain.Product) error {
	model := FromDomainProduct(p)
	if err := r.db.WithContext(ctx).Omit("Category").Create(model).Error; err != nil {
		return err
	}
	p.ID = model.ID
	p.Version = model.Version
	return nil
}

func (r *GormProductRepository) FindProductByID(ctx context.Context, id uint) (*domain.Product, error) {
	var model ProductModel
	err := r.db.WithContext(ctx).Preload("Category").First(&model, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProductNotFound
		}
		return nil, err
	}
	p := ToDomainProduct(&model)
	return &p, nil
}

func (r *GormProductRepository) FindAllProducts(ctx context.Context) ([]domain.Product, error) {
	var models []ProductModel
	if err := r.db.WithContext(ctx).Preload("Category").Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	products := make([]domain.Product, 0, len(models))
	for i := range models {
		products = append(products, ToDomainProduct(&models[i]))
	}
	return products, nil
}

func (r *GormProductRepository) CreateCategory(ctx context.Context, c *domain.Category) error {
	model := &CategoryModel{Name: c.Name, Description: c.Description}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	c.ID = model.ID
	return nil
}

func (r *GormProductRepository) FindCategoryByID(ctx context.Context, id uint) (*domain.Category, error) {
	var model CategoryModel
	err := r.db.WithContext(ctx).First(&model, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCategoryNotFound
		}
		return nil, err
	}
	c := ToDomainCategory(&model)
	return &c, nil
}

func (r *GormProductRepository) FindAllCategories(ctx context.Context) ([]domain.Category, error) {
	var models []CategoryModel
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	categories := make([]domain.Category, 0, len(models))
	for i := range models {
		categories = append(categories, ToDomainCategory(&models[i]))
	}
	return categories, nil
}
