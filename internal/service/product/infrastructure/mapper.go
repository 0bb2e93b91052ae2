package infrastructure

import "ecommerce/internal/service/product/domain"

// ToDomainProduct 将数据库模型转换为领域模型
func ToDomainProduct(model *ProductModel) domain.Product {
	return domain.Product{
		ID:                model.ID,
		Name:              model.Name,
		Description:       model.Description,
		AvailableQuantity: model.AvailableQuantity,
		Price:             model.Price,
		CategoryID:        model.CategoryID,
		CategoryName:      model.Category.Name,
		Version:           model.Version,
	}
}

// FromDomainProduct 创建用于插入的数据库模型
func FromDomainProduct(p *domain.Product) *ProductModel {
	return &ProductModel{
		Name:              p.Name,
		Description:       p.Description,
		AvailableQuantity: p.AvailableQuantity,
		Price:             p.Price,
		CategoryID:        p.CategoryID,
		Version:           1,
	}
}

func ToDomainCategory(model *CategoryModel) domain.Category {
	return domain.Category{ID: model.ID, Name: model.Name, Description: model.Description}
}

func ToDomainReservation(model *ReservationModel) domain.Reservation {
	return domain.Reservation{
		Reference: model.Reference,
		Status:    domain.ReservationStatus(model.Status),
		Lines:     model.Lines,
		Version:   model.Version,
	}
}
