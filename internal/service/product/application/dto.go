package application

import (
	"github.com/shopspring/decimal"

	"ecommerce/internal/service/product/domain"
)

// CreateProductRequest 是创建商品的请求体
type CreateProductRequest struct {
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	AvailableQuantity *float64        `json:"availableQuantity"`
	Price             decimal.Decimal `json:"price"`
	CategoryID        uint            `json:"categoryId"`
}

// Validate 返回 字段名 -> 错误信息，没有错误时返回 nil
func (r CreateProductRequest) Validate() map[string]string {
	fields := map[string]string{}
	if r.Name == "" {
		fields["name"] = "Product name is required"
	}
	if r.Description == "" {
		fields["description"] = "Product description is required"
	}
	if r.AvailableQuantity == nil || *r.AvailableQuantity < 0 {
		fields["availableQuantity"] = "Product quantity should be zero or positive"
	}
	if !r.Price.IsPositive() {
		fields["price"] = "Price should be positive"
	}
	if r.CategoryID == 0 {
		fields["categoryId"] = "Product category is required"
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

type ProductResponse struct {
	ID                uint            `json:"id"`
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	AvailableQuantity float64         `json:"availableQuantity"`
	Price             decimal.Decimal `json:"price"`
	CategoryID        uint            `json:"categoryId"`
	CategoryName      string          `json:"categoryName"`
}

type CreateCategoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (r CreateCategoryRequest) Validate() map[string]string {
	if r.Name == "" {
		return map[string]string{"name": "Category name is required"}
	}
	return nil
}

type CategoryResponse struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func toProductResponse(p domain.Product) ProductResponse {
	return ProductResponse{
		ID:                p.ID,
		Name:              p.Name,
		Description:       p.Description,
		AvailableQuantity: p.AvailableQuantity,
		Price:             p.Price,
		CategoryID:        p.CategoryID,
		CategoryName:      p.CategoryName,
	}
}

func toCategoryResponse(c domain.Category) CategoryResponse {
	return CategoryResponse{ID: c.ID, Name: c.Name, Description: c.Description}
}
