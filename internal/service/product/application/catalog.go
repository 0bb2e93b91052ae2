package application

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ecommerce/internal/pkg/logger"
	"ecommerce/internal/service/product/domain"
)

// CatalogService 负责商品与分类的增查，库存数量只在创建时写入，之后只能通过 ReservationEngine 修改
type CatalogService struct {
	repo   domain.CatalogRepository
	tracer trace.Tracer
}

func NewCatalogService(repo domain.CatalogRepository, tracer trace.Tracer) *CatalogService {
	return &CatalogService{repo: repo, tracer: tracer}
}

func (s *CatalogService) CreateProduct(ctx context.Context, req CreateProductRequest) (uint, error) {
	ctx, span := s.tracer.Start(ctx, "service.CreateProduct")
	defer span.End()

	if fields := req.Validate(); fields != nil {
		return 0, errors.Wrapf(domain.ErrInvalidProduct, "%v", fields)
	}
	category, err := s.repo.FindCategoryByID(ctx, req.CategoryID)
	if err != nil {
		span.RecordError(err)
		return 0, errors.Wrapf(err, "category %d", req.CategoryID)
	}

	p := &domain.Product{
		Name:              req.Name,
		Description:       req.Description,
		AvailableQuantity: *req.AvailableQuantity,
		Price:             req.Price,
		CategoryID:        category.ID,
	}
	if err := s.repo.CreateProduct(ctx, p); err != nil {
		span.RecordError(err)
		return 0, errors.Wrap(err, "failed to save product")
	}

	span.SetAttributes(attribute.Int64("product.id", int64(p.ID)))
	logger.Ctx(ctx).Info().Uint("product_id", p.ID).Msg("product created")
	return p.ID, nil
}

func (s *CatalogService) FindProductByID(ctx context.Context, id uint) (*ProductResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.FindProductByID")
	defer span.End()

	p, err := s.repo.FindProductByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrapf(err, "product with id %d", id)
	}
	resp := toProductResponse(*p)
	return &resp, nil
}

func (s *CatalogService) FindAllProducts(ctx context.Context) ([]ProductResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.FindAllProducts")
	defer span.End()

	products, err := s.repo.FindAllProducts(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	out := make([]ProductResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p))
	}
	return out, nil
}

func (s *CatalogService) CreateCategory(ctx context.Context, req CreateCategoryRequest) (uint, error) {
	ctx, span := s.tracer.Start(ctx, "service.CreateCategory")
	defer span.End()

	if fields := req.Validate(); fields != nil {
		return 0, errors.Wrapf(domain.ErrInvalidProduct, "%v", fields)
	}
	c := &domain.Category{Name: req.Name, Description: req.Description}
	if err := s.repo.CreateCategory(ctx, c); err != nil {
		span.RecordError(err)
		return 0, errors.Wrap(err, "failed to save category")
	}
	logger.Ctx(ctx).Info().Uint("category_id", c.ID).Msg("category created")
	return c.ID, nil
}

func (s *CatalogService) FindAllCategories(ctx context.Context) ([]CategoryResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.FindAllCategories")
	defer span.End()

	categories, err := s.repo.FindAllCategories(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	out := make([]CategoryResponse, 0, len(categories))
	for _, c := range categories {
		out = append(out, toCategoryResponse(c))
	}
	return out, nil
}
