package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/propagation"

	"ecommerce/internal/pkg/errcode"
	"ecommerce/internal/pkg/logger"
	"ecommerce/internal/pkg/metrics"
	"ecommerce/internal/service/product/application"
	"ecommerce/internal/service/product/domain"
)

// Reserver 是库存预留用例
type Reserver interface {
	ReserveFor(ctx context.Context, reference string, lines []domain.PurchaseRequest) ([]domain.PurchaseResponse, error)
	Release(ctx context.Context, reference string) error
}

// ReleaseRequest 是补偿接口的请求体
type ReleaseRequest struct {
	Reference string `json:"reference"`
}

// Catalog 是商品目录用例
type Catalog interface {
	CreateProduct(ctx context.Context, req application.CreateProductRequest) (uint, error)
	FindProductByID(ctx context.Context, id uint) (*application.ProductResponse, error)
	FindAllProducts(ctx context.Context) ([]application.ProductResponse, error)
	CreateCategory(ctx context.Context, req application.CreateCategoryRequest) (uint, error)
	FindAllCategories(ctx context.Context) ([]application.CategoryResponse, error)
}

// ProductHandler 封装了 product 服务的 HTTP 处理器
type ProductHandler struct {
	reserver Reserver
	catalog  Catalog
}

func NewProductHandler(reserver Reserver, catalog Catalog) *ProductHandler {
	return &ProductHandler{reserver: reserver, catalog: catalog}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *ProductHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/products/purchase", metrics.Instrument("products.purchase", h.handlePurchase))
	mux.HandleFunc("POST /api/v1/products/release", metrics.Instrument("products.release", h.handleRelease))
	mux.HandleFunc("POST /api/v1/products", metrics.Instrument("products.create", h.handleCreateProduct))
	mux.HandleFunc("GET /api/v1/products", metrics.Instrument("products.list", h.handleListProducts))
	mux.HandleFunc("GET /api/v1/products/{id}", metrics.Instrument("products.get", h.handleGetProduct))
	mux.HandleFunc("POST /api/v1/categories", metrics.Instrument("categories.create", h.handleCreateCategory))
	mux.HandleFunc("GET /api/v1/categories", metrics.Instrument("categories.list", h.handleListCategories))
}

func extract(r *http.Request) context.Context {
	return otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
}

func (h *ProductHandler) handlePurchase(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)

	var lines []domain.PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&lines); err != nil {
		errcode.Write(w, http.StatusBadRequest, errcode.BadRequest, "Invalid request body")
		return
	}

	// 由订单服务通过 Baggage 传入，仅用于日志
	if ref := baggage.FromContext(ctx).Member("order_reference").Value(); ref != "" {
		logger.Ctx(ctx).Debug().Str("order_reference", ref).Int("lines", len(lines)).Msg("reservation requested")
	}

	resp, err := h.reserver.ReserveFor(ctx, r.URL.Query().Get("reference"), lines)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRelease 是补偿接口的处理器
func (h *ProductHandler) handleRelease(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)

	var req ReleaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errcode.Write(w, http.StatusBadRequest, errcode.BadRequest, "Invalid request body")
		return
	}

	if err := h.reserver.Release(ctx, req.Reference); err != nil {
		writeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProductHandler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)

	var req application.CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errcode.Write(w, http.StatusBadRequest, errcode.BadRequest, "Invalid request body")
		return
	}
	if fields := req.Validate(); fields != nil {
		errcode.WriteFields(w, fields)
		return
	}

	id, err := h.catalog.CreateProduct(ctx, req)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uint{"id": id})
}

func (h *ProductHandler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)
	products, err := h.catalog.FindAllProducts(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		errcode.Write(w, http.StatusBadRequest, errcode.BadRequest, "product id must be a positive integer")
		return
	}
	product, err := h.catalog.FindProductByID(ctx, uint(id))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)

	var req application.CreateCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errcode.Write(w, http.StatusBadRequest, errcode.BadRequest, "Invalid request body")
		return
	}
	if fields := req.Validate(); fields != nil {
		errcode.WriteFields(w, fields)
		return
	}

	id, err := h.catalog.CreateCategory(ctx, req)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uint{"id": id})
}

func (h *ProductHandler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)
	categories, err := h.catalog.FindAllCategories(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

// writeError 根据错误类型返回不同的 HTTP 状态码与错误码
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	var (
		status int
		code   errcode.Code
	)
	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		status, code = http.StatusNotFound, errcode.ProductNotFound
	case errors.Is(err, domain.ErrCategoryNotFound):
		status, code = http.StatusNotFound, errcode.CategoryNotFound
	case errors.Is(err, domain.ErrInvalidQuantity):
		status, code = http.StatusUnprocessableEntity, errcode.InvalidQuantity
	case errors.Is(err, domain.ErrInsufficientStock):
		status, code = http.StatusUnprocessableEntity, errcode.InsufficientStock
	case errors.Is(err, domain.ErrStockConflict):
		status, code = http.StatusConflict, errcode.StockConflict
	case errors.Is(err, domain.ErrDuplicateReservation):
		status, code = http.StatusConflict, errcode.DuplicateReference
	case errors.Is(err, domain.ErrInvalidProduct), errors.Is(err, domain.ErrInvalidReference):
		status, code = http.StatusBadRequest, errcode.BadRequest
	default:
		logger.Ctx(ctx).Error().Err(err).Msg("unhandled error")
		errcode.Write(w, http.StatusInternalServerError, errcode.Internal, "internal error")
		return
	}
	errcode.Write(w, status, code, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
