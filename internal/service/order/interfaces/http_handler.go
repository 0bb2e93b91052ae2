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
	"ecommerce/internal/pkg/validation"
	"ecommerce/internal/service/order/application"
	"ecommerce/internal/service/order/domain"
)

// OrderService 是订单用例
type OrderService interface {
	PlaceOrder(ctx context.Context, req *application.CreateOrderRequest) (uint, error)
	FindByID(ctx context.Context, id uint) (*application.OrderResponse, error)
	FindAll(ctx context.Context) ([]application.OrderResponse, error)
	FindLinesByOrderID(ctx context.Context, orderID uint) ([]application.OrderLineResponse, error)
}

// OrderHandler 封装了 order 服务的 HTTP 处理器
type OrderHandler struct {
	service  OrderService
	policies *validation.PolicyEngine // 可为 nil
}

// NewOrderHandler 创建一个新的 HTTP 处理器实例
func NewOrderHandler(service OrderService, policies *validation.PolicyEngine) *OrderHandler {
	return &OrderHandler{service: service, policies: policies}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *OrderHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/orders", metrics.Instrument("orders.create", h.handleCreateOrder))
	mux.HandleFunc("GET /api/v1/orders", metrics.Instrument("orders.list", h.handleListOrders))
	mux.HandleFunc("GET /api/v1/orders/{id}", metrics.Instrument("orders.get", h.handleGetOrder))
	mux.HandleFunc("GET /api/v1/orders/{id}/lines", metrics.Instrument("orders.lines", h.handleGetOrderLines))
}

func (h *OrderHandler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	var req application.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errcode.Write(w, http.StatusBadRequest, errcode.BadRequest, "Invalid request body")
		return
	}

	fields := req.Validate()
	for _, v := range h.policies.Evaluate(PolicyInput(&req)) {
		if fields == nil {
			fields = map[string]string{}
		}
		if _, exists := fields[v.Field]; !exists {
			fields[v.Field] = v.Message
		}
	}
	if fields != nil {
		errcode.WriteFields(w, fields)
		return
	}

	// 通过 Baggage 把订单号带给下游，库存服务的日志可以据此关联
	if member, err := baggage.NewMemberRaw("order_reference", req.Reference); err == nil {
		if b, err := baggage.FromContext(ctx).SetMember(member); err == nil {
			ctx = baggage.ContextWithBaggage(ctx, b)
		}
	}

	id, err := h.service.PlaceOrder(ctx, &req)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, application.PlaceOrderResponse{OrderID: id})
}

func (h *OrderHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	orders, err := h.service.FindAll(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	order, err := h.service.FindByID(ctx, id)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) handleGetOrderLines(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	lines, err := h.service.FindLinesByOrderID(ctx, id)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, lines)
}

func pathID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		errcode.Write(w, http.StatusBadRequest, errcode.BadRequest, "order id must be a positive integer")
		return 0, false
	}
	return uint(id), true
}

// writeError 根据错误类型返回不同的 HTTP 状态码与错误码
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	var (
		status int
		code   errcode.Code
	)
	switch {
	case errors.Is(err, domain.ErrInvalidOrder):
		status, code = http.StatusBadRequest, errcode.ValidationFailed
	case errors.Is(err, domain.ErrCustomerNotFound):
		status, code = http.StatusNotFound, errcode.CustomerNotFound
	case errors.Is(err, domain.ErrProductNotFound):
		status, code = http.StatusNotFound, errcode.ProductNotFound
	case errors.Is(err, domain.ErrOrderNotFound):
		status, code = http.StatusNotFound, errcode.OrderNotFound
	case errors.Is(err, domain.ErrInvalidQuantity):
		status, code = http.StatusUnprocessableEntity, errcode.InvalidQuantity
	case errors.Is(err, domain.ErrInsufficientStock):
		status, code = http.StatusUnprocessableEntity, errcode.InsufficientStock
	case errors.Is(err, domain.ErrStockConflict):
		status, code = http.StatusConflict, errcode.StockConflict
	case errors.Is(err, domain.ErrDuplicateReference):
		status, code = http.StatusConflict, errcode.DuplicateReference
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
