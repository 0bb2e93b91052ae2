package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/baggage"

	"ecommerce/internal/pkg/errcode"
	"ecommerce/internal/pkg/validation"
	"ecommerce/internal/service/order/application"
	"ecommerce/internal/service/order/domain"
)

type fakeOrders struct {
	err       error
	placed    []*application.CreateOrderRequest
	reference string
}

func (f *fakeOrders) PlaceOrder(ctx context.Context, req *application.CreateOrderRequest) (uint, error) {
	f.reference = baggage.FromContext(ctx).Member("order_reference").Value()
	if f.err != nil {
		return 0, f.err
	}
	f.placed = append(f.placed, req)
	return 42, nil
}

func (f *fakeOrders) FindByID(_ context.Context, id uint) (*application.OrderResponse, error) {
	if id != 42 {
		return nil, errors.Wrapf(domain.ErrOrderNotFound, "no order found with id %d", id)
	}
	return &application.OrderResponse{ID: 42, Reference: "ref-1"}, nil
}

func (f *fakeOrders) FindAll(context.Context) ([]application.OrderResponse, error) {
	return []application.OrderResponse{}, nil
}

func (f *fakeOrders) FindLinesByOrderID(_ context.Context, id uint) ([]application.OrderLineResponse, error) {
	if id != 42 {
		return nil, domain.ErrOrderNotFound
	}
	return []application.OrderLineResponse{{ID: 1, ProductID: 3, Quantity: 2}}, nil
}

const validBody = `{"reference":"ref-1","amount":"42.50","paymentMethod":"VISA","customerId":"c-1","products":[{"productId":1,"quantity":2}]}`

func serve(h *OrderHandler, method, path, body string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestCreateOrder(t *testing.T) {
	svc := &fakeOrders{}
	rec := serve(NewOrderHandler(svc, nil), http.MethodPost, "/api/v1/orders", validBody)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp application.PlaceOrderResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil || resp.OrderID != 42 {
		t.Fatalf("unexpected response: %+v, %v", resp, err)
	}
	if svc.reference != "ref-1" {
		t.Fatalf("order reference not carried in baggage: %q", svc.reference)
	}
}

func TestCreateOrderValidationErrors(t *testing.T) {
	svc := &fakeOrders{}
	rec := serve(NewOrderHandler(svc, nil), http.MethodPost, "/api/v1/orders", `{"amount":"0","products":[]}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	body, err := errcode.Decode(rec.Body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, field := range []string{"amount", "paymentMethod", "customerId", "products"} {
		if body.Fields[field] == "" {
			t.Fatalf("missing field error for %s: %+v", field, body.Fields)
		}
	}
	if len(svc.placed) != 0 {
		t.Fatalf("invalid request must not reach the service")
	}
}

func TestCreateOrderPolicyViolation(t *testing.T) {
	policies, err := NewOrderPolicies([]validation.Rule{{
		Name:       "max-amount",
		Expression: "order.amount <= 10.0",
		Field:      "amount",
		Message:    "Order amount exceeds the allowed maximum",
	}})
	if err != nil {
		t.Fatalf("compile policies: %v", err)
	}
	svc := &fakeOrders{}
	rec := serve(NewOrderHandler(svc, policies), http.MethodPost, "/api/v1/orders", validBody)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	body, _ := errcode.Decode(rec.Body)
	if body.Fields["amount"] != "Order amount exceeds the allowed maximum" {
		t.Fatalf("unexpected fields: %+v", body.Fields)
	}
	if len(svc.placed) != 0 {
		t.Fatalf("request violating a policy must not reach the service")
	}
}

func TestCreateOrderErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   errcode.Code
	}{
		{errors.Wrap(domain.ErrCustomerNotFound, "c-1"), http.StatusNotFound, errcode.CustomerNotFound},
		{errors.Wrap(domain.ErrProductNotFound, "[9]"), http.StatusNotFound, errcode.ProductNotFound},
		{errors.Wrap(domain.ErrInsufficientStock, "product 1"), http.StatusUnprocessableEntity, errcode.InsufficientStock},
		{errors.Wrap(domain.ErrInvalidQuantity, "product 1"), http.StatusUnprocessableEntity, errcode.InvalidQuantity},
		{domain.ErrStockConflict, http.StatusConflict, errcode.StockConflict},
		{errors.Wrap(domain.ErrDuplicateReference, "ref-1"), http.StatusConflict, errcode.DuplicateReference},
		{errors.New("db down"), http.StatusInternalServerError, errcode.Internal},
	}
	for _, tc := range cases {
		rec := serve(NewOrderHandler(&fakeOrders{err: tc.err}, nil), http.MethodPost, "/api/v1/orders", validBody)
		if rec.Code != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, rec.Code)
		}
		body, _ := errcode.Decode(rec.Body)
		if body.Code != tc.code {
			t.Fatalf("%v: expected %s, got %s", tc.err, tc.code, body.Code)
		}
	}
}

func TestReadOrders(t *testing.T) {
	h := NewOrderHandler(&fakeOrders{}, nil)

	rec := serve(h, http.MethodGet, "/api/v1/orders", "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("expected empty list, got %d %s", rec.Code, rec.Body.String())
	}

	if rec := serve(h, http.MethodGet, "/api/v1/orders/42", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = serve(h, http.MethodGet, "/api/v1/orders/7", "")
	body, _ := errcode.Decode(rec.Body)
	if rec.Code != http.StatusNotFound || body.Code != errcode.OrderNotFound {
		t.Fatalf("expected 404 ORDER_NOT_FOUND, got %d %s", rec.Code, body.Code)
	}

	rec = serve(h, http.MethodGet, "/api/v1/orders/42/lines", "")
	var lines []application.OrderLineResponse
	if err := json.NewDecoder(rec.Body).Decode(&lines); err != nil || len(lines) != 1 {
		t.Fatalf("unexpected lines: %+v, %v", lines, err)
	}

	if rec := serve(h, http.MethodGet, "/api/v1/orders/7/lines", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
