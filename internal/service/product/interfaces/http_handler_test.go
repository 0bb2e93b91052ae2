package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"ecommerce/internal/pkg/errcode"
	"ecommerce/internal/service/product/application"
	"ecommerce/internal/service/product/domain"
)

type fakeReserver struct {
	err        error
	references []string
	released   []string
}

func (f *fakeReserver) ReserveFor(_ context.Context, reference string, lines []domain.PurchaseRequest) ([]domain.PurchaseResponse, error) {
	f.references = append(f.references, reference)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.PurchaseResponse, 0, len(lines))
	for _, l := range lines {
		out = append(out, domain.PurchaseResponse{ProductID: l.ProductID, Quantity: l.Quantity, Price: decimal.NewFromFloat(9.99)})
	}
	return out, nil
}

func (f *fakeReserver) Release(_ context.Context, reference string) error {
	f.released = append(f.released, reference)
	return f.err
}

type fakeCatalog struct {
	created []application.CreateProductRequest
}

func (f *fakeCatalog) CreateProduct(_ context.Context, req application.CreateProductRequest) (uint, error) {
	f.created = append(f.created, req)
	return 11, nil
}

func (f *fakeCatalog) FindProductByID(_ context.Context, id uint) (*application.ProductResponse, error) {
	if id != 1 {
		return nil, errors.Wrapf(domain.ErrProductNotFound, "product with id %d", id)
	}
	return &application.ProductResponse{ID: 1, Name: "keyboard"}, nil
}

func (f *fakeCatalog) FindAllProducts(context.Context) ([]application.ProductResponse, error) {
	return []application.ProductResponse{}, nil
}

func (f *fakeCatalog) CreateCategory(context.Context, application.CreateCategoryRequest) (uint, error) {
	return 3, nil
}

func (f *fakeCatalog) FindAllCategories(context.Context) ([]application.CategoryResponse, error) {
	return nil, nil
}

func newMux(r Reserver, c Catalog) *http.ServeMux {
	mux := http.NewServeMux()
	NewProductHandler(r, c).RegisterRoutes(mux)
	return mux
}

func TestPurchaseReturnsLines(t *testing.T) {
	reserver := &fakeReserver{}
	mux := newMux(reserver, &fakeCatalog{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/purchase?reference=ord-9", strings.NewReader(`[{"productId":1,"quantity":3}]`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp []domain.PurchaseResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp) != 1 || resp[0].ProductID != 1 || resp[0].Quantity != 3 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(reserver.references) != 1 || reserver.references[0] != "ord-9" {
		t.Fatalf("reference not forwarded: %v", reserver.references)
	}
}

func TestPurchaseErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   errcode.Code
	}{
		{errors.Wrap(domain.ErrProductNotFound, "ids [9]"), http.StatusNotFound, errcode.ProductNotFound},
		{errors.Wrap(domain.ErrInvalidQuantity, "product 1"), http.StatusUnprocessableEntity, errcode.InvalidQuantity},
		{errors.Wrap(domain.ErrInsufficientStock, "product 1"), http.StatusUnprocessableEntity, errcode.InsufficientStock},
		{domain.ErrStockConflict, http.StatusConflict, errcode.StockConflict},
		{errors.Wrap(domain.ErrDuplicateReservation, "ord-1"), http.StatusConflict, errcode.DuplicateReference},
		{errors.New("db down"), http.StatusInternalServerError, errcode.Internal},
	}
	for _, tc := range cases {
		mux := newMux(&fakeReserver{err: tc.err}, &fakeCatalog{})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/products/purchase", strings.NewReader(`[{"productId":1,"quantity":3}]`))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, rec.Code)
		}
		body, err := errcode.Decode(rec.Body)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Code != tc.code {
			t.Fatalf("%v: expected code %s, got %s", tc.err, tc.code, body.Code)
		}
	}
}

func TestPurchaseRejectsMalformedBody(t *testing.T) {
	mux := newMux(&fakeReserver{}, &fakeCatalog{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/purchase", strings.NewReader(`{"productId":`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestReleaseReturnsNoContent(t *testing.T) {
	reserver := &fakeReserver{}
	mux := newMux(reserver, &fakeCatalog{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/release", strings.NewReader(`{"reference":"ord-7"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if len(reserver.released) != 1 || reserver.released[0] != "ord-7" {
		t.Fatalf("release not forwarded: %+v", reserver.released)
	}
}

func TestReleaseRejectsEmptyReference(t *testing.T) {
	mux := newMux(&fakeReserver{err: errors.Wrap(domain.ErrInvalidReference, "empty")}, &fakeCatalog{})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/products/release", strings.NewReader(`{}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetProduct(t *testing.T) {
	mux := newMux(&fakeReserver{}, &fakeCatalog{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products/1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products/404", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products/abc", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCreateProductValidation(t *testing.T) {
	catalog := &fakeCatalog{}
	mux := newMux(&fakeReserver{}, catalog)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/products", strings.NewReader(`{"name":"","price":"-1"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	body, _ := errcode.Decode(rec.Body)
	for _, field := range []string{"name", "description", "availableQuantity", "price", "categoryId"} {
		if body.Fields[field] == "" {
			t.Fatalf("missing field error for %s: %+v", field, body.Fields)
		}
	}
	if len(catalog.created) != 0 {
		t.Fatalf("invalid product must not reach the catalog")
	}

	rec = httptest.NewRecorder()
	valid := `{"name":"mouse","description":"wireless","availableQuantity":0,"price":"19.90","categoryId":2}`
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/products", strings.NewReader(valid)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(catalog.created) != 1 || !catalog.created[0].Price.Equal(decimal.RequireFromString("19.90")) {
		t.Fatalf("unexpected created product: %+v", catalog.created)
	}
}
