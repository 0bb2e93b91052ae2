package application

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace/noop"

	"ecommerce/internal/service/order/domain"
)

type fakeCustomers struct {
	customers map[string]*domain.Customer
	err       error
	delay     time.Duration
}

func (f *fakeCustomers) FindByID(ctx context.Context, id string) (*domain.Customer, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.customers[id], nil
}

// fakeInventory 按订单号记录预留，释放只对持有的预留生效
type fakeInventory struct {
	mu        sync.Mutex
	err       error
	purchased [][]domain.PurchaseLine
	released  []string
	held      map[string]bool

	// 模拟库存服务已经提交、但响应没有回到订单服务
	errAfterCommit  error
	hangAfterCommit bool
	delay           time.Duration
}

func (f *fakeInventory) PurchaseProducts(ctx context.Context, reference string, lines []domain.PurchaseLine) ([]domain.PurchasedProduct, error) {
	f.mu.Lock()
	if f.err != nil {
		f.mu.Unlock()
		return nil, f.err
	}
	f.purchased = append(f.purchased, lines)
	if f.held == nil {
		f.held = map[string]bool{}
	}
	f.held[reference] = true
	hang, errAfter, delay := f.hangAfterCommit, f.errAfterCommit, f.delay
	f.mu.Unlock()

	if hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if errAfter != nil {
		return nil, errAfter
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	out := make([]domain.PurchasedProduct, 0, len(lines))
	for _, l := range lines {
		out = append(out, domain.PurchasedProduct{ProductID: l.ProductID, Quantity: l.Quantity, Price: decimal.NewFromInt(10)})
	}
	return out, nil
}

func (f *fakeInventory) ReleaseProducts(_ context.Context, reference string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, reference)
	delete(f.held, reference)
	return nil
}

func (f *fakeInventory) holding(reference string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.held[reference]
}

type fakePublisher struct {
	mu   sync.Mutex
	err  error
	sent []*domain.OrderConfirmation
}

func (f *fakePublisher) Publish(_ context.Context, c *domain.OrderConfirmation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, c)
	return nil
}

type memOrders struct {
	mu     sync.Mutex
	err    error
	orders []domain.Order
	lines  []domain.OrderLine
}

func (m *memOrders) CreateWithLines(_ context.Context, o *domain.Order, lines []domain.PurchaseLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, existing := range m.orders {
		if existing.Reference == o.Reference {
			return domain.ErrDuplicateReference
		}
	}
	o.ID = uint(len(m.orders) + 1)
	m.orders = append(m.orders, *o)
	for _, l := range domain.NewOrderLines(o.ID, lines) {
		l.ID = uint(len(m.lines) + 1)
		m.lines = append(m.lines, l)
	}
	return nil
}

func (m *memOrders) FindByID(_ context.Context, id uint) (*domain.Order, error) {
	for _, o := range m.orders {
		if o.ID == id {
			return &o, nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (m *memOrders) FindAll(context.Context) ([]domain.Order, error) {
	return m.orders, nil
}

func (m *memOrders) FindLinesByOrderID(_ context.Context, id uint) ([]domain.OrderLine, error) {
	if _, err := m.FindByID(context.Background(), id); err != nil {
		return nil, err
	}
	var out []domain.OrderLine
	for _, l := range m.lines {
		if l.OrderID == id {
			out = append(out, l)
		}
	}
	return out, nil
}

type fixture struct {
	opts      Options
	svc       *OrderApplicationService
	orders    *memOrders
	inventory *fakeInventory
	publisher *fakePublisher
	customers *fakeCustomers
}

func newFixture() *fixture {
	f := &fixture{
		orders:    &memOrders{},
		inventory: &fakeInventory{},
		publisher: &fakePublisher{},
		customers: &fakeCustomers{customers: map[string]*domain.Customer{
			"c-1": {ID: "c-1", Firstname: "Ada", Lastname: "Lovelace", Email: "ada@example.com"},
		}},
	}
	f.opts = Options{
		CustomerTimeout:     50 * time.Millisecond,
		InventoryTimeout:    time.Second,
		PublishTimeout:      time.Second,
		CompensationTimeout: time.Second,
	}
	f.svc = NewOrderApplicationService(f.orders, noop.NewTracerProvider().Tracer("test"),
		func() Options { return f.opts }, f.customers, f.inventory, f.publisher)
	return f
}

func validRequest(reference string) *CreateOrderRequest {
	return &CreateOrderRequest{
		Reference:     reference,
		Amount:        decimal.RequireFromString("42.50"),
		PaymentMethod: domain.PaymentVisa,
		CustomerID:    "c-1",
		Products:      []domain.PurchaseLine{{ProductID: 2, Quantity: 1}, {ProductID: 1, Quantity: 3}},
	}
}

func (f *fixture) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := f.svc.Wait(ctx); err != nil {
		t.Fatalf("publishes did not drain: %v", err)
	}
}

func TestPlaceOrderSuccess(t *testing.T) {
	f := newFixture()
	id, err := f.svc.PlaceOrder(context.Background(), validRequest("ref-1"))
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if id == 0 {
		t.Fatalf("expected a non-zero order id")
	}
	f.drain(t)

	if len(f.publisher.sent) != 1 {
		t.Fatalf("expected one confirmation, got %d", len(f.publisher.sent))
	}
	c := f.publisher.sent[0]
	if c.OrderReference != "ref-1" || c.Customer.Email != "ada@example.com" || len(c.Products) != 2 {
		t.Fatalf("unexpected confirmation: %+v", c)
	}
	if c.EventID == "" {
		t.Fatalf("confirmation must carry an event id")
	}

	lines, err := f.svc.FindLinesByOrderID(context.Background(), id)
	if err != nil {
		t.Fatalf("find lines: %v", err)
	}
	// 明细保持请求原始顺序
	if len(lines) != 2 || lines[0].ProductID != 2 || lines[1].ProductID != 1 {
		t.Fatalf("unexpected lines: %+v", lines)
	}
}

func TestPlaceOrderUnknownCustomerLeavesStockUntouched(t *testing.T) {
	f := newFixture()
	req := validRequest("ref-2")
	req.CustomerID = "ghost"

	_, err := f.svc.PlaceOrder(context.Background(), req)
	if !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}
	if len(f.inventory.purchased) != 0 || len(f.orders.orders) != 0 {
		t.Fatalf("no stock or order expected, got %v / %v", f.inventory.purchased, f.orders.orders)
	}
	f.drain(t)
	if len(f.publisher.sent) != 0 {
		t.Fatalf("no confirmation expected")
	}
}

func TestPlaceOrderCustomerTimeoutIsNotFound(t *testing.T) {
	f := newFixture()
	f.customers.delay = time.Second

	_, err := f.svc.PlaceOrder(context.Background(), validRequest("ref-3"))
	if !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}
	if len(f.inventory.purchased) != 0 {
		t.Fatalf("inventory must not be called")
	}
}

func TestPlaceOrderInventoryRejection(t *testing.T) {
	f := newFixture()
	f.inventory.err = errors.Wrap(domain.ErrInsufficientStock, "product 1: requested 3, available 1")

	_, err := f.svc.PlaceOrder(context.Background(), validRequest("ref-4"))
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if len(f.orders.orders) != 0 || len(f.inventory.released) != 0 {
		t.Fatalf("nothing to persist or release")
	}
}

func TestPlaceOrderPersistenceFailureReleasesStock(t *testing.T) {
	f := newFixture()
	f.orders.err = errors.New("connection reset")

	_, err := f.svc.PlaceOrder(context.Background(), validRequest("ref-5"))
	if err == nil {
		t.Fatalf("expected persistence failure")
	}
	if len(f.inventory.released) != 1 || f.inventory.released[0] != "ref-5" {
		t.Fatalf("expected ref-5 to be released, got %v", f.inventory.released)
	}
	if f.inventory.holding("ref-5") {
		t.Fatalf("reservation for ref-5 still held")
	}
}

func TestPlaceOrderDuplicateReference(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.PlaceOrder(context.Background(), validRequest("ref-6")); err != nil {
		t.Fatalf("first order: %v", err)
	}
	_, err := f.svc.PlaceOrder(context.Background(), validRequest("ref-6"))
	if !errors.Is(err, domain.ErrDuplicateReference) {
		t.Fatalf("expected ErrDuplicateReference, got %v", err)
	}
	if len(f.inventory.released) != 1 || f.inventory.released[0] != "ref-6" {
		t.Fatalf("second reservation must be released, got %v", f.inventory.released)
	}
	f.drain(t)
}

func TestPlaceOrderDuplicateReferenceRejectedByInventory(t *testing.T) {
	f := newFixture()
	f.inventory.err = errors.Wrap(domain.ErrDuplicateReference, "reference ref-9 is HELD")

	_, err := f.svc.PlaceOrder(context.Background(), validRequest("ref-9"))
	if !errors.Is(err, domain.ErrDuplicateReference) {
		t.Fatalf("expected ErrDuplicateReference, got %v", err)
	}
	// 该订单号的预留属于另一笔订单，不能释放
	if len(f.inventory.released) != 0 {
		t.Fatalf("foreign reservation must not be released, got %v", f.inventory.released)
	}
}

func TestPlaceOrderLostReservationResponseIsReleased(t *testing.T) {
	f := newFixture()
	f.opts.InventoryTimeout = 100 * time.Millisecond
	f.inventory.hangAfterCommit = true

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := f.svc.PlaceOrder(ctx, validRequest("ref-10"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if len(f.inventory.released) != 1 || f.inventory.released[0] != "ref-10" {
		t.Fatalf("committed reservation must be released, got %v", f.inventory.released)
	}
	if f.inventory.holding("ref-10") {
		t.Fatalf("stock leaked for ref-10")
	}
	if len(f.orders.orders) != 0 {
		t.Fatalf("no order expected")
	}
}

func TestPlaceOrderTransportErrorAfterCommitIsReleased(t *testing.T) {
	f := newFixture()
	f.inventory.errAfterCommit = errors.New("read tcp: connection reset by peer")

	_, err := f.svc.PlaceOrder(context.Background(), validRequest("ref-11"))
	if err == nil {
		t.Fatalf("expected transport failure")
	}
	if f.inventory.holding("ref-11") {
		t.Fatalf("stock leaked for ref-11, released %v", f.inventory.released)
	}
}

func TestPlaceOrderReservationOutlivesRequestCancel(t *testing.T) {
	f := newFixture()
	f.inventory.delay = 60 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	id, err := f.svc.PlaceOrder(ctx, validRequest("ref-12"))
	if err != nil || id == 0 {
		t.Fatalf("reservation must run to completion, got %d, %v", id, err)
	}
	if len(f.inventory.released) != 0 {
		t.Fatalf("nothing to release, got %v", f.inventory.released)
	}
	f.drain(t)
}

func TestPlaceOrderPublishFailureStillSucceeds(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	f := newFixture()
	f.publisher.err = errors.New("broker unavailable")

	id, err := f.svc.PlaceOrder(context.Background(), validRequest("ref-7"))
	if err != nil || id == 0 {
		t.Fatalf("expected success, got %d, %v", id, err)
	}
	f.drain(t)
	if len(f.inventory.released) != 0 {
		t.Fatalf("publish failure must not trigger compensation")
	}

	// 失败日志带完整事件，可以原样重新发布
	var entry struct {
		Message string                   `json:"message"`
		Event   domain.OrderConfirmation `json:"event"`
	}
	found := false
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if err := json.Unmarshal([]byte(line), &entry); err == nil && strings.Contains(entry.Message, "failed to publish") {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("publish failure not logged: %s", buf.String())
	}
	if entry.Event.OrderReference != "ref-7" || entry.Event.EventID == "" || len(entry.Event.Products) != 2 {
		t.Fatalf("logged event incomplete: %+v", entry.Event)
	}
}

func TestPlaceOrderValidation(t *testing.T) {
	f := newFixture()
	req := &CreateOrderRequest{Amount: decimal.NewFromInt(-1), PaymentMethod: "CASH"}

	_, err := f.svc.PlaceOrder(context.Background(), req)
	if !errors.Is(err, domain.ErrInvalidOrder) {
		t.Fatalf("expected ErrInvalidOrder, got %v", err)
	}
	fields := req.Validate()
	for _, name := range []string{"reference", "amount", "paymentMethod", "customerId", "products"} {
		if fields[name] == "" {
			t.Fatalf("missing field error for %s: %v", name, fields)
		}
	}
}

func TestFindOrders(t *testing.T) {
	f := newFixture()
	all, err := f.svc.FindAll(context.Background())
	if err != nil || all == nil || len(all) != 0 {
		t.Fatalf("expected empty list, got %v, %v", all, err)
	}

	id, err := f.svc.PlaceOrder(context.Background(), validRequest("ref-8"))
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	f.drain(t)

	got, err := f.svc.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if got.Reference != "ref-8" || !got.Amount.Equal(decimal.RequireFromString("42.5")) {
		t.Fatalf("unexpected order: %+v", got)
	}

	if _, err := f.svc.FindByID(context.Background(), 99); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
	if _, err := f.svc.FindLinesByOrderID(context.Background(), 99); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}
