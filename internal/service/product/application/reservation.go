package application

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ecommerce/internal/pkg/logger"
	"ecommerce/internal/pkg/metrics"
	"ecommerce/internal/service/product/domain"
	"ecommerce/internal/service/product/domain/port"
)

type ReservationOptions struct {
	MaxConflictRetries int
	ConflictBackoff    time.Duration
}

// ReservationEngine 是库存账本唯一的写入方。
// 一次预留要么全部扣减成功，要么不修改任何商品：先用快照校验所有明细，再在一个事务里提交。
type ReservationEngine struct {
	ledger domain.StockLedger
	locker port.ProductLocker // 为 nil 时只依赖乐观锁版本号
	opts   ReservationOptions
	tracer trace.Tracer
}

func NewReservationEngine(ledger domain.StockLedger, locker port.ProductLocker, opts ReservationOptions, tracer trace.Tracer) *ReservationEngine {
	return &ReservationEngine{ledger: ledger, locker: locker, opts: opts, tracer: tracer}
}

// alignedLine 是一条请求明细与它对应的库存商品
type alignedLine struct {
	line    domain.PurchaseRequest
	product *domain.Product
}

// Reserve 校验并扣减一批明细的库存。返回结果按商品 ID 升序排列，与请求顺序无关；
// 同一商品出现多次时按独立明细处理，依次消耗剩余库存。
func (e *ReservationEngine) Reserve(ctx context.Context, lines []domain.PurchaseRequest) ([]domain.PurchaseResponse, error) {
	return e.ReserveFor(ctx, "", lines)
}

// ReserveFor 与 Reserve 相同，但在同一事务里按订单号登记预留，之后可以用 Release 安全地撤销。
// reference 为空时不登记。
func (e *ReservationEngine) ReserveFor(ctx context.Context, reference string, lines []domain.PurchaseRequest) ([]domain.PurchaseResponse, error) {
	ctx, span := e.tracer.Start(ctx, "service.Reserve")
	defer span.End()
	span.SetAttributes(attribute.Int("purchase.lines", len(lines)), attribute.String("order.reference", reference))

	var responses []domain.PurchaseResponse
	err := e.withProducts(ctx, distinctIDs(lines), func(ctx context.Context, ids []uint) error {
		var err error
		responses, err = e.reserveOnce(ctx, ids, reference, lines)
		return err
	})
	metrics.Reservations.WithLabelValues(resultLabel(err)).Inc()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Ctx(ctx).Warn().Err(err).Str("reference", reference).Msg("🛑 reservation rejected")
		return nil, err
	}

	span.AddEvent("stock reserved")
	logger.Ctx(ctx).Info().Str("reference", reference).Int("lines", len(responses)).Msg("✅ stock reserved")
	return responses, nil
}

// Release 撤销某个订单号的预留，用于下单失败后的补偿，可以安全重放：
// 已释放的预留不会重复加回；找不到预留时登记一条取消记录，阻止之后迟到的同号预留。
func (e *ReservationEngine) Release(ctx context.Context, reference string) error {
	ctx, span := e.tracer.Start(ctx, "service.Release (Compensation)")
	defer span.End()
	span.SetAttributes(attribute.String("order.reference", reference))

	if reference == "" {
		return errors.Wrap(domain.ErrInvalidReference, "reference must not be empty")
	}

	// 先读一次记录以确定要锁的商品，真正的判断在 attempt 内重新读取
	var ids []uint
	rec, err := e.ledger.FindReservation(ctx, reference)
	switch {
	case err == nil:
		ids = distinctIDs(rec.Lines)
	case !errors.Is(err, domain.ErrReservationNotFound):
		return errors.Wrap(err, "failed to load reservation")
	}

	var outcome string
	err = e.withProducts(ctx, ids, func(ctx context.Context, _ []uint) error {
		var err error
		outcome, err = e.releaseOnce(ctx, reference)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Ctx(ctx).Error().Err(err).Str("reference", reference).Msg("stock release failed")
		return err
	}

	span.AddEvent("release " + outcome)
	logger.Ctx(ctx).Info().Str("reference", reference).Str("outcome", outcome).Msg("Compensation: release handled")
	return nil
}

// withProducts 处理加锁与冲突重试，attempt 在不可取消的 ctx 下运行，一旦开始提交就不会被客户端断开打断
func (e *ReservationEngine) withProducts(ctx context.Context, ids []uint, attempt func(ctx context.Context, ids []uint) error) error {
	if e.locker != nil && len(ids) > 0 {
		unlock, err := e.locker.LockProducts(ctx, ids)
		if err != nil {
			return errors.Wrap(err, "failed to lock products")
		}
		defer unlock()
	}

	runCtx := context.WithoutCancel(ctx)
	for try := 0; ; try++ {
		err := attempt(runCtx, ids)
		if !errors.Is(err, domain.ErrStockConflict) || try >= e.opts.MaxConflictRetries {
			return err
		}

		metrics.ReservationConflicts.Inc()
		trace.SpanFromContext(ctx).AddEvent("stock conflict, retrying", trace.WithAttributes(attribute.Int("attempt", try+1)))
		logger.Ctx(ctx).Warn().Int("attempt", try+1).Msg("stock version conflict, retrying")

		select {
		case <-time.After(e.opts.ConflictBackoff * time.Duration(try+1)):
		case <-ctx.Done():
			// 还没有任何写入，直接放弃
			return err
		}
	}
}

func (e *ReservationEngine) reserveOnce(ctx context.Context, ids []uint, reference string, lines []domain.PurchaseRequest) ([]domain.PurchaseResponse, error) {
	if len(lines) == 0 {
		return []domain.PurchaseResponse{}, nil
	}

	var transition *domain.ReservationTransition
	if reference != "" {
		var err error
		if transition, err = e.holdTransition(ctx, reference, lines); err != nil {
			return nil, err
		}
	}

	products, err := e.load(ctx, ids)
	if err != nil {
		return nil, err
	}

	aligned := alignByID(lines, products)

	// 校验阶段：只读快照，任何一条不通过都不会产生写入
	remaining := make(map[uint]float64, len(products))
	responses := make([]domain.PurchaseResponse, 0, len(aligned))
	for _, a := range aligned {
		p, qty := a.product, a.line.Quantity
		if !(qty > 0) {
			return nil, errors.Wrapf(domain.ErrInvalidQuantity, "product %d: quantity must be positive, got %v", p.ID, qty)
		}
		available, seen := remaining[p.ID]
		if !seen {
			available = p.AvailableQuantity
		}
		if available < qty {
			return nil, errors.Wrapf(domain.ErrInsufficientStock, "product %d: requested %v, available %v", p.ID, qty, available)
		}
		remaining[p.ID] = available - qty
		responses = append(responses, domain.PurchaseResponse{
			ProductID:   p.ID,
			Name:        p.Name,
			Description: p.Description,
			Price:       p.Price,
			Quantity:    qty,
		})
	}

	// 提交阶段：每个商品只写一次，预留记录随同一事务写入
	if err := e.ledger.ApplyStockChanges(ctx, stockChanges(products, remaining), transition); err != nil {
		return nil, err
	}
	return responses, nil
}

// holdTransition 决定订单号的预留记录如何进入 HELD：新建，或复用一条已释放的记录
func (e *ReservationEngine) holdTransition(ctx context.Context, reference string, lines []domain.PurchaseRequest) (*domain.ReservationTransition, error) {
	t := &domain.ReservationTransition{Reference: reference, Lines: lines, To: domain.ReservationHeld}

	rec, err := e.ledger.FindReservation(ctx, reference)
	if errors.Is(err, domain.ErrReservationNotFound) {
		return t, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load reservation")
	}
	if rec.Status != domain.ReservationReleased {
		return nil, errors.Wrapf(domain.ErrDuplicateReservation, "reference %s is %s", reference, rec.Status)
	}
	t.From, t.ExpectedVersion = rec.Status, rec.Version
	return t, nil
}

// releaseOnce 返回本次释放的结果，用于日志与链路事件
func (e *ReservationEngine) releaseOnce(ctx context.Context, reference string) (string, error) {
	rec, err := e.ledger.FindReservation(ctx, reference)
	if errors.Is(err, domain.ErrReservationNotFound) {
		tombstone := &domain.ReservationTransition{Reference: reference, To: domain.ReservationCancelled}
		return "no reservation", e.ledger.ApplyStockChanges(ctx, nil, tombstone)
	}
	if err != nil {
		return "", errors.Wrap(err, "failed to load reservation")
	}
	if rec.Status != domain.ReservationHeld {
		return "already " + strings.ToLower(string(rec.Status)), nil
	}

	products, err := e.load(ctx, distinctIDs(rec.Lines))
	if err != nil {
		return "", err
	}
	remaining := make(map[uint]float64, len(products))
	for _, a := range alignByID(rec.Lines, products) {
		p := a.product
		available, seen := remaining[p.ID]
		if !seen {
			available = p.AvailableQuantity
		}
		remaining[p.ID] = available + a.line.Quantity
	}

	transition := &domain.ReservationTransition{
		Reference:       reference,
		Lines:           rec.Lines,
		From:            domain.ReservationHeld,
		ExpectedVersion: rec.Version,
		To:              domain.ReservationReleased,
	}
	return "released", e.ledger.ApplyStockChanges(ctx, stockChanges(products, remaining), transition)
}

// load 读取快照并做存在性检查
func (e *ReservationEngine) load(ctx context.Context, ids []uint) ([]domain.Product, error) {
	products, err := e.ledger.FindAllByIDsOrderByID(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load products")
	}
	if missing := missingIDs(ids, products); len(missing) > 0 {
		return nil, errors.Wrapf(domain.ErrProductNotFound, "one or more products do not exist: %v", missing)
	}
	return products, nil
}

// alignByID 按商品 ID 稳定排序请求明细，并与按 ID 排序的库存快照一一对应。
// 调用方必须已经确认每个 ID 都有对应的商品。
func alignByID(lines []domain.PurchaseRequest, products []domain.Product) []alignedLine {
	sorted := make([]domain.PurchaseRequest, len(lines))
	copy(sorted, lines)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ProductID < sorted[j].ProductID })

	aligned := make([]alignedLine, 0, len(sorted))
	pi := 0
	for _, line := range sorted {
		for products[pi].ID != line.ProductID {
			pi++
		}
		aligned = append(aligned, alignedLine{line: line, product: &products[pi]})
	}
	return aligned
}

func stockChanges(products []domain.Product, remaining map[uint]float64) []domain.StockChange {
	changes := make([]domain.StockChange, 0, len(products))
	for _, p := range products {
		if qty, ok := remaining[p.ID]; ok {
			changes = append(changes, domain.StockChange{ProductID: p.ID, NewQuantity: qty, ExpectedVersion: p.Version})
		}
	}
	return changes
}

// distinctIDs 返回去重后的升序 ID
func distinctIDs(lines []domain.PurchaseRequest) []uint {
	seen := make(map[uint]struct{}, len(lines))
	ids := make([]uint, 0, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.ProductID]; ok {
			continue
		}
		seen[l.ProductID] = struct{}{}
		ids = append(ids, l.ProductID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func missingIDs(ids []uint, products []domain.Product) []uint {
	found := make(map[uint]struct{}, len(products))
	for _, p := range products {
		found[p.ID] = struct{}{}
	}
	var missing []uint
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, domain.ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrStockConflict):
		return "conflict"
	case errors.Is(err, domain.ErrDuplicateReservation):
		return "duplicate_reference"
	default:
		return "error"
	}
}
