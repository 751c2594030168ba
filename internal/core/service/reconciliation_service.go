package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/inventory-reconciler/internal/core/domain"
	"github.com/rl1809/inventory-reconciler/internal/port"
)

const (
	idempotencyKeyPrefix = "idempotency:"

	MsgTransferSuccess = "Transfer successful and inventory updated!"
	MsgTransferFailed  = "Failed to update inventory on the server."
	MsgItemsBilled     = "Items Billed!"
	MsgBillFailed      = "Failed to update order"
)

type ReconciliationOptions struct {
	LockTTL   time.Duration
	LockWait  time.Duration
	QueueSize int
}

// ReconciliationService moves quantity between inventory buckets and billing states.
// Local snapshots are never mutated ahead of the store: every change is validated against
// a fresh read, persisted, and then re-read so callers always get the store's view.
type ReconciliationService struct {
	store    port.Store
	cache    port.CacheRepository
	journal  port.JournalRepository
	sessions *SessionService
	logger   *zap.Logger
	leases   *leaseLocker
	now      func() time.Time

	// queueMu guards closing journalQueue against in-flight sends.
	queueMu      sync.RWMutex
	queueClosed  bool
	journalQueue chan domain.TransferRecord
}

func NewReconciliationService(
	store port.Store,
	cache port.CacheRepository,
	journal port.JournalRepository,
	sessions *SessionService,
	logger *zap.Logger,
	opts ReconciliationOptions,
) *ReconciliationService {
	return &ReconciliationService{
		store:        store,
		cache:        cache,
		journal:      journal,
		sessions:     sessions,
		logger:       logger,
		leases:       newLeaseLocker(cache, logger, opts.LockTTL, opts.LockWait),
		journalQueue: make(chan domain.TransferRecord, opts.QueueSize),
		now:          time.Now,
	}
}

type TransferRequest struct {
	SourceIndex int
	// ItemName, when set, must match the virtual entry at SourceIndex.
	ItemName  string
	Quantity  string
	RequestID string
}

type TransferResult struct {
	Warehouse domain.Warehouse
	Record    *domain.TransferRecord
	// Advisory is set when the post-persist re-read failed and Warehouse is the planned snapshot.
	Advisory bool
	Message  string
}

// ValidateTransfer runs the validator for one virtual inventory row against the store's current quantity.
func (s *ReconciliationService) ValidateTransfer(ctx context.Context, sessionID string, sourceIndex int, quantity string) (Decision, error) {
	warehouseID, err := s.sessions.ActiveWarehouse(ctx, sessionID)
	if err != nil {
		return Decision{}, err
	}

	qty, err := ParseQuantity(quantity)
	if err != nil {
		return Decision{Reason: err.Error()}, nil
	}

	snapshot, err := s.fetchWarehouse(ctx, warehouseID)
	if err != nil {
		return Decision{}, err
	}
	if sourceIndex < 0 || sourceIndex >= len(snapshot.VirtualInventory) {
		return Decision{}, fmt.Errorf("%w: virtual inventory index %d", ErrItemNotFound, sourceIndex)
	}

	return Validate(qty, snapshot.VirtualInventory[sourceIndex].Quantity), nil
}

// TransferInventory moves quantity of one virtual inventory entry of the session's warehouse
// into billed inventory. A RequestID is claimed before any planning, so replaying a confirmed
// transfer reports ErrDuplicateRequest even after the virtual entry is gone.
func (s *ReconciliationService) TransferInventory(ctx context.Context, sessionID string, req TransferRequest) (_ *TransferResult, err error) {
	warehouseID, err := s.sessions.ActiveWarehouse(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	qty, err := ParseQuantity(req.Quantity)
	if err != nil {
		return nil, err
	}

	if qty.IsZero() {
		snapshot, err := s.fetchWarehouse(ctx, warehouseID)
		if err != nil {
			return nil, err
		}
		if _, err := planFromRequest(*snapshot, req, qty); err != nil {
			return nil, err
		}
		return &TransferResult{Warehouse: *snapshot}, nil
	}

	if req.RequestID != "" {
		if err := s.claimRequest(ctx, req.RequestID); err != nil {
			return nil, err
		}
		// Only a persisted transfer keeps its claim.
		defer func() {
			if err != nil {
				s.releaseRequest(ctx, req.RequestID)
			}
		}()
	}

	itemName := req.ItemName
	if itemName == "" {
		snapshot, err := s.fetchWarehouse(ctx, warehouseID)
		if err != nil {
			return nil, err
		}
		plan, err := planFromRequest(*snapshot, req, qty)
		if err != nil {
			return nil, err
		}
		itemName = plan.Source.ItemName
	}

	release, err := s.leases.lock(ctx, itemLockName(warehouseID, itemName))
	if err != nil {
		return nil, err
	}
	defer release()

	// Re-read under the lock; anything read before it may already be stale.
	snapshot, err := s.fetchWarehouse(ctx, warehouseID)
	if err != nil {
		return nil, err
	}
	req.ItemName = itemName
	plan, err := planFromRequest(*snapshot, req, qty)
	if err != nil {
		return nil, err
	}

	if err := s.store.UpdateInventoryItem(ctx, warehouseID, plan.Persist); err != nil {
		s.logger.Error("inventory transfer failed",
			zap.String("warehouse_id", warehouseID),
			zap.String("item_name", itemName),
			zap.String("quantity", qty.String()),
			zap.Error(err))
		return nil, &PersistError{Message: MsgTransferFailed, Err: err}
	}

	record := domain.TransferRecord{
		ID:          uuid.NewString(),
		Kind:        domain.TransferKindInventory,
		WarehouseID: warehouseID,
		ItemName:    itemName,
		Quantity:    qty,
		BillType:    domain.BillTypeBilled,
		RequestID:   req.RequestID,
		CreatedAt:   s.now(),
	}
	s.enqueue(ctx, record)

	s.logger.Info("inventory transferred",
		zap.String("transfer_id", record.ID),
		zap.String("warehouse_id", warehouseID),
		zap.String("item_name", itemName),
		zap.String("quantity", qty.String()),
		zap.String("virtual_after", plan.VirtualAfter.String()),
		zap.String("billed_after", plan.BilledAfter.String()))

	result := &TransferResult{Record: &record, Message: MsgTransferSuccess}
	fresh, rerr := s.store.GetWarehouse(ctx, warehouseID)
	if rerr != nil {
		s.logger.Warn("re-read after transfer failed, returning planned snapshot",
			zap.String("warehouse_id", warehouseID), zap.Error(rerr))
		result.Warehouse = plan.Result
		result.Advisory = true
		return result, nil
	}
	result.Warehouse = *fresh
	return result, nil
}

func planFromRequest(snapshot domain.Warehouse, req TransferRequest, qty decimal.Decimal) (*TransferPlan, error) {
	if req.SourceIndex < 0 || req.SourceIndex >= len(snapshot.VirtualInventory) {
		if req.ItemName != "" {
			return nil, fmt.Errorf("%w: %s", ErrStaleSnapshot, req.ItemName)
		}
		return nil, fmt.Errorf("%w: virtual inventory index %d", ErrItemNotFound, req.SourceIndex)
	}
	if req.ItemName != "" && snapshot.VirtualInventory[req.SourceIndex].ItemName != req.ItemName {
		return nil, fmt.Errorf("%w: expected %s at index %d, found %s",
			ErrStaleSnapshot, req.ItemName, req.SourceIndex, snapshot.VirtualInventory[req.SourceIndex].ItemName)
	}
	return PlanTransfer(snapshot, req.SourceIndex, qty)
}

type BillRequest struct {
	OrderID string
	// Quantities is raw user input keyed by line item name.
	Quantities map[string]string
	Filter     OrderFilter
}

type BillResult struct {
	Order   *domain.Order
	Orders  []domain.Order
	Billed  []port.BillTypeUpdate
	Records []domain.TransferRecord
	// Advisory is set when the post-persist re-read failed and Orders is empty.
	Advisory bool
	Message  string
}

// ValidateBill reports the per-item reasons a partial billing batch would be rejected.
func (s *ReconciliationService) ValidateBill(ctx context.Context, sessionID, orderID string, quantities map[string]string) (map[string]string, error) {
	warehouseID, err := s.sessions.ActiveWarehouse(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	requested, reasons := parseBatch(quantities)

	_, order, err := s.fetchOrder(ctx, warehouseID, orderID)
	if err != nil {
		return nil, err
	}

	for name, reason := range ValidateBatch(*order, requested) {
		reasons[name] = reason
	}
	return reasons, nil
}

// BillPartial bills part of each line item of one order. The batch is all-or-nothing:
// a single invalid entry rejects it before any call to the store.
func (s *ReconciliationService) BillPartial(ctx context.Context, sessionID string, req BillRequest) (*BillResult, error) {
	warehouseID, err := s.sessions.ActiveWarehouse(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	requested, reasons := parseBatch(req.Quantities)
	if len(reasons) > 0 {
		return nil, &BatchValidationError{Reasons: reasons, Cause: ErrInvalidQuantity}
	}

	hasWork := false
	for _, q := range requested {
		if !q.IsZero() {
			hasWork = true
			break
		}
	}
	if hasWork {
		release, err := s.leases.lock(ctx, orderLockName(warehouseID, req.OrderID))
		if err != nil {
			return nil, err
		}
		defer release()
	}

	orders, order, err := s.fetchOrder(ctx, warehouseID, req.OrderID)
	if err != nil {
		return nil, err
	}

	if reasons := ValidateBatch(*order, requested); len(reasons) > 0 {
		return nil, &BatchValidationError{Reasons: reasons, Cause: ErrQuantityExceedsAvailable}
	}
	if reasons := validateRemaining(*order, requested); len(reasons) > 0 {
		return nil, &BatchValidationError{Reasons: reasons, Cause: ErrQuantityExceedsAvailable}
	}

	filter := req.Filter
	filter.WarehouseID = warehouseID

	updates := buildBillUpdates(*order, requested)
	if len(updates) == 0 {
		return &BillResult{Order: order, Orders: Project(orders, filter, s.now())}, nil
	}

	if err := s.store.UpdateBillTypePartWise(ctx, order.ID, updates); err != nil {
		s.logger.Error("partial billing failed",
			zap.String("order_id", order.ID),
			zap.Int("items", len(updates)),
			zap.Error(err))
		return nil, &PersistError{Message: MsgBillFailed, Err: err}
	}

	result := &BillResult{Billed: updates, Message: MsgItemsBilled}
	for _, u := range updates {
		record := domain.TransferRecord{
			ID:          uuid.NewString(),
			Kind:        domain.TransferKindBilling,
			WarehouseID: warehouseID,
			OrderID:     order.ID,
			ItemName:    u.Name,
			Quantity:    u.Quantity,
			BillType:    u.BillType,
			CreatedAt:   s.now(),
		}
		result.Records = append(result.Records, record)
		s.enqueue(ctx, record)
	}
	s.logger.Info("order items billed", zap.String("order_id", order.ID), zap.Int("items", len(updates)))

	fresh, err := s.store.ListOrders(ctx)
	if err != nil {
		s.logger.Warn("re-read after billing failed", zap.String("order_id", order.ID), zap.Error(err))
		result.Order = order
		result.Advisory = true
		return result, nil
	}
	result.Orders = Project(fresh, filter, s.now())
	for i := range fresh {
		if fresh[i].ID == order.ID {
			result.Order = &fresh[i]
			break
		}
	}
	if result.Order == nil {
		result.Order = order
		result.Advisory = true
	}
	return result, nil
}

// buildBillUpdates keeps the order's line item sequence and skips zero quantities.
func buildBillUpdates(order domain.Order, requested map[string]decimal.Decimal) []port.BillTypeUpdate {
	var updates []port.BillTypeUpdate
	for _, item := range order.Items {
		q, ok := requested[item.Name]
		if !ok || q.IsZero() {
			continue
		}
		updates = append(updates, port.BillTypeUpdate{
			Name:     item.Name,
			Quantity: q,
			BillType: domain.BillTypeVirtualBilled,
		})
	}
	return updates
}

// ListTransfers returns the journal of the session's warehouse, newest first.
func (s *ReconciliationService) ListTransfers(ctx context.Context, sessionID string, limit int) ([]domain.TransferRecord, error) {
	warehouseID, err := s.sessions.ActiveWarehouse(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	records, err := s.journal.ListByWarehouse(ctx, warehouseID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	return records, nil
}

func (s *ReconciliationService) GetJournalQueue() <-chan domain.TransferRecord {
	return s.journalQueue
}

// Close stops the journal queue. Records confirmed after Close are logged and dropped.
func (s *ReconciliationService) Close() {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	if s.queueClosed {
		return
	}
	s.queueClosed = true
	close(s.journalQueue)
}

func (s *ReconciliationService) enqueue(ctx context.Context, record domain.TransferRecord) {
	s.queueMu.RLock()
	defer s.queueMu.RUnlock()
	if s.queueClosed {
		s.logger.Warn("journal record dropped after shutdown", zap.String("transfer_id", record.ID))
		return
	}
	select {
	case s.journalQueue <- record:
	case <-ctx.Done():
		s.logger.Warn("journal record dropped", zap.String("transfer_id", record.ID), zap.Error(ctx.Err()))
	}
}

func (s *ReconciliationService) fetchWarehouse(ctx context.Context, id string) (*domain.Warehouse, error) {
	w, err := s.store.GetWarehouse(ctx, id)
	if err != nil {
		if errors.Is(err, port.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrWarehouseNotFound, id)
		}
		return nil, fmt.Errorf("fetch warehouse %s: %w", id, err)
	}
	return w, nil
}

// fetchOrder reads the full order list, since the store has no single-order endpoint.
func (s *ReconciliationService) fetchOrder(ctx context.Context, warehouseID, orderID string) ([]domain.Order, *domain.Order, error) {
	orders, err := s.store.ListOrders(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch orders: %w", err)
	}
	for i := range orders {
		if orders[i].ID == orderID {
			if orders[i].Warehouse != warehouseID {
				break
			}
			return orders, &orders[i], nil
		}
	}
	return nil, nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
}

func (s *ReconciliationService) claimRequest(ctx context.Context, requestID string) error {
	ok, err := s.cache.SetIdempotency(ctx, idempotencyKeyPrefix+requestID)
	if err != nil {
		return fmt.Errorf("idempotency check failed: %w", err)
	}
	if !ok {
		return ErrDuplicateRequest
	}
	return nil
}

func (s *ReconciliationService) releaseRequest(ctx context.Context, requestID string) {
	if requestID == "" {
		return
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := s.cache.ClearIdempotency(rctx, idempotencyKeyPrefix+requestID); err != nil {
		s.logger.Warn("clear idempotency key failed", zap.String("request_id", requestID), zap.Error(err))
	}
}
