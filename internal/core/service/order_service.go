package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/inventory-reconciler/internal/core/domain"
	"github.com/rl1809/inventory-reconciler/internal/port"
)

var mlPerMetricTon = decimal.NewFromInt(1_000_000)

type OrderService struct {
	store    port.Store
	sessions *SessionService
	leases   *leaseLocker
	logger   *zap.Logger
	now      func() time.Time
}

// NewOrderService takes the lock settings from opts so updates and partial billing of the
// same order are serialized on one lease.
func NewOrderService(store port.Store, cache port.CacheRepository, sessions *SessionService, logger *zap.Logger, opts ReconciliationOptions) *OrderService {
	return &OrderService{
		store:    store,
		sessions: sessions,
		leases:   newLeaseLocker(cache, logger, opts.LockTTL, opts.LockWait),
		logger:   logger,
		now:      time.Now,
	}
}

// ListOrders returns the session warehouse's orders with the filter applied, newest first.
func (s *OrderService) ListOrders(ctx context.Context, sessionID string, filter OrderFilter) ([]domain.Order, error) {
	warehouseID, err := s.sessions.ActiveWarehouse(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	orders, err := s.store.ListOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	filter.WarehouseID = warehouseID
	return Project(orders, filter, s.now()), nil
}

// CreateOrder validates a new order for the session's warehouse, derives each item's weight
// and hands it to the store.
func (s *OrderService) CreateOrder(ctx context.Context, sessionID string, order domain.Order) (*domain.Order, error) {
	if order.Warehouse == "" {
		warehouseID, err := s.sessions.ActiveWarehouse(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		order.Warehouse = warehouseID
	}
	if order.BillType == "" {
		order.BillType = domain.BillTypeVirtualBilled
	}
	if order.Status == "" {
		order.Status = domain.OrderStatusCreated
	}

	if fields := validateOrder(order); len(fields) > 0 {
		return nil, &FieldError{Fields: fields, Cause: ErrInvalidOrder}
	}

	items := make([]domain.OrderLineItem, len(order.Items))
	for i, item := range order.Items {
		item.Weight = ItemWeight(item)
		item.BilledQuantity = decimal.Zero
		items[i] = item
	}
	order.Items = items

	created, err := s.store.CreateOrder(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.logger.Info("order created",
		zap.String("order_id", created.ID),
		zap.String("company_bargain_no", created.CompanyBargainNo),
		zap.String("warehouse_id", created.Warehouse),
		zap.Int("items", len(created.Items)))
	return created, nil
}

// UpdateOrder merges the supplied fields of patch into the stored order of the session's
// warehouse. Empty strings, zero decimals and a zero date keep the stored value. Line items are
// matched by name and always keep the stored billed quantity, which only partial billing changes.
func (s *OrderService) UpdateOrder(ctx context.Context, sessionID, id string, patch domain.Order) (*domain.Order, error) {
	warehouseID, err := s.sessions.ActiveWarehouse(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	release, err := s.leases.lock(ctx, orderLockName(warehouseID, id))
	if err != nil {
		return nil, err
	}
	defer release()

	orders, err := s.store.ListOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch orders: %w", err)
	}
	var current *domain.Order
	for i := range orders {
		if orders[i].ID == id && orders[i].Warehouse == warehouseID {
			current = &orders[i]
			break
		}
	}
	if current == nil {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}

	merged, fields := mergeOrder(*current, patch)
	if len(fields) > 0 {
		return nil, &FieldError{Fields: fields, Cause: ErrInvalidOrder}
	}

	updated, err := s.store.UpdateOrder(ctx, id, merged)
	if err != nil {
		if errors.Is(err, port.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
		}
		return nil, fmt.Errorf("update order %s: %w", id, err)
	}

	s.logger.Info("order updated",
		zap.String("order_id", id),
		zap.String("warehouse_id", warehouseID),
		zap.String("status", string(updated.Status)))
	return updated, nil
}

func mergeOrder(current, patch domain.Order) (domain.Order, map[string]string) {
	fields := make(map[string]string)
	merged := current

	str := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	str(&merged.CompanyBargainNo, patch.CompanyBargainNo)
	str(&merged.SellerName, patch.SellerName)
	str(&merged.SellerLocation, patch.SellerLocation)
	str(&merged.SellerContact, patch.SellerContact)
	str(&merged.Description, patch.Description)
	str(&merged.Organization, patch.Organization)
	str(&merged.TransportType, patch.TransportType)
	str(&merged.TransportLocation, patch.TransportLocation)

	if !patch.CompanyBargainDate.IsZero() {
		merged.CompanyBargainDate = patch.CompanyBargainDate
	}
	if patch.Warehouse != "" && patch.Warehouse != current.Warehouse {
		fields["warehouse"] = "Warehouse cannot be changed"
	}
	if patch.Status != "" {
		if !patch.Status.Valid() {
			fields["status"] = "Invalid status"
		}
		merged.Status = patch.Status
	}
	if patch.BillType != "" {
		if !patch.BillType.Valid() {
			fields["bill_type"] = "Invalid bill type"
		}
		merged.BillType = patch.BillType
	}
	if patch.PaymentDays != 0 {
		merged.PaymentDays = patch.PaymentDays
	}
	if patch.ReminderDays != nil {
		merged.ReminderDays = patch.ReminderDays
	}

	if patch.Items != nil {
		merged.Items = mergeItems(current.Items, patch.Items, fields)
	}
	return merged, fields
}

// mergeItems replaces the item list with the supplied one. Known items start from their stored
// values; new items must be complete. A billed item cannot be dropped or shrunk below its billed quantity.
func mergeItems(stored, supplied []domain.OrderLineItem, fields map[string]string) []domain.OrderLineItem {
	if len(supplied) == 0 {
		fields["items"] = "At least one item is required"
		return stored
	}

	byName := make(map[string]domain.OrderLineItem, len(stored))
	for _, item := range stored {
		byName[item.Name] = item
	}

	seen := make(map[string]bool, len(supplied))
	items := make([]domain.OrderLineItem, 0, len(supplied))
	for i, in := range supplied {
		prefix := fmt.Sprintf("items[%d].", i)
		if strings.TrimSpace(in.Name) == "" {
			fields[prefix+"name"] = "Item Name is required"
			continue
		}
		if seen[in.Name] {
			fields[prefix+"name"] = "Item Name must be unique within an order"
			continue
		}
		seen[in.Name] = true

		item, known := byName[in.Name]
		if !known {
			in.BilledQuantity = decimal.Zero
			before := len(fields)
			validateLineItem(prefix, in, fields)
			if len(fields) == before {
				in.Weight = ItemWeight(in)
			}
			items = append(items, in)
			continue
		}

		if in.Packaging != "" {
			if in.Packaging != domain.PackagingBox && in.Packaging != domain.PackagingTin {
				fields[prefix+"packaging"] = "Invalid packaging type"
			}
			item.Packaging = in.Packaging
		}
		reweigh := false
		patchDecimal := func(dst *decimal.Decimal, v decimal.Decimal, name, label string, weightInput bool) {
			if v.IsZero() {
				return
			}
			if err := checkQuantityBounds(v); err != nil {
				fields[prefix+name] = label + " is out of range"
				return
			}
			if !v.IsPositive() {
				fields[prefix+name] = label + " must be positive"
				return
			}
			*dst = v
			reweigh = reweigh || weightInput
		}
		patchDecimal(&item.Quantity, in.Quantity, "quantity", "Quantity", false)
		patchDecimal(&item.StaticPrice, in.StaticPrice, "static_price", "Static Price", false)
		patchDecimal(&item.QuantityPerPiece, in.QuantityPerPiece, "quantity_per_piece", "Quantity per Piece", true)
		patchDecimal(&item.PiecesPerBox, in.PiecesPerBox, "pieces_per_box", "Pieces per Box", true)
		patchDecimal(&item.NumberOfBoxes, in.NumberOfBoxes, "number_of_boxes", "Number of Boxes", true)
		patchDecimal(&item.WeightPerMl, in.WeightPerMl, "weight_per_ml", "Weight per Ml", true)

		if item.Quantity.LessThan(item.BilledQuantity) {
			fields[prefix+"quantity"] = fmt.Sprintf("Quantity cannot be below billed quantity of %s", item.BilledQuantity)
		}
		if reweigh {
			item.Weight = ItemWeight(item)
		}
		items = append(items, item)
	}

	for _, item := range stored {
		if !seen[item.Name] && item.BilledQuantity.IsPositive() {
			fields["items"] = fmt.Sprintf("Item %s has billed quantity and cannot be removed", item.Name)
		}
	}
	return items
}

// ItemWeight is the line item's total weight in metric tons:
// millilitres per piece x pieces per box x boxes x grams per millilitre, scaled from grams.
func ItemWeight(item domain.OrderLineItem) decimal.Decimal {
	totalMl := item.QuantityPerPiece.Mul(item.PiecesPerBox).Mul(item.NumberOfBoxes)
	return totalMl.Mul(item.WeightPerMl).Div(mlPerMetricTon)
}

func validateOrder(o domain.Order) map[string]string {
	fields := make(map[string]string)
	required := func(name, value, label string) {
		if strings.TrimSpace(value) == "" {
			fields[name] = label + " is required"
		}
	}

	if o.CompanyBargainDate.IsZero() {
		fields["company_bargain_date"] = "Company Bargain Date is required"
	}
	required("company_bargain_no", o.CompanyBargainNo, "Company Bargain Number")
	required("seller_name", o.SellerName, "Seller Name")
	required("seller_location", o.SellerLocation, "Seller Location")
	required("seller_contact", o.SellerContact, "Seller Contact")
	required("organization", o.Organization, "Organization")
	required("warehouse", o.Warehouse, "Warehouse")
	required("transport_type", o.TransportType, "Transport Type")
	required("transport_location", o.TransportLocation, "Transport Location")

	if !o.BillType.Valid() {
		fields["bill_type"] = "Invalid bill type"
	}
	if !o.Status.Valid() {
		fields["status"] = "Invalid status"
	}

	if len(o.Items) == 0 {
		fields["items"] = "At least one item is required"
	}
	seen := make(map[string]bool, len(o.Items))
	for i, item := range o.Items {
		prefix := fmt.Sprintf("items[%d].", i)
		if strings.TrimSpace(item.Name) == "" {
			fields[prefix+"name"] = "Item Name is required"
		} else if seen[item.Name] {
			fields[prefix+"name"] = "Item Name must be unique within an order"
		}
		seen[item.Name] = true
		validateLineItem(prefix, item, fields)
	}
	return fields
}

func validateLineItem(prefix string, item domain.OrderLineItem, fields map[string]string) {
	if item.Packaging != domain.PackagingBox && item.Packaging != domain.PackagingTin {
		fields[prefix+"packaging"] = "Invalid packaging type"
	}
	positive := func(name string, v decimal.Decimal, label string) {
		if err := checkQuantityBounds(v); err != nil {
			fields[prefix+name] = label + " is out of range"
			return
		}
		if !v.IsPositive() {
			fields[prefix+name] = label + " must be positive"
		}
	}
	positive("quantity", item.Quantity, "Quantity")
	positive("static_price", item.StaticPrice, "Static Price")
	positive("quantity_per_piece", item.QuantityPerPiece, "Quantity per Piece")
	positive("pieces_per_box", item.PiecesPerBox, "Pieces per Box")
	positive("number_of_boxes", item.NumberOfBoxes, "Number of Boxes")
	positive("weight_per_ml", item.WeightPerMl, "Weight per Ml")
}
