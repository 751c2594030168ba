package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/inventory-reconciler/internal/adapter/storage"
	"github.com/rl1809/inventory-reconciler/internal/adapter/store"
	"github.com/rl1809/inventory-reconciler/internal/core/domain"
	"github.com/rl1809/inventory-reconciler/internal/core/service"
)

type testApp struct {
	store          *store.MemoryStore
	reconciliation *service.ReconciliationService
	http           http.Handler
	grpc           *GRPCHandler
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	logger := zap.NewNop()
	ctx := context.Background()

	backend := store.NewMemoryStore()
	backend.CreateWarehouse(ctx, domain.Warehouse{
		ID:   "wh-1",
		Name: "Main",
		VirtualInventory: []domain.InventoryItem{
			{ItemName: "Oil", Weight: decimal.NewFromInt(1), Quantity: decimal.NewFromInt(100)},
		},
	})
	backend.CreateOrder(ctx, domain.Order{
		ID:                 "ord-1",
		Warehouse:          "wh-1",
		CompanyBargainDate: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		Status:             domain.OrderStatusCreated,
		BillType:           domain.BillTypeVirtualBilled,
		Items:              []domain.OrderLineItem{{Name: "Oil", Quantity: decimal.NewFromInt(50)}},
	})

	cache := storage.NewMemoryCache(time.Minute, time.Hour)
	journal, err := storage.NewMemoryJournal()
	if err != nil {
		t.Fatalf("journal: %v", err)
	}

	sessions := service.NewSessionService(cache, backend, logger)
	warehouses := service.NewWarehouseService(backend, sessions, logger)
	opts := service.ReconciliationOptions{LockTTL: time.Second, LockWait: time.Second, QueueSize: 100}
	orders := service.NewOrderService(backend, cache, sessions, logger, opts)
	reconciliation := service.NewReconciliationService(backend, cache, journal, sessions, logger, opts)

	// Drain the journal queue in background
	go func() {
		for r := range reconciliation.GetJournalQueue() {
			journal.Record(context.Background(), r)
		}
	}()
	t.Cleanup(reconciliation.Close)

	return &testApp{
		store:          backend,
		reconciliation: reconciliation,
		http:           NewHTTPHandler(sessions, warehouses, orders, reconciliation, logger).Routes(),
		grpc:           NewGRPCHandler(reconciliation, logger),
	}
}

func (a *testApp) do(t *testing.T, method, path, session string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if session != "" {
		req.Header.Set(sessionIDHeader, session)
	}
	rec := httptest.NewRecorder()
	a.http.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) selectWarehouse(t *testing.T, session string) {
	t.Helper()
	rec := a.do(t, http.MethodPut, "/api/session/warehouse", session, SelectWarehouseRequest{WarehouseID: "wh-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("select warehouse: %d %s", rec.Code, rec.Body.String())
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var e errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, rec.Body.String())
	}
	return e
}

func TestHealthCheck(t *testing.T) {
	app := newTestApp(t)
	rec := app.do(t, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestTransferInventory_HTTP(t *testing.T) {
	app := newTestApp(t)
	app.selectWarehouse(t, "s1")

	rec := app.do(t, http.MethodPost, "/api/inventory/transfers", "s1", TransferHTTPRequest{
		SourceIndex: 0,
		ItemName:    "Oil",
		Quantity:    "30",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp TransferHTTPResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if !resp.Success || resp.Message != service.MsgTransferSuccess {
		t.Errorf("unexpected response: %+v", resp)
	}
	if !resp.Warehouse.VirtualInventory[0].Quantity.Equal(decimal.NewFromInt(70)) {
		t.Errorf("expected virtual 70, got %s", resp.Warehouse.VirtualInventory[0].Quantity)
	}
	if !resp.Warehouse.BilledInventory[0].Quantity.Equal(decimal.NewFromInt(30)) {
		t.Errorf("expected billed 30, got %s", resp.Warehouse.BilledInventory[0].Quantity)
	}
}

func TestTransferInventory_HTTPExceedsAvailable(t *testing.T) {
	app := newTestApp(t)
	app.selectWarehouse(t, "s1")

	rec := app.do(t, http.MethodPost, "/api/inventory/transfers", "s1", TransferHTTPRequest{Quantity: "150"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	e := decodeError(t, rec)
	if e.Error != "Quantity exceeds available virtual quantity of 100" {
		t.Errorf("unexpected message %q", e.Error)
	}
	if e.RequestID == "" {
		t.Error("expected request id in error body")
	}
}

func TestTransferInventory_HTTPErrors(t *testing.T) {
	app := newTestApp(t)
	app.selectWarehouse(t, "s1")

	tests := []struct {
		name    string
		session string
		body    any
		status  int
		code    string
	}{
		{"no session header", "", TransferHTTPRequest{Quantity: "1"}, http.StatusBadRequest, "MISSING_SESSION"},
		{"no warehouse selected", "s2", TransferHTTPRequest{Quantity: "1"}, http.StatusConflict, "NO_ACTIVE_WAREHOUSE"},
		{"non numeric quantity", "s1", TransferHTTPRequest{Quantity: "ten"}, http.StatusBadRequest, "INVALID_QUANTITY"},
		{"negative quantity", "s1", TransferHTTPRequest{Quantity: "-1"}, http.StatusBadRequest, "INVALID_QUANTITY"},
		{"index out of range", "s1", TransferHTTPRequest{SourceIndex: 5, Quantity: "1"}, http.StatusNotFound, "ITEM_NOT_FOUND"},
		{"stale item name", "s1", TransferHTTPRequest{ItemName: "Rice", Quantity: "1"}, http.StatusConflict, "STALE_SNAPSHOT"},
		{"bad body", "s1", "not an object", http.StatusBadRequest, "INVALID_BODY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(t, http.MethodPost, "/api/inventory/transfers", tt.session, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			if e := decodeError(t, rec); e.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, e.Code)
			}
		})
	}
}

func TestTransferInventory_DuplicateRequestID(t *testing.T) {
	app := newTestApp(t)
	app.selectWarehouse(t, "s1")

	body := TransferHTTPRequest{ItemName: "Oil", Quantity: "1", RequestID: "req-42"}
	if rec := app.do(t, http.MethodPost, "/api/inventory/transfers", "s1", body); rec.Code != http.StatusOK {
		t.Fatalf("first transfer: %d %s", rec.Code, rec.Body.String())
	}
	rec := app.do(t, http.MethodPost, "/api/inventory/transfers", "s1", body)
	if rec.Code != http.StatusConflict || decodeError(t, rec).Code != "DUPLICATE_REQUEST" {
		t.Errorf("expected duplicate rejection, got %d %s", rec.Code, rec.Body.String())
	}

	w, _ := app.store.GetWarehouse(context.Background(), "wh-1")
	if !w.VirtualInventory[0].Quantity.Equal(decimal.NewFromInt(99)) {
		t.Errorf("expected a single transfer applied, virtual is %s", w.VirtualInventory[0].Quantity)
	}
}

func TestValidateTransfer_HTTP(t *testing.T) {
	app := newTestApp(t)
	app.selectWarehouse(t, "s1")

	rec := app.do(t, http.MethodPost, "/api/inventory/validate", "s1", ValidateTransferRequest{Quantity: "101"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var d service.Decision
	json.Unmarshal(rec.Body.Bytes(), &d)
	if d.Accepted || d.Reason != "Quantity exceeds available virtual quantity of 100" {
		t.Errorf("unexpected decision %+v", d)
	}
}

func TestBillPartial_HTTP(t *testing.T) {
	app := newTestApp(t)
	app.selectWarehouse(t, "s1")

	rec := app.do(t, http.MethodPost, "/api/orders/ord-1/bill", "s1", BillHTTPRequest{
		Quantities: map[string]quantityInput{"Oil": "20"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp BillHTTPResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Message != service.MsgItemsBilled || resp.Order == nil {
		t.Fatalf("unexpected response: %s", rec.Body.String())
	}
	if !resp.Order.Items[0].BilledQuantity.Equal(decimal.NewFromInt(20)) {
		t.Errorf("expected billed 20, got %s", resp.Order.Items[0].BilledQuantity)
	}
	if resp.Order.CompanyBargainDateDisplay != "05-03-2024" {
		t.Errorf("expected display date 05-03-2024, got %q", resp.Order.CompanyBargainDateDisplay)
	}
	if len(resp.Orders) != 1 {
		t.Errorf("expected refreshed collection of 1, got %d", len(resp.Orders))
	}
}

func TestBillPartial_HTTPRejectsBatch(t *testing.T) {
	app := newTestApp(t)
	app.selectWarehouse(t, "s1")

	rec := app.do(t, http.MethodPost, "/api/orders/ord-1/bill", "s1", BillHTTPRequest{
		Quantities: map[string]quantityInput{"Oil": "60"},
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	e := decodeError(t, rec)
	if e.Fields["Oil"] == "" {
		t.Errorf("expected per-item reason for Oil, got %+v", e)
	}

	orders, _ := app.store.ListOrders(context.Background())
	if !orders[0].Items[0].BilledQuantity.IsZero() {
		t.Error("rejected batch must not reach the store")
	}
}

func TestBillPartial_HTTPAcceptsNumericQuantities(t *testing.T) {
	app := newTestApp(t)
	app.selectWarehouse(t, "s1")

	rec := app.do(t, http.MethodPost, "/api/orders/ord-1/bill", "s1",
		json.RawMessage(`{"quantities":{"Oil":20}}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp BillHTTPResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Order == nil || !resp.Order.Items[0].BilledQuantity.Equal(decimal.NewFromInt(20)) {
		t.Errorf("expected billed 20, got %s", rec.Body.String())
	}

	rec = app.do(t, http.MethodPost, "/api/orders/ord-1/bill", "s1",
		json.RawMessage(`{"quantities":{"Oil":1e100000000}}`))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for an exponent quantity, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = app.do(t, http.MethodPost, "/api/orders/ord-1/bill", "s1",
		json.RawMessage(`{"quantities":{"Oil":true}}`))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a boolean quantity, got %d", rec.Code)
	}
}

func TestUpdateOrder_HTTPKeepsBilledQuantity(t *testing.T) {
	app := newTestApp(t)
	app.selectWarehouse(t, "s1")

	rec := app.do(t, http.MethodPost, "/api/orders/ord-1/bill", "s1", BillHTTPRequest{
		Quantities: map[string]quantityInput{"Oil": "20"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("bill: %d %s", rec.Code, rec.Body.String())
	}

	rec = app.do(t, http.MethodPut, "/api/orders/ord-1", "s1",
		json.RawMessage(`{"status":"billed","items":[{"name":"Oil","quantity":"50","billed_quantity":"0"}]}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var view OrderView
	json.Unmarshal(rec.Body.Bytes(), &view)
	if view.Status != domain.OrderStatusBilled {
		t.Errorf("expected status billed, got %s", view.Status)
	}
	if view.CompanyBargainDateDisplay != "05-03-2024" {
		t.Errorf("expected bargain date kept, got %q", view.CompanyBargainDateDisplay)
	}

	orders, _ := app.store.ListOrders(context.Background())
	if !orders[0].Items[0].BilledQuantity.Equal(decimal.NewFromInt(20)) {
		t.Errorf("expected stored billed 20, got %s", orders[0].Items[0].BilledQuantity)
	}
	if !orders[0].CompanyBargainDate.Equal(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("expected stored bargain date kept, got %v", orders[0].CompanyBargainDate)
	}

	rec = app.do(t, http.MethodPut, "/api/orders/ord-1", "s1",
		json.RawMessage(`{"items":[{"name":"Oil","quantity":"10"}]}`))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for quantity below billed, got %d", rec.Code)
	}
}

func TestUpdateOrder_HTTPScopedToSessionWarehouse(t *testing.T) {
	app := newTestApp(t)
	app.store.CreateWarehouse(context.Background(), domain.Warehouse{ID: "wh-2", Name: "Other"})
	app.do(t, http.MethodPut, "/api/session/warehouse", "s2", SelectWarehouseRequest{WarehouseID: "wh-2"})

	rec := app.do(t, http.MethodPut, "/api/orders/ord-1", "s2", json.RawMessage(`{"status":"billed"}`))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
	orders, _ := app.store.ListOrders(context.Background())
	if orders[0].Status != domain.OrderStatusCreated {
		t.Errorf("order of another warehouse changed: %s", orders[0].Status)
	}
}

func TestValidateBill_HTTP(t *testing.T) {
	app := newTestApp(t)
	app.selectWarehouse(t, "s1")

	rec := app.do(t, http.MethodPost, "/api/orders/ord-1/validate", "s1", BillHTTPRequest{
		Quantities: map[string]quantityInput{"Oil": "10", "Salt": "1"},
	})
	var resp ValidateBillResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Valid || resp.Reasons["Salt"] != "Item Salt not found in order" {
		t.Errorf("unexpected validation response: %+v", resp)
	}
	if _, ok := resp.Reasons["Oil"]; ok {
		t.Error("Oil is within its quantity and must not be rejected")
	}
}

func TestListOrders_HTTPFilter(t *testing.T) {
	app := newTestApp(t)
	app.selectWarehouse(t, "s1")

	rec := app.do(t, http.MethodGet, "/api/orders?status=billed", "s1", nil)
	var orders []OrderView
	json.Unmarshal(rec.Body.Bytes(), &orders)
	if rec.Code != http.StatusOK || len(orders) != 0 {
		t.Errorf("expected no billed orders, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = app.do(t, http.MethodGet, "/api/orders?period=fortnight", "s1", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown period, got %d", rec.Code)
	}
}

func TestCreateOrder_HTTP(t *testing.T) {
	app := newTestApp(t)
	app.selectWarehouse(t, "s1")

	body := OrderRequest{
		CompanyBargainNo:   "CB-2",
		CompanyBargainDate: "2024-04-01",
		SellerName:         "Seller",
		SellerLocation:     "Pune",
		SellerContact:      "999",
		Organization:       "Org",
		TransportType:      "Road",
		TransportLocation:  "Depot",
		Items: []OrderLineItemRequest{{
			Name:             "Oil",
			Packaging:        domain.PackagingTin,
			StaticPrice:      decimal.NewFromInt(10),
			Quantity:         decimal.NewFromInt(5),
			QuantityPerPiece: decimal.NewFromInt(1000),
			PiecesPerBox:     decimal.NewFromInt(10),
			NumberOfBoxes:    decimal.NewFromInt(5),
			WeightPerMl:      decimal.RequireFromString("0.9"),
		}},
	}
	rec := app.do(t, http.MethodPost, "/api/orders", "s1", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created OrderView
	json.Unmarshal(rec.Body.Bytes(), &created)
	if created.Warehouse != "wh-1" || created.Status != domain.OrderStatusCreated {
		t.Errorf("expected defaults applied, got %+v", created.Order)
	}
	// 1000 ml x 10 x 5 x 0.9 g/ml = 45000 g = 0.045 t
	if !created.Items[0].Weight.Equal(decimal.RequireFromString("0.045")) {
		t.Errorf("expected weight 0.045, got %s", created.Items[0].Weight)
	}

	body.CompanyBargainDate = "yesterday"
	rec = app.do(t, http.MethodPost, "/api/orders", "s1", body)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for bad date, got %d", rec.Code)
	}
}

func TestSessionWarehouse_HTTP(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodPut, "/api/session/warehouse", "s1", SelectWarehouseRequest{WarehouseID: "nope"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown warehouse, got %d", rec.Code)
	}

	app.selectWarehouse(t, "s1")
	rec = app.do(t, http.MethodGet, "/api/session/warehouse", "s1", nil)
	var s domain.Session
	json.Unmarshal(rec.Body.Bytes(), &s)
	if s.WarehouseID != "wh-1" {
		t.Errorf("expected wh-1, got %+v", s)
	}

	if rec := app.do(t, http.MethodDelete, "/api/session/warehouse", "s1", nil); rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	rec = app.do(t, http.MethodGet, "/api/inventory", "s1", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 after clearing selection, got %d", rec.Code)
	}
}

func TestWarehouses_HTTP(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodPost, "/api/warehouses", "", domain.Warehouse{Name: "North"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for missing state/city, got %d", rec.Code)
	}
	if e := decodeError(t, rec); e.Fields["state"] == "" || e.Fields["city"] == "" {
		t.Errorf("expected state and city field errors, got %+v", e.Fields)
	}

	rec = app.do(t, http.MethodPost, "/api/warehouses", "", domain.Warehouse{Name: "North", State: "PB", City: "Ludhiana"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	rec = app.do(t, http.MethodGet, "/api/warehouses/filter?state=PB", "", nil)
	var ws []domain.Warehouse
	json.Unmarshal(rec.Body.Bytes(), &ws)
	if len(ws) != 1 || ws[0].City != "Ludhiana" {
		t.Errorf("unexpected filter result %+v", ws)
	}

	if rec := app.do(t, http.MethodGet, "/api/warehouses/missing", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestListTransfers_HTTP(t *testing.T) {
	app := newTestApp(t)
	app.selectWarehouse(t, "s1")

	app.do(t, http.MethodPost, "/api/inventory/transfers", "s1", TransferHTTPRequest{ItemName: "Oil", Quantity: "5"})

	var records []domain.TransferRecord
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec := app.do(t, http.MethodGet, "/api/inventory/transfers?limit=10", "s1", nil)
		json.Unmarshal(rec.Body.Bytes(), &records)
		if len(records) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(records) != 1 || records[0].ItemName != "Oil" || !records[0].Quantity.Equal(decimal.NewFromInt(5)) {
		t.Errorf("unexpected journal %+v", records)
	}

	if rec := app.do(t, http.MethodGet, "/api/inventory/transfers?limit=x", "s1", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", rec.Code)
	}
}
