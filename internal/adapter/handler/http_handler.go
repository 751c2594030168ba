package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/inventory-reconciler/internal/core/domain"
	"github.com/rl1809/inventory-reconciler/internal/core/service"
)

const maxBodyBytes = 1 << 20

type HTTPHandler struct {
	sessions       *service.SessionService
	warehouses     *service.WarehouseService
	orders         *service.OrderService
	reconciliation *service.ReconciliationService
	logger         *zap.Logger
}

func NewHTTPHandler(
	sessions *service.SessionService,
	warehouses *service.WarehouseService,
	orders *service.OrderService,
	reconciliation *service.ReconciliationService,
	logger *zap.Logger,
) *HTTPHandler {
	return &HTTPHandler{
		sessions:       sessions,
		warehouses:     warehouses,
		orders:         orders,
		reconciliation: reconciliation,
		logger:         logger,
	}
}

func (h *HTTPHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(h.logger))
	r.Use(Recoverer(h.logger))

	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				req.Body = http.MaxBytesReader(w, req.Body, maxBodyBytes)
				next.ServeHTTP(w, req)
			})
		})

		r.Get("/session/warehouse", h.GetSessionWarehouse)
		r.Put("/session/warehouse", h.SelectWarehouse)
		r.Delete("/session/warehouse", h.ClearWarehouse)

		r.Get("/warehouses", h.ListWarehouses)
		r.Post("/warehouses", h.CreateWarehouse)
		r.Get("/warehouses/filter", h.FilterWarehouses)
		r.Get("/warehouses/{id}", h.GetWarehouse)

		r.Get("/inventory", h.Inventory)
		r.Post("/inventory/validate", h.ValidateTransfer)
		r.Post("/inventory/transfers", h.TransferInventory)
		r.Get("/inventory/transfers", h.ListTransfers)

		r.Get("/orders", h.ListOrders)
		r.Post("/orders", h.CreateOrder)
		r.Put("/orders/{id}", h.UpdateOrder)
		r.Post("/orders/{id}/validate", h.ValidateBill)
		r.Post("/orders/{id}/bill", h.BillPartial)
	})
	return r
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func sessionID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(sessionIDHeader))
}

func (h *HTTPHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	e := classify(err)
	if e.Status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestIDFromContext(r.Context())),
			zap.Error(err))
	}
	writeError(w, r, e.Message, e.Code, e.Status, e.Fields)
}

func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, r, "invalid request body", "INVALID_BODY", http.StatusBadRequest, nil)
		return false
	}
	return true
}

// Session

type SelectWarehouseRequest struct {
	WarehouseID string `json:"warehouse_id"`
}

func (h *HTTPHandler) GetSessionWarehouse(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Session(r.Context(), sessionID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *HTTPHandler) SelectWarehouse(w http.ResponseWriter, r *http.Request) {
	var req SelectWarehouseRequest
	if !h.decode(w, r, &req) {
		return
	}
	wh, err := h.sessions.SelectWarehouse(r.Context(), sessionID(r), req.WarehouseID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wh)
}

func (h *HTTPHandler) ClearWarehouse(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.ClearWarehouse(r.Context(), sessionID(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Warehouses

func (h *HTTPHandler) ListWarehouses(w http.ResponseWriter, r *http.Request) {
	ws, err := h.warehouses.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(ws))
}

func (h *HTTPHandler) FilterWarehouses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ws, err := h.warehouses.Filter(r.Context(), q.Get("state"), q.Get("city"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(ws))
}

func (h *HTTPHandler) GetWarehouse(w http.ResponseWriter, r *http.Request) {
	wh, err := h.warehouses.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wh)
}

func (h *HTTPHandler) CreateWarehouse(w http.ResponseWriter, r *http.Request) {
	var req domain.Warehouse
	if !h.decode(w, r, &req) {
		return
	}
	created, err := h.warehouses.Create(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// Inventory transfer

type ValidateTransferRequest struct {
	SourceIndex int    `json:"source_index"`
	Quantity    string `json:"quantity"`
}

type TransferHTTPRequest struct {
	SourceIndex int    `json:"source_index"`
	ItemName    string `json:"item_name"`
	Quantity    string `json:"quantity"`
	RequestID   string `json:"request_id"`
}

type TransferHTTPResponse struct {
	Success   bool                   `json:"success"`
	Message   string                 `json:"message"`
	Advisory  bool                   `json:"advisory,omitempty"`
	Warehouse domain.Warehouse       `json:"warehouse"`
	Transfer  *domain.TransferRecord `json:"transfer,omitempty"`
}

func (h *HTTPHandler) Inventory(w http.ResponseWriter, r *http.Request) {
	wh, err := h.warehouses.Inventory(r.Context(), sessionID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wh)
}

func (h *HTTPHandler) ValidateTransfer(w http.ResponseWriter, r *http.Request) {
	var req ValidateTransferRequest
	if !h.decode(w, r, &req) {
		return
	}
	d, err := h.reconciliation.ValidateTransfer(r.Context(), sessionID(r), req.SourceIndex, req.Quantity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *HTTPHandler) TransferInventory(w http.ResponseWriter, r *http.Request) {
	var req TransferHTTPRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.reconciliation.TransferInventory(r.Context(), sessionID(r), service.TransferRequest{
		SourceIndex: req.SourceIndex,
		ItemName:    req.ItemName,
		Quantity:    req.Quantity,
		RequestID:   req.RequestID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, TransferHTTPResponse{
		Success:   true,
		Message:   res.Message,
		Advisory:  res.Advisory,
		Warehouse: res.Warehouse,
		Transfer:  res.Record,
	})
}

func (h *HTTPHandler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, r, "limit must be a number", "INVALID_LIMIT", http.StatusBadRequest, nil)
			return
		}
		limit = n
	}
	records, err := h.reconciliation.ListTransfers(r.Context(), sessionID(r), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(records))
}

// Orders

// OrderLineItemRequest carries numbers as JSON numbers or strings. There is no billed
// quantity: it only changes through partial billing.
type OrderLineItemRequest struct {
	Name             string          `json:"name"`
	Packaging        string          `json:"packaging"`
	StaticPrice      decimal.Decimal `json:"static_price"`
	Quantity         decimal.Decimal `json:"quantity"`
	QuantityPerPiece decimal.Decimal `json:"quantity_per_piece"`
	PiecesPerBox     decimal.Decimal `json:"pieces_per_box"`
	NumberOfBoxes    decimal.Decimal `json:"number_of_boxes"`
	WeightPerMl      decimal.Decimal `json:"weight_per_ml"`
}

// OrderRequest takes the bargain date as RFC 3339 or YYYY-MM-DD.
type OrderRequest struct {
	CompanyBargainNo   string                 `json:"company_bargain_no"`
	CompanyBargainDate string                 `json:"company_bargain_date"`
	SellerName         string                 `json:"seller_name"`
	SellerLocation     string                 `json:"seller_location"`
	SellerContact      string                 `json:"seller_contact"`
	Status             string                 `json:"status"`
	BillType           string                 `json:"bill_type"`
	Description        string                 `json:"description"`
	Organization       string                 `json:"organization"`
	Warehouse          string                 `json:"warehouse"`
	TransportType      string                 `json:"transport_type"`
	TransportLocation  string                 `json:"transport_location"`
	PaymentDays        int                    `json:"payment_days"`
	ReminderDays       []int                  `json:"reminder_days"`
	Items              []OrderLineItemRequest `json:"items"`
}

func (req OrderRequest) toDomain() (domain.Order, error) {
	o := domain.Order{
		CompanyBargainNo:  req.CompanyBargainNo,
		SellerName:        req.SellerName,
		SellerLocation:    req.SellerLocation,
		SellerContact:     req.SellerContact,
		Status:            domain.OrderStatus(req.Status),
		BillType:          domain.BillType(req.BillType),
		Description:       req.Description,
		Organization:      req.Organization,
		Warehouse:         req.Warehouse,
		TransportType:     req.TransportType,
		TransportLocation: req.TransportLocation,
		PaymentDays:       req.PaymentDays,
		ReminderDays:      req.ReminderDays,
	}
	if strings.TrimSpace(req.CompanyBargainDate) != "" {
		d, err := domain.ParseBargainDate(req.CompanyBargainDate)
		if err != nil {
			return domain.Order{}, err
		}
		o.CompanyBargainDate = d
	}
	for _, it := range req.Items {
		o.Items = append(o.Items, domain.OrderLineItem{
			Name:             it.Name,
			Packaging:        it.Packaging,
			StaticPrice:      it.StaticPrice,
			Quantity:         it.Quantity,
			QuantityPerPiece: it.QuantityPerPiece,
			PiecesPerBox:     it.PiecesPerBox,
			NumberOfBoxes:    it.NumberOfBoxes,
			WeightPerMl:      it.WeightPerMl,
		})
	}
	return o, nil
}

// OrderView adds the display form of the bargain date.
type OrderView struct {
	domain.Order
	CompanyBargainDateDisplay string `json:"company_bargain_date_display"`
}

func viewOrder(o domain.Order) OrderView {
	display, _ := domain.FormatBargainDate(o.CompanyBargainDate)
	return OrderView{Order: o, CompanyBargainDateDisplay: display}
}

func viewOrders(orders []domain.Order) []OrderView {
	out := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		out = append(out, viewOrder(o))
	}
	return out
}

func orderFilter(r *http.Request) (service.OrderFilter, error) {
	q := r.URL.Query()
	return service.ParseOrderFilter(q.Get("status"), q.Get("period"), q.Get("from"), q.Get("to"))
}

func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	filter, err := orderFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	orders, err := h.orders.ListOrders(r.Context(), sessionID(r), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOrders(orders))
}

func (h *HTTPHandler) decodeOrder(w http.ResponseWriter, r *http.Request) (domain.Order, bool) {
	var req OrderRequest
	if !h.decode(w, r, &req) {
		return domain.Order{}, false
	}
	o, err := req.toDomain()
	if err != nil {
		writeError(w, r, "invalid company bargain date", "INVALID_FIELDS", http.StatusUnprocessableEntity,
			map[string]string{"company_bargain_date": "Invalid date"})
		return domain.Order{}, false
	}
	return o, true
}

func (h *HTTPHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	o, ok := h.decodeOrder(w, r)
	if !ok {
		return
	}
	created, err := h.orders.CreateOrder(r.Context(), sessionID(r), o)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewOrder(*created))
}

func (h *HTTPHandler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	o, ok := h.decodeOrder(w, r)
	if !ok {
		return
	}
	updated, err := h.orders.UpdateOrder(r.Context(), sessionID(r), chi.URLParam(r, "id"), o)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOrder(*updated))
}

// Partial billing

// quantityInput accepts a quantity typed as a JSON string or a bare JSON number. The text is
// kept as sent and parsed by the service.
type quantityInput string

func (q *quantityInput) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || string(b) == "null":
		*q = ""
		return nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*q = quantityInput(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("quantity must be a string or a number: %w", err)
	}
	*q = quantityInput(n.String())
	return nil
}

type BillHTTPRequest struct {
	Quantities map[string]quantityInput `json:"quantities"`
}

func (req BillHTTPRequest) quantities() map[string]string {
	out := make(map[string]string, len(req.Quantities))
	for name, q := range req.Quantities {
		out[name] = string(q)
	}
	return out
}

type ValidateBillResponse struct {
	Valid   bool              `json:"valid"`
	Reasons map[string]string `json:"reasons,omitempty"`
}

type BillHTTPResponse struct {
	Success  bool                    `json:"success"`
	Message  string                  `json:"message"`
	Advisory bool                    `json:"advisory,omitempty"`
	Order    *OrderView              `json:"order,omitempty"`
	Orders   []OrderView             `json:"orders"`
	Billed   []BilledItem            `json:"billed"`
	Records  []domain.TransferRecord `json:"transfers,omitempty"`
}

type BilledItem struct {
	Name     string          `json:"name"`
	Quantity decimal.Decimal `json:"quantity"`
	BillType domain.BillType `json:"bill_type"`
}

func (h *HTTPHandler) ValidateBill(w http.ResponseWriter, r *http.Request) {
	var req BillHTTPRequest
	if !h.decode(w, r, &req) {
		return
	}
	reasons, err := h.reconciliation.ValidateBill(r.Context(), sessionID(r), chi.URLParam(r, "id"), req.quantities())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ValidateBillResponse{Valid: len(reasons) == 0, Reasons: reasons})
}

// BillPartial takes the list filter from the query string so the refreshed collection
// matches what the caller is showing.
func (h *HTTPHandler) BillPartial(w http.ResponseWriter, r *http.Request) {
	filter, err := orderFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req BillHTTPRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.reconciliation.BillPartial(r.Context(), sessionID(r), service.BillRequest{
		OrderID:    chi.URLParam(r, "id"),
		Quantities: req.quantities(),
		Filter:     filter,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := BillHTTPResponse{
		Success:  true,
		Message:  res.Message,
		Advisory: res.Advisory,
		Orders:   viewOrders(res.Orders),
		Billed:   make([]BilledItem, 0, len(res.Billed)),
		Records:  res.Records,
	}
	if res.Order != nil {
		v := viewOrder(*res.Order)
		resp.Order = &v
	}
	for _, b := range res.Billed {
		resp.Billed = append(resp.Billed, BilledItem{Name: b.Name, Quantity: b.Quantity, BillType: b.BillType})
	}
	writeJSON(w, http.StatusOK, resp)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
