package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/inventory-reconciler/internal/core/domain"
	"github.com/rl1809/inventory-reconciler/internal/port"
)

const maxErrorBody = 512

// StatusError is a non-2xx answer from the store.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

func (e *StatusError) Unwrap() error {
	switch {
	case e.Status == http.StatusNotFound:
		return port.ErrNotFound
	case e.Status >= http.StatusInternalServerError:
		return port.ErrStoreUnavailable
	default:
		return port.ErrRejected
	}
}

// RESTClient talks to the Order/Warehouse backend over its JSON API.
type RESTClient struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

func NewRESTClient(baseURL string, timeout time.Duration, logger *zap.Logger) *RESTClient {
	return &RESTClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (c *RESTClient) ListOrders(ctx context.Context) ([]domain.Order, error) {
	var wire []wireOrder
	if err := c.do(ctx, http.MethodGet, "/order", nil, &wire); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(wire))
	for _, w := range wire {
		o, err := orderFromWire(w)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func (c *RESTClient) CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	return c.sendOrder(ctx, http.MethodPost, "/order", order)
}

func (c *RESTClient) UpdateOrder(ctx context.Context, id string, order domain.Order) (*domain.Order, error) {
	return c.sendOrder(ctx, http.MethodPut, "/order/"+url.PathEscape(id), order)
}

func (c *RESTClient) sendOrder(ctx context.Context, method, path string, order domain.Order) (*domain.Order, error) {
	var out wireOrder
	if err := c.do(ctx, method, path, orderToWire(order), &out); err != nil {
		return nil, err
	}
	o, err := orderFromWire(out)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *RESTClient) UpdateBillTypePartWise(ctx context.Context, orderID string, items []port.BillTypeUpdate) error {
	body := wireBillTypeUpdate{Items: make([]wireBillTypeItem, 0, len(items))}
	for _, it := range items {
		body.Items = append(body.Items, wireBillTypeItem{Name: it.Name, Quantity: num(it.Quantity), BillType: string(it.BillType)})
	}
	return c.do(ctx, http.MethodPut, "/order/"+url.PathEscape(orderID)+"/bill-type", body, nil)
}

func (c *RESTClient) ListWarehouses(ctx context.Context) ([]domain.Warehouse, error) {
	return c.listWarehouses(ctx, "/warehouse")
}

func (c *RESTClient) FilterWarehouses(ctx context.Context, state, city string) ([]domain.Warehouse, error) {
	q := url.Values{}
	q.Set("state", state)
	q.Set("city", city)
	return c.listWarehouses(ctx, "/warehouse/filter?"+q.Encode())
}

func (c *RESTClient) listWarehouses(ctx context.Context, path string) ([]domain.Warehouse, error) {
	var wire []wireWarehouse
	if err := c.do(ctx, http.MethodGet, path, nil, &wire); err != nil {
		return nil, err
	}
	out := make([]domain.Warehouse, 0, len(wire))
	for _, w := range wire {
		out = append(out, warehouseFromWire(w))
	}
	return out, nil
}

func (c *RESTClient) GetWarehouse(ctx context.Context, id string) (*domain.Warehouse, error) {
	var wire wireWarehouse
	if err := c.do(ctx, http.MethodGet, "/warehouse/"+url.PathEscape(id), nil, &wire); err != nil {
		return nil, err
	}
	w := warehouseFromWire(wire)
	return &w, nil
}

func (c *RESTClient) CreateWarehouse(ctx context.Context, w domain.Warehouse) (*domain.Warehouse, error) {
	var wire wireWarehouse
	if err := c.do(ctx, http.MethodPost, "/warehouse", warehouseToWire(w), &wire); err != nil {
		return nil, err
	}
	created := warehouseFromWire(wire)
	return &created, nil
}

func (c *RESTClient) UpdateInventoryItem(ctx context.Context, warehouseID string, t port.InventoryTransfer) error {
	body := wireInventoryTransfer{
		ItemName: t.ItemName,
		Weight:   num(t.Weight),
		Quantity: num(t.Quantity),
		BillType: string(t.BillType),
	}
	return c.do(ctx, http.MethodPut, "/warehouse/updateInventoryItem/"+url.PathEscape(warehouseID), body, nil)
}

func (c *RESTClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %s %s: %v", port.ErrStoreUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("store call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Method: method, Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
