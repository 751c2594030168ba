package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/inventory-reconciler/internal/core/domain"
)

// number is a decimal that travels as a bare JSON number, which is what the store speaks.
type number struct {
	decimal.Decimal
}

func num(d decimal.Decimal) number { return number{Decimal: d} }

func (n number) MarshalJSON() ([]byte, error) {
	return []byte(n.Decimal.String()), nil
}

func (n *number) UnmarshalJSON(b []byte) error {
	s := string(bytes.TrimSpace(b))
	if s == "null" || s == `""` {
		n.Decimal = decimal.Zero
		return nil
	}
	return n.Decimal.UnmarshalJSON(b)
}

// ref is a foreign key that may arrive as a bare id or as a populated document.
type ref string

func (r *ref) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*r = ""
		return nil
	}
	if b[0] == '{' {
		var doc struct {
			ID string `json:"_id"`
		}
		if err := json.Unmarshal(b, &doc); err != nil {
			return err
		}
		*r = ref(doc.ID)
		return nil
	}
	var id string
	if err := json.Unmarshal(b, &id); err != nil {
		return err
	}
	*r = ref(id)
	return nil
}

type wireInventoryItem struct {
	ItemName string `json:"itemName"`
	Weight   number `json:"weight"`
	Quantity number `json:"quantity"`
}

type wireWarehouse struct {
	ID               string              `json:"_id,omitempty"`
	Name             string              `json:"name"`
	State            string              `json:"state"`
	City             string              `json:"city"`
	VirtualInventory []wireInventoryItem `json:"virtualInventory"`
	BilledInventory  []wireInventoryItem `json:"billedInventory"`
}

type wireLineItem struct {
	Name             string `json:"name"`
	Packaging        string `json:"packaging,omitempty"`
	Weight           number `json:"weight"`
	StaticPrice      number `json:"staticPrice"`
	Quantity         number `json:"quantity"`
	BilledQuantity   number `json:"billedQuantity"`
	QuantityPerPiece number `json:"quantityPerPiece"`
	PiecesPerBox     number `json:"piecesPerBox"`
	NumberOfBoxes    number `json:"numberOfBoxes"`
	WeightPerMl      number `json:"weightPerMl"`
}

type wireOrder struct {
	ID                 string         `json:"_id,omitempty"`
	CompanyBargainDate string         `json:"companyBargainDate"`
	CompanyBargainNo   string         `json:"companyBargainNo"`
	SellerName         string         `json:"sellerName"`
	SellerLocation     string         `json:"sellerLocation"`
	SellerContact      string         `json:"sellerContact"`
	Status             string         `json:"status"`
	BillType           string         `json:"billType"`
	Description        string         `json:"description,omitempty"`
	Organization       string         `json:"organization,omitempty"`
	Warehouse          ref            `json:"warehouse"`
	TransportType      string         `json:"transportType,omitempty"`
	TransportLocation  string         `json:"transportLocation,omitempty"`
	PaymentDays        int            `json:"paymentDays,omitempty"`
	ReminderDays       []int          `json:"reminderDays,omitempty"`
	Items              []wireLineItem `json:"items"`
	CreatedAt          string         `json:"createdAt,omitempty"`
	UpdatedAt          string         `json:"updatedAt,omitempty"`
}

type wireInventoryTransfer struct {
	ItemName string `json:"itemName"`
	Weight   number `json:"weight"`
	Quantity number `json:"quantity"`
	BillType string `json:"billType"`
}

type wireBillTypeItem struct {
	Name     string `json:"name"`
	Quantity number `json:"quantity"`
	BillType string `json:"billType"`
}

type wireBillTypeUpdate struct {
	Items []wireBillTypeItem `json:"items"`
}

func inventoryFromWire(items []wireInventoryItem) []domain.InventoryItem {
	out := make([]domain.InventoryItem, 0, len(items))
	for _, it := range items {
		out = append(out, domain.InventoryItem{ItemName: it.ItemName, Weight: it.Weight.Decimal, Quantity: it.Quantity.Decimal})
	}
	return out
}

func inventoryToWire(items []domain.InventoryItem) []wireInventoryItem {
	out := make([]wireInventoryItem, 0, len(items))
	for _, it := range items {
		out = append(out, wireInventoryItem{ItemName: it.ItemName, Weight: num(it.Weight), Quantity: num(it.Quantity)})
	}
	return out
}

func warehouseFromWire(w wireWarehouse) domain.Warehouse {
	return domain.Warehouse{
		ID:               w.ID,
		Name:             w.Name,
		State:            w.State,
		City:             w.City,
		VirtualInventory: inventoryFromWire(w.VirtualInventory),
		BilledInventory:  inventoryFromWire(w.BilledInventory),
	}
}

func warehouseToWire(w domain.Warehouse) wireWarehouse {
	return wireWarehouse{
		ID:               w.ID,
		Name:             w.Name,
		State:            w.State,
		City:             w.City,
		VirtualInventory: inventoryToWire(w.VirtualInventory),
		BilledInventory:  inventoryToWire(w.BilledInventory),
	}
}

// orderFromWire fails on a malformed bargain date rather than guessing one.
func orderFromWire(o wireOrder) (domain.Order, error) {
	bargainDate, err := domain.ParseBargainDate(o.CompanyBargainDate)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order %s companyBargainDate: %w", o.ID, err)
	}
	createdAt, err := optionalTime(o.CreatedAt)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order %s createdAt: %w", o.ID, err)
	}
	updatedAt, err := optionalTime(o.UpdatedAt)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order %s updatedAt: %w", o.ID, err)
	}

	items := make([]domain.OrderLineItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, domain.OrderLineItem{
			Name:             it.Name,
			Packaging:        it.Packaging,
			Weight:           it.Weight.Decimal,
			StaticPrice:      it.StaticPrice.Decimal,
			Quantity:         it.Quantity.Decimal,
			BilledQuantity:   it.BilledQuantity.Decimal,
			QuantityPerPiece: it.QuantityPerPiece.Decimal,
			PiecesPerBox:     it.PiecesPerBox.Decimal,
			NumberOfBoxes:    it.NumberOfBoxes.Decimal,
			WeightPerMl:      it.WeightPerMl.Decimal,
		})
	}

	return domain.Order{
		ID:                 o.ID,
		CompanyBargainNo:   o.CompanyBargainNo,
		CompanyBargainDate: bargainDate,
		SellerName:         o.SellerName,
		SellerLocation:     o.SellerLocation,
		SellerContact:      o.SellerContact,
		Status:             domain.OrderStatus(o.Status),
		BillType:           domain.BillType(o.BillType),
		Description:        o.Description,
		Organization:       o.Organization,
		Warehouse:          string(o.Warehouse),
		TransportType:      o.TransportType,
		TransportLocation:  o.TransportLocation,
		PaymentDays:        o.PaymentDays,
		ReminderDays:       o.ReminderDays,
		Items:              items,
		CreatedAt:          createdAt,
		UpdatedAt:          updatedAt,
	}, nil
}

func orderToWire(o domain.Order) wireOrder {
	items := make([]wireLineItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, wireLineItem{
			Name:             it.Name,
			Packaging:        it.Packaging,
			Weight:           num(it.Weight),
			StaticPrice:      num(it.StaticPrice),
			Quantity:         num(it.Quantity),
			BilledQuantity:   num(it.BilledQuantity),
			QuantityPerPiece: num(it.QuantityPerPiece),
			PiecesPerBox:     num(it.PiecesPerBox),
			NumberOfBoxes:    num(it.NumberOfBoxes),
			WeightPerMl:      num(it.WeightPerMl),
		})
	}

	w := wireOrder{
		ID:                o.ID,
		CompanyBargainNo:  o.CompanyBargainNo,
		SellerName:        o.SellerName,
		SellerLocation:    o.SellerLocation,
		SellerContact:     o.SellerContact,
		Status:            string(o.Status),
		BillType:          string(o.BillType),
		Description:       o.Description,
		Organization:      o.Organization,
		Warehouse:         ref(o.Warehouse),
		TransportType:     o.TransportType,
		TransportLocation: o.TransportLocation,
		PaymentDays:       o.PaymentDays,
		ReminderDays:      o.ReminderDays,
		Items:             items,
	}
	if !o.CompanyBargainDate.IsZero() {
		w.CompanyBargainDate = o.CompanyBargainDate.UTC().Format(time.RFC3339)
	}
	return w
}

func optionalTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return domain.ParseBargainDate(s)
}
