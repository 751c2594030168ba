package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusCreated        OrderStatus = "created"
	OrderStatusPaymentPending OrderStatus = "payment pending"
	OrderStatusBilled         OrderStatus = "billed"
	OrderStatusCompleted      OrderStatus = "completed"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusCreated, OrderStatusPaymentPending, OrderStatusBilled, OrderStatusCompleted:
		return true
	}
	return false
}

type BillType string

const (
	BillTypeVirtualBilled BillType = "Virtual Billed"
	BillTypeBilled        BillType = "Billed"
)

func (b BillType) Valid() bool {
	return b == BillTypeVirtualBilled || b == BillTypeBilled
}

const (
	PackagingBox = "box"
	PackagingTin = "tin"
)

type OrderLineItem struct {
	Name             string          `json:"name"`
	Packaging        string          `json:"packaging"`
	Weight           decimal.Decimal `json:"weight"`
	StaticPrice      decimal.Decimal `json:"static_price"`
	Quantity         decimal.Decimal `json:"quantity"`
	BilledQuantity   decimal.Decimal `json:"billed_quantity"`
	QuantityPerPiece decimal.Decimal `json:"quantity_per_piece"`
	PiecesPerBox     decimal.Decimal `json:"pieces_per_box"`
	NumberOfBoxes    decimal.Decimal `json:"number_of_boxes"`
	WeightPerMl      decimal.Decimal `json:"weight_per_ml"`
}

// Remaining is the part of the line item not yet billed.
func (i OrderLineItem) Remaining() decimal.Decimal {
	return i.Quantity.Sub(i.BilledQuantity)
}

type Order struct {
	ID                 string          `json:"id"`
	CompanyBargainNo   string          `json:"company_bargain_no"`
	CompanyBargainDate time.Time       `json:"company_bargain_date"`
	SellerName         string          `json:"seller_name"`
	SellerLocation     string          `json:"seller_location"`
	SellerContact      string          `json:"seller_contact"`
	Status             OrderStatus     `json:"status"`
	BillType           BillType        `json:"bill_type"`
	Description        string          `json:"description,omitempty"`
	Organization       string          `json:"organization"`
	Warehouse          string          `json:"warehouse"`
	TransportType      string          `json:"transport_type"`
	TransportLocation  string          `json:"transport_location"`
	PaymentDays        int             `json:"payment_days,omitempty"`
	ReminderDays       []int           `json:"reminder_days,omitempty"`
	Items              []OrderLineItem `json:"items"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// Item returns the line item with the given name.
func (o Order) Item(name string) (OrderLineItem, bool) {
	for _, item := range o.Items {
		if item.Name == name {
			return item, true
		}
	}
	return OrderLineItem{}, false
}
