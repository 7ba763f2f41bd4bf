package models

import (
	"time"

	"github.com/google/uuid"
)

// FulfillmentType is the fulfillment classification of an order line.
type FulfillmentType string

const (
	FulfillmentStock     FulfillmentType = "stock"
	FulfillmentBackorder FulfillmentType = "backorder"
	FulfillmentCustom    FulfillmentType = "custom"
)

// DeductsInventoryImmediately is true only for stock lines.
func (t FulfillmentType) DeductsInventoryImmediately() bool {
	return t == FulfillmentStock
}

// MarksFulfilledOnCreate is true only for stock lines.
func (t FulfillmentType) MarksFulfilledOnCreate() bool {
	return t == FulfillmentStock
}

func (t FulfillmentType) Valid() bool {
	return t == FulfillmentStock || t == FulfillmentBackorder || t == FulfillmentCustom
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderFulfilled OrderStatus = "fulfilled"
	OrderCancelled OrderStatus = "cancelled"
	OrderReturned  OrderStatus = "returned"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:   {OrderFulfilled, OrderCancelled},
	OrderFulfilled: {OrderCancelled, OrderReturned},
}

func CanTransitionOrder(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderCancelled || s == OrderReturned
}

// FulfillmentPolicy decides what happens when one stock line of a multi-line order lacks stock.
type FulfillmentPolicy string

const (
	PolicyRejectWholeOrder FulfillmentPolicy = "reject_whole_order"
	PolicyAcceptPartial    FulfillmentPolicy = "accept_partial"
)

// Order is a sales order. Money fields are integer minor currency units.
type Order struct {
	ID             uuid.UUID    `json:"id" db:"id"`
	StoreID        uuid.UUID    `json:"store_id" db:"store_id"`
	OrderNumber    string       `json:"order_number" db:"order_number"`
	Status         OrderStatus  `json:"status" db:"status"`
	OrderedAt      time.Time    `json:"ordered_at" db:"ordered_at"`
	ShippingCost   int64        `json:"shipping_cost" db:"shipping_cost"`
	TaxRate        int          `json:"tax_rate" db:"tax_rate"`
	IsTaxInclusive bool         `json:"is_tax_inclusive" db:"is_tax_inclusive"`
	Subtotal       int64        `json:"subtotal" db:"subtotal"`
	TaxAmount      int64        `json:"tax_amount" db:"tax_amount"`
	GrandTotal     int64        `json:"grand_total" db:"grand_total"`
	PaidAmount     int64        `json:"paid_amount" db:"paid_amount"`
	Notes          *string      `json:"notes" db:"notes"`
	Items          []*OrderItem `json:"items" db:"-"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at" db:"updated_at"`
}

// RecalculateTotals derives the aggregate money fields from the lines and order-level fields.
func (o *Order) RecalculateTotals() {
	var subtotal int64
	for _, item := range o.Items {
		subtotal += item.LineTotal()
	}
	o.Subtotal = subtotal

	rate := int64(o.TaxRate)
	switch {
	case rate <= 0:
		o.TaxAmount = 0
	case o.IsTaxInclusive:
		o.TaxAmount = subtotal - roundDiv(subtotal*100, 100+rate)
	default:
		o.TaxAmount = roundDiv(subtotal*rate, 100)
	}

	o.GrandTotal = subtotal + o.ShippingCost
	if !o.IsTaxInclusive {
		o.GrandTotal += o.TaxAmount
	}
}

func (o *Order) BalanceDue() int64 {
	return o.GrandTotal - o.PaidAmount
}

// AllItemsFulfilled is false for an order with no lines.
func (o *Order) AllItemsFulfilled() bool {
	if len(o.Items) == 0 {
		return false
	}
	for _, item := range o.Items {
		if !item.Fulfilled {
			return false
		}
	}
	return true
}

// roundDiv divides non-negative a by positive b rounding half up.
func roundDiv(a, b int64) int64 {
	return (2*a + b) / (2 * b)
}

// ItemAttributes are the raw order-line attributes the classifier looks at.
type ItemAttributes struct {
	ProductVariantID *uuid.UUID
	IsStockedSale    interface{}
	IsBackorder      interface{}
}

type OrderItemInput struct {
	ProductVariantID *uuid.UUID  `json:"product_variant_id"`
	Description      string      `json:"description"`
	Quantity         int         `json:"quantity"`
	UnitPrice        int64       `json:"unit_price"`
	CostPrice        int64       `json:"cost_price"`
	IsStockedSale    interface{} `json:"is_stocked_sale"`
	IsBackorder      interface{} `json:"is_backorder"`
	PurchaseID       *uuid.UUID  `json:"purchase_id"`
}

func (in OrderItemInput) Attributes() ItemAttributes {
	return ItemAttributes{
		ProductVariantID: in.ProductVariantID,
		IsStockedSale:    in.IsStockedSale,
		IsBackorder:      in.IsBackorder,
	}
}

type CreateOrderInput struct {
	StoreID        uuid.UUID        `json:"store_id"`
	Items          []OrderItemInput `json:"items"`
	OrderNumber    string           `json:"order_number"`
	OrderedAt      *time.Time       `json:"ordered_at"`
	ShippingCost   int64            `json:"shipping_cost"`
	TaxRate        int              `json:"tax_rate"`
	IsTaxInclusive bool             `json:"is_tax_inclusive"`
	PaidAmount     int64            `json:"paid_amount"`
	Notes          *string          `json:"notes"`
}

// RejectedItem reports a stock line dropped under the accept-partial policy.
type RejectedItem struct {
	Index   int                    `json:"index"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}

type OrderResult struct {
	Order                *Order         `json:"order"`
	BackorderPurchaseIDs []uuid.UUID    `json:"backorder_purchase_ids,omitempty"`
	Rejected             []RejectedItem `json:"rejected,omitempty"`
}
