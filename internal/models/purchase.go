package models

import (
	"time"

	"github.com/google/uuid"
)

type PurchaseStatus string

const (
	PurchasePending           PurchaseStatus = "pending"
	PurchaseConfirmed         PurchaseStatus = "confirmed"
	PurchaseInTransit         PurchaseStatus = "in_transit"
	PurchasePartiallyReceived PurchaseStatus = "partially_received"
	PurchaseReceived          PurchaseStatus = "received"
	PurchaseCompleted         PurchaseStatus = "completed"
	PurchaseCancelled         PurchaseStatus = "cancelled"
)

// purchaseTransitions is the single source of allowed purchase status changes.
var purchaseTransitions = map[PurchaseStatus][]PurchaseStatus{
	PurchasePending:           {PurchaseConfirmed, PurchaseCancelled},
	PurchaseConfirmed:         {PurchaseInTransit, PurchaseCancelled},
	PurchaseInTransit:         {PurchaseReceived, PurchasePartiallyReceived, PurchaseCancelled},
	PurchasePartiallyReceived: {PurchaseReceived},
	PurchaseReceived:          {PurchaseCompleted},
}

func (s PurchaseStatus) Valid() bool {
	switch s {
	case PurchasePending, PurchaseConfirmed, PurchaseInTransit, PurchasePartiallyReceived,
		PurchaseReceived, PurchaseCompleted, PurchaseCancelled:
		return true
	}
	return false
}

func (s PurchaseStatus) IsTerminal() bool {
	return s == PurchaseCompleted || s == PurchaseCancelled
}

// AcceptsItems reports whether new lines may still be attached.
func (s PurchaseStatus) AcceptsItems() bool {
	return s == PurchasePending || s == PurchaseConfirmed
}

func CanTransitionPurchase(from, to PurchaseStatus) bool {
	for _, next := range purchaseTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Purchase is a purchase order. Money fields are integer minor currency units.
type Purchase struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	StoreID        uuid.UUID       `json:"store_id" db:"store_id"`
	OrderNumber    string          `json:"order_number" db:"order_number"`
	ShippingCost   int64           `json:"shipping_cost" db:"shipping_cost"`
	Status         PurchaseStatus  `json:"status" db:"status"`
	PurchasedAt    time.Time       `json:"purchased_at" db:"purchased_at"`
	Notes          *string         `json:"notes" db:"notes"`
	IsTaxInclusive bool            `json:"is_tax_inclusive" db:"is_tax_inclusive"`
	TaxRate        int             `json:"tax_rate" db:"tax_rate"`
	Items          []*PurchaseItem `json:"items" db:"-"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
	DeletedAt      *time.Time      `json:"deleted_at,omitempty" db:"deleted_at"`
}

// PurchaseItem is one line of a purchase. Position is 0-based and never reused, so appended
// items always sort after the ones already on the purchase.
type PurchaseItem struct {
	ID                    uuid.UUID `json:"id" db:"id"`
	PurchaseID            uuid.UUID `json:"purchase_id" db:"purchase_id"`
	ProductVariantID      uuid.UUID `json:"product_variant_id" db:"product_variant_id"`
	Position              int       `json:"position" db:"position"`
	Quantity              int       `json:"quantity" db:"quantity"`
	UnitPrice             int64     `json:"unit_price" db:"unit_price"`
	CostPrice             int64     `json:"cost_price" db:"cost_price"`
	AllocatedShippingCost int64     `json:"allocated_shipping_cost" db:"allocated_shipping_cost"`
	TotalCostPrice        int64     `json:"total_cost_price" db:"total_cost_price"`
	CreatedAt             time.Time `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time `json:"updated_at" db:"updated_at"`
}

// Subtotal is quantity × cost price, the weight used for shipping allocation.
func (i *PurchaseItem) Subtotal() int64 {
	return int64(i.Quantity) * i.CostPrice
}

type PurchaseItemInput struct {
	ProductVariantID uuid.UUID `json:"product_variant_id"`
	Quantity         int       `json:"quantity"`
	UnitPrice        int64     `json:"unit_price"`
	CostPrice        int64     `json:"cost_price"`
}

type CreatePurchaseInput struct {
	StoreID        uuid.UUID           `json:"store_id"`
	Items          []PurchaseItemInput `json:"items"`
	ShippingCost   int64               `json:"shipping_cost"`
	OrderNumber    string              `json:"order_number"`
	PurchasedAt    *time.Time          `json:"purchased_at"`
	Status         *PurchaseStatus     `json:"status"`
	Notes          *string             `json:"notes"`
	IsTaxInclusive bool                `json:"is_tax_inclusive"`
	TaxRate        int                 `json:"tax_rate"`
}

type PurchaseItemResult struct {
	ID                    uuid.UUID `json:"id"`
	ProductVariantID      uuid.UUID `json:"product_variant_id"`
	Quantity              int       `json:"quantity"`
	CostPrice             int64     `json:"cost_price"`
	AllocatedShippingCost int64     `json:"allocated_shipping_cost"`
	TotalCostPrice        int64     `json:"total_cost_price"`
}

// PurchaseResult is what adapters render after a purchase operation.
type PurchaseResult struct {
	ID           uuid.UUID            `json:"id"`
	OrderNumber  string               `json:"order_number"`
	Status       PurchaseStatus       `json:"status"`
	ShippingCost int64                `json:"shipping_cost"`
	Items        []PurchaseItemResult `json:"items"`
}

func NewPurchaseResult(p *Purchase) *PurchaseResult {
	res := &PurchaseResult{
		ID:           p.ID,
		OrderNumber:  p.OrderNumber,
		Status:       p.Status,
		ShippingCost: p.ShippingCost,
		Items:        make([]PurchaseItemResult, 0, len(p.Items)),
	}
	for _, item := range p.Items {
		res.Items = append(res.Items, PurchaseItemResult{
			ID:                    item.ID,
			ProductVariantID:      item.ProductVariantID,
			Quantity:              item.Quantity,
			CostPrice:             item.CostPrice,
			AllocatedShippingCost: item.AllocatedShippingCost,
			TotalCostPrice:        item.TotalCostPrice,
		})
	}
	return res
}
