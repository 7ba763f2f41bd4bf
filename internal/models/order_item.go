package models

import (
	"time"

	"github.com/google/uuid"
)

type OrderItem struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	OrderID          uuid.UUID       `json:"order_id" db:"order_id"`
	ProductVariantID *uuid.UUID      `json:"product_variant_id" db:"product_variant_id"`
	Description      string          `json:"description" db:"description"`
	Quantity         int             `json:"quantity" db:"quantity"`
	UnitPrice        int64           `json:"unit_price" db:"unit_price"`
	CostPrice        int64           `json:"cost_price" db:"cost_price"`
	FulfillmentType  FulfillmentType `json:"fulfillment_type" db:"fulfillment_type"`
	Fulfilled        bool            `json:"fulfilled" db:"fulfilled"`
	FulfilledAt      *time.Time      `json:"fulfilled_at" db:"fulfilled_at"`
	PurchaseID       *uuid.UUID      `json:"purchase_id" db:"purchase_id"`
	PurchaseItemID   *uuid.UUID      `json:"purchase_item_id" db:"purchase_item_id"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

func (i *OrderItem) LineTotal() int64 {
	return int64(i.Quantity) * i.UnitPrice
}

func (i *OrderItem) HasVariant() bool {
	return i.ProductVariantID != nil && *i.ProductVariantID != uuid.Nil
}

// ShouldReturnInventory applies the cancellation asymmetry: stock lines were deducted at creation and
// always go back; other lines only hold stock once fulfilled.
func (i *OrderItem) ShouldReturnInventory() bool {
	if !i.HasVariant() {
		return false
	}
	if i.FulfillmentType == FulfillmentStock {
		return true
	}
	return i.Fulfilled
}
