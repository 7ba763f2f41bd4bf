package models

import (
	"bytes"
	"time"

	"github.com/google/uuid"
)

// TransactionReason classifies why a ledger delta was posted.
type TransactionReason string

const (
	ReasonPurchaseReceipt  TransactionReason = "purchase-receipt"
	ReasonOrderDeduction   TransactionReason = "order-deduction"
	ReasonOrderReturn      TransactionReason = "order-return"
	ReasonTransferOut      TransactionReason = "transfer-out"
	ReasonTransferIn       TransactionReason = "transfer-in"
	ReasonManualAdjustment TransactionReason = "manual-adjustment"
)

func (r TransactionReason) Valid() bool {
	switch r {
	case ReasonPurchaseReceipt, ReasonOrderDeduction, ReasonOrderReturn,
		ReasonTransferOut, ReasonTransferIn, ReasonManualAdjustment:
		return true
	}
	return false
}

// ReferenceType names the aggregate that triggered a ledger transaction.
type ReferenceType string

const (
	ReferencePurchase   ReferenceType = "purchase"
	ReferenceOrder      ReferenceType = "order"
	ReferenceTransfer   ReferenceType = "transfer"
	ReferenceAdjustment ReferenceType = "adjustment"
)

// InventoryRecord is the quantity on hand of one variant in one store.
type InventoryRecord struct {
	ID               uuid.UUID `json:"id" db:"id"`
	ProductVariantID uuid.UUID `json:"product_variant_id" db:"product_variant_id"`
	StoreID          uuid.UUID `json:"store_id" db:"store_id"`
	Quantity         int       `json:"quantity" db:"quantity"`
	Version          int64     `json:"version" db:"version"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// InventoryTransaction is an immutable ledger entry.
type InventoryTransaction struct {
	ID                uuid.UUID         `json:"id" db:"id"`
	Seq               int64             `json:"seq" db:"seq"`
	InventoryRecordID uuid.UUID         `json:"inventory_record_id" db:"inventory_record_id"`
	ProductVariantID  uuid.UUID         `json:"product_variant_id" db:"product_variant_id"`
	StoreID           uuid.UUID         `json:"store_id" db:"store_id"`
	Delta             int               `json:"delta" db:"delta"`
	QuantityAfter     int               `json:"quantity_after" db:"quantity_after"`
	Reason            TransactionReason `json:"reason" db:"reason"`
	ReferenceType     ReferenceType     `json:"reference_type" db:"reference_type"`
	ReferenceID       uuid.UUID         `json:"reference_id" db:"reference_id"`
	ActorID           *uuid.UUID        `json:"actor_id,omitempty" db:"actor_id"`
	CreatedAt         time.Time         `json:"created_at" db:"created_at"`
}

// ReconciliationReport compares a record's stored quantity with the replay of its history.
type ReconciliationReport struct {
	InventoryRecordID uuid.UUID `json:"inventory_record_id"`
	ProductVariantID  uuid.UUID `json:"product_variant_id"`
	StoreID           uuid.UUID `json:"store_id"`
	StoredQuantity    int       `json:"stored_quantity"`
	ReplayedQuantity  int       `json:"replayed_quantity"`
	TransactionCount  int       `json:"transaction_count"`
	Balanced          bool      `json:"balanced"`
}

// ReplayHistory sums deltas in order. Running balance never goes negative on a healthy ledger.
func ReplayHistory(history []*InventoryTransaction) int {
	total := 0
	for _, tx := range history {
		total += tx.Delta
	}
	return total
}

// StockKey identifies an inventory record.
type StockKey struct {
	ProductVariantID uuid.UUID
	StoreID          uuid.UUID
}

// Less orders keys so multi-record transitions always lock rows in the same order.
func (k StockKey) Less(o StockKey) bool {
	if c := bytes.Compare(k.StoreID[:], o.StoreID[:]); c != 0 {
		return c < 0
	}
	return bytes.Compare(k.ProductVariantID[:], o.ProductVariantID[:]) < 0
}
