package models

import (
	"time"

	"github.com/google/uuid"
)

type TransferStatus string

const (
	TransferPending   TransferStatus = "pending"
	TransferInTransit TransferStatus = "in_transit"
	TransferCompleted TransferStatus = "completed"
	TransferCancelled TransferStatus = "cancelled"
)

var transferTransitions = map[TransferStatus][]TransferStatus{
	TransferPending:   {TransferInTransit, TransferCancelled},
	TransferInTransit: {TransferCompleted, TransferCancelled},
}

func CanTransitionTransfer(from, to TransferStatus) bool {
	for _, next := range transferTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s TransferStatus) Valid() bool {
	switch s {
	case TransferPending, TransferInTransit, TransferCompleted, TransferCancelled:
		return true
	}
	return false
}

type InventoryTransfer struct {
	ID                 uuid.UUID       `json:"id" db:"id"`
	SourceStoreID      uuid.UUID       `json:"source_store_id" db:"source_store_id"`
	DestinationStoreID uuid.UUID       `json:"destination_store_id" db:"destination_store_id"`
	Status             TransferStatus  `json:"status" db:"status"`
	Notes              *string         `json:"notes" db:"notes"`
	Lines              []*TransferLine `json:"lines" db:"-"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at" db:"updated_at"`
}

type TransferLine struct {
	ID               uuid.UUID `json:"id" db:"id"`
	TransferID       uuid.UUID `json:"transfer_id" db:"transfer_id"`
	ProductVariantID uuid.UUID `json:"product_variant_id" db:"product_variant_id"`
	Quantity         int       `json:"quantity" db:"quantity"`
}

type TransferLineInput struct {
	ProductVariantID uuid.UUID `json:"product_variant_id"`
	Quantity         int       `json:"quantity"`
}

type CreateTransferInput struct {
	SourceStoreID      uuid.UUID           `json:"source_store_id"`
	DestinationStoreID uuid.UUID           `json:"destination_store_id"`
	Lines              []TransferLineInput `json:"lines"`
	Notes              *string             `json:"notes"`
}
