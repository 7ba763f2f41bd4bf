package repositories

import (
	"context"
	"fmt"

	"stockflow/internal/models"

	"github.com/google/uuid"
)

type TransferRepository interface {
	Create(ctx context.Context, q Querier, transfer *models.InventoryTransfer) error
	GetByID(ctx context.Context, q Querier, id uuid.UUID) (*models.InventoryTransfer, error)
	GetForUpdate(ctx context.Context, q Querier, id uuid.UUID) (*models.InventoryTransfer, error)
	UpdateStatus(ctx context.Context, q Querier, id uuid.UUID, status models.TransferStatus) error
}

type transferRepo struct{}

func NewTransferRepository() TransferRepository {
	return &transferRepo{}
}

func (r *transferRepo) Create(ctx context.Context, q Querier, t *models.InventoryTransfer) error {
	query := `
		INSERT INTO inventory_transfers (id, source_store_id, destination_store_id, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
	`
	if _, err := q.Exec(ctx, query, t.ID, t.SourceStoreID, t.DestinationStoreID, string(t.Status), t.Notes); err != nil {
		return fmt.Errorf("failed to insert transfer: %w", err)
	}

	lineQuery := `
		INSERT INTO inventory_transfer_lines (id, transfer_id, product_variant_id, quantity)
		VALUES ($1, $2, $3, $4)
	`
	for _, line := range t.Lines {
		if _, err := q.Exec(ctx, lineQuery, line.ID, line.TransferID, line.ProductVariantID, line.Quantity); err != nil {
			return fmt.Errorf("failed to insert transfer line: %w", err)
		}
	}
	return nil
}

const selectTransfer = `
		SELECT id, source_store_id, destination_store_id, status, notes, created_at, updated_at
		FROM inventory_transfers
		WHERE id = $1`

func (r *transferRepo) get(ctx context.Context, q Querier, query string, id uuid.UUID) (*models.InventoryTransfer, error) {
	t := &models.InventoryTransfer{}
	var status string
	err := q.QueryRow(ctx, query, id).Scan(&t.ID, &t.SourceStoreID, &t.DestinationStoreID, &status,
		&t.Notes, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	t.Status = models.TransferStatus(status)

	rows, err := q.Query(ctx, `
		SELECT id, transfer_id, product_variant_id, quantity
		FROM inventory_transfer_lines
		WHERE transfer_id = $1
		ORDER BY id
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		line := &models.TransferLine{}
		if err := rows.Scan(&line.ID, &line.TransferID, &line.ProductVariantID, &line.Quantity); err != nil {
			return nil, err
		}
		t.Lines = append(t.Lines, line)
	}
	return t, rows.Err()
}

func (r *transferRepo) GetByID(ctx context.Context, q Querier, id uuid.UUID) (*models.InventoryTransfer, error) {
	return r.get(ctx, q, selectTransfer, id)
}

func (r *transferRepo) GetForUpdate(ctx context.Context, q Querier, id uuid.UUID) (*models.InventoryTransfer, error) {
	return r.get(ctx, q, selectTransfer+"\n\t\tFOR UPDATE", id)
}

func (r *transferRepo) UpdateStatus(ctx context.Context, q Querier, id uuid.UUID, status models.TransferStatus) error {
	tag, err := q.Exec(ctx, `UPDATE inventory_transfers SET status = $1, updated_at = NOW() WHERE id = $2`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update transfer status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
