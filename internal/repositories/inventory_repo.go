package repositories

import (
	"context"
	"fmt"

	"stockflow/internal/models"

	"github.com/google/uuid"
)

// InventoryRepository persists inventory records and their append-only transaction log.
// Every method takes the Querier so callers decide the transaction boundary.
type InventoryRepository interface {
	GetByVariantAndStore(ctx context.Context, q Querier, variantID, storeID uuid.UUID) (*models.InventoryRecord, error)
	LockByVariantAndStore(ctx context.Context, q Querier, variantID, storeID uuid.UUID) (*models.InventoryRecord, error)
	EnsureLocked(ctx context.Context, q Querier, variantID, storeID uuid.UUID) (*models.InventoryRecord, error)
	ApplyDelta(ctx context.Context, q Querier, recordID uuid.UUID, delta int) (*models.InventoryRecord, error)
	InsertTransaction(ctx context.Context, q Querier, tx *models.InventoryTransaction) error
	ListTransactions(ctx context.Context, q Querier, recordID uuid.UUID) ([]*models.InventoryTransaction, error)
	NetByReference(ctx context.Context, q Querier, refType models.ReferenceType, refID uuid.UUID, reason models.TransactionReason) (map[models.StockKey]int, error)
	CountByReference(ctx context.Context, q Querier, refType models.ReferenceType, refID uuid.UUID) (int, error)
	FindDiscrepancies(ctx context.Context, q Querier, limit int) ([]*models.ReconciliationReport, error)
}

type inventoryRepo struct{}

func NewInventoryRepository() InventoryRepository {
	return &inventoryRepo{}
}

const selectInventoryRecord = `
		SELECT id, product_variant_id, store_id, quantity, version, created_at, updated_at
		FROM inventory_records
		WHERE product_variant_id = $1 AND store_id = $2`

func (r *inventoryRepo) scanRecord(ctx context.Context, q Querier, query string, variantID, storeID uuid.UUID) (*models.InventoryRecord, error) {
	rec := &models.InventoryRecord{}
	err := q.QueryRow(ctx, query, variantID, storeID).Scan(
		&rec.ID, &rec.ProductVariantID, &rec.StoreID, &rec.Quantity, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return rec, nil
}

func (r *inventoryRepo) GetByVariantAndStore(ctx context.Context, q Querier, variantID, storeID uuid.UUID) (*models.InventoryRecord, error) {
	return r.scanRecord(ctx, q, selectInventoryRecord, variantID, storeID)
}

// LockByVariantAndStore takes the row lock that serializes concurrent movements on one record.
func (r *inventoryRepo) LockByVariantAndStore(ctx context.Context, q Querier, variantID, storeID uuid.UUID) (*models.InventoryRecord, error) {
	return r.scanRecord(ctx, q, selectInventoryRecord+"\n\t\tFOR UPDATE", variantID, storeID)
}

// EnsureLocked creates the record at zero when absent, then locks it.
func (r *inventoryRepo) EnsureLocked(ctx context.Context, q Querier, variantID, storeID uuid.UUID) (*models.InventoryRecord, error) {
	query := `
		INSERT INTO inventory_records (id, product_variant_id, store_id, quantity, version, created_at, updated_at)
		VALUES ($1, $2, $3, 0, 0, NOW(), NOW())
		ON CONFLICT (product_variant_id, store_id) DO NOTHING
	`
	if _, err := q.Exec(ctx, query, uuid.New(), variantID, storeID); err != nil {
		return nil, fmt.Errorf("failed to initialize inventory record: %w", err)
	}
	return r.LockByVariantAndStore(ctx, q, variantID, storeID)
}

// ApplyDelta adds delta to the record. The WHERE guard refuses any change that would go below zero,
// in which case ErrNotFound is returned.
func (r *inventoryRepo) ApplyDelta(ctx context.Context, q Querier, recordID uuid.UUID, delta int) (*models.InventoryRecord, error) {
	query := `
		UPDATE inventory_records
		SET quantity = quantity + $2, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND quantity + $2 >= 0
		RETURNING product_variant_id, store_id, quantity, version, created_at, updated_at
	`
	rec := &models.InventoryRecord{ID: recordID}
	err := q.QueryRow(ctx, query, recordID, delta).Scan(
		&rec.ProductVariantID, &rec.StoreID, &rec.Quantity, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return rec, nil
}

func (r *inventoryRepo) InsertTransaction(ctx context.Context, q Querier, tx *models.InventoryTransaction) error {
	query := `
		INSERT INTO inventory_transactions (
			id, inventory_record_id, product_variant_id, store_id, delta, quantity_after,
			reason, reference_type, reference_id, actor_id, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, clock_timestamp())
		RETURNING seq, created_at
	`
	err := q.QueryRow(ctx, query,
		tx.ID, tx.InventoryRecordID, tx.ProductVariantID, tx.StoreID, tx.Delta, tx.QuantityAfter,
		string(tx.Reason), string(tx.ReferenceType), tx.ReferenceID, tx.ActorID,
	).Scan(&tx.Seq, &tx.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append inventory transaction: %w", err)
	}
	return nil
}

// ListTransactions returns a record's history oldest first.
func (r *inventoryRepo) ListTransactions(ctx context.Context, q Querier, recordID uuid.UUID) ([]*models.InventoryTransaction, error) {
	query := `
		SELECT id, seq, inventory_record_id, product_variant_id, store_id, delta, quantity_after,
		       reason, reference_type, reference_id, actor_id, created_at
		FROM inventory_transactions
		WHERE inventory_record_id = $1
		ORDER BY created_at ASC, seq ASC
	`
	rows, err := q.Query(ctx, query, recordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []*models.InventoryTransaction
	for rows.Next() {
		tx := &models.InventoryTransaction{}
		var reason, refType string
		if err := rows.Scan(&tx.ID, &tx.Seq, &tx.InventoryRecordID, &tx.ProductVariantID, &tx.StoreID,
			&tx.Delta, &tx.QuantityAfter, &reason, &refType, &tx.ReferenceID, &tx.ActorID, &tx.CreatedAt); err != nil {
			return nil, err
		}
		tx.Reason = models.TransactionReason(reason)
		tx.ReferenceType = models.ReferenceType(refType)
		history = append(history, tx)
	}
	return history, rows.Err()
}

// NetByReference sums what one aggregate has posted per record for a given reason.
func (r *inventoryRepo) NetByReference(ctx context.Context, q Querier, refType models.ReferenceType, refID uuid.UUID, reason models.TransactionReason) (map[models.StockKey]int, error) {
	query := `
		SELECT product_variant_id, store_id, COALESCE(SUM(delta), 0)
		FROM inventory_transactions
		WHERE reference_type = $1 AND reference_id = $2 AND reason = $3
		GROUP BY product_variant_id, store_id
	`
	rows, err := q.Query(ctx, query, string(refType), refID, string(reason))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	net := make(map[models.StockKey]int)
	for rows.Next() {
		var key models.StockKey
		var sum int
		if err := rows.Scan(&key.ProductVariantID, &key.StoreID, &sum); err != nil {
			return nil, err
		}
		net[key] = sum
	}
	return net, rows.Err()
}

func (r *inventoryRepo) CountByReference(ctx context.Context, q Querier, refType models.ReferenceType, refID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM inventory_transactions WHERE reference_type = $1 AND reference_id = $2`
	var count int
	if err := q.QueryRow(ctx, query, string(refType), refID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// FindDiscrepancies lists records whose stored quantity differs from the sum of their deltas.
func (r *inventoryRepo) FindDiscrepancies(ctx context.Context, q Querier, limit int) ([]*models.ReconciliationReport, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT r.id, r.product_variant_id, r.store_id, r.quantity,
		       COALESCE(SUM(t.delta), 0) AS replayed, COUNT(t.id) AS transactions
		FROM inventory_records r
		LEFT JOIN inventory_transactions t ON t.inventory_record_id = r.id
		GROUP BY r.id
		HAVING r.quantity <> COALESCE(SUM(t.delta), 0)
		ORDER BY r.id
		LIMIT $1
	`
	rows, err := q.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []*models.ReconciliationReport
	for rows.Next() {
		rep := &models.ReconciliationReport{}
		if err := rows.Scan(&rep.InventoryRecordID, &rep.ProductVariantID, &rep.StoreID,
			&rep.StoredQuantity, &rep.ReplayedQuantity, &rep.TransactionCount); err != nil {
			return nil, err
		}
		reports = append(reports, rep)
	}
	return reports, rows.Err()
}
