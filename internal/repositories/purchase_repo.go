package repositories

import (
	"context"
	"fmt"

	"stockflow/internal/models"

	"github.com/google/uuid"
)

type PurchaseRepository interface {
	Create(ctx context.Context, q Querier, purchase *models.Purchase) error
	InsertItems(ctx context.Context, q Querier, items []*models.PurchaseItem) error
	UpdateItemCosts(ctx context.Context, q Querier, items []*models.PurchaseItem) error
	GetByID(ctx context.Context, q Querier, id uuid.UUID) (*models.Purchase, error)
	GetForUpdate(ctx context.Context, q Querier, id uuid.UUID) (*models.Purchase, error)
	UpdateStatus(ctx context.Context, q Querier, id uuid.UUID, status models.PurchaseStatus) error
	OrderNumberExists(ctx context.Context, q Querier, orderNumber string) (bool, error)
	SoftDelete(ctx context.Context, q Querier, id uuid.UUID) error
}

type purchaseRepo struct{}

func NewPurchaseRepository() PurchaseRepository {
	return &purchaseRepo{}
}

func (r *purchaseRepo) Create(ctx context.Context, q Querier, p *models.Purchase) error {
	query := `
		INSERT INTO purchases (id, store_id, order_number, shipping_cost, status, purchased_at, notes,
		                       is_tax_inclusive, tax_rate, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
	`
	_, err := q.Exec(ctx, query, p.ID, p.StoreID, p.OrderNumber, p.ShippingCost, string(p.Status),
		p.PurchasedAt, p.Notes, p.IsTaxInclusive, p.TaxRate)
	if err != nil {
		return fmt.Errorf("failed to insert purchase: %w", err)
	}
	return r.InsertItems(ctx, q, p.Items)
}

func (r *purchaseRepo) InsertItems(ctx context.Context, q Querier, items []*models.PurchaseItem) error {
	query := `
		INSERT INTO purchase_items (id, purchase_id, product_variant_id, position, quantity, unit_price, cost_price,
		                            allocated_shipping_cost, total_cost_price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
	`
	for _, item := range items {
		_, err := q.Exec(ctx, query, item.ID, item.PurchaseID, item.ProductVariantID, item.Position, item.Quantity,
			item.UnitPrice, item.CostPrice, item.AllocatedShippingCost, item.TotalCostPrice)
		if err != nil {
			return fmt.Errorf("failed to insert purchase item: %w", err)
		}
	}
	return nil
}

func (r *purchaseRepo) UpdateItemCosts(ctx context.Context, q Querier, items []*models.PurchaseItem) error {
	query := `
		UPDATE purchase_items
		SET allocated_shipping_cost = $1, total_cost_price = $2, updated_at = NOW()
		WHERE id = $3
	`
	for _, item := range items {
		if _, err := q.Exec(ctx, query, item.AllocatedShippingCost, item.TotalCostPrice, item.ID); err != nil {
			return fmt.Errorf("failed to update purchase item costs: %w", err)
		}
	}
	return nil
}

const selectPurchase = `
		SELECT id, store_id, order_number, shipping_cost, status, purchased_at, notes,
		       is_tax_inclusive, tax_rate, created_at, updated_at
		FROM purchases
		WHERE id = $1 AND deleted_at IS NULL`

func (r *purchaseRepo) get(ctx context.Context, q Querier, query string, id uuid.UUID) (*models.Purchase, error) {
	p := &models.Purchase{}
	var status string
	err := q.QueryRow(ctx, query, id).Scan(&p.ID, &p.StoreID, &p.OrderNumber, &p.ShippingCost, &status,
		&p.PurchasedAt, &p.Notes, &p.IsTaxInclusive, &p.TaxRate, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	p.Status = models.PurchaseStatus(status)

	items, err := r.listItems(ctx, q, id)
	if err != nil {
		return nil, err
	}
	p.Items = items
	return p, nil
}

func (r *purchaseRepo) GetByID(ctx context.Context, q Querier, id uuid.UUID) (*models.Purchase, error) {
	return r.get(ctx, q, selectPurchase, id)
}

// GetForUpdate locks the purchase row so concurrent status changes serialize.
func (r *purchaseRepo) GetForUpdate(ctx context.Context, q Querier, id uuid.UUID) (*models.Purchase, error) {
	return r.get(ctx, q, selectPurchase+"\n\t\tFOR UPDATE", id)
}

func (r *purchaseRepo) listItems(ctx context.Context, q Querier, purchaseID uuid.UUID) ([]*models.PurchaseItem, error) {
	query := `
		SELECT id, purchase_id, product_variant_id, position, quantity, unit_price, cost_price,
		       allocated_shipping_cost, total_cost_price, created_at, updated_at
		FROM purchase_items
		WHERE purchase_id = $1
		ORDER BY position ASC
	`
	rows, err := q.Query(ctx, query, purchaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*models.PurchaseItem
	for rows.Next() {
		item := &models.PurchaseItem{}
		if err := rows.Scan(&item.ID, &item.PurchaseID, &item.ProductVariantID, &item.Position, &item.Quantity, &item.UnitPrice,
			&item.CostPrice, &item.AllocatedShippingCost, &item.TotalCostPrice, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *purchaseRepo) UpdateStatus(ctx context.Context, q Querier, id uuid.UUID, status models.PurchaseStatus) error {
	query := `UPDATE purchases SET status = $1, updated_at = NOW() WHERE id = $2 AND deleted_at IS NULL`
	tag, err := q.Exec(ctx, query, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update purchase status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *purchaseRepo) OrderNumberExists(ctx context.Context, q Querier, orderNumber string) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM purchases WHERE order_number = $1)`, orderNumber).Scan(&exists)
	return exists, err
}

func (r *purchaseRepo) SoftDelete(ctx context.Context, q Querier, id uuid.UUID) error {
	tag, err := q.Exec(ctx, `UPDATE purchases SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
