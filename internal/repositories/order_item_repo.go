package repositories

import (
	"context"
	"fmt"
	"time"

	"stockflow/internal/models"

	"github.com/google/uuid"
)

type OrderItemRepository interface {
	Create(ctx context.Context, q Querier, item *models.OrderItem) error
	ListByOrderID(ctx context.Context, q Querier, orderID uuid.UUID) ([]*models.OrderItem, error)
	// ListOpenByPurchase locks the unfulfilled lines of live orders waiting on a purchase.
	ListOpenByPurchase(ctx context.Context, q Querier, purchaseID uuid.UUID) ([]*models.OrderItem, error)
	MarkFulfilled(ctx context.Context, q Querier, id uuid.UUID, at time.Time) error
}

type orderItemRepo struct{}

func NewOrderItemRepository() OrderItemRepository {
	return &orderItemRepo{}
}

func (r *orderItemRepo) Create(ctx context.Context, q Querier, item *models.OrderItem) error {
	query := `
		INSERT INTO order_items (id, order_id, product_variant_id, description, quantity, unit_price, cost_price,
		                         fulfillment_type, fulfilled, fulfilled_at, purchase_id, purchase_item_id,
		                         created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
	`
	_, err := q.Exec(ctx, query, item.ID, item.OrderID, item.ProductVariantID, item.Description, item.Quantity,
		item.UnitPrice, item.CostPrice, string(item.FulfillmentType), item.Fulfilled, item.FulfilledAt,
		item.PurchaseID, item.PurchaseItemID)
	if err != nil {
		return fmt.Errorf("failed to insert order item: %w", err)
	}
	return nil
}

const orderItemColumns = `i.id, i.order_id, i.product_variant_id, i.description, i.quantity, i.unit_price,
		       i.cost_price, i.fulfillment_type, i.fulfilled, i.fulfilled_at, i.purchase_id, i.purchase_item_id,
		       i.created_at, i.updated_at`

func (r *orderItemRepo) list(ctx context.Context, q Querier, query string, arg uuid.UUID) ([]*models.OrderItem, error) {
	rows, err := q.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*models.OrderItem
	for rows.Next() {
		item := &models.OrderItem{}
		var fulfillmentType string
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductVariantID, &item.Description, &item.Quantity,
			&item.UnitPrice, &item.CostPrice, &fulfillmentType, &item.Fulfilled, &item.FulfilledAt,
			&item.PurchaseID, &item.PurchaseItemID, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		item.FulfillmentType = models.FulfillmentType(fulfillmentType)
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *orderItemRepo) ListByOrderID(ctx context.Context, q Querier, orderID uuid.UUID) ([]*models.OrderItem, error) {
	query := `
		SELECT ` + orderItemColumns + `
		FROM order_items i
		WHERE i.order_id = $1
		ORDER BY i.created_at ASC, i.id ASC
	`
	return r.list(ctx, q, query, orderID)
}

func (r *orderItemRepo) ListOpenByPurchase(ctx context.Context, q Querier, purchaseID uuid.UUID) ([]*models.OrderItem, error) {
	query := `
		SELECT ` + orderItemColumns + `
		FROM order_items i
		JOIN orders o ON o.id = i.order_id
		WHERE i.purchase_id = $1 AND i.fulfilled = FALSE AND o.status NOT IN ('cancelled', 'returned')
		ORDER BY i.created_at ASC, i.id ASC
		FOR UPDATE OF i
	`
	return r.list(ctx, q, query, purchaseID)
}

func (r *orderItemRepo) MarkFulfilled(ctx context.Context, q Querier, id uuid.UUID, at time.Time) error {
	query := `UPDATE order_items SET fulfilled = TRUE, fulfilled_at = $1, updated_at = NOW() WHERE id = $2`
	tag, err := q.Exec(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("failed to mark order item fulfilled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
