package repositories

import (
	"context"
	"fmt"

	"stockflow/internal/models"

	"github.com/google/uuid"
)

type OrderRepository interface {
	Create(ctx context.Context, q Querier, order *models.Order) error
	GetByID(ctx context.Context, q Querier, id uuid.UUID) (*models.Order, error)
	GetForUpdate(ctx context.Context, q Querier, id uuid.UUID) (*models.Order, error)
	UpdateStatus(ctx context.Context, q Querier, id uuid.UUID, status models.OrderStatus) error
	UpdateTotals(ctx context.Context, q Querier, order *models.Order) error
	OrderNumberExists(ctx context.Context, q Querier, orderNumber string) (bool, error)
}

type orderRepo struct {
	items OrderItemRepository
}

func NewOrderRepository(items OrderItemRepository) OrderRepository {
	return &orderRepo{items: items}
}

func (r *orderRepo) Create(ctx context.Context, q Querier, o *models.Order) error {
	query := `
		INSERT INTO orders (id, store_id, order_number, status, ordered_at, shipping_cost, tax_rate,
		                    is_tax_inclusive, subtotal, tax_amount, grand_total, paid_amount, notes,
		                    created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
	`
	_, err := q.Exec(ctx, query, o.ID, o.StoreID, o.OrderNumber, string(o.Status), o.OrderedAt, o.ShippingCost,
		o.TaxRate, o.IsTaxInclusive, o.Subtotal, o.TaxAmount, o.GrandTotal, o.PaidAmount, o.Notes)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

const selectOrder = `
		SELECT id, store_id, order_number, status, ordered_at, shipping_cost, tax_rate, is_tax_inclusive,
		       subtotal, tax_amount, grand_total, paid_amount, notes, created_at, updated_at
		FROM orders
		WHERE id = $1`

func (r *orderRepo) get(ctx context.Context, q Querier, query string, id uuid.UUID) (*models.Order, error) {
	o := &models.Order{}
	var status string
	err := q.QueryRow(ctx, query, id).Scan(&o.ID, &o.StoreID, &o.OrderNumber, &status, &o.OrderedAt,
		&o.ShippingCost, &o.TaxRate, &o.IsTaxInclusive, &o.Subtotal, &o.TaxAmount, &o.GrandTotal,
		&o.PaidAmount, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	o.Status = models.OrderStatus(status)

	items, err := r.items.ListByOrderID(ctx, q, id)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

func (r *orderRepo) GetByID(ctx context.Context, q Querier, id uuid.UUID) (*models.Order, error) {
	return r.get(ctx, q, selectOrder, id)
}

func (r *orderRepo) GetForUpdate(ctx context.Context, q Querier, id uuid.UUID) (*models.Order, error) {
	return r.get(ctx, q, selectOrder+"\n\t\tFOR UPDATE", id)
}

func (r *orderRepo) UpdateStatus(ctx context.Context, q Querier, id uuid.UUID, status models.OrderStatus) error {
	tag, err := q.Exec(ctx, `UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *orderRepo) UpdateTotals(ctx context.Context, q Querier, o *models.Order) error {
	query := `
		UPDATE orders
		SET subtotal = $1, tax_amount = $2, grand_total = $3, updated_at = NOW()
		WHERE id = $4
	`
	if _, err := q.Exec(ctx, query, o.Subtotal, o.TaxAmount, o.GrandTotal, o.ID); err != nil {
		return fmt.Errorf("failed to update order totals: %w", err)
	}
	return nil
}

func (r *orderRepo) OrderNumberExists(ctx context.Context, q Querier, orderNumber string) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE order_number = $1)`, orderNumber).Scan(&exists)
	return exists, err
}
