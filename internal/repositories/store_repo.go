package repositories

import (
	"context"

	"stockflow/internal/models"

	"github.com/google/uuid"
)

type StoreRepository interface {
	GetByID(ctx context.Context, q Querier, id uuid.UUID) (*models.Store, error)
	Exists(ctx context.Context, q Querier, id uuid.UUID) (bool, error)
}

type storeRepo struct{}

func NewStoreRepository() StoreRepository {
	return &storeRepo{}
}

func (r *storeRepo) GetByID(ctx context.Context, q Querier, id uuid.UUID) (*models.Store, error) {
	store := &models.Store{}
	query := `
		SELECT id, name, address, created_at, updated_at
		FROM stores
		WHERE id = $1
	`
	err := q.QueryRow(ctx, query, id).Scan(&store.ID, &store.Name, &store.Address, &store.CreatedAt, &store.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return store, nil
}

func (r *storeRepo) Exists(ctx context.Context, q Querier, id uuid.UUID) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM stores WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}
