package repositories

import (
	"context"

	"github.com/google/uuid"
)

type VariantRepository interface {
	// Missing returns the ids in the input that have no product_variants row.
	Missing(ctx context.Context, q Querier, ids []uuid.UUID) ([]uuid.UUID, error)
}

type variantRepo struct{}

func NewVariantRepository() VariantRepository {
	return &variantRepo{}
}

func (r *variantRepo) Missing(ctx context.Context, q Querier, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := q.Query(ctx, `SELECT id FROM product_variants WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := make(map[uuid.UUID]struct{}, len(ids))
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		found[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var missing []uuid.UUID
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := found[id]; ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		missing = append(missing, id)
	}
	return missing, nil
}
