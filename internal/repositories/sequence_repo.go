package repositories

import (
	"context"
	"fmt"

	"stockflow/internal/models"
)

// SequenceRepository owns the per-scope counters behind order and purchase numbers.
type SequenceRepository interface {
	Increment(ctx context.Context, q Querier, scope string, by int) (int64, error)
	Set(ctx context.Context, q Querier, scope string, value int64) error
	Get(ctx context.Context, q Querier, scope string) (*models.SequenceCounter, error)
}

type sequenceRepo struct{}

func NewSequenceRepository() SequenceRepository {
	return &sequenceRepo{}
}

// Increment bumps the counter by `by` and returns the new value in one statement; the upsert's row
// lock serializes callers on the same scope only.
func (r *sequenceRepo) Increment(ctx context.Context, q Querier, scope string, by int) (int64, error) {
	query := `
		INSERT INTO sequence_counters (scope, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (scope) DO UPDATE SET value = sequence_counters.value + EXCLUDED.value, updated_at = NOW()
		RETURNING value
	`
	var value int64
	if err := q.QueryRow(ctx, query, scope, by).Scan(&value); err != nil {
		return 0, fmt.Errorf("failed to increment sequence %s: %w", scope, err)
	}
	return value, nil
}

func (r *sequenceRepo) Set(ctx context.Context, q Querier, scope string, value int64) error {
	query := `
		INSERT INTO sequence_counters (scope, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (scope) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`
	if _, err := q.Exec(ctx, query, scope, value); err != nil {
		return fmt.Errorf("failed to reset sequence %s: %w", scope, err)
	}
	return nil
}

func (r *sequenceRepo) Get(ctx context.Context, q Querier, scope string) (*models.SequenceCounter, error) {
	query := `SELECT scope, value, updated_at FROM sequence_counters WHERE scope = $1`
	counter := &models.SequenceCounter{}
	if err := q.QueryRow(ctx, query, scope).Scan(&counter.Scope, &counter.Value, &counter.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	return counter, nil
}
