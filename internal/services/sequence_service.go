package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"stockflow/internal/common"
	"stockflow/internal/repositories"

	"go.uber.org/zap"
)

const scopeDateLayout = "20060102"

// SequenceService mints date-scoped identifiers of the form PREFIX-YYYYMMDD-NNNN.
type SequenceService interface {
	Next(ctx context.Context, prefix string, scope time.Time) (string, error)
	NextForNow(ctx context.Context, prefix string) (string, error)
	NextBatch(ctx context.Context, prefix string, scope time.Time, n int) ([]string, error)
	// NextTx joins the caller's transaction so a rollback is the only source of gaps.
	NextTx(ctx context.Context, q repositories.Querier, prefix string, scope time.Time) (string, error)
	Reset(ctx context.Context, prefix string, scope time.Time, start int64) error
	Current(ctx context.Context, prefix string, scope time.Time) (int64, error)
}

type sequenceService struct {
	txm    repositories.TxManager
	db     repositories.Querier
	repo   repositories.SequenceRepository
	logger *zap.Logger
	now    func() time.Time
}

func NewSequenceService(txm repositories.TxManager, db repositories.Querier, repo repositories.SequenceRepository, logger *zap.Logger) SequenceService {
	return &sequenceService{
		txm:    txm,
		db:     db,
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// ScopeKey is the counter row key for a prefix and calendar day.
func ScopeKey(prefix string, scope time.Time) string {
	return strings.ToUpper(prefix) + ":" + scope.UTC().Format(scopeDateLayout)
}

// FormatSequence renders one identifier. Numbers past 9999 simply widen.
func FormatSequence(prefix string, scope time.Time, n int64) string {
	return fmt.Sprintf("%s-%s-%04d", strings.ToUpper(prefix), scope.UTC().Format(scopeDateLayout), n)
}

// IsGeneratedIdentifier reports whether id has the PREFIX-YYYYMMDD-NNNN form FormatSequence produces.
func IsGeneratedIdentifier(prefix, id string) bool {
	rest, ok := strings.CutPrefix(strings.ToUpper(id), strings.ToUpper(prefix)+"-")
	if !ok || len(rest) < len(scopeDateLayout)+5 || rest[len(scopeDateLayout)] != '-' {
		return false
	}
	if _, err := time.Parse(scopeDateLayout, rest[:len(scopeDateLayout)]); err != nil {
		return false
	}
	digits := rest[len(scopeDateLayout)+1:]
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func validatePrefix(prefix string) error {
	if strings.TrimSpace(prefix) == "" {
		return common.NewValidation("prefix", "sequence prefix is required")
	}
	return nil
}

func (s *sequenceService) Next(ctx context.Context, prefix string, scope time.Time) (string, error) {
	ids, err := s.NextBatch(ctx, prefix, scope, 1)
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

func (s *sequenceService) NextForNow(ctx context.Context, prefix string) (string, error) {
	return s.Next(ctx, prefix, s.now().UTC())
}

func (s *sequenceService) NextBatch(ctx context.Context, prefix string, scope time.Time, n int) ([]string, error) {
	if err := validatePrefix(prefix); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, common.NewInvalidQuantity(n)
	}

	var ids []string
	err := s.txm.WithinTx(ctx, func(q repositories.Querier) error {
		last, err := s.repo.Increment(ctx, q, ScopeKey(prefix, scope), n)
		if err != nil {
			return err
		}
		ids = make([]string, 0, n)
		for v := last - int64(n) + 1; v <= last; v++ {
			ids = append(ids, FormatSequence(prefix, scope, v))
		}
		return nil
	})
	if err != nil {
		s.logger.Error("sequence allocation failed", zap.String("scope", ScopeKey(prefix, scope)), zap.Int("count", n), zap.Error(err))
		return nil, err
	}
	return ids, nil
}

func (s *sequenceService) NextTx(ctx context.Context, q repositories.Querier, prefix string, scope time.Time) (string, error) {
	if err := validatePrefix(prefix); err != nil {
		return "", err
	}
	value, err := s.repo.Increment(ctx, q, ScopeKey(prefix, scope), 1)
	if err != nil {
		return "", err
	}
	return FormatSequence(prefix, scope, value), nil
}

// Reset makes start the next number issued for the scope.
func (s *sequenceService) Reset(ctx context.Context, prefix string, scope time.Time, start int64) error {
	if err := validatePrefix(prefix); err != nil {
		return err
	}
	if start < 1 {
		return common.NewValidation("start", "start must be at least 1")
	}
	key := ScopeKey(prefix, scope)
	err := s.txm.WithinTx(ctx, func(q repositories.Querier) error {
		return s.repo.Set(ctx, q, key, start-1)
	})
	if err != nil {
		return err
	}
	s.logger.Info("sequence reset", zap.String("scope", key), zap.Int64("next", start))
	return nil
}

// Current is the last number issued for the scope, 0 when none was.
func (s *sequenceService) Current(ctx context.Context, prefix string, scope time.Time) (int64, error) {
	if err := validatePrefix(prefix); err != nil {
		return 0, err
	}
	counter, err := s.repo.Get(ctx, s.db, ScopeKey(prefix, scope))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return counter.Value, nil
}
