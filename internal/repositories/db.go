package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stockflow/internal/common"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// ErrNotFound is returned by repositories when a row does not exist.
var ErrNotFound = errors.New("record not found")

// Querier is the query surface shared by *pgxpool.Pool, pgx.Tx and pgxmock.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Pool is a Querier that can open transactions.
type Pool interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// TxManager runs a unit of work inside one database transaction.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(q Querier) error) error
}

// txScope carries callbacks that must only run once the outermost transaction commits.
type txScope struct {
	pgx.Tx
	afterCommit []func()
}

// AfterCommit defers fn until the transaction behind q commits. Outside a transaction fn runs at once.
func AfterCommit(q Querier, fn func()) {
	if scope, ok := q.(*txScope); ok {
		scope.afterCommit = append(scope.afterCommit, fn)
		return
	}
	fn()
}

// Savepoint runs fn in a nested transaction. A failure rolls back only fn's writes.
func Savepoint(ctx context.Context, q Querier, fn func(q Querier) error) error {
	scope, ok := q.(*txScope)
	if !ok {
		return fn(q)
	}
	nested, err := scope.Tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to open savepoint: %w", err)
	}
	child := &txScope{Tx: nested}
	if err := fn(child); err != nil {
		if rbErr := nested.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("%w (savepoint rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := nested.Commit(ctx); err != nil {
		return fmt.Errorf("failed to release savepoint: %w", err)
	}
	scope.afterCommit = append(scope.afterCommit, child.afterCommit...)
	return nil
}

// IsContention reports serialization failures, deadlocks and lock timeouts.
func IsContention(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01", "55P03":
		return true
	}
	return false
}

// IsUniqueViolation reports a duplicate key error.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type pgTxManager struct {
	db             Pool
	maxAttempts    uint
	initialBackoff time.Duration
	logger         *zap.Logger
}

// NewTxManager returns a TxManager that retries the whole unit of work on contention.
// fn may therefore run more than once and must not leak state between attempts.
func NewTxManager(db Pool, maxAttempts uint, initialBackoff time.Duration, logger *zap.Logger) TxManager {
	if maxAttempts == 0 {
		maxAttempts = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &pgTxManager{db: db, maxAttempts: maxAttempts, initialBackoff: initialBackoff, logger: logger}
}

func (m *pgTxManager) WithinTx(ctx context.Context, fn func(q Querier) error) error {
	attempt := uint(0)
	operation := func() (struct{}, error) {
		attempt++
		err := m.runOnce(ctx, fn)
		if err == nil {
			return struct{}{}, nil
		}
		if IsContention(err) {
			m.logger.Warn("transaction contention, retrying", zap.Uint("attempt", attempt), zap.Error(err))
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}

	b := backoff.NewExponentialBackOff()
	if m.initialBackoff > 0 {
		b.InitialInterval = m.initialBackoff
	}
	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(m.maxAttempts),
	)
	if err == nil {
		return nil
	}
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Err
	}
	if IsContention(err) {
		return common.NewRetryExhausted("transaction", attempt, err)
	}
	return err
}

func (m *pgTxManager) runOnce(ctx context.Context, fn func(q Querier) error) (err error) {
	tx, err := m.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	scope := &txScope{Tx: tx}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(scope); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			m.logger.Error("rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	for _, hook := range scope.afterCommit {
		hook()
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
