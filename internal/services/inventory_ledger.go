package services

import (
	"context"
	"errors"
	"sort"

	"stockflow/internal/caching"
	"stockflow/internal/common"
	"stockflow/internal/models"
	"stockflow/internal/repositories"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// LedgerEntry describes one stock movement. Quantity is always positive; direction comes from
// the method called.
type LedgerEntry struct {
	ProductVariantID uuid.UUID
	StoreID          uuid.UUID
	Quantity         int
	Reason           models.TransactionReason
	ReferenceType    models.ReferenceType
	ReferenceID      uuid.UUID
	ActorID          *uuid.UUID
}

func (e LedgerEntry) key() models.StockKey {
	return models.StockKey{ProductVariantID: e.ProductVariantID, StoreID: e.StoreID}
}

// SortEntries orders entries by record so multi-record transitions take row locks consistently.
func SortEntries(entries []LedgerEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].key().Less(entries[j].key())
	})
}

// InventoryLedger is the only writer of inventory quantities.
type InventoryLedger interface {
	Increment(ctx context.Context, entry LedgerEntry) (*models.InventoryTransaction, error)
	Decrement(ctx context.Context, entry LedgerEntry) (*models.InventoryTransaction, error)
	IncrementTx(ctx context.Context, q repositories.Querier, entry LedgerEntry) (*models.InventoryTransaction, error)
	DecrementTx(ctx context.Context, q repositories.Querier, entry LedgerEntry) (*models.InventoryTransaction, error)
	// Adjust posts a signed manual correction.
	Adjust(ctx context.Context, variantID, storeID uuid.UUID, delta int) (*models.InventoryTransaction, error)
	CurrentQuantity(ctx context.Context, variantID, storeID uuid.UUID) (int, error)
	History(ctx context.Context, variantID, storeID uuid.UUID) ([]*models.InventoryTransaction, error)
	GetRecord(ctx context.Context, variantID, storeID uuid.UUID) (*models.InventoryRecord, error)
	Reconcile(ctx context.Context, variantID, storeID uuid.UUID) (*models.ReconciliationReport, error)
	FindDiscrepancies(ctx context.Context, limit int) ([]*models.ReconciliationReport, error)
}

type inventoryLedger struct {
	txm    repositories.TxManager
	db     repositories.Querier
	repo   repositories.InventoryRepository
	cache  caching.QuantityCache
	logger *zap.Logger
	tracer trace.Tracer

	movements    metric.Int64Counter
	insufficient metric.Int64Counter
}

func NewInventoryLedger(txm repositories.TxManager, db repositories.Querier, repo repositories.InventoryRepository, cache caching.QuantityCache, logger *zap.Logger) InventoryLedger {
	if cache == nil {
		cache = caching.NewNoopQuantityCache()
	}
	meter := otel.Meter("stockflow/ledger")
	movements, err := meter.Int64Counter("inventory.movements",
		metric.WithDescription("Units moved through the inventory ledger"),
		metric.WithUnit("{unit}"))
	if err != nil {
		logger.Warn("failed to create movements counter", zap.Error(err))
		movements, _ = noop.NewMeterProvider().Meter("stockflow/ledger").Int64Counter("inventory.movements")
	}
	insufficient, err := meter.Int64Counter("inventory.insufficient_stock",
		metric.WithDescription("Decrements refused for lack of stock"))
	if err != nil {
		logger.Warn("failed to create insufficient stock counter", zap.Error(err))
		insufficient, _ = noop.NewMeterProvider().Meter("stockflow/ledger").Int64Counter("inventory.insufficient_stock")
	}

	return &inventoryLedger{
		txm:          txm,
		db:           db,
		repo:         repo,
		cache:        cache,
		logger:       logger,
		tracer:       otel.Tracer("stockflow/ledger"),
		movements:    movements,
		insufficient: insufficient,
	}
}

func (l *inventoryLedger) Increment(ctx context.Context, entry LedgerEntry) (*models.InventoryTransaction, error) {
	if entry.Quantity <= 0 {
		return nil, common.NewInvalidQuantity(entry.Quantity)
	}
	var posted *models.InventoryTransaction
	err := l.txm.WithinTx(ctx, func(q repositories.Querier) error {
		var err error
		posted, err = l.IncrementTx(ctx, q, entry)
		return err
	})
	return posted, err
}

func (l *inventoryLedger) Decrement(ctx context.Context, entry LedgerEntry) (*models.InventoryTransaction, error) {
	if entry.Quantity <= 0 {
		return nil, common.NewInvalidQuantity(entry.Quantity)
	}
	var posted *models.InventoryTransaction
	err := l.txm.WithinTx(ctx, func(q repositories.Querier) error {
		var err error
		posted, err = l.DecrementTx(ctx, q, entry)
		return err
	})
	return posted, err
}

func (l *inventoryLedger) startSpan(ctx context.Context, name string, entry LedgerEntry) (context.Context, trace.Span) {
	ctx, span := l.tracer.Start(ctx, name)
	span.SetAttributes(
		attribute.String("inventory.variant_id", entry.ProductVariantID.String()),
		attribute.String("inventory.store_id", entry.StoreID.String()),
		attribute.Int("inventory.quantity", entry.Quantity),
		attribute.String("inventory.reason", string(entry.Reason)),
	)
	return ctx, span
}

func (l *inventoryLedger) IncrementTx(ctx context.Context, q repositories.Querier, entry LedgerEntry) (*models.InventoryTransaction, error) {
	if entry.Quantity <= 0 {
		return nil, common.NewInvalidQuantity(entry.Quantity)
	}
	ctx, span := l.startSpan(ctx, "ledger.increment", entry)
	defer span.End()

	rec, err := l.repo.EnsureLocked(ctx, q, entry.ProductVariantID, entry.StoreID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lock failed")
		return nil, err
	}
	updated, err := l.repo.ApplyDelta(ctx, q, rec.ID, entry.Quantity)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "apply failed")
		return nil, err
	}
	return l.append(ctx, q, span, updated, entry, entry.Quantity)
}

func (l *inventoryLedger) DecrementTx(ctx context.Context, q repositories.Querier, entry LedgerEntry) (*models.InventoryTransaction, error) {
	if entry.Quantity <= 0 {
		return nil, common.NewInvalidQuantity(entry.Quantity)
	}
	ctx, span := l.startSpan(ctx, "ledger.decrement", entry)
	defer span.End()

	rec, err := l.repo.LockByVariantAndStore(ctx, q, entry.ProductVariantID, entry.StoreID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, l.refuse(ctx, span, entry, 0)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "lock failed")
		return nil, err
	}
	if rec.Quantity < entry.Quantity {
		return nil, l.refuse(ctx, span, entry, rec.Quantity)
	}
	updated, err := l.repo.ApplyDelta(ctx, q, rec.ID, -entry.Quantity)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, l.refuse(ctx, span, entry, rec.Quantity)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "apply failed")
		return nil, err
	}
	return l.append(ctx, q, span, updated, entry, -entry.Quantity)
}

func (l *inventoryLedger) refuse(ctx context.Context, span trace.Span, entry LedgerEntry, available int) error {
	err := common.NewInsufficientStock(entry.ProductVariantID.String(), entry.StoreID.String(), available, entry.Quantity)
	span.SetStatus(codes.Error, "insufficient stock")
	span.SetAttributes(attribute.Int("inventory.available", available))
	l.insufficient.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", string(entry.Reason))))
	l.logger.Warn("decrement refused",
		zap.String("variant_id", entry.ProductVariantID.String()),
		zap.String("store_id", entry.StoreID.String()),
		zap.Int("available", available),
		zap.Int("requested", entry.Quantity))
	return err
}

func (l *inventoryLedger) append(ctx context.Context, q repositories.Querier, span trace.Span, rec *models.InventoryRecord, entry LedgerEntry, delta int) (*models.InventoryTransaction, error) {
	actor := entry.ActorID
	if actor == nil {
		actor = common.ActorPtr(ctx)
	}
	posted := &models.InventoryTransaction{
		ID:                uuid.New(),
		InventoryRecordID: rec.ID,
		ProductVariantID:  entry.ProductVariantID,
		StoreID:           entry.StoreID,
		Delta:             delta,
		QuantityAfter:     rec.Quantity,
		Reason:            entry.Reason,
		ReferenceType:     entry.ReferenceType,
		ReferenceID:       entry.ReferenceID,
		ActorID:           actor,
	}
	if err := l.repo.InsertTransaction(ctx, q, posted); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "append failed")
		return nil, err
	}

	variantID, storeID := entry.ProductVariantID, entry.StoreID
	quantity, version := rec.Quantity, rec.Version
	repositories.AfterCommit(q, func() {
		l.publish(context.WithoutCancel(ctx), variantID, storeID, quantity, version)
	})

	l.movements.Add(ctx, int64(entry.Quantity), metric.WithAttributes(
		attribute.String("reason", string(entry.Reason)),
		attribute.Bool("inbound", delta > 0),
	))
	span.SetAttributes(attribute.Int("inventory.quantity_after", rec.Quantity))
	span.SetStatus(codes.Ok, "posted")
	return posted, nil
}

// publish writes a committed quantity through to the cache. If the write fails the entry is dropped
// so an older version cannot outlive the movement.
func (l *inventoryLedger) publish(ctx context.Context, variantID, storeID uuid.UUID, quantity int, version int64) {
	err := l.cache.SetQuantity(ctx, variantID, storeID, quantity, version)
	if err == nil {
		return
	}
	l.logger.Warn("failed to publish cached quantity",
		zap.String("variant_id", variantID.String()),
		zap.String("store_id", storeID.String()),
		zap.Int64("version", version),
		zap.Error(err))
	if err := l.cache.DeleteQuantity(ctx, variantID, storeID); err != nil {
		l.logger.Warn("failed to invalidate cached quantity",
			zap.String("variant_id", variantID.String()),
			zap.String("store_id", storeID.String()),
			zap.Error(err))
	}
}

func (l *inventoryLedger) Adjust(ctx context.Context, variantID, storeID uuid.UUID, delta int) (*models.InventoryTransaction, error) {
	entry := LedgerEntry{
		ProductVariantID: variantID,
		StoreID:          storeID,
		Quantity:         delta,
		Reason:           models.ReasonManualAdjustment,
		ReferenceType:    models.ReferenceAdjustment,
		ReferenceID:      uuid.New(),
	}
	if delta < 0 {
		entry.Quantity = -delta
		return l.Decrement(ctx, entry)
	}
	return l.Increment(ctx, entry)
}

// CurrentQuantity treats a never-initialized pair as zero.
func (l *inventoryLedger) CurrentQuantity(ctx context.Context, variantID, storeID uuid.UUID) (int, error) {
	if quantity, ok, err := l.cache.GetQuantity(ctx, variantID, storeID); err != nil {
		l.logger.Warn("quantity cache read failed", zap.Error(err))
	} else if ok {
		return quantity, nil
	}

	rec, err := l.repo.GetByVariantAndStore(ctx, l.db, variantID, storeID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if err := l.cache.SetQuantity(ctx, variantID, storeID, rec.Quantity, rec.Version); err != nil {
		l.logger.Warn("quantity cache write failed", zap.Error(err))
	}
	return rec.Quantity, nil
}

// History is oldest first; a never-initialized pair has an empty history.
func (l *inventoryLedger) History(ctx context.Context, variantID, storeID uuid.UUID) ([]*models.InventoryTransaction, error) {
	rec, err := l.repo.GetByVariantAndStore(ctx, l.db, variantID, storeID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return []*models.InventoryTransaction{}, nil
		}
		return nil, err
	}
	return l.repo.ListTransactions(ctx, l.db, rec.ID)
}

func (l *inventoryLedger) GetRecord(ctx context.Context, variantID, storeID uuid.UUID) (*models.InventoryRecord, error) {
	rec, err := l.repo.GetByVariantAndStore(ctx, l.db, variantID, storeID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, common.NewRecordNotFound(variantID.String(), storeID.String())
		}
		return nil, err
	}
	return rec, nil
}

func (l *inventoryLedger) Reconcile(ctx context.Context, variantID, storeID uuid.UUID) (*models.ReconciliationReport, error) {
	rec, err := l.GetRecord(ctx, variantID, storeID)
	if err != nil {
		return nil, err
	}
	history, err := l.repo.ListTransactions(ctx, l.db, rec.ID)
	if err != nil {
		return nil, err
	}
	replayed := models.ReplayHistory(history)
	report := &models.ReconciliationReport{
		InventoryRecordID: rec.ID,
		ProductVariantID:  rec.ProductVariantID,
		StoreID:           rec.StoreID,
		StoredQuantity:    rec.Quantity,
		ReplayedQuantity:  replayed,
		TransactionCount:  len(history),
		Balanced:          replayed == rec.Quantity,
	}
	if !report.Balanced {
		l.logger.Error("ledger out of balance",
			zap.String("record_id", rec.ID.String()),
			zap.Int("stored", rec.Quantity),
			zap.Int("replayed", replayed))
	}
	return report, nil
}

func (l *inventoryLedger) FindDiscrepancies(ctx context.Context, limit int) ([]*models.ReconciliationReport, error) {
	return l.repo.FindDiscrepancies(ctx, l.db, limit)
}
