package services

import (
	"context"
	"errors"

	"stockflow/internal/common"
	"stockflow/internal/models"
	"stockflow/internal/repositories"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type TransferService interface {
	Create(ctx context.Context, in models.CreateTransferInput) (*models.InventoryTransfer, error)
	Get(ctx context.Context, id uuid.UUID) (*models.InventoryTransfer, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, to models.TransferStatus) (*models.InventoryTransfer, error)
}

type transferService struct {
	txm       repositories.TxManager
	db        repositories.Querier
	transfers repositories.TransferRepository
	stores    repositories.StoreRepository
	variants  repositories.VariantRepository
	ledger    InventoryLedger
	logger    *zap.Logger
	tracer    trace.Tracer
}

func NewTransferService(txm repositories.TxManager, db repositories.Querier, transfers repositories.TransferRepository, stores repositories.StoreRepository, variants repositories.VariantRepository, ledger InventoryLedger, logger *zap.Logger) TransferService {
	return &transferService{
		txm:       txm,
		db:        db,
		transfers: transfers,
		stores:    stores,
		variants:  variants,
		ledger:    ledger,
		logger:    logger,
		tracer:    otel.Tracer("stockflow/transfers"),
	}
}

func validateTransferInput(in models.CreateTransferInput) error {
	if in.SourceStoreID == uuid.Nil || in.DestinationStoreID == uuid.Nil {
		return common.NewValidation("store_id", "source and destination stores are required")
	}
	if in.SourceStoreID == in.DestinationStoreID {
		return common.NewValidation("destination_store_id", "destination must differ from source")
	}
	if len(in.Lines) == 0 {
		return common.NewValidation("lines", "at least one line is required")
	}
	for i, line := range in.Lines {
		if line.Quantity <= 0 {
			return common.NewInvalidQuantity(line.Quantity).With("index", i)
		}
		if line.ProductVariantID == uuid.Nil {
			return common.NewValidation("product_variant_id", "product variant is required").With("index", i)
		}
	}
	return nil
}

// Create records the request only. Nothing is reserved until the transfer ships.
func (s *transferService) Create(ctx context.Context, in models.CreateTransferInput) (*models.InventoryTransfer, error) {
	if err := validateTransferInput(in); err != nil {
		return nil, err
	}

	var transfer *models.InventoryTransfer
	err := s.txm.WithinTx(ctx, func(q repositories.Querier) error {
		for _, storeID := range []uuid.UUID{in.SourceStoreID, in.DestinationStoreID} {
			exists, err := s.stores.Exists(ctx, q, storeID)
			if err != nil {
				return err
			}
			if !exists {
				return common.NewNotFound("store", storeID.String())
			}
		}

		ids := make([]uuid.UUID, 0, len(in.Lines))
		for _, line := range in.Lines {
			ids = append(ids, line.ProductVariantID)
		}
		missing, err := s.variants.Missing(ctx, q, ids)
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			return common.NewNotFound("product_variant", missing[0].String())
		}

		t := &models.InventoryTransfer{
			ID:                 uuid.New(),
			SourceStoreID:      in.SourceStoreID,
			DestinationStoreID: in.DestinationStoreID,
			Status:             models.TransferPending,
			Notes:              in.Notes,
		}
		for _, line := range in.Lines {
			t.Lines = append(t.Lines, &models.TransferLine{
				ID:               uuid.New(),
				TransferID:       t.ID,
				ProductVariantID: line.ProductVariantID,
				Quantity:         line.Quantity,
			})
		}
		if err := s.transfers.Create(ctx, q, t); err != nil {
			return err
		}
		transfer = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("transfer created",
		zap.String("transfer_id", transfer.ID.String()),
		zap.String("source_store_id", transfer.SourceStoreID.String()),
		zap.String("destination_store_id", transfer.DestinationStoreID.String()))
	return transfer, nil
}

func (s *transferService) Get(ctx context.Context, id uuid.UUID) (*models.InventoryTransfer, error) {
	t, err := s.transfers.GetByID(ctx, s.db, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, common.NewNotFound("transfer", id.String())
		}
		return nil, err
	}
	return t, nil
}

func (s *transferService) UpdateStatus(ctx context.Context, id uuid.UUID, to models.TransferStatus) (*models.InventoryTransfer, error) {
	ctx, span := s.tracer.Start(ctx, "transfer.update_status")
	defer span.End()
	span.SetAttributes(attribute.String("transfer.id", id.String()), attribute.String("transfer.to", string(to)))

	var (
		transfer *models.InventoryTransfer
		from     models.TransferStatus
	)
	err := s.txm.WithinTx(ctx, func(q repositories.Querier) error {
		t, err := s.transfers.GetForUpdate(ctx, q, id)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return common.NewNotFound("transfer", id.String())
			}
			return err
		}
		from = t.Status
		if !models.CanTransitionTransfer(t.Status, to) {
			return common.NewInvalidTransition("transfer", string(t.Status), string(to))
		}

		switch {
		case to == models.TransferInTransit:
			err = s.post(ctx, q, t, t.SourceStoreID, models.ReasonTransferOut, s.ledger.DecrementTx)
		case to == models.TransferCompleted:
			err = s.post(ctx, q, t, t.DestinationStoreID, models.ReasonTransferIn, s.ledger.IncrementTx)
		case to == models.TransferCancelled && t.Status == models.TransferInTransit:
			err = s.post(ctx, q, t, t.SourceStoreID, models.ReasonTransferIn, s.ledger.IncrementTx)
		}
		if err != nil {
			return err
		}

		if err := s.transfers.UpdateStatus(ctx, q, t.ID, to); err != nil {
			return err
		}
		t.Status = to
		transfer = t
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transition failed")
		s.logger.Error("transfer status change failed", zap.String("transfer_id", id.String()), zap.String("to", string(to)), zap.Error(err))
		return nil, err
	}

	s.logger.Info("transfer status changed",
		zap.String("transfer_id", id.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	return transfer, nil
}

type postFunc func(ctx context.Context, q repositories.Querier, entry LedgerEntry) (*models.InventoryTransaction, error)

func (s *transferService) post(ctx context.Context, q repositories.Querier, t *models.InventoryTransfer, storeID uuid.UUID, reason models.TransactionReason, apply postFunc) error {
	entries := make([]LedgerEntry, 0, len(t.Lines))
	for _, line := range t.Lines {
		entries = append(entries, LedgerEntry{
			ProductVariantID: line.ProductVariantID,
			StoreID:          storeID,
			Quantity:         line.Quantity,
			Reason:           reason,
			ReferenceType:    models.ReferenceTransfer,
			ReferenceID:      t.ID,
		})
	}
	SortEntries(entries)
	for _, entry := range entries {
		if _, err := apply(ctx, q, entry); err != nil {
			return err
		}
	}
	return nil
}
