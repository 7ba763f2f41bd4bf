package jobs

import (
	"context"

	"stockflow/internal/models"

	"go.uber.org/zap"
)

// DiscrepancyFinder is the slice of the inventory ledger the audit needs.
type DiscrepancyFinder interface {
	FindDiscrepancies(ctx context.Context, limit int) ([]*models.ReconciliationReport, error)
}

// ReconciliationJob audits the ledger: every record's stored quantity must equal the replay of its
// transaction history. Mismatches are logged; nothing is corrected automatically.
type ReconciliationJob struct {
	ledger DiscrepancyFinder
	limit  int
	logger *zap.Logger
}

func NewReconciliationJob(ledger DiscrepancyFinder, limit int, logger *zap.Logger) *ReconciliationJob {
	if limit <= 0 {
		limit = 100
	}
	return &ReconciliationJob{ledger: ledger, limit: limit, logger: logger}
}

func (j *ReconciliationJob) Name() string {
	return "inventory-reconciliation"
}

func (j *ReconciliationJob) Run(ctx context.Context) error {
	reports, err := j.ledger.FindDiscrepancies(ctx, j.limit)
	if err != nil {
		return err
	}
	for _, rep := range reports {
		j.logger.Warn("inventory ledger discrepancy",
			zap.String("inventory_record_id", rep.InventoryRecordID.String()),
			zap.String("variant_id", rep.ProductVariantID.String()),
			zap.String("store_id", rep.StoreID.String()),
			zap.Int("stored", rep.StoredQuantity),
			zap.Int("replayed", rep.ReplayedQuantity),
			zap.Int("transactions", rep.TransactionCount))
	}
	j.logger.Info("inventory reconciliation finished", zap.Int("discrepancies", len(reports)))
	return nil
}
