package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

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

// PurchaseCompletionHook runs inside the completing transaction, after stock has been posted.
type PurchaseCompletionHook interface {
	PurchaseCompleted(ctx context.Context, q repositories.Querier, purchase *models.Purchase) error
}

type PurchaseService interface {
	Create(ctx context.Context, in models.CreatePurchaseInput) (*models.PurchaseResult, error)
	CreateTx(ctx context.Context, q repositories.Querier, in models.CreatePurchaseInput) (*models.Purchase, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Purchase, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, to models.PurchaseStatus) (*models.PurchaseResult, error)
	// Revert takes a completed purchase back to received and withdraws the stock it posted.
	Revert(ctx context.Context, id uuid.UUID) (*models.PurchaseResult, error)
	// AttachItemsTx appends backorder items. The purchase must receive stock at storeID.
	AttachItemsTx(ctx context.Context, q repositories.Querier, purchaseID, storeID uuid.UUID, items []models.PurchaseItemInput) ([]*models.PurchaseItem, error)
	Delete(ctx context.Context, id uuid.UUID) error
	RegisterHook(hook PurchaseCompletionHook)
}

type purchaseService struct {
	txm       repositories.TxManager
	db        repositories.Querier
	purchases repositories.PurchaseRepository
	stores    repositories.StoreRepository
	variants  repositories.VariantRepository
	inventory repositories.InventoryRepository
	ledger    InventoryLedger
	sequences SequenceService
	prefix    string
	hooks     []PurchaseCompletionHook
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

type PurchaseServiceDeps struct {
	TxManager   repositories.TxManager
	DB          repositories.Querier
	Purchases   repositories.PurchaseRepository
	Stores      repositories.StoreRepository
	Variants    repositories.VariantRepository
	Inventory   repositories.InventoryRepository
	Ledger      InventoryLedger
	Sequences   SequenceService
	OrderPrefix string
	Logger      *zap.Logger
}

func NewPurchaseService(deps PurchaseServiceDeps) PurchaseService {
	prefix := deps.OrderPrefix
	if prefix == "" {
		prefix = "PO"
	}
	return &purchaseService{
		txm:       deps.TxManager,
		db:        deps.DB,
		purchases: deps.Purchases,
		stores:    deps.Stores,
		variants:  deps.Variants,
		inventory: deps.Inventory,
		ledger:    deps.Ledger,
		sequences: deps.Sequences,
		prefix:    prefix,
		logger:    deps.Logger,
		tracer:    otel.Tracer("stockflow/purchases"),
		now:       time.Now,
	}
}

// RegisterHook must be called during wiring, before the service handles requests.
func (s *purchaseService) RegisterHook(hook PurchaseCompletionHook) {
	s.hooks = append(s.hooks, hook)
}

// AllocateShipping spreads shipping across items in proportion to quantity × cost price.
// The last item takes the rounding remainder so allocations always sum to shipping.
// When every subtotal is zero the split is even by item count.
func AllocateShipping(items []*models.PurchaseItem, shipping int64) {
	if len(items) == 0 {
		return
	}
	var total int64
	for _, item := range items {
		total += item.Subtotal()
	}

	var allocated int64
	last := len(items) - 1
	for i, item := range items {
		var share int64
		switch {
		case i == last:
			share = shipping - allocated
		case total > 0:
			share = shipping * item.Subtotal() / total
		default:
			share = shipping / int64(len(items))
		}
		allocated += share
		item.AllocatedShippingCost = share
		item.TotalCostPrice = item.Subtotal() + share
	}
}

func validatePurchaseItems(items []models.PurchaseItemInput) error {
	if len(items) == 0 {
		return common.NewValidation("items", "at least one item is required")
	}
	for i, item := range items {
		if item.Quantity <= 0 {
			return common.NewInvalidQuantity(item.Quantity).With("index", i)
		}
		if item.UnitPrice < 0 {
			return common.NewValidation("unit_price", "unit price cannot be negative").With("index", i)
		}
		if item.CostPrice < 0 {
			return common.NewValidation("cost_price", "cost price cannot be negative").With("index", i)
		}
		if item.ProductVariantID == uuid.Nil {
			return common.NewValidation("product_variant_id", "product variant is required").With("index", i)
		}
	}
	return nil
}

func validatePurchaseInput(in models.CreatePurchaseInput) error {
	if in.StoreID == uuid.Nil {
		return common.NewValidation("store_id", "store is required")
	}
	if in.ShippingCost < 0 {
		return common.NewValidation("shipping_cost", "shipping cost cannot be negative")
	}
	if in.TaxRate < 0 || in.TaxRate > 100 {
		return common.NewValidation("tax_rate", "tax rate must be between 0 and 100")
	}
	if in.Status != nil {
		switch *in.Status {
		case models.PurchasePending, models.PurchaseConfirmed, models.PurchaseCompleted:
		default:
			return common.NewValidation("status", fmt.Sprintf("purchase cannot be created as %s", *in.Status))
		}
	}
	return validatePurchaseItems(in.Items)
}

func (s *purchaseService) checkVariants(ctx context.Context, q repositories.Querier, items []models.PurchaseItemInput) error {
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductVariantID)
	}
	missing, err := s.variants.Missing(ctx, q, ids)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return common.NewNotFound("product_variant", missing[0].String())
	}
	return nil
}

func (s *purchaseService) Create(ctx context.Context, in models.CreatePurchaseInput) (*models.PurchaseResult, error) {
	if err := validatePurchaseInput(in); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "purchase.create")
	defer span.End()
	span.SetAttributes(attribute.String("purchase.store_id", in.StoreID.String()), attribute.Int("purchase.items", len(in.Items)))

	var result *models.PurchaseResult
	err := s.txm.WithinTx(ctx, func(q repositories.Querier) error {
		p, err := s.CreateTx(ctx, q, in)
		if err != nil {
			return err
		}
		result = models.NewPurchaseResult(p)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		s.logger.Error("purchase creation failed", zap.String("store_id", in.StoreID.String()), zap.Error(err))
		return nil, err
	}

	span.SetAttributes(attribute.String("purchase.id", result.ID.String()))
	s.logger.Info("purchase created",
		zap.String("purchase_id", result.ID.String()),
		zap.String("order_number", result.OrderNumber),
		zap.String("status", string(result.Status)))
	return result, nil
}

func (s *purchaseService) CreateTx(ctx context.Context, q repositories.Querier, in models.CreatePurchaseInput) (*models.Purchase, error) {
	if err := validatePurchaseInput(in); err != nil {
		return nil, err
	}

	exists, err := s.stores.Exists(ctx, q, in.StoreID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, common.NewNotFound("store", in.StoreID.String())
	}
	if err := s.checkVariants(ctx, q, in.Items); err != nil {
		return nil, err
	}

	purchasedAt := s.now().UTC()
	if in.PurchasedAt != nil {
		purchasedAt = *in.PurchasedAt
	}

	orderNumber := in.OrderNumber
	if orderNumber == "" {
		orderNumber, err = s.sequences.NextTx(ctx, q, s.prefix, purchasedAt)
		if err != nil {
			return nil, err
		}
	} else {
		if IsGeneratedIdentifier(s.prefix, orderNumber) {
			return nil, common.NewValidation("order_number", "order number is reserved for generated numbering").With("order_number", orderNumber)
		}
		taken, err := s.purchases.OrderNumberExists(ctx, q, orderNumber)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, common.NewValidation("order_number", "order number already exists").With("order_number", orderNumber)
		}
	}

	status := models.PurchasePending
	if in.Status != nil {
		status = *in.Status
	}

	p := &models.Purchase{
		ID:             uuid.New(),
		StoreID:        in.StoreID,
		OrderNumber:    orderNumber,
		ShippingCost:   in.ShippingCost,
		Status:         status,
		PurchasedAt:    purchasedAt,
		Notes:          in.Notes,
		IsTaxInclusive: in.IsTaxInclusive,
		TaxRate:        in.TaxRate,
	}
	p.Items = buildPurchaseItems(p.ID, 0, in.Items)
	AllocateShipping(p.Items, p.ShippingCost)

	if err := s.purchases.Create(ctx, q, p); err != nil {
		if repositories.IsUniqueViolation(err) {
			return nil, common.NewValidation("order_number", "order number already exists").With("order_number", orderNumber)
		}
		return nil, err
	}

	if status == models.PurchaseCompleted {
		if err := s.complete(ctx, q, p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func buildPurchaseItems(purchaseID uuid.UUID, first int, inputs []models.PurchaseItemInput) []*models.PurchaseItem {
	items := make([]*models.PurchaseItem, 0, len(inputs))
	for i, in := range inputs {
		items = append(items, &models.PurchaseItem{
			ID:               uuid.New(),
			PurchaseID:       purchaseID,
			ProductVariantID: in.ProductVariantID,
			Position:         first + i,
			Quantity:         in.Quantity,
			UnitPrice:        in.UnitPrice,
			CostPrice:        in.CostPrice,
		})
	}
	return items
}

func nextPosition(items []*models.PurchaseItem) int {
	next := 0
	for _, item := range items {
		if item.Position >= next {
			next = item.Position + 1
		}
	}
	return next
}

func (s *purchaseService) Get(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	p, err := s.purchases.GetByID(ctx, s.db, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, common.NewNotFound("purchase", id.String())
		}
		return nil, err
	}
	return p, nil
}

func (s *purchaseService) lock(ctx context.Context, q repositories.Querier, id uuid.UUID) (*models.Purchase, error) {
	p, err := s.purchases.GetForUpdate(ctx, q, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, common.NewNotFound("purchase", id.String())
		}
		return nil, err
	}
	return p, nil
}

func (s *purchaseService) UpdateStatus(ctx context.Context, id uuid.UUID, to models.PurchaseStatus) (*models.PurchaseResult, error) {
	ctx, span := s.tracer.Start(ctx, "purchase.update_status")
	defer span.End()
	span.SetAttributes(attribute.String("purchase.id", id.String()), attribute.String("purchase.to", string(to)))

	var (
		result *models.PurchaseResult
		from   models.PurchaseStatus
	)
	err := s.txm.WithinTx(ctx, func(q repositories.Querier) error {
		p, err := s.lock(ctx, q, id)
		if err != nil {
			return err
		}
		from = p.Status
		if !models.CanTransitionPurchase(p.Status, to) {
			return common.NewInvalidTransition("purchase", string(p.Status), string(to))
		}

		switch to {
		case models.PurchaseCompleted:
			if err := s.complete(ctx, q, p); err != nil {
				return err
			}
		case models.PurchaseCancelled:
			if err := s.withdrawReceipts(ctx, q, p, "purchase cancellation"); err != nil {
				return err
			}
		}

		if err := s.purchases.UpdateStatus(ctx, q, p.ID, to); err != nil {
			return err
		}
		p.Status = to
		result = models.NewPurchaseResult(p)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transition failed")
		s.logger.Error("purchase status change failed",
			zap.String("purchase_id", id.String()),
			zap.String("to", string(to)),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("purchase status changed",
		zap.String("purchase_id", id.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	return result, nil
}

// complete posts one purchase-receipt per item, then runs the completion hooks.
func (s *purchaseService) complete(ctx context.Context, q repositories.Querier, p *models.Purchase) error {
	entries := make([]LedgerEntry, 0, len(p.Items))
	for _, item := range p.Items {
		entries = append(entries, LedgerEntry{
			ProductVariantID: item.ProductVariantID,
			StoreID:          p.StoreID,
			Quantity:         item.Quantity,
			Reason:           models.ReasonPurchaseReceipt,
			ReferenceType:    models.ReferencePurchase,
			ReferenceID:      p.ID,
		})
	}
	SortEntries(entries)
	for _, entry := range entries {
		if _, err := s.ledger.IncrementTx(ctx, q, entry); err != nil {
			return err
		}
	}

	for _, hook := range s.hooks {
		if err := hook.PurchaseCompleted(ctx, q, p); err != nil {
			return err
		}
	}
	return nil
}

// withdrawReceipts reverses whatever the ledger shows this purchase has net posted. Any refused
// decrement fails the whole operation.
func (s *purchaseService) withdrawReceipts(ctx context.Context, q repositories.Querier, p *models.Purchase, operation string) error {
	net, err := s.inventory.NetByReference(ctx, q, models.ReferencePurchase, p.ID, models.ReasonPurchaseReceipt)
	if err != nil {
		return err
	}

	keys := make([]models.StockKey, 0, len(net))
	for key, qty := range net {
		if qty > 0 {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	for _, key := range keys {
		_, err := s.ledger.DecrementTx(ctx, q, LedgerEntry{
			ProductVariantID: key.ProductVariantID,
			StoreID:          key.StoreID,
			Quantity:         net[key],
			Reason:           models.ReasonPurchaseReceipt,
			ReferenceType:    models.ReferencePurchase,
			ReferenceID:      p.ID,
		})
		if err != nil {
			if common.KindOf(err) == "" {
				return err
			}
			return common.NewOperationFailed(operation, err, map[string]interface{}{
				"purchase_id":        p.ID.String(),
				"product_variant_id": key.ProductVariantID.String(),
				"store_id":           key.StoreID.String(),
				"quantity":           net[key],
			})
		}
	}
	return nil
}

func (s *purchaseService) Revert(ctx context.Context, id uuid.UUID) (*models.PurchaseResult, error) {
	ctx, span := s.tracer.Start(ctx, "purchase.revert")
	defer span.End()
	span.SetAttributes(attribute.String("purchase.id", id.String()))

	var result *models.PurchaseResult
	err := s.txm.WithinTx(ctx, func(q repositories.Querier) error {
		p, err := s.lock(ctx, q, id)
		if err != nil {
			return err
		}
		if p.Status != models.PurchaseCompleted {
			return common.NewInvalidTransition("purchase", string(p.Status), string(models.PurchaseReceived))
		}
		if err := s.withdrawReceipts(ctx, q, p, "purchase reversion"); err != nil {
			return err
		}
		if err := s.purchases.UpdateStatus(ctx, q, p.ID, models.PurchaseReceived); err != nil {
			return err
		}
		p.Status = models.PurchaseReceived
		result = models.NewPurchaseResult(p)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "revert failed")
		s.logger.Error("purchase revert failed", zap.String("purchase_id", id.String()), zap.Error(err))
		return nil, err
	}

	s.logger.Info("purchase reverted", zap.String("purchase_id", id.String()))
	return result, nil
}

func (s *purchaseService) AttachItemsTx(ctx context.Context, q repositories.Querier, purchaseID, storeID uuid.UUID, inputs []models.PurchaseItemInput) ([]*models.PurchaseItem, error) {
	if err := validatePurchaseItems(inputs); err != nil {
		return nil, err
	}
	p, err := s.lock(ctx, q, purchaseID)
	if err != nil {
		return nil, err
	}
	if !p.Status.AcceptsItems() {
		return nil, common.NewValidation("purchase_id", fmt.Sprintf("purchase in status %s does not accept new items", p.Status)).
			With("purchase_id", purchaseID.String())
	}
	if p.StoreID != storeID {
		return nil, common.NewValidation("purchase_id", "purchase receives stock at a different store").
			With("purchase_id", purchaseID.String()).
			With("purchase_store_id", p.StoreID.String()).
			With("store_id", storeID.String())
	}
	if err := s.checkVariants(ctx, q, inputs); err != nil {
		return nil, err
	}

	existing := p.Items
	added := buildPurchaseItems(p.ID, nextPosition(existing), inputs)
	p.Items = append(append([]*models.PurchaseItem{}, existing...), added...)
	AllocateShipping(p.Items, p.ShippingCost)

	if err := s.purchases.InsertItems(ctx, q, added); err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		if err := s.purchases.UpdateItemCosts(ctx, q, existing); err != nil {
			return nil, err
		}
	}
	return added, nil
}

// Delete soft-deletes a purchase that never moved stock.
func (s *purchaseService) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.txm.WithinTx(ctx, func(q repositories.Querier) error {
		p, err := s.lock(ctx, q, id)
		if err != nil {
			return err
		}
		if p.Status != models.PurchasePending && p.Status != models.PurchaseCancelled {
			return common.NewValidation("status", fmt.Sprintf("purchase in status %s cannot be deleted", p.Status))
		}
		count, err := s.inventory.CountByReference(ctx, q, models.ReferencePurchase, p.ID)
		if err != nil {
			return err
		}
		if count > 0 {
			return common.NewValidation("id", "purchase is referenced by inventory transactions").With("transactions", count)
		}
		return s.purchases.SoftDelete(ctx, q, p.ID)
	})
	if err != nil {
		return err
	}
	s.logger.Info("purchase deleted", zap.String("purchase_id", id.String()))
	return nil
}
