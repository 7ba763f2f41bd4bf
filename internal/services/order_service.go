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

type OrderService interface {
	CreateOrder(ctx context.Context, in models.CreateOrderInput) (*models.OrderResult, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	CancelOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ReturnOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	// MarkItemFulfilled records external completion of a custom line.
	MarkItemFulfilled(ctx context.Context, orderID, itemID uuid.UUID) (*models.Order, error)
	PurchaseCompletionHook
}

type orderService struct {
	txm       repositories.TxManager
	db        repositories.Querier
	orders    repositories.OrderRepository
	items     repositories.OrderItemRepository
	stores    repositories.StoreRepository
	variants  repositories.VariantRepository
	ledger    InventoryLedger
	purchases PurchaseService
	sequences SequenceService
	prefix    string
	policy    models.FulfillmentPolicy
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

type OrderServiceDeps struct {
	TxManager   repositories.TxManager
	DB          repositories.Querier
	Orders      repositories.OrderRepository
	Items       repositories.OrderItemRepository
	Stores      repositories.StoreRepository
	Variants    repositories.VariantRepository
	Ledger      InventoryLedger
	Purchases   PurchaseService
	Sequences   SequenceService
	OrderPrefix string
	Policy      models.FulfillmentPolicy
	Logger      *zap.Logger
}

func NewOrderService(deps OrderServiceDeps) OrderService {
	prefix := deps.OrderPrefix
	if prefix == "" {
		prefix = "SO"
	}
	policy := deps.Policy
	if policy != models.PolicyAcceptPartial {
		policy = models.PolicyRejectWholeOrder
	}
	return &orderService{
		txm:       deps.TxManager,
		db:        deps.DB,
		orders:    deps.Orders,
		items:     deps.Items,
		stores:    deps.Stores,
		variants:  deps.Variants,
		ledger:    deps.Ledger,
		purchases: deps.Purchases,
		sequences: deps.Sequences,
		prefix:    prefix,
		policy:    policy,
		logger:    deps.Logger,
		tracer:    otel.Tracer("stockflow/orders"),
		now:       time.Now,
	}
}

func validateOrderInput(in models.CreateOrderInput) error {
	if in.StoreID == uuid.Nil {
		return common.NewValidation("store_id", "store is required")
	}
	if len(in.Items) == 0 {
		return common.NewValidation("items", "at least one item is required")
	}
	if in.ShippingCost < 0 {
		return common.NewValidation("shipping_cost", "shipping cost cannot be negative")
	}
	if in.PaidAmount < 0 {
		return common.NewValidation("paid_amount", "paid amount cannot be negative")
	}
	if in.TaxRate < 0 || in.TaxRate > 100 {
		return common.NewValidation("tax_rate", "tax rate must be between 0 and 100")
	}
	for i, item := range in.Items {
		if item.Quantity <= 0 {
			return common.NewInvalidQuantity(item.Quantity).With("index", i)
		}
		if item.UnitPrice < 0 || item.CostPrice < 0 {
			return common.NewValidation("unit_price", "prices cannot be negative").With("index", i)
		}
	}
	return nil
}

func (s *orderService) CreateOrder(ctx context.Context, in models.CreateOrderInput) (*models.OrderResult, error) {
	if err := validateOrderInput(in); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "order.create")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.store_id", in.StoreID.String()),
		attribute.Int("order.items", len(in.Items)),
		attribute.String("order.policy", string(s.policy)),
	)

	var result *models.OrderResult
	err := s.txm.WithinTx(ctx, func(q repositories.Querier) error {
		var err error
		result, err = s.createTx(ctx, q, in)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		s.logger.Error("order creation failed", zap.String("store_id", in.StoreID.String()), zap.Error(err))
		return nil, err
	}

	span.SetAttributes(attribute.String("order.id", result.Order.ID.String()), attribute.Int("order.rejected", len(result.Rejected)))
	s.logger.Info("order created",
		zap.String("order_id", result.Order.ID.String()),
		zap.String("order_number", result.Order.OrderNumber),
		zap.String("status", string(result.Order.Status)),
		zap.Int("rejected", len(result.Rejected)))
	return result, nil
}

// createTx may run more than once under retry; it builds its result from scratch every time.
func (s *orderService) createTx(ctx context.Context, q repositories.Querier, in models.CreateOrderInput) (*models.OrderResult, error) {
	exists, err := s.stores.Exists(ctx, q, in.StoreID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, common.NewNotFound("store", in.StoreID.String())
	}

	var variantIDs []uuid.UUID
	for _, item := range in.Items {
		if item.ProductVariantID != nil && *item.ProductVariantID != uuid.Nil {
			variantIDs = append(variantIDs, *item.ProductVariantID)
		}
	}
	missing, err := s.variants.Missing(ctx, q, variantIDs)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		return nil, common.NewNotFound("product_variant", missing[0].String())
	}

	orderedAt := s.now().UTC()
	if in.OrderedAt != nil {
		orderedAt = *in.OrderedAt
	}
	orderNumber := in.OrderNumber
	if orderNumber == "" {
		orderNumber, err = s.sequences.NextTx(ctx, q, s.prefix, orderedAt)
		if err != nil {
			return nil, err
		}
	} else {
		if IsGeneratedIdentifier(s.prefix, orderNumber) {
			return nil, common.NewValidation("order_number", "order number is reserved for generated numbering").With("order_number", orderNumber)
		}
		taken, err := s.orders.OrderNumberExists(ctx, q, orderNumber)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, common.NewValidation("order_number", "order number already exists").With("order_number", orderNumber)
		}
	}

	order := &models.Order{
		ID:             uuid.New(),
		StoreID:        in.StoreID,
		OrderNumber:    orderNumber,
		Status:         models.OrderPending,
		OrderedAt:      orderedAt,
		ShippingCost:   in.ShippingCost,
		TaxRate:        in.TaxRate,
		IsTaxInclusive: in.IsTaxInclusive,
		PaidAmount:     in.PaidAmount,
		Notes:          in.Notes,
	}
	result := &models.OrderResult{Order: order}

	lines := make([]*models.OrderItem, len(in.Items))
	for i, input := range in.Items {
		lines[i] = &models.OrderItem{
			ID:               uuid.New(),
			OrderID:          order.ID,
			ProductVariantID: input.ProductVariantID,
			Description:      input.Description,
			Quantity:         input.Quantity,
			UnitPrice:        input.UnitPrice,
			CostPrice:        input.CostPrice,
			FulfillmentType:  ClassifyItem(input.Attributes()),
		}
	}

	rejected, err := s.deductStock(ctx, q, order, lines)
	if err != nil {
		return nil, err
	}
	result.Rejected = rejected

	kept := make([]*models.OrderItem, 0, len(lines))
	keptInputs := make([]models.OrderItemInput, 0, len(lines))
	for i, line := range lines {
		if line != nil {
			kept = append(kept, line)
			keptInputs = append(keptInputs, in.Items[i])
		}
	}
	if len(kept) == 0 {
		first := rejected[0]
		return nil, (&common.DomainError{
			Kind:    common.KindInsufficientStock,
			Message: "no order line could be fulfilled",
			Context: first.Context,
		}).With("rejected", len(rejected))
	}

	purchaseIDs, err := s.placeBackorders(ctx, q, order, kept, keptInputs)
	if err != nil {
		return nil, err
	}
	result.BackorderPurchaseIDs = purchaseIDs

	order.Items = kept
	order.RecalculateTotals()
	if order.AllItemsFulfilled() {
		order.Status = models.OrderFulfilled
	}

	if err := s.orders.Create(ctx, q, order); err != nil {
		if repositories.IsUniqueViolation(err) {
			return nil, common.NewValidation("order_number", "order number already exists").With("order_number", orderNumber)
		}
		return nil, err
	}
	for _, line := range kept {
		if err := s.items.Create(ctx, q, line); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// deductStock posts order-deductions for the stock lines in lock order. Under accept_partial a refused
// line is nil'ed out of lines and reported instead of failing the order.
func (s *orderService) deductStock(ctx context.Context, q repositories.Querier, order *models.Order, lines []*models.OrderItem) ([]models.RejectedItem, error) {
	var stock []int
	for i, line := range lines {
		if line.FulfillmentType.DeductsInventoryImmediately() {
			stock = append(stock, i)
		}
	}
	sort.SliceStable(stock, func(a, b int) bool {
		ka := models.StockKey{ProductVariantID: *lines[stock[a]].ProductVariantID, StoreID: order.StoreID}
		kb := models.StockKey{ProductVariantID: *lines[stock[b]].ProductVariantID, StoreID: order.StoreID}
		return ka.Less(kb)
	})

	var rejected []models.RejectedItem
	for _, idx := range stock {
		line := lines[idx]
		entry := LedgerEntry{
			ProductVariantID: *line.ProductVariantID,
			StoreID:          order.StoreID,
			Quantity:         line.Quantity,
			Reason:           models.ReasonOrderDeduction,
			ReferenceType:    models.ReferenceOrder,
			ReferenceID:      order.ID,
		}

		if s.policy == models.PolicyRejectWholeOrder {
			if _, err := s.ledger.DecrementTx(ctx, q, entry); err != nil {
				return nil, err
			}
		} else {
			err := repositories.Savepoint(ctx, q, func(sq repositories.Querier) error {
				_, err := s.ledger.DecrementTx(ctx, sq, entry)
				return err
			})
			if err != nil {
				var de *common.DomainError
				if !errors.As(err, &de) || de.Kind != common.KindInsufficientStock {
					return nil, err
				}
				rejected = append(rejected, models.RejectedItem{
					Index:   idx,
					Code:    string(de.Kind),
					Message: de.Message,
					Context: de.Context,
				})
				lines[idx] = nil
				continue
			}
		}

		if line.FulfillmentType.MarksFulfilledOnCreate() {
			at := s.now().UTC()
			line.Fulfilled = true
			line.FulfilledAt = &at
		}
	}
	sort.Slice(rejected, func(a, b int) bool { return rejected[a].Index < rejected[b].Index })
	return rejected, nil
}

// placeBackorders attaches backorder lines to the purchase they name, or to one new pending purchase
// per order for the lines that name none.
func (s *orderService) placeBackorders(ctx context.Context, q repositories.Querier, order *models.Order, lines []*models.OrderItem, inputs []models.OrderItemInput) ([]uuid.UUID, error) {
	groups := make(map[uuid.UUID][]int)
	var groupOrder []uuid.UUID
	var unassigned []int
	for i, line := range lines {
		if line.FulfillmentType != models.FulfillmentBackorder {
			continue
		}
		if pid := inputs[i].PurchaseID; pid != nil && *pid != uuid.Nil {
			if _, seen := groups[*pid]; !seen {
				groupOrder = append(groupOrder, *pid)
			}
			groups[*pid] = append(groups[*pid], i)
			continue
		}
		unassigned = append(unassigned, i)
	}

	toPurchaseInputs := func(idxs []int) []models.PurchaseItemInput {
		out := make([]models.PurchaseItemInput, 0, len(idxs))
		for _, i := range idxs {
			out = append(out, models.PurchaseItemInput{
				ProductVariantID: *lines[i].ProductVariantID,
				Quantity:         lines[i].Quantity,
				UnitPrice:        lines[i].CostPrice,
				CostPrice:        lines[i].CostPrice,
			})
		}
		return out
	}
	link := func(purchaseID uuid.UUID, idxs []int, items []*models.PurchaseItem) {
		for n, i := range idxs {
			pid := purchaseID
			lines[i].PurchaseID = &pid
			if n < len(items) {
				itemID := items[n].ID
				lines[i].PurchaseItemID = &itemID
			}
		}
	}

	var purchaseIDs []uuid.UUID
	for _, pid := range groupOrder {
		idxs := groups[pid]
		added, err := s.purchases.AttachItemsTx(ctx, q, pid, order.StoreID, toPurchaseInputs(idxs))
		if err != nil {
			return nil, err
		}
		link(pid, idxs, added)
		purchaseIDs = append(purchaseIDs, pid)
	}

	if len(unassigned) > 0 {
		notes := fmt.Sprintf("Backorder for order %s", order.OrderNumber)
		status := models.PurchasePending
		p, err := s.purchases.CreateTx(ctx, q, models.CreatePurchaseInput{
			StoreID:     order.StoreID,
			Items:       toPurchaseInputs(unassigned),
			PurchasedAt: &order.OrderedAt,
			Status:      &status,
			Notes:       &notes,
		})
		if err != nil {
			return nil, err
		}
		link(p.ID, unassigned, p.Items)
		purchaseIDs = append(purchaseIDs, p.ID)
	}
	return purchaseIDs, nil
}

func (s *orderService) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	o, err := s.orders.GetByID(ctx, s.db, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, common.NewNotFound("order", id.String())
		}
		return nil, err
	}
	return o, nil
}

func (s *orderService) lock(ctx context.Context, q repositories.Querier, id uuid.UUID) (*models.Order, error) {
	o, err := s.orders.GetForUpdate(ctx, q, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, common.NewNotFound("order", id.String())
		}
		return nil, err
	}
	return o, nil
}

func (s *orderService) CancelOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.unwind(ctx, id, models.OrderCancelled)
}

func (s *orderService) ReturnOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.unwind(ctx, id, models.OrderReturned)
}

// unwind moves an order to cancelled or returned, crediting back exactly the lines that hold stock.
func (s *orderService) unwind(ctx context.Context, id uuid.UUID, to models.OrderStatus) (*models.Order, error) {
	ctx, span := s.tracer.Start(ctx, "order."+string(to))
	defer span.End()
	span.SetAttributes(attribute.String("order.id", id.String()))

	var order *models.Order
	returned := 0
	err := s.txm.WithinTx(ctx, func(q repositories.Querier) error {
		o, err := s.lock(ctx, q, id)
		if err != nil {
			return err
		}
		if !models.CanTransitionOrder(o.Status, to) {
			return common.NewInvalidTransition("order", string(o.Status), string(to))
		}

		var entries []LedgerEntry
		for _, item := range o.Items {
			if !item.ShouldReturnInventory() {
				continue
			}
			entries = append(entries, LedgerEntry{
				ProductVariantID: *item.ProductVariantID,
				StoreID:          o.StoreID,
				Quantity:         item.Quantity,
				Reason:           models.ReasonOrderReturn,
				ReferenceType:    models.ReferenceOrder,
				ReferenceID:      o.ID,
			})
		}
		SortEntries(entries)
		for _, entry := range entries {
			if _, err := s.ledger.IncrementTx(ctx, q, entry); err != nil {
				return err
			}
		}

		if err := s.orders.UpdateStatus(ctx, q, o.ID, to); err != nil {
			return err
		}
		o.Status = to
		order = o
		returned = len(entries)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transition failed")
		s.logger.Error("order status change failed", zap.String("order_id", id.String()), zap.String("to", string(to)), zap.Error(err))
		return nil, err
	}

	s.logger.Info("order status changed",
		zap.String("order_id", id.String()),
		zap.String("to", string(to)),
		zap.Int("lines_returned", returned))
	return order, nil
}

func (s *orderService) MarkItemFulfilled(ctx context.Context, orderID, itemID uuid.UUID) (*models.Order, error) {
	var order *models.Order
	err := s.txm.WithinTx(ctx, func(q repositories.Querier) error {
		o, err := s.lock(ctx, q, orderID)
		if err != nil {
			return err
		}
		if o.Status.IsTerminal() {
			return common.NewValidation("status", fmt.Sprintf("order in status %s cannot be changed", o.Status))
		}

		var item *models.OrderItem
		for _, candidate := range o.Items {
			if candidate.ID == itemID {
				item = candidate
				break
			}
		}
		if item == nil {
			return common.NewNotFound("order_item", itemID.String())
		}
		if item.FulfillmentType != models.FulfillmentCustom {
			return common.NewValidation("fulfillment_type", "only custom items are fulfilled externally").
				With("fulfillment_type", string(item.FulfillmentType))
		}

		if !item.Fulfilled {
			at := s.now().UTC()
			if err := s.items.MarkFulfilled(ctx, q, item.ID, at); err != nil {
				return err
			}
			item.Fulfilled = true
			item.FulfilledAt = &at
		}
		if err := s.settle(ctx, q, o); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("order item fulfilled", zap.String("order_id", orderID.String()), zap.String("item_id", itemID.String()))
	return order, nil
}

// settle promotes a pending order whose lines are all fulfilled.
func (s *orderService) settle(ctx context.Context, q repositories.Querier, o *models.Order) error {
	if o.Status != models.OrderPending || !o.AllItemsFulfilled() {
		return nil
	}
	if err := s.orders.UpdateStatus(ctx, q, o.ID, models.OrderFulfilled); err != nil {
		return err
	}
	o.Status = models.OrderFulfilled
	return nil
}

// PurchaseCompleted deducts the received stock for every open backorder line of the purchase at its
// order's store and marks those lines fulfilled, in the purchase's transaction.
func (s *orderService) PurchaseCompleted(ctx context.Context, q repositories.Querier, purchase *models.Purchase) error {
	open, err := s.items.ListOpenByPurchase(ctx, q, purchase.ID)
	if err != nil {
		return err
	}
	if len(open) == 0 {
		return nil
	}

	byOrder := make(map[uuid.UUID][]*models.OrderItem)
	var orderIDs []uuid.UUID
	for _, item := range open {
		if !item.HasVariant() {
			continue
		}
		if _, seen := byOrder[item.OrderID]; !seen {
			orderIDs = append(orderIDs, item.OrderID)
		}
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}
	sort.Slice(orderIDs, func(i, j int) bool { return orderIDs[i].String() < orderIDs[j].String() })

	at := s.now().UTC()
	for _, orderID := range orderIDs {
		o, err := s.lock(ctx, q, orderID)
		if err != nil {
			return err
		}
		if o.StoreID != purchase.StoreID {
			s.logger.Warn("skipping backorder lines linked across stores",
				zap.String("purchase_id", purchase.ID.String()),
				zap.String("order_id", o.ID.String()))
			continue
		}
		for _, item := range byOrder[orderID] {
			_, err := s.ledger.DecrementTx(ctx, q, LedgerEntry{
				ProductVariantID: *item.ProductVariantID,
				StoreID:          o.StoreID,
				Quantity:         item.Quantity,
				Reason:           models.ReasonOrderDeduction,
				ReferenceType:    models.ReferenceOrder,
				ReferenceID:      o.ID,
			})
			if err != nil {
				return common.NewOperationFailed("backorder fulfillment", err, map[string]interface{}{
					"purchase_id":   purchase.ID.String(),
					"order_id":      o.ID.String(),
					"order_item_id": item.ID.String(),
				})
			}
			if err := s.items.MarkFulfilled(ctx, q, item.ID, at); err != nil {
				return err
			}
			for _, line := range o.Items {
				if line.ID == item.ID {
					line.Fulfilled = true
					line.FulfilledAt = &at
				}
			}
		}
		if err := s.settle(ctx, q, o); err != nil {
			return err
		}
		s.logger.Info("backorder lines fulfilled",
			zap.String("purchase_id", purchase.ID.String()),
			zap.String("order_id", o.ID.String()),
			zap.Int("lines", len(byOrder[orderID])))
	}
	return nil
}
