package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"stockflow/internal/common"
	"stockflow/internal/models"
	"stockflow/internal/repositories"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

func TestAllocateShipping(t *testing.T) {
	tests := []struct {
		name     string
		items    [][2]int64 // quantity, cost price
		shipping int64
		want     []int64
	}{
		{"equal subtotals", [][2]int64{{10, 100}, {5, 200}}, 300, []int64{150, 150}},
		{"remainder goes last", [][2]int64{{1, 100}, {1, 100}, {1, 100}}, 100, []int64{33, 33, 34}},
		{"proportional", [][2]int64{{1, 100}, {3, 100}}, 1000, []int64{250, 750}},
		{"zero subtotals split evenly", [][2]int64{{1, 0}, {2, 0}}, 101, []int64{50, 51}},
		{"no shipping", [][2]int64{{2, 10}}, 0, []int64{0}},
		{"single item takes all", [][2]int64{{7, 13}}, 999, []int64{999}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := make([]*models.PurchaseItem, 0, len(tt.items))
			for _, it := range tt.items {
				items = append(items, &models.PurchaseItem{Quantity: int(it[0]), CostPrice: it[1]})
			}
			AllocateShipping(items, tt.shipping)

			var sum int64
			for i, item := range items {
				assert.Equal(t, tt.want[i], item.AllocatedShippingCost, "item %d", i)
				assert.Equal(t, item.Subtotal()+item.AllocatedShippingCost, item.TotalCostPrice)
				sum += item.AllocatedShippingCost
			}
			assert.Equal(t, tt.shipping, sum)
		})
	}
}

func TestAllocateShippingScenarioTotals(t *testing.T) {
	items := []*models.PurchaseItem{{Quantity: 10, CostPrice: 100}, {Quantity: 5, CostPrice: 200}}
	AllocateShipping(items, 300)
	assert.Equal(t, int64(1150), items[0].TotalCostPrice)
	assert.Equal(t, int64(1150), items[1].TotalCostPrice)
}

type PurchaseServiceTestSuite struct {
	suite.Suite
	purchases *MockPurchaseRepository
	stores    *MockStoreRepository
	variants  *MockVariantRepository
	inventory *MockInventoryRepository
	ledger    *MockInventoryLedger
	sequences *MockSequenceService
	hook      *MockCompletionHook
	service   *purchaseService
	ctx       context.Context
	storeID   uuid.UUID
}

func (s *PurchaseServiceTestSuite) SetupTest() {
	s.purchases = new(MockPurchaseRepository)
	s.stores = new(MockStoreRepository)
	s.variants = new(MockVariantRepository)
	s.inventory = new(MockInventoryRepository)
	s.ledger = new(MockInventoryLedger)
	s.sequences = new(MockSequenceService)
	s.hook = new(MockCompletionHook)
	s.service = NewPurchaseService(PurchaseServiceDeps{
		TxManager: &passThroughTx{},
		Purchases: s.purchases,
		Stores:    s.stores,
		Variants:  s.variants,
		Inventory: s.inventory,
		Ledger:    s.ledger,
		Sequences: s.sequences,
		Logger:    zap.NewNop(),
	}).(*purchaseService)
	s.service.RegisterHook(s.hook)
	s.ctx = context.Background()
	s.storeID = uuid.New()
}

func (s *PurchaseServiceTestSuite) TearDownTest() {
	s.purchases.AssertExpectations(s.T())
	s.stores.AssertExpectations(s.T())
	s.variants.AssertExpectations(s.T())
	s.ledger.AssertExpectations(s.T())
	s.hook.AssertExpectations(s.T())
}

func TestPurchaseServiceTestSuite(t *testing.T) {
	suite.Run(t, new(PurchaseServiceTestSuite))
}

func (s *PurchaseServiceTestSuite) input() models.CreatePurchaseInput {
	return models.CreatePurchaseInput{
		StoreID:      s.storeID,
		ShippingCost: 300,
		Items: []models.PurchaseItemInput{
			{ProductVariantID: uuid.New(), Quantity: 10, UnitPrice: 120, CostPrice: 100},
			{ProductVariantID: uuid.New(), Quantity: 5, UnitPrice: 250, CostPrice: 200},
		},
	}
}

func (s *PurchaseServiceTestSuite) TestCreateMintsNumberAndAllocates() {
	purchasedAt := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)
	in := s.input()
	in.PurchasedAt = &purchasedAt

	s.stores.On("Exists", mock.Anything, mock.Anything, s.storeID).Return(true, nil)
	s.variants.On("Missing", mock.Anything, mock.Anything, mock.Anything).Return([]uuid.UUID{}, nil)
	s.sequences.On("NextTx", mock.Anything, mock.Anything, "PO", purchasedAt).Return("PO-20250615-0001", nil)
	s.purchases.On("Create", mock.Anything, mock.Anything, mock.MatchedBy(func(p *models.Purchase) bool {
		return len(p.Items) == 2 && p.Items[0].Position == 0 && p.Items[1].Position == 1
	})).Return(nil)

	res, err := s.service.Create(s.ctx, in)

	s.Require().NoError(err)
	s.Equal("PO-20250615-0001", res.OrderNumber)
	s.Equal(models.PurchasePending, res.Status)
	s.Require().Len(res.Items, 2)
	s.Equal(int64(150), res.Items[0].AllocatedShippingCost)
	s.Equal(int64(1150), res.Items[1].TotalCostPrice)
}

func (s *PurchaseServiceTestSuite) TestCreateValidation() {
	in := s.input()
	in.Items[1].Quantity = 0
	_, err := s.service.Create(s.ctx, in)
	s.ErrorIs(err, common.ErrInvalidQuantity)

	in = s.input()
	in.Items[0].CostPrice = -1
	_, err = s.service.Create(s.ctx, in)
	s.ErrorIs(err, common.ErrValidation)

	in = s.input()
	in.Items = nil
	_, err = s.service.Create(s.ctx, in)
	s.ErrorIs(err, common.ErrValidation)

	in = s.input()
	cancelled := models.PurchaseCancelled
	in.Status = &cancelled
	_, err = s.service.Create(s.ctx, in)
	s.ErrorIs(err, common.ErrValidation)
}

func (s *PurchaseServiceTestSuite) TestCreateUnknownStore() {
	s.stores.On("Exists", mock.Anything, mock.Anything, s.storeID).Return(false, nil)

	_, err := s.service.Create(s.ctx, s.input())

	s.ErrorIs(err, common.ErrNotFound)
}

func (s *PurchaseServiceTestSuite) TestCreateUnknownVariant() {
	missing := uuid.New()
	s.stores.On("Exists", mock.Anything, mock.Anything, s.storeID).Return(true, nil)
	s.variants.On("Missing", mock.Anything, mock.Anything, mock.Anything).Return([]uuid.UUID{missing}, nil)

	_, err := s.service.Create(s.ctx, s.input())

	s.ErrorIs(err, common.ErrNotFound)
	var de *common.DomainError
	s.Require().True(errors.As(err, &de))
	s.Equal(missing.String(), de.Context["id"])
}

func (s *PurchaseServiceTestSuite) TestCreateDuplicateOrderNumber() {
	in := s.input()
	in.OrderNumber = "PO-CUSTOM-1"
	s.stores.On("Exists", mock.Anything, mock.Anything, s.storeID).Return(true, nil)
	s.variants.On("Missing", mock.Anything, mock.Anything, mock.Anything).Return([]uuid.UUID{}, nil)
	s.purchases.On("OrderNumberExists", mock.Anything, mock.Anything, "PO-CUSTOM-1").Return(true, nil)

	_, err := s.service.Create(s.ctx, in)

	s.ErrorIs(err, common.ErrValidation)
}

func (s *PurchaseServiceTestSuite) TestCreateConcurrentDuplicateNumberIsValidation() {
	in := s.input()
	in.OrderNumber = "PO-CUSTOM-2"
	s.stores.On("Exists", mock.Anything, mock.Anything, s.storeID).Return(true, nil)
	s.variants.On("Missing", mock.Anything, mock.Anything, mock.Anything).Return([]uuid.UUID{}, nil)
	s.purchases.On("OrderNumberExists", mock.Anything, mock.Anything, "PO-CUSTOM-2").Return(false, nil)
	s.purchases.On("Create", mock.Anything, mock.Anything, mock.Anything).
		Return(fmt.Errorf("failed to insert purchase: %w", &pgconn.PgError{Code: "23505"}))

	_, err := s.service.Create(s.ctx, in)

	s.ErrorIs(err, common.ErrValidation)
	var de *common.DomainError
	s.Require().ErrorAs(err, &de)
	s.Equal("PO-CUSTOM-2", de.Context["order_number"])
}

func (s *PurchaseServiceTestSuite) TestCreateRejectsGeneratedNumberForm() {
	in := s.input()
	in.OrderNumber = "po-20250615-0042"
	s.stores.On("Exists", mock.Anything, mock.Anything, s.storeID).Return(true, nil)
	s.variants.On("Missing", mock.Anything, mock.Anything, mock.Anything).Return([]uuid.UUID{}, nil)

	_, err := s.service.Create(s.ctx, in)

	s.ErrorIs(err, common.ErrValidation)
	s.purchases.AssertNotCalled(s.T(), "Create", mock.Anything, mock.Anything, mock.Anything)
}

func (s *PurchaseServiceTestSuite) TestCreateCompletedPostsStock() {
	in := s.input()
	in.OrderNumber = "PO-X"
	completed := models.PurchaseCompleted
	in.Status = &completed
	s.stores.On("Exists", mock.Anything, mock.Anything, s.storeID).Return(true, nil)
	s.variants.On("Missing", mock.Anything, mock.Anything, mock.Anything).Return([]uuid.UUID{}, nil)
	s.purchases.On("OrderNumberExists", mock.Anything, mock.Anything, "PO-X").Return(false, nil)
	s.purchases.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	s.ledger.On("IncrementTx", mock.Anything, mock.Anything, mock.MatchedBy(func(e LedgerEntry) bool {
		return e.Reason == models.ReasonPurchaseReceipt && e.StoreID == s.storeID
	})).Return(&models.InventoryTransaction{}, nil).Twice()
	s.hook.On("PurchaseCompleted", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	res, err := s.service.Create(s.ctx, in)

	s.NoError(err)
	s.Equal(models.PurchaseCompleted, res.Status)
}

func (s *PurchaseServiceTestSuite) purchase(status models.PurchaseStatus) *models.Purchase {
	id := uuid.New()
	return &models.Purchase{
		ID:      id,
		StoreID: s.storeID,
		Status:  status,
		Items: []*models.PurchaseItem{
			{ID: uuid.New(), PurchaseID: id, ProductVariantID: uuid.New(), Position: 0, Quantity: 10, CostPrice: 100},
			{ID: uuid.New(), PurchaseID: id, ProductVariantID: uuid.New(), Position: 1, Quantity: 5, CostPrice: 200},
		},
	}
}

func (s *PurchaseServiceTestSuite) TestCompletePostsEveryItemAndFiresHook() {
	p := s.purchase(models.PurchaseReceived)
	s.purchases.On("GetForUpdate", mock.Anything, mock.Anything, p.ID).Return(p, nil)
	s.ledger.On("IncrementTx", mock.Anything, mock.Anything, mock.MatchedBy(func(e LedgerEntry) bool {
		return e.ReferenceID == p.ID && e.ReferenceType == models.ReferencePurchase
	})).Return(&models.InventoryTransaction{}, nil).Twice()
	s.hook.On("PurchaseCompleted", mock.Anything, mock.Anything, p).Return(nil)
	s.purchases.On("UpdateStatus", mock.Anything, mock.Anything, p.ID, models.PurchaseCompleted).Return(nil)

	res, err := s.service.UpdateStatus(s.ctx, p.ID, models.PurchaseCompleted)

	s.NoError(err)
	s.Equal(models.PurchaseCompleted, res.Status)
}

func (s *PurchaseServiceTestSuite) TestCompleteFailureLeavesStatus() {
	p := s.purchase(models.PurchaseReceived)
	s.purchases.On("GetForUpdate", mock.Anything, mock.Anything, p.ID).Return(p, nil)
	s.ledger.On("IncrementTx", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("connection reset")).Once()

	_, err := s.service.UpdateStatus(s.ctx, p.ID, models.PurchaseCompleted)

	s.Error(err)
	s.purchases.AssertNotCalled(s.T(), "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	s.hook.AssertNotCalled(s.T(), "PurchaseCompleted", mock.Anything, mock.Anything, mock.Anything)
}

func (s *PurchaseServiceTestSuite) TestTransitionTable() {
	allowed := map[models.PurchaseStatus][]models.PurchaseStatus{
		models.PurchasePending:           {models.PurchaseConfirmed, models.PurchaseCancelled},
		models.PurchaseConfirmed:         {models.PurchaseInTransit, models.PurchaseCancelled},
		models.PurchaseInTransit:         {models.PurchaseReceived, models.PurchasePartiallyReceived, models.PurchaseCancelled},
		models.PurchasePartiallyReceived: {models.PurchaseReceived},
		models.PurchaseReceived:          {models.PurchaseCompleted},
	}
	all := []models.PurchaseStatus{
		models.PurchasePending, models.PurchaseConfirmed, models.PurchaseInTransit, models.PurchasePartiallyReceived,
		models.PurchaseReceived, models.PurchaseCompleted, models.PurchaseCancelled,
	}
	for _, from := range all {
		for _, to := range all {
			want := false
			for _, ok := range allowed[from] {
				if ok == to {
					want = true
				}
			}
			s.Equal(want, models.CanTransitionPurchase(from, to), "%s -> %s", from, to)
		}
	}
}

func (s *PurchaseServiceTestSuite) TestInvalidTransitionRejected() {
	p := s.purchase(models.PurchasePending)
	s.purchases.On("GetForUpdate", mock.Anything, mock.Anything, p.ID).Return(p, nil)

	_, err := s.service.UpdateStatus(s.ctx, p.ID, models.PurchaseCompleted)

	s.ErrorIs(err, common.ErrInvalidStatusTransition)
}

func (s *PurchaseServiceTestSuite) TestUnknownPurchase() {
	id := uuid.New()
	s.purchases.On("GetForUpdate", mock.Anything, mock.Anything, id).Return(nil, repositories.ErrNotFound)

	_, err := s.service.UpdateStatus(s.ctx, id, models.PurchaseConfirmed)

	s.ErrorIs(err, common.ErrNotFound)
}

func (s *PurchaseServiceTestSuite) TestCancelWithoutPostedStock() {
	p := s.purchase(models.PurchaseInTransit)
	s.purchases.On("GetForUpdate", mock.Anything, mock.Anything, p.ID).Return(p, nil)
	s.inventory.On("NetByReference", mock.Anything, mock.Anything, models.ReferencePurchase, p.ID, models.ReasonPurchaseReceipt).
		Return(map[models.StockKey]int{}, nil)
	s.purchases.On("UpdateStatus", mock.Anything, mock.Anything, p.ID, models.PurchaseCancelled).Return(nil)

	res, err := s.service.UpdateStatus(s.ctx, p.ID, models.PurchaseCancelled)

	s.NoError(err)
	s.Equal(models.PurchaseCancelled, res.Status)
	s.ledger.AssertNotCalled(s.T(), "DecrementTx", mock.Anything, mock.Anything, mock.Anything)
}

func (s *PurchaseServiceTestSuite) TestRevertRequiresCompleted() {
	p := s.purchase(models.PurchaseReceived)
	s.purchases.On("GetForUpdate", mock.Anything, mock.Anything, p.ID).Return(p, nil)

	_, err := s.service.Revert(s.ctx, p.ID)

	s.ErrorIs(err, common.ErrInvalidStatusTransition)
}

func (s *PurchaseServiceTestSuite) TestRevertFailsWhenStockConsumed() {
	p := s.purchase(models.PurchaseCompleted)
	key := models.StockKey{ProductVariantID: p.Items[0].ProductVariantID, StoreID: s.storeID}
	s.purchases.On("GetForUpdate", mock.Anything, mock.Anything, p.ID).Return(p, nil)
	s.inventory.On("NetByReference", mock.Anything, mock.Anything, models.ReferencePurchase, p.ID, models.ReasonPurchaseReceipt).
		Return(map[models.StockKey]int{key: 10}, nil)
	s.ledger.On("DecrementTx", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, common.NewInsufficientStock(key.ProductVariantID.String(), s.storeID.String(), 4, 10))

	_, err := s.service.Revert(s.ctx, p.ID)

	s.ErrorIs(err, common.ErrInventoryOperationFailed)
	s.ErrorIs(err, common.ErrInsufficientStock)
	s.purchases.AssertNotCalled(s.T(), "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (s *PurchaseServiceTestSuite) TestDeleteRules() {
	confirmed := s.purchase(models.PurchaseConfirmed)
	s.purchases.On("GetForUpdate", mock.Anything, mock.Anything, confirmed.ID).Return(confirmed, nil)
	s.ErrorIs(s.service.Delete(s.ctx, confirmed.ID), common.ErrValidation)

	referenced := s.purchase(models.PurchaseCancelled)
	s.purchases.On("GetForUpdate", mock.Anything, mock.Anything, referenced.ID).Return(referenced, nil)
	s.inventory.On("CountByReference", mock.Anything, mock.Anything, models.ReferencePurchase, referenced.ID).Return(2, nil)
	s.ErrorIs(s.service.Delete(s.ctx, referenced.ID), common.ErrValidation)

	clean := s.purchase(models.PurchasePending)
	s.purchases.On("GetForUpdate", mock.Anything, mock.Anything, clean.ID).Return(clean, nil)
	s.inventory.On("CountByReference", mock.Anything, mock.Anything, models.ReferencePurchase, clean.ID).Return(0, nil)
	s.purchases.On("SoftDelete", mock.Anything, mock.Anything, clean.ID).Return(nil)
	s.NoError(s.service.Delete(s.ctx, clean.ID))
}

func (s *PurchaseServiceTestSuite) TestAttachItemsReallocatesShipping() {
	p := s.purchase(models.PurchasePending)
	p.ShippingCost = 200
	p.Items = p.Items[:1]
	s.purchases.On("GetForUpdate", mock.Anything, mock.Anything, p.ID).Return(p, nil)
	s.variants.On("Missing", mock.Anything, mock.Anything, mock.Anything).Return([]uuid.UUID{}, nil)
	s.purchases.On("InsertItems", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	s.purchases.On("UpdateItemCosts", mock.Anything, mock.Anything, mock.MatchedBy(func(items []*models.PurchaseItem) bool {
		return len(items) == 1 && items[0].AllocatedShippingCost == 100
	})).Return(nil)

	added, err := s.service.AttachItemsTx(s.ctx, nil, p.ID, s.storeID, []models.PurchaseItemInput{
		{ProductVariantID: uuid.New(), Quantity: 10, CostPrice: 100},
	})

	s.Require().NoError(err)
	s.Require().Len(added, 1)
	s.Equal(p.ID, added[0].PurchaseID)
	s.Equal(1, added[0].Position)
	s.Equal(int64(100), added[0].AllocatedShippingCost)
}

func (s *PurchaseServiceTestSuite) TestAttachItemsKeepsRemainderOnNewestItem() {
	p := s.purchase(models.PurchasePending)
	p.ShippingCost = 100
	for _, item := range p.Items {
		item.Quantity, item.CostPrice = 1, 100
	}
	AllocateShipping(p.Items, p.ShippingCost)
	s.purchases.On("GetForUpdate", mock.Anything, mock.Anything, p.ID).Return(p, nil)
	s.variants.On("Missing", mock.Anything, mock.Anything, mock.Anything).Return([]uuid.UUID{}, nil)
	s.purchases.On("InsertItems", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	s.purchases.On("UpdateItemCosts", mock.Anything, mock.Anything, mock.MatchedBy(func(items []*models.PurchaseItem) bool {
		return len(items) == 2 && items[0].AllocatedShippingCost == 33 && items[1].AllocatedShippingCost == 33
	})).Return(nil)

	added, err := s.service.AttachItemsTx(s.ctx, nil, p.ID, s.storeID, []models.PurchaseItemInput{
		{ProductVariantID: uuid.New(), Quantity: 1, CostPrice: 100},
	})

	s.Require().NoError(err)
	s.Equal(2, added[0].Position)
	s.Equal(int64(34), added[0].AllocatedShippingCost)
}

func (s *PurchaseServiceTestSuite) TestAttachItemsRejectsShippedPurchase() {
	p := s.purchase(models.PurchaseInTransit)
	s.purchases.On("GetForUpdate", mock.Anything, mock.Anything, p.ID).Return(p, nil)

	_, err := s.service.AttachItemsTx(s.ctx, nil, p.ID, s.storeID, []models.PurchaseItemInput{
		{ProductVariantID: uuid.New(), Quantity: 1},
	})

	s.ErrorIs(err, common.ErrValidation)
}

func (s *PurchaseServiceTestSuite) TestAttachItemsRejectsOtherStore() {
	p := s.purchase(models.PurchasePending)
	s.purchases.On("GetForUpdate", mock.Anything, mock.Anything, p.ID).Return(p, nil)

	_, err := s.service.AttachItemsTx(s.ctx, nil, p.ID, uuid.New(), []models.PurchaseItemInput{
		{ProductVariantID: uuid.New(), Quantity: 1},
	})

	s.ErrorIs(err, common.ErrValidation)
	var derr *common.DomainError
	s.Require().ErrorAs(err, &derr)
	s.Equal(s.storeID.String(), derr.Context["purchase_store_id"])
	s.purchases.AssertNotCalled(s.T(), "InsertItems", mock.Anything, mock.Anything, mock.Anything)
}

// With a real ledger over memory storage, a refused reversal leaves both stock and status untouched.
func TestPurchaseRevertIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	inventory := newMemoryInventory()
	txm := &memoryTx{inventory: inventory}
	ledger := NewInventoryLedger(txm, nil, inventory, nil, zap.NewNop())
	purchases := new(MockPurchaseRepository)

	service := NewPurchaseService(PurchaseServiceDeps{
		TxManager: txm,
		Purchases: purchases,
		Inventory: inventory,
		Ledger:    ledger,
		Logger:    zap.NewNop(),
	})

	store := uuid.New()
	id := uuid.New()
	a, b := uuid.New(), uuid.New()
	p := &models.Purchase{ID: id, StoreID: store, Status: models.PurchaseReceived, Items: []*models.PurchaseItem{
		{ID: uuid.New(), PurchaseID: id, ProductVariantID: a, Quantity: 10},
		{ID: uuid.New(), PurchaseID: id, ProductVariantID: b, Quantity: 5},
	}}
	purchases.On("GetForUpdate", mock.Anything, mock.Anything, id).Return(p, nil)
	purchases.On("UpdateStatus", mock.Anything, mock.Anything, id, models.PurchaseCompleted).Return(nil).Once()

	_, err := service.UpdateStatus(ctx, id, models.PurchaseCompleted)
	require.NoError(t, err)
	assert.Equal(t, 10, inventory.quantity(a, store))
	assert.Equal(t, 5, inventory.quantity(b, store))

	// Something else consumes part of b.
	_, err = ledger.Decrement(ctx, LedgerEntry{ProductVariantID: b, StoreID: store, Quantity: 3,
		Reason: models.ReasonOrderDeduction, ReferenceType: models.ReferenceOrder, ReferenceID: uuid.New()})
	require.NoError(t, err)

	_, err = service.Revert(ctx, id)
	assert.ErrorIs(t, err, common.ErrInventoryOperationFailed)
	assert.Equal(t, 10, inventory.quantity(a, store))
	assert.Equal(t, 2, inventory.quantity(b, store))
	assert.Equal(t, models.PurchaseCompleted, p.Status)
	purchases.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, id, models.PurchaseReceived)

	// Once stock is back the reversal goes through and withdraws exactly what was posted.
	_, err = ledger.Increment(ctx, LedgerEntry{ProductVariantID: b, StoreID: store, Quantity: 3,
		Reason: models.ReasonManualAdjustment, ReferenceType: models.ReferenceAdjustment, ReferenceID: uuid.New()})
	require.NoError(t, err)
	purchases.On("UpdateStatus", mock.Anything, mock.Anything, id, models.PurchaseReceived).Return(nil).Once()

	res, err := service.Revert(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.PurchaseReceived, res.Status)
	assert.Equal(t, 0, inventory.quantity(a, store))
	assert.Equal(t, 0, inventory.quantity(b, store))
}
