package services

import (
	"context"
	"time"

	"stockflow/internal/models"
	"stockflow/internal/repositories"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// passThroughTx runs fn directly with a nil Querier; repositories are mocked so they never use it.
type passThroughTx struct {
	calls int
}

func (p *passThroughTx) WithinTx(ctx context.Context, fn func(q repositories.Querier) error) error {
	p.calls++
	return fn(nil)
}

type MockInventoryRepository struct {
	mock.Mock
}

func (m *MockInventoryRepository) GetByVariantAndStore(ctx context.Context, q repositories.Querier, variantID, storeID uuid.UUID) (*models.InventoryRecord, error) {
	args := m.Called(ctx, q, variantID, storeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InventoryRecord), args.Error(1)
}

func (m *MockInventoryRepository) LockByVariantAndStore(ctx context.Context, q repositories.Querier, variantID, storeID uuid.UUID) (*models.InventoryRecord, error) {
	args := m.Called(ctx, q, variantID, storeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InventoryRecord), args.Error(1)
}

func (m *MockInventoryRepository) EnsureLocked(ctx context.Context, q repositories.Querier, variantID, storeID uuid.UUID) (*models.InventoryRecord, error) {
	args := m.Called(ctx, q, variantID, storeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InventoryRecord), args.Error(1)
}

func (m *MockInventoryRepository) ApplyDelta(ctx context.Context, q repositories.Querier, recordID uuid.UUID, delta int) (*models.InventoryRecord, error) {
	args := m.Called(ctx, q, recordID, delta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InventoryRecord), args.Error(1)
}

func (m *MockInventoryRepository) InsertTransaction(ctx context.Context, q repositories.Querier, tx *models.InventoryTransaction) error {
	args := m.Called(ctx, q, tx)
	return args.Error(0)
}

func (m *MockInventoryRepository) ListTransactions(ctx context.Context, q repositories.Querier, recordID uuid.UUID) ([]*models.InventoryTransaction, error) {
	args := m.Called(ctx, q, recordID)
	return args.Get(0).([]*models.InventoryTransaction), args.Error(1)
}

func (m *MockInventoryRepository) NetByReference(ctx context.Context, q repositories.Querier, refType models.ReferenceType, refID uuid.UUID, reason models.TransactionReason) (map[models.StockKey]int, error) {
	args := m.Called(ctx, q, refType, refID, reason)
	return args.Get(0).(map[models.StockKey]int), args.Error(1)
}

func (m *MockInventoryRepository) CountByReference(ctx context.Context, q repositories.Querier, refType models.ReferenceType, refID uuid.UUID) (int, error) {
	args := m.Called(ctx, q, refType, refID)
	return args.Int(0), args.Error(1)
}

func (m *MockInventoryRepository) FindDiscrepancies(ctx context.Context, q repositories.Querier, limit int) ([]*models.ReconciliationReport, error) {
	args := m.Called(ctx, q, limit)
	return args.Get(0).([]*models.ReconciliationReport), args.Error(1)
}

type MockSequenceRepository struct {
	mock.Mock
}

func (m *MockSequenceRepository) Increment(ctx context.Context, q repositories.Querier, scope string, by int) (int64, error) {
	args := m.Called(ctx, q, scope, by)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSequenceRepository) Set(ctx context.Context, q repositories.Querier, scope string, value int64) error {
	args := m.Called(ctx, q, scope, value)
	return args.Error(0)
}

func (m *MockSequenceRepository) Get(ctx context.Context, q repositories.Querier, scope string) (*models.SequenceCounter, error) {
	args := m.Called(ctx, q, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SequenceCounter), args.Error(1)
}

type MockStoreRepository struct {
	mock.Mock
}

func (m *MockStoreRepository) GetByID(ctx context.Context, q repositories.Querier, id uuid.UUID) (*models.Store, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Store), args.Error(1)
}

func (m *MockStoreRepository) Exists(ctx context.Context, q repositories.Querier, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, q, id)
	return args.Bool(0), args.Error(1)
}

type MockVariantRepository struct {
	mock.Mock
}

func (m *MockVariantRepository) Missing(ctx context.Context, q repositories.Querier, ids []uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, q, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

type MockPurchaseRepository struct {
	mock.Mock
}

func (m *MockPurchaseRepository) Create(ctx context.Context, q repositories.Querier, p *models.Purchase) error {
	args := m.Called(ctx, q, p)
	return args.Error(0)
}

func (m *MockPurchaseRepository) InsertItems(ctx context.Context, q repositories.Querier, items []*models.PurchaseItem) error {
	args := m.Called(ctx, q, items)
	return args.Error(0)
}

func (m *MockPurchaseRepository) UpdateItemCosts(ctx context.Context, q repositories.Querier, items []*models.PurchaseItem) error {
	args := m.Called(ctx, q, items)
	return args.Error(0)
}

func (m *MockPurchaseRepository) GetByID(ctx context.Context, q repositories.Querier, id uuid.UUID) (*models.Purchase, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Purchase), args.Error(1)
}

func (m *MockPurchaseRepository) GetForUpdate(ctx context.Context, q repositories.Querier, id uuid.UUID) (*models.Purchase, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Purchase), args.Error(1)
}

func (m *MockPurchaseRepository) UpdateStatus(ctx context.Context, q repositories.Querier, id uuid.UUID, status models.PurchaseStatus) error {
	args := m.Called(ctx, q, id, status)
	return args.Error(0)
}

func (m *MockPurchaseRepository) OrderNumberExists(ctx context.Context, q repositories.Querier, orderNumber string) (bool, error) {
	args := m.Called(ctx, q, orderNumber)
	return args.Bool(0), args.Error(1)
}

func (m *MockPurchaseRepository) SoftDelete(ctx context.Context, q repositories.Querier, id uuid.UUID) error {
	args := m.Called(ctx, q, id)
	return args.Error(0)
}

type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Create(ctx context.Context, q repositories.Querier, o *models.Order) error {
	args := m.Called(ctx, q, o)
	return args.Error(0)
}

func (m *MockOrderRepository) GetByID(ctx context.Context, q repositories.Querier, id uuid.UUID) (*models.Order, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderRepository) GetForUpdate(ctx context.Context, q repositories.Querier, id uuid.UUID) (*models.Order, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderRepository) UpdateStatus(ctx context.Context, q repositories.Querier, id uuid.UUID, status models.OrderStatus) error {
	args := m.Called(ctx, q, id, status)
	return args.Error(0)
}

func (m *MockOrderRepository) UpdateTotals(ctx context.Context, q repositories.Querier, o *models.Order) error {
	args := m.Called(ctx, q, o)
	return args.Error(0)
}

func (m *MockOrderRepository) OrderNumberExists(ctx context.Context, q repositories.Querier, orderNumber string) (bool, error) {
	args := m.Called(ctx, q, orderNumber)
	return args.Bool(0), args.Error(1)
}

type MockOrderItemRepository struct {
	mock.Mock
}

func (m *MockOrderItemRepository) Create(ctx context.Context, q repositories.Querier, item *models.OrderItem) error {
	args := m.Called(ctx, q, item)
	return args.Error(0)
}

func (m *MockOrderItemRepository) ListByOrderID(ctx context.Context, q repositories.Querier, orderID uuid.UUID) ([]*models.OrderItem, error) {
	args := m.Called(ctx, q, orderID)
	return args.Get(0).([]*models.OrderItem), args.Error(1)
}

func (m *MockOrderItemRepository) ListOpenByPurchase(ctx context.Context, q repositories.Querier, purchaseID uuid.UUID) ([]*models.OrderItem, error) {
	args := m.Called(ctx, q, purchaseID)
	return args.Get(0).([]*models.OrderItem), args.Error(1)
}

func (m *MockOrderItemRepository) MarkFulfilled(ctx context.Context, q repositories.Querier, id uuid.UUID, at time.Time) error {
	args := m.Called(ctx, q, id, at)
	return args.Error(0)
}

type MockTransferRepository struct {
	mock.Mock
}

func (m *MockTransferRepository) Create(ctx context.Context, q repositories.Querier, t *models.InventoryTransfer) error {
	args := m.Called(ctx, q, t)
	return args.Error(0)
}

func (m *MockTransferRepository) GetByID(ctx context.Context, q repositories.Querier, id uuid.UUID) (*models.InventoryTransfer, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InventoryTransfer), args.Error(1)
}

func (m *MockTransferRepository) GetForUpdate(ctx context.Context, q repositories.Querier, id uuid.UUID) (*models.InventoryTransfer, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InventoryTransfer), args.Error(1)
}

func (m *MockTransferRepository) UpdateStatus(ctx context.Context, q repositories.Querier, id uuid.UUID, status models.TransferStatus) error {
	args := m.Called(ctx, q, id, status)
	return args.Error(0)
}

type MockInventoryLedger struct {
	mock.Mock
}

func (m *MockInventoryLedger) Increment(ctx context.Context, entry LedgerEntry) (*models.InventoryTransaction, error) {
	args := m.Called(ctx, entry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InventoryTransaction), args.Error(1)
}

func (m *MockInventoryLedger) Decrement(ctx context.Context, entry LedgerEntry) (*models.InventoryTransaction, error) {
	args := m.Called(ctx, entry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InventoryTransaction), args.Error(1)
}

func (m *MockInventoryLedger) IncrementTx(ctx context.Context, q repositories.Querier, entry LedgerEntry) (*models.InventoryTransaction, error) {
	args := m.Called(ctx, q, entry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InventoryTransaction), args.Error(1)
}

func (m *MockInventoryLedger) DecrementTx(ctx context.Context, q repositories.Querier, entry LedgerEntry) (*models.InventoryTransaction, error) {
	args := m.Called(ctx, q, entry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InventoryTransaction), args.Error(1)
}

func (m *MockInventoryLedger) Adjust(ctx context.Context, variantID, storeID uuid.UUID, delta int) (*models.InventoryTransaction, error) {
	args := m.Called(ctx, variantID, storeID, delta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InventoryTransaction), args.Error(1)
}

func (m *MockInventoryLedger) CurrentQuantity(ctx context.Context, variantID, storeID uuid.UUID) (int, error) {
	args := m.Called(ctx, variantID, storeID)
	return args.Int(0), args.Error(1)
}

func (m *MockInventoryLedger) History(ctx context.Context, variantID, storeID uuid.UUID) ([]*models.InventoryTransaction, error) {
	args := m.Called(ctx, variantID, storeID)
	return args.Get(0).([]*models.InventoryTransaction), args.Error(1)
}

func (m *MockInventoryLedger) GetRecord(ctx context.Context, variantID, storeID uuid.UUID) (*models.InventoryRecord, error) {
	args := m.Called(ctx, variantID, storeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InventoryRecord), args.Error(1)
}

func (m *MockInventoryLedger) Reconcile(ctx context.Context, variantID, storeID uuid.UUID) (*models.ReconciliationReport, error) {
	args := m.Called(ctx, variantID, storeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReconciliationReport), args.Error(1)
}

func (m *MockInventoryLedger) FindDiscrepancies(ctx context.Context, limit int) ([]*models.ReconciliationReport, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]*models.ReconciliationReport), args.Error(1)
}

type MockSequenceService struct {
	mock.Mock
}

func (m *MockSequenceService) Next(ctx context.Context, prefix string, scope time.Time) (string, error) {
	args := m.Called(ctx, prefix, scope)
	return args.String(0), args.Error(1)
}

func (m *MockSequenceService) NextForNow(ctx context.Context, prefix string) (string, error) {
	args := m.Called(ctx, prefix)
	return args.String(0), args.Error(1)
}

func (m *MockSequenceService) NextBatch(ctx context.Context, prefix string, scope time.Time, n int) ([]string, error) {
	args := m.Called(ctx, prefix, scope, n)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockSequenceService) NextTx(ctx context.Context, q repositories.Querier, prefix string, scope time.Time) (string, error) {
	args := m.Called(ctx, q, prefix, scope)
	return args.String(0), args.Error(1)
}

func (m *MockSequenceService) Reset(ctx context.Context, prefix string, scope time.Time, start int64) error {
	args := m.Called(ctx, prefix, scope, start)
	return args.Error(0)
}

func (m *MockSequenceService) Current(ctx context.Context, prefix string, scope time.Time) (int64, error) {
	args := m.Called(ctx, prefix, scope)
	return args.Get(0).(int64), args.Error(1)
}

type MockPurchaseService struct {
	mock.Mock
}

func (m *MockPurchaseService) Create(ctx context.Context, in models.CreatePurchaseInput) (*models.PurchaseResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PurchaseResult), args.Error(1)
}

func (m *MockPurchaseService) CreateTx(ctx context.Context, q repositories.Querier, in models.CreatePurchaseInput) (*models.Purchase, error) {
	args := m.Called(ctx, q, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Purchase), args.Error(1)
}

func (m *MockPurchaseService) Get(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Purchase), args.Error(1)
}

func (m *MockPurchaseService) UpdateStatus(ctx context.Context, id uuid.UUID, to models.PurchaseStatus) (*models.PurchaseResult, error) {
	args := m.Called(ctx, id, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PurchaseResult), args.Error(1)
}

func (m *MockPurchaseService) Revert(ctx context.Context, id uuid.UUID) (*models.PurchaseResult, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PurchaseResult), args.Error(1)
}

func (m *MockPurchaseService) AttachItemsTx(ctx context.Context, q repositories.Querier, purchaseID, storeID uuid.UUID, items []models.PurchaseItemInput) ([]*models.PurchaseItem, error) {
	args := m.Called(ctx, q, purchaseID, storeID, items)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PurchaseItem), args.Error(1)
}

func (m *MockPurchaseService) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockPurchaseService) RegisterHook(hook PurchaseCompletionHook) {
	m.Called(hook)
}

type MockCompletionHook struct {
	mock.Mock
}

func (m *MockCompletionHook) PurchaseCompleted(ctx context.Context, q repositories.Querier, p *models.Purchase) error {
	args := m.Called(ctx, q, p)
	return args.Error(0)
}
