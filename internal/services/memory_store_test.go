package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"stockflow/internal/models"
	"stockflow/internal/repositories"

	"github.com/google/uuid"
)

// memoryInventory is an in-memory InventoryRepository. Paired with memoryTx it restores its state
// when a unit of work fails, which is enough to observe all-or-nothing behavior.
type memoryInventory struct {
	records map[models.StockKey]*models.InventoryRecord
	txs     []*models.InventoryTransaction
	seq     int64
}

func newMemoryInventory() *memoryInventory {
	return &memoryInventory{records: make(map[models.StockKey]*models.InventoryRecord)}
}

func (m *memoryInventory) snapshot() func() {
	records := make(map[models.StockKey]*models.InventoryRecord, len(m.records))
	for k, r := range m.records {
		c := *r
		records[k] = &c
	}
	txs := append([]*models.InventoryTransaction(nil), m.txs...)
	seq := m.seq
	return func() {
		m.records = records
		m.txs = txs
		m.seq = seq
	}
}

func (m *memoryInventory) quantity(variantID, storeID uuid.UUID) int {
	if rec, ok := m.records[models.StockKey{ProductVariantID: variantID, StoreID: storeID}]; ok {
		return rec.Quantity
	}
	return 0
}

func (m *memoryInventory) byID(id uuid.UUID) *models.InventoryRecord {
	for _, rec := range m.records {
		if rec.ID == id {
			return rec
		}
	}
	return nil
}

func (m *memoryInventory) GetByVariantAndStore(ctx context.Context, q repositories.Querier, variantID, storeID uuid.UUID) (*models.InventoryRecord, error) {
	rec, ok := m.records[models.StockKey{ProductVariantID: variantID, StoreID: storeID}]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	c := *rec
	return &c, nil
}

func (m *memoryInventory) LockByVariantAndStore(ctx context.Context, q repositories.Querier, variantID, storeID uuid.UUID) (*models.InventoryRecord, error) {
	return m.GetByVariantAndStore(ctx, q, variantID, storeID)
}

func (m *memoryInventory) EnsureLocked(ctx context.Context, q repositories.Querier, variantID, storeID uuid.UUID) (*models.InventoryRecord, error) {
	key := models.StockKey{ProductVariantID: variantID, StoreID: storeID}
	if _, ok := m.records[key]; !ok {
		m.records[key] = &models.InventoryRecord{ID: uuid.New(), ProductVariantID: variantID, StoreID: storeID}
	}
	return m.GetByVariantAndStore(ctx, q, variantID, storeID)
}

func (m *memoryInventory) ApplyDelta(ctx context.Context, q repositories.Querier, recordID uuid.UUID, delta int) (*models.InventoryRecord, error) {
	rec := m.byID(recordID)
	if rec == nil || rec.Quantity+delta < 0 {
		return nil, repositories.ErrNotFound
	}
	rec.Quantity += delta
	rec.Version++
	c := *rec
	return &c, nil
}

func (m *memoryInventory) InsertTransaction(ctx context.Context, q repositories.Querier, tx *models.InventoryTransaction) error {
	m.seq++
	tx.Seq = m.seq
	tx.CreatedAt = time.Unix(m.seq, 0)
	m.txs = append(m.txs, tx)
	return nil
}

func (m *memoryInventory) ListTransactions(ctx context.Context, q repositories.Querier, recordID uuid.UUID) ([]*models.InventoryTransaction, error) {
	out := []*models.InventoryTransaction{}
	for _, tx := range m.txs {
		if tx.InventoryRecordID == recordID {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (m *memoryInventory) NetByReference(ctx context.Context, q repositories.Querier, refType models.ReferenceType, refID uuid.UUID, reason models.TransactionReason) (map[models.StockKey]int, error) {
	net := make(map[models.StockKey]int)
	for _, tx := range m.txs {
		if tx.ReferenceType == refType && tx.ReferenceID == refID && tx.Reason == reason {
			net[models.StockKey{ProductVariantID: tx.ProductVariantID, StoreID: tx.StoreID}] += tx.Delta
		}
	}
	return net, nil
}

func (m *memoryInventory) CountByReference(ctx context.Context, q repositories.Querier, refType models.ReferenceType, refID uuid.UUID) (int, error) {
	n := 0
	for _, tx := range m.txs {
		if tx.ReferenceType == refType && tx.ReferenceID == refID {
			n++
		}
	}
	return n, nil
}

func (m *memoryInventory) FindDiscrepancies(ctx context.Context, q repositories.Querier, limit int) ([]*models.ReconciliationReport, error) {
	var out []*models.ReconciliationReport
	for _, rec := range m.records {
		history, _ := m.ListTransactions(ctx, q, rec.ID)
		if replayed := models.ReplayHistory(history); replayed != rec.Quantity {
			out = append(out, &models.ReconciliationReport{InventoryRecordID: rec.ID, StoredQuantity: rec.Quantity, ReplayedQuantity: replayed})
		}
	}
	return out, nil
}

type memoryTx struct {
	inventory *memoryInventory
}

func (t *memoryTx) WithinTx(ctx context.Context, fn func(q repositories.Querier) error) error {
	restore := t.inventory.snapshot()
	if err := fn(nil); err != nil {
		restore()
		return err
	}
	return nil
}

// versionedCache keeps the newest-version-wins rule of the redis cache.
type versionedCache struct {
	mu      sync.Mutex
	entries map[models.StockKey][2]int64
}

func newVersionedCache() *versionedCache {
	return &versionedCache{entries: make(map[models.StockKey][2]int64)}
}

func (c *versionedCache) GetQuantity(ctx context.Context, variantID, storeID uuid.UUID) (int, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[models.StockKey{ProductVariantID: variantID, StoreID: storeID}]
	return int(e[1]), ok, nil
}

func (c *versionedCache) SetQuantity(ctx context.Context, variantID, storeID uuid.UUID, quantity int, version int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := models.StockKey{ProductVariantID: variantID, StoreID: storeID}
	if e, ok := c.entries[key]; ok && e[0] >= version {
		return nil
	}
	c.entries[key] = [2]int64{version, int64(quantity)}
	return nil
}

func (c *versionedCache) DeleteQuantity(ctx context.Context, variantID, storeID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, models.StockKey{ProductVariantID: variantID, StoreID: storeID})
	return nil
}

func (c *versionedCache) Ping(ctx context.Context) error { return nil }
