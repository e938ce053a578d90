package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/luisk202009/kuppel-dine-ease-sub002/internal/offline/model"
	"github.com/luisk202009/kuppel-dine-ease-sub002/internal/offline/netmon"
	"github.com/luisk202009/kuppel-dine-ease-sub002/internal/offline/store"
	"github.com/luisk202009/kuppel-dine-ease-sub002/internal/offline/syncer"
)

// fakeBackend implements the remote-apply and fetch surfaces in memory.
type fakeBackend struct {
	mu      sync.Mutex
	applied []string
	fail    bool

	products  []model.Product
	customers []model.Customer
	tables    []model.Table
}

func (b *fakeBackend) apply(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return fmt.Errorf("backend unavailable")
	}
	b.applied = append(b.applied, id)
	return nil
}

func (b *fakeBackend) appliedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.applied)
}

func (b *fakeBackend) CreateOrder(ctx context.Context, id string, p *model.OrderPayload) error {
	return b.apply(id)
}

func (b *fakeBackend) CreateCustomer(ctx context.Context, id string, p *model.CustomerPayload) error {
	return b.apply(id)
}

func (b *fakeBackend) CreateExpense(ctx context.Context, id string, p *model.ExpensePayload) error {
	return b.apply(id)
}

func (b *fakeBackend) UpdateTableStatus(ctx context.Context, id string, p *model.TableStatusPayload) error {
	return b.apply(id)
}

func (b *fakeBackend) FetchProducts(ctx context.Context) ([]model.Product, error) {
	return b.products, nil
}

func (b *fakeBackend) FetchCustomers(ctx context.Context) ([]model.Customer, error) {
	return b.customers, nil
}

func (b *fakeBackend) FetchTables(ctx context.Context) ([]model.Table, error) {
	return b.tables, nil
}

// recordingSink captures sink callbacks for assertions.
type recordingSink struct {
	mu          sync.Mutex
	summaries   []syncer.Summary
	transitions []bool
}

func (r *recordingSink) OnStats(stats model.StorageStats) {}

func (r *recordingSink) OnSyncComplete(summary syncer.Summary, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries = append(r.summaries, summary)
}

func (r *recordingSink) OnConnectivity(online bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, online)
}

func (r *recordingSink) syncCompletes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.summaries)
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

type testEnv struct {
	svc     *Service
	store   *store.Store
	backend *fakeBackend
	probe   *atomic.Bool
}

func setupTest(t *testing.T, sink EventSink) *testEnv {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	if err := st.InitSchema(); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}

	backend := &fakeBackend{}
	var probe atomic.Bool

	monitor, err := netmon.New(netmon.Config{
		Probe:    func(ctx context.Context) bool { return probe.Load() },
		Interval: 10 * time.Millisecond,
		Logger:   testLogger(),
	})
	if err != nil {
		t.Fatalf("failed to create monitor: %v", err)
	}

	svc, err := New(Config{
		Store:         st,
		Applier:       backend,
		Monitor:       monitor,
		Fetcher:       backend,
		Sink:          sink,
		RetryCeiling:  3,
		StatsInterval: 50 * time.Millisecond,
		Logger:        testLogger(),
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	return &testEnv{svc: svc, store: st, backend: backend, probe: &probe}
}

func testOrder() model.OrderPayload {
	return model.OrderPayload{
		Items: []model.OrderItem{
			{ProductID: "p-1", Name: "Espresso", Quantity: 2, UnitPrice: 350},
		},
		Total: 700,
	}
}

func TestCreateOrderQueuesAndSnapshots(t *testing.T) {
	env := setupTest(t, nil)
	ctx := context.Background()

	id, err := env.svc.CreateOrder(ctx, testOrder())
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if id == "" {
		t.Fatal("expected a mutation id")
	}

	pending, err := env.svc.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 queued mutation, got %d", len(pending))
	}
	if pending[0].Kind != model.KindCreateOrder {
		t.Errorf("unexpected kind: %s", pending[0].Kind)
	}

	// Write-through snapshot is readable immediately, even offline.
	orders, err := env.svc.Orders(ctx)
	if err != nil {
		t.Fatalf("Orders failed: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("expected 1 order snapshot, got %d", len(orders))
	}
	if orders[0].OrderID == "" {
		t.Error("order snapshot should carry the generated order id")
	}
	if orders[0].Total != 700 {
		t.Errorf("snapshot total mismatch: %d", orders[0].Total)
	}
}

func TestCreateCustomerWritesThrough(t *testing.T) {
	env := setupTest(t, nil)
	ctx := context.Background()

	if _, err := env.svc.CreateCustomer(ctx, model.CustomerPayload{Name: "Ada"}); err != nil {
		t.Fatalf("CreateCustomer failed: %v", err)
	}

	customers, err := env.svc.Customers(ctx)
	if err != nil {
		t.Fatalf("Customers failed: %v", err)
	}
	if len(customers) != 1 || customers[0].Name != "Ada" {
		t.Errorf("customer not readable offline: %+v", customers)
	}
}

func TestCreateExpenseQueuesWithoutSnapshot(t *testing.T) {
	env := setupTest(t, nil)
	ctx := context.Background()

	if _, err := env.svc.CreateExpense(ctx, model.ExpensePayload{
		Description: "napkins",
		Amount:      1500,
	}); err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}

	stats, err := env.svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.PendingSync != 1 {
		t.Errorf("expected 1 pending mutation, got %d", stats.PendingSync)
	}
}

func TestCreateRejectsInvalidPayload(t *testing.T) {
	env := setupTest(t, nil)
	ctx := context.Background()

	if _, err := env.svc.CreateExpense(ctx, model.ExpensePayload{Amount: -5}); err == nil {
		t.Error("expected validation error")
	}

	stats, err := env.svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.PendingSync != 0 {
		t.Errorf("rejected payload must not be queued, got %d", stats.PendingSync)
	}
}

func TestUpdateTableStatusPatchesCache(t *testing.T) {
	env := setupTest(t, nil)
	ctx := context.Background()

	if err := env.svc.CacheTables(ctx, []model.Table{
		{ID: "t-1", Name: "Window 1", Seats: 4, Status: "available"},
	}); err != nil {
		t.Fatalf("CacheTables failed: %v", err)
	}

	if _, err := env.svc.UpdateTableStatus(ctx, model.TableStatusPayload{
		TableID: "t-1",
		Status:  "occupied",
	}); err != nil {
		t.Fatalf("UpdateTableStatus failed: %v", err)
	}

	tables, err := env.svc.Tables(ctx)
	if err != nil {
		t.Fatalf("Tables failed: %v", err)
	}
	if len(tables) != 1 {
		t.Fatalf("expected 1 table, got %d", len(tables))
	}
	if tables[0].Status != "occupied" {
		t.Errorf("cached table status not patched: %s", tables[0].Status)
	}
	if tables[0].Seats != 4 {
		t.Errorf("patch must preserve other fields, seats=%d", tables[0].Seats)
	}
}

func TestUpdateTableStatusUncachedTable(t *testing.T) {
	env := setupTest(t, nil)
	ctx := context.Background()

	// No cached record to patch; the mutation still queues.
	if _, err := env.svc.UpdateTableStatus(ctx, model.TableStatusPayload{
		TableID: "t-9",
		Status:  "cleaning",
	}); err != nil {
		t.Fatalf("UpdateTableStatus failed: %v", err)
	}

	stats, err := env.svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.PendingSync != 1 {
		t.Errorf("expected 1 pending mutation, got %d", stats.PendingSync)
	}
}

func TestSyncNowDrainsAndRefreshes(t *testing.T) {
	env := setupTest(t, nil)
	ctx := context.Background()

	env.backend.products = []model.Product{{ID: "p-1", Name: "Espresso", Price: 350}}

	if _, err := env.svc.CreateOrder(ctx, testOrder()); err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	summary, err := env.svc.SyncNow(ctx)
	if err != nil {
		t.Fatalf("SyncNow failed: %v", err)
	}
	if summary.Synced != 1 || summary.Failed != 0 {
		t.Errorf("expected synced=1 failed=0, got %+v", summary)
	}

	// The drain refreshed the reference cache from the backend.
	products, err := env.svc.Products(ctx)
	if err != nil {
		t.Fatalf("Products failed: %v", err)
	}
	if len(products) != 1 || products[0].Name != "Espresso" {
		t.Errorf("cache not refreshed after drain: %+v", products)
	}
}

func TestStatsCountsEverything(t *testing.T) {
	env := setupTest(t, nil)
	ctx := context.Background()

	if err := env.svc.CacheProducts(ctx, []model.Product{{ID: "p-1", Name: "Espresso", Price: 350}}); err != nil {
		t.Fatalf("CacheProducts failed: %v", err)
	}
	if err := env.svc.CacheTables(ctx, []model.Table{{ID: "t-1", Name: "W1", Seats: 2, Status: "available"}}); err != nil {
		t.Fatalf("CacheTables failed: %v", err)
	}
	if _, err := env.svc.CreateOrder(ctx, testOrder()); err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if _, err := env.svc.CreateCustomer(ctx, model.CustomerPayload{Name: "Ada"}); err != nil {
		t.Fatalf("CreateCustomer failed: %v", err)
	}

	stats, err := env.svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Products != 1 || stats.Tables != 1 || stats.Orders != 1 || stats.Customers != 1 {
		t.Errorf("unexpected record counts: %+v", stats)
	}
	if stats.PendingSync != 2 {
		t.Errorf("expected 2 pending mutations, got %d", stats.PendingSync)
	}
	if stats.Exhausted != 0 {
		t.Errorf("expected no exhausted entries, got %d", stats.Exhausted)
	}
}

func TestStatsTracksExhausted(t *testing.T) {
	env := setupTest(t, nil)
	ctx := context.Background()

	env.backend.fail = true
	if _, err := env.svc.CreateOrder(ctx, testOrder()); err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	// Ceiling is 3; three failed passes exhaust the entry.
	for i := 0; i < 3; i++ {
		summary, err := env.svc.SyncNow(ctx)
		if err != nil {
			t.Fatalf("SyncNow failed: %v", err)
		}
		if summary.Failed != 1 {
			t.Errorf("pass %d: expected 1 failure, got %+v", i, summary)
		}
	}

	stats, err := env.svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Exhausted != 1 {
		t.Errorf("expected 1 exhausted entry, got %d", stats.Exhausted)
	}
	if stats.PendingSync != 1 {
		t.Errorf("exhausted entry must stay queued, got %d pending", stats.PendingSync)
	}
}

func TestResolveExhausted(t *testing.T) {
	env := setupTest(t, nil)
	ctx := context.Background()

	env.backend.fail = true
	if _, err := env.svc.CreateOrder(ctx, testOrder()); err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := env.svc.SyncNow(ctx); err != nil {
			t.Fatalf("SyncNow failed: %v", err)
		}
	}

	pending, err := env.svc.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 exhausted entry, got %d", len(pending))
	}

	if err := env.svc.ResolveExhausted(ctx, pending[0].ID); err != nil {
		t.Fatalf("ResolveExhausted failed: %v", err)
	}

	stats, err := env.svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.PendingSync != 0 || stats.Exhausted != 0 {
		t.Errorf("expected empty queue after resolution, got %+v", stats)
	}
}

func TestClearCachePreservesQueue(t *testing.T) {
	env := setupTest(t, nil)
	ctx := context.Background()

	if err := env.svc.CacheProducts(ctx, []model.Product{{ID: "p-1", Name: "Espresso", Price: 350}}); err != nil {
		t.Fatalf("CacheProducts failed: %v", err)
	}
	if _, err := env.svc.CreateOrder(ctx, testOrder()); err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	if err := env.svc.ClearCache(ctx); err != nil {
		t.Fatalf("ClearCache failed: %v", err)
	}

	stats, err := env.svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Products != 0 {
		t.Errorf("reference cache not cleared: %d products", stats.Products)
	}
	if stats.PendingSync != 1 {
		t.Errorf("pending queue must survive a cache clear, got %d", stats.PendingSync)
	}
	if stats.Orders != 1 {
		t.Errorf("order snapshots must survive a cache clear, got %d", stats.Orders)
	}
}

func TestAutoSyncOnReconnect(t *testing.T) {
	sink := &recordingSink{}
	env := setupTest(t, sink)
	ctx := context.Background()

	// Start offline with one queued mutation.
	if _, err := env.svc.CreateOrder(ctx, testOrder()); err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	if err := env.svc.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer env.svc.Stop()

	// Come back online; the service must drain without an explicit SyncNow.
	env.probe.Store(true)

	deadline := time.After(3 * time.Second)
	for env.backend.appliedCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("reconnect did not trigger a sync pass")
		case <-time.After(5 * time.Millisecond):
		}
	}

	deadline = time.After(3 * time.Second)
	for sink.syncCompletes() == 0 {
		select {
		case <-deadline:
			t.Fatal("sink never received the sync summary")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestStartStopIdempotent(t *testing.T) {
	env := setupTest(t, nil)

	if err := env.svc.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := env.svc.Start(); err == nil {
		t.Error("expected error starting a running service")
	}

	env.svc.Stop()
	env.svc.Stop() // no-op
}

func TestNewValidatesConfig(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error for missing collaborators")
	}
}
