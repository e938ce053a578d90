// Package service wires the offline subsystem together behind one explicit
// object with a start/stop lifecycle: the durable store, the pending queue,
// the cache populator, the network monitor, and the synchronizer.
//
// Domain actions go through the service so the code path is uniform whether
// the device is online or offline: the mutation is always queued, and the
// synchronizer drains the queue when connectivity allows.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/luisk202009/kuppel-dine-ease-sub002/internal/offline/cache"
	"github.com/luisk202009/kuppel-dine-ease-sub002/internal/offline/model"
	"github.com/luisk202009/kuppel-dine-ease-sub002/internal/offline/netmon"
	"github.com/luisk202009/kuppel-dine-ease-sub002/internal/offline/queue"
	"github.com/luisk202009/kuppel-dine-ease-sub002/internal/offline/store"
	"github.com/luisk202009/kuppel-dine-ease-sub002/internal/offline/syncer"
)

// EventSink receives status events for display. The dashboard implements it;
// a nil sink disables reporting without changing any behavior.
type EventSink interface {
	OnStats(stats model.StorageStats)
	OnSyncComplete(summary syncer.Summary, elapsed time.Duration)
	OnConnectivity(online bool)
}

// Fetcher pulls reference data from the backend for cache population.
type Fetcher interface {
	FetchProducts(ctx context.Context) ([]model.Product, error)
	FetchCustomers(ctx context.Context) ([]model.Customer, error)
	FetchTables(ctx context.Context) ([]model.Table, error)
}

// Config holds service configuration.
type Config struct {
	// Store is the opened durable store with schema initialized. Required.
	Store *store.Store

	// Applier performs remote-apply calls during sync passes. Required.
	Applier syncer.RemoteApplier

	// Monitor observes connectivity. Required.
	Monitor *netmon.Monitor

	// Fetcher refreshes cached reference data after a successful drain.
	// Optional; nil disables opportunistic refresh.
	Fetcher Fetcher

	// Sink receives status events. Optional.
	Sink EventSink

	// RetryCeiling is the maximum failed replays per mutation
	// (default: syncer.DefaultRetryCeiling).
	RetryCeiling int

	// StatsInterval is how often aggregate counts are recomputed for the
	// sink (default: 10s).
	StatsInterval time.Duration

	// Logger for service activity (default: stderr logger).
	Logger *log.Logger
}

// Service is the offline subsystem's collaborator-facing surface.
type Service struct {
	store   *store.Store
	queue   queue.Manager
	cache   *cache.Populator
	monitor *netmon.Monitor
	syncer  syncer.Syncer
	fetcher Fetcher
	sink    EventSink
	logger  *log.Logger

	ceiling       int
	statsInterval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a Service from its collaborators. Use Start() to begin
// connectivity monitoring and background stats polling; domain actions and
// reads work without Start.
func New(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if cfg.Applier == nil {
		return nil, fmt.Errorf("applier cannot be nil")
	}
	if cfg.Monitor == nil {
		return nil, fmt.Errorf("monitor cannot be nil")
	}
	if cfg.RetryCeiling <= 0 {
		cfg.RetryCeiling = syncer.DefaultRetryCeiling
	}
	if cfg.StatsInterval == 0 {
		cfg.StatsInterval = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "[offline] ", log.LstdFlags)
	}

	q := queue.New(cfg.Store, cfg.Logger)

	return &Service{
		store:         cfg.Store,
		queue:         q,
		cache:         cache.New(cfg.Store, cfg.Logger),
		monitor:       cfg.Monitor,
		syncer:        syncer.New(q, cfg.Applier, cfg.RetryCeiling, cfg.Logger),
		fetcher:       cfg.Fetcher,
		sink:          cfg.Sink,
		logger:        cfg.Logger,
		ceiling:       cfg.RetryCeiling,
		statsInterval: cfg.StatsInterval,
	}, nil
}

// Start begins connectivity monitoring, the automatic sync trigger, and the
// periodic stats poller. It returns immediately; use Stop for teardown.
func (s *Service) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("service already running")
	}
	s.running = true
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mu.Unlock()

	events := s.monitor.Subscribe()
	if err := s.monitor.Start(); err != nil {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		cancel()
		return fmt.Errorf("failed to start network monitor: %w", err)
	}

	s.wg.Add(2)
	go s.connectivityLoop(ctx, events)
	go s.statsLoop(ctx)

	s.logger.Printf("Offline service started")
	return nil
}

// Stop halts the monitor and background loops. The store stays open; the
// caller that opened it closes it.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	s.monitor.Stop()
	s.wg.Wait()

	s.logger.Printf("Offline service stopped")
}

// connectivityLoop reacts to network transitions: every offline→online
// transition triggers exactly one drain attempt. If a pass is already in
// flight the trigger is dropped, per the synchronizer's guard.
func (s *Service) connectivityLoop(ctx context.Context, events <-chan netmon.StateChange) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-events:
			if !ok {
				return
			}

			if s.sink != nil {
				s.sink.OnConnectivity(ev.Online)
			}

			if !ev.Online {
				continue
			}

			s.logger.Printf("Back online, draining pending queue")
			if _, err := s.SyncNow(ctx); err != nil && !errors.Is(err, syncer.ErrSyncInProgress) {
				s.logger.Printf("Automatic sync failed: %v", err)
			}
		}
	}
}

// statsLoop periodically recomputes aggregate counts for the sink. This is
// best-effort display plumbing, outside the correctness-critical path.
func (s *Service) statsLoop(ctx context.Context) {
	defer s.wg.Done()

	if s.sink == nil {
		return
	}

	ticker := time.NewTicker(s.statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			stats, err := s.Stats(ctx)
			if err != nil {
				s.logger.Printf("Error computing stats: %v", err)
				continue
			}
			s.sink.OnStats(stats)
		}
	}
}

// SyncNow runs one drain pass against the backend. After a pass that synced
// anything, cached reference data is opportunistically refreshed.
func (s *Service) SyncNow(ctx context.Context) (syncer.Summary, error) {
	start := time.Now()
	summary, err := s.syncer.Sync(ctx)
	if err != nil {
		return summary, err
	}

	if s.sink != nil {
		s.sink.OnSyncComplete(summary, time.Since(start))
	}

	if summary.Synced > 0 && s.fetcher != nil {
		s.refreshCache(ctx)
	}

	return summary, nil
}

// Stats returns the aggregate counts for the status reporter.
func (s *Service) Stats(ctx context.Context) (model.StorageStats, error) {
	var stats model.StorageStats
	var err error

	counts := []struct {
		collection model.Collection
		dest       *int
	}{
		{model.CollectionOrders, &stats.Orders},
		{model.CollectionProducts, &stats.Products},
		{model.CollectionCustomers, &stats.Customers},
		{model.CollectionTables, &stats.Tables},
	}
	for _, c := range counts {
		if *c.dest, err = s.store.CountRecords(ctx, c.collection); err != nil {
			return stats, fmt.Errorf("failed to count %s: %w", c.collection, err)
		}
	}

	if stats.PendingSync, err = s.queue.PendingCount(ctx); err != nil {
		return stats, fmt.Errorf("failed to count pending mutations: %w", err)
	}
	if stats.Exhausted, err = s.store.CountExhausted(ctx, s.ceiling); err != nil {
		return stats, fmt.Errorf("failed to count exhausted mutations: %w", err)
	}

	return stats, nil
}

// CreateOrder queues an order mutation and writes a snapshot of the order
// into the local orders collection so the UI sees it immediately, even
// offline. The queue write is fatal on failure; the snapshot write is
// best-effort and only logged.
func (s *Service) CreateOrder(ctx context.Context, p model.OrderPayload) (string, error) {
	if p.OrderID == "" {
		p.OrderID = uuid.NewString()
	}
	if p.PlacedAt.IsZero() {
		p.PlacedAt = time.Now()
	}

	id, err := s.queue.Enqueue(ctx, &p)
	if err != nil {
		return "", fmt.Errorf("failed to queue order: %w", err)
	}

	if err := s.writeThrough(ctx, model.CollectionOrders, p.OrderID, p); err != nil {
		s.logger.Printf("Warning: failed to store order snapshot %s: %v", p.OrderID, err)
	}

	return id, nil
}

// CreateCustomer queues a customer mutation and writes the customer through
// to the local cache for immediate offline lookups.
func (s *Service) CreateCustomer(ctx context.Context, p model.CustomerPayload) (string, error) {
	if p.CustomerID == "" {
		p.CustomerID = uuid.NewString()
	}

	id, err := s.queue.Enqueue(ctx, &p)
	if err != nil {
		return "", fmt.Errorf("failed to queue customer: %w", err)
	}

	local := model.Customer{ID: p.CustomerID, Name: p.Name, Phone: p.Phone, Email: p.Email}
	if err := s.writeThrough(ctx, model.CollectionCustomers, local.ID, local); err != nil {
		s.logger.Printf("Warning: failed to cache customer %s: %v", local.ID, err)
	}

	return id, nil
}

// CreateExpense queues an expense mutation. Expenses have no offline read
// path, so there is no write-through.
func (s *Service) CreateExpense(ctx context.Context, p model.ExpensePayload) (string, error) {
	if p.ExpenseID == "" {
		p.ExpenseID = uuid.NewString()
	}
	if p.IncurredAt.IsZero() {
		p.IncurredAt = time.Now()
	}

	id, err := s.queue.Enqueue(ctx, &p)
	if err != nil {
		return "", fmt.Errorf("failed to queue expense: %w", err)
	}

	return id, nil
}

// UpdateTableStatus queues a table-status mutation and patches the cached
// table record so the floor view reflects the change immediately.
func (s *Service) UpdateTableStatus(ctx context.Context, p model.TableStatusPayload) (string, error) {
	id, err := s.queue.Enqueue(ctx, &p)
	if err != nil {
		return "", fmt.Errorf("failed to queue table status update: %w", err)
	}

	if err := s.patchCachedTable(ctx, p.TableID, p.Status); err != nil {
		s.logger.Printf("Warning: failed to update cached table %s: %v", p.TableID, err)
	}

	return id, nil
}

// patchCachedTable rewrites the cached table record with the new status.
func (s *Service) patchCachedTable(ctx context.Context, tableID, status string) error {
	rec, err := s.store.GetRecord(ctx, model.CollectionTables, tableID)
	if errors.Is(err, store.ErrNotFound) {
		return nil // table not cached yet, nothing to patch
	}
	if err != nil {
		return err
	}

	var table model.Table
	if err := json.Unmarshal(rec.Payload, &table); err != nil {
		return fmt.Errorf("failed to decode cached table: %w", err)
	}
	table.Status = status

	return s.writeThrough(ctx, model.CollectionTables, tableID, table)
}

// writeThrough stores a domain value in the records table.
func (s *Service) writeThrough(ctx context.Context, collection model.Collection, id string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.store.PutRecord(ctx, collection, model.CachedRecord{
		ID:       id,
		Payload:  raw,
		CachedAt: time.Now(),
	})
}

// CacheProducts snapshots the product catalog for offline reads.
func (s *Service) CacheProducts(ctx context.Context, products []model.Product) error {
	return s.cache.CacheProducts(ctx, products)
}

// CacheCustomers snapshots the customer list for offline reads.
func (s *Service) CacheCustomers(ctx context.Context, customers []model.Customer) error {
	return s.cache.CacheCustomers(ctx, customers)
}

// CacheTables snapshots the table list for offline reads.
func (s *Service) CacheTables(ctx context.Context, tables []model.Table) error {
	return s.cache.CacheTables(ctx, tables)
}

// ClearCache removes cached reference data. Pending mutations and local
// order snapshots are preserved; nothing queued is ever lost to a clear.
func (s *Service) ClearCache(ctx context.Context) error {
	return s.cache.Clear(ctx)
}

// Products returns the cached product catalog.
func (s *Service) Products(ctx context.Context) ([]model.Product, error) {
	return decodeAll[model.Product](ctx, s.store, model.CollectionProducts)
}

// Customers returns the cached customer list.
func (s *Service) Customers(ctx context.Context) ([]model.Customer, error) {
	return decodeAll[model.Customer](ctx, s.store, model.CollectionCustomers)
}

// Tables returns the cached table list.
func (s *Service) Tables(ctx context.Context) ([]model.Table, error) {
	return decodeAll[model.Table](ctx, s.store, model.CollectionTables)
}

// Orders returns locally stored order snapshots.
func (s *Service) Orders(ctx context.Context) ([]model.OrderPayload, error) {
	return decodeAll[model.OrderPayload](ctx, s.store, model.CollectionOrders)
}

// ListPending exposes the queue contents for status displays and manual
// resolution of exhausted entries.
func (s *Service) ListPending(ctx context.Context) ([]model.PendingMutation, error) {
	return s.queue.ListPending(ctx)
}

// ResolveExhausted removes a single queue entry by id. This is the manual
// escalation path for entries past the retry ceiling; nothing else removes
// a failed entry.
func (s *Service) ResolveExhausted(ctx context.Context, id string) error {
	return s.queue.Dequeue(ctx, id)
}

// refreshCache pulls fresh reference data after a successful drain. Each
// collection is refreshed independently; caching is best-effort and a
// failure only logs.
func (s *Service) refreshCache(ctx context.Context) {
	if products, err := s.fetcher.FetchProducts(ctx); err != nil {
		s.logger.Printf("Warning: failed to fetch products: %v", err)
	} else if err := s.cache.CacheProducts(ctx, products); err != nil {
		s.logger.Printf("Warning: failed to cache products: %v", err)
	}

	if customers, err := s.fetcher.FetchCustomers(ctx); err != nil {
		s.logger.Printf("Warning: failed to fetch customers: %v", err)
	} else if err := s.cache.CacheCustomers(ctx, customers); err != nil {
		s.logger.Printf("Warning: failed to cache customers: %v", err)
	}

	if tables, err := s.fetcher.FetchTables(ctx); err != nil {
		s.logger.Printf("Warning: failed to fetch tables: %v", err)
	} else if err := s.cache.CacheTables(ctx, tables); err != nil {
		s.logger.Printf("Warning: failed to cache tables: %v", err)
	}
}

// decodeAll lists a collection and unmarshals each record payload.
func decodeAll[T any](ctx context.Context, st *store.Store, collection model.Collection) ([]T, error) {
	recs, err := st.ListRecords(ctx, collection)
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		var v T
		if err := json.Unmarshal(rec.Payload, &v); err != nil {
			return nil, fmt.Errorf("failed to decode record %s/%s: %w", collection, rec.ID, err)
		}
		out = append(out, v)
	}

	return out, nil
}
