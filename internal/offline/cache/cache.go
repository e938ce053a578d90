// Package cache provides the cache populator: it snapshots server-fetched
// reference data (products, customers, tables) into the local durable store
// so read paths keep working offline.
//
// Each populate call performs a bulk upsert by id in one transaction; last
// writer wins. There is no versioning or conflict resolution because the
// server is the sole writer of this data, and no TTL: cached data may be
// served indefinitely while offline.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/luisk202009/kuppel-dine-ease-sub002/internal/offline/model"
	"github.com/luisk202009/kuppel-dine-ease-sub002/internal/offline/store"
)

// Populator snapshots reference data into the local store.
type Populator struct {
	store  *store.Store
	logger *log.Logger
	now    func() time.Time
}

// New creates a Populator. If logger is nil, a default stderr logger is used.
func New(st *store.Store, logger *log.Logger) *Populator {
	if logger == nil {
		logger = log.New(os.Stderr, "[cache] ", log.LstdFlags)
	}
	return &Populator{
		store:  st,
		logger: logger,
		now:    time.Now,
	}
}

// CacheProducts bulk-upserts the product catalog.
func (p *Populator) CacheProducts(ctx context.Context, products []model.Product) error {
	recs := make([]model.CachedRecord, 0, len(products))
	at := p.now()
	for _, prod := range products {
		rec, err := envelope(prod.ID, prod, at)
		if err != nil {
			return fmt.Errorf("failed to encode product %s: %w", prod.ID, err)
		}
		recs = append(recs, rec)
	}

	if err := p.store.PutRecords(ctx, model.CollectionProducts, recs); err != nil {
		return fmt.Errorf("failed to cache products: %w", err)
	}

	p.logger.Printf("Cached %d products", len(recs))
	return nil
}

// CacheCustomers bulk-upserts the customer list.
func (p *Populator) CacheCustomers(ctx context.Context, customers []model.Customer) error {
	recs := make([]model.CachedRecord, 0, len(customers))
	at := p.now()
	for _, c := range customers {
		rec, err := envelope(c.ID, c, at)
		if err != nil {
			return fmt.Errorf("failed to encode customer %s: %w", c.ID, err)
		}
		recs = append(recs, rec)
	}

	if err := p.store.PutRecords(ctx, model.CollectionCustomers, recs); err != nil {
		return fmt.Errorf("failed to cache customers: %w", err)
	}

	p.logger.Printf("Cached %d customers", len(recs))
	return nil
}

// CacheTables bulk-upserts the table list.
func (p *Populator) CacheTables(ctx context.Context, tables []model.Table) error {
	recs := make([]model.CachedRecord, 0, len(tables))
	at := p.now()
	for _, t := range tables {
		rec, err := envelope(t.ID, t, at)
		if err != nil {
			return fmt.Errorf("failed to encode table %s: %w", t.ID, err)
		}
		recs = append(recs, rec)
	}

	if err := p.store.PutRecords(ctx, model.CollectionTables, recs); err != nil {
		return fmt.Errorf("failed to cache tables: %w", err)
	}

	p.logger.Printf("Cached %d tables", len(recs))
	return nil
}

// Clear removes all cached reference data. Write-through order snapshots and
// the pending queue are left alone; a cache clear must never lose queued work.
func (p *Populator) Clear(ctx context.Context) error {
	if err := p.store.ClearCollections(ctx, model.ReferenceCollections()...); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	p.logger.Printf("Cleared reference cache")
	return nil
}

// envelope wraps a domain value in the stored record shape.
func envelope(id string, v any, at time.Time) (model.CachedRecord, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return model.CachedRecord{}, err
	}
	return model.CachedRecord{ID: id, Payload: raw, CachedAt: at}, nil
}
