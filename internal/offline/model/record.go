package model

import (
	"encoding/json"
	"time"
)

// Collection names the record collections held by the local durable store.
// Reference collections (products, customers, tables) are snapshots of
// server-fetched data; orders holds write-through copies of locally created
// orders for immediate offline reads.
type Collection string

const (
	CollectionOrders    Collection = "orders"
	CollectionProducts  Collection = "products"
	CollectionCustomers Collection = "customers"
	CollectionTables    Collection = "tables"
)

// ReferenceCollections lists the collections owned by the cache populator.
// These are the only collections cleared by a full cache clear; the pending
// queue and order snapshots are never cleared implicitly.
func ReferenceCollections() []Collection {
	return []Collection{CollectionProducts, CollectionCustomers, CollectionTables}
}

// CachedRecord is the envelope stored in the local durable store. The server
// is the sole writer of truth for reference data, so there is no versioning
// or conflict detection; records are overwritten wholesale on each fetch.
type CachedRecord struct {
	ID       string          `json:"id"`
	Payload  json.RawMessage `json:"payload"`
	CachedAt time.Time       `json:"cached_at"`
}

// Product is a catalog item cached for offline menus.
type Product struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"` // cents
	Category string `json:"category,omitempty"`
}

// Customer is a registered customer cached for offline lookups.
type Customer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// Table is a dining table cached for the offline floor view.
type Table struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Seats  int    `json:"seats"`
	Status string `json:"status"`
}

// StorageStats is the aggregate counts surface consumed by the status
// reporter: per-collection record counts plus the pending queue depth.
type StorageStats struct {
	Orders      int `json:"orders"`
	Products    int `json:"products"`
	Customers   int `json:"customers"`
	Tables      int `json:"tables"`
	PendingSync int `json:"pending_sync"`
	Exhausted   int `json:"exhausted"`
}
