// Package model defines the data shapes shared by the offline subsystem:
// the pending-mutation tagged union that gets replayed against the backend,
// and the cached reference records served while offline.
package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the type of a pending mutation. Each kind maps to exactly
// one remote-apply operation on the backend.
type Kind string

const (
	KindCreateOrder       Kind = "create_order"
	KindCreateCustomer    Kind = "create_customer"
	KindCreateExpense     Kind = "create_expense"
	KindUpdateTableStatus Kind = "update_table_status"
)

// Valid reports whether k is a known mutation kind.
func (k Kind) Valid() bool {
	switch k {
	case KindCreateOrder, KindCreateCustomer, KindCreateExpense, KindUpdateTableStatus:
		return true
	}
	return false
}

// Payload is the sum type over mutation kinds. Every payload variant knows
// its own kind, which lets the synchronizer dispatch exhaustively instead of
// switching on loosely-typed maps.
type Payload interface {
	MutationKind() Kind
}

// OrderItem is a single line on an order.
type OrderItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"` // cents
}

// OrderPayload is the remote shape for creating an order.
type OrderPayload struct {
	OrderID    string      `json:"order_id"`
	TableID    string      `json:"table_id,omitempty"`
	CustomerID string      `json:"customer_id,omitempty"`
	Items      []OrderItem `json:"items"`
	Total      int64       `json:"total"` // cents
	PlacedAt   time.Time   `json:"placed_at"`
}

// MutationKind implements Payload.
func (OrderPayload) MutationKind() Kind { return KindCreateOrder }

// Validate checks the payload before it is queued.
func (p *OrderPayload) Validate() error {
	if p.OrderID == "" {
		return fmt.Errorf("order_id is required")
	}
	if len(p.Items) == 0 {
		return fmt.Errorf("order must have at least one item")
	}
	if p.Total < 0 {
		return fmt.Errorf("total must not be negative (got %d)", p.Total)
	}
	return nil
}

// CustomerPayload is the remote shape for registering a customer.
type CustomerPayload struct {
	CustomerID string `json:"customer_id"`
	Name       string `json:"name"`
	Phone      string `json:"phone,omitempty"`
	Email      string `json:"email,omitempty"`
}

// MutationKind implements Payload.
func (CustomerPayload) MutationKind() Kind { return KindCreateCustomer }

// Validate checks the payload before it is queued.
func (p *CustomerPayload) Validate() error {
	if p.CustomerID == "" {
		return fmt.Errorf("customer_id is required")
	}
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}

// ExpensePayload is the remote shape for registering an expense.
type ExpensePayload struct {
	ExpenseID   string    `json:"expense_id"`
	Description string    `json:"description"`
	Amount      int64     `json:"amount"` // cents
	Category    string    `json:"category,omitempty"`
	IncurredAt  time.Time `json:"incurred_at"`
}

// MutationKind implements Payload.
func (ExpensePayload) MutationKind() Kind { return KindCreateExpense }

// Validate checks the payload before it is queued.
func (p *ExpensePayload) Validate() error {
	if p.ExpenseID == "" {
		return fmt.Errorf("expense_id is required")
	}
	if p.Description == "" {
		return fmt.Errorf("description is required")
	}
	if p.Amount <= 0 {
		return fmt.Errorf("amount must be positive (got %d)", p.Amount)
	}
	return nil
}

// TableStatusPayload is the remote shape for changing a table's status.
type TableStatusPayload struct {
	TableID string `json:"table_id"`
	Status  string `json:"status"` // available, occupied, reserved, cleaning
}

// MutationKind implements Payload.
func (TableStatusPayload) MutationKind() Kind { return KindUpdateTableStatus }

// Validate checks the payload before it is queued.
func (p *TableStatusPayload) Validate() error {
	if p.TableID == "" {
		return fmt.Errorf("table_id is required")
	}
	if p.Status == "" {
		return fmt.Errorf("status is required")
	}
	return nil
}

// PendingMutation is a recorded intent to change remote state, queued for
// later replay. The payload is stored as the JSON the backend expects; it is
// decoded back into its typed variant at replay time.
//
// Entries are removed only after a confirmed remote commit. A failed replay
// increments RetryCount; an entry whose RetryCount reaches the configured
// ceiling is exhausted and requires manual intervention to clear.
type PendingMutation struct {
	ID         string          `json:"id"`
	Kind       Kind            `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	RetryCount int             `json:"retry_count"`
}

// DecodePayload unmarshals the stored payload into its typed variant.
// The switch is exhaustive over Kind; an unknown kind is an error, never
// a silent skip.
func (m *PendingMutation) DecodePayload() (Payload, error) {
	switch m.Kind {
	case KindCreateOrder:
		var p OrderPayload
		if err := json.Unmarshal(m.Payload, &p); err != nil {
			return nil, fmt.Errorf("failed to decode order payload for %s: %w", m.ID, err)
		}
		return &p, nil
	case KindCreateCustomer:
		var p CustomerPayload
		if err := json.Unmarshal(m.Payload, &p); err != nil {
			return nil, fmt.Errorf("failed to decode customer payload for %s: %w", m.ID, err)
		}
		return &p, nil
	case KindCreateExpense:
		var p ExpensePayload
		if err := json.Unmarshal(m.Payload, &p); err != nil {
			return nil, fmt.Errorf("failed to decode expense payload for %s: %w", m.ID, err)
		}
		return &p, nil
	case KindUpdateTableStatus:
		var p TableStatusPayload
		if err := json.Unmarshal(m.Payload, &p); err != nil {
			return nil, fmt.Errorf("failed to decode table status payload for %s: %w", m.ID, err)
		}
		return &p, nil
	default:
		return nil, fmt.Errorf("unknown mutation kind %q for %s", m.Kind, m.ID)
	}
}

// NewMutationID generates a globally unique mutation ID.
//
// The ID combines the kind, the enqueue timestamp, and a random UUID suffix
// so that rapid concurrent enqueues never collide. The same ID doubles as the
// idempotency key sent to the backend on replay.
func NewMutationID(kind Kind, at time.Time) string {
	suffix := uuid.NewString()[:8]
	return fmt.Sprintf("%s-%d-%s", kind, at.UnixNano(), suffix)
}
