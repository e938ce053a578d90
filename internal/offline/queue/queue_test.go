package queue

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/luisk202009/kuppel-dine-ease-sub002/internal/offline/model"
	"github.com/luisk202009/kuppel-dine-ease-sub002/internal/offline/store"
)

// setupTestQueue creates a Manager backed by a temporary store.
func setupTestQueue(t *testing.T) Manager {
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

	return New(st, nil)
}

func testOrder(orderID string) *model.OrderPayload {
	return &model.OrderPayload{
		OrderID: orderID,
		Items: []model.OrderItem{
			{ProductID: "p-1", Name: "Espresso", Quantity: 1, UnitPrice: 350},
		},
		Total:    350,
		PlacedAt: time.Now(),
	}
}

func TestEnqueueAssignsUniqueIDs(t *testing.T) {
	q := setupTestQueue(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		id, err := q.Enqueue(ctx, testOrder("o-1"))
		if err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate mutation id: %s", id)
		}
		seen[id] = true
	}

	count, err := q.PendingCount(ctx)
	if err != nil {
		t.Fatalf("PendingCount failed: %v", err)
	}
	if count != 20 {
		t.Errorf("expected 20 pending entries, got %d", count)
	}
}

func TestEnqueueStartsAtZeroRetries(t *testing.T) {
	q := setupTestQueue(t)
	ctx := context.Background()

	if _, err := q.Enqueue(ctx, testOrder("o-1")); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	pending, err := q.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(pending))
	}
	if pending[0].RetryCount != 0 {
		t.Errorf("fresh entry must start with retry count 0, got %d", pending[0].RetryCount)
	}
	if pending[0].Kind != model.KindCreateOrder {
		t.Errorf("unexpected kind: %s", pending[0].Kind)
	}
}

func TestEnqueueRejectsInvalidPayload(t *testing.T) {
	q := setupTestQueue(t)
	ctx := context.Background()

	// No items and no id.
	if _, err := q.Enqueue(ctx, &model.OrderPayload{}); err == nil {
		t.Error("expected validation error for empty order")
	}

	count, err := q.PendingCount(ctx)
	if err != nil {
		t.Fatalf("PendingCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("rejected payload must not be queued, got %d entries", count)
	}
}

func TestListPendingPreservesEnqueueOrder(t *testing.T) {
	q := setupTestQueue(t)
	ctx := context.Background()

	var ids []string
	payloads := []model.Payload{
		testOrder("o-1"),
		&model.CustomerPayload{CustomerID: "c-1", Name: "Ada"},
		&model.TableStatusPayload{TableID: "t-1", Status: "occupied"},
	}
	for _, p := range payloads {
		id, err := q.Enqueue(ctx, p)
		if err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
		ids = append(ids, id)
		time.Sleep(2 * time.Millisecond)
	}

	pending, err := q.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(pending) != len(ids) {
		t.Fatalf("expected %d entries, got %d", len(ids), len(pending))
	}
	for i, id := range ids {
		if pending[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, pending[i].ID)
		}
	}
}

func TestDequeueRemovesOnlyTarget(t *testing.T) {
	q := setupTestQueue(t)
	ctx := context.Background()

	id1, err := q.Enqueue(ctx, testOrder("o-1"))
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	id2, err := q.Enqueue(ctx, testOrder("o-2"))
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	if err := q.Dequeue(ctx, id1); err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}

	pending, err := q.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 entry after dequeue, got %d", len(pending))
	}
	if pending[0].ID != id2 {
		t.Errorf("wrong entry removed: remaining %s, want %s", pending[0].ID, id2)
	}
}

func TestMarkRetriedMonotonic(t *testing.T) {
	q := setupTestQueue(t)
	ctx := context.Background()

	target, err := q.Enqueue(ctx, testOrder("o-1"))
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	other, err := q.Enqueue(ctx, testOrder("o-2"))
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	for want := 1; want <= 4; want++ {
		got, err := q.MarkRetried(ctx, target)
		if err != nil {
			t.Fatalf("MarkRetried failed: %v", err)
		}
		if got != want {
			t.Errorf("expected retry count %d, got %d", want, got)
		}
	}

	// The sibling entry is untouched.
	pending, err := q.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	for _, mut := range pending {
		if mut.ID == other && mut.RetryCount != 0 {
			t.Errorf("untouched entry gained retries: %d", mut.RetryCount)
		}
		if mut.ID == target && mut.RetryCount != 4 {
			t.Errorf("target entry has retry count %d, want 4", mut.RetryCount)
		}
	}
}

func TestMarkRetriedKeepsEntryQueued(t *testing.T) {
	q := setupTestQueue(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, &model.ExpensePayload{
		ExpenseID: "e-1", Description: "napkins", Amount: 1500, IncurredAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	// Retrying far past any ceiling never removes the entry.
	for i := 0; i < 10; i++ {
		if _, err := q.MarkRetried(ctx, id); err != nil {
			t.Fatalf("MarkRetried failed: %v", err)
		}
	}

	count, err := q.PendingCount(ctx)
	if err != nil {
		t.Fatalf("PendingCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("entry must stay queued after failed retries, got %d", count)
	}
}
