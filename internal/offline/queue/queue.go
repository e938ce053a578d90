package queue

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

// manager implements the Manager interface.
type manager struct {
	store  *store.Store
	logger *log.Logger
}

// New creates a queue Manager backed by the given store.
//
// The store must be opened and have its schema initialized before being
// passed here. If logger is nil, a default logger writing to stderr is used.
func New(st *store.Store, logger *log.Logger) Manager {
	if logger == nil {
		logger = log.New(os.Stderr, "[queue] ", log.LstdFlags)
	}
	return &manager{
		store:  st,
		logger: logger,
	}
}

// Enqueue implements Manager.Enqueue.
func (m *manager) Enqueue(ctx context.Context, p model.Payload) (string, error) {
	kind := p.MutationKind()
	if !kind.Valid() {
		return "", fmt.Errorf("invalid mutation kind %q", kind)
	}

	if v, ok := p.(Validator); ok {
		if err := v.Validate(); err != nil {
			return "", fmt.Errorf("invalid %s payload: %w", kind, err)
		}
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s payload: %w", kind, err)
	}

	now := time.Now()
	mut := model.PendingMutation{
		ID:         model.NewMutationID(kind, now),
		Kind:       kind,
		Payload:    raw,
		EnqueuedAt: now,
		RetryCount: 0,
	}

	if err := m.store.AppendMutation(ctx, mut); err != nil {
		return "", fmt.Errorf("failed to enqueue %s: %w", kind, err)
	}

	m.logger.Printf("Enqueued mutation: %s", mut.ID)
	return mut.ID, nil
}

// ListPending implements Manager.ListPending.
func (m *manager) ListPending(ctx context.Context) ([]model.PendingMutation, error) {
	muts, err := m.store.ListMutations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending mutations: %w", err)
	}
	return muts, nil
}

// Dequeue implements Manager.Dequeue.
func (m *manager) Dequeue(ctx context.Context, id string) error {
	if err := m.store.DeleteMutation(ctx, id); err != nil {
		return fmt.Errorf("failed to dequeue %s: %w", id, err)
	}

	m.logger.Printf("Dequeued mutation: %s", id)
	return nil
}

// MarkRetried implements Manager.MarkRetried.
func (m *manager) MarkRetried(ctx context.Context, id string) (int, error) {
	count, err := m.store.IncrementRetry(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("failed to mark %s retried: %w", id, err)
	}

	m.logger.Printf("Mutation %s retry count now %d", id, count)
	return count, nil
}

// PendingCount implements Manager.PendingCount.
func (m *manager) PendingCount(ctx context.Context) (int, error) {
	count, err := m.store.CountMutations(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending mutations: %w", err)
	}
	return count, nil
}
