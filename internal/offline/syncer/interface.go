// Package syncer drains the pending-mutation queue against the remote
// system of record once connectivity is available.
package syncer

import (
	"context"

	"github.com/luisk202009/kuppel-dine-ease-sub002/internal/offline/model"
)

// RemoteApplier is the set of remote-apply operations, one per mutation
// kind. Payloads are passed through unmodified, matching the backend's
// expected shape. The mutation id is supplied alongside each payload so the
// transport can attach it as an idempotency key: replaying a mutation whose
// prior attempt succeeded but whose acknowledgment was lost would otherwise
// duplicate the remote effect.
//
// Each call is a network operation returning success or failure; timeouts
// are whatever the transport enforces.
type RemoteApplier interface {
	CreateOrder(ctx context.Context, mutationID string, p *model.OrderPayload) error
	CreateCustomer(ctx context.Context, mutationID string, p *model.CustomerPayload) error
	CreateExpense(ctx context.Context, mutationID string, p *model.ExpensePayload) error
	UpdateTableStatus(ctx context.Context, mutationID string, p *model.TableStatusPayload) error
}

// Summary is the aggregate result of one drain pass.
type Summary struct {
	// Synced is the number of mutations confirmed and dequeued this pass.
	Synced int `json:"synced"`
	// Failed is the number of mutations attempted and failed this pass.
	// Failed entries stay queued with an incremented retry count.
	Failed int `json:"failed"`
}

// Syncer replays queued mutations against the backend.
//
// A pass snapshots the queue, dispatches each entry to the matching
// remote-apply operation in enqueue order, dequeues on success, and bumps
// the retry count on failure. Entries are replayed independently; there is
// no cross-entry transaction, so a pass may partially succeed by design.
//
// Entries whose retry count has reached the ceiling are exhausted: they are
// skipped by later passes and left queued until manually resolved. They are
// never silently dropped.
type Syncer interface {
	// Sync runs one drain pass. If a pass is already in flight the call
	// returns ErrSyncInProgress without starting a second pass; the
	// in-flight guard is in-memory only.
	Sync(ctx context.Context) (Summary, error)

	// InFlight reports whether a pass is currently running.
	InFlight() bool
}
