// Package queue provides the pending-mutation queue manager built on the
// local durable store.
package queue

import (
	"context"

	"github.com/luisk202009/kuppel-dine-ease-sub002/internal/offline/model"
)

// Manager is the append-only record of pending mutations.
//
// Mutations are created at the moment a domain action occurs, regardless of
// current connectivity, so the enqueue code path is the same online and
// offline. An entry is removed only after a confirmed remote commit; it is
// never removed on failure.
type Manager interface {
	// Enqueue records a mutation with a fresh unique id and retry count 0.
	//
	// The payload is validated and serialized to the JSON shape the backend
	// expects. A storage failure here is fatal to the initiating domain
	// action and must be surfaced, not swallowed.
	//
	// Returns the generated mutation id.
	Enqueue(ctx context.Context, p model.Payload) (string, error)

	// ListPending returns all not-yet-dequeued entries ordered by enqueue
	// time. Enqueue order approximates causal order across mutation types
	// but cross-type dependency ordering is not enforced.
	ListPending(ctx context.Context) ([]model.PendingMutation, error)

	// Dequeue permanently removes an entry. Call only after the backend
	// has confirmed the corresponding remote commit.
	Dequeue(ctx context.Context, id string) error

	// MarkRetried increments the entry's retry count after a failed replay
	// and returns the new count so the caller can compare it against the
	// retry ceiling. The count is monotonically non-decreasing.
	MarkRetried(ctx context.Context, id string) (int, error)

	// PendingCount returns the current queue depth.
	PendingCount(ctx context.Context) (int, error)
}

// Validator is implemented by payloads that can check themselves before
// being queued. All shipped payload types implement it.
type Validator interface {
	Validate() error
}
