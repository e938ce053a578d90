package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync/atomic"

	"github.com/luisk202009/kuppel-dine-ease-sub002/internal/offline/model"
	"github.com/luisk202009/kuppel-dine-ease-sub002/internal/offline/queue"
)

// DefaultRetryCeiling is the maximum number of failed replays before an
// entry is considered exhausted.
const DefaultRetryCeiling = 3

// ErrSyncInProgress is returned when a drain pass is already running.
var ErrSyncInProgress = errors.New("sync pass already in progress")

// syncer implements the Syncer interface.
type syncer struct {
	queue   queue.Manager
	remote  RemoteApplier
	ceiling int
	logger  *log.Logger

	inFlight atomic.Bool
}

// New creates a Syncer. If ceiling is <= 0, DefaultRetryCeiling is used.
// If logger is nil, a default logger writing to stderr is used.
func New(q queue.Manager, remote RemoteApplier, ceiling int, logger *log.Logger) Syncer {
	if ceiling <= 0 {
		ceiling = DefaultRetryCeiling
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &syncer{
		queue:   q,
		remote:  remote,
		ceiling: ceiling,
		logger:  logger,
	}
}

// Sync implements Syncer.Sync.
func (s *syncer) Sync(ctx context.Context) (Summary, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return Summary{}, ErrSyncInProgress
	}
	defer s.inFlight.Store(false)

	pending, err := s.queue.ListPending(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to snapshot queue: %w", err)
	}

	var summary Summary
	skipped := 0

	for _, mut := range pending {
		// Exhausted entries stay queued but are excluded from the pass.
		if mut.RetryCount >= s.ceiling {
			skipped++
			continue
		}

		if err := s.apply(ctx, mut); err != nil {
			summary.Failed++
			count, markErr := s.queue.MarkRetried(ctx, mut.ID)
			if markErr != nil {
				s.logger.Printf("Error recording retry for %s: %v", mut.ID, markErr)
				continue
			}
			if count >= s.ceiling {
				s.logger.Printf("Mutation %s exhausted after %d attempts: %v", mut.ID, count, err)
			} else {
				s.logger.Printf("Mutation %s failed (attempt %d): %v", mut.ID, count, err)
			}
			continue
		}

		if err := s.queue.Dequeue(ctx, mut.ID); err != nil {
			// The remote commit is confirmed but the local entry remains;
			// the next pass will replay it under the same idempotency key.
			s.logger.Printf("Error dequeuing %s after remote commit: %v", mut.ID, err)
			summary.Failed++
			continue
		}
		summary.Synced++
	}

	s.logger.Printf("Sync pass complete: synced=%d failed=%d skipped=%d",
		summary.Synced, summary.Failed, skipped)

	return summary, nil
}

// InFlight implements Syncer.InFlight.
func (s *syncer) InFlight() bool {
	return s.inFlight.Load()
}

// apply dispatches one mutation to the matching remote operation. The switch
// is exhaustive over the payload variants; a payload that fails to decode is
// treated as a failed replay so it follows the normal retry-then-exhaust path
// instead of being dropped.
func (s *syncer) apply(ctx context.Context, mut model.PendingMutation) error {
	payload, err := mut.DecodePayload()
	if err != nil {
		return err
	}

	switch p := payload.(type) {
	case *model.OrderPayload:
		return s.remote.CreateOrder(ctx, mut.ID, p)
	case *model.CustomerPayload:
		return s.remote.CreateCustomer(ctx, mut.ID, p)
	case *model.ExpensePayload:
		return s.remote.CreateExpense(ctx, mut.ID, p)
	case *model.TableStatusPayload:
		return s.remote.UpdateTableStatus(ctx, mut.ID, p)
	default:
		return fmt.Errorf("no remote operation for payload type %T", payload)
	}
}
