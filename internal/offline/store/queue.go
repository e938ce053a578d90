package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/luisk202009/kuppel-dine-ease-sub002/internal/offline/model"
)

// Queue SQL for the sync_queue table. The queue manager in the queue package
// is the only intended caller; these methods carry the raw persistence
// guarantees (durable append, ordered listing, monotonic retry counter).

// AppendMutation durably inserts a pending mutation. The entry's ID must be
// unique; a duplicate insert is a storage failure, not a silent upsert,
// because the queue is append-only.
func (s *Store) AppendMutation(ctx context.Context, m model.PendingMutation) error {
	query := `
	INSERT INTO sync_queue (id, kind, payload, enqueued_at, retry_count)
	VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.conn.ExecContext(ctx, query,
		m.ID,
		string(m.Kind),
		string(m.Payload),
		m.EnqueuedAt.UTC().Format(time.RFC3339Nano),
		m.RetryCount,
	)
	if err != nil {
		return fmt.Errorf("%w: failed to append mutation %s: %v", ErrStorage, m.ID, err)
	}

	return nil
}

// ListMutations returns every queued mutation ordered by enqueue time
// (id as tiebreaker for entries enqueued in the same nanosecond).
func (s *Store) ListMutations(ctx context.Context) ([]model.PendingMutation, error) {
	query := `
	SELECT id, kind, payload, enqueued_at, retry_count
	FROM sync_queue
	ORDER BY enqueued_at ASC, id ASC
	`

	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list mutations: %v", ErrStorage, err)
	}
	defer rows.Close()

	var muts []model.PendingMutation
	for rows.Next() {
		var m model.PendingMutation
		var kind, payload, enqueuedAt string

		if err := rows.Scan(&m.ID, &kind, &payload, &enqueuedAt, &m.RetryCount); err != nil {
			return nil, fmt.Errorf("%w: failed to scan mutation: %v", ErrStorage, err)
		}

		m.Kind = model.Kind(kind)
		m.Payload = []byte(payload)
		t, err := time.Parse(time.RFC3339Nano, enqueuedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to parse enqueued_at for %s: %v", ErrStorage, m.ID, err)
		}
		m.EnqueuedAt = t

		muts = append(muts, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating mutations: %v", ErrStorage, err)
	}

	return muts, nil
}

// DeleteMutation permanently removes a queue entry. Returns ErrNotFound if
// no entry has that id, so a double-dequeue is visible to the caller.
func (s *Store) DeleteMutation(ctx context.Context, id string) error {
	res, err := s.conn.ExecContext(ctx, "DELETE FROM sync_queue WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("%w: failed to delete mutation %s: %v", ErrStorage, id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to read delete result for %s: %v", ErrStorage, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: mutation %s", ErrNotFound, id)
	}

	return nil
}

// IncrementRetry bumps retry_count by one and returns the new count.
// The counter only ever moves up; there is no reset path.
func (s *Store) IncrementRetry(ctx context.Context, id string) (int, error) {
	query := `
	UPDATE sync_queue SET retry_count = retry_count + 1
	WHERE id = ?
	RETURNING retry_count
	`

	var count int
	err := s.conn.QueryRowContext(ctx, query, id).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: mutation %s", ErrNotFound, id)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: failed to increment retry for %s: %v", ErrStorage, id, err)
	}

	return count, nil
}

// CountMutations returns the total number of queued mutations.
func (s *Store) CountMutations(ctx context.Context) (int, error) {
	var count int
	if err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM sync_queue").Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: failed to count mutations: %v", ErrStorage, err)
	}
	return count, nil
}

// CountExhausted returns the number of entries at or beyond the retry
// ceiling. These stay queued until manually resolved and are reported
// separately so they are never invisible.
func (s *Store) CountExhausted(ctx context.Context, ceiling int) (int, error) {
	var count int
	err := s.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sync_queue WHERE retry_count >= ?", ceiling).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to count exhausted mutations: %v", ErrStorage, err)
	}
	return count, nil
}
