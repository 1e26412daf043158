package cache

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/gridsync/internal/query"
	"github.com/mesh-intelligence/gridsync/pkg/types"
)

// Flusher applies a batch of coalesced updates in one store round trip.
// *store.Transaction satisfies it.
type Flusher interface {
	BulkUpdate(ctx context.Context, updates []types.RowUpdate) (int64, error)
}

// WriteQueue coalesces cell edits per row until they are flushed. Edits to
// the same row merge column-wise, with the newest value per column winning,
// so a row edited five times flushes as one update. Locking the queue
// suppresses flushes from intermediate code paths until the locker releases
// it with FlushUnlock.
type WriteQueue struct {
	mu     sync.Mutex
	log    zerolog.Logger
	locked bool
	order  []string
	items  map[string]*types.RowUpdate
}

// NewWriteQueue returns an empty queue.
func NewWriteQueue(log zerolog.Logger) *WriteQueue {
	return &WriteQueue{
		log:   log.With().Str("component", "writequeue").Logger(),
		items: map[string]*types.RowUpdate{},
	}
}

// Queue records one cell edit, merging it into any pending update for the
// same row.
func (q *WriteQueue) Queue(table string, keys map[string]any, col string, val any) {
	q.mu.Lock()
	defer q.mu.Unlock()

	key := rowKey(table, keys)
	item, ok := q.items[key]
	if !ok {
		item = &types.RowUpdate{Table: table, Keys: keys, Vals: map[string]any{}}
		q.items[key] = item
		q.order = append(q.order, key)
	}
	item.Vals[col] = val
}

// Discard drops any pending update for the given row.
func (q *WriteQueue) Discard(table string, keys map[string]any) {
	q.mu.Lock()
	defer q.mu.Unlock()

	key := rowKey(table, keys)
	if _, ok := q.items[key]; !ok {
		return
	}
	delete(q.items, key)
	for i, k := range q.order {
		if k == key {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
}

// Len is the number of pending row updates.
func (q *WriteQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Lock suppresses flushes until FlushUnlock. Use it around a burst of edits
// that must land in one batch.
func (q *WriteQueue) Lock() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.locked = true
}

// Locked reports whether flushes are currently suppressed.
func (q *WriteQueue) Locked() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.locked
}

// Flush drains the queue into one bulk store call. While the queue is
// locked, Flush does nothing and reports no error; the pending updates stay
// queued for the eventual FlushUnlock. On a store failure the drained
// updates are restored so nothing is lost.
func (q *WriteQueue) Flush(ctx context.Context, f Flusher) error {
	return q.flush(ctx, f, false)
}

// FlushUnlock releases the lock and flushes whatever accumulated under it.
func (q *WriteQueue) FlushUnlock(ctx context.Context, f Flusher) error {
	return q.flush(ctx, f, true)
}

func (q *WriteQueue) flush(ctx context.Context, f Flusher, unlock bool) error {
	q.mu.Lock()
	if q.locked && !unlock {
		q.mu.Unlock()
		return nil
	}
	if unlock {
		q.locked = false
	}
	if len(q.items) == 0 {
		q.mu.Unlock()
		return nil
	}

	drained := make([]types.RowUpdate, 0, len(q.order))
	for _, key := range q.order {
		drained = append(drained, *q.items[key])
	}
	savedOrder := q.order
	savedItems := q.items
	q.order = nil
	q.items = map[string]*types.RowUpdate{}
	q.mu.Unlock()

	n, err := f.BulkUpdate(ctx, drained)
	if err != nil {
		q.mu.Lock()
		// Re-queue behind anything added since the drain. A row key edited
		// during the flush keeps its newer per-column values, but every
		// drained column it did not touch is merged back in.
		for _, key := range savedOrder {
			cur, ok := q.items[key]
			if !ok {
				q.items[key] = savedItems[key]
				q.order = append(q.order, key)
				continue
			}
			for col, val := range savedItems[key].Vals {
				if _, edited := cur.Vals[col]; !edited {
					cur.Vals[col] = val
				}
			}
		}
		q.mu.Unlock()
		return fmt.Errorf("flushing %d pending updates: %w", len(drained), err)
	}

	q.log.Info().Int("queued", len(drained)).Int64("updated", n).Msg("flushed pending writes")
	return nil
}

// rowKey renders a stable identity for a row's natural key.
func rowKey(table string, keys map[string]any) string {
	cols := make([]string, 0, len(keys))
	for col := range keys {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	parts := make([]string, 0, len(cols)+1)
	parts = append(parts, table)
	for _, col := range cols {
		parts = append(parts, col+"="+query.Literal(keys[col]))
	}
	return strings.Join(parts, "|")
}
