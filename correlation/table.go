package correlation

import (
	"context"
	"sync"

	"github.com/JailtonJunior94/fabric/envelope"
)

// entry is one row of the pending-request table: a one-shot completion
// channel plus an optional progress sink. resolve and cancel both route
// through once so a completion is satisfied exactly one time no matter
// how many of {final reply, timeout, dispose} race to finish it first.
type entry struct {
	done     chan *envelope.Envelope
	progress ProgressSink
	once     sync.Once
}

func newEntry(progress ProgressSink) *entry {
	return &entry{
		done:     make(chan *envelope.Envelope, 1),
		progress: progress,
	}
}

// resolve delivers the final reply exactly once; later calls are no-ops.
func (e *entry) resolve(env *envelope.Envelope) {
	e.once.Do(func() {
		e.done <- env
		close(e.done)
	})
}

// cancel unblocks a waiter with no envelope, exactly once.
func (e *entry) cancel() {
	e.once.Do(func() {
		close(e.done)
	})
}

// table is the concurrent map described in spec.md §5: atomic
// insert-then-remove, keyed by correlation id.
type table struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func newTable() *table {
	return &table{entries: make(map[string]*entry)}
}

func (t *table) insert(correlationID string, progress ProgressSink) *entry {
	e := newEntry(progress)
	t.mu.Lock()
	t.entries[correlationID] = e
	t.mu.Unlock()
	return e
}

func (t *table) lookup(correlationID string) (*entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[correlationID]
	return e, ok
}

func (t *table) remove(correlationID string) {
	t.mu.Lock()
	delete(t.entries, correlationID)
	t.mu.Unlock()
}

// removeAndResolve atomically removes correlationID and resolves its
// completion, the "at-most-one resolution" primitive spec.md §4.5
// requires for final replies.
func (t *table) removeAndResolve(correlationID string, env *envelope.Envelope) bool {
	t.mu.Lock()
	e, ok := t.entries[correlationID]
	if ok {
		delete(t.entries, correlationID)
	}
	t.mu.Unlock()
	if !ok {
		return false
	}
	e.resolve(env)
	return true
}

// forwardProgress hands env to the entry's progress sink without
// removing it, leaving the request pending for a subsequent final
// reply.
func (t *table) forwardProgress(ctx context.Context, correlationID string, env *envelope.Envelope) bool {
	t.mu.Lock()
	e, ok := t.entries[correlationID]
	t.mu.Unlock()
	if !ok {
		return false
	}
	if e.progress != nil {
		e.progress(ctx, env)
	}
	return true
}

// cancelAll cancels every still-pending entry, used on proxy Dispose so
// callers observe cancellation rather than hanging forever.
func (t *table) cancelAll() {
	t.mu.Lock()
	entries := make([]*entry, 0, len(t.entries))
	for k, e := range t.entries {
		entries = append(entries, e)
		delete(t.entries, k)
	}
	t.mu.Unlock()

	for _, e := range entries {
		e.cancel()
	}
}
