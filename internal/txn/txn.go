// Package txn implements the single-writer transaction boundary over a
// storage.Connection: writer-lock acquisition with bounded exponential
// backoff, a never-reorders axis cache, and diagnostic counters.
// Grounded on original_source/src/sqlite.rs's txn()/Counter plumbing.
package txn

import (
	"context"
	"time"

	"github.com/fenilsonani/stoicheia/internal/axis"
	"github.com/fenilsonani/stoicheia/internal/stoierr"
	"github.com/fenilsonani/stoicheia/internal/storage"
)

// Counter names the diagnostic counters a Txn accumulates, reproduced
// from original_source/src/lib.rs's Counter enum (spec.md §9 supplement).
type Counter int

const (
	ReadAxis Counter = iota
	ReadPatch
	WritePatch
	SearchPatches
	ReadBytes
	WriteBytes

	counterCount
)

func (c Counter) String() string {
	switch c {
	case ReadAxis:
		return "ReadAxis"
	case ReadPatch:
		return "ReadPatch"
	case WritePatch:
		return "WritePatch"
	case SearchPatches:
		return "SearchPatches"
	case ReadBytes:
		return "ReadBytes"
	case WriteBytes:
		return "WriteBytes"
	default:
		return "Unknown"
	}
}

// backoffAttempts and the 1<<i millisecond schedule match spec.md §4.8 /
// §5: ten attempts, ≈1023ms total, before a RuntimeError.
const backoffAttempts = 10

// Txn is a single critical section against a catalog: one writer
// transaction, an axis cache that only ever grows by Union, and a
// counters map for diagnostics.
type Txn struct {
	conn  storage.Connection
	store storage.Transaction

	axisCache map[string]axis.Axis
	counters  [counterCount]int64

	state state
}

type state int

const (
	open state = iota
	committed
	rolledBack
)

// Begin acquires the writer lock against conn with bounded exponential
// backoff, matching the teacher's own retry-with-backoff style
// (internal/core/refs's lock-file acquisition) generalized to the
// storage layer's own Begin.
func Begin(ctx context.Context, conn storage.Connection) (*Txn, error) {
	var lastErr error
	for i := 0; i < backoffAttempts; i++ {
		store, err := conn.Begin(ctx)
		if err == nil {
			return &Txn{conn: conn, store: store, axisCache: make(map[string]axis.Axis), state: open}, nil
		}
		lastErr = err
		if !stoierr.Is(err, stoierr.RuntimeError) {
			return nil, err
		}
		select {
		case <-time.After(time.Duration(1<<uint(i)) * time.Millisecond):
		case <-ctx.Done():
			return nil, stoierr.Wrap(stoierr.RuntimeError, "context cancelled while acquiring writer lock", ctx.Err())
		}
	}
	return nil, stoierr.Wrap(stoierr.RuntimeError, "writer lock acquisition exhausted its backoff budget", lastErr)
}

func (t *Txn) checkOpen() error {
	if t.state != open {
		return stoierr.New(stoierr.RuntimeError, "transaction is not open")
	}
	return nil
}

// ReadAxisCached serves from the cache, falling through to storage on
// miss and populating the cache — never reordering a cached axis.
func (t *Txn) ReadAxisCached(name string) (axis.Axis, error) {
	if err := t.checkOpen(); err != nil {
		return axis.Axis{}, err
	}
	if a, ok := t.axisCache[name]; ok {
		return a, nil
	}
	t.counters[ReadAxis]++
	a, err := t.store.ReadAxis(name)
	if err != nil {
		return axis.Axis{}, err
	}
	t.axisCache[name] = a
	return a, nil
}

// UnionAxis appends newLabels to the cached+persisted axis, returning
// whether anything was actually new. It never reorders existing labels.
func (t *Txn) UnionAxis(name string, newLabels []axis.Label) (axis.Axis, bool, error) {
	if err := t.checkOpen(); err != nil {
		return axis.Axis{}, false, err
	}
	current, err := t.ReadAxisCached(name)
	if err != nil {
		return axis.Axis{}, false, err
	}
	other := axis.NewUnchecked(name, newLabels)
	mutated := current.Union(other)
	t.axisCache[name] = current
	if mutated {
		if err := t.store.WriteAxis(current); err != nil {
			return axis.Axis{}, false, err
		}
	}
	return current, mutated, nil
}

// Store exposes the underlying storage.Transaction for packages (fetch,
// compactor) that need the full repertoire of storage operations; counters
// for the operations they perform are their responsibility to bump via
// Count.
func (t *Txn) Store() storage.Transaction {
	return t.store
}

// Count increments a diagnostic counter by delta.
func (t *Txn) Count(c Counter, delta int64) {
	t.counters[c] += delta
}

// Counters returns a snapshot of every counter, keyed by name.
func (t *Txn) Counters() map[string]int64 {
	out := make(map[string]int64, counterCount)
	for c := Counter(0); c < counterCount; c++ {
		out[c.String()] = t.counters[c]
	}
	return out
}

// Finish commits the transaction durably.
func (t *Txn) Finish() error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	if err := t.store.Commit(); err != nil {
		return err
	}
	t.state = committed
	return nil
}

// Rollback discards all changes made within the transaction.
func (t *Txn) Rollback() error {
	if t.state != open {
		return nil
	}
	t.state = rolledBack
	return t.store.Rollback()
}
