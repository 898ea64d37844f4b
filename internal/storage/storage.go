// Package storage defines the catalog's persistence contract: quilts,
// axes, the commit/tag graph, and the bounding-box patch index, behind a
// connection/transaction pair so either a durable (SQLite) or disposable
// (in-memory) substrate can back it.
package storage

import (
	"context"

	"github.com/fenilsonani/stoicheia/internal/axis"
	"github.com/fenilsonani/stoicheia/internal/patch"
)

// QuiltDetails is a quilt's immutable identity: its name and the fixed
// order of axis names that defines bounding-box dimension numbering.
type QuiltDetails struct {
	Name      string
	AxisNames []string
}

// Comm is one immutable commit: an optional parent, the quilt it belongs
// to, and a free-text message. Patches are referenced, not embedded.
type Comm struct {
	CommID       int64
	ParentCommID int64 // 0 means "no parent"
	HasParent    bool
	QuiltName    string
	Message      string
}

// PatchRef is a bounding-box index entry: what a stored patch occupies in
// global storage-index space, plus enough metadata to choose compaction
// friends without reading the blob.
type PatchRef struct {
	PatchID          int64
	CommID           int64
	DecompressedSize int
	Box              patch.BoundingBox
}

// DefaultTag is the tag name a quilt reads from when none is given.
const DefaultTag = "latest"

// BoxCollapseLimit is the cross-product size past which QueryPatchRefs
// substitutes a single all-ranges box, per spec.md §4.5.
const BoxCollapseLimit = 1000

// Connection is a handle on a durable or in-memory substrate. Only one
// write Transaction may be open against a Connection at a time.
type Connection interface {
	// Begin acquires the writer lock and starts a transaction. internal/txn
	// retries Begin with its own backoff while it fails with RuntimeError;
	// the SQLite adapter additionally retries internally, and stops
	// waiting when ctx is cancelled.
	Begin(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction is the single-writer critical section over a Connection.
// All methods may return *stoierr.Error with Kind StorageError or
// NotFound. Commit/Rollback each leave the Transaction unusable.
type Transaction interface {
	CreateQuilt(name string, axisNames []string) (QuiltDetails, error)
	GetQuilt(name string) (QuiltDetails, error)
	ListQuilts() ([]QuiltDetails, error)

	ReadAxis(name string) (axis.Axis, error)
	// WriteAxis persists the full, current label set of an axis. Callers
	// (the axis cache in internal/txn) are responsible for only ever
	// appending, never reordering or truncating.
	WriteAxis(a axis.Axis) error

	PutPatch(ref PatchRef, content []byte) error
	ReadPatchContent(patchID int64) ([]byte, error)
	DeletePatch(patchID int64) error

	PutComm(c Comm) error
	SetTag(quiltName, tagName string, commID int64) error
	GetTag(quiltName, tagName string) (int64, bool, error)
	DeleteTag(quiltName, tagName string) error

	// Ancestors returns the transitive closure of commID following
	// ParentCommID edges, commID included.
	Ancestors(commID int64) ([]int64, error)

	// QueryPatchRefs returns PatchRefs whose box intersects at least one
	// of boxes, restricted to commitIDs, deduplicated and ordered by
	// (CommID ASC, PatchID ASC).
	QueryPatchRefs(quiltName string, commitIDs []int64, boxes []patch.BoundingBox) ([]PatchRef, error)

	// NextCommID returns a fresh, strictly-increasing-within-this-writer
	// id; callers use it for both comm_id and patch_id. The SQLite adapter
	// derives it from clock nanoseconds plus a small random perturbation;
	// the in-memory adapter uses a plain counter starting at 1.
	NextCommID() int64

	Commit() error
	Rollback() error
}

// CollapseBoxes applies the §4.5 safety cap: past BoxCollapseLimit boxes,
// substitute a single box covering the full open range on every
// dimension, trading precision for bounded query fan-out.
func CollapseBoxes(boxes []patch.BoundingBox) []patch.BoundingBox {
	if len(boxes) <= BoxCollapseLimit {
		return boxes
	}
	return []patch.BoundingBox{AllRangesBox()}
}

// AllRangesBox is the fully-open box, matching a patch's default
// bounding box for axes it doesn't declare.
func AllRangesBox() patch.BoundingBox {
	var b patch.BoundingBox
	for i := range b {
		b[i] = patch.Segment{Min: 0, Max: 1<<30}
	}
	return b
}

// BoxesIntersect reports whether a and b overlap on every dimension,
// inclusive on both endpoints.
func BoxesIntersect(a, b patch.BoundingBox) bool {
	for i := range a {
		if a[i].Max < b[i].Min || b[i].Max < a[i].Min {
			return false
		}
	}
	return true
}
