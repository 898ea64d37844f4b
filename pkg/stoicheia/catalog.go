// Package stoicheia is the public entry point to the engine: a Catalog
// wraps a storage.Connection and exposes the operations a foreign-language
// binding would wrap 1:1 (spec.md §6's "language binding" interface).
// Grounded on the teacher's pkg/vcs.Repository facade, which wraps its own
// object store/ref manager behind a small exported method set the same way.
package stoicheia

import (
	"context"

	"github.com/fenilsonani/stoicheia/internal/axis"
	"github.com/fenilsonani/stoicheia/internal/compactor"
	"github.com/fenilsonani/stoicheia/internal/fetch"
	"github.com/fenilsonani/stoicheia/internal/patch"
	"github.com/fenilsonani/stoicheia/internal/selection"
	"github.com/fenilsonani/stoicheia/internal/stoierr"
	"github.com/fenilsonani/stoicheia/internal/storage"
	"github.com/fenilsonani/stoicheia/internal/storage/memory"
	"github.com/fenilsonani/stoicheia/internal/storage/sqlite"
	"github.com/fenilsonani/stoicheia/internal/txn"
)

// Catalog is a handle on a Stoicheia database: a collection of named
// quilts, each with its own commit/tag history.
type Catalog struct {
	conn storage.Connection
}

// Open opens (creating if necessary) a durable, SQLite-backed catalog at
// path.
func Open(path string) (*Catalog, error) {
	conn, err := sqlite.Open(path)
	if err != nil {
		return nil, err
	}
	return &Catalog{conn: conn}, nil
}

// OpenMemory returns a disposable, in-process catalog with no durability,
// matching original_source/src/catalog.rs's MemoryCatalog and useful for
// tests or the CLI's --memory flag.
func OpenMemory() *Catalog {
	return &Catalog{conn: memory.New()}
}

// Close releases the catalog's underlying connection.
func (c *Catalog) Close() error {
	return c.conn.Close()
}

// QuiltDetails is a quilt's name and fixed axis order.
type QuiltDetails = storage.QuiltDetails

// Selection is the tagged union describing what part of an axis a caller
// wants from Fetch; see internal/selection for the variant constructors.
type Selection = selection.Selection

// CreateQuilt registers a new quilt with the given axis order. Axes that
// don't exist yet are created lazily, empty.
func (c *Catalog) CreateQuilt(ctx context.Context, name string, axisNames []string) (QuiltDetails, error) {
	t, err := txn.Begin(ctx, c.conn)
	if err != nil {
		return QuiltDetails{}, err
	}
	q, err := t.Store().CreateQuilt(name, axisNames)
	if err != nil {
		t.Rollback()
		return QuiltDetails{}, err
	}
	if err := t.Finish(); err != nil {
		return QuiltDetails{}, err
	}
	return q, nil
}

// ListQuilts returns every registered quilt's details.
func (c *Catalog) ListQuilts(ctx context.Context) ([]QuiltDetails, error) {
	t, err := txn.Begin(ctx, c.conn)
	if err != nil {
		return nil, err
	}
	defer t.Rollback()
	return t.Store().ListQuilts()
}

// GetQuilt returns one quilt's details.
func (c *Catalog) GetQuilt(ctx context.Context, name string) (QuiltDetails, error) {
	t, err := txn.Begin(ctx, c.conn)
	if err != nil {
		return QuiltDetails{}, err
	}
	defer t.Rollback()
	return t.Store().GetQuilt(name)
}

// ReadAxis returns the current global label vector for name.
func (c *Catalog) ReadAxis(ctx context.Context, name string) (axis.Axis, error) {
	t, err := txn.Begin(ctx, c.conn)
	if err != nil {
		return axis.Axis{}, err
	}
	defer t.Rollback()
	return t.ReadAxisCached(name)
}

// UnionAxis appends any of newLabels not already present on name,
// persisting the change in its own transaction.
func (c *Catalog) UnionAxis(ctx context.Context, name string, newLabels []axis.Label) (axis.Axis, error) {
	t, err := txn.Begin(ctx, c.conn)
	if err != nil {
		return axis.Axis{}, err
	}
	a, _, err := t.UnionAxis(name, newLabels)
	if err != nil {
		t.Rollback()
		return axis.Axis{}, err
	}
	if err := t.Finish(); err != nil {
		return axis.Axis{}, err
	}
	return a, nil
}

// Fetch assembles the requested slice of quiltName as observed at
// tagName. A nil or missing per-axis selection defaults to All.
func (c *Catalog) Fetch(ctx context.Context, quiltName, tagName string, selections map[string]Selection) (*patch.Patch, error) {
	t, err := txn.Begin(ctx, c.conn)
	if err != nil {
		return nil, err
	}
	defer t.Rollback()
	return fetch.Fetch(ctx, t, fetch.Request{QuiltName: quiltName, TagName: tagName, Selections: selections})
}

// Commit writes patches against quiltName's parentTag, advancing newTag
// to the resulting commit. If parentTag and newTag differ, parentTag is
// left untouched — newTag is created or moved to point at the new commit,
// whose parent is the commit parentTag points to. If parentTag does not
// exist, the parent is whatever commit newTag currently points to (or none).
func (c *Catalog) Commit(ctx context.Context, quiltName, parentTag, newTag, message string, patches []*patch.Patch) (int64, error) {
	t, err := txn.Begin(ctx, c.conn)
	if err != nil {
		return 0, err
	}
	if parentTag != newTag {
		if commID, ok, err := t.Store().GetTag(quiltName, parentTag); err == nil && ok {
			if err := t.Store().SetTag(quiltName, newTag, commID); err != nil {
				t.Rollback()
				return 0, err
			}
		} else if err != nil {
			t.Rollback()
			return 0, err
		}
	}
	commID, err := compactor.Commit(ctx, t, quiltName, newTag, message, patches)
	if err != nil {
		t.Rollback()
		return 0, err
	}
	if err := t.Finish(); err != nil {
		return 0, err
	}
	return commID, nil
}

// ApplyPatch is Commit sugar for the common single-patch case
// (original_source/src/quilt.rs's Quilt::apply).
func (c *Catalog) ApplyPatch(ctx context.Context, quiltName, tagName, message string, p *patch.Patch) (int64, error) {
	return c.Commit(ctx, quiltName, tagName, tagName, message, []*patch.Patch{p})
}

// Tag points newTag at whatever commit sourceTag currently points to.
func (c *Catalog) Tag(ctx context.Context, quiltName, sourceTag, newTag string) error {
	t, err := txn.Begin(ctx, c.conn)
	if err != nil {
		return err
	}
	commID, ok, err := t.Store().GetTag(quiltName, sourceTag)
	if err != nil {
		t.Rollback()
		return err
	}
	if !ok {
		t.Rollback()
		return stoierr.Newf(stoierr.NotFound, "tag %q not found on quilt %q", sourceTag, quiltName)
	}
	if err := t.Store().SetTag(quiltName, newTag, commID); err != nil {
		t.Rollback()
		return err
	}
	return t.Finish()
}

// Untag removes tagName's pointer. No reachability sweep of orphaned
// commits/patches is performed — garbage collection is out of scope, per
// spec.md §9.
func (c *Catalog) Untag(ctx context.Context, quiltName, tagName string) error {
	t, err := txn.Begin(ctx, c.conn)
	if err != nil {
		return err
	}
	if err := t.Store().DeleteTag(quiltName, tagName); err != nil {
		t.Rollback()
		return err
	}
	return t.Finish()
}
