// Package memory implements a disposable, in-process storage.Connection
// backed by plain maps under a mutex — grounded on
// original_source/src/catalog.rs's MemoryCatalog and the teacher's
// internal/core/objects.Storage in-process object cache. Used by the
// default test harness and by callers (e.g. the CLI's --memory flag) that
// want a catalog with no durability requirement.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/fenilsonani/stoicheia/internal/axis"
	"github.com/fenilsonani/stoicheia/internal/patch"
	"github.com/fenilsonani/stoicheia/internal/stoierr"
	"github.com/fenilsonani/stoicheia/internal/storage"
)

// Connection is an in-memory storage.Connection. The zero value is not
// usable; construct with New.
type Connection struct {
	mu sync.Mutex

	quilts  map[string]storage.QuiltDetails
	axes    map[string]axis.Axis
	patches map[int64]patchRow
	comms   map[int64]storage.Comm
	tags    map[tagKey]int64

	nextComm int64
	writing  bool
}

type patchRow struct {
	ref     storage.PatchRef
	content []byte
}

type tagKey struct {
	quilt, tag string
}

// New builds an empty in-memory catalog.
func New() *Connection {
	return &Connection{
		quilts:  make(map[string]storage.QuiltDetails),
		axes:    make(map[string]axis.Axis),
		patches: make(map[int64]patchRow),
		comms:   make(map[int64]storage.Comm),
		tags:    make(map[tagKey]int64),
	}
}

// Begin acquires the single writer slot and stages a private copy of
// every table so that Rollback (or an unfinished txn) never touches c.
// It never blocks or retries: internal/txn is responsible for backoff
// across repeated Begin calls.
func (c *Connection) Begin(ctx context.Context) (storage.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writing {
		return nil, stoierr.New(stoierr.RuntimeError, "a writer transaction is already open")
	}
	c.writing = true

	t := &txn{conn: c}
	t.quilts = make(map[string]storage.QuiltDetails, len(c.quilts))
	for k, v := range c.quilts {
		t.quilts[k] = v
	}
	t.axes = make(map[string]axis.Axis, len(c.axes))
	for k, v := range c.axes {
		t.axes[k] = v.Clone()
	}
	t.patches = make(map[int64]patchRow, len(c.patches))
	for k, v := range c.patches {
		t.patches[k] = v
	}
	t.comms = make(map[int64]storage.Comm, len(c.comms))
	for k, v := range c.comms {
		t.comms[k] = v
	}
	t.tags = make(map[tagKey]int64, len(c.tags))
	for k, v := range c.tags {
		t.tags[k] = v
	}
	t.nextComm = c.nextComm
	return t, nil
}

// Close is a no-op; the in-memory catalog has no underlying handle.
func (c *Connection) Close() error { return nil }

type txn struct {
	conn *Connection
	done bool

	quilts  map[string]storage.QuiltDetails
	axes    map[string]axis.Axis
	patches map[int64]patchRow
	comms   map[int64]storage.Comm
	tags    map[tagKey]int64

	nextComm int64
}

func (t *txn) finishCheck() error {
	if t.done {
		return stoierr.New(stoierr.RuntimeError, "transaction already finished")
	}
	return nil
}

func (t *txn) CreateQuilt(name string, axisNames []string) (storage.QuiltDetails, error) {
	if err := t.finishCheck(); err != nil {
		return storage.QuiltDetails{}, err
	}
	if q, ok := t.quilts[name]; ok {
		return q, nil
	}
	q := storage.QuiltDetails{Name: name, AxisNames: append([]string(nil), axisNames...)}
	t.quilts[name] = q
	for _, n := range axisNames {
		if _, ok := t.axes[n]; !ok {
			t.axes[n] = axis.Empty(n)
		}
	}
	return q, nil
}

func (t *txn) GetQuilt(name string) (storage.QuiltDetails, error) {
	if err := t.finishCheck(); err != nil {
		return storage.QuiltDetails{}, err
	}
	q, ok := t.quilts[name]
	if !ok {
		return storage.QuiltDetails{}, stoierr.Newf(stoierr.NotFound, "quilt %q not found", name)
	}
	return q, nil
}

func (t *txn) ListQuilts() ([]storage.QuiltDetails, error) {
	if err := t.finishCheck(); err != nil {
		return nil, err
	}
	out := make([]storage.QuiltDetails, 0, len(t.quilts))
	for _, q := range t.quilts {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (t *txn) ReadAxis(name string) (axis.Axis, error) {
	if err := t.finishCheck(); err != nil {
		return axis.Axis{}, err
	}
	a, ok := t.axes[name]
	if !ok {
		return axis.Empty(name), nil
	}
	return a.Clone(), nil
}

func (t *txn) WriteAxis(a axis.Axis) error {
	if err := t.finishCheck(); err != nil {
		return err
	}
	t.axes[a.Name] = a.Clone()
	return nil
}

func (t *txn) PutPatch(ref storage.PatchRef, content []byte) error {
	if err := t.finishCheck(); err != nil {
		return err
	}
	t.patches[ref.PatchID] = patchRow{ref: ref, content: content}
	return nil
}

func (t *txn) ReadPatchContent(patchID int64) ([]byte, error) {
	if err := t.finishCheck(); err != nil {
		return nil, err
	}
	row, ok := t.patches[patchID]
	if !ok {
		return nil, stoierr.Newf(stoierr.NotFound, "patch %d not found", patchID)
	}
	return row.content, nil
}

func (t *txn) DeletePatch(patchID int64) error {
	if err := t.finishCheck(); err != nil {
		return err
	}
	delete(t.patches, patchID)
	return nil
}

func (t *txn) PutComm(c storage.Comm) error {
	if err := t.finishCheck(); err != nil {
		return err
	}
	t.comms[c.CommID] = c
	return nil
}

func (t *txn) SetTag(quiltName, tagName string, commID int64) error {
	if err := t.finishCheck(); err != nil {
		return err
	}
	t.tags[tagKey{quiltName, tagName}] = commID
	return nil
}

func (t *txn) GetTag(quiltName, tagName string) (int64, bool, error) {
	if err := t.finishCheck(); err != nil {
		return 0, false, err
	}
	id, ok := t.tags[tagKey{quiltName, tagName}]
	return id, ok, nil
}

func (t *txn) DeleteTag(quiltName, tagName string) error {
	if err := t.finishCheck(); err != nil {
		return err
	}
	delete(t.tags, tagKey{quiltName, tagName})
	return nil
}

func (t *txn) Ancestors(commID int64) ([]int64, error) {
	if err := t.finishCheck(); err != nil {
		return nil, err
	}
	seen := map[int64]struct{}{}
	frontier := []int64{commID}
	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		c, ok := t.comms[id]
		if !ok || !c.HasParent {
			continue
		}
		frontier = append(frontier, c.ParentCommID)
	}
	out := make([]int64, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	return out, nil
}

func (t *txn) QueryPatchRefs(quiltName string, commitIDs []int64, boxes []patch.BoundingBox) ([]storage.PatchRef, error) {
	if err := t.finishCheck(); err != nil {
		return nil, err
	}
	boxes = storage.CollapseBoxes(boxes)
	allowed := make(map[int64]struct{}, len(commitIDs))
	for _, id := range commitIDs {
		allowed[id] = struct{}{}
	}
	var out []storage.PatchRef
	for _, row := range t.patches {
		if _, ok := allowed[row.ref.CommID]; !ok {
			continue
		}
		for _, b := range boxes {
			if storage.BoxesIntersect(row.ref.Box, b) {
				out = append(out, row.ref)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CommID != out[j].CommID {
			return out[i].CommID < out[j].CommID
		}
		return out[i].PatchID < out[j].PatchID
	})
	return out, nil
}

func (t *txn) NextCommID() int64 {
	t.nextComm++
	return t.nextComm
}

func (t *txn) Commit() error {
	if err := t.finishCheck(); err != nil {
		return err
	}
	t.done = true
	c := t.conn
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quilts = t.quilts
	c.axes = t.axes
	c.patches = t.patches
	c.comms = t.comms
	c.tags = t.tags
	c.nextComm = t.nextComm
	c.writing = false
	return nil
}

func (t *txn) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	c := t.conn
	c.mu.Lock()
	c.writing = false
	c.mu.Unlock()
	return nil
}
