// Package sqlite is the durable storage.Connection backed by
// github.com/mattn/go-sqlite3, grounded on
// original_source/src/sqlite.rs: the seven-table schema of spec.md §6,
// a recursive-CTE ancestor walk, and a bounded exponential-backoff
// writer-lock loop on Begin.
package sqlite

import (
	"context"
	"database/sql"
	"math/rand"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/fenilsonani/stoicheia/internal/axis"
	"github.com/fenilsonani/stoicheia/internal/patch"
	"github.com/fenilsonani/stoicheia/internal/stoierr"
	"github.com/fenilsonani/stoicheia/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS quilt (
	name TEXT PRIMARY KEY,
	axis_names TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS axis (
	name TEXT PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS axis_content (
	axis_name TEXT NOT NULL,
	label INTEGER NOT NULL,
	storage_index INTEGER NOT NULL,
	PRIMARY KEY (axis_name, label)
);
CREATE TABLE IF NOT EXISTS patch (
	patch_id INTEGER PRIMARY KEY,
	comm_id INTEGER NOT NULL,
	decompressed_size INTEGER NOT NULL,
	dim0_min INTEGER NOT NULL, dim0_max INTEGER NOT NULL,
	dim1_min INTEGER NOT NULL, dim1_max INTEGER NOT NULL,
	dim2_min INTEGER NOT NULL, dim2_max INTEGER NOT NULL,
	dim3_min INTEGER NOT NULL, dim3_max INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS patch_content (
	patch_id INTEGER PRIMARY KEY,
	content BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS comm (
	comm_id INTEGER PRIMARY KEY,
	parent_comm_id INTEGER,
	quilt_name TEXT NOT NULL,
	message TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS tag (
	quilt_name TEXT NOT NULL,
	tag_name TEXT NOT NULL,
	comm_id INTEGER NOT NULL,
	PRIMARY KEY (quilt_name, tag_name)
);
`

// lockBackoffAttempts and the 1<<i millisecond schedule match
// original_source/src/sqlite.rs's txn() retry loop (≈1023ms worst case).
const lockBackoffAttempts = 10

// Connection is a durable storage.Connection over a single SQLite file.
type Connection struct {
	db *sql.DB

	mu       sync.Mutex
	lastComm int64
}

// Open creates (if needed) the schema at path and returns a ready
// Connection. path may be ":memory:" for a process-local database.
func Open(path string) (*Connection, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=1000")
	if err != nil {
		return nil, stoierr.Wrap(stoierr.StorageError, "opening sqlite database", err)
	}
	db.SetMaxOpenConns(1) // single-writer model; avoid pool-level SQLITE_BUSY races
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, stoierr.Wrap(stoierr.StorageError, "creating schema", err)
	}
	return &Connection{db: db}, nil
}

func (c *Connection) Close() error {
	return c.db.Close()
}

// Begin retries BeginTx with exponential backoff (1<<i ms, i=0..9) before
// surfacing a RuntimeError, matching the writer-lock contract of spec.md §5.
func (c *Connection) Begin(ctx context.Context) (storage.Transaction, error) {
	var tx *sql.Tx
	var err error
	for i := 0; i < lockBackoffAttempts; i++ {
		tx, err = c.db.BeginTx(ctx, nil)
		if err == nil {
			return &txn{conn: c, tx: tx}, nil
		}
		if !isBusy(err) {
			return nil, stoierr.Wrap(stoierr.StorageError, "beginning transaction", err)
		}
		select {
		case <-time.After(time.Duration(1<<uint(i)) * time.Millisecond):
		case <-ctx.Done():
			return nil, stoierr.Wrap(stoierr.RuntimeError, "context cancelled while acquiring writer lock", ctx.Err())
		}
	}
	return nil, stoierr.Wrap(stoierr.RuntimeError, "writer lock acquisition exhausted its backoff budget", err)
}

func isBusy(err error) bool {
	return err != nil && strings.Contains(err.Error(), "locked")
}

type txn struct {
	conn *Connection
	tx   *sql.Tx
	done bool
}

func (t *txn) CreateQuilt(name string, axisNames []string) (storage.QuiltDetails, error) {
	joined := strings.Join(axisNames, ",")
	_, err := t.tx.Exec(`INSERT INTO quilt(name, axis_names) VALUES (?, ?)
		ON CONFLICT(name) DO NOTHING`, name, joined)
	if err != nil {
		return storage.QuiltDetails{}, stoierr.Wrap(stoierr.StorageError, "inserting quilt", err)
	}
	for _, n := range axisNames {
		if _, err := t.tx.Exec(`INSERT INTO axis(name) VALUES (?) ON CONFLICT(name) DO NOTHING`, n); err != nil {
			return storage.QuiltDetails{}, stoierr.Wrap(stoierr.StorageError, "inserting axis", err)
		}
	}
	return t.GetQuilt(name)
}

func (t *txn) GetQuilt(name string) (storage.QuiltDetails, error) {
	var axisNames string
	err := t.tx.QueryRow(`SELECT axis_names FROM quilt WHERE name = ?`, name).Scan(&axisNames)
	if err == sql.ErrNoRows {
		return storage.QuiltDetails{}, stoierr.Newf(stoierr.NotFound, "quilt %q not found", name)
	}
	if err != nil {
		return storage.QuiltDetails{}, stoierr.Wrap(stoierr.StorageError, "reading quilt", err)
	}
	var names []string
	if axisNames != "" {
		names = strings.Split(axisNames, ",")
	}
	return storage.QuiltDetails{Name: name, AxisNames: names}, nil
}

func (t *txn) ListQuilts() ([]storage.QuiltDetails, error) {
	rows, err := t.tx.Query(`SELECT name, axis_names FROM quilt ORDER BY name`)
	if err != nil {
		return nil, stoierr.Wrap(stoierr.StorageError, "listing quilts", err)
	}
	defer rows.Close()
	var out []storage.QuiltDetails
	for rows.Next() {
		var name, axisNames string
		if err := rows.Scan(&name, &axisNames); err != nil {
			return nil, stoierr.Wrap(stoierr.StorageError, "scanning quilt row", err)
		}
		var names []string
		if axisNames != "" {
			names = strings.Split(axisNames, ",")
		}
		out = append(out, storage.QuiltDetails{Name: name, AxisNames: names})
	}
	return out, rows.Err()
}

func (t *txn) ReadAxis(name string) (axis.Axis, error) {
	rows, err := t.tx.Query(`SELECT label FROM axis_content WHERE axis_name = ? ORDER BY storage_index ASC`, name)
	if err != nil {
		return axis.Axis{}, stoierr.Wrap(stoierr.StorageError, "reading axis content", err)
	}
	defer rows.Close()
	var labels []axis.Label
	for rows.Next() {
		var l int64
		if err := rows.Scan(&l); err != nil {
			return axis.Axis{}, stoierr.Wrap(stoierr.StorageError, "scanning axis label", err)
		}
		labels = append(labels, axis.Label(l))
	}
	if err := rows.Err(); err != nil {
		return axis.Axis{}, stoierr.Wrap(stoierr.StorageError, "reading axis content", err)
	}
	return axis.NewUnchecked(name, labels), nil
}

// WriteAxis replaces the persisted label set of a with its current
// (already append-only-grown) contents. The caller's axis cache is what
// guarantees this never reorders or truncates.
func (t *txn) WriteAxis(a axis.Axis) error {
	if _, err := t.tx.Exec(`INSERT INTO axis(name) VALUES (?) ON CONFLICT(name) DO NOTHING`, a.Name); err != nil {
		return stoierr.Wrap(stoierr.StorageError, "inserting axis", err)
	}
	if _, err := t.tx.Exec(`DELETE FROM axis_content WHERE axis_name = ?`, a.Name); err != nil {
		return stoierr.Wrap(stoierr.StorageError, "clearing axis content", err)
	}
	stmt, err := t.tx.Prepare(`INSERT INTO axis_content(axis_name, label, storage_index) VALUES (?, ?, ?)`)
	if err != nil {
		return stoierr.Wrap(stoierr.StorageError, "preparing axis content insert", err)
	}
	defer stmt.Close()
	for i, l := range a.Labels() {
		if _, err := stmt.Exec(a.Name, int64(l), i); err != nil {
			return stoierr.Wrap(stoierr.StorageError, "inserting axis label", err)
		}
	}
	return nil
}

func (t *txn) PutPatch(ref storage.PatchRef, content []byte) error {
	_, err := t.tx.Exec(`INSERT INTO patch(
		patch_id, comm_id, decompressed_size,
		dim0_min, dim0_max, dim1_min, dim1_max, dim2_min, dim2_max, dim3_min, dim3_max
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ref.PatchID, ref.CommID, ref.DecompressedSize,
		ref.Box[0].Min, ref.Box[0].Max, ref.Box[1].Min, ref.Box[1].Max,
		ref.Box[2].Min, ref.Box[2].Max, ref.Box[3].Min, ref.Box[3].Max)
	if err != nil {
		return stoierr.Wrap(stoierr.StorageError, "inserting patch ref", err)
	}
	if _, err := t.tx.Exec(`INSERT INTO patch_content(patch_id, content) VALUES (?, ?)`, ref.PatchID, content); err != nil {
		return stoierr.Wrap(stoierr.StorageError, "inserting patch content", err)
	}
	return nil
}

func (t *txn) ReadPatchContent(patchID int64) ([]byte, error) {
	var content []byte
	err := t.tx.QueryRow(`SELECT content FROM patch_content WHERE patch_id = ?`, patchID).Scan(&content)
	if err == sql.ErrNoRows {
		return nil, stoierr.Newf(stoierr.NotFound, "patch %d not found", patchID)
	}
	if err != nil {
		return nil, stoierr.Wrap(stoierr.StorageError, "reading patch content", err)
	}
	return content, nil
}

func (t *txn) DeletePatch(patchID int64) error {
	if _, err := t.tx.Exec(`DELETE FROM patch WHERE patch_id = ?`, patchID); err != nil {
		return stoierr.Wrap(stoierr.StorageError, "deleting patch ref", err)
	}
	if _, err := t.tx.Exec(`DELETE FROM patch_content WHERE patch_id = ?`, patchID); err != nil {
		return stoierr.Wrap(stoierr.StorageError, "deleting patch content", err)
	}
	return nil
}

func (t *txn) PutComm(c storage.Comm) error {
	var parent any
	if c.HasParent {
		parent = c.ParentCommID
	}
	_, err := t.tx.Exec(`INSERT INTO comm(comm_id, parent_comm_id, quilt_name, message) VALUES (?, ?, ?, ?)`,
		c.CommID, parent, c.QuiltName, c.Message)
	if err != nil {
		return stoierr.Wrap(stoierr.StorageError, "inserting commit", err)
	}
	return nil
}

func (t *txn) SetTag(quiltName, tagName string, commID int64) error {
	_, err := t.tx.Exec(`INSERT INTO tag(quilt_name, tag_name, comm_id) VALUES (?, ?, ?)
		ON CONFLICT(quilt_name, tag_name) DO UPDATE SET comm_id = excluded.comm_id`,
		quiltName, tagName, commID)
	if err != nil {
		return stoierr.Wrap(stoierr.StorageError, "setting tag", err)
	}
	return nil
}

func (t *txn) GetTag(quiltName, tagName string) (int64, bool, error) {
	var commID int64
	err := t.tx.QueryRow(`SELECT comm_id FROM tag WHERE quilt_name = ? AND tag_name = ?`, quiltName, tagName).Scan(&commID)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, stoierr.Wrap(stoierr.StorageError, "reading tag", err)
	}
	return commID, true, nil
}

func (t *txn) DeleteTag(quiltName, tagName string) error {
	if _, err := t.tx.Exec(`DELETE FROM tag WHERE quilt_name = ? AND tag_name = ?`, quiltName, tagName); err != nil {
		return stoierr.Wrap(stoierr.StorageError, "deleting tag", err)
	}
	return nil
}

// Ancestors walks parent_comm_id edges via the recursive CTE grounded on
// original_source/src/sqlite.rs's CommitAncestry query.
func (t *txn) Ancestors(commID int64) ([]int64, error) {
	rows, err := t.tx.Query(`
		WITH RECURSIVE ancestry(comm_id) AS (
			SELECT comm_id FROM comm WHERE comm_id = ?
			UNION ALL
			SELECT c.parent_comm_id FROM comm c
			JOIN ancestry a ON c.comm_id = a.comm_id
			WHERE c.parent_comm_id IS NOT NULL
		)
		SELECT comm_id FROM ancestry`, commID)
	if err != nil {
		return nil, stoierr.Wrap(stoierr.StorageError, "walking commit ancestry", err)
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, stoierr.Wrap(stoierr.StorageError, "scanning ancestry row", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (t *txn) QueryPatchRefs(quiltName string, commitIDs []int64, boxes []patch.BoundingBox) ([]storage.PatchRef, error) {
	boxes = storage.CollapseBoxes(boxes)
	if len(commitIDs) == 0 || len(boxes) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	args := make([]any, 0, len(commitIDs)+len(boxes)*8)

	sb.WriteString(`SELECT p.patch_id, p.comm_id, p.decompressed_size,
		p.dim0_min, p.dim0_max, p.dim1_min, p.dim1_max, p.dim2_min, p.dim2_max, p.dim3_min, p.dim3_max
		FROM patch p WHERE p.comm_id IN (`)
	sb.WriteString(placeholders(len(commitIDs)))
	sb.WriteString(") AND (")
	for _, id := range commitIDs {
		args = append(args, id)
	}
	for i, b := range boxes {
		if i > 0 {
			sb.WriteString(" OR ")
		}
		sb.WriteString(`(p.dim0_max >= ? AND ? >= p.dim0_min AND p.dim1_max >= ? AND ? >= p.dim1_min
			AND p.dim2_max >= ? AND ? >= p.dim2_min AND p.dim3_max >= ? AND ? >= p.dim3_min)`)
		args = append(args,
			b[0].Min, b[0].Max, b[1].Min, b[1].Max,
			b[2].Min, b[2].Max, b[3].Min, b[3].Max)
	}
	sb.WriteString(") ORDER BY p.comm_id ASC, p.patch_id ASC")

	rows, err := t.tx.Query(sb.String(), args...)
	if err != nil {
		return nil, stoierr.Wrap(stoierr.StorageError, "querying patch refs", err)
	}
	defer rows.Close()

	var out []storage.PatchRef
	for rows.Next() {
		var ref storage.PatchRef
		if err := rows.Scan(&ref.PatchID, &ref.CommID, &ref.DecompressedSize,
			&ref.Box[0].Min, &ref.Box[0].Max, &ref.Box[1].Min, &ref.Box[1].Max,
			&ref.Box[2].Min, &ref.Box[2].Max, &ref.Box[3].Min, &ref.Box[3].Max); err != nil {
			return nil, stoierr.Wrap(stoierr.StorageError, "scanning patch ref row", err)
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// NextCommID mirrors original_source/src/sqlite.rs's gen_id: wall-clock
// nanoseconds plus a signed 16-bit perturbation, nudged forward when
// necessary to guarantee strict monotonicity within this writer.
func (t *txn) NextCommID() int64 {
	t.conn.mu.Lock()
	defer t.conn.mu.Unlock()
	id := time.Now().UnixNano() + int64(int16(rand.Intn(1<<16)-1<<15))
	if id <= t.conn.lastComm {
		id = t.conn.lastComm + 1
	}
	t.conn.lastComm = id
	return id
}

func (t *txn) Commit() error {
	if t.done {
		return stoierr.New(stoierr.RuntimeError, "transaction already finished")
	}
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return stoierr.Wrap(stoierr.StorageError, "committing transaction", err)
	}
	return nil
}

func (t *txn) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(); err != nil {
		return stoierr.Wrap(stoierr.StorageError, "rolling back transaction", err)
	}
	return nil
}
