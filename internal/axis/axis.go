// Package axis implements the ordered, distinct label vectors that define
// storage order along one dimension of a quilt, and the bounding-box
// alignment helper used when widening patch boxes to power-of-two blocks.
package axis

import (
	"math/bits"
	"sort"

	"github.com/fenilsonani/stoicheia/internal/stoierr"
)

// Label is a user-meaningful signed 64-bit identifier for a position along
// an axis. Labels need not be dense or sorted; they define storage locality.
type Label = int64

// Axis is a named, ordered sequence of distinct labels. Order is
// significant: it is the storage order used by patches and the rectangle
// index, not necessarily sorted order.
type Axis struct {
	Name   string
	labels []Label
}

// New creates a named axis from labels, rejecting duplicates.
func New(name string, labels []Label) (Axis, error) {
	a := Axis{Name: name, labels: append([]Label(nil), labels...)}
	if err := a.checkDistinct(); err != nil {
		return Axis{}, err
	}
	return a, nil
}

// NewUnchecked creates a named axis assuming the labels are already
// distinct. Used internally when labels are known-good (e.g. read back
// from storage, which itself only ever appends through Union).
func NewUnchecked(name string, labels []Label) Axis {
	return Axis{Name: name, labels: append([]Label(nil), labels...)}
}

// Empty creates an axis with no labels.
func Empty(name string) Axis {
	return Axis{Name: name}
}

// Range builds a consecutive-label axis, useful for tests.
func Range(name string, lo, hi Label) Axis {
	labels := make([]Label, 0, hi-lo)
	for l := lo; l < hi; l++ {
		labels = append(labels, l)
	}
	return Axis{Name: name, labels: labels}
}

// checkDistinct verifies there are no duplicate labels. O(n log n) via a
// sort-and-scan, matching the original's switch away from a hash set for
// the common case of an already-mostly-sorted input.
func (a Axis) checkDistinct() error {
	l := append([]Label(nil), a.labels...)
	sort.Slice(l, func(i, j int) bool { return l[i] < l[j] })
	for i := 1; i < len(l); i++ {
		if l[i-1] == l[i] {
			return stoierr.New(stoierr.InvalidValue, "axis labels must not be duplicated")
		}
	}
	return nil
}

// Labels returns the axis's labels in storage order. The caller must not
// mutate the returned slice.
func (a Axis) Labels() []Label {
	return a.labels
}

// Len returns the number of labels on this axis.
func (a Axis) Len() int {
	return len(a.labels)
}

// Labelset materializes a hash set of this axis's labels for O(1) membership.
func (a Axis) Labelset() map[Label]struct{} {
	set := make(map[Label]struct{}, len(a.labels))
	for _, l := range a.labels {
		set[l] = struct{}{}
	}
	return set
}

// Union appends labels from other that aren't already present, preserving
// the existing order of self. It never reorders or removes a label, which
// is what keeps bounding boxes computed before a union valid afterward.
// Returns whether any label was actually appended.
func (a *Axis) Union(other Axis) bool {
	have := a.Labelset()
	mutated := false
	for _, l := range other.labels {
		if _, ok := have[l]; ok {
			continue
		}
		a.labels = append(a.labels, l)
		have[l] = struct{}{}
		mutated = true
	}
	return mutated
}

// Clone returns an independent copy of the axis.
func (a Axis) Clone() Axis {
	return Axis{Name: a.Name, labels: append([]Label(nil), a.labels...)}
}

// EnclosingBlock returns the smallest power-of-two-aligned index interval
// [s, e] (inclusive on both ends) such that e-s+1 is a power of two, s is
// divisible by e-s+1, and s <= start <= end <= e. Both start and end are
// storage indices (not labels).
func EnclosingBlock(start, end uint64) (uint64, uint64) {
	if start == end {
		return start, start
	}
	prefixLen := bits.LeadingZeros64(start ^ end)
	prefixMask := ^uint64(0) >> uint(prefixLen)
	return start &^ prefixMask, start | prefixMask
}
