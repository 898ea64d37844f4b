// Package patch implements the up-to-4-dimensional labeled tensor that is
// the unit of storage and transfer in a quilt: construction, label-aware
// apply/merge, compaction, splitting, bounding boxes, and serialization.
package patch

import (
	"math"

	"github.com/fenilsonani/stoicheia/internal/axis"
	"github.com/fenilsonani/stoicheia/internal/stoierr"
)

// MaxElements is the largest number of cells a patch (or a fetch target)
// may contain: 256 Mi, i.e. 1GB of 32-bit floats.
const MaxElements = 256 << 20

// SplitThreshold is the element count above which the splitter divides a
// patch into smaller pieces before it is persisted.
const SplitThreshold = 1 << 20

// Patch is a rectangular, labeled slab of up to 4 dimensions. Axes beyond
// the declared rank are the implicit length-1 dimensions of the spec's
// rank-4 array; since they always contribute a factor of 1 to every shape
// and stride computation, we only ever track the declared axes explicitly.
type Patch struct {
	axes  []axis.Axis
	shape []int
	dense []float32
}

// New builds a patch from declared axes and a dense array already laid
// out in row-major order matching those axes. Pass a nil dense to get a
// NaN-filled patch of the right shape.
func New(axes []axis.Axis, dense []float32) (*Patch, error) {
	if len(axes) < 1 || len(axes) > 4 {
		return nil, stoierr.Newf(stoierr.InvalidValue, "a patch must declare between 1 and 4 axes, got %d", len(axes))
	}
	seen := make(map[string]struct{}, len(axes))
	shape := make([]int, len(axes))
	total := 1
	for i, a := range axes {
		if _, dup := seen[a.Name]; dup {
			return nil, stoierr.Newf(stoierr.InvalidValue, "duplicate axis name %q in patch", a.Name)
		}
		seen[a.Name] = struct{}{}
		shape[i] = a.Len()
		total *= shape[i]
	}
	if total > MaxElements {
		return nil, stoierr.Newf(stoierr.TooLarge, "patch would have %d elements, exceeding the %d cap", total, MaxElements)
	}
	if dense == nil {
		dense = make([]float32, total)
		nan := float32(math.NaN())
		for i := range dense {
			dense[i] = nan
		}
	} else if len(dense) != total {
		return nil, stoierr.Newf(stoierr.InvalidValue, "dense array has %d elements, expected %d for the declared axes", len(dense), total)
	}
	clones := make([]axis.Axis, len(axes))
	for i, a := range axes {
		clones[i] = a.Clone()
	}
	return &Patch{axes: clones, shape: shape, dense: dense}, nil
}

// NewEmpty builds a NaN-filled patch shaped by the given axes.
func NewEmpty(axes []axis.Axis) (*Patch, error) {
	return New(axes, nil)
}

// Axes returns the patch's declared axes, in declaration order.
func (p *Patch) Axes() []axis.Axis {
	return p.axes
}

// Dense returns the flat, row-major backing array. The caller must not
// mutate it unless it owns the only reference to the patch.
func (p *Patch) Dense() []float32 {
	return p.dense
}

// Len returns the total number of cells in the patch.
func (p *Patch) Len() int {
	return len(p.dense)
}

// Clone returns a deep copy of the patch.
func (p *Patch) Clone() *Patch {
	axesCopy := make([]axis.Axis, len(p.axes))
	for i, a := range p.axes {
		axesCopy[i] = a.Clone()
	}
	denseCopy := make([]float32, len(p.dense))
	copy(denseCopy, p.dense)
	shapeCopy := append([]int(nil), p.shape...)
	return &Patch{axes: axesCopy, shape: shapeCopy, dense: denseCopy}
}

// Apply overwrites cells of p wherever source has a non-NaN value at
// matching labels across every axis. Axes of p and source must be the
// same set by name; order may differ. Empty operands are no-ops. Cells
// of source outside p's label set are silently ignored: apply is bounded
// by p's own shape.
func (p *Patch) Apply(source *Patch) error {
	if !sameAxisNameSet(p.axes, source.axes) {
		return stoierr.New(stoierr.MisalignedAxes, "apply operands don't share the same set of axis names")
	}
	if len(p.dense) == 0 || len(source.dense) == 0 {
		return nil
	}

	rank := len(p.axes)
	perm := make([]int, rank)
	for i, a := range p.axes {
		j := indexByName(source.axes, a.Name)
		if j < 0 {
			return stoierr.New(stoierr.MisalignedAxes, "apply operands don't share the same set of axis names")
		}
		perm[i] = j
	}

	pullMaps := make([][]int, rank)
	for i := 0; i < rank; i++ {
		srcAxis := source.axes[perm[i]]
		srcIndex := make(map[axis.Label]int, srcAxis.Len())
		for j, l := range srcAxis.Labels() {
			srcIndex[l] = j
		}
		m := make([]int, p.axes[i].Len())
		for j, l := range p.axes[i].Labels() {
			if idx, ok := srcIndex[l]; ok {
				m[j] = idx
			} else {
				m[j] = -1
			}
		}
		pullMaps[i] = m
	}

	selfStrides := stridesOf(p.shape)
	srcStrides := stridesOf(source.shape)

	idx := make([]int, rank)
	total := len(p.dense)
cellLoop:
	for f := 0; f < total; f++ {
		rem := f
		srcFlat := 0
		for i := 0; i < rank; i++ {
			idx[i] = (rem / selfStrides[i]) % p.shape[i]
			srcI := pullMaps[i][idx[i]]
			if srcI < 0 {
				continue cellLoop
			}
			srcFlat += srcI * srcStrides[perm[i]]
		}
		v := source.dense[srcFlat]
		if !isNaN32(v) {
			p.dense[f] = v
		}
	}
	return nil
}

func sameAxisNameSet(a, b []axis.Axis) bool {
	if len(a) != len(b) {
		return false
	}
	names := make(map[string]struct{}, len(a))
	for _, x := range a {
		names[x.Name] = struct{}{}
	}
	for _, x := range b {
		if _, ok := names[x.Name]; !ok {
			return false
		}
	}
	return true
}

func indexByName(axes []axis.Axis, name string) int {
	for i, a := range axes {
		if a.Name == name {
			return i
		}
	}
	return -1
}

func stridesOf(shape []int) []int {
	strides := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= shape[i]
	}
	return strides
}

func isNaN32(v float32) bool {
	return math.IsNaN(float64(v))
}
