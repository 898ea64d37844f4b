package patch

import "github.com/fenilsonani/stoicheia/internal/axis"

// compactShrinkRatio is the threshold below which Compact rebuilds the
// dense array rather than returning an unchanged copy of the patch.
const compactShrinkRatio = 0.75

// Compact trims, independently per axis, any label plane that is entirely
// NaN, and rebuilds the dense array if doing so would shrink it below
// compactShrinkRatio of its original size. It never reorders surviving
// labels.
func (p *Patch) Compact() *Patch {
	rank := len(p.axes)
	kept := make([][]int, rank)
	for i := 0; i < rank; i++ {
		kept[i] = keptIndices(p, i)
	}

	keptTotal := 1
	for _, k := range kept {
		keptTotal *= len(k)
	}
	if keptTotal == len(p.dense) {
		return p.Clone()
	}
	if float64(keptTotal) >= compactShrinkRatio*float64(len(p.dense)) {
		return p.Clone()
	}

	newAxes := make([]axis.Axis, rank)
	for i, a := range p.axes {
		labels := a.Labels()
		sel := make([]axis.Label, len(kept[i]))
		for j, k := range kept[i] {
			sel[j] = labels[k]
		}
		newAxes[i] = axis.NewUnchecked(a.Name, sel)
	}

	newDense := selectIndices(p.dense, p.shape, kept)
	out, err := New(newAxes, newDense)
	if err != nil {
		// kept indices are always consistent with newAxes' shape, so New
		// cannot fail here short of a bug in keptIndices/selectIndices.
		panic(err)
	}
	return out
}

// keptIndices returns, for axis dim, the sorted local indices that are
// referenced by at least one non-NaN cell.
func keptIndices(p *Patch, dim int) []int {
	strides := stridesOf(p.shape)
	n := p.shape[dim]
	live := make([]bool, n)
	liveCount := 0
	for f, v := range p.dense {
		if isNaN32(v) {
			continue
		}
		idx := (f / strides[dim]) % n
		if !live[idx] {
			live[idx] = true
			liveCount++
		}
	}
	out := make([]int, 0, liveCount)
	for i, l := range live {
		if l {
			out = append(out, i)
		}
	}
	return out
}

// selectIndices gathers a new dense array containing only the cells whose
// per-axis local index is in kept[dim], preserving relative order.
func selectIndices(dense []float32, shape []int, kept [][]int) []float32 {
	rank := len(shape)
	srcStrides := stridesOf(shape)
	newShape := make([]int, rank)
	for i, k := range kept {
		newShape[i] = len(k)
	}
	dstStrides := stridesOf(newShape)

	total := 1
	for _, n := range newShape {
		total *= n
	}
	out := make([]float32, total)

	idx := make([]int, rank)
	for f := 0; f < total; f++ {
		rem := f
		srcFlat := 0
		for i := 0; i < rank; i++ {
			idx[i] = (rem / dstStrides[i]) % newShape[i]
			srcFlat += kept[i][idx[i]] * srcStrides[i]
		}
		out[f] = dense[srcFlat]
	}
	return out
}
