package patch

import (
	"sort"

	"github.com/fenilsonani/stoicheia/internal/axis"
	"github.com/fenilsonani/stoicheia/internal/stoierr"
)

// Split recursively bisects p on the axis with the most labels, dividing
// that axis's labels in half by their position in the corresponding
// global axis's storage order, until every leaf has at most
// SplitThreshold elements. A patch already under the threshold is
// returned unsplit, as its sole element.
func (p *Patch) Split(globals map[string]axis.Axis) ([]*Patch, error) {
	if len(p.dense) <= SplitThreshold {
		return []*Patch{p}, nil
	}

	dim, err := longestAxis(p, globals)
	if err != nil {
		return nil, err
	}
	if p.axes[dim].Len() < 2 {
		// Nothing left to bisect; accept the oversized leaf.
		return []*Patch{p}, nil
	}

	g := globals[p.axes[dim].Name]
	gi := globalIndex(g)
	type labelPos struct {
		local  int
		global int
	}
	order := make([]labelPos, p.axes[dim].Len())
	for i, l := range p.axes[dim].Labels() {
		gidx, ok := gi[l]
		if !ok {
			return nil, misalignedLabel(l, g.Name)
		}
		order[i] = labelPos{local: i, global: gidx}
	}
	sort.Slice(order, func(i, j int) bool { return order[i].global < order[j].global })

	mid := len(order) / 2
	left := make([]int, mid)
	right := make([]int, len(order)-mid)
	for i := 0; i < mid; i++ {
		left[i] = order[i].local
	}
	for i := mid; i < len(order); i++ {
		right[i-mid] = order[i].local
	}
	sort.Ints(left)
	sort.Ints(right)

	leftPatch, err := bisect(p, dim, left)
	if err != nil {
		return nil, err
	}
	rightPatch, err := bisect(p, dim, right)
	if err != nil {
		return nil, err
	}

	leftLeaves, err := leftPatch.Split(globals)
	if err != nil {
		return nil, err
	}
	rightLeaves, err := rightPatch.Split(globals)
	if err != nil {
		return nil, err
	}
	return append(leftLeaves, rightLeaves...), nil
}

func longestAxis(p *Patch, globals map[string]axis.Axis) (int, error) {
	best, bestCount := -1, -1
	for i, a := range p.axes {
		g, ok := globals[a.Name]
		if !ok {
			return 0, axisNotFound(a.Name)
		}
		if _, err := labelRangeInGlobal(a, g); err != nil {
			return 0, err
		}
		if a.Len() > bestCount {
			best, bestCount = i, a.Len()
		}
	}
	return best, nil
}

func bisect(p *Patch, dim int, keptOnDim []int) (*Patch, error) {
	kept := make([][]int, len(p.axes))
	for i := range p.axes {
		if i == dim {
			kept[i] = keptOnDim
			continue
		}
		full := make([]int, p.axes[i].Len())
		for j := range full {
			full[j] = j
		}
		kept[i] = full
	}

	newAxes := make([]axis.Axis, len(p.axes))
	for i, a := range p.axes {
		labels := a.Labels()
		sel := make([]axis.Label, len(kept[i]))
		for j, k := range kept[i] {
			sel[j] = labels[k]
		}
		newAxes[i] = axis.NewUnchecked(a.Name, sel)
	}

	dense := selectIndices(p.dense, p.shape, kept)
	return New(newAxes, dense)
}

func axisNotFound(name string) error {
	return stoierr.Newf(stoierr.MisalignedAxes, "no global axis named %q", name)
}

func misalignedLabel(l axis.Label, axisName string) error {
	return stoierr.Newf(stoierr.MisalignedAxes, "label %d is not present in global axis %q", l, axisName)
}
