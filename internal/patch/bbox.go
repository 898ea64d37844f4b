package patch

import "github.com/fenilsonani/stoicheia/internal/axis"

// openMax is the upper bound used for axes a patch doesn't declare, per
// the engine-wide default range of [0, 2^30] on storage-index space.
const openMax = 1 << 30

// Segment is an inclusive range of storage indices along one axis.
type Segment struct {
	Min, Max int
}

// BoundingBox is the rectangle a patch occupies in the global storage-index
// space of a quilt, always exactly 4 segments: one per storage dimension,
// regardless of how many axes the patch itself declares.
type BoundingBox [4]Segment

// BoundingBox computes the box p occupies against global axes, in the
// quilt's fixed storage-dimension order. Axes p doesn't declare get the
// default open range [0, openMax]; declared axes get the tightest
// enclosing range of the global storage indices p's labels actually use.
func (p *Patch) BoundingBox(globals map[string]axis.Axis, storageOrder []string) (BoundingBox, error) {
	var box BoundingBox
	for dim, name := range storageOrder {
		if dim >= 4 {
			break
		}
		local := indexByName(p.axes, name)
		if local < 0 {
			box[dim] = Segment{Min: 0, Max: openMax}
			continue
		}
		g, ok := globals[name]
		if !ok {
			return BoundingBox{}, axisNotFound(name)
		}
		seg, err := labelRangeInGlobal(p.axes[local], g)
		if err != nil {
			return BoundingBox{}, err
		}
		box[dim] = seg
	}
	for dim := len(storageOrder); dim < 4; dim++ {
		box[dim] = Segment{Min: 0, Max: openMax}
	}
	return box, nil
}

func labelRangeInGlobal(local, global axis.Axis) (Segment, error) {
	gi := globalIndex(global)
	min, max := -1, -1
	for _, l := range local.Labels() {
		idx, ok := gi[l]
		if !ok {
			return Segment{}, misalignedLabel(l, global.Name)
		}
		if min == -1 || idx < min {
			min = idx
		}
		if max == -1 || idx > max {
			max = idx
		}
	}
	if min == -1 {
		return Segment{Min: 0, Max: -1}, nil
	}
	return Segment{Min: min, Max: max}, nil
}

func globalIndex(a axis.Axis) map[axis.Label]int {
	m := make(map[axis.Label]int, a.Len())
	for i, l := range a.Labels() {
		m[l] = i
	}
	return m
}
