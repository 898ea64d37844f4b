// Package selection resolves user-facing axis selections (label-based or
// index-based) against a quilt's global axes into concrete index ranges
// the rectangle index and fetch assembler can use.
package selection

import "github.com/fenilsonani/stoicheia/internal/axis"

// Segment is a half-open-by-construction-but-inclusive index range
// [Start, End] into a global axis's storage order.
type Segment struct {
	Start, End int
}

// Kind discriminates the selection variants of spec.md §4.3.
type Kind int

const (
	All Kind = iota
	Labels
	LabelSlice
	StorageSlice
)

// Selection is the tagged union a caller builds to describe what part of
// an axis it wants, e.g. from an HTTP query or CLI flag.
type Selection struct {
	Kind   Kind
	Set    []axis.Label // Labels
	Lo, Hi axis.Label   // LabelSlice
	I, J   int          // StorageSlice
}

// Resolve turns a Selection against global into the sub-axis it denotes
// (in the order the selection implies) and the index segments on global
// that cover it.
func Resolve(global axis.Axis, sel Selection) (axis.Axis, []Segment) {
	switch sel.Kind {
	case All:
		return global.Clone(), []Segment{{Start: 0, End: global.Len() - 1}}
	case Labels:
		return resolveLabels(global, sel.Set)
	case LabelSlice:
		return resolveLabelSlice(global, sel.Lo, sel.Hi)
	case StorageSlice:
		return resolveStorageSlice(global, sel.I, sel.J)
	default:
		return axis.Empty(global.Name), nil
	}
}

func resolveLabels(global axis.Axis, wanted []axis.Label) (axis.Axis, []Segment) {
	want := make(map[axis.Label]struct{}, len(wanted))
	for _, l := range wanted {
		want[l] = struct{}{}
	}
	labels := global.Labels()
	first, last := -1, -1
	for i, l := range labels {
		if _, ok := want[l]; ok {
			if first == -1 {
				first = i
			}
			last = i
		}
	}
	out, _ := axis.New(global.Name, append([]axis.Label(nil), wanted...))
	if first == -1 {
		return out, nil
	}
	return out, []Segment{{Start: first, End: last}}
}

func resolveLabelSlice(global axis.Axis, lo, hi axis.Label) (axis.Axis, []Segment) {
	labels := global.Labels()
	loIdx := indexOf(labels, lo, 0)
	if loIdx == -1 {
		return axis.Empty(global.Name), []Segment{{Start: 0, End: -1}}
	}
	hiIdx := indexOf(labels, hi, loIdx)
	if hiIdx == -1 {
		return axis.Empty(global.Name), []Segment{{Start: 0, End: -1}}
	}
	sub := axis.NewUnchecked(global.Name, append([]axis.Label(nil), labels[loIdx:hiIdx+1]...))
	return sub, []Segment{{Start: loIdx, End: hiIdx}}
}

func resolveStorageSlice(global axis.Axis, i, j int) (axis.Axis, []Segment) {
	labels := global.Labels()
	if i < 0 {
		i = 0
	}
	if j > len(labels) {
		j = len(labels)
	}
	if i >= j {
		return axis.Empty(global.Name), []Segment{{Start: i, End: j - 1}}
	}
	sub := axis.NewUnchecked(global.Name, append([]axis.Label(nil), labels[i:j]...))
	return sub, []Segment{{Start: i, End: j - 1}}
}

func indexOf(labels []axis.Label, l axis.Label, from int) int {
	for i := from; i < len(labels); i++ {
		if labels[i] == l {
			return i
		}
	}
	return -1
}
