package patch

import (
	"github.com/fenilsonani/stoicheia/internal/axis"
	"github.com/fenilsonani/stoicheia/internal/stoierr"
)

// Merge unions the axes of all inputs and applies them in order onto a
// fresh NaN-filled target, so later patches win wherever they overlap
// earlier ones. All inputs must share the same axis name set; order may
// differ patch to patch.
func Merge(patches ...*Patch) (*Patch, error) {
	if len(patches) == 0 {
		return nil, stoierr.New(stoierr.InvalidValue, "merge requires at least one patch")
	}
	first := patches[0]
	for _, p := range patches[1:] {
		if !sameAxisNameSet(first.axes, p.axes) {
			return nil, stoierr.New(stoierr.MisalignedAxes, "merge operands don't share the same set of axis names")
		}
	}

	target := make([]axis.Axis, len(first.axes))
	for i, a := range first.axes {
		target[i] = a.Clone()
	}
	for _, p := range patches[1:] {
		for i := range target {
			j := indexByName(p.axes, target[i].Name)
			target[i].Union(p.axes[j])
		}
	}

	out, err := NewEmpty(target)
	if err != nil {
		return nil, err
	}
	for _, p := range patches {
		if err := out.Apply(p); err != nil {
			return nil, err
		}
	}
	return out, nil
}
