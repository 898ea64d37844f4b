package patch

import (
	"math"
	"testing"

	"github.com/fenilsonani/stoicheia/internal/axis"
	"github.com/fenilsonani/stoicheia/internal/stoierr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustAxis(t *testing.T, name string, labels []axis.Label) axis.Axis {
	t.Helper()
	a, err := axis.New(name, labels)
	require.NoError(t, err)
	return a
}

func TestNewRejectsBadRank(t *testing.T) {
	_, err := New(nil, nil)
	require.Error(t, err)
	assert.True(t, stoierr.Is(err, stoierr.InvalidValue))

	axes := make([]axis.Axis, 5)
	for i := range axes {
		axes[i] = mustAxis(t, string(rune('a'+i)), []axis.Label{0})
	}
	_, err = New(axes, nil)
	require.Error(t, err)
	assert.True(t, stoierr.Is(err, stoierr.InvalidValue))
}

func TestNewRejectsOversizedPatch(t *testing.T) {
	big := axis.Range("a", 0, MaxElements/2+1)
	other := axis.Range("b", 0, 2)
	_, err := New([]axis.Axis{big, other}, nil)
	require.Error(t, err)
	assert.True(t, stoierr.Is(err, stoierr.TooLarge))
}

func TestNewEmptyIsAllNaN(t *testing.T) {
	a := mustAxis(t, "a", []axis.Label{1, 2, 3})
	p, err := NewEmpty([]axis.Axis{a})
	require.NoError(t, err)
	for _, v := range p.Dense() {
		assert.True(t, math.IsNaN(float64(v)))
	}
}

func TestApplyOverwritesOnlyNonNaNCells(t *testing.T) {
	a := mustAxis(t, "a", []axis.Label{1, 2, 3})
	target, err := New([]axis.Axis{a}, []float32{10, 20, 30})
	require.NoError(t, err)

	nan := float32(math.NaN())
	source, err := New([]axis.Axis{a}, []float32{nan, 99, nan})
	require.NoError(t, err)

	require.NoError(t, target.Apply(source))
	assert.Equal(t, []float32{10, 99, 30}, target.Dense())
}

func TestApplyPermutesMismatchedAxisOrder(t *testing.T) {
	a := mustAxis(t, "a", []axis.Label{1, 2})
	b := mustAxis(t, "b", []axis.Label{10, 20})
	target, err := New([]axis.Axis{a, b}, []float32{1, 2, 3, 4})
	require.NoError(t, err)

	bRev := mustAxis(t, "b", []axis.Label{10, 20})
	aRev := mustAxis(t, "a", []axis.Label{1, 2})
	source, err := New([]axis.Axis{bRev, aRev}, []float32{100, 200, 300, 400})
	require.NoError(t, err)

	require.NoError(t, target.Apply(source))
	assert.Equal(t, []float32{100, 300, 200, 400}, target.Dense())
}

func TestApplyRejectsMisalignedAxisNames(t *testing.T) {
	a := mustAxis(t, "a", []axis.Label{1, 2})
	b := mustAxis(t, "b", []axis.Label{1, 2})
	target, err := New([]axis.Axis{a}, nil)
	require.NoError(t, err)
	source, err := New([]axis.Axis{b}, nil)
	require.NoError(t, err)

	err = target.Apply(source)
	require.Error(t, err)
	assert.True(t, stoierr.Is(err, stoierr.MisalignedAxes))
}

func TestApplyIgnoresLabelsOutsideTarget(t *testing.T) {
	a := mustAxis(t, "a", []axis.Label{1, 2})
	target, err := New([]axis.Axis{a}, []float32{10, 20})
	require.NoError(t, err)

	aSrc := mustAxis(t, "a", []axis.Label{2, 3})
	source, err := New([]axis.Axis{aSrc}, []float32{200, 300})
	require.NoError(t, err)

	require.NoError(t, target.Apply(source))
	assert.Equal(t, []float32{10, 200}, target.Dense())
}
