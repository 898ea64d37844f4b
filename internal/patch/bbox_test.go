package patch

import (
	"testing"

	"github.com/fenilsonani/stoicheia/internal/axis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundingBoxDeclaredAxisGetsTightRange(t *testing.T) {
	a := mustAxis(t, "a", []axis.Label{2, 4})
	p, err := New([]axis.Axis{a}, nil)
	require.NoError(t, err)

	globals := map[string]axis.Axis{"a": axis.Range("a", 0, 10)}
	box, err := p.BoundingBox(globals, []string{"a", "b", "c", "d"})
	require.NoError(t, err)
	assert.Equal(t, Segment{Min: 2, Max: 4}, box[0])
	assert.Equal(t, Segment{Min: 0, Max: openMax}, box[1])
}

func TestBoundingBoxUndeclaredAxisIsFullyOpen(t *testing.T) {
	a := mustAxis(t, "a", []axis.Label{0})
	p, err := New([]axis.Axis{a}, nil)
	require.NoError(t, err)

	globals := map[string]axis.Axis{"a": axis.Range("a", 0, 1)}
	box, err := p.BoundingBox(globals, []string{"a"})
	require.NoError(t, err)
	for dim := 1; dim < 4; dim++ {
		assert.Equal(t, Segment{Min: 0, Max: openMax}, box[dim])
	}
}

func TestBoundingBoxRejectsLabelMissingFromGlobalAxis(t *testing.T) {
	a := mustAxis(t, "a", []axis.Label{0, 5})
	p, err := New([]axis.Axis{a}, nil)
	require.NoError(t, err)

	globals := map[string]axis.Axis{"a": axis.Range("a", 0, 3)}
	_, err = p.BoundingBox(globals, []string{"a"})
	require.Error(t, err)
}
