package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCommandSucceeds(t *testing.T) {
	useMem = true
	cmd := newCreateCommand()
	cmd.SetArgs([]string{"prices", "sku,day"})
	require.NoError(t, cmd.Execute())
}

func TestFetchUnknownQuiltErrors(t *testing.T) {
	useMem = true
	cmd := newFetchCommand()
	cmd.SetArgs([]string{"nope"})
	assert.Error(t, cmd.Execute())
}

func TestUntagOfUnknownTagIsANoOp(t *testing.T) {
	useMem = true
	cmd := newUntagCommand()
	cmd.SetArgs([]string{"nope", "latest"})
	assert.NoError(t, cmd.Execute())
}
