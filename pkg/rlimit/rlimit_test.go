package rlimit

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareRLimit(t *testing.T) {
	r := RLimits{CPU: 2, OpenFile: 16, DisableCore: true}
	got := r.PrepareRLimit()
	require.Len(t, got, 3)

	assert.Equal(t, syscall.RLIMIT_CPU, got[0].Res)
	assert.Equal(t, uint64(2), got[0].Rlim.Cur)
	assert.Equal(t, uint64(3), got[0].Rlim.Max)
	assert.Equal(t, "OpenFile[16]", got[1].String())
	assert.Equal(t, "Core[0]", got[2].String())

	assert.Equal(t, "RLimits{CPU=2, OpenFile=16, DisableCore=true}", r.String())
	assert.Empty(t, (&RLimits{}).PrepareRLimit())
}
