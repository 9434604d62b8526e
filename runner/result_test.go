package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		r    Result
		want int
	}{
		{Result{Status: StatusNormal}, 0},
		{Result{Status: StatusNonzeroExitStatus, ExitStatus: 2}, 2},
		{Result{Status: StatusSignalled, ExitStatus: 9}, 137},
		{Result{Status: StatusRunnerError, Error: "boom"}, 1},
		{Result{Status: StatusDisallowedSyscall}, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.r.ExitCode(), tt.r.String())
	}
}

func TestStatus(t *testing.T) {
	assert.Equal(t, "signalled", StatusSignalled.String())
	assert.Equal(t, "invalid", Status(42).String())
	var err error = StatusRunnerError
	assert.EqualError(t, err, "runner error")
}

func TestSize(t *testing.T) {
	assert.Equal(t, "512 B", Size(512).String())
	assert.Equal(t, "1.5 KiB", Size(1536).String())
	assert.Equal(t, "2.0 MiB", Size(2<<20).String())
	assert.Equal(t, uint64(2), Size(2048).KiB())
}
