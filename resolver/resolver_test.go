package resolver

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/zqzqsb/faultinj/fault"
)

func TestResolveOnce(t *testing.T) {
	var calls [fault.NumCategories]atomic.Int32
	r := New(func(c fault.Category) (string, error) {
		calls[c].Add(1)
		return "real_" + c.Symbol(), nil
	})

	assert.False(t, r.Resolved(fault.Open))

	var g errgroup.Group
	for i := 0; i < 64; i++ {
		c := fault.Categories()[i%int(fault.NumCategories)]
		g.Go(func() error {
			if got := r.Resolve(c); got != "real_"+c.Symbol() {
				return errors.New("unexpected value " + got)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for _, c := range fault.Categories() {
		assert.True(t, r.Resolved(c), c.String())
		assert.Equal(t, int32(1), calls[c].Load(), c.String())
	}

	// 之后的调用不再查找
	r.Resolve(fault.Read)
	assert.Equal(t, int32(1), calls[fault.Read].Load())
}

func TestResolveFatal(t *testing.T) {
	lookupErr := errors.New("symbol not found")
	var calls atomic.Int32
	r := New(func(c fault.Category) (int, error) {
		calls.Add(1)
		return 0, lookupErr
	})

	for i := 0; i < 2; i++ {
		func() {
			defer func() {
				p := recover()
				require.NotNil(t, p)
				e, ok := p.(*Error)
				require.True(t, ok, "panic value %T", p)
				assert.Equal(t, fault.Stat, e.Category)
				assert.Equal(t, "newfstatat", e.Symbol)
				assert.ErrorIs(t, e, lookupErr)
			}()
			r.Resolve(fault.Stat)
		}()
	}
	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, r.Resolved(fault.Stat))

	_, err := r.TryResolve(fault.Stat)
	var re *Error
	require.ErrorAs(t, err, &re)
	assert.Equal(t, fault.Stat, re.Category)
}

func TestResolveInvalid(t *testing.T) {
	r := New(func(c fault.Category) (int, error) { return 1, nil })
	assert.Panics(t, func() { r.Resolve(fault.Category(-1)) })
	assert.False(t, r.Resolved(fault.Category(99)))
}

func TestSyscalls(t *testing.T) {
	r := Syscalls()
	assert.Same(t, r, Syscalls())
	for _, c := range fault.Categories() {
		no, err := r.TryResolve(c)
		require.NoError(t, err, c.String())
		again := r.Resolve(c)
		assert.Equal(t, no, again)
	}
}
