package pipe

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer(t *testing.T) {
	b, err := NewBuffer(4)
	require.NoError(t, err)

	_, err = b.W.WriteString("hi")
	require.NoError(t, err)
	require.NoError(t, b.W.Close())
	<-b.Done

	assert.Equal(t, "hi", b.String())
	assert.False(t, b.Truncated())
	assert.Equal(t, "Buffer[2/4]", b.Stat())
}

func TestBufferTruncated(t *testing.T) {
	b, err := NewBuffer(4)
	require.NoError(t, err)

	_, err = b.W.WriteString(strings.Repeat("x", 1<<16))
	require.NoError(t, err)
	require.NoError(t, b.W.Close())
	<-b.Done

	assert.True(t, b.Truncated())
	assert.Equal(t, "xxxx", b.String())
}
