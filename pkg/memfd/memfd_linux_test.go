package memfd

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDupToMemfd(t *testing.T) {
	f, err := DupToMemfd("test", strings.NewReader("#!/bin/sh\necho hi\n"))
	if err != nil {
		t.Skipf("memfd unavailable: %v", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\necho hi\n", string(data))

	// 已密封为只读
	_, err = f.WriteAt([]byte("x"), 0)
	assert.Error(t, err)
}

func TestDupFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prog")
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0700))

	f, err := DupFile(path)
	if err != nil {
		t.Skipf("memfd unavailable: %v", err)
	}
	defer f.Close()

	// 原文件被修改后副本不变
	require.NoError(t, os.WriteFile(path, []byte("changed"), 0700))
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	_, err = DupFile(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
