package fault

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

const testRuleFile = `
error_path: ./thisfile.txt
likelihood_pct: 50
errno:
  open: ENOENT
  read: 5
delay_path: ./slow.txt
delay_ms:
  read: 50
`

func TestParseRuleFile(t *testing.T) {
	f, err := ParseRuleFile([]byte(testRuleFile))
	require.NoError(t, err)

	kv := f.Keys()
	assert.Equal(t, "./thisfile.txt", kv[EnvErrorPath])
	assert.Equal(t, "50", kv[EnvLikelihood])
	assert.Equal(t, "ENOENT", kv[ErrnoKey(Open)])
	assert.Equal(t, "5", kv[ErrnoKey(Read)])
	assert.Equal(t, "./slow.txt", kv[EnvDelayPath])
	assert.Equal(t, "50", kv[DelayKey(Read)])
	_, ok := kv[ErrnoKey(Write)]
	assert.False(t, ok)

	_, err = ParseRuleFile([]byte("errno:\n  mmap: 1\n"))
	assert.Error(t, err)

	_, err = ParseRuleFile([]byte("errno: [\n"))
	assert.Error(t, err)
}

func TestFileProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testRuleFile), 0644))

	p, err := NewFileProvider(path, nil)
	require.NoError(t, err)
	defer p.Close()

	r := NewReader(p)
	rule, ok := r.CurrentRule(Open)
	require.True(t, ok)
	assert.Equal(t, unix.ENOENT, rule.Errno)
	assert.Equal(t, 50.0, r.Likelihood())

	require.NoError(t, os.WriteFile(path, []byte("error_path: ./other\nerrno:\n  stat: EACCES\n"), 0644))
	require.NoError(t, p.Load())

	_, ok = r.CurrentRule(Open)
	assert.False(t, ok)
	rule, ok = r.CurrentRule(Stat)
	require.True(t, ok)
	assert.Equal(t, "./other", rule.Path)
	assert.Equal(t, DefaultLikelihoodPct, r.Likelihood())

	// 解析失败时保留上一次的内容
	require.NoError(t, os.WriteFile(path, []byte("errno: [\n"), 0644))
	assert.Error(t, p.Load())
	_, ok = r.CurrentRule(Stat)
	assert.True(t, ok)
}

func TestFileProviderMissing(t *testing.T) {
	_, err := NewFileProvider(filepath.Join(t.TempDir(), "none.yaml"), nil)
	assert.Error(t, err)
}

func TestFileProviderWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("error_path: ./a\nerrno:\n  open: 2\n"), 0644))

	p, err := NewFileProvider(path, nil)
	require.NoError(t, err)
	p.Debounce = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, p.Watch(ctx))
	defer p.Close()

	r := NewReader(p)
	require.Equal(t, "./a", r.ErrorPath())

	require.NoError(t, os.WriteFile(path, []byte("error_path: ./b\nerrno:\n  open: 2\n"), 0644))
	assert.Eventually(t, func() bool {
		return r.ErrorPath() == "./b"
	}, 5*time.Second, 20*time.Millisecond)
}

func TestFileProviderNoReloadAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("error_path: ./a\nerrno:\n  open: 2\n"), 0644))

	p, err := NewFileProvider(path, nil)
	require.NoError(t, err)
	p.Debounce = 20 * time.Millisecond
	require.NoError(t, p.Watch(context.Background()))

	r := NewReader(p)
	require.NoError(t, os.WriteFile(path, []byte("error_path: ./b\nerrno:\n  open: 2\n"), 0644))
	require.NoError(t, p.Close())

	seen := r.ErrorPath()
	time.Sleep(5 * p.Debounce)
	assert.Equal(t, seen, r.ErrorPath())

	// 关闭后仍可手动加载
	require.NoError(t, p.Load())
	assert.Equal(t, "./b", r.ErrorPath())
}
