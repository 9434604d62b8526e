package fault

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func newTestEngine(kv map[string]string) (*Engine, *MapProvider) {
	p := NewMapProvider(kv)
	return NewEngine(p, nil), p
}

func TestDecideNoRule(t *testing.T) {
	e, _ := newTestEngine(nil)
	for _, c := range Categories() {
		d := e.Decide(CallContext{Category: c, Path: "./thisfile.txt", FD: 3})
		assert.False(t, d.Inject, c.String())
		assert.Zero(t, d.Delay, c.String())
	}
}

func TestDecidePathMatch(t *testing.T) {
	e, _ := newTestEngine(map[string]string{
		EnvErrorPath:  "./thisfile.txt",
		ErrnoKey(Open): "2",
		ErrnoKey(Stat): "EACCES",
	})

	d := e.Decide(CallContext{Category: Open, Path: "./thisfile.txt"})
	require.True(t, d.Inject)
	assert.Equal(t, unix.ENOENT, d.Errno)
	assert.Equal(t, Open, d.Rule.Category)

	d = e.Decide(CallContext{Category: Stat, Path: "./thisfile.txt"})
	require.True(t, d.Inject)
	assert.Equal(t, unix.EACCES, d.Errno)

	// 不做路径规范化
	for _, p := range []string{"thisfile.txt", "./thisfile.txt/", "./other.txt", ""} {
		d = e.Decide(CallContext{Category: Open, Path: p})
		assert.False(t, d.Inject, p)
	}
}

func TestDecideDescriptorMarks(t *testing.T) {
	e, p := newTestEngine(map[string]string{
		EnvErrorPath:   "/data/x",
		ErrnoKey(Read):  "5",
		ErrnoKey(Close): "9",
	})

	e.Opened(0, "/data/y", 3)
	e.Opened(0, "/data/x", 4)

	assert.False(t, e.Decide(CallContext{Category: Read, FD: 3}).Inject)
	d := e.Decide(CallContext{Category: Read, FD: 4})
	require.True(t, d.Inject)
	assert.Equal(t, unix.EIO, d.Errno)

	// 其他进程的同号描述符不受影响
	assert.False(t, e.Decide(CallContext{Category: Read, FD: 4, Owner: 42}).Inject)

	// 没有 write 规则
	assert.False(t, e.Decide(CallContext{Category: Write, FD: 4}).Inject)

	e.Duplicated(0, 4, 10)
	assert.True(t, e.Decide(CallContext{Category: Read, FD: 10}).Inject)

	e.Duplicated(0, 3, 10)
	assert.False(t, e.Decide(CallContext{Category: Read, FD: 10}).Inject)

	e.Forked(0, 42)
	assert.True(t, e.Decide(CallContext{Category: Read, FD: 4, Owner: 42}).Inject)
	e.Forget(42)
	assert.False(t, e.Decide(CallContext{Category: Read, FD: 4, Owner: 42}).Inject)

	assert.True(t, e.Decide(CallContext{Category: Close, FD: 4}).Inject)
	e.Closed(0, 4)
	assert.False(t, e.Decide(CallContext{Category: Read, FD: 4}).Inject)

	// 描述符号复用时覆盖旧记录
	e.Opened(0, "/data/x", 5)
	e.Opened(0, "/data/z", 5)
	assert.False(t, e.Decide(CallContext{Category: Read, FD: 5}).Inject)

	// 规则移除后不再命中
	e.Opened(0, "/data/x", 6)
	p.Unset(ErrnoKey(Read))
	assert.False(t, e.Decide(CallContext{Category: Read, FD: 6}).Inject)
}

func TestDecideLikelihood(t *testing.T) {
	e, p := newTestEngine(map[string]string{
		EnvErrorPath:   "./f",
		ErrnoKey(Open): "2",
		EnvLikelihood:  "0",
	})
	e.Rand = func() float64 { return 0 }
	assert.False(t, e.Decide(CallContext{Category: Open, Path: "./f"}).Inject)

	p.Set(EnvLikelihood, "30")
	e.Rand = func() float64 { return 29.9 }
	assert.True(t, e.Decide(CallContext{Category: Open, Path: "./f"}).Inject)
	e.Rand = func() float64 { return 30 }
	assert.False(t, e.Decide(CallContext{Category: Open, Path: "./f"}).Inject)

	p.Set(EnvLikelihood, "100")
	e.Rand = func() float64 { t.Fatal("rand must not be consulted at 100%"); return 0 }
	assert.True(t, e.Decide(CallContext{Category: Open, Path: "./f"}).Inject)
}

func TestDecideDelay(t *testing.T) {
	e, p := newTestEngine(map[string]string{
		EnvDelayPath:   "./slow",
		DelayKey(Read): "25",
	})

	d := e.Decide(CallContext{Category: Open, Path: "./slow"})
	assert.False(t, d.Inject)
	assert.Equal(t, DefaultDelay, d.Delay)

	assert.Zero(t, e.Decide(CallContext{Category: Open, Path: "./fast"}).Delay)

	e.Opened(0, "./slow", 7)
	assert.Equal(t, 25*time.Millisecond, e.Decide(CallContext{Category: Read, FD: 7}).Delay)
	assert.Zero(t, e.Decide(CallContext{Category: Read, FD: 8}).Delay)

	// 延迟和注入可以同时命中
	p.Set(EnvErrorPath, "./slow")
	p.Set(ErrnoKey(Read), "5")
	e.Opened(0, "./slow", 7)
	d = e.Decide(CallContext{Category: Read, FD: 7})
	assert.True(t, d.Inject)
	assert.Equal(t, 25*time.Millisecond, d.Delay)
}

func TestDecideRetargetedPath(t *testing.T) {
	e, p := newTestEngine(map[string]string{
		EnvErrorPath:   "./a.txt",
		ErrnoKey(Read): "5",
	})
	e.Opened(0, "./a.txt", 3)
	e.Opened(0, "./b.txt", 4)
	require.True(t, e.Decide(CallContext{Category: Read, FD: 3}).Inject)

	// 规则指向新路径后，旧路径上的描述符不再命中，新路径上已打开的描述符立即命中
	p.Set(EnvErrorPath, "./b.txt")
	assert.False(t, e.Decide(CallContext{Category: Read, FD: 3}).Inject)
	assert.True(t, e.Decide(CallContext{Category: Read, FD: 4}).Inject)

	p.Set(EnvDelayPath, "./b.txt")
	assert.Equal(t, DefaultDelay, e.Decide(CallContext{Category: Read, FD: 4}).Delay)
	p.Set(EnvDelayPath, "./a.txt")
	assert.Equal(t, DefaultDelay, e.Decide(CallContext{Category: Read, FD: 3}).Delay)
	assert.Zero(t, e.Decide(CallContext{Category: Read, FD: 4}).Delay)
}

func TestDecideReusedDescriptor(t *testing.T) {
	e, _ := newTestEngine(map[string]string{
		EnvErrorPath:   "./thisfile.txt",
		ErrnoKey(Read): "EIO",
	})
	files := map[int]FileID{3: {Dev: 1, Ino: 10}}
	e = e.WithIdentify(func(owner, fd int) (FileID, error) {
		id, ok := files[fd]
		if !ok {
			return FileID{}, unix.EBADF
		}
		return id, nil
	})

	e.Opened(0, "./thisfile.txt", 3)
	require.True(t, e.Decide(CallContext{Category: Read, FD: 3}).Inject)

	// 描述符在未拦截的调用中被关闭，编号又分配给了管道
	files[3] = FileID{Dev: 9, Ino: 77}
	assert.False(t, e.Decide(CallContext{Category: Read, FD: 3}).Inject)
	assert.Equal(t, 0, e.FDs.Len(0))

	// 身份无法确认时同样不注入
	files[5] = FileID{Dev: 1, Ino: 10}
	e.Opened(0, "./thisfile.txt", 5)
	delete(files, 5)
	assert.False(t, e.Decide(CallContext{Category: Read, FD: 5}).Inject)
}

func TestClosedRange(t *testing.T) {
	e, _ := newTestEngine(map[string]string{
		EnvErrorPath:   "./f",
		ErrnoKey(Read): "EIO",
	})
	for fd := 3; fd < 8; fd++ {
		e.Opened(0, "./f", fd)
	}
	e.Opened(1, "./f", 4)

	e.ClosedRange(0, 4, 6)
	assert.True(t, e.Decide(CallContext{Category: Read, FD: 3}).Inject)
	for fd := 4; fd <= 6; fd++ {
		assert.False(t, e.Decide(CallContext{Category: Read, FD: fd}).Inject, fd)
	}
	assert.True(t, e.Decide(CallContext{Category: Read, FD: 7}).Inject)
	assert.True(t, e.Decide(CallContext{Category: Read, FD: 4, Owner: 1}).Inject)

	e.ClosedRange(0, 0, math.MaxInt)
	assert.Equal(t, 0, e.FDs.Len(0))
}

func TestFDTable(t *testing.T) {
	tab := NewFDTable()
	tab.Set(1, -1, FDEntry{Path: "/x"})
	assert.Equal(t, 0, tab.Len(1))

	tab.Set(1, 3, FDEntry{Path: "/x"})
	e, ok := tab.Get(1, 3)
	require.True(t, ok)
	assert.Equal(t, "/x", e.Path)
	_, ok = tab.Get(2, 3)
	assert.False(t, ok)

	tab.Copy(1, 3, 3)
	assert.Equal(t, 1, tab.Len(1))

	tab.Copy(1, 3, 4)
	e, ok = tab.Get(1, 4)
	require.True(t, ok)
	assert.Equal(t, "/x", e.Path)

	tab.Copy(1, 9, 4)
	_, ok = tab.Get(1, 4)
	assert.False(t, ok)

	tab.Set(1, 3, FDEntry{})
	assert.Equal(t, 0, tab.Len(1))

	tab.Fork(1, 2)
	assert.Equal(t, 0, tab.Len(2))
}
