package fault

import "sync"

// FileID 是打开文件的身份（设备号和 inode）
type FileID struct {
	Dev uint64
	Ino uint64
}

// IdentifyFunc 返回 owner 中描述符 fd 当前指向的文件
type IdentifyFunc func(owner, fd int) (FileID, error)

// FDEntry 记录描述符是在哪个路径上打开的
// HasID 为 true 时 ID 是打开时的文件身份，用来发现描述符已被其他调用关闭并复用
type FDEntry struct {
	Path  string
	ID    FileID
	HasID bool
}

// FDTable 记录每个进程中描述符的打开路径
// 描述符类调用（read、write、close ...）没有路径参数，
// 按打开时的路径与当前规则比较
type FDTable struct {
	mu     sync.RWMutex
	owners map[int]map[int]FDEntry
}

// NewFDTable 创建空表
func NewFDTable() *FDTable {
	return &FDTable{owners: make(map[int]map[int]FDEntry)}
}

// Set 覆盖描述符的记录，Path 为空时删除
func (t *FDTable) Set(owner, fd int, e FDEntry) {
	if fd < 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if e.Path == "" {
		t.deleteLocked(owner, fd)
		return
	}
	fds := t.owners[owner]
	if fds == nil {
		fds = make(map[int]FDEntry)
		t.owners[owner] = fds
	}
	fds[fd] = e
}

// Get 返回描述符的记录
func (t *FDTable) Get(owner, fd int) (FDEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.owners[owner][fd]
	return e, ok
}

// Delete 删除描述符的记录
func (t *FDTable) Delete(owner, fd int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deleteLocked(owner, fd)
}

// DeleteRange 删除 [first, last] 范围内的记录（close_range 语义）
func (t *FDTable) DeleteRange(owner, first, last int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for fd := range t.owners[owner] {
		if fd >= first && fd <= last {
			t.deleteLocked(owner, fd)
		}
	}
}

func (t *FDTable) deleteLocked(owner, fd int) {
	fds := t.owners[owner]
	if fds == nil {
		return
	}
	delete(fds, fd)
	if len(fds) == 0 {
		delete(t.owners, owner)
	}
}

// Copy 把 oldfd 的记录复制到 newfd（dup 语义），oldfd 没有记录时清除 newfd
func (t *FDTable) Copy(owner, oldfd, newfd int) {
	if oldfd == newfd {
		return
	}
	e, _ := t.Get(owner, oldfd)
	t.Set(owner, newfd, e)
}

// Fork 把 parent 的全部记录复制给 child（fork 后描述符表被复制）
func (t *FDTable) Fork(parent, child int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	src := t.owners[parent]
	if len(src) == 0 {
		return
	}
	dst := make(map[int]FDEntry, len(src))
	for fd, e := range src {
		dst[fd] = e
	}
	t.owners[child] = dst
}

// Forget 删除 owner 的全部记录
func (t *FDTable) Forget(owner int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.owners, owner)
}

// Len 返回 owner 的记录数量
func (t *FDTable) Len(owner int) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.owners[owner])
}
