package ptrace

import (
	"github.com/shirou/gopsutil/process"
)

// owners 把任务 id 映射到线程组 id
// 同一线程组共享描述符表，描述符记录按线程组保存
type owners struct {
	tgid   map[int]int
	lookup func(pid int) (int, error)
}

func newOwners() *owners {
	return &owners{
		tgid:   make(map[int]int),
		lookup: procTgid,
	}
}

// Owner 返回 pid 所属的线程组，查询失败时当作独立进程
func (o *owners) Owner(pid int) int {
	if t, ok := o.tgid[pid]; ok {
		return t
	}
	t, err := o.lookup(pid)
	if err != nil || t <= 0 {
		t = pid
	}
	o.tgid[pid] = t
	return t
}

// Remove 删除 pid 的记录，返回它所属的线程组
func (o *owners) Remove(pid int) int {
	t := o.Owner(pid)
	delete(o.tgid, pid)
	return t
}

func procTgid(pid int) (int, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return 0, err
	}
	t, err := p.Tgid()
	return int(t), err
}
