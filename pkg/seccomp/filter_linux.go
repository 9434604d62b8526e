// Package seccomp 保存已编译的 seccomp-bpf 过滤器，供子进程在 execve 前加载
package seccomp

import "syscall"

// Filter 是内核格式的 BPF 指令序列
type Filter []syscall.SockFilter

// SockFprog 返回 prctl(PR_SET_SECCOMP, SECCOMP_MODE_FILTER, prog) 使用的参数
// 空过滤器返回 nil
func (f Filter) SockFprog() *syscall.SockFprog {
	if len(f) == 0 {
		return nil
	}
	b := []syscall.SockFilter(f)
	return &syscall.SockFprog{
		Len:    uint16(len(b)),
		Filter: &b[0],
	}
}
