// Package forkexec 在 fork 出的子进程中完成描述符重定向、资源限制、ptrace 和 seccomp 设置后执行程序
package forkexec

import (
	"golang.org/x/sys/unix"
)

// syscall 包中缺少的常量
const (
	SECCOMP_SET_MODE_FILTER   = 1
	SECCOMP_FILTER_FLAG_TSYNC = 1
)

var (
	empty = []byte("\000")

	// etxtbsyRetryInterval 是 execve 遇到 ETXTBSY 时的重试间隔
	etxtbsyRetryInterval = unix.Timespec{
		Nsec: 1 * 1000 * 1000,
	}
)
