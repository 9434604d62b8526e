package forkexec

import (
	"syscall"

	"github.com/zqzqsb/faultinj/pkg/rlimit"
)

// Runner 描述如何启动一个被跟踪的子进程
type Runner struct {
	// Args 和 Env 用于 execve，Args[0] 是程序路径
	Args []string
	Env  []string

	// ExecFile 非 0 时使用 execveat(fd, "", ..., AT_EMPTY_PATH)
	ExecFile uintptr

	// RLimits 在子进程中通过 prlimit 设置
	RLimits []rlimit.RLimit

	// Files 是子进程的描述符表，Files[i] 会成为子进程的描述符 i
	// -1 表示关闭该描述符
	Files []uintptr

	// WorkDir 是子进程的工作目录，为空时继承
	WorkDir string

	// Seccomp 在 execve 之前加载
	Seccomp *syscall.SockFprog

	// SyncFunc 在子进程 execve 之前以其 pid 调用，返回错误时子进程被终止
	SyncFunc func(int) error

	// Ptrace 使子进程调用 ptrace(PTRACE_TRACEME)
	// 跟踪器需要调用 runtime.LockOSThread
	Ptrace bool

	// NoNewPrivs 设置 PR_SET_NO_NEW_PRIVS，加载 seccomp 时自动启用
	NoNewPrivs bool

	// StopBeforeSeccomp 在加载 seccomp 之前 kill(getpid(), SIGSTOP) 等待跟踪器
	// 同时启用 Ptrace 和 Seccomp 时自动启用
	StopBeforeSeccomp bool
}
