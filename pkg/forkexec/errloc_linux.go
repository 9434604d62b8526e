package forkexec

import (
	"fmt"
	"syscall"
)

// ErrorLocation 是子进程在哪一步失败
type ErrorLocation int

// ChildError 是子进程通过管道报告的错误
type ChildError struct {
	Err      syscall.Errno
	Location ErrorLocation
	Index    int
}

// 按子进程执行顺序排列
const (
	LocClone ErrorLocation = iota + 1
	LocCloseWrite
	LocGetPid
	LocDup3
	LocFcntl
	LocSetSid
	LocChdir
	LocSetRlimit
	LocSetNoNewPrivs
	LocPtraceMe
	LocStop
	LocSeccomp
	LocSyncWrite
	LocSyncRead
	LocExecve
)

var locToString = []string{
	"unknown",
	"clone",
	"close_write",
	"getpid",
	"dup3",
	"fcntl",
	"setsid",
	"chdir",
	"setrlimit",
	"set_no_new_privs",
	"ptrace_me",
	"stop",
	"seccomp",
	"sync_write",
	"sync_read",
	"execve",
}

func (e ErrorLocation) String() string {
	if e >= LocClone && e <= LocExecve {
		return locToString[e]
	}
	return "unknown"
}

func (e ChildError) Error() string {
	if e.Index > 0 {
		return fmt.Sprintf("%s(%d): %s", e.Location.String(), e.Index, e.Err.Error())
	}
	return fmt.Sprintf("%s: %s", e.Location.String(), e.Err.Error())
}

// Unwrap 返回系统调用错误码，便于 errors.Is(err, syscall.ENOENT)
func (e ChildError) Unwrap() error {
	return e.Err
}
