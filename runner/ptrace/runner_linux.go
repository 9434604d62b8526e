// Package ptrace 在系统调用层注入故障：用 seccomp 把文件相关的系统调用交给 ptrace 跟踪器，
// 由 fault.Engine 判定后跳过调用并写入 -errno，或让调用照常执行
package ptrace

import (
	"time"

	"github.com/zqzqsb/faultinj/fault"
	"github.com/zqzqsb/faultinj/pkg/logger"
	"github.com/zqzqsb/faultinj/pkg/rlimit"
)

// Runner 在跟踪下运行被测程序及其所有后代
type Runner struct {
	// Args 和 Env 传给 execve，Args[0] 必须是可执行文件路径
	Args []string
	Env  []string

	// WorkDir 为空时继承当前目录
	WorkDir string

	// ExecFile 非 0 时通过 execveat 执行该描述符
	ExecFile uintptr

	// Files[i] 成为被测程序的描述符 i
	Files []uintptr

	RLimits []rlimit.RLimit

	// Engine 判定每次被拦截的调用
	Engine *fault.Engine

	Logger *logger.Logger

	// ShowDetails 输出跟踪器的调试信息
	ShowDetails bool

	// Sleep 用于执行延迟规则，nil 时使用 time.Sleep
	// 延迟期间跟踪器不处理其他任务的停止
	Sleep func(time.Duration)

	// SyncFunc 在被测程序 execve 之前以其 pid 调用
	SyncFunc func(pid int) error
}
