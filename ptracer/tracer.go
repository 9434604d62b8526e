//go:build linux

// Package ptracer 使用 ptrace 跟踪子进程及其后代，在 seccomp 过滤器交出的系统调用上
// 调用 Handler 做出判定
package ptracer

// TraceAction 是 Handler 对一次系统调用的判定
type TraceAction int

const (
	// TraceAllow 让系统调用照常执行
	TraceAllow TraceAction = iota
	// TraceBan 跳过系统调用，返回值为 SetReturnValue 设置的值
	TraceBan
	// TraceKill 终止整个进程组
	TraceKill
	// TraceObserve 让系统调用执行，并在返回时调用 HandleExit
	TraceObserve
)

// Tracer 定义了一个 ptracer 实例
type Tracer struct {
	Handler
	Runner
}

// Runner 启动子进程
type Runner interface {
	// Start 启动子进程并返回 pid
	// 子进程应该已经 PTRACE_TRACEME 并在 execve 之前停止
	Start() (int, error)
}

// Handler 处理被跟踪进程的系统调用和生命周期事件
// 所有方法都在跟踪线程上调用
type Handler interface {
	// Handle 在 seccomp 交出系统调用时调用
	Handle(*Context) TraceAction

	// HandleExit 在 Handle 返回 TraceObserve 的系统调用返回时调用
	HandleExit(*Context)

	// Forked 在 fork、vfork 或 clone 产生新任务后调用
	Forked(parent, child int)

	// Exited 在任务退出或被信号终止后调用
	Exited(pid int)

	// Debug 输出调试信息
	Debug(v ...interface{})
}
