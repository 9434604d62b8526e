package ptracer

import (
	"context"
	"fmt"
	"runtime"
	"time"

	unix "golang.org/x/sys/unix"

	"github.com/zqzqsb/faultinj/runner"
)

// syscallExitStop 是 PTRACE_O_TRACESYSGOOD 下系统调用停止的信号
const syscallExitStop = unix.SIGTRAP | 0x80

// Trace 启动子进程并跟踪它及其后代，直到主进程退出或 c 结束
//
// ptrace 请求必须来自同一个线程，因此整个过程锁定在当前 OS 线程上。
// Runner.Start 也必须在这个线程上 fork。
func (t *Tracer) Trace(c context.Context) (result runner.Result) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	pgid, err := t.Runner.Start()
	t.Handler.Debug("tracer started:", pgid, err)
	if err != nil {
		result.Status = runner.StatusRunnerError
		result.Error = err.Error()
		return
	}
	return t.trace(c, pgid)
}

func (t *Tracer) trace(c context.Context, pgid int) (result runner.Result) {
	cc, cancel := context.WithCancel(c)
	defer cancel()

	// 取消时终止整个进程组，wait4 随之返回
	go func() {
		<-cc.Done()
		killAll(pgid)
	}()

	sTime := time.Now()
	ph := newPtraceHandle(t, pgid)

	defer func() {
		if err := recover(); err != nil {
			t.Handler.Debug("panic occurred:", err)
			result.Status = runner.StatusRunnerError
			result.Error = fmt.Sprintf("%v", err)
		}
		killAll(pgid)
		collectZombie(pgid)
		if !ph.fTime.IsZero() {
			result.SetUpTime = ph.fTime.Sub(sTime)
			result.RunningTime = time.Since(ph.fTime)
		}
	}()

	for {
		var (
			wstatus unix.WaitStatus
			rusage  unix.Rusage
			pid     int
			err     error
		)

		// exec 之前只有主进程，之后等待进程组中的任意任务
		if ph.execved {
			pid, err = unix.Wait4(-pgid, &wstatus, unix.WALL, &rusage)
		} else {
			pid, err = unix.Wait4(pgid, &wstatus, unix.WALL, &rusage)
		}

		if err == unix.EINTR {
			t.Handler.Debug("wait4 interrupted")
			continue
		}
		if err != nil {
			t.Handler.Debug("wait4 failed:", err)
			result.Status = runner.StatusRunnerError
			result.Error = err.Error()
			return
		}
		t.Handler.Debug("------ process:", pid, "------")

		if pid == pgid {
			result.Time = time.Duration(rusage.Utime.Nano())
			result.Memory = runner.Size(rusage.Maxrss << 10)
		}

		status, exitStatus, errStr, finished := ph.handle(pid, wstatus)
		if finished || status != runner.StatusNormal {
			result.Status = status
			result.ExitStatus = exitStatus
			result.Error = errStr
			return
		}
	}
}

func (ph *ptraceHandle) handle(pid int, wstatus unix.WaitStatus) (status runner.Status, exitStatus int, errStr string, finished bool) {
	status = runner.StatusNormal

	switch {
	case wstatus.Exited():
		delete(ph.traced, pid)
		delete(ph.held, pid)
		ph.Handler.Exited(pid)
		ph.Handler.Debug("process exited:", pid, "status:", wstatus.ExitStatus())

		if pid == ph.pgid {
			finished = true
			if ph.execved {
				exitStatus = wstatus.ExitStatus()
				if exitStatus != 0 {
					status = runner.StatusNonzeroExitStatus
				}
				return
			}
			status = runner.StatusRunnerError
			errStr = "child process exited before execve"
			return
		}

	case wstatus.Signaled():
		sig := wstatus.Signal()
		delete(ph.traced, pid)
		delete(ph.held, pid)
		ph.Handler.Exited(pid)
		ph.Handler.Debug("process terminated by signal:", pid, "signal:", sig)

		if pid == ph.pgid {
			finished = true
			status = runner.StatusSignalled
			exitStatus = int(sig)
			errStr = fmt.Sprintf("process killed by signal %d", sig)
			return
		}

	case wstatus.Stopped():
		first := !ph.traced[pid]
		if first {
			ph.traced[pid] = true
			ph.Handler.Debug("start tracing process:", pid)

			if err := setPtraceOption(pid); err != nil {
				ph.Handler.Debug("failed to set ptrace options:", err)
				status = runner.StatusRunnerError
				errStr = err.Error()
				return
			}
			if !ph.execved && pid == ph.pgid {
				ph.fTime = time.Now()
			}
		}

		resume := unix.PtraceCont
		sig := wstatus.StopSignal()
		switch {
		case sig == syscallExitStop:
			if err := ph.handleExit(pid); err != nil {
				ph.Handler.Debug("failed to handle syscall exit:", err)
			}
			sig = 0

		case sig == unix.SIGTRAP:
			switch event := wstatus.TrapCause(); event {
			case unix.PTRACE_EVENT_SECCOMP:
				observe, err := ph.handleTrap(pid)
				if err != nil {
					ph.Handler.Debug("failed to handle seccomp trap:", err)
					status = runner.StatusRunnerError
					if s, ok := err.(runner.Status); ok {
						status = s
					}
					errStr = fmt.Sprintf("failed to handle seccomp trap: %v", err)
					return
				}
				if observe {
					resume = unix.PtraceSyscall
				}

			case unix.PTRACE_EVENT_EXEC:
				ph.Handler.Debug("process exec event:", pid)
				ph.execved = true

			case unix.PTRACE_EVENT_CLONE, unix.PTRACE_EVENT_FORK, unix.PTRACE_EVENT_VFORK:
				child, err := unix.PtraceGetEventMsg(pid)
				if err != nil {
					ph.Handler.Debug("failed to get new task id:", err)
					break
				}
				ph.Handler.Debug("process clone/fork event:", pid, "->", child)
				ph.Handler.Forked(pid, int(child))
				if err := ph.announce(int(child)); err != nil {
					ph.Handler.Debug("failed to continue new task:", err)
				}

			default:
				ph.Handler.Debug("process trap:", pid, "event:", event)
			}
			sig = 0

		case first && sig == unix.SIGSTOP:
			// 新任务的初始停止可能先于父进程的 fork 事件到达，
			// 此时暂不恢复，等 Forked 复制完描述符记录后再继续
			if pid != ph.pgid && !ph.announced[pid] {
				ph.held[pid] = true
				return
			}
			delete(ph.announced, pid)
			sig = 0
		}

		if err := resume(pid, int(sig)); err != nil {
			// 任务可能已经被 SIGKILL 终止
			if err == unix.ESRCH {
				return
			}
			ph.Handler.Debug("failed to continue process:", err)
			status = runner.StatusRunnerError
			errStr = fmt.Sprintf("failed to continue process: %v", err)
			return
		}
	}
	return
}

// handleTrap 处理 seccomp 交出的系统调用，返回是否需要观察系统调用的返回
func (ph *ptraceHandle) handleTrap(pid int) (bool, error) {
	ctx, err := getTrapContext(pid)
	if err != nil {
		return false, err
	}
	switch ph.Handler.Handle(ctx) {
	case TraceBan:
		// 调用号设为 -1 跳过系统调用，返回值已写入寄存器
		// https://www.kernel.org/doc/Documentation/prctl/seccomp_filter.txt
		return false, ctx.skipSyscall()

	case TraceKill:
		return false, runner.StatusDisallowedSyscall

	case TraceObserve:
		return true, nil
	}
	return false, nil
}

// handleExit 处理 PtraceSyscall 之后的系统调用返回
func (ph *ptraceHandle) handleExit(pid int) error {
	ctx, err := getTrapContext(pid)
	if err != nil {
		return err
	}
	ph.Handler.HandleExit(ctx)
	return nil
}

// announce 记录已经通知过 Forked 的新任务，若它已在初始停止中等待则恢复运行
func (ph *ptraceHandle) announce(child int) error {
	if ph.held[child] {
		delete(ph.held, child)
		return unix.PtraceCont(child, 0)
	}
	ph.announced[child] = true
	return nil
}

// setPtraceOption 设置 ptrace 选项：跟踪 seccomp、exec 和所有新任务，
// 跟踪器退出时终止被跟踪进程，系统调用停止带 0x80 标记
func setPtraceOption(pid int) error {
	if err := unix.PtraceSetOptions(pid, unix.PTRACE_O_EXITKILL|
		unix.PTRACE_O_TRACECLONE|unix.PTRACE_O_TRACEFORK|unix.PTRACE_O_TRACEVFORK|
		unix.PTRACE_O_TRACEEXEC|unix.PTRACE_O_TRACESECCOMP|unix.PTRACE_O_TRACESYSGOOD); err != nil {
		return fmt.Errorf("failed to set ptrace options: %w", err)
	}
	return nil
}

// killAll 终止整个进程组
func killAll(pgid int) {
	unix.Kill(-pgid, unix.SIGKILL)
}

// collectZombie 回收已终止的任务
func collectZombie(pgid int) {
	var (
		wstatus unix.WaitStatus
		rusage  unix.Rusage
	)
	for {
		pid, err := unix.Wait4(-pgid, &wstatus, unix.WALL|unix.WNOHANG, &rusage)
		if err != nil || pid <= 0 {
			return
		}
	}
}

// ptraceHandle 保存一次跟踪的状态
//   - traced: 已设置过 ptrace 选项的任务
//   - execved: 主进程是否已经 execve
//   - fTime: 主进程第一次停止的时间
//   - announced / held: 新任务的 fork 事件和初始停止哪个先到
type ptraceHandle struct {
	*Tracer
	pgid      int
	traced    map[int]bool
	execved   bool
	fTime     time.Time
	announced map[int]bool
	held      map[int]bool
}

func newPtraceHandle(t *Tracer, pgid int) *ptraceHandle {
	return &ptraceHandle{
		Tracer:    t,
		pgid:      pgid,
		traced:    make(map[int]bool),
		announced: make(map[int]bool),
		held:      make(map[int]bool),
	}
}
