package ptrace

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/zqzqsb/faultinj/fault"
	"github.com/zqzqsb/faultinj/pkg/logger"
	"github.com/zqzqsb/faultinj/pkg/seccomp/libseccomp"
	"github.com/zqzqsb/faultinj/ptracer"
)

// pendingCall 是等待返回的系统调用
// open 和 dup 的返回值是新的描述符，close_range 成功后清除 [FD, last] 的记录
type pendingCall struct {
	fault.CallContext

	closeRange bool
	last       int
}

// tracerHandler 实现 ptracer.Handler
// 所有方法都在跟踪线程上调用，不需要加锁
type tracerHandler struct {
	Engine      *fault.Engine
	Logger      *logger.Logger
	ShowDetails bool
	Sleep       func(time.Duration)

	owners  *owners
	pending map[int]pendingCall

	injected int
	delayed  int
}

func newTracerHandler(r *Runner) *tracerHandler {
	e := r.Engine
	if e != nil {
		e = e.WithIdentify(procFileID)
	}
	return &tracerHandler{
		Engine:      e,
		Logger:      logger.OrNoop(r.Logger),
		ShowDetails: r.ShowDetails,
		Sleep:       r.Sleep,
		owners:      newOwners(),
		pending:     make(map[int]pendingCall),
	}
}

// Debug 在 ShowDetails 时输出
func (h *tracerHandler) Debug(v ...interface{}) {
	if h.ShowDetails {
		h.Logger.Debugv(v...)
	}
}

func (h *tracerHandler) sleep(d time.Duration) {
	if h.Sleep != nil {
		h.Sleep(d)
		return
	}
	time.Sleep(d)
}

// callContext 从寄存器中取出调用参数
func (h *tracerHandler) callContext(ctx *ptracer.Context, args syscallArgs) fault.CallContext {
	cc := fault.CallContext{
		Category: args.category,
		FD:       -1,
		Owner:    h.owners.Owner(ctx.Pid),
	}
	if args.path >= 0 {
		cc.Path = ctx.GetString(uintptr(ctx.Arg(args.path)))
	}
	if args.fd >= 0 {
		// 描述符是 int，高 32 位没有意义
		cc.FD = int(int32(ctx.Arg(args.fd)))
	}
	return cc
}

// Handle 处理 seccomp 交出的系统调用
func (h *tracerHandler) Handle(ctx *ptracer.Context) ptracer.TraceAction {
	name, err := libseccomp.ToSyscallName(ctx.SyscallNo())
	if err != nil {
		h.Debug("unknown syscall:", ctx.SyscallNo(), err)
		return ptracer.TraceAllow
	}
	args, ok := syscallTable[name]
	if !ok {
		return h.track(ctx, name)
	}

	cc := h.callContext(ctx, args)
	h.Debug("syscall:", name, cc.Path, cc.FD, "owner", cc.Owner)

	d := h.Engine.Decide(cc)
	log := h.Logger.WithPid(ctx.Pid)
	if d.Delay > 0 {
		h.delayed++
		log.LogDelayed(cc.Category.String(), cc.Path, cc.FD, d.Delay.Milliseconds())
		h.sleep(d.Delay)
	}
	if d.Inject {
		h.injected++
		log.LogInjected(cc.Category.String(), cc.Path, cc.FD, fault.ErrnoName(d.Errno))
		ctx.SetReturnValue(fault.ReturnRegister(d.Errno))
		return ptracer.TraceBan
	}

	switch cc.Category {
	case fault.Open, fault.Dup:
		h.pending[ctx.Pid] = pendingCall{CallContext: cc}
		return ptracer.TraceObserve

	case fault.Close:
		// close 失败时描述符同样被释放，EBADF 时记录本来就不存在
		h.Engine.Closed(cc.Owner, cc.FD)
	}
	return ptracer.TraceAllow
}

// track 处理只影响描述符记录的系统调用
func (h *tracerHandler) track(ctx *ptracer.Context, name string) ptracer.TraceAction {
	// 参数是 unsigned int，高 32 位没有意义
	arg := func(i int) int { return int(uint32(ctx.Arg(i))) }

	switch name {
	case "close_range":
		if arg(2)&closeRangeCloexec != 0 {
			return ptracer.TraceAllow
		}
		h.pending[ctx.Pid] = pendingCall{
			CallContext: fault.CallContext{FD: arg(0), Owner: h.owners.Owner(ctx.Pid)},
			closeRange:  true,
			last:        arg(1),
		}
		return ptracer.TraceObserve

	case "fcntl":
		if cmd := arg(1); cmd != unix.F_DUPFD && cmd != unix.F_DUPFD_CLOEXEC {
			return ptracer.TraceAllow
		}
		h.pending[ctx.Pid] = pendingCall{CallContext: fault.CallContext{
			Category: fault.Dup,
			FD:       int(int32(ctx.Arg(0))),
			Owner:    h.owners.Owner(ctx.Pid),
		}}
		return ptracer.TraceObserve
	}
	return ptracer.TraceAllow
}

// HandleExit 在 open、dup 或 close_range 返回后维护描述符记录
func (h *tracerHandler) HandleExit(ctx *ptracer.Context) {
	p, ok := h.pending[ctx.Pid]
	if !ok {
		return
	}
	delete(h.pending, ctx.Pid)

	fd := ctx.ReturnValue()
	h.Debug("syscall return:", p.Category, fd)
	if fd < 0 {
		return
	}
	if p.closeRange {
		h.Engine.ClosedRange(p.Owner, p.FD, p.last)
		return
	}
	switch p.Category {
	case fault.Open:
		h.Engine.Opened(p.Owner, p.Path, fd)
	case fault.Dup:
		h.Engine.Duplicated(p.Owner, p.FD, fd)
	}
}

// Forked 在新任务不共享线程组时复制父进程的描述符记录
func (h *tracerHandler) Forked(parent, child int) {
	po := h.owners.Owner(parent)
	co := h.owners.Owner(child)
	if po == co {
		return
	}
	h.Debug("fork:", po, "->", co)
	h.Engine.Forked(po, co)
}

// Exited 在线程组首任务退出时清除该进程的记录
func (h *tracerHandler) Exited(pid int) {
	delete(h.pending, pid)
	if owner := h.owners.Remove(pid); owner == pid {
		h.Engine.Forget(owner)
	}
}
