package ptrace

import (
	"context"
	"fmt"

	"github.com/zqzqsb/faultinj/pkg/forkexec"
	"github.com/zqzqsb/faultinj/pkg/seccomp"
	"github.com/zqzqsb/faultinj/pkg/seccomp/libseccomp"
	"github.com/zqzqsb/faultinj/ptracer"
	"github.com/zqzqsb/faultinj/runner"
)

var _ runner.Runner = (*Runner)(nil)

// BuildFilter 编译只拦截文件相关系统调用的过滤器，其余调用直接执行
// 当前架构没有的系统调用被忽略
func BuildFilter() (seccomp.Filter, []string, error) {
	filter, missing, err := libseccomp.TraceOnly(trappedSyscalls())
	if err != nil {
		return nil, missing, fmt.Errorf("build seccomp filter: %w", err)
	}
	return filter, missing, nil
}

// Run 启动被测程序并跟踪到它结束
func (r *Runner) Run(c context.Context) runner.Result {
	h := newTracerHandler(r)
	if h.Engine == nil {
		return runner.Result{
			Status: runner.StatusRunnerError,
			Error:  "ptrace runner: nil engine",
		}
	}

	filter, missing, err := BuildFilter()
	if err != nil {
		return runner.Result{
			Status: runner.StatusRunnerError,
			Error:  err.Error(),
		}
	}
	if len(missing) > 0 {
		h.Logger.Debug("syscalls not available on this architecture", "syscalls", missing)
	}

	ch := &forkexec.Runner{
		Args:     r.Args,
		Env:      r.Env,
		ExecFile: r.ExecFile,
		RLimits:  r.RLimits,
		Files:    r.Files,
		WorkDir:  r.WorkDir,
		Seccomp:  filter.SockFprog(),
		Ptrace:   true,
		SyncFunc: r.SyncFunc,
	}

	tracer := ptracer.Tracer{
		Handler: h,
		Runner:  ch,
	}
	result := tracer.Trace(c)
	result.Injected = h.injected
	result.Delayed = h.delayed
	return result
}
