package cli

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zqzqsb/faultinj/fault"
	"github.com/zqzqsb/faultinj/pkg/memfd"
	"github.com/zqzqsb/faultinj/pkg/pipe"
	"github.com/zqzqsb/faultinj/pkg/rlimit"
	"github.com/zqzqsb/faultinj/runner"
	"github.com/zqzqsb/faultinj/runner/ptrace"
)

type runOptions struct {
	rules ruleFlags

	workDir      string
	timeout      time.Duration
	maxOpenFiles uint64
	cpuLimit     uint64
	sealedExec   bool
}

func newRunCmd(opts *globalOptions) *cobra.Command {
	o := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run [flags] -- PROG [ARGS...]",
		Short: "Run a program with fault injection",
		Long: "Run PROG under ptrace. Matching open, read, write, close, stat, lseek and dup calls\n" +
			"fail with the configured errno. The exit code mirrors the program's.",
		Example: "  faultinj run --error-path ./thisfile.txt --errno open=ENOENT -- cat ./thisfile.txt\n" +
			"  faultinj run --rules rules.yaml --watch -- ./server",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, opts, args)
		},
	}
	o.rules.register(cmd, true)
	fs := cmd.Flags()
	fs.StringVar(&o.workDir, "workdir", "", "Working directory of the program")
	fs.DurationVar(&o.timeout, "timeout", 0, "Kill the program after this long (0 disables)")
	fs.Uint64Var(&o.maxOpenFiles, "max-open-files", 0, "RLIMIT_NOFILE of the program (0 keeps the current limit)")
	fs.Uint64Var(&o.cpuLimit, "cpu-limit", 0, "RLIMIT_CPU in seconds (0 disables)")
	fs.BoolVar(&o.sealedExec, "sealed-exec", false, "Execute a sealed in-memory copy of PROG")
	return cmd
}

func (o *runOptions) run(cmd *cobra.Command, opts *globalOptions, args []string) error {
	// 日志和程序的标准错误写入同一个 writer
	errOut := cmd.ErrOrStderr()
	if _, ok := errOut.(*os.File); !ok {
		errOut = &syncWriter{w: errOut}
	}
	log, err := opts.logger(errOut)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	p, closeRules, err := o.rules.provider(ctx, cmd, log)
	if err != nil {
		return err
	}
	defer closeRules()

	prog, err := exec.LookPath(args[0])
	if err != nil {
		return fmt.Errorf("find program: %w", err)
	}
	argv := append([]string{prog}, args[1:]...)

	stdin, err := inputFile(cmd.InOrStdin())
	if err != nil {
		return err
	}
	defer stdin.Close()
	stdout, waitOut, err := outputFd(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	stderr, waitErr, err := outputFd(errOut)
	if err != nil {
		waitOut()
		return err
	}

	rl := rlimit.RLimits{
		CPU:      o.cpuLimit,
		OpenFile: o.maxOpenFiles,
	}
	r := &ptrace.Runner{
		Args:        argv,
		Env:         os.Environ(),
		WorkDir:     o.workDir,
		Files:       []uintptr{stdin.Fd(), stdout, stderr},
		RLimits:     rl.PrepareRLimit(),
		Engine:      fault.NewEngine(p, log),
		Logger:      log,
		ShowDetails: opts.verbose,
	}
	if o.sealedExec {
		f, err := memfd.DupFile(prog)
		if err != nil {
			waitOut()
			waitErr()
			return err
		}
		defer f.Close()
		r.ExecFile = f.Fd()
	}

	log.Debug("starting program", "args", argv, "rlimits", rl.String())
	result := r.Run(ctx)
	waitOut()
	waitErr()

	log.Info("program finished",
		"status", result.Status.String(),
		"exit", result.ExitStatus,
		"injected", result.Injected,
		"delayed", result.Delayed,
		"time", result.Time,
		"memory", result.Memory.String(),
	)
	if result.Status == runner.StatusRunnerError {
		return fmt.Errorf("run %s: %s", prog, result.Error)
	}
	if code := result.ExitCode(); code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

// inputFile 返回作为标准输入的文件，r 不是文件时使用 /dev/null
func inputFile(r io.Reader) (*os.File, error) {
	if f, ok := r.(*os.File); ok {
		// 复制一份，关闭时不影响调用者
		fd, err := syscall.Dup(int(f.Fd()))
		if err != nil {
			return nil, fmt.Errorf("dup stdin: %w", err)
		}
		return os.NewFile(uintptr(fd), f.Name()), nil
	}
	return os.Open(os.DevNull)
}

// outputFd 返回程序输出使用的描述符
// w 不是文件时经管道转发，wait 关闭写入端并等待转发结束
func outputFd(w io.Writer) (uintptr, func(), error) {
	if f, ok := w.(*os.File); ok {
		return f.Fd(), func() {}, nil
	}
	done, pw, err := pipe.NewPipe(w, math.MaxInt64)
	if err != nil {
		return 0, nil, fmt.Errorf("create output pipe: %w", err)
	}
	return pw.Fd(), func() {
		pw.Close()
		<-done
	}, nil
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
