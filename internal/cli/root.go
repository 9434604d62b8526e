// Package cli 实现 faultinj 命令行
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/zqzqsb/faultinj/pkg/logger"
)

var exitFunc = os.Exit

// ExitError 携带被测程序的退出码
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("program exited with code %d", e.Code)
}

type globalOptions struct {
	verbose   bool
	logFormat string
}

func (o *globalOptions) logger(w io.Writer) (*logger.Logger, error) {
	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	switch o.logFormat {
	case "", "text":
		return logger.NewText(w, level), nil
	case "json":
		return logger.NewJSON(w, level), nil
	}
	return nil, fmt.Errorf("unknown log format %q", o.logFormat)
}

// NewRootCmd 创建根命令
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "faultinj",
		Short: "Inject errno failures into a program's file operations",
		Long: "faultinj runs a program under ptrace and makes chosen file operations on a target path\n" +
			"fail with a chosen errno, so error handling paths can be exercised without touching the file.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "Log format (text or json)")

	root.AddCommand(newRunCmd(opts))
	root.AddCommand(newRulesCmd(opts))
	root.AddCommand(newErrnoCmd())
	return root
}

// execute 运行命令并返回进程退出码
func execute(args []string, stdout, stderr io.Writer) int {
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.Execute()
	if err == nil {
		return 0
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	fmt.Fprintln(stderr, "Error:", err)
	return 1
}

// Execute 是 main 的入口
func Execute() {
	if code := execute(os.Args[1:], os.Stdout, os.Stderr); code != 0 {
		exitFunc(code)
	}
}
