package cli

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zqzqsb/faultinj/fault"
	"github.com/zqzqsb/faultinj/pkg/logger"
)

// ruleFlags 是命令行上的规则，优先于规则文件和环境变量
type ruleFlags struct {
	errorPath  string
	errno      map[string]string
	likelihood float64
	delayPath  string
	delayMS    map[string]string
	rulesFile  string
	watch      bool
}

func (f *ruleFlags) register(cmd *cobra.Command, watch bool) {
	fs := cmd.Flags()
	fs.StringVar(&f.errorPath, "error-path", "", "Path whose operations fail (exact match)")
	fs.StringToStringVar(&f.errno, "errno", nil, "Errno per category, e.g. open=ENOENT,read=5")
	fs.Float64Var(&f.likelihood, "likelihood", fault.DefaultLikelihoodPct, "Percent of matching calls that fail")
	fs.StringVar(&f.delayPath, "delay-path", "", "Path whose operations are delayed")
	fs.StringToStringVar(&f.delayMS, "delay", nil, "Delay in milliseconds per category, e.g. read=50")
	fs.StringVar(&f.rulesFile, "rules", "", "YAML rule file")
	if watch {
		fs.BoolVar(&f.watch, "watch", false, "Reload the rule file when it changes")
	}
}

// keys 校验命令行规则并转换为 LIBFAULTINJ_* 键值
func (f *ruleFlags) keys(cmd *cobra.Command) (map[string]string, error) {
	kv := make(map[string]string)
	if f.errorPath != "" {
		kv[fault.EnvErrorPath] = f.errorPath
	}
	for name, code := range f.errno {
		c, err := fault.ParseCategory(name)
		if err != nil {
			return nil, fmt.Errorf("--errno: %w", err)
		}
		if _, ok := fault.ParseErrno(code); !ok {
			return nil, fmt.Errorf("--errno: invalid errno %q for %s", code, name)
		}
		kv[fault.ErrnoKey(c)] = code
	}
	if cmd.Flags().Changed("likelihood") {
		if f.likelihood < 0 || f.likelihood > 100 {
			return nil, fmt.Errorf("--likelihood must be between 0 and 100, got %v", f.likelihood)
		}
		kv[fault.EnvLikelihood] = strconv.FormatFloat(f.likelihood, 'g', -1, 64)
	}
	if f.delayPath != "" {
		kv[fault.EnvDelayPath] = f.delayPath
	}
	for name, ms := range f.delayMS {
		c, err := fault.ParseCategory(name)
		if err != nil {
			return nil, fmt.Errorf("--delay: %w", err)
		}
		if _, err := strconv.ParseUint(ms, 10, 32); err != nil {
			return nil, fmt.Errorf("--delay: invalid milliseconds %q for %s", ms, name)
		}
		kv[fault.DelayKey(c)] = ms
	}
	return kv, nil
}

// provider 按 命令行 > 规则文件 > 环境变量 的顺序组合配置
// 返回的 close 停止规则文件的监视
func (f *ruleFlags) provider(ctx context.Context, cmd *cobra.Command, l *logger.Logger) (fault.Provider, func(), error) {
	kv, err := f.keys(cmd)
	if err != nil {
		return nil, nil, err
	}
	chain := fault.Chain{fault.NewMapProvider(kv)}
	closeFn := func() {}

	if f.rulesFile != "" {
		fp, err := fault.NewFileProvider(f.rulesFile, l)
		if err != nil {
			return nil, nil, err
		}
		if f.watch {
			if err := fp.Watch(ctx); err != nil {
				return nil, nil, err
			}
			closeFn = func() { fp.Close() }
		}
		chain = append(chain, fp)
	}
	chain = append(chain, fault.EnvProvider{})
	return chain, closeFn, nil
}

func newRulesCmd(opts *globalOptions) *cobra.Command {
	flags := &ruleFlags{}
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Print the effective rules",
		Long:  "Print the rules that would apply, combining flags, the rule file and LIBFAULTINJ_* environment variables.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := opts.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			p, closeFn, err := flags.provider(cmd.Context(), cmd, l)
			if err != nil {
				return err
			}
			defer closeFn()
			printRules(cmd, fault.NewReader(p))
			return nil
		},
	}
	flags.register(cmd, false)
	return cmd
}

func printRules(cmd *cobra.Command, r *fault.Reader) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "error path: %q\n", r.ErrorPath())
	fmt.Fprintf(out, "delay path: %q\n", r.DelayPath())
	fmt.Fprintf(out, "likelihood: %v%%\n\n", r.Likelihood())

	w := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tSYSCALLS\tERRNO\tDELAY")
	for _, c := range fault.Categories() {
		s := r.Snapshot(c)
		errno, delay := "-", "-"
		if s.HasRule {
			errno = fmt.Sprintf("%s(%d)", fault.ErrnoName(s.Rule.Errno), int(s.Rule.Errno))
		}
		if s.HasDelay {
			delay = s.Delay.Duration.String()
		}
		fmt.Fprintf(w, "%s\t%v\t%s\t%s\n", c, c.Syscalls(), errno, delay)
	}
	w.Flush()
}
