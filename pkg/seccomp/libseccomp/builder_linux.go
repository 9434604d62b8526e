package libseccomp

import (
	"fmt"
	"syscall"

	libseccomp "github.com/elastic/go-seccomp-bpf"
	"golang.org/x/net/bpf"

	"github.com/zqzqsb/faultinj/pkg/seccomp"
)

// Builder 描述一个过滤器：Trace 中的系统调用交给 tracer，Allow 中的直接执行，
// 其余按 Default 处理
type Builder struct {
	Allow   []string
	Trace   []string
	Default Action
}

// Build 编译过滤器，名字必须在当前架构上存在，重复的名字只保留第一个
// Allow 和 Trace 都为空时得到只返回 Default 的过滤器
func (b *Builder) Build() (seccomp.Filter, error) {
	def := b.Default
	if def == 0 {
		def = ActionAllow
	}
	policy := libseccomp.Policy{
		DefaultAction: ToSeccompAction(def),
	}
	if allow := dedup(b.Allow); len(allow) > 0 {
		policy.Syscalls = append(policy.Syscalls, libseccomp.SyscallGroup{
			Action: libseccomp.ActionAllow,
			Names:  allow,
		})
	}
	if trace := dedup(b.Trace); len(trace) > 0 {
		policy.Syscalls = append(policy.Syscalls, libseccomp.SyscallGroup{
			Action: libseccomp.ActionTrace,
			Names:  trace,
		})
	}
	if len(policy.Syscalls) == 0 {
		return ExportBPF([]bpf.Instruction{
			bpf.RetConstant{Val: uint32(policy.DefaultAction)},
		})
	}

	program, err := policy.Assemble()
	if err != nil {
		return nil, fmt.Errorf("assemble seccomp policy: %w", err)
	}
	return ExportBPF(program)
}

func dedup(names []string) []string {
	seen := make(map[string]bool, len(names))
	ret := make([]string, 0, len(names))
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		ret = append(ret, n)
	}
	return ret
}

// TraceOnly 创建只拦截 names 的过滤器，当前架构不存在的名字被跳过并返回
func TraceOnly(names []string) (seccomp.Filter, []string, error) {
	known, missing := Available(names)
	b := Builder{Trace: known, Default: ActionAllow}
	f, err := b.Build()
	return f, missing, err
}

// ExportBPF 将 BPF 指令汇编为内核格式
func ExportBPF(filter []bpf.Instruction) (seccomp.Filter, error) {
	raw, err := bpf.Assemble(filter)
	if err != nil {
		return nil, err
	}
	return sockFilter(raw), nil
}

func sockFilter(raw []bpf.RawInstruction) []syscall.SockFilter {
	filter := make([]syscall.SockFilter, 0, len(raw))
	for _, instruction := range raw {
		filter = append(filter, syscall.SockFilter{
			Code: instruction.Op,
			Jt:   instruction.Jt,
			Jf:   instruction.Jf,
			K:    instruction.K,
		})
	}
	return filter
}
