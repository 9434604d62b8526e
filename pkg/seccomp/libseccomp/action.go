// Package libseccomp 使用 go-seccomp-bpf 生成拦截过滤器，并提供系统调用名与调用号的转换
package libseccomp

// Action 是过滤器对系统调用的处理方式
type Action uint32

// 零值无效
const (
	ActionAllow Action = iota + 1 // 直接执行
	ActionErrno                   // 直接返回错误
	ActionTrace                   // 停下来交给 tracer 判定
	ActionKill                    // 终止进程
)

func (a Action) String() string {
	switch a {
	case ActionAllow:
		return "allow"
	case ActionErrno:
		return "errno"
	case ActionTrace:
		return "trace"
	case ActionKill:
		return "kill"
	}
	return "invalid"
}
