package fault

import (
	"math/rand"

	"github.com/zqzqsb/faultinj/pkg/logger"
)

// Engine 组合配置读取、规则匹配和描述符记录，对每次调用给出判定
// 进程内拦截和系统调用拦截共用同一个 Engine，保证语义一致
type Engine struct {
	Reader *Reader
	FDs    *FDTable
	Logger *logger.Logger

	// Rand 返回 [0, 100) 的随机数，用于概率注入，nil 时使用 math/rand/v2
	Rand func() float64

	// Identify 非 nil 时记录描述符打开的文件，并在描述符类规则命中前复核
	Identify IdentifyFunc
}

// NewEngine 创建 Engine，provider 为 nil 时读取进程环境变量
func NewEngine(provider Provider, l *logger.Logger) *Engine {
	return &Engine{
		Reader: NewReader(provider),
		FDs:    NewFDTable(),
		Logger: logger.OrNoop(l),
	}
}

// WithIdentify 返回共享配置和描述符表、使用 f 确认描述符身份的 Engine
func (e *Engine) WithIdentify(f IdentifyFunc) *Engine {
	c := *e
	c.Identify = f
	return &c
}

func (e *Engine) matcher() Matcher {
	return Matcher{FDs: e.FDs, Identify: e.Identify}
}

func (e *Engine) roll() float64 {
	if e.Rand != nil {
		return e.Rand()
	}
	return rand.Float64() * 100
}

func (e *Engine) log() *logger.Logger {
	return logger.OrNoop(e.Logger)
}

// Decide 对一次调用做出判定
// 流程：读取快照 -> 匹配注入规则 -> 概率判定 -> 匹配延迟规则
// 配置在每次调用时重新读取，不做缓存
func (e *Engine) Decide(cc CallContext) Decision {
	var d Decision
	if !cc.Category.Valid() {
		return d
	}
	s := e.Reader.Snapshot(cc.Category)
	m := e.matcher()

	if s.HasDelay && m.MatchesDelay(s.Delay, cc) {
		d.Delay = s.Delay.Duration
	}
	if !s.HasRule || !m.Matches(s.Rule, cc) {
		return d
	}
	if s.LikelihoodPct < 100 && (s.LikelihoodPct <= 0 || e.roll() >= s.LikelihoodPct) {
		e.log().Debug("rule matched but skipped by likelihood",
			"rule", s.Rule.String(), "likelihood_pct", s.LikelihoodPct)
		return d
	}
	d.Inject = true
	d.Errno = s.Rule.Errno
	d.Rule = s.Rule
	return d
}

// Opened 在 open 成功后调用，记录描述符打开的路径
// 描述符号被复用时覆盖旧记录
func (e *Engine) Opened(owner int, path string, fd int) {
	if fd < 0 {
		return
	}
	entry := FDEntry{Path: path}
	if e.Identify != nil {
		if id, err := e.Identify(owner, fd); err == nil {
			entry.ID, entry.HasID = id, true
		}
	}
	e.FDs.Set(owner, fd, entry)
	if path != "" && (path == e.Reader.ErrorPath() || path == e.Reader.DelayPath()) {
		e.log().Debug("descriptor opened on target path", "owner", owner, "fd", fd, "path", path)
	}
}

// Closed 在 close 之后调用
func (e *Engine) Closed(owner, fd int) {
	e.FDs.Delete(owner, fd)
}

// ClosedRange 在 close_range(first, last) 之后调用
func (e *Engine) ClosedRange(owner, first, last int) {
	e.FDs.DeleteRange(owner, first, last)
}

// Duplicated 在 dup 系列调用成功后调用，newfd 继承 oldfd 的记录
func (e *Engine) Duplicated(owner, oldfd, newfd int) {
	if newfd < 0 {
		return
	}
	e.FDs.Copy(owner, oldfd, newfd)
}

// Forked 在进程复制描述符表后调用
func (e *Engine) Forked(parent, child int) {
	e.FDs.Fork(parent, child)
}

// Forget 在进程退出后调用
func (e *Engine) Forget(owner int) {
	e.FDs.Forget(owner)
}
