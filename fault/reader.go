package fault

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// 配置键
const (
	EnvPrefix = "LIBFAULTINJ_"

	// EnvErrorPath 是所有类别共享的目标路径
	EnvErrorPath = EnvPrefix + "ERROR_PATH"
	// EnvLikelihood 是命中后实际注入的百分比，默认 100
	EnvLikelihood = EnvPrefix + "ERROR_LIKELIHOOD_PCT"
	// EnvDelayPath 是延迟规则的目标路径
	EnvDelayPath = EnvPrefix + "DELAY_PATH"
)

// 默认值
const (
	DefaultLikelihoodPct = 100.0
	DefaultDelay         = 200 * time.Millisecond
)

// ErrnoKey 返回类别的错误码键，例如 LIBFAULTINJ_ERROR_OPEN_ERRNO
func ErrnoKey(c Category) string {
	return EnvPrefix + "ERROR_" + c.EnvName() + "_ERRNO"
}

// DelayKey 返回类别的延迟键，例如 LIBFAULTINJ_DELAY_READ_MS
func DelayKey(c Category) string {
	return EnvPrefix + "DELAY_" + c.EnvName() + "_MS"
}

// Reader 从 Provider 读取规则
// 每次调用都重新读取，测试可以在两次断言之间修改配置而无需重置
type Reader struct {
	Provider Provider
}

// NewReader 创建 Reader，provider 为 nil 时读取进程环境变量
func NewReader(provider Provider) *Reader {
	if provider == nil {
		provider = EnvProvider{}
	}
	return &Reader{Provider: provider}
}

func (r *Reader) lookup(key string) (string, bool) {
	if r == nil || r.Provider == nil {
		return EnvProvider{}.Lookup(key)
	}
	return r.Provider.Lookup(key)
}

// CurrentRule 返回类别当前的注入规则
// 键缺失、路径为空或错误码无法解析时返回 false，这些配置错误不会影响被拦截的调用
func (r *Reader) CurrentRule(c Category) (Rule, bool) {
	if !c.Valid() {
		return Rule{}, false
	}
	path, ok := r.lookup(EnvErrorPath)
	if !ok || path == "" {
		return Rule{}, false
	}
	code, ok := r.lookup(ErrnoKey(c))
	if !ok {
		return Rule{}, false
	}
	errno, ok := ParseErrno(code)
	if !ok {
		return Rule{}, false
	}
	return Rule{Category: c, Path: path, Errno: errno}, true
}

// CurrentDelay 返回类别当前的延迟规则
// 只要设置了延迟路径就生效，时长缺失或无法解析时使用 DefaultDelay
func (r *Reader) CurrentDelay(c Category) (Delay, bool) {
	if !c.Valid() {
		return Delay{}, false
	}
	path, ok := r.lookup(EnvDelayPath)
	if !ok || path == "" {
		return Delay{}, false
	}
	d := DefaultDelay
	if v, ok := r.lookup(DelayKey(c)); ok {
		if ms, err := strconv.ParseUint(strings.TrimSpace(v), 10, 32); err == nil {
			d = time.Duration(ms) * time.Millisecond
		}
	}
	if d <= 0 {
		return Delay{}, false
	}
	return Delay{Category: c, Path: path, Duration: d}, true
}

// Likelihood 返回注入概率百分比，无法解析时为 100，结果限制在 [0, 100]
func (r *Reader) Likelihood() float64 {
	v, ok := r.lookup(EnvLikelihood)
	if !ok {
		return DefaultLikelihoodPct
	}
	pct, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(pct) {
		return DefaultLikelihoodPct
	}
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}

// Snapshot 一次性读取类别判定所需的全部配置
func (r *Reader) Snapshot(c Category) Snapshot {
	var s Snapshot
	s.Rule, s.HasRule = r.CurrentRule(c)
	s.Delay, s.HasDelay = r.CurrentDelay(c)
	s.LikelihoodPct = r.Likelihood()
	return s
}

// ErrorPath 返回当前的注入目标路径
func (r *Reader) ErrorPath() string {
	p, _ := r.lookup(EnvErrorPath)
	return p
}

// DelayPath 返回当前的延迟目标路径
func (r *Reader) DelayPath() string {
	p, _ := r.lookup(EnvDelayPath)
	return p
}
