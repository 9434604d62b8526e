package fault

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// Rule 是一条注入规则：类别 Category 的调用命中 Path 时以 Errno 失败
// 每个类别同一时刻最多一条，Path 为空的规则不生效
type Rule struct {
	Category Category
	Path     string
	Errno    unix.Errno
}

// Active 报告规则是否生效
func (r Rule) Active() bool {
	return r.Category.Valid() && r.Path != "" && r.Errno != 0
}

func (r Rule) String() string {
	return fmt.Sprintf("Rule[%v %q %s]", r.Category, r.Path, ErrnoName(r.Errno))
}

// Delay 是一条延迟规则：类别 Category 的调用命中 Path 时先等待 Duration
type Delay struct {
	Category Category
	Path     string
	Duration time.Duration
}

// Active 报告延迟规则是否生效
func (d Delay) Active() bool {
	return d.Category.Valid() && d.Path != "" && d.Duration > 0
}

func (d Delay) String() string {
	return fmt.Sprintf("Delay[%v %q %v]", d.Category, d.Path, d.Duration)
}

// Snapshot 是一次调用判定所需的全部配置，每次调用重新读取
type Snapshot struct {
	Rule    Rule
	HasRule bool

	Delay    Delay
	HasDelay bool

	// LikelihoodPct 是命中后实际注入的概率（0~100）
	LikelihoodPct float64
}

// CallContext 是一次被拦截调用的参数
// 携带路径的类别使用 Path，其余类别使用 FD
// Owner 标识描述符表的归属进程，进程内拦截时为 0
type CallContext struct {
	Category Category
	Path     string
	FD       int
	Owner    int
}

// Decision 是引擎对一次调用的判定结果
type Decision struct {
	Inject bool
	Errno  unix.Errno
	Delay  time.Duration
	Rule   Rule
}
