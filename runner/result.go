package runner

import (
	"fmt"
	"time"
)

// Result 是一次被跟踪运行的结果
type Result struct {
	Status
	ExitStatus int    // 退出码，被信号终止时为信号编号
	Error      string // 运行器错误的详细信息

	Time   time.Duration // 主进程的用户 CPU 时间
	Memory Size          // 主进程的最大常驻内存

	// Injected 是注入的故障次数，Delayed 是施加的延迟次数
	Injected int
	Delayed  int

	SetUpTime   time.Duration
	RunningTime time.Duration
}

// ExitCode 返回与直接运行程序时 shell 看到的一致的退出码
func (r Result) ExitCode() int {
	switch r.Status {
	case StatusNormal, StatusNonzeroExitStatus:
		return r.ExitStatus
	case StatusSignalled:
		return 128 + r.ExitStatus
	}
	return 1
}

func (r Result) String() string {
	switch r.Status {
	case StatusNormal:
		return fmt.Sprintf("Result[injected=%d delayed=%d][%v %v][%v %v]", r.Injected, r.Delayed, r.Time, r.Memory, r.SetUpTime, r.RunningTime)

	case StatusSignalled:
		return fmt.Sprintf("Result[Signalled(%d) injected=%d][%v %v][%v %v]", r.ExitStatus, r.Injected, r.Time, r.Memory, r.SetUpTime, r.RunningTime)

	case StatusRunnerError:
		return fmt.Sprintf("Result[RunnerFailed(%s)][%v %v][%v %v]", r.Error, r.Time, r.Memory, r.SetUpTime, r.RunningTime)

	default:
		return fmt.Sprintf("Result[%v(%s %d) injected=%d][%v %v][%v %v]", r.Status, r.Error, r.ExitStatus, r.Injected, r.Time, r.Memory, r.SetUpTime, r.RunningTime)
	}
}
