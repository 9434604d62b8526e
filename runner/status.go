package runner

// Status 是被测程序的结束状态
type Status int

const (
	StatusInvalid Status = iota
	StatusNormal

	// StatusDisallowedSyscall 表示 Handler 要求终止进程组
	StatusDisallowedSyscall

	// 程序自身的异常结束，注入故障后通常会看到这两种状态
	StatusSignalled
	StatusNonzeroExitStatus

	StatusRunnerError
)

var statusString = []string{
	"invalid",
	"",
	"disallowed syscall",
	"signalled",
	"nonzero exit status",
	"runner error",
}

func (t Status) String() string {
	i := int(t)
	if i >= 0 && i < len(statusString) {
		return statusString[i]
	}
	return statusString[0]
}

func (t Status) Error() string {
	return t.String()
}
