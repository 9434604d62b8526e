package libseccomp

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/elastic/go-seccomp-bpf/arch"
)

// 当前架构的系统调用表
var info, errInfo = arch.GetInfo("")

// syscallNos 是 info.SyscallNumbers 的反向表
var syscallNos = sync.OnceValue(func() map[string]int {
	m := make(map[string]int)
	if errInfo != nil {
		return m
	}
	for no, name := range info.SyscallNumbers {
		m[name] = no
	}
	return m
})

// ToSyscallName 将系统调用号转换为名字
func ToSyscallName(sysno uint) (string, error) {
	if errInfo != nil {
		return "", errInfo
	}
	n, ok := info.SyscallNumbers[int(sysno)]
	if !ok {
		return "", fmt.Errorf("syscall no %d does not exist", sysno)
	}
	return n, nil
}

// ToSyscallNo 将系统调用名转换为当前架构上的调用号
func ToSyscallNo(name string) (uint, error) {
	if errInfo != nil {
		return 0, errInfo
	}
	no, ok := syscallNos()[name]
	if !ok {
		return 0, fmt.Errorf("syscall %q does not exist on %s", name, runtime.GOARCH)
	}
	return uint(no), nil
}

// Available 将 names 分为当前架构存在和不存在的两组，保持原有顺序
// 例如 arm64 上没有 open、stat 和 dup2
func Available(names []string) (known, missing []string) {
	nos := syscallNos()
	for _, n := range names {
		if _, ok := nos[n]; ok {
			known = append(known, n)
		} else {
			missing = append(missing, n)
		}
	}
	return known, missing
}
