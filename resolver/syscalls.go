package resolver

import (
	"sync"

	"github.com/zqzqsb/faultinj/fault"
	"github.com/zqzqsb/faultinj/pkg/seccomp/libseccomp"
)

// Syscalls 返回进程级的解析器：类别 -> 当前架构上主系统调用的调用号
var Syscalls = sync.OnceValue(func() *Resolver[uintptr] {
	return New(SyscallNo)
})

// SyscallNo 在当前架构的系统调用表中查找类别的主系统调用
func SyscallNo(c fault.Category) (uintptr, error) {
	no, err := libseccomp.ToSyscallNo(c.Symbol())
	if err != nil {
		return 0, err
	}
	return uintptr(no), nil
}
