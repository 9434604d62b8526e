package ptracer

import (
	"syscall"
)

// x86_64: 调用号 orig_rax，参数 rdi rsi rdx r10 r8 r9，返回值 rax

// SyscallNo 获取当前系统调用号
// rax 在返回时被覆盖，因此使用 orig_rax
func (c *Context) SyscallNo() uint {
	return uint(c.regs.Orig_rax)
}

// Arg 返回第 i 个参数（0~5）
func (c *Context) Arg(i int) uint {
	switch i {
	case 0:
		return uint(c.regs.Rdi)
	case 1:
		return uint(c.regs.Rsi)
	case 2:
		return uint(c.regs.Rdx)
	case 3:
		return uint(c.regs.R10)
	case 4:
		return uint(c.regs.R8)
	case 5:
		return uint(c.regs.R9)
	}
	return 0
}

// SetReturnValue 在跳过系统调用时设置返回值
func (c *Context) SetReturnValue(retval int) {
	c.regs.Rax = uint64(retval)
}

// ReturnValue 返回系统调用的返回值，只在 HandleExit 中有意义
// 失败时为 -errno
func (c *Context) ReturnValue() int {
	return int(int64(c.regs.Rax))
}

// skipSyscall 将调用号改为 -1，内核不执行该调用，rax 保持 SetReturnValue 设置的值
func (c *Context) skipSyscall() error {
	c.regs.Orig_rax = ^uint64(0)
	return syscall.PtraceSetRegs(c.Pid, &c.regs)
}

func ptraceGetRegSet(pid int, regs *syscall.PtraceRegs) error {
	return syscall.PtraceGetRegs(pid, regs)
}
