//go:build linux && !amd64

package ptracer

import "syscall"

// 其他架构只保留接口，getTrapContext 总是失败

// SyscallNo 获取当前系统调用号
func (c *Context) SyscallNo() uint { return ^uint(0) }

// Arg 返回第 i 个参数
func (c *Context) Arg(i int) uint { return 0 }

// SetReturnValue 在跳过系统调用时设置返回值
func (c *Context) SetReturnValue(retval int) {}

// ReturnValue 返回系统调用的返回值
func (c *Context) ReturnValue() int { return 0 }

func (c *Context) skipSyscall() error { return ErrUnsupportedArch }

func ptraceGetRegSet(pid int, regs *syscall.PtraceRegs) error {
	return ErrUnsupportedArch
}
