package ptracer

import (
	"bytes"
	"errors"
	"os"
	"sync/atomic"
	"syscall"
)

// Context 是一次系统调用停止时的寄存器上下文
type Context struct {
	// Pid 是停止的任务 id
	Pid int
	// 当前寄存器上下文（平台相关）
	regs syscall.PtraceRegs
}

// ErrUnsupportedArch 表示当前架构不支持修改系统调用寄存器
var ErrUnsupportedArch = errors.New("ptracer: register access is not supported on this architecture")

var (
	// useVMReadv 决定是否使用 process_vm_readv 读取字符串
	// 遇到 ENOSYS 后变为 false，多个跟踪器共享
	useVMReadv atomic.Bool
	pageSize   = 4 << 10
)

func init() {
	pageSize = os.Getpagesize()
	useVMReadv.Store(true)
}

func getTrapContext(pid int) (*Context, error) {
	var regs syscall.PtraceRegs
	if err := ptraceGetRegSet(pid, &regs); err != nil {
		return nil, err
	}
	return &Context{
		Pid:  pid,
		regs: regs,
	}, nil
}

// GetString 读取被跟踪进程 addr 处以 NUL 结尾的字符串，失败时返回空字符串
func (c *Context) GetString(addr uintptr) string {
	if addr == 0 {
		return ""
	}
	buff := make([]byte, syscall.PathMax)

	if useVMReadv.Load() {
		err := vmReadStr(c.Pid, addr, buff)
		if err == nil {
			return cString(buff)
		}
		if errors.Is(err, syscall.ENOSYS) {
			useVMReadv.Store(false)
		}
	}
	if err := ptraceReadStr(c.Pid, addr, buff); err != nil {
		return ""
	}
	return cString(buff)
}

// cString 截断到第一个 NUL
func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
