package shim

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/zqzqsb/faultinj/fault"
	"github.com/zqzqsb/faultinj/resolver"
)

// SyscallCalls 直接发起系统调用，调用号在首次使用时按名字解析
type SyscallCalls struct{}

var _ RealCallProvider = SyscallCalls{}

// atFDCWD 使用变量以便转换为 uintptr
var atFDCWD = unix.AT_FDCWD

func sysno(c fault.Category) uintptr {
	return resolver.Syscalls().Resolve(c)
}

func errnoErr(e unix.Errno) error {
	if e == 0 {
		return nil
	}
	return e
}

func bufPtr(p []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(p)))
}

// FstatID 返回本进程描述符指向的文件，owner 被忽略
func FstatID(_, fd int) (fault.FileID, error) {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return fault.FileID{}, err
	}
	return fault.FileID{Dev: uint64(st.Dev), Ino: st.Ino}, nil
}

// Open 实现 RealCallProvider，使用 openat(AT_FDCWD, ...)
func (SyscallCalls) Open(path string, flags int, mode uint32) (int, error) {
	p, err := unix.BytePtrFromString(path)
	if err != nil {
		return fault.Sentinel, err
	}
	r, _, e := unix.Syscall6(sysno(fault.Open), uintptr(atFDCWD), uintptr(unsafe.Pointer(p)),
		uintptr(flags), uintptr(mode), 0, 0)
	if e != 0 {
		return fault.Sentinel, errnoErr(e)
	}
	return int(r), nil
}

// Read 实现 RealCallProvider
func (SyscallCalls) Read(fd int, p []byte) (int, error) {
	r, _, e := unix.Syscall6(sysno(fault.Read), uintptr(fd), bufPtr(p), uintptr(len(p)), 0, 0, 0)
	if e != 0 {
		return fault.Sentinel, errnoErr(e)
	}
	return int(r), nil
}

// Write 实现 RealCallProvider
func (SyscallCalls) Write(fd int, p []byte) (int, error) {
	r, _, e := unix.Syscall6(sysno(fault.Write), uintptr(fd), bufPtr(p), uintptr(len(p)), 0, 0, 0)
	if e != 0 {
		return fault.Sentinel, errnoErr(e)
	}
	return int(r), nil
}

// Close 实现 RealCallProvider
func (SyscallCalls) Close(fd int) error {
	_, _, e := unix.Syscall6(sysno(fault.Close), uintptr(fd), 0, 0, 0, 0, 0)
	return errnoErr(e)
}

// Stat 实现 RealCallProvider，使用 newfstatat(AT_FDCWD, ..., 0)
func (SyscallCalls) Stat(path string, st *unix.Stat_t) error {
	p, err := unix.BytePtrFromString(path)
	if err != nil {
		return err
	}
	_, _, e := unix.Syscall6(sysno(fault.Stat), uintptr(atFDCWD), uintptr(unsafe.Pointer(p)),
		uintptr(unsafe.Pointer(st)), 0, 0, 0)
	return errnoErr(e)
}

// Lseek 实现 RealCallProvider
func (SyscallCalls) Lseek(fd int, offset int64, whence int) (int64, error) {
	r, _, e := unix.Syscall6(sysno(fault.Lseek), uintptr(fd), uintptr(offset), uintptr(whence), 0, 0, 0)
	if e != 0 {
		return fault.Sentinel, errnoErr(e)
	}
	return int64(r), nil
}

// Dup3 实现 RealCallProvider
func (SyscallCalls) Dup3(oldfd, newfd, flags int) error {
	_, _, e := unix.Syscall6(sysno(fault.Dup), uintptr(oldfd), uintptr(newfd), uintptr(flags), 0, 0, 0)
	return errnoErr(e)
}
