package ptracer

import (
	"syscall"
	"unsafe"

	unix "golang.org/x/sys/unix"
)

// ptraceReadStr 使用 PTRACE_PEEKDATA 按字读取，直到遇到 NUL 或缓冲区满
func ptraceReadStr(pid int, addr uintptr, buff []byte) error {
	const word = int(unsafe.Sizeof(uintptr(0)))
	for off := 0; off < len(buff); off += word {
		end := off + word
		if end > len(buff) {
			end = len(buff)
		}
		if _, err := syscall.PtracePeekData(pid, addr+uintptr(off), buff[off:end]); err != nil {
			return err
		}
		if hasNull(buff[off:end]) {
			return nil
		}
	}
	return nil
}

// processVMReadv 封装 process_vm_readv(2)，不要求目标处于 ptrace-stop
func processVMReadv(pid int, localIov, remoteIov []unix.Iovec,
	flags uintptr) (r1, r2 uintptr, err syscall.Errno) {
	return syscall.Syscall6(unix.SYS_PROCESS_VM_READV, uintptr(pid),
		uintptr(unsafe.Pointer(&localIov[0])), uintptr(len(localIov)),
		uintptr(unsafe.Pointer(&remoteIov[0])), uintptr(len(remoteIov)),
		flags)
}

// vmRead 从 addr 读取 len(buff) 字节
func vmRead(pid int, addr uintptr, buff []byte) (int, error) {
	l := len(buff)
	localIov := getIovecs(&buff[0], l)
	remoteIov := getIovecs((*byte)(unsafe.Pointer(addr)), l)
	n, _, err := processVMReadv(pid, localIov, remoteIov, uintptr(0))
	if err == 0 {
		return int(n), nil
	}
	return int(n), err
}

func getIovecs(base *byte, l int) []unix.Iovec {
	return []unix.Iovec{getIovec(base, l)}
}

func getIovec(base *byte, l int) unix.Iovec {
	iov := unix.Iovec{Base: base}
	iov.SetLen(l)
	return iov
}

// vmReadStr 按页读取以 NUL 结尾的字符串
// 第一次只读到页边界，避免字符串末尾之后的页未映射导致整个读取失败
func vmReadStr(pid int, addr uintptr, buff []byte) error {
	totalRead := 0
	nextRead := pageSize - int(addr%uintptr(pageSize))
	if nextRead == 0 {
		nextRead = pageSize
	}

	for len(buff) > 0 {
		if restToRead := len(buff); restToRead < nextRead {
			nextRead = restToRead
		}

		curRead, err := vmRead(pid, addr+uintptr(totalRead), buff[:nextRead])
		if err != nil {
			return err
		}
		if curRead == 0 {
			break
		}
		if hasNull(buff[:curRead]) {
			break
		}

		totalRead += curRead
		buff = buff[curRead:]
		nextRead = pageSize
	}
	return nil
}

func hasNull(buff []byte) bool {
	for _, v := range buff {
		if v == 0 {
			return true
		}
	}
	return false
}
