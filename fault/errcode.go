package fault

import (
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
)

// Sentinel 是所有被拦截调用失败时的返回值
// open 返回无效描述符 -1，read/write 返回 -1 字节，lseek 返回 -1 偏移
const Sentinel = -1

// maxErrno 与内核 MAX_ERRNO 一致，更大的值无法通过 -errno 返回
const maxErrno = 4095

// ParseErrno 把配置中的错误码转换为 unix.Errno
// 支持十进制数字（"2"）和符号名（"ENOENT"），其余情况返回 false
func ParseErrno(s string) (unix.Errno, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n <= 0 || n > maxErrno {
			return 0, false
		}
		return unix.Errno(n), true
	}
	if e, ok := errnoByName()[strings.ToUpper(s)]; ok {
		return e, true
	}
	return 0, false
}

// errnoByName 是 unix.ErrnoName 的反向表，首次使用时构建
var errnoByName = sync.OnceValue(func() map[string]unix.Errno {
	m := make(map[string]unix.Errno)
	for n := 1; n <= maxErrno; n++ {
		if name := unix.ErrnoName(unix.Errno(n)); name != "" {
			if _, dup := m[strings.ToUpper(name)]; !dup {
				m[strings.ToUpper(name)] = unix.Errno(n)
			}
		}
	}
	return m
})

// Inject 返回调用方约定中表示该错误码的 error
// 与真实失败一样是 unix.Errno，因此 errors.Is(err, unix.ENOENT) 和 os.IsNotExist 都能识别
func Inject(errno unix.Errno) error {
	return errno
}

// ReturnRegister 返回系统调用边界上的失败编码 -errno
// libc 会把它转换为 -1 并设置 errno
func ReturnRegister(errno unix.Errno) int {
	return -int(errno)
}

// ErrnoName 返回错误码的符号名，未知时返回数字
func ErrnoName(errno unix.Errno) string {
	if n := unix.ErrnoName(errno); n != "" {
		return n
	}
	return strconv.Itoa(int(errno))
}
