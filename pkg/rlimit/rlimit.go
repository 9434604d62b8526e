// Package rlimit 描述在被测程序中通过 prlimit 设置的资源限制
package rlimit

import (
	"fmt"
	"strings"
	"syscall"
)

// RLimits 是被测程序的资源限制，0 表示不设置
type RLimits struct {
	CPU         uint64 // CPU 时间（秒），防止注入后陷入死循环的程序一直运行
	OpenFile    uint64 // 最大描述符数量，配合 EMFILE 注入复现描述符耗尽
	FileSize    uint64 // 单个文件大小（字节），配合 ENOSPC/EFBIG 场景
	DisableCore bool
}

// RLimit 是一条 prlimit 设置
type RLimit struct {
	Res  int
	Rlim syscall.Rlimit
}

func limit(res int, cur, max uint64) RLimit {
	return RLimit{Res: res, Rlim: syscall.Rlimit{Cur: cur, Max: max}}
}

// PrepareRLimit 返回需要设置的限制
func (r *RLimits) PrepareRLimit() []RLimit {
	var ret []RLimit
	if r.CPU > 0 {
		// 软限制发送 SIGXCPU，硬限制多留一秒后 SIGKILL
		ret = append(ret, limit(syscall.RLIMIT_CPU, r.CPU, r.CPU+1))
	}
	if r.OpenFile > 0 {
		ret = append(ret, limit(syscall.RLIMIT_NOFILE, r.OpenFile, r.OpenFile))
	}
	if r.FileSize > 0 {
		ret = append(ret, limit(syscall.RLIMIT_FSIZE, r.FileSize, r.FileSize))
	}
	if r.DisableCore {
		ret = append(ret, limit(syscall.RLIMIT_CORE, 0, 0))
	}
	return ret
}

func (r RLimit) String() string {
	switch r.Res {
	case syscall.RLIMIT_CPU:
		return fmt.Sprintf("CPU[%d s:%d s]", r.Rlim.Cur, r.Rlim.Max)
	case syscall.RLIMIT_NOFILE:
		return fmt.Sprintf("OpenFile[%d]", r.Rlim.Cur)
	case syscall.RLIMIT_FSIZE:
		return fmt.Sprintf("File[%d]", r.Rlim.Cur)
	case syscall.RLIMIT_CORE:
		return fmt.Sprintf("Core[%d]", r.Rlim.Cur)
	}
	return fmt.Sprintf("Resource(%d)[%d]", r.Res, r.Rlim.Cur)
}

func (r *RLimits) String() string {
	var s []string
	if r.CPU > 0 {
		s = append(s, fmt.Sprintf("CPU=%d", r.CPU))
	}
	if r.OpenFile > 0 {
		s = append(s, fmt.Sprintf("OpenFile=%d", r.OpenFile))
	}
	if r.FileSize > 0 {
		s = append(s, fmt.Sprintf("FileSize=%d", r.FileSize))
	}
	if r.DisableCore {
		s = append(s, "DisableCore=true")
	}
	return fmt.Sprintf("RLimits{%s}", strings.Join(s, ", "))
}
