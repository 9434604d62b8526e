// Package shim 在进程内拦截文件相关的系统调用
//
// 被测的 Go 代码调用 Shim（或包级函数 Open、Read ...）代替 unix.Open、unix.Read ...，
// 规则命中时返回配置的错误码且不访问任何真实资源，否则把参数原样交给真实实现。
package shim

import "golang.org/x/sys/unix"

// RealCallProvider 是每个拦截类别的真实实现
// 参数和返回值与 golang.org/x/sys/unix 中对应的函数一致
type RealCallProvider interface {
	Open(path string, flags int, mode uint32) (int, error)
	Read(fd int, p []byte) (int, error)
	Write(fd int, p []byte) (int, error)
	Close(fd int) error
	Stat(path string, st *unix.Stat_t) error
	Lseek(fd int, offset int64, whence int) (int64, error)
	Dup3(oldfd, newfd, flags int) error
}
