package shim

import (
	"errors"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/zqzqsb/faultinj/fault"
	"github.com/zqzqsb/faultinj/pkg/logger"
)

// Shim 实现 RealCallProvider：先询问 Engine，注入时返回失败值和错误码，
// 否则原样调用 Real 并返回其结果
type Shim struct {
	Engine *fault.Engine
	Real   RealCallProvider

	// Owner 是描述符记录的归属，进程内为 0
	Owner int

	// Sleep 用于执行延迟规则，nil 时使用 time.Sleep
	Sleep func(time.Duration)
}

var _ RealCallProvider = (*Shim)(nil)

// New 创建 Shim
func New(engine *fault.Engine, real RealCallProvider) *Shim {
	return &Shim{Engine: engine, Real: real}
}

// Default 返回读取进程环境变量、直接发起系统调用的 Shim
var Default = sync.OnceValue(func() *Shim {
	e := fault.NewEngine(fault.EnvProvider{}, logger.Noop())
	e.Identify = FstatID
	return New(e, SyscallCalls{})
})

// decide 判定并执行延迟，注入时返回错误码
func (s *Shim) decide(cc fault.CallContext) error {
	cc.Owner = s.Owner
	d := s.Engine.Decide(cc)
	log := logger.OrNoop(s.Engine.Logger)
	if d.Delay > 0 {
		log.LogDelayed(cc.Category.String(), cc.Path, cc.FD, d.Delay.Milliseconds())
		if s.Sleep != nil {
			s.Sleep(d.Delay)
		} else {
			time.Sleep(d.Delay)
		}
	}
	if !d.Inject {
		return nil
	}
	log.LogInjected(cc.Category.String(), cc.Path, cc.FD, fault.ErrnoName(d.Errno))
	return fault.Inject(d.Errno)
}

// Open 拦截 open
func (s *Shim) Open(path string, flags int, mode uint32) (int, error) {
	if err := s.decide(fault.CallContext{Category: fault.Open, Path: path, FD: -1}); err != nil {
		return fault.Sentinel, err
	}
	fd, err := s.Real.Open(path, flags, mode)
	if err == nil {
		s.Engine.Opened(s.Owner, path, fd)
	}
	return fd, err
}

// Read 拦截 read
func (s *Shim) Read(fd int, p []byte) (int, error) {
	if err := s.decide(fault.CallContext{Category: fault.Read, FD: fd}); err != nil {
		return fault.Sentinel, err
	}
	return s.Real.Read(fd, p)
}

// Write 拦截 write
func (s *Shim) Write(fd int, p []byte) (int, error) {
	if err := s.decide(fault.CallContext{Category: fault.Write, FD: fd}); err != nil {
		return fault.Sentinel, err
	}
	return s.Real.Write(fd, p)
}

// Close 拦截 close，注入失败时描述符保持打开
func (s *Shim) Close(fd int) error {
	if err := s.decide(fault.CallContext{Category: fault.Close, FD: fd}); err != nil {
		return err
	}
	err := s.Real.Close(fd)
	// 除 EBADF 外 close 失败时描述符也已经释放
	if !errors.Is(err, unix.EBADF) {
		s.Engine.Closed(s.Owner, fd)
	}
	return err
}

// Stat 拦截 stat
func (s *Shim) Stat(path string, st *unix.Stat_t) error {
	if err := s.decide(fault.CallContext{Category: fault.Stat, Path: path, FD: -1}); err != nil {
		return err
	}
	return s.Real.Stat(path, st)
}

// Lseek 拦截 lseek
func (s *Shim) Lseek(fd int, offset int64, whence int) (int64, error) {
	if err := s.decide(fault.CallContext{Category: fault.Lseek, FD: fd}); err != nil {
		return fault.Sentinel, err
	}
	return s.Real.Lseek(fd, offset, whence)
}

// Dup3 拦截 dup3，成功后 newfd 继承 oldfd 的记录
func (s *Shim) Dup3(oldfd, newfd, flags int) error {
	if err := s.decide(fault.CallContext{Category: fault.Dup, FD: oldfd}); err != nil {
		return err
	}
	err := s.Real.Dup3(oldfd, newfd, flags)
	if err == nil {
		s.Engine.Duplicated(s.Owner, oldfd, newfd)
	}
	return err
}

// 包级函数使用 Default()

// Open 以 Default() 拦截 open
func Open(path string, flags int, mode uint32) (int, error) {
	return Default().Open(path, flags, mode)
}

// Read 以 Default() 拦截 read
func Read(fd int, p []byte) (int, error) {
	return Default().Read(fd, p)
}

// Write 以 Default() 拦截 write
func Write(fd int, p []byte) (int, error) {
	return Default().Write(fd, p)
}

// Close 以 Default() 拦截 close
func Close(fd int) error {
	return Default().Close(fd)
}

// Stat 以 Default() 拦截 stat
func Stat(path string, st *unix.Stat_t) error {
	return Default().Stat(path, st)
}

// Lseek 以 Default() 拦截 lseek
func Lseek(fd int, offset int64, whence int) (int64, error) {
	return Default().Lseek(fd, offset, whence)
}

// Dup3 以 Default() 拦截 dup3
func Dup3(oldfd, newfd, flags int) error {
	return Default().Dup3(oldfd, newfd, flags)
}
