package ptrace

import "github.com/zqzqsb/faultinj/fault"

// syscallArgs 描述系统调用属于哪个类别，以及路径和描述符在第几个参数
// 不存在的参数为 -1
type syscallArgs struct {
	category fault.Category
	path     int
	fd       int
}

var syscallTable = map[string]syscallArgs{
	"open":   {fault.Open, 0, -1},
	"openat": {fault.Open, 1, -1},
	"creat":  {fault.Open, 0, -1},

	"stat":       {fault.Stat, 0, -1},
	"lstat":      {fault.Stat, 0, -1},
	"newfstatat": {fault.Stat, 1, -1},
	"statx":      {fault.Stat, 1, -1},

	"read":    {fault.Read, -1, 0},
	"readv":   {fault.Read, -1, 0},
	"pread64": {fault.Read, -1, 0},
	"preadv":  {fault.Read, -1, 0},

	"write":    {fault.Write, -1, 0},
	"writev":   {fault.Write, -1, 0},
	"pwrite64": {fault.Write, -1, 0},
	"pwritev":  {fault.Write, -1, 0},

	"close": {fault.Close, -1, 0},
	"lseek": {fault.Lseek, -1, 0},

	"dup":  {fault.Dup, -1, 0},
	"dup2": {fault.Dup, -1, 0},
	"dup3": {fault.Dup, -1, 0},
}

// trackedSyscalls 不属于任何类别，只用来维护描述符记录
//   - close_range: 关闭一段描述符
//   - fcntl: F_DUPFD / F_DUPFD_CLOEXEC 复制描述符
var trackedSyscalls = []string{"close_range", "fcntl"}

// close_range 的 flags，x/sys/unix 中没有定义
const closeRangeCloexec = 1 << 2

// trappedSyscalls 返回需要交给跟踪器的系统调用
func trappedSyscalls() []string {
	var names []string
	for _, c := range fault.Categories() {
		names = append(names, c.Syscalls()...)
	}
	return append(names, trackedSyscalls...)
}
