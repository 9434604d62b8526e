// Package fault 实现故障注入的规则模型、配置读取、匹配引擎和错误码转换
package fault

import (
	"fmt"
	"strings"
)

// Category 是被拦截调用的类别，每个类别最多只有一条生效规则
type Category int

// 被拦截的调用类别
const (
	Open Category = iota
	Read
	Write
	Close
	Stat
	Lseek
	Dup

	// NumCategories 是类别数量
	NumCategories
)

// categoryInfo 描述一个类别在各个边界上的名字
//   - name: 小写名字，用于日志、规则文件和命令行
//   - symbol: 进程内委托时使用的主系统调用
//   - syscalls: 在系统调用边界上属于该类别的全部系统调用
//   - path: 是否携带路径参数（否则携带文件描述符）
type categoryInfo struct {
	name     string
	symbol   string
	syscalls []string
	path     bool
}

var categories = [NumCategories]categoryInfo{
	Open:  {"open", "openat", []string{"open", "openat", "creat"}, true},
	Read:  {"read", "read", []string{"read", "readv", "pread64", "preadv"}, false},
	Write: {"write", "write", []string{"write", "writev", "pwrite64", "pwritev"}, false},
	Close: {"close", "close", []string{"close"}, false},
	Stat:  {"stat", "newfstatat", []string{"stat", "lstat", "newfstatat", "statx"}, true},
	Lseek: {"lseek", "lseek", []string{"lseek"}, false},
	Dup:   {"dup", "dup3", []string{"dup", "dup2", "dup3"}, false},
}

// Categories 返回全部类别
func Categories() []Category {
	ret := make([]Category, 0, NumCategories)
	for c := Category(0); c < NumCategories; c++ {
		ret = append(ret, c)
	}
	return ret
}

// ParseCategory 按名字（大小写不敏感）查找类别
func ParseCategory(name string) (Category, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for c := Category(0); c < NumCategories; c++ {
		if categories[c].name == n {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown call category %q", name)
}

// Valid 判断类别是否已定义
func (c Category) Valid() bool {
	return c >= 0 && c < NumCategories
}

func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return categories[c].name
}

// EnvName 返回环境变量中使用的大写名字，例如 OPEN
func (c Category) EnvName() string {
	return strings.ToUpper(c.String())
}

// Symbol 返回委托真实实现时使用的系统调用名
func (c Category) Symbol() string {
	if !c.Valid() {
		return ""
	}
	return categories[c].symbol
}

// Syscalls 返回属于该类别的系统调用名
func (c Category) Syscalls() []string {
	if !c.Valid() {
		return nil
	}
	return append([]string(nil), categories[c].syscalls...)
}

// PathBearing 报告该类别的调用是否携带路径参数
// 不携带路径的类别按描述符打开时的路径匹配
func (c Category) PathBearing() bool {
	return c.Valid() && categories[c].path
}
