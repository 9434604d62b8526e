// Package runner 定义运行被测程序的接口和结果
package runner

import (
	"context"
)

// Runner 运行被测程序直到结束或 ctx 取消
type Runner interface {
	Run(context.Context) Result
}
