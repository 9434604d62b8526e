// Package logger 是 log/slog 的简单封装，统一故障注入相关日志的字段名
package logger

import (
	"io"
	"log/slog"
	"os"
)

// Logger 包装 slog.Logger
type Logger struct {
	*slog.Logger
}

// New 使用给定 handler 创建 Logger，handler 为 nil 时输出文本日志到 stderr
func New(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewText 创建输出文本日志的 Logger
func NewText(w io.Writer, level slog.Level) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewJSON 创建输出 JSON 日志的 Logger
func NewJSON(w io.Writer, level slog.Level) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// Noop 丢弃全部日志
func Noop() *Logger {
	return New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000),
	}))
}

// OrNoop 在 l 为 nil 时返回 Noop
func OrNoop(l *Logger) *Logger {
	if l == nil {
		return Noop()
	}
	return l
}

// WithPid 附加 pid 字段
func (l *Logger) WithPid(pid int) *Logger {
	return &Logger{Logger: l.Logger.With("pid", pid)}
}

// LogInjected 记录一次注入
func (l *Logger) LogInjected(category, path string, fd int, errno string) {
	l.Info("fault injected",
		"category", category,
		"path", path,
		"fd", fd,
		"errno", errno,
	)
}

// LogDelayed 记录一次延迟
func (l *Logger) LogDelayed(category, path string, fd int, ms int64) {
	l.Debug("call delayed",
		"category", category,
		"path", path,
		"fd", fd,
		"delay_ms", ms,
	)
}

// Debugv 兼容 Handler.Debug(v ...interface{}) 形式的调试输出
func (l *Logger) Debugv(v ...interface{}) {
	if len(v) == 0 {
		return
	}
	msg, ok := v[0].(string)
	if !ok {
		l.Debug("trace", "args", v)
		return
	}
	if len(v) == 1 {
		l.Debug(msg)
		return
	}
	l.Debug(msg, "args", v[1:])
}
