// Package pipe 把被测程序的输出通过管道收集到内存
package pipe

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// Buffer 收集写入管道的前 Max 字节，多余的数据被丢弃
type Buffer struct {
	W      *os.File
	Buffer *bytes.Buffer
	Done   <-chan struct{}
	Max    int64
}

// NewPipe 创建管道，后台把读取端的前 n 字节复制到 writer
// 之后继续读取并丢弃，写入端不会因管道满而阻塞
// 调用者负责关闭写入端
func NewPipe(writer io.Writer, n int64) (<-chan struct{}, *os.File, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, nil, err
	}
	done := make(chan struct{})
	go func() {
		io.CopyN(writer, r, n)
		close(done)
		io.Copy(io.Discard, r)
		r.Close()
	}()
	return done, w, nil
}

// NewBuffer 多读一个字节，用于判断输出是否被截断
// 依赖 Done 时父进程需要先关闭自己持有的写入端
func NewBuffer(max int64) (*Buffer, error) {
	buffer := new(bytes.Buffer)
	done, w, err := NewPipe(buffer, max+1)
	if err != nil {
		return nil, err
	}
	return &Buffer{
		W:      w,
		Max:    max,
		Buffer: buffer,
		Done:   done,
	}, nil
}

// Truncated 报告输出是否超过 Max，需在 Done 关闭后调用
func (b *Buffer) Truncated() bool {
	return int64(b.Buffer.Len()) > b.Max
}

// String 返回收集到的输出，最多 Max 字节，需在 Done 关闭后调用
func (b *Buffer) String() string {
	out := b.Buffer.Bytes()
	if int64(len(out)) > b.Max {
		out = out[:b.Max]
	}
	return string(out)
}

// Stat 返回 Buffer[已收集/上限]
func (b *Buffer) Stat() string {
	return fmt.Sprintf("Buffer[%d/%d]", b.Buffer.Len(), b.Max)
}
