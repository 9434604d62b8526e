// Package resolver 按类别惰性解析真实实现，每个类别只解析一次
//
// 解析失败是致命的：被拦截的调用无法退化为其他行为，因此 Resolve 直接 panic，
// 之后对同一类别的每次调用都以同样的错误 panic。
package resolver

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/zqzqsb/faultinj/fault"
)

// Error 是解析失败时 panic 的值
type Error struct {
	Category fault.Category
	Symbol   string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("resolve real %s (%s): %v", e.Symbol, e.Category, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// LookupFunc 查找类别对应的真实实现
type LookupFunc[T any] func(fault.Category) (T, error)

type slot[T any] struct {
	once  sync.Once
	done  atomic.Bool
	value T
	err   *Error
}

// Resolver 为每个类别缓存一次查找结果
// 可以被并发使用，查找函数对每个类别最多执行一次，结果此后不再改变
type Resolver[T any] struct {
	lookup LookupFunc[T]
	slots  [fault.NumCategories]slot[T]
}

// New 创建 Resolver
func New[T any](lookup LookupFunc[T]) *Resolver[T] {
	return &Resolver[T]{lookup: lookup}
}

// Resolve 返回类别的真实实现，首次调用时执行查找
func (r *Resolver[T]) Resolve(c fault.Category) T {
	if !c.Valid() {
		panic(&Error{Category: c, Err: fmt.Errorf("unknown category")})
	}
	s := &r.slots[c]
	s.once.Do(func() {
		defer s.done.Store(true)
		v, err := r.lookup(c)
		if err != nil {
			s.err = &Error{Category: c, Symbol: c.Symbol(), Err: err}
			return
		}
		s.value = v
	})
	if s.err != nil {
		panic(s.err)
	}
	return s.value
}

// TryResolve 与 Resolve 相同，但以 error 返回解析失败
func (r *Resolver[T]) TryResolve(c fault.Category) (v T, err error) {
	defer func() {
		if p := recover(); p != nil {
			e, ok := p.(*Error)
			if !ok {
				panic(p)
			}
			err = e
		}
	}()
	return r.Resolve(c), nil
}

// Resolved 报告类别是否已经解析过（无论成功与否）
func (r *Resolver[T]) Resolved(c fault.Category) bool {
	return c.Valid() && r.slots[c].done.Load()
}
