package fault

import (
	"os"
	"sync"
)

// Provider 提供键值形式的配置，键为 LIBFAULTINJ_* 环境变量名
// 实现必须可以被并发调用
type Provider interface {
	Lookup(key string) (string, bool)
}

// EnvProvider 在调用时读取进程环境变量
type EnvProvider struct{}

// Lookup 实现 Provider
func (EnvProvider) Lookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// MapProvider 是内存中的配置，主要用于测试和命令行参数
type MapProvider struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewMapProvider 创建 MapProvider，初始值从 kv 复制
func NewMapProvider(kv map[string]string) *MapProvider {
	m := make(map[string]string, len(kv))
	for k, v := range kv {
		m[k] = v
	}
	return &MapProvider{m: m}
}

// Lookup 实现 Provider
func (p *MapProvider) Lookup(key string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.m[key]
	return v, ok
}

// Set 设置一个键，后写覆盖先写
func (p *MapProvider) Set(key, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.m == nil {
		p.m = make(map[string]string)
	}
	p.m[key] = value
}

// Unset 删除一个键
func (p *MapProvider) Unset(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.m, key)
}

// Clear 删除全部键
func (p *MapProvider) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.m = make(map[string]string)
}

// Keys 返回当前全部键值的副本
func (p *MapProvider) Keys() map[string]string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ret := make(map[string]string, len(p.m))
	for k, v := range p.m {
		ret[k] = v
	}
	return ret
}

// Chain 按顺序查询多个 Provider，第一个存在该键的结果生效
type Chain []Provider

// Lookup 实现 Provider
func (c Chain) Lookup(key string) (string, bool) {
	for _, p := range c {
		if p == nil {
			continue
		}
		if v, ok := p.Lookup(key); ok {
			return v, true
		}
	}
	return "", false
}
