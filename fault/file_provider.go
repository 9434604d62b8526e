package fault

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/zqzqsb/faultinj/pkg/logger"
)

// RuleFile 是 YAML 规则文件的结构
//
//	error_path: ./thisfile.txt
//	likelihood_pct: 100
//	errno:
//	  open: ENOENT
//	  read: 5
//	delay_path: ./slow.txt
//	delay_ms:
//	  read: 50
type RuleFile struct {
	ErrorPath     string            `yaml:"error_path"`
	LikelihoodPct *float64          `yaml:"likelihood_pct,omitempty"`
	Errno         map[string]string `yaml:"errno,omitempty"`
	DelayPath     string            `yaml:"delay_path,omitempty"`
	DelayMS       map[string]uint   `yaml:"delay_ms,omitempty"`
}

// ParseRuleFile 解析 YAML 规则
func ParseRuleFile(data []byte) (*RuleFile, error) {
	var f RuleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rule file: %w", err)
	}
	for name := range f.Errno {
		if _, err := ParseCategory(name); err != nil {
			return nil, fmt.Errorf("errno: %w", err)
		}
	}
	for name := range f.DelayMS {
		if _, err := ParseCategory(name); err != nil {
			return nil, fmt.Errorf("delay_ms: %w", err)
		}
	}
	return &f, nil
}

// Keys 把规则文件转换为 LIBFAULTINJ_* 键值
// 错误码原样保留，由 Reader 解析，无效值与环境变量一样被视为没有规则
func (f *RuleFile) Keys() map[string]string {
	kv := make(map[string]string)
	if f.ErrorPath != "" {
		kv[EnvErrorPath] = f.ErrorPath
	}
	if f.LikelihoodPct != nil {
		kv[EnvLikelihood] = strconv.FormatFloat(*f.LikelihoodPct, 'g', -1, 64)
	}
	for name, code := range f.Errno {
		c, err := ParseCategory(name)
		if err != nil {
			continue
		}
		kv[ErrnoKey(c)] = code
	}
	if f.DelayPath != "" {
		kv[EnvDelayPath] = f.DelayPath
	}
	for name, ms := range f.DelayMS {
		c, err := ParseCategory(name)
		if err != nil {
			continue
		}
		kv[DelayKey(c)] = strconv.FormatUint(uint64(ms), 10)
	}
	return kv
}

// FileProvider 从 YAML 规则文件读取配置
// 文件内容缓存在内存中，由 Load 或 Watch 检测到的修改刷新
type FileProvider struct {
	path   string
	logger *logger.Logger

	keys atomic.Pointer[map[string]string]

	// Debounce 是文件变化后等待多久再重新加载
	Debounce time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewFileProvider 创建 FileProvider 并立即加载一次
func NewFileProvider(path string, l *logger.Logger) (*FileProvider, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("rule file path: %w", err)
	}
	p := &FileProvider{
		path:     abs,
		logger:   logger.OrNoop(l),
		Debounce: 50 * time.Millisecond,
	}
	if err := p.Load(); err != nil {
		return nil, err
	}
	return p, nil
}

// Path 返回规则文件的绝对路径
func (p *FileProvider) Path() string {
	return p.path
}

// Load 重新读取规则文件，失败时保留上一次的内容
func (p *FileProvider) Load() error {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("read rule file: %w", err)
	}
	f, err := ParseRuleFile(data)
	if err != nil {
		return err
	}
	kv := f.Keys()
	p.keys.Store(&kv)
	return nil
}

// Lookup 实现 Provider
func (p *FileProvider) Lookup(key string) (string, bool) {
	kv := p.keys.Load()
	if kv == nil {
		return "", false
	}
	v, ok := (*kv)[key]
	return v, ok
}

// Watch 监视规则文件所在目录，文件被写入、创建或替换后重新加载
// 监视在 ctx 结束或 Close 后停止
func (p *FileProvider) Watch(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.watcher != nil {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	// 监视目录，编辑器常用 rename 替换文件
	if err := w.Add(filepath.Dir(p.path)); err != nil {
		w.Close()
		return fmt.Errorf("watch rule file dir: %w", err)
	}
	ctx, cancel := context.WithCancel(ctx)
	p.watcher = w
	p.cancel = cancel

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.watchLoop(ctx, w)
	}()
	p.logger.Debug("watching rule file", "path", p.path)
	return nil
}

// watchLoop 在同一个 goroutine 中重新加载，Close 返回后不会再有加载
func (p *FileProvider) watchLoop(ctx context.Context, w *fsnotify.Watcher) {
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != p.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(p.Debounce)

		case <-timer.C:
			if err := p.Load(); err != nil {
				p.logger.Warn("reload rule file failed", "path", p.path, "error", err)
				continue
			}
			p.logger.Info("rule file reloaded", "path", p.path)

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			p.logger.Warn("rule file watcher error", "error", err)
		}
	}
}

// Close 停止监视
func (p *FileProvider) Close() error {
	p.mu.Lock()
	w, cancel := p.watcher, p.cancel
	p.watcher, p.cancel = nil, nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	var err error
	if w != nil {
		err = w.Close()
	}
	p.wg.Wait()
	return err
}
