package buildconfig

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"quickplan/pkg/logger"
)

const defaultDebounce = 200 * time.Millisecond

// ReloadObserver 在每次重新加载后被调用，err 为 nil 表示成功。
type ReloadObserver func(cfg *BuildConfiguration, err error)

// ProviderOption 配置 Provider。
type ProviderOption func(*Provider)

// WithDebounce 设置文件事件的合并窗口。
func WithDebounce(d time.Duration) ProviderOption {
	return func(p *Provider) {
		if d > 0 {
			p.debounce = d
		}
	}
}

// WithReloadObserver 注册重新加载回调，常用于指标。
func WithReloadObserver(fn ReloadObserver) ProviderOption {
	return func(p *Provider) {
		if fn != nil {
			p.observers = append(p.observers, fn)
		}
	}
}

// Provider 持有当前生效的配置，并在文件变化时重新加载。
// 加载失败时保留上一次成功的配置。
type Provider struct {
	path     string
	loader   *Loader
	debounce time.Duration
	logger   *slog.Logger

	mu          sync.RWMutex
	current     *BuildConfiguration
	subscribers []chan<- *BuildConfiguration
	observers   []ReloadObserver
}

// NewProvider 执行首次加载；首次加载失败直接返回错误。
func NewProvider(path string, loader *Loader, opts ...ProviderOption) (*Provider, error) {
	if loader == nil {
		loader = NewLoader()
	}
	p := &Provider{
		path:     path,
		loader:   loader,
		debounce: defaultDebounce,
		logger:   logger.Named("buildconfig.provider"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	cfg, err := loader.Load(path)
	if err != nil {
		return nil, err
	}
	p.current = cfg
	return p, nil
}

// Path 返回被监视的配置文件路径。
func (p *Provider) Path() string { return p.path }

// Current 返回当前生效的配置。
func (p *Provider) Current() *BuildConfiguration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Subscribe 注册一个通道，每次成功重新加载后收到新配置。发送不会阻塞。
func (p *Provider) Subscribe(ch chan<- *BuildConfiguration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers = append(p.subscribers, ch)
}

// Reload 立即重新加载配置文件。
func (p *Provider) Reload() (*BuildConfiguration, error) {
	cfg, err := p.loader.Load(p.path)

	p.mu.Lock()
	if err == nil {
		p.current = cfg
	}
	subscribers := append([]chan<- *BuildConfiguration(nil), p.subscribers...)
	observers := append([]ReloadObserver(nil), p.observers...)
	p.mu.Unlock()

	for _, fn := range observers {
		fn(cfg, err)
	}
	if err != nil {
		p.logger.Error("build config reload failed, keeping previous configuration",
			slog.String("path", p.path),
			slog.Any("error", err),
		)
		return nil, err
	}
	for _, ch := range subscribers {
		select {
		case ch <- cfg:
		default:
			p.logger.Warn("build config subscriber is not keeping up, dropping update")
		}
	}
	return cfg, nil
}

// Watch 监视配置文件所在目录，直到 ctx 结束。
// 监视目录而不是文件本身，这样编辑器的原子替换也能被捕获。
func (p *Provider) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(p.path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	dir := filepath.Dir(abs)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	p.logger.Info("watching build config", slog.String("path", abs))

	timer := time.NewTimer(p.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(p.debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			p.logger.Warn("build config watcher error", slog.Any("error", err))
		case <-timer.C:
			_, _ = p.Reload()
		}
	}
}
