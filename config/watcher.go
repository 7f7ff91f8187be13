package config

import (
	"sync"
	"sync/atomic"

	"github.com/knadh/koanf/providers/file"
	"go.uber.org/zap"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/internal/logging"
)

// Watcher serves the signing section of a configuration and swaps it when
// the backing file changes. It implements authcore.SigningConfigProvider.
//
// Only the signing section is live. Other sections need a restart.
type Watcher struct {
	loader  Loader
	log     *zap.Logger
	current atomic.Pointer[authcore.SigningConfig]

	mu       sync.Mutex
	provider *file.File
}

// NewWatcher starts from initial.JWT. Call Start to follow the file.
func NewWatcher(loader Loader, initial Config, log *zap.Logger) *Watcher {
	if log == nil {
		log = zap.NewNop()
	}
	w := &Watcher{loader: loader, log: log}
	sc := initial.JWT
	w.current.Store(&sc)
	return w
}

// SigningConfig returns the most recently loaded signing settings.
func (w *Watcher) SigningConfig() authcore.SigningConfig {
	return *w.current.Load()
}

// Reload re-reads every source and swaps the signing section. On error the
// previous settings stay in place.
func (w *Watcher) Reload() error {
	cfg, err := w.loader.read()
	if err != nil {
		logging.Error(w.log, "config reload failed; keeping previous signing settings", err)
		return err
	}
	sc := cfg.JWT
	w.current.Store(&sc)

	if err := sc.Validate(); err != nil {
		w.log.Warn("reloaded signing settings are incomplete; token issuance will fail", zap.Error(err))
	} else {
		w.log.Info("signing settings reloaded",
			zap.String("issuer", sc.Issuer),
			zap.String("audience", sc.Audience),
			zap.Int("expire_minutes", sc.ExpireMinutes),
			zap.Int("previous_keys", len(sc.PreviousKeys)))
	}
	return nil
}

// Start watches the loader's file. It is a no-op without a path.
func (w *Watcher) Start() error {
	if w.loader.Path == "" {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.provider != nil {
		return nil
	}

	p := file.Provider(w.loader.Path)
	if err := p.Watch(func(_ interface{}, err error) {
		if err != nil {
			w.log.Warn("config watch error", zap.Error(err))
			return
		}
		_ = w.Reload()
	}); err != nil {
		return configErr("watch "+w.loader.Path, err)
	}
	w.provider = p
	return nil
}

// Stop ends file watching.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.provider == nil {
		return nil
	}
	err := w.provider.Unwatch()
	w.provider = nil
	return err
}
