package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher watches the config file's directory for changes and invokes
// onReload with the freshly loaded Config whenever the file is written.
// A directory watch, rather than a watch on the file itself, survives the
// common editor pattern of replacing a file via rename-over-write.
type Watcher struct {
	path     string
	envPath  string
	logger   *zap.Logger
	watcher  *fsnotify.Watcher
	onReload func(*Config)
}

// NewWatcher creates a config file watcher. It does not start watching
// until Start is called.
func NewWatcher(path, envPath string, logger *zap.Logger, onReload func(*Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		path:     path,
		envPath:  envPath,
		logger:   logger.With(zap.String("component", "config-watcher")),
		watcher:  fw,
		onReload: onReload,
	}, nil
}

// Start watches the config file's parent directory until ctx is cancelled.
// Blocks the calling goroutine; callers run this in a dedicated goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return err
	}
	defer w.watcher.Close()

	w.logger.Info("config watcher started", zap.String("path", w.path))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("config watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != filepath.Clean(w.path) {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}

	w.logger.Info("config file changed, reloading")
	res := Load(w.path, w.envPath)
	if res.IsErr() {
		w.logger.Warn("config reload failed, keeping previous config", zap.Error(res.Error()))
		return
	}
	cfg, _ := res.Value()
	w.onReload(cfg)
}
