package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Watch reloads path into holder whenever the file is written or recreated, until ctx is done.
// The parent directory is watched so that atomic editor saves are seen.
// Invalid files are logged and the previous settings are kept.
func Watch(ctx context.Context, path string, holder *Holder, logger *zap.Logger, onReload ...func(Settings)) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	target, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(err, "resolve config path")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create config watcher")
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return errors.Wrapf(err, "watch %s", filepath.Dir(target))
	}

	logger.Info("Watching config for changes", zap.String("path", target))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			s, err := Load(target)
			if err != nil {
				logger.Warn("Config reload rejected", zap.Error(err))
				continue
			}
			holder.Store(s)
			for _, fn := range onReload {
				fn(s)
			}
			logger.Info("Config reloaded", zap.String("path", target))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Config watcher error", zap.Error(err))
		}
	}
}
