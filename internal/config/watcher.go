package config

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/warmstart/internal/diag"
	"github.com/dshills/warmstart/internal/signal"
)

// Watch emits signal.ConfigChanged whenever the file at path is written or
// recreated. The parent directory is watched, not the file, because
// editors typically replace the file via rename. The returned stop
// function releases the watcher.
func Watch(path string, bus *signal.Bus, log *diag.Logger) (stop func(), err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	target := filepath.Clean(path)
	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Rename) {
					log.Debug("config file changed: %s", ev.Name)
					bus.Emit(signal.ConfigChanged)
				}
			case werr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("config watcher: %v", werr)
			}
		}
	}()

	return func() { watcher.Close() }, nil
}
