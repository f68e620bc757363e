package config

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a config file when it changes and hands the parsed result
// to an apply callback. Editors often replace files atomically (write temp,
// rename over), so the watch is on the parent directory and events are
// filtered by name.
type Watcher struct {
	path  string
	apply func(Config)
	log   *slog.Logger
	fsw   *fsnotify.Watcher
	done  chan struct{}
}

// NewWatcher starts watching path. Each successful reload invokes apply;
// parse and validation failures are logged and the previous configuration
// stays in effect.
func NewWatcher(path string, apply func(Config), log *slog.Logger) (*Watcher, error) {
	if log == nil {
		log = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	w := &Watcher{
		path:  path,
		apply: apply,
		log:   log,
		fsw:   fsw,
		done:  make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() error {
	err := w.fsw.Close()
	<-w.done
	return err
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				w.log.Warn("config reload rejected", "path", w.path, "err", err)
				continue
			}
			w.log.Info("config reloaded", "path", w.path)
			w.apply(cfg)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("config watch error", "err", err)
		}
	}
}
