package database

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// watcher reports every change under root, including directories created
// after it started.
type watcher struct {
	fs       *fsnotify.Watcher
	onChange func()
	logger   *slog.Logger
	done     chan struct{}
	wg       sync.WaitGroup
}

func newWatcher(root string, onChange func(), logger *slog.Logger) (*watcher, error) {
	if onChange == nil {
		return nil, errors.New("change callback is required")
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &watcher{
		fs:       fsWatcher,
		onChange: onChange,
		logger:   logger,
		done:     make(chan struct{}),
	}
	if err := w.addTree(root); err != nil {
		_ = fsWatcher.Close()
		return nil, err
	}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

func (w *watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			return nil
		}
		if err := w.fs.Add(path); err != nil {
			return fmt.Errorf("watch directory %s: %w", path, err)
		}
		return nil
	})
}

func (w *watcher) run() {
	defer w.wg.Done()
	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			// Hidden entries never become views; a temp file renamed into
			// place shows up as a Create of the visible name.
			if strings.HasPrefix(filepath.Base(event.Name), ".") {
				continue
			}
			if event.Has(fsnotify.Create) {
				if err := w.addTree(event.Name); err != nil && !errors.Is(err, fs.ErrNotExist) {
					w.logger.Warn("watch new directory failed",
						slog.String("path", event.Name),
						slog.Any("error", err),
					)
				}
			}
			w.onChange()
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", slog.Any("error", err))
		case <-w.done:
			return
		}
	}
}

func (w *watcher) Close() error {
	close(w.done)
	err := w.fs.Close()
	w.wg.Wait()
	return err
}
