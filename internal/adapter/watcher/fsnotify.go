// Package watcher reports changes to corpus files.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/arturoeanton/go-english-tutor/internal/port"
	"github.com/fsnotify/fsnotify"
)

// FSNotifyWatcher emits port.CorpusEvent for files with watched extensions.
type FSNotifyWatcher struct {
	watcher    *fsnotify.Watcher
	extensions []string
}

// NewFSNotifyWatcher creates a watcher filtering on extensions (".json", ".txt", ".md" if empty).
func NewFSNotifyWatcher(extensions []string) (*FSNotifyWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if len(extensions) == 0 {
		extensions = []string{".json", ".txt", ".md"}
	}
	return &FSNotifyWatcher{watcher: w, extensions: extensions}, nil
}

// Watch adds dirs and all their subdirectories, then streams file events until
// ctx is done or the watcher is stopped. Subdirectories created later are
// added as they appear. The returned channel is closed on exit.
func (w *FSNotifyWatcher) Watch(ctx context.Context, dirs ...string) (<-chan port.CorpusEvent, error) {
	for _, dir := range dirs {
		if err := w.addTree(dir); err != nil {
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	events := make(chan port.CorpusEvent, 100)

	go func() {
		defer close(events)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Create) {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
						if err := w.addTree(event.Name); err != nil {
							slog.Warn("corpus watcher: add directory failed", "path", event.Name, "error", err)
						}
						continue
					}
				}
				if !w.watched(event.Name) {
					continue
				}

				var op port.CorpusOperation
				switch {
				case event.Has(fsnotify.Create):
					op = port.CorpusFileCreated
				case event.Has(fsnotify.Write):
					op = port.CorpusFileModified
				case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
					op = port.CorpusFileDeleted
				default:
					continue
				}

				select {
				case events <- port.CorpusEvent{Path: event.Name, Operation: op}:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("corpus watcher error", "error", err)
			}
		}
	}()

	return events, nil
}

// Stop releases the underlying watcher.
func (w *FSNotifyWatcher) Stop() error {
	return w.watcher.Close()
}

// addTree watches root and every directory below it.
func (w *FSNotifyWatcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return w.watcher.Add(path)
	})
}

func (w *FSNotifyWatcher) watched(path string) bool {
	return slices.Contains(w.extensions, strings.ToLower(filepath.Ext(path)))
}
