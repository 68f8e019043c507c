package observer

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/HendryAvila/mybrain/internal/analyzer"
)

// watcher nudges the observer when source files under root change, so a
// sleeping observer rescans without waiting for the next schedule tick.
type watcher struct {
	root     string
	fsw      *fsnotify.Watcher
	logger   zerolog.Logger
	debounce time.Duration
	onChange func()

	mu     sync.Mutex
	timer  *time.Timer
	stopCh chan struct{}
	done   chan struct{}
}

func newWatcher(root string, debounce time.Duration, onChange func(), logger zerolog.Logger) (*watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &watcher{
		root:     root,
		fsw:      fsw,
		logger:   logger,
		debounce: debounce,
		onChange: onChange,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	w.addTree(root)
	go w.run()
	return w, nil
}

// addTree registers dir and every non-ignored directory below it.
// fsnotify is not recursive.
func (w *watcher) addTree(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != dir && analyzer.IgnoredDirs[d.Name()] {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.logger.Debug().Err(err).Str("dir", path).Msg("watch failed")
		}
		return nil
	})
}

func (w *watcher) run() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Lstat(event.Name); err == nil && info.IsDir() {
					w.addTree(event.Name)
					continue
				}
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				if isSource(event.Name) {
					w.schedule()
				}
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("file watcher error")
		case <-w.stopCh:
			return
		}
	}
}

func (w *watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.onChange)
}

func (w *watcher) close() {
	close(w.stopCh)
	_ = w.fsw.Close()
	<-w.done
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
}

func isSource(name string) bool {
	return analyzer.SourceExtensions[strings.ToLower(filepath.Ext(name))]
}

// follow keeps the watcher on the active workbase root, replacing it when the
// workbase changes. Failures only disable early wakeups.
func (o *Observer) follow(w *watcher) *watcher {
	wb, ok := o.active.Get()
	root := ""
	if ok {
		root = wb.RootPath
	}
	if w != nil && w.root == root {
		return w
	}
	if w != nil {
		w.close()
	}
	if root == "" {
		return nil
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return nil
	}
	nw, err := newWatcher(root, o.cfg.WatchDebounce, o.Nudge, o.log)
	if err != nil {
		o.log.Warn().Err(err).Str("root", root).Msg("file watching disabled")
		return nil
	}
	return nw
}
