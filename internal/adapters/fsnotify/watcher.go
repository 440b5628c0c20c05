// Package fsnotify implements the ports.Watcher interface using github.com/fsnotify/fsnotify.
// It watches individual seed files by watching their parent directories, so
// editors that save by writing a temp file and renaming it over the target
// are still seen. Bursts of events per file are debounced into one callback
// fired after the file has been quiet for the debounce interval.
package fsnotify

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/corey/whiskeybar/internal/logging"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce is how long a file must stay quiet before onChange fires.
const DefaultDebounce = 100 * time.Millisecond

// Watcher implements ports.Watcher using fsnotify.
type Watcher struct {
	fw       *fsnotify.Watcher
	debounce time.Duration
	log      zerolog.Logger
	done     chan struct{}
	wg       sync.WaitGroup
	stopped  bool
	mu       sync.Mutex

	timers map[string]*time.Timer // guarded by mu
}

// NewWatcher creates a new file watcher. debounce <= 0 uses DefaultDebounce.
func NewWatcher(debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		fw:       fw,
		debounce: debounce,
		log:      logging.WithComponent("watcher"),
		done:     make(chan struct{}),
		timers:   make(map[string]*time.Timer),
	}, nil
}

// Watch starts monitoring the given files. onChange is called with the
// absolute path of a file after it was written or (re)created. Calls for
// the same path never overlap.
func (w *Watcher) Watch(paths []string, onChange func(filePath string)) error {
	targets := make(map[string]bool, len(paths))
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		targets[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := w.fw.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	// One lock per path keeps reloads of a file sequential.
	locks := make(map[string]*sync.Mutex, len(targets))
	for p := range targets {
		locks[p] = &sync.Mutex{}
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case event, ok := <-w.fw.Events:
				if !ok {
					return
				}
				path := filepath.Clean(event.Name)
				if !targets[path] {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				w.schedule(path, func() {
					l := locks[path]
					l.Lock()
					defer l.Unlock()
					onChange(path)
				})

			case err, ok := <-w.fw.Errors:
				if !ok {
					return
				}
				w.log.Warn().Err(err).Msg("watch error")

			case <-w.done:
				return
			}
		}
	}()

	return nil
}

// schedule (re)arms the trailing-edge timer for path.
func (w *Watcher) schedule(path string, fire func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		if w.stopped {
			w.mu.Unlock()
			return
		}
		delete(w.timers, path)
		w.wg.Add(1)
		w.mu.Unlock()
		defer w.wg.Done()
		fire()
	})
}

// Stop ends monitoring and releases all resources. Pending callbacks are
// dropped; a callback already running is waited for. Safe to call multiple
// times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	for p, t := range w.timers {
		t.Stop()
		delete(w.timers, p)
	}
	close(w.done)
	w.mu.Unlock()

	err := w.fw.Close()
	w.wg.Wait()
	return err
}
