// Package watch scans images as they land in a hot folder.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ironsheep/docscan-mcp/internal/batch"
	"github.com/ironsheep/docscan-mcp/internal/imaging"
)

const minPoll = 50 * time.Millisecond

// Watcher feeds new image files in a directory to a batch.Runner once they
// have stopped changing.
type Watcher struct {
	dir     string
	settle  time.Duration
	runner  *batch.Runner
	logger  *slog.Logger
	watcher *fsnotify.Watcher
	onDone  func(batch.Outcome)

	mu       sync.RWMutex
	running  bool
	stopCh   chan struct{}
	stopOnce sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithCallback registers fn to receive every outcome. It is called from
// worker goroutines.
func WithCallback(fn func(batch.Outcome)) Option {
	return func(w *Watcher) { w.onDone = fn }
}

// New creates a watcher for dir. A file is scanned once no event has been
// seen for it during settle.
func New(dir string, settle time.Duration, runner *batch.Runner, logger *slog.Logger, opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	w := &Watcher{
		dir:     dir,
		settle:  settle,
		runner:  runner,
		logger:  logger,
		watcher: fw,
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run watches until ctx is cancelled or Stop is called, then waits for
// in-flight scans to finish.
func (w *Watcher) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher for %s already running", w.dir)
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	w.logger.Info("Watching folder", "dir", w.dir, "settle", w.settle, "workers", w.runner.Workers())

	jobs := make(chan string, 256)
	var wg sync.WaitGroup
	for i := 0; i < w.runner.Workers(); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				outcome := w.runner.Process(ctx, path)
				if w.onDone != nil {
					w.onDone(outcome)
				}
			}
		}()
	}

	w.loop(ctx, jobs)
	close(jobs)
	wg.Wait()
	return nil
}

func (w *Watcher) loop(ctx context.Context, jobs chan<- string) {
	poll := w.settle / 4
	if poll < minPoll {
		poll = minPoll
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	pending := map[string]time.Time{}
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(ev.Name) {
				continue
			}
			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				pending[ev.Name] = time.Now()
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				delete(pending, ev.Name)
			}

		case now := <-ticker.C:
			for path, last := range pending {
				if now.Sub(last) < w.settle {
					continue
				}
				delete(pending, path)
				w.logger.Debug("File settled", "path", path)
				select {
				case jobs <- path:
				case <-ctx.Done():
					return
				case <-w.stopCh:
					return
				}
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", "error", err)

		case <-w.stopCh:
			w.logger.Info("Watcher stopped")
			return

		case <-ctx.Done():
			w.logger.Info("Watcher context cancelled")
			return
		}
	}
}

// relevant filters out unsupported files and the runner's own outputs.
func (w *Watcher) relevant(path string) bool {
	name := filepath.Base(path)
	return imaging.IsSupported(name) && !w.runner.IsOutput(name)
}

// Stop ends Run and releases the underlying watcher.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() { close(w.stopCh) })
	return w.watcher.Close()
}
