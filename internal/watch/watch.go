// Package watch provides a debounced, recursive filesystem watcher used by
// `compose --watch` to recompose layered content as its source layers
// change.
//
// Grounded on strawgate-gh-aw/pkg/cli/compile_watch.go's
// fsnotify.NewWatcher + debounce-timer idiom, generalized from a single
// workflows directory to an arbitrary set of root directories and from a
// hardcoded ".md" suffix filter to a caller-supplied predicate.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce matches the teacher's 300ms coalescing window.
const DefaultDebounce = 300 * time.Millisecond

// Options configures Run.
type Options struct {
	// Roots are directories to watch recursively. Missing roots are
	// skipped rather than erroring, since a pack's override directory is
	// commonly absent.
	Roots []string

	// Debounce is the coalescing window between a change and the
	// resulting rebuild. Zero uses DefaultDebounce.
	Debounce time.Duration

	// Accept reports whether a changed path should trigger a rebuild.
	// A nil Accept accepts every event except a bare chmod, directory
	// events included.
	Accept func(path string) bool

	// Rebuild runs once per debounce window that observed at least one
	// accepted change. Its error is passed to OnRebuildError and does
	// not stop watching.
	Rebuild func() error

	// OnRebuildError receives any error Rebuild returns, and any error the
	// underlying watcher reports, for the caller to log. A nil
	// OnRebuildError discards the error.
	OnRebuildError func(error)
}

// Run watches Options.Roots until ctx is cancelled, invoking Rebuild once
// immediately and again after each debounced batch of accepted changes.
func Run(ctx context.Context, opts Options) error {
	if opts.Rebuild == nil {
		return nil
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	for _, root := range opts.Roots {
		if err := addRecursive(watcher, root); err != nil {
			return err
		}
	}

	if err := opts.Rebuild(); err != nil && opts.OnRebuildError != nil {
		opts.OnRebuildError(err)
	}

	var (
		mu    sync.Mutex
		timer *time.Timer
		dirty bool
	)
	schedule := func() {
		mu.Lock()
		defer mu.Unlock()
		dirty = true
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounce, func() {
			mu.Lock()
			shouldRun := dirty
			dirty = false
			mu.Unlock()
			if !shouldRun {
				return
			}
			if err := opts.Rebuild(); err != nil && opts.OnRebuildError != nil {
				opts.OnRebuildError(err)
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Chmod) {
				continue
			}
			if opts.Accept != nil && !opts.Accept(event.Name) {
				continue
			}
			schedule()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if opts.OnRebuildError != nil {
				opts.OnRebuildError(err)
			}
		}
	}
}

// addRecursive adds root and every subdirectory beneath it to watcher. A
// missing root is silently skipped.
func addRecursive(watcher *fsnotify.Watcher, root string) error {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil
	}
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			_ = watcher.Add(path)
		}
		return nil
	})
}
