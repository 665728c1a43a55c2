package local

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/afrisam/internal/logger"
)

// settleDelay is how long a file must stay quiet before it is reported.
// Extracts are large and arrive through many write events.
const settleDelay = 2 * time.Second

// Watch reports CSV files created or rewritten in the directory. Each path
// is sent once it has been quiet for the settle delay. The channel closes
// when ctx is done.
func (f *Fetcher) Watch(ctx context.Context) (<-chan string, error) {
	return f.watch(ctx, settleDelay)
}

func (f *Fetcher) watch(ctx context.Context, settle time.Duration) (<-chan string, error) {
	if f.isClosed() {
		return nil, ErrClosed
	}
	if info, err := os.Stat(f.dir); err != nil {
		return nil, fmt.Errorf("watch directory: %w", err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("watch directory: %s is not a directory", f.dir)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(f.dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch directory: %w", err)
	}

	out := make(chan string)
	go func() {
		defer close(out)
		defer w.Close()

		pending := make(map[string]time.Time)
		ticker := time.NewTicker(settle / 4)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !IsExtractFile(ev.Name) {
					continue
				}
				switch {
				case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
					pending[ev.Name] = time.Now()
				case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
					delete(pending, ev.Name)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("watch %s: %v", f.dir, err)
			case now := <-ticker.C:
				for path, last := range pending {
					if now.Sub(last) < settle {
						continue
					}
					delete(pending, path)
					select {
					case out <- path:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return out, nil
}
