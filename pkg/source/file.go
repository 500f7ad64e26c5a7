package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/matzehuels/forceweave/pkg/graph"
)

// DefaultDebounce coalesces bursts of write events into one change.
const DefaultDebounce = 200 * time.Millisecond

// File reads a JSON graph file.
type File struct {
	Path     string
	Debounce time.Duration
	Logger   *log.Logger
}

// NewFile returns a file source for path.
func NewFile(path string, logger *log.Logger) *File {
	if logger == nil {
		logger = log.Default()
	}
	return &File{Path: path, Debounce: DefaultDebounce, Logger: logger}
}

// Name returns "file:<path>".
func (f *File) Name() string { return "file:" + f.Path }

// Fetch reads and leniently decodes the file. Read errors other than a
// missing file are retryable since the file may be mid-write.
func (f *File) Fetch(ctx context.Context) (graph.Data, error) {
	if err := ctx.Err(); err != nil {
		return graph.Data{}, err
	}
	d, err := graph.ReadFile(f.Path, f.Logger)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return graph.Data{}, err
		}
		return graph.Data{}, Retryable(err)
	}
	return d, nil
}

// Watch calls onChange after the file is written, created or renamed into
// place, until ctx ends. The parent directory is watched so atomic
// replacements are seen.
func (f *File) Watch(ctx context.Context, onChange func()) error {
	abs, err := filepath.Abs(f.Path)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	debounce := f.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()
	trigger := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounce, func() {
			if ctx.Err() == nil {
				onChange()
			}
		})
	}

	target := filepath.Base(abs)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != target {
				continue
			}
			switch {
			case ev.Op&fsnotify.Remove != 0:
				f.Logger.Warn("watched file removed", "path", f.Path)
			case ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0:
				trigger()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			f.Logger.Warn("watch error", "path", f.Path, "error", err)
		}
	}
}
