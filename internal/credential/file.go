package credential

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileSource reads a token from a file, such as one maintained by a login
// helper. A missing or empty file means no credential.
type FileSource struct {
	path   string
	logger *slog.Logger

	mu   sync.Mutex
	last string
}

// NewFileSource creates a FileSource for path.
func NewFileSource(path string, logger *slog.Logger) *FileSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSource{
		path:   filepath.Clean(path),
		logger: logger,
	}
}

// Path returns the watched file path.
func (f *FileSource) Path() string {
	return f.path
}

// Token reads the current token.
func (f *FileSource) Token(context.Context) (string, error) {
	token, err := f.read()
	if err != nil {
		return "", err
	}

	f.mu.Lock()
	f.last = token
	f.mu.Unlock()
	return token, nil
}

func (f *FileSource) read() (string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// settleDelay coalesces the burst of events a single save produces
// (truncate, write, chmod) so a half-written file is never reported.
const settleDelay = 50 * time.Millisecond

// Watch calls onChange with the new token whenever the file's token changes,
// including "" when the file is removed or emptied. It blocks until ctx is
// done. The parent directory is watched so editors that replace the file
// are seen.
func (f *FileSource) Watch(ctx context.Context, onChange func(token string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(f.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	// Baseline so the first event only fires on a real change.
	if _, err := f.Token(ctx); err != nil {
		f.logger.Warn("token file unreadable", "path", f.path, "error", err)
	}

	f.logger.Info("watching token file", "path", f.path)

	settle := time.NewTimer(settleDelay)
	settle.Stop()
	defer settle.Stop()

	var lastOp fsnotify.Op
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != f.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			lastOp = event.Op
			settle.Reset(settleDelay)

		case <-settle.C:
			f.check(lastOp, onChange)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.logger.Warn("token file watch error", "path", f.path, "error", err)
		}
	}
}

func (f *FileSource) check(op fsnotify.Op, onChange func(string)) {
	token, err := f.read()
	if err != nil {
		f.logger.Warn("token file unreadable", "path", f.path, "error", err)
		return
	}

	f.mu.Lock()
	changed := token != f.last
	f.last = token
	f.mu.Unlock()

	if !changed {
		return
	}

	f.logger.Info("token file changed",
		"path", f.path,
		"op", op.String(),
		"present", token != "",
	)
	onChange(token)
}
