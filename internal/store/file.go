package store

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// FileBackend stores the document as one indented JSON file. Every Save
// rewrites the whole file through a temp file and a rename.
type FileBackend struct {
	path   string
	logger *zap.Logger

	mu    sync.Mutex
	known [sha256.Size]byte // hash of the last content this process wrote or saw
}

func NewFileBackend(path string, logger *zap.Logger) (*FileBackend, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileBackend{path: abs, logger: logger}, nil
}

// Path is the absolute location of the document.
func (f *FileBackend) Path() string { return f.path }

// Load reads the file. A missing or malformed file reads as an empty
// document; any other read error is a persistence failure.
func (f *FileBackend) Load(context.Context) (*Document, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return EmptyDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrPersistence, f.path, err)
	}

	doc, err := DecodeDocument(data)
	if err != nil {
		f.logger.Warn("Malformed document, starting empty", zap.String("path", f.path), zap.Error(err))
		return EmptyDocument(), nil
	}
	return doc, nil
}

func (f *FileBackend) Save(_ context.Context, doc *Document) error {
	data, err := EncodeDocument(doc)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrPersistence, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".db-*.json")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write: %v", ErrPersistence, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: sync: %v", ErrPersistence, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close: %v", ErrPersistence, err)
	}

	f.mu.Lock()
	prev := f.known
	f.known = sha256.Sum256(data)
	f.mu.Unlock()

	if err := os.Rename(tmp.Name(), f.path); err != nil {
		f.mu.Lock()
		f.known = prev
		f.mu.Unlock()
		return fmt.Errorf("%w: rename: %v", ErrPersistence, err)
	}
	return nil
}

func (f *FileBackend) Close() error { return nil }

// Watch calls onChange whenever the file's content changes to something this
// process did not write. It blocks until ctx is done.
func (f *FileBackend) Watch(ctx context.Context, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	// Renames replace the inode, so watch the directory rather than the file
	if err := w.Add(filepath.Dir(f.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(f.path), err)
	}
	if data, err := os.ReadFile(f.path); err == nil {
		f.mu.Lock()
		f.known = sha256.Sum256(data)
		f.mu.Unlock()
	}
	f.logger.Info("Watching document", zap.String("path", f.path))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != f.path || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			if f.changedOutside() {
				onChange()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			f.logger.Warn("Watcher error", zap.Error(err))
		}
	}
}

func (f *FileBackend) changedOutside() bool {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return false
	}
	sum := sha256.Sum256(data)

	f.mu.Lock()
	defer f.mu.Unlock()
	if sum == f.known {
		return false
	}
	f.known = sum
	return true
}
