package history

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	// ErrQuotaExceeded is returned when a write would not fit.
	ErrQuotaExceeded = errors.New("history storage quota exceeded")
	// ErrNotFound is returned for a key that was never written.
	ErrNotFound = errors.New("history key not found")
)

// Backend is a keyed, size-bounded local store.
type Backend interface {
	Get(key string) ([]byte, error)
	Set(key string, data []byte) error
	Remove(key string) error
}

// FileBackend keeps each key in <dir>/<key>.json.
type FileBackend struct {
	dir   string
	quota int64
	mu    sync.Mutex
}

// NewFileBackend creates dir if needed. A quota of zero or less means unbounded.
func NewFileBackend(dir string, quota int64) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	return &FileBackend{dir: dir, quota: quota}, nil
}

func (f *FileBackend) Dir() string { return f.dir }

func (f *FileBackend) path(key string) (string, error) {
	if key == "" || strings.Contains(key, "..") || strings.ContainsAny(key, `/\`) {
		return "", fmt.Errorf("invalid history key: %q", key)
	}
	return filepath.Join(f.dir, key+".json"), nil
}

func (f *FileBackend) Get(key string) ([]byte, error) {
	p, err := f.path(key)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

// Set writes through a temp file and rename so a reader never sees half a payload.
func (f *FileBackend) Set(key string, data []byte) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}
	if f.quota > 0 && int64(len(data)) > f.quota {
		return fmt.Errorf("%w: %d bytes over %d", ErrQuotaExceeded, len(data), f.quota)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(f.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	return os.Rename(tmp.Name(), p)
}

func (f *FileBackend) Remove(key string) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// MemoryBackend is an in-process Backend with the same quota semantics.
type MemoryBackend struct {
	quota int64
	mu    sync.RWMutex
	data  map[string][]byte
}

func NewMemoryBackend(quota int64) *MemoryBackend {
	return &MemoryBackend{quota: quota, data: make(map[string][]byte)}
}

func (m *MemoryBackend) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryBackend) Set(key string, data []byte) error {
	if m.quota > 0 && int64(len(data)) > m.quota {
		return fmt.Errorf("%w: %d bytes over %d", ErrQuotaExceeded, len(data), m.quota)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryBackend) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
