// Package store persists captured artifacts under fixed names.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// PhotoName is the artifact written by /capture and served by /saved_photo.
const PhotoName = "photo.jpg"

const indexName = "artifacts.json"

var ErrNotFound = errors.New("artifact not found")

// StorageError wraps an I/O failure while persisting or loading an artifact.
type StorageError struct {
	Op   string
	Name string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Name, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Store is a durable byte store keyed by artifact name.
type Store interface {
	Put(name string, data []byte) error
	Get(name string) ([]byte, error)
}

// Artifact describes one stored entry in the index.
type Artifact struct {
	Name      string    `json:"name"`
	Size      int       `json:"size"`
	Timestamp time.Time `json:"timestamp"`
}

// FileStore keeps each artifact as a file in a data directory, plus a JSON
// index of what was written and when.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

// NewFileStore points the store at dataDir. The directory is created on
// the first write.
func NewFileStore(dataDir string) *FileStore {
	return &FileStore{dir: dataDir}
}

// Dir returns the data directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// ensureDir creates the directory if it doesn't exist
func ensureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0755)
}

func (s *FileStore) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == indexName {
		return "", fmt.Errorf("invalid artifact name %q", name)
	}
	return filepath.Join(s.dir, name), nil
}

// Put replaces the artifact. Readers see either the old or the new bytes.
// Once the artifact is in place Put succeeds; an index failure is only logged.
func (s *FileStore) Put(name string, data []byte) error {
	path, err := s.path(name)
	if err != nil {
		return &StorageError{Op: "put", Name: name, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ensureDir(path); err != nil {
		return &StorageError{Op: "put", Name: name, Err: err}
	}
	if err := writeFileAtomic(path, data); err != nil {
		return &StorageError{Op: "put", Name: name, Err: err}
	}
	if err := s.updateIndex(Artifact{Name: name, Size: len(data), Timestamp: time.Now()}); err != nil {
		slog.Warn("Failed to update artifact index", "name", name, "error", err)
	}
	return nil
}

// Get returns the artifact bytes, or ErrNotFound.
func (s *FileStore) Get(name string) ([]byte, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, &StorageError{Op: "get", Name: name, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, &StorageError{Op: "get", Name: name, Err: err}
	}
	return data, nil
}

// List returns the index entries, one per artifact name.
func (s *FileStore) List() ([]Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readIndex()
}

func (s *FileStore) readIndex() ([]Artifact, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, indexName))
	if err != nil {
		if os.IsNotExist(err) {
			return []Artifact{}, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return []Artifact{}, nil
	}

	var items []Artifact
	if err := json.Unmarshal(data, &items); err != nil {
		// Corrupted index, the next write replaces it.
		return []Artifact{}, nil
	}
	return items, nil
}

func (s *FileStore) updateIndex(a Artifact) error {
	items, err := s.readIndex()
	if err != nil {
		return err
	}

	replaced := false
	for i := range items {
		if items[i].Name == a.Name {
			items[i] = a
			replaced = true
		}
	}
	if !replaced {
		items = append(items, a)
	}

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(s.dir, indexName), data)
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
