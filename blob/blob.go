// Package blob abstracts the public-read image store the admin panel
// uploads into.
package blob

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Store persists an uploaded object and returns its public-read URL.
type Store interface {
	Put(path, contentType string, data []byte) (url string, err error)
}

// FileStore writes objects under a root directory and serves them under a
// base URL, typically via a static file server or CDN in front.
type FileStore struct {
	root    string
	baseURL string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a filesystem-backed store. baseURL should not carry
// a trailing slash.
func NewFileStore(root, baseURL string) *FileStore {
	return &FileStore{root: root, baseURL: strings.TrimSuffix(baseURL, "/")}
}

func (s *FileStore) Put(path, contentType string, data []byte) (string, error) {
	dest := filepath.Join(s.root, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return "", fmt.Errorf("creating upload directory: %w", err)
	}
	if err := os.WriteFile(dest, data, 0o640); err != nil {
		return "", fmt.Errorf("writing upload: %w", err)
	}
	return s.baseURL + "/" + path, nil
}

// MemoryStore is an in-memory Store for tests. It records content types so
// tests can assert on what was stored.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string]Object
}

// Object is one stored blob.
type Object struct {
	ContentType string
	Data        []byte
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]Object)}
}

func (s *MemoryStore) Put(path, contentType string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = Object{
		ContentType: contentType,
		Data:        append([]byte(nil), data...),
	}
	return "memory://" + path, nil
}

// Get returns a stored object. Test helper.
func (s *MemoryStore) Get(path string) (Object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[path]
	return obj, ok
}

// Len reports the number of stored objects. Test helper.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
