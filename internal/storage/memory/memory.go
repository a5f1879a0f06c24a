// Package memory is an in-process storage backend for local runs and tests.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/utafrali/marketplace/internal/storage"
)

type object struct {
	contentType string
	data        []byte
}

// Storage implements storage.Storage using an in-memory map.
type Storage struct {
	mu      sync.RWMutex
	objects map[string]object
	baseURL string
}

// New creates an empty store whose URLs start with baseURL.
func New(baseURL string) *Storage {
	return &Storage{
		objects: make(map[string]object),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

var _ storage.Storage = (*Storage)(nil)

// Upload reads the object into memory.
func (s *Storage) Upload(_ context.Context, input *storage.UploadInput) (*storage.UploadResult, error) {
	data, err := io.ReadAll(input.Data)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", input.Key, err)
	}

	s.mu.Lock()
	s.objects[input.Key] = object{contentType: input.ContentType, data: data}
	s.mu.Unlock()

	return &storage.UploadResult{Key: input.Key, URL: s.baseURL + "/" + input.Key}, nil
}

// Delete removes an object.
func (s *Storage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[key]; !ok {
		return fmt.Errorf("%w: %s", storage.ErrObjectNotFound, key)
	}
	delete(s.objects, key)
	return nil
}

// KeyFromURL strips the base URL.
func (s *Storage) KeyFromURL(url string) (string, bool) {
	key, ok := strings.CutPrefix(url, s.baseURL+"/")
	if !ok || key == "" {
		return "", false
	}
	return key, true
}

// Ping always succeeds.
func (s *Storage) Ping(context.Context) error { return nil }

// Open returns the stored object for serving.
func (s *Storage) Open(key string) (io.Reader, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, "", false
	}
	return bytes.NewReader(obj.data), obj.contentType, true
}

// Len returns the number of stored objects.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
