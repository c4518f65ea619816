// server/internal/blobstore/memory.go
package blobstore

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
)

// Memory keeps blobs in process. URLs point at BaseURL + path.
type Memory struct {
	BaseURL string

	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func NewMemory(baseURL string) *Memory {
	return &Memory{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

func (m *Memory) Upload(ctx context.Context, path string, body io.Reader, _ int64, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return eris.Wrapf(err, "blobstore: read body for %s", path)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = data
	m.types[path] = contentType
	return nil
}

func (m *Memory) URL(_ context.Context, path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[path]; !ok {
		return "", ErrNotFound
	}
	return m.BaseURL + "/" + strings.TrimPrefix(path, "/"), nil
}

// Object returns the stored bytes and content type.
func (m *Memory) Object(path string) ([]byte, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[path]
	return data, m.types[path], ok
}

// Len is the number of stored objects.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

func (m *Memory) Ping(ctx context.Context) error {
	return ctx.Err()
}
