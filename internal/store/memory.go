package store

import (
	"context"
	"sync"
)

// MemoryBackend keeps the document in process memory. Useful for tests and
// throwaway demo instances.
type MemoryBackend struct {
	mu  sync.Mutex
	doc *Document
}

// NewMemoryBackend starts from seed, or an empty document when seed is nil.
func NewMemoryBackend(seed *Document) *MemoryBackend {
	if seed == nil {
		seed = EmptyDocument()
	}
	return &MemoryBackend{doc: seed.Clone()}
}

func (m *MemoryBackend) Load(context.Context) (*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doc.Clone(), nil
}

func (m *MemoryBackend) Save(_ context.Context, doc *Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc = doc.Clone()
	return nil
}

func (m *MemoryBackend) Close() error { return nil }
