package mirror

import (
	"context"
	"sync"

	"llmspub/internal/pub"
)

// MemoryMirror stores copies in memory. Test use only.
type MemoryMirror struct {
	mu    sync.Mutex
	files map[string][]byte
}

// NewMemoryMirror creates an empty in-memory mirror.
func NewMemoryMirror() *MemoryMirror {
	return &MemoryMirror{files: make(map[string][]byte)}
}

func (m *MemoryMirror) Put(_ context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.files[name] = cp
	return nil
}

// Get returns a stored copy and whether it exists.
func (m *MemoryMirror) Get(name string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[name]
	return data, ok
}

// Len returns the number of stored copies.
func (m *MemoryMirror) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

var _ pub.Archiver = (*MemoryMirror)(nil)
