package testutil

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"llmspub/internal/pub"
)

func nanoTime(n int64) time.Time { return time.Unix(0, n) }

// MockFile represents a file in the mock filesystem.
type MockFile struct {
	Content []byte
	ModTime int64 // nanoseconds, from the injected clock
}

// MockFilesystemManager is an in-memory pub.FilesystemManager. Write
// failures can be injected per path. Safe for concurrent use.
type MockFilesystemManager struct {
	mu    sync.Mutex
	clock pub.Clock
	files map[string]*MockFile

	// FailWrites holds paths whose WriteFile calls should fail.
	FailWrites map[string]bool
	// FailReads holds paths whose ReadFile calls should fail.
	FailReads map[string]bool

	writeCount map[string]int
}

// NewMockFilesystemManager creates an empty mock filesystem stamped by the
// given clock.
func NewMockFilesystemManager(clock pub.Clock) *MockFilesystemManager {
	return &MockFilesystemManager{
		clock:      clock,
		files:      make(map[string]*MockFile),
		FailWrites: make(map[string]bool),
		FailReads:  make(map[string]bool),
		writeCount: make(map[string]int),
	}
}

func (m *MockFilesystemManager) Exists(path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[path]
	return ok, nil
}

func (m *MockFilesystemManager) ReadFile(path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailReads[path] {
		return nil, fmt.Errorf("injected read failure: %s", path)
	}
	f, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", path)
	}
	cp := make([]byte, len(f.Content))
	copy(cp, f.Content)
	return cp, nil
}

func (m *MockFilesystemManager) WriteFile(path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites[path] {
		return fmt.Errorf("injected write failure: %s", path)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	m.files[path] = &MockFile{
		Content: cp,
		ModTime: m.clock.Now().UnixNano(),
	}
	m.writeCount[path]++
	return nil
}

func (m *MockFilesystemManager) Remove(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[path]; !ok {
		return fmt.Errorf("file not found: %s", path)
	}
	delete(m.files, path)
	return nil
}

func (m *MockFilesystemManager) ListBackups(targetPath string) ([]pub.BackupFileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prefix := targetPath + ".backup."
	var infos []pub.BackupFileInfo
	for path, f := range m.files {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		infos = append(infos, pub.BackupFileInfo{
			Path:    path,
			ModTime: nanoTime(f.ModTime),
			Size:    int64(len(f.Content)),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return infos, nil
}

// Paths returns every stored path, sorted.
func (m *MockFilesystemManager) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	paths := make([]string, 0, len(m.files))
	for p := range m.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Content returns a file's bytes, or nil when absent.
func (m *MockFilesystemManager) Content(path string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[path]
	if !ok {
		return nil
	}
	return f.Content
}

// WriteCount returns how many times path has been written.
func (m *MockFilesystemManager) WriteCount(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeCount[path]
}

var _ pub.FilesystemManager = (*MockFilesystemManager)(nil)
