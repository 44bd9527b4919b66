package testutil

import (
	"sort"
	"sync"
	"time"

	"llmspub/internal/pub"
)

// MemoryStore is an in-memory pub.Store. Safe for concurrent use.
type MemoryStore struct {
	mu        sync.Mutex
	nextID    int64
	history   map[int64]*pub.HistoryEntry
	schedules map[string]*pub.ScheduleConfig
	runs      []*pub.RunRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:    1,
		history:   make(map[int64]*pub.HistoryEntry),
		schedules: make(map[string]*pub.ScheduleConfig),
	}
}

func (s *MemoryStore) AppendHistory(e *pub.HistoryEntry) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	cp.ID = s.nextID
	s.nextID++
	s.history[cp.ID] = &cp
	return cp.ID, nil
}

func (s *MemoryStore) GetHistoryEntry(id int64) (*pub.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.history[id]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (s *MemoryStore) ListHistory(ownerID string, limit int) ([]*pub.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked(ownerID, limit, time.Time{}), nil
}

func (s *MemoryStore) ListHistorySince(ownerID string, after time.Time) ([]*pub.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked(ownerID, 0, after), nil
}

// listLocked returns copies newest first. limit 0 means unlimited; a
// non-zero after excludes entries at or before it.
func (s *MemoryStore) listLocked(ownerID string, limit int, after time.Time) []*pub.HistoryEntry {
	var entries []*pub.HistoryEntry
	for _, e := range s.history {
		if e.OwnerID != ownerID {
			continue
		}
		if !after.IsZero() && !e.CreatedAt.After(after) {
			continue
		}
		cp := *e
		entries = append(entries, &cp)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].ID > entries[j].ID
		}
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

func (s *MemoryStore) UpdateHistoryPaths(id int64, filePaths string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.history[id]; ok {
		e.FilePaths = filePaths
	}
	return nil
}

func (s *MemoryStore) DeleteHistoryEntry(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.history, id)
	return nil
}

func (s *MemoryStore) GetSchedule(ownerID string) (*pub.ScheduleConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.schedules[ownerID]
	if !ok {
		return nil, nil
	}
	cp := *cfg
	return &cp, nil
}

func (s *MemoryStore) SaveSchedule(cfg *pub.ScheduleConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *cfg
	s.schedules[cfg.OwnerID] = &cp
	return nil
}

func (s *MemoryStore) ListEnabledSchedules() ([]*pub.ScheduleConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var cfgs []*pub.ScheduleConfig
	for _, cfg := range s.schedules {
		if cfg.Enabled {
			cp := *cfg
			cfgs = append(cfgs, &cp)
		}
	}
	sort.Slice(cfgs, func(i, j int) bool { return cfgs[i].OwnerID < cfgs[j].OwnerID })
	return cfgs, nil
}

func (s *MemoryStore) AppendRunRecord(r *pub.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.runs = append(s.runs, &cp)
	return nil
}

func (s *MemoryStore) ListRunRecords(ownerID string, limit int) ([]*pub.RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var records []*pub.RunRecord
	for i := len(s.runs) - 1; i >= 0; i-- {
		if s.runs[i].OwnerID != ownerID {
			continue
		}
		cp := *s.runs[i]
		records = append(records, &cp)
		if limit > 0 && len(records) >= limit {
			break
		}
	}
	return records, nil
}

func (s *MemoryStore) Close() error { return nil }

var _ pub.Store = (*MemoryStore)(nil)
