package storage

import (
	"context"
	"sort"
	"sync"

	"kinesis/internal/model"
)

type MemoryStore struct {
	mu           sync.RWMutex
	initialized  bool
	runs         map[string]model.RunRecord
	snapshots    map[string][]model.SnapshotRecord
	diagnostics  map[string][]model.TickDiagnostics
	morphologies map[string]model.MorphologyRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.snapshots = make(map[string][]model.SnapshotRecord)
	s.diagnostics = make(map[string][]model.TickDiagnostics)
	s.morphologies = make(map[string]model.MorphologyRecord)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].ID < runs[j].ID })
	return runs, nil
}

func (s *MemoryStore) AppendSnapshot(_ context.Context, runID string, snap model.SnapshotRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[runID] = append(s.snapshots[runID], snap)
	return nil
}

func (s *MemoryStore) GetSnapshots(_ context.Context, runID string) ([]model.SnapshotRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snaps, ok := s.snapshots[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]model.SnapshotRecord(nil), snaps...), true, nil
}

func (s *MemoryStore) SaveDiagnostics(_ context.Context, runID string, diagnostics []model.TickDiagnostics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.diagnostics[runID] = append([]model.TickDiagnostics(nil), diagnostics...)
	return nil
}

func (s *MemoryStore) GetDiagnostics(_ context.Context, runID string) ([]model.TickDiagnostics, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	diagnostics, ok := s.diagnostics[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]model.TickDiagnostics(nil), diagnostics...), true, nil
}

func (s *MemoryStore) SaveMorphology(_ context.Context, record model.MorphologyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.morphologies[record.Name] = record
	return nil
}

func (s *MemoryStore) GetMorphology(_ context.Context, name string) (model.MorphologyRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.morphologies[name]
	return record, ok, nil
}
