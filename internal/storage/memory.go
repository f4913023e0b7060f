package storage

import (
	"context"
	"sort"
	"sync"

	"evalgo.org/mycelium/models"
)

type snapshot struct {
	version string
	data    []byte
}

// Memory is a process-local Store. Records are copied on the way in and out.
type Memory struct {
	mu         sync.RWMutex
	patches    map[string]*models.Patch
	spores     map[string]*models.Spore
	violations map[string]*models.Violation
	versions   map[string][]models.VersionRecord
	snapshots  map[string]snapshot
	seq        int64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		patches:    make(map[string]*models.Patch),
		spores:     make(map[string]*models.Spore),
		violations: make(map[string]*models.Violation),
		versions:   make(map[string][]models.VersionRecord),
		snapshots:  make(map[string]snapshot),
	}
}

func (m *Memory) PutPatch(_ context.Context, p *models.Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patches[p.ID] = p.Clone()
	return nil
}

func (m *Memory) GetPatch(_ context.Context, id string) (*models.Patch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.patches[id]
	if !ok {
		return nil, notFound("patch", id)
	}
	return p.Clone(), nil
}

func (m *Memory) ListPatches(_ context.Context, filter PatchFilter) ([]*models.Patch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Patch, 0, len(m.patches))
	for _, p := range m.patches {
		if filter.matches(p) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) PatchExists(_ context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.patches[id]
	return ok, nil
}

func (m *Memory) PutSpore(_ context.Context, s *models.Spore) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.spores[s.ID] = s.Clone()
	return nil
}

func (m *Memory) GetSpore(_ context.Context, id string) (*models.Spore, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.spores[id]
	if !ok {
		return nil, notFound("spore", id)
	}
	return s.Clone(), nil
}

func (m *Memory) ListSpores(_ context.Context) ([]*models.Spore, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Spore, 0, len(m.spores))
	for _, s := range m.spores {
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) PutViolation(_ context.Context, v *models.Violation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.violations[v.ID] = v.Clone()
	return nil
}

func (m *Memory) GetViolation(_ context.Context, id string) (*models.Violation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.violations[id]
	if !ok {
		return nil, notFound("violation", id)
	}
	return v.Clone(), nil
}

func (m *Memory) ListViolations(_ context.Context, filter ViolationFilter) ([]*models.Violation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Violation, 0)
	for _, v := range m.violations {
		if filter.matches(v) {
			out = append(out, v.Clone())
		}
	}
	sortViolations(out)
	return out, nil
}

func (m *Memory) AppendVersionRecord(_ context.Context, rec *models.VersionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	rec.Sequence = m.seq
	m.versions[rec.Target] = append(m.versions[rec.Target], *rec)
	return nil
}

func (m *Memory) ListVersionRecords(_ context.Context, target string) ([]models.VersionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.VersionRecord(nil), m.versions[target]...), nil
}

func (m *Memory) PutSnapshot(_ context.Context, target, version string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[target] = snapshot{version: version, data: append([]byte(nil), data...)}
	return nil
}

func (m *Memory) GetSnapshot(_ context.Context, target string) (string, []byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.snapshots[target]
	if !ok {
		return "", nil, notFound("snapshot", target)
	}
	return s.version, append([]byte(nil), s.data...), nil
}

func (m *Memory) ListSnapshotTargets(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.snapshots))
	for t := range m.snapshots {
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) Close() error { return nil }

// sortViolations orders by creation time, then id.
func sortViolations(vs []*models.Violation) {
	sort.Slice(vs, func(i, j int) bool {
		if !vs[i].CreatedAt.Equal(vs[j].CreatedAt) {
			return vs[i].CreatedAt.Before(vs[j].CreatedAt)
		}
		return vs[i].ID < vs[j].ID
	})
}
