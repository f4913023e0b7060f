package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"evalgo.org/mycelium/models"
)

// Memory is an in-process Handle. The version token is recomputed lazily
// after mutations.
type Memory struct {
	id      string
	mu      sync.RWMutex
	triples map[string]models.Triple
	version string
	dirty   bool
	// Context compacts JSON-LD output when set.
	Context interface{}
}

// NewMemory creates an empty in-memory graph for target id.
func NewMemory(id string) *Memory {
	return &Memory{id: id, triples: make(map[string]models.Triple), dirty: true}
}

// NewMemoryFrom builds a graph preloaded with triples.
func NewMemoryFrom(id string, triples []models.Triple) (*Memory, error) {
	m := NewMemory(id)
	for _, t := range triples {
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("invalid triple %s: %w", t, err)
		}
		t = t.Normalize()
		m.triples[t.Key()] = t
	}
	return m, nil
}

func (m *Memory) ID() string { return m.id }

// CurrentVersion returns the content fingerprint, recomputed only after a change.
func (m *Memory) CurrentVersion(_ context.Context) (string, error) {
	m.mu.RLock()
	if !m.dirty {
		v := m.version
		m.mu.RUnlock()
		return v, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dirty {
		v, err := Fingerprint(m.sortedLocked())
		if err != nil {
			return "", err
		}
		m.version = v
		m.dirty = false
	}
	return m.version, nil
}

// ApplyTriple adds or removes one triple and reports whether the content changed.
func (m *Memory) ApplyTriple(_ context.Context, op models.Operation) (bool, error) {
	if err := op.Validate(); err != nil {
		return false, err
	}
	t := op.Triple.Normalize()
	key := t.Key()

	m.mu.Lock()
	defer m.mu.Unlock()
	_, present := m.triples[key]
	switch op.Kind {
	case models.OpAdd:
		if present {
			return false, nil
		}
		m.triples[key] = t
	case models.OpRemove:
		if !present {
			return false, nil
		}
		delete(m.triples, key)
	default:
		return false, fmt.Errorf("unknown operation %q", op.Kind)
	}
	m.dirty = true
	return true, nil
}

func (m *Memory) Contains(_ context.Context, t models.Triple) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.triples[t.Normalize().Key()]
	return ok, nil
}

func (m *Memory) Triples(_ context.Context) ([]models.Triple, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedLocked(), nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.triples)
}

// Serialize renders the graph as N-Quads or JSON-LD.
func (m *Memory) Serialize(ctx context.Context, format Format) ([]byte, error) {
	triples, err := m.Triples(ctx)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatNQuads, "":
		text, err := canonicalNQuads(triples)
		if err != nil {
			return nil, err
		}
		return []byte(text), nil
	case FormatJSONLD:
		doc, err := toJSONLD(triples, m.Context)
		if err != nil {
			return nil, err
		}
		return json.MarshalIndent(doc, "", "  ")
	default:
		return nil, fmt.Errorf("unknown graph format %q", format)
	}
}

// Replace swaps the whole content, used when restoring a snapshot.
func (m *Memory) Replace(triples []models.Triple) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triples = make(map[string]models.Triple, len(triples))
	for _, t := range triples {
		t = t.Normalize()
		m.triples[t.Key()] = t
	}
	m.dirty = true
}

func (m *Memory) sortedLocked() []models.Triple {
	keys := make([]string, 0, len(m.triples))
	for k := range m.triples {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]models.Triple, 0, len(keys))
	for _, k := range keys {
		out = append(out, m.triples[k])
	}
	return out
}
