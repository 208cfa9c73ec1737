package database

import (
	"context"
	"sync"

	"langaccessor/models"
)

// MemoryStore keeps everything in process memory. State is lost on exit.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
	rules  []models.Rule
	notifier
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Get(ctx context.Context, keys ...string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := m.values[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (m *MemoryStore) Set(ctx context.Context, values map[string]string) error {
	m.mu.Lock()
	var changed []string
	for k, v := range values {
		if old, ok := m.values[k]; ok && old == v {
			continue
		}
		m.values[k] = v
		changed = append(changed, k)
	}
	m.mu.Unlock()

	m.notify(changed)
	return nil
}

func (m *MemoryStore) Subscribe(fn ChangeListener) func() {
	return m.subscribe(fn)
}

func (m *MemoryStore) LoadRules(ctx context.Context) ([]models.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Rule(nil), m.rules...), nil
}

func (m *MemoryStore) SaveRules(ctx context.Context, rules []models.Rule) error {
	cp := append([]models.Rule(nil), rules...)
	sortRules(cp)
	m.mu.Lock()
	m.rules = cp
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
