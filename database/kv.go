package database

import (
	"context"
	"errors"
	"sort"
	"sync"

	"langaccessor/models"
)

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown store backend")

// ChangeListener receives the keys whose stored value changed, sorted.
type ChangeListener func(changedKeys []string)

// KV is the raw key-value persistence behind Settings. Values are JSON documents.
type KV interface {
	// Get returns the stored values for keys; missing keys are absent from the result.
	Get(ctx context.Context, keys ...string) (map[string]string, error)
	// Set writes all values in one unit and notifies listeners of the keys whose value changed.
	Set(ctx context.Context, values map[string]string) error
	// Subscribe registers fn for change notifications and returns a function that removes it.
	Subscribe(fn ChangeListener) (unsubscribe func())
}

// RuleStore persists the installed rule set.
type RuleStore interface {
	LoadRules(ctx context.Context) ([]models.Rule, error)
	// SaveRules replaces the whole persisted set in one unit.
	SaveRules(ctx context.Context, rules []models.Rule) error
}

// Backend is a complete store implementation.
type Backend interface {
	KV
	RuleStore
	Close() error
}

// notifier fans change notifications out to subscribers.
type notifier struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]ChangeListener
}

func (n *notifier) subscribe(fn ChangeListener) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.listeners == nil {
		n.listeners = make(map[int]ChangeListener)
	}
	id := n.nextID
	n.nextID++
	n.listeners[id] = fn
	return func() {
		n.mu.Lock()
		delete(n.listeners, id)
		n.mu.Unlock()
	}
}

func (n *notifier) notify(keys []string) {
	if len(keys) == 0 {
		return
	}
	sort.Strings(keys)
	n.mu.Lock()
	listeners := make([]ChangeListener, 0, len(n.listeners))
	for _, fn := range n.listeners {
		listeners = append(listeners, fn)
	}
	n.mu.Unlock()

	for _, fn := range listeners {
		fn(append([]string(nil), keys...))
	}
}

func sortRules(rules []models.Rule) {
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
}
