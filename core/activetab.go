package core

import (
	"net/url"
	"sync"
	"time"

	"langaccessor/models"
)

// ActiveTabTracker remembers the last top-level document requested through the proxy.
type ActiveTabTracker struct {
	mu  sync.RWMutex
	tab *models.Tab
}

func NewActiveTabTracker() *ActiveTabTracker {
	return &ActiveTabTracker{}
}

// Record makes u the active tab. The title is cleared until SetTitle fills it in.
func (t *ActiveTabTracker) Record(u *url.URL, seen time.Time) {
	if u == nil || u.Hostname() == "" {
		return
	}
	tab := &models.Tab{URL: u.String(), Hostname: normalizeHost(u.Hostname()), LastSeen: seen}
	t.mu.Lock()
	t.tab = tab
	t.mu.Unlock()
}

// SetTitle sets the title if rawURL is still the active tab.
func (t *ActiveTabTracker) SetTitle(rawURL, title string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.tab != nil && t.tab.URL == rawURL {
		t.tab.Title = title
	}
}

// Current returns a copy of the active tab.
func (t *ActiveTabTracker) Current() (models.Tab, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.tab == nil {
		return models.Tab{}, false
	}
	return *t.tab, true
}
