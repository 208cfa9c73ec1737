package core

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"langaccessor/database"
	"langaccessor/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingRuleStore refuses to save.
type failingRuleStore struct {
	database.RuleStore
}

func (failingRuleStore) SaveRules(ctx context.Context, rules []models.Rule) error {
	return errors.New("disk full")
}

// gatedRuleStore blocks SaveRules until release is closed.
type gatedRuleStore struct {
	database.RuleStore
	saving  chan struct{}
	release chan struct{}
}

func (g *gatedRuleStore) SaveRules(ctx context.Context, rules []models.Rule) error {
	close(g.saving)
	<-g.release
	return g.RuleStore.SaveRules(ctx, rules)
}

func langRule(id int, domain string) models.Rule {
	return models.NewLanguageRule(id, domain, "en-US,en;q=0.9")
}

func TestValidateRule(t *testing.T) {
	valid := langRule(1, "example.com")
	require.NoError(t, ValidateRule(valid))

	tests := []struct {
		name   string
		mutate func(r *models.Rule)
	}{
		{"zero id", func(r *models.Rule) { r.ID = 0 }},
		{"zero priority", func(r *models.Rule) { r.Priority = 0 }},
		{"bad action", func(r *models.Rule) { r.Action.Type = "block" }},
		{"no headers", func(r *models.Rule) { r.Action.RequestHeaders = nil }},
		{"empty header name", func(r *models.Rule) { r.Action.RequestHeaders[0].Header = " " }},
		{"bad operation", func(r *models.Rule) { r.Action.RequestHeaders[0].Operation = "rewrite" }},
		{"set without value", func(r *models.Rule) { r.Action.RequestHeaders[0].Value = "" }},
		{"unparsable accept-language", func(r *models.Rule) { r.Action.RequestHeaders[0].Value = "en;q=abc" }},
		{"remove with value", func(r *models.Rule) { r.Action.RequestHeaders[0].Operation = models.HeaderOperationRemove }},
		{"no domains", func(r *models.Rule) { r.Condition.RequestDomains = nil }},
		{"upper-case domain", func(r *models.Rule) { r.Condition.RequestDomains = []string{"Example.com"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := langRule(1, "example.com")
			tt.mutate(&r)
			assert.ErrorIs(t, ValidateRule(r), ErrMalformedRule)
		})
	}
}

func TestReplaceIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemoryStore()
	e := NewHeaderRuleEngine(store, 3)
	require.NoError(t, e.Replace(ctx, nil, []models.Rule{langRule(1, "a.com"), langRule(2, "b.com")}))

	bad := langRule(4, "d.com")
	bad.Priority = 0
	tests := []struct {
		name    string
		remove  []int
		add     []models.Rule
		wantErr error
	}{
		{"malformed rule", nil, []models.Rule{langRule(3, "c.com"), bad}, ErrMalformedRule},
		{"duplicate within add", nil, []models.Rule{langRule(3, "c.com"), langRule(3, "c2.com")}, ErrDuplicateRuleID},
		{"collides with installed", nil, []models.Rule{langRule(2, "x.com")}, ErrDuplicateRuleID},
		{"quota", nil, []models.Rule{langRule(3, "c.com"), langRule(4, "d.com")}, ErrRuleQuotaExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.Replace(ctx, tt.remove, tt.add)
			assert.ErrorIs(t, err, tt.wantErr)

			installed, err := e.GetInstalled(ctx)
			require.NoError(t, err)
			assert.Equal(t, []models.Rule{langRule(1, "a.com"), langRule(2, "b.com")}, installed)

			persisted, err := store.LoadRules(ctx)
			require.NoError(t, err)
			assert.Len(t, persisted, 2)
		})
	}
}

func TestReplaceRemoveAndReAddSameID(t *testing.T) {
	ctx := context.Background()
	e := NewHeaderRuleEngine(database.NewMemoryStore(), 0)
	require.NoError(t, e.Replace(ctx, nil, []models.Rule{langRule(1, "a.com")}))
	require.NoError(t, e.Replace(ctx, []int{1, 42}, []models.Rule{langRule(1, "b.com")}))

	installed, err := e.GetInstalled(ctx)
	require.NoError(t, err)
	require.Len(t, installed, 1)
	assert.Equal(t, []string{"b.com"}, installed[0].Condition.RequestDomains)
}

func TestReplacePersistFailureLeavesSetUnchanged(t *testing.T) {
	ctx := context.Background()
	e := NewHeaderRuleEngine(failingRuleStore{database.NewMemoryStore()}, 0)
	err := e.Replace(ctx, nil, []models.Rule{langRule(1, "a.com")})
	require.Error(t, err)

	installed, err := e.GetInstalled(ctx)
	require.NoError(t, err)
	assert.Empty(t, installed)
}

func TestMatchIsServedWhileReplacePersists(t *testing.T) {
	ctx := context.Background()
	mem := database.NewMemoryStore()
	e := NewHeaderRuleEngine(mem, 0)
	require.NoError(t, e.Replace(ctx, nil, []models.Rule{langRule(1, "a.com")}))

	gate := &gatedRuleStore{RuleStore: mem, saving: make(chan struct{}), release: make(chan struct{})}
	e.store = gate
	done := make(chan error, 1)
	go func() { done <- e.Replace(ctx, []int{1}, []models.Rule{langRule(2, "b.com")}) }()
	<-gate.saving

	matched := make(chan int, 1)
	go func() {
		r, _ := e.Match("a.com", models.ResourceXMLHTTPRequest)
		matched <- r.ID
	}()
	select {
	case id := <-matched:
		assert.Equal(t, 1, id, "the previous set stays visible until the new one is persisted")
	case <-time.After(2 * time.Second):
		t.Fatal("Match blocked while the rule set was being persisted")
	}

	close(gate.release)
	require.NoError(t, <-done)
	_, ok := e.Match("a.com", models.ResourceXMLHTTPRequest)
	assert.False(t, ok)
	r, ok := e.Match("b.com", models.ResourceXMLHTTPRequest)
	require.True(t, ok)
	assert.Equal(t, 2, r.ID)
}

func TestLoadRestoresPersistedRules(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemoryStore()
	broken := langRule(3, "c.com")
	broken.Action.Type = "redirect"
	require.NoError(t, store.SaveRules(ctx, []models.Rule{langRule(2, "b.com"), langRule(1, "a.com"), broken}))

	e := NewHeaderRuleEngine(store, 0)
	require.NoError(t, e.Load(ctx))
	installed, err := e.GetInstalled(ctx)
	require.NoError(t, err)
	require.Len(t, installed, 2)
	assert.Equal(t, 1, installed[0].ID)
	assert.Equal(t, 2, installed[1].ID)
}

func TestGetInstalledReturnsCopies(t *testing.T) {
	ctx := context.Background()
	e := NewHeaderRuleEngine(database.NewMemoryStore(), 0)
	require.NoError(t, e.Replace(ctx, nil, []models.Rule{langRule(1, "a.com")}))

	installed, err := e.GetInstalled(ctx)
	require.NoError(t, err)
	installed[0].Condition.RequestDomains[0] = "evil.com"

	again, err := e.GetInstalled(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.com"}, again[0].Condition.RequestDomains)
}

func TestMatch(t *testing.T) {
	ctx := context.Background()
	e := NewHeaderRuleEngine(database.NewMemoryStore(), 0)

	high := models.NewLanguageRule(5, "example.com", "en-GB,en;q=0.9,en-US;q=0.8")
	high.Priority = 2
	frames := langRule(6, "frames.test")
	frames.Condition.ResourceTypes = nil
	require.NoError(t, e.Replace(ctx, nil, []models.Rule{
		langRule(1, "example.com"),
		models.NewLanguageRule(2, "news.example.com", "zh-TW,zh;q=0.9,en;q=0.8,en-US;q=0.7"),
		langRule(3, "other.org"),
		langRule(4, "other.org"),
		frames,
	}))

	tests := []struct {
		name   string
		host   string
		rt     models.ResourceType
		wantID int
		found  bool
	}{
		{"exact", "other.org", models.ResourceMainFrame, 3, true},
		{"subdomain uses longest domain", "www.news.example.com", models.ResourceXMLHTTPRequest, 2, true},
		{"port and case ignored", "News.Example.com:8443", models.ResourceSubFrame, 2, true},
		{"trailing dot", "other.org.", models.ResourceMainFrame, 3, true},
		{"suffix without dot is not a subdomain", "notexample.com", models.ResourceMainFrame, 0, false},
		{"resource type not listed", "other.org", models.ResourceOther, 0, false},
		{"empty types skip main frame", "frames.test", models.ResourceMainFrame, 0, false},
		{"empty types match others", "frames.test", models.ResourceOther, 6, true},
		{"empty host", "", models.ResourceMainFrame, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ok := e.Match(tt.host, tt.rt)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.wantID, r.ID)
		})
	}

	require.NoError(t, e.Replace(ctx, nil, []models.Rule{high}))
	r, ok := e.Match("news.example.com", models.ResourceMainFrame)
	require.True(t, ok)
	assert.Equal(t, 5, r.ID, "higher priority beats a longer domain")
}

func TestApplyRule(t *testing.T) {
	h := http.Header{}
	h.Set("Accept-Language", "de-DE")
	h.Set("X-Drop", "1")
	h.Set("X-List", "a")

	ApplyRule(models.Rule{Action: models.RuleAction{
		Type: models.ActionModifyHeaders,
		RequestHeaders: []models.HeaderModification{
			{Header: "accept-language", Operation: models.HeaderOperationSet, Value: zhTWHeader},
			{Header: "x-drop", Operation: models.HeaderOperationRemove},
			{Header: "x-list", Operation: models.HeaderOperationAppend, Value: "b"},
			{Header: "x-new", Operation: models.HeaderOperationAppend, Value: "c"},
		},
	}}, h)

	assert.Equal(t, zhTWHeader, h.Get("Accept-Language"))
	assert.Empty(t, h.Get("X-Drop"))
	assert.Equal(t, "a, b", h.Get("X-List"))
	assert.Equal(t, "c", h.Get("X-New"))
}
