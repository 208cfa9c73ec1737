package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"

	"langaccessor/database"
	"langaccessor/logger"
	"langaccessor/models"
)

var (
	ErrMalformedRule     = errors.New("malformed rule")
	ErrDuplicateRuleID   = errors.New("duplicate rule id")
	ErrRuleQuotaExceeded = errors.New("rule quota exceeded")
)

// DefaultMaxRules is used when NewHeaderRuleEngine is given a non-positive limit.
const DefaultMaxRules = 5000

// HeaderRuleEngine holds the installed rule set, persists it through a RuleStore and
// matches requests against it.
type HeaderRuleEngine struct {
	// writeMu serializes Load and Replace; mu guards rules and is never held across store I/O.
	writeMu  sync.Mutex
	mu       sync.RWMutex
	rules    map[int]models.Rule
	store    database.RuleStore
	maxRules int
}

func NewHeaderRuleEngine(store database.RuleStore, maxRules int) *HeaderRuleEngine {
	if maxRules <= 0 {
		maxRules = DefaultMaxRules
	}
	return &HeaderRuleEngine{rules: make(map[int]models.Rule), store: store, maxRules: maxRules}
}

// Load replaces the in-memory set with the persisted one. Invalid persisted rules are dropped.
func (e *HeaderRuleEngine) Load(ctx context.Context) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	persisted, err := e.store.LoadRules(ctx)
	if err != nil {
		return fmt.Errorf("loading installed rules: %w", err)
	}
	rules := make(map[int]models.Rule, len(persisted))
	for _, r := range persisted {
		if err := ValidateRule(r); err != nil {
			logger.Error("HeaderRuleEngine: dropping persisted rule %d: %v", r.ID, err)
			continue
		}
		rules[r.ID] = cloneRule(r)
	}
	e.mu.Lock()
	e.rules = rules
	e.mu.Unlock()
	logger.Info("HeaderRuleEngine: loaded %d installed rules", len(rules))
	return nil
}

// GetInstalled returns a copy of the installed rules ordered by id.
func (e *HeaderRuleEngine) GetInstalled(ctx context.Context) ([]models.Rule, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sortedLocked(), nil
}

func (e *HeaderRuleEngine) sortedLocked() []models.Rule {
	out := make([]models.Rule, 0, len(e.rules))
	for _, r := range e.rules {
		out = append(out, cloneRule(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Replace removes removeIDs and adds addRules as one unit. On any error the installed
// set is unchanged. Unknown ids in removeIDs are ignored.
func (e *HeaderRuleEngine) Replace(ctx context.Context, removeIDs []int, addRules []models.Rule) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	e.mu.RLock()
	next := make(map[int]models.Rule, len(e.rules)+len(addRules))
	for id, r := range e.rules {
		next[id] = r
	}
	e.mu.RUnlock()
	for _, id := range removeIDs {
		delete(next, id)
	}

	added := make(map[int]struct{}, len(addRules))
	for _, r := range addRules {
		if err := ValidateRule(r); err != nil {
			return err
		}
		if _, dup := added[r.ID]; dup {
			return fmt.Errorf("%w: %d appears twice in the added rules", ErrDuplicateRuleID, r.ID)
		}
		if _, exists := next[r.ID]; exists {
			return fmt.Errorf("%w: %d is already installed", ErrDuplicateRuleID, r.ID)
		}
		added[r.ID] = struct{}{}
		next[r.ID] = cloneRule(r)
	}
	if len(next) > e.maxRules {
		return fmt.Errorf("%w: %d rules, limit is %d", ErrRuleQuotaExceeded, len(next), e.maxRules)
	}

	ordered := make([]models.Rule, 0, len(next))
	for _, r := range next {
		ordered = append(ordered, r)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })
	// Match keeps serving the previous set while the new one is written.
	if err := e.store.SaveRules(ctx, ordered); err != nil {
		return fmt.Errorf("persisting installed rules: %w", err)
	}
	e.mu.Lock()
	e.rules = next
	e.mu.Unlock()
	return nil
}

// ValidateRule checks the fields the engine relies on.
func ValidateRule(r models.Rule) error {
	if r.ID <= 0 {
		return fmt.Errorf("%w: id must be positive, got %d", ErrMalformedRule, r.ID)
	}
	if r.Priority < 1 {
		return fmt.Errorf("%w: rule %d: priority must be at least 1, got %d", ErrMalformedRule, r.ID, r.Priority)
	}
	if r.Action.Type != models.ActionModifyHeaders {
		return fmt.Errorf("%w: rule %d: unsupported action type %q", ErrMalformedRule, r.ID, r.Action.Type)
	}
	if len(r.Action.RequestHeaders) == 0 {
		return fmt.Errorf("%w: rule %d: modifyHeaders needs at least one request header", ErrMalformedRule, r.ID)
	}
	for _, h := range r.Action.RequestHeaders {
		if strings.TrimSpace(h.Header) == "" {
			return fmt.Errorf("%w: rule %d: empty header name", ErrMalformedRule, r.ID)
		}
		switch h.Operation {
		case models.HeaderOperationSet, models.HeaderOperationAppend:
			if h.Value == "" {
				return fmt.Errorf("%w: rule %d: %s of %s needs a value", ErrMalformedRule, r.ID, h.Operation, h.Header)
			}
			if strings.EqualFold(h.Header, models.AcceptLanguageHeader) {
				if _, err := models.ParseHeaderValue(h.Value); err != nil {
					return fmt.Errorf("%w: rule %d: %v", ErrMalformedRule, r.ID, err)
				}
			}
		case models.HeaderOperationRemove:
			if h.Value != "" {
				return fmt.Errorf("%w: rule %d: remove of %s must not carry a value", ErrMalformedRule, r.ID, h.Header)
			}
		default:
			return fmt.Errorf("%w: rule %d: unsupported header operation %q", ErrMalformedRule, r.ID, h.Operation)
		}
	}
	if len(r.Condition.RequestDomains) == 0 {
		return fmt.Errorf("%w: rule %d: requestDomains must not be empty", ErrMalformedRule, r.ID)
	}
	for _, d := range r.Condition.RequestDomains {
		if d == "" || d != strings.ToLower(d) {
			return fmt.Errorf("%w: rule %d: request domain %q must be a non-empty lower-case host", ErrMalformedRule, r.ID, d)
		}
	}
	return nil
}

// Match returns the rule that applies to a request for host with the given resource type.
// The highest priority wins, then the longest matching domain, then the lowest id.
func (e *HeaderRuleEngine) Match(host string, resourceType models.ResourceType) (models.Rule, bool) {
	host = normalizeHost(host)
	if host == "" {
		return models.Rule{}, false
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	var best models.Rule
	bestLen := -1
	found := false
	for _, r := range e.rules {
		if !matchesResourceType(r.Condition.ResourceTypes, resourceType) {
			continue
		}
		l := longestDomainMatch(host, r.Condition.RequestDomains)
		if l < 0 {
			continue
		}
		if !found ||
			r.Priority > best.Priority ||
			(r.Priority == best.Priority && l > bestLen) ||
			(r.Priority == best.Priority && l == bestLen && r.ID < best.ID) {
			best, bestLen, found = r, l, true
		}
	}
	if !found {
		return models.Rule{}, false
	}
	return cloneRule(best), true
}

// ApplyRule performs the rule's header modifications on h.
func ApplyRule(rule models.Rule, h http.Header) {
	for _, m := range rule.Action.RequestHeaders {
		switch m.Operation {
		case models.HeaderOperationSet:
			h.Set(m.Header, m.Value)
		case models.HeaderOperationAppend:
			if existing := h.Get(m.Header); existing != "" {
				h.Set(m.Header, existing+", "+m.Value)
			} else {
				h.Set(m.Header, m.Value)
			}
		case models.HeaderOperationRemove:
			h.Del(m.Header)
		}
	}
}

// matchesResourceType treats an empty list as every type except main_frame.
func matchesResourceType(types []models.ResourceType, rt models.ResourceType) bool {
	if len(types) == 0 {
		return rt != models.ResourceMainFrame
	}
	for _, t := range types {
		if t == rt {
			return true
		}
	}
	return false
}

// longestDomainMatch returns the length of the longest domain that host equals or is a
// subdomain of, or -1.
func longestDomainMatch(host string, domains []string) int {
	best := -1
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			if len(d) > best {
				best = len(d)
			}
		}
	}
	return best
}

// normalizeHost lower-cases host and strips any port and trailing dot.
func normalizeHost(host string) string {
	host = strings.TrimSpace(host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimPrefix(strings.TrimSuffix(host, "]"), "[")
	return strings.TrimSuffix(strings.ToLower(host), ".")
}

func cloneRule(r models.Rule) models.Rule {
	out := r
	out.Action.RequestHeaders = append([]models.HeaderModification(nil), r.Action.RequestHeaders...)
	out.Condition.RequestDomains = append([]string(nil), r.Condition.RequestDomains...)
	out.Condition.ResourceTypes = append([]models.ResourceType(nil), r.Condition.ResourceTypes...)
	return out
}
