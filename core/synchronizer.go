package core

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"langaccessor/logger"
	"langaccessor/models"
)

// Strategy decides which installed rules a pass removes and re-adds.
type Strategy string

const (
	// StrategyReplace removes every installed rule and adds the full desired set.
	StrategyReplace Strategy = "replace"
	// StrategyDiff touches only rules that are gone, new or changed.
	StrategyDiff Strategy = "diff"
)

// ParseStrategy accepts "replace" (also the empty string) and "diff".
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyReplace, "":
		return StrategyReplace, nil
	case StrategyDiff:
		return StrategyDiff, nil
	default:
		return "", fmt.Errorf("unknown sync strategy %q", s)
	}
}

// SettingsSource is the part of the settings store a pass reads and writes.
type SettingsSource interface {
	Snapshot(ctx context.Context) (models.SettingsSnapshot, error)
	SaveRuleIDMap(ctx context.Context, m models.RuleIDMap) error
}

// RuleEngine is the installed rule set a pass reconciles against.
type RuleEngine interface {
	GetInstalled(ctx context.Context) ([]models.Rule, error)
	// Replace removes removeIDs and adds addRules as one unit.
	Replace(ctx context.Context, removeIDs []int, addRules []models.Rule) error
}

// SyncResult summarizes one pass.
type SyncResult struct {
	RuleIDMap models.RuleIDMap
	Rules     []models.Rule
	Removed   []int
	Added     []int
}

// Synchronizer rebuilds the installed rule set from the stored settings.
type Synchronizer struct {
	settings SettingsSource
	engine   RuleEngine
	strategy Strategy
}

func NewSynchronizer(settings SettingsSource, engine RuleEngine, strategy Strategy) *Synchronizer {
	if strategy == "" {
		strategy = StrategyReplace
	}
	return &Synchronizer{settings: settings, engine: engine, strategy: strategy}
}

// ComputeRules derives the desired rules and the compacted id map from snap. Domains
// are visited in ascending order. Settings whose language is not in the table, and keys
// that are not canonical hostnames (a hand-edited "Example.ORG"), are skipped so they
// cannot fail the whole Replace.
// snap is not modified.
func ComputeRules(snap models.SettingsSnapshot) (models.RuleIDMap, []models.Rule) {
	compacted := make(models.RuleIDMap)
	rules := []models.Rule{}
	if !snap.Enabled {
		return compacted, rules
	}

	working := snap.RuleIDMap.Clone()
	claimed := make(map[int]string)
	for _, domain := range snap.Settings.Domains() {
		if !models.IsCanonicalDomain(domain) {
			continue
		}
		headerValue, ok := models.HeaderValueFor(snap.Settings[domain].Language)
		if !ok {
			continue
		}
		// A stored map can carry the same id for two domains; the later one gets a fresh id.
		if id, ok := working[domain]; ok {
			if owner, dup := claimed[id]; dup && owner != domain {
				delete(working, domain)
			}
		}
		id := AllocateRuleID(domain, working)
		working[domain] = id
		claimed[id] = domain
		compacted[domain] = id
		rules = append(rules, models.NewLanguageRule(id, domain, headerValue))
	}
	return compacted, rules
}

// Synchronize runs one pass: read, compute, persist the id map, then one Replace call.
func (s *Synchronizer) Synchronize(ctx context.Context) (SyncResult, error) {
	snap, err := s.settings.Snapshot(ctx)
	if err != nil {
		return SyncResult{}, fmt.Errorf("sync: %w", err)
	}

	ids, rules := ComputeRules(snap)
	if err := s.settings.SaveRuleIDMap(ctx, ids); err != nil {
		return SyncResult{}, fmt.Errorf("sync: persisting rule id map: %w", err)
	}

	installed, err := s.engine.GetInstalled(ctx)
	if err != nil {
		return SyncResult{}, fmt.Errorf("sync: reading installed rules: %w", err)
	}

	var removeIDs []int
	var addRules []models.Rule
	switch s.strategy {
	case StrategyDiff:
		removeIDs, addRules = diffRules(installed, rules)
	default:
		removeIDs = make([]int, 0, len(installed))
		for _, r := range installed {
			removeIDs = append(removeIDs, r.ID)
		}
		addRules = rules
	}

	result := SyncResult{RuleIDMap: ids, Rules: rules, Removed: removeIDs, Added: ruleIDs(addRules)}
	if s.strategy == StrategyDiff && len(removeIDs) == 0 && len(addRules) == 0 {
		logger.Debug("Synchronize: installed rules already up to date (%d rules)", len(rules))
		return result, nil
	}
	if err := s.engine.Replace(ctx, removeIDs, addRules); err != nil {
		return result, fmt.Errorf("sync: replacing installed rules: %w", err)
	}
	logger.Info("Synchronize: rules updated. Added: %d, Removed: %d, Active: %d", len(addRules), len(removeIDs), len(rules))
	return result, nil
}

// diffRules returns the installed ids that are gone or changed and the desired rules
// that are new or changed.
func diffRules(installed, desired []models.Rule) ([]int, []models.Rule) {
	want := make(map[int]models.Rule, len(desired))
	for _, r := range desired {
		want[r.ID] = r
	}
	have := make(map[int]models.Rule, len(installed))
	var removeIDs []int
	for _, r := range installed {
		have[r.ID] = r
		if w, ok := want[r.ID]; !ok || !reflect.DeepEqual(w, r) {
			removeIDs = append(removeIDs, r.ID)
		}
	}
	var addRules []models.Rule
	for _, r := range desired {
		if h, ok := have[r.ID]; !ok || !reflect.DeepEqual(h, r) {
			addRules = append(addRules, r)
		}
	}
	return removeIDs, addRules
}

func ruleIDs(rules []models.Rule) []int {
	ids := make([]int, 0, len(rules))
	for _, r := range rules {
		ids = append(ids, r.ID)
	}
	return ids
}
