package database

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"langaccessor/logger"
	"langaccessor/models"

	"github.com/tidwall/gjson"
)

// Settings is the typed view of the store keys. Reads never fail on malformed stored
// JSON: the affected value falls back to its default.
type Settings struct {
	kv KV

	// mu serializes read-modify-write updates of domain_settings within this process.
	mu sync.Mutex
}

func NewSettings(kv KV) *Settings {
	return &Settings{kv: kv}
}

// OnChanged registers fn for change notifications of any key.
func (s *Settings) OnChanged(fn ChangeListener) func() {
	return s.kv.Subscribe(fn)
}

// Snapshot reads all three keys in one call.
func (s *Settings) Snapshot(ctx context.Context) (models.SettingsSnapshot, error) {
	raw, err := s.kv.Get(ctx, models.SettingsKeys...)
	if err != nil {
		return models.SettingsSnapshot{}, fmt.Errorf("reading settings snapshot: %w", err)
	}
	return models.SettingsSnapshot{
		Settings:  parseDomainSettings(raw[models.DomainSettingsKey]),
		Enabled:   parseEnabled(raw[models.ExtensionEnabledKey]),
		RuleIDMap: parseRuleIDMap(raw[models.RuleIDMapKey]),
	}, nil
}

func (s *Settings) DomainSettings(ctx context.Context) (models.DomainSettings, error) {
	raw, err := s.kv.Get(ctx, models.DomainSettingsKey)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", models.DomainSettingsKey, err)
	}
	return parseDomainSettings(raw[models.DomainSettingsKey]), nil
}

func (s *Settings) Enabled(ctx context.Context) (bool, error) {
	raw, err := s.kv.Get(ctx, models.ExtensionEnabledKey)
	if err != nil {
		return true, fmt.Errorf("reading %s: %w", models.ExtensionEnabledKey, err)
	}
	return parseEnabled(raw[models.ExtensionEnabledKey]), nil
}

func (s *Settings) RuleIDMap(ctx context.Context) (models.RuleIDMap, error) {
	raw, err := s.kv.Get(ctx, models.RuleIDMapKey)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", models.RuleIDMapKey, err)
	}
	return parseRuleIDMap(raw[models.RuleIDMapKey]), nil
}

// SaveDomainSettings replaces the whole mapping.
func (s *Settings) SaveDomainSettings(ctx context.Context, settings models.DomainSettings) error {
	return s.setJSON(ctx, models.DomainSettingsKey, settings)
}

func (s *Settings) SetEnabled(ctx context.Context, enabled bool) error {
	return s.setJSON(ctx, models.ExtensionEnabledKey, enabled)
}

func (s *Settings) SaveRuleIDMap(ctx context.Context, m models.RuleIDMap) error {
	return s.setJSON(ctx, models.RuleIDMapKey, m)
}

// UpsertDomainSetting stores language for domain with timestamp now.
func (s *Settings) UpsertDomainSetting(ctx context.Context, domain, language string, now time.Time) (models.DomainSetting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := s.DomainSettings(ctx)
	if err != nil {
		return models.DomainSetting{}, err
	}
	setting := models.DomainSetting{Language: language, Timestamp: now.UnixMilli()}
	settings[domain] = setting
	if err := s.SaveDomainSettings(ctx, settings); err != nil {
		return models.DomainSetting{}, err
	}
	return setting, nil
}

// RemoveDomainSetting deletes domain. Removing an absent domain is not an error.
func (s *Settings) RemoveDomainSetting(ctx context.Context, domain string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := s.DomainSettings(ctx)
	if err != nil {
		return false, err
	}
	if _, ok := settings[domain]; !ok {
		return false, nil
	}
	delete(settings, domain)
	return true, s.SaveDomainSettings(ctx, settings)
}

// ClearDomainSettings replaces the mapping with an empty one.
func (s *Settings) ClearDomainSettings(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.SaveDomainSettings(ctx, models.DomainSettings{})
}

// EnsureInitialized writes the defaults for every key that is absent and reports
// whether this was a first install (no key existed). Existing values are kept.
func (s *Settings) EnsureInitialized(ctx context.Context) (bool, error) {
	raw, err := s.kv.Get(ctx, models.SettingsKeys...)
	if err != nil {
		return false, fmt.Errorf("checking installed settings: %w", err)
	}
	defaults := map[string]string{
		models.DomainSettingsKey:   "{}",
		models.ExtensionEnabledKey: "true",
		models.RuleIDMapKey:        "{}",
	}
	missing := make(map[string]string)
	for key, def := range defaults {
		if _, ok := raw[key]; !ok {
			missing[key] = def
		}
	}
	if len(missing) == 0 {
		return false, nil
	}
	if err := s.kv.Set(ctx, missing); err != nil {
		return false, fmt.Errorf("initializing settings: %w", err)
	}
	logger.Info("Settings: initialized missing keys %d/%d", len(missing), len(defaults))
	return len(raw) == 0, nil
}

func (s *Settings) setJSON(ctx context.Context, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s to JSON: %w", key, err)
	}
	if err := s.kv.Set(ctx, map[string]string{key: string(raw)}); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

// parseDomainSettings keeps every entry that is a JSON object. A non-string language
// becomes "" and a non-numeric timestamp becomes 0.
func parseDomainSettings(raw string) models.DomainSettings {
	out := make(models.DomainSettings)
	if raw == "" {
		return out
	}
	if !gjson.Valid(raw) {
		logger.Error("Settings: %s is not valid JSON, using an empty mapping", models.DomainSettingsKey)
		return out
	}
	root := gjson.Parse(raw)
	if !root.IsObject() {
		logger.Error("Settings: %s is not a JSON object, using an empty mapping", models.DomainSettingsKey)
		return out
	}
	root.ForEach(func(domain, entry gjson.Result) bool {
		if !entry.IsObject() {
			logger.Warn("Settings: dropping malformed entry for %q", domain.String())
			return true
		}
		var setting models.DomainSetting
		if lang := entry.Get("language"); lang.Type == gjson.String {
			setting.Language = lang.Str
		}
		if ts := entry.Get("timestamp"); ts.Type == gjson.Number {
			setting.Timestamp = ts.Int()
		}
		out[domain.String()] = setting
		return true
	})
	return out
}

// parseEnabled treats a missing or non-boolean value as enabled.
func parseEnabled(raw string) bool {
	if raw == "" || !gjson.Valid(raw) {
		return true
	}
	v := gjson.Parse(raw)
	if v.Type == gjson.False {
		return false
	}
	return true
}

// parseRuleIDMap keeps entries whose value is a positive integer.
func parseRuleIDMap(raw string) models.RuleIDMap {
	out := make(models.RuleIDMap)
	if raw == "" || !gjson.Valid(raw) {
		return out
	}
	root := gjson.Parse(raw)
	if !root.IsObject() {
		logger.Error("Settings: %s is not a JSON object, using an empty map", models.RuleIDMapKey)
		return out
	}
	root.ForEach(func(domain, id gjson.Result) bool {
		if id.Type != gjson.Number || id.Num != math.Trunc(id.Num) || id.Num < 1 || id.Num > math.MaxInt32 {
			logger.Warn("Settings: dropping invalid rule id %s for %q", id.Raw, domain.String())
			return true
		}
		out[domain.String()] = int(id.Num)
		return true
	})
	return out
}
