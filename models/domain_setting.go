package models

import (
	"sort"
	"strings"
	"time"
)

// DomainSetting is the language preference stored for one domain.
type DomainSetting struct {
	Language  string `json:"language" yaml:"language"`
	Timestamp int64  `json:"timestamp" yaml:"timestamp"` // Unix milliseconds of the last write
}

// Time converts the stored timestamp.
func (s DomainSetting) Time() time.Time {
	return time.UnixMilli(s.Timestamp)
}

// DomainSettings maps a hostname to its setting. Persisted under DomainSettingsKey.
type DomainSettings map[string]DomainSetting

// IsCanonicalDomain reports whether d is already in the form settings keys are written
// in: non-empty and lower-case, with no trailing dot, brackets or URL parts.
func IsCanonicalDomain(d string) bool {
	if d == "" || d != strings.ToLower(d) || strings.HasSuffix(d, ".") {
		return false
	}
	return !strings.ContainsAny(d, " \t\r\n/?#[]@")
}

// Domains returns the keys in ascending order.
func (d DomainSettings) Domains() []string {
	domains := make([]string, 0, len(d))
	for domain := range d {
		domains = append(domains, domain)
	}
	sort.Strings(domains)
	return domains
}

// Clone returns a shallow copy; DomainSetting is a value type so this is a deep copy.
func (d DomainSettings) Clone() DomainSettings {
	out := make(DomainSettings, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// RuleIDMap maps a domain to the id of its installed rule. Persisted under RuleIDMapKey.
type RuleIDMap map[string]int

// Clone returns a copy that can be modified without touching the receiver.
func (m RuleIDMap) Clone() RuleIDMap {
	out := make(RuleIDMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// SettingsSnapshot is the full persisted state read at the start of a synchronization pass.
type SettingsSnapshot struct {
	Settings  DomainSettings
	Enabled   bool
	RuleIDMap RuleIDMap
}
