package models

// DomainSettingsKey is the store key holding the domain -> DomainSetting mapping.
const DomainSettingsKey = "domain_settings"

// ExtensionEnabledKey is the store key holding the global enabled flag.
const ExtensionEnabledKey = "extension_enabled"

// RuleIDMapKey is the store key holding the domain -> rule id table.
const RuleIDMapKey = "rule_id_map"

// SettingsKeys lists every key written on first install.
var SettingsKeys = []string{DomainSettingsKey, ExtensionEnabledKey, RuleIDMapKey}
