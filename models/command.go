package models

import "time"

// Command actions accepted by the command handler.
const (
	ActionGetSettings        = "getSettings"
	ActionSaveSetting        = "saveSetting"
	ActionRemoveSetting      = "removeSetting"
	ActionClearAllSettings   = "clearAllSettings"
	ActionSetExtensionStatus = "setExtensionStatus"
	ActionGetActiveTab       = "getActiveTab"
)

// Command is an inbound request from a UI collaborator.
type Command struct {
	Action   string `json:"action"`
	Domain   string `json:"domain,omitempty"`
	Language string `json:"language,omitempty"`
	Enabled  *bool  `json:"enabled,omitempty"`
}

// SettingsView is the data payload of getSettings.
type SettingsView struct {
	Settings DomainSettings `json:"settings"`
	Enabled  bool           `json:"enabled"`
}

// Tab describes the page most recently navigated through the proxy.
type Tab struct {
	URL      string    `json:"url"`
	Hostname string    `json:"hostname"`
	Title    string    `json:"title,omitempty"`
	LastSeen time.Time `json:"last_seen"`
}

// DomainSettingView is a setting together with its domain, returned by saveSetting.
type DomainSettingView struct {
	Domain        string `json:"domain" yaml:"domain"`
	DomainSetting `yaml:",inline"`
}
