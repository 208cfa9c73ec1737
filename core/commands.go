package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"langaccessor/database"
	"langaccessor/logger"
	"langaccessor/models"

	"golang.org/x/net/idna"
)

var ErrInvalidDomain = errors.New("invalid domain")

// TabSource reports the active tab.
type TabSource interface {
	Current() (models.Tab, bool)
}

// CommandHandler translates commands from UI collaborators into settings mutations.
// Rule updates follow from the store's change notifications, not from the handler.
type CommandHandler struct {
	settings *database.Settings
	tabs     TabSource
	now      func() time.Time
}

func NewCommandHandler(settings *database.Settings, tabs TabSource) *CommandHandler {
	return &CommandHandler{settings: settings, tabs: tabs, now: time.Now}
}

// Handle executes cmd. Failures are reported in the envelope, never as a panic or error.
func (h *CommandHandler) Handle(ctx context.Context, cmd models.Command) models.CommandResponse {
	var (
		data interface{}
		err  error
	)
	switch cmd.Action {
	case models.ActionGetSettings:
		data, err = h.getSettings(ctx)
	case models.ActionSaveSetting:
		data, err = h.saveSetting(ctx, cmd.Domain, cmd.Language)
	case models.ActionRemoveSetting:
		err = h.removeSetting(ctx, cmd.Domain)
	case models.ActionClearAllSettings:
		err = h.settings.ClearDomainSettings(ctx)
	case models.ActionSetExtensionStatus:
		if cmd.Enabled == nil {
			err = errors.New("enabled is required")
			break
		}
		err = h.settings.SetEnabled(ctx, *cmd.Enabled)
	case models.ActionGetActiveTab:
		data = h.activeTab()
	default:
		logger.Debug("CommandHandler: unknown action %q", cmd.Action)
		return models.Fail("Unknown action")
	}
	if err != nil {
		logger.Error("CommandHandler: %s failed: %v", cmd.Action, err)
		return models.Fail(err.Error())
	}
	return models.OK(data)
}

func (h *CommandHandler) getSettings(ctx context.Context) (models.SettingsView, error) {
	snap, err := h.settings.Snapshot(ctx)
	if err != nil {
		return models.SettingsView{}, err
	}
	return models.SettingsView{Settings: snap.Settings, Enabled: snap.Enabled}, nil
}

func (h *CommandHandler) saveSetting(ctx context.Context, rawDomain, language string) (models.DomainSettingView, error) {
	domain, err := NormalizeDomain(rawDomain)
	if err != nil {
		return models.DomainSettingView{}, err
	}
	language = strings.TrimSpace(language)
	if language == "" {
		return models.DomainSettingView{}, errors.New("language is required")
	}
	if !models.IsSupportedLanguage(language) {
		logger.Warn("CommandHandler: %s saved with unsupported language %q; no rule will be installed", domain, language)
	}
	setting, err := h.settings.UpsertDomainSetting(ctx, domain, language, h.now())
	if err != nil {
		return models.DomainSettingView{}, err
	}
	return models.DomainSettingView{Domain: domain, DomainSetting: setting}, nil
}

func (h *CommandHandler) removeSetting(ctx context.Context, rawDomain string) error {
	domain, err := NormalizeDomain(rawDomain)
	if err != nil {
		return err
	}
	_, err = h.settings.RemoveDomainSetting(ctx, domain)
	return err
}

func (h *CommandHandler) activeTab() interface{} {
	if h.tabs == nil {
		return nil
	}
	tab, ok := h.tabs.Current()
	if !ok {
		return nil
	}
	return tab
}

// NormalizeDomain reduces raw (a hostname or a URL) to the lower-case ASCII hostname used
// as a settings key.
func NormalizeDomain(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("%w: domain is required", ErrInvalidDomain)
	}

	if strings.Contains(s, "://") || strings.ContainsAny(s, "/?#") {
		if !strings.Contains(s, "://") {
			s = "http://" + s
		}
		u, err := url.Parse(s)
		if err != nil {
			return "", fmt.Errorf("%w: %q: %v", ErrInvalidDomain, raw, err)
		}
		s = u.Hostname()
	} else if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}

	s = strings.TrimPrefix(strings.TrimSuffix(s, "]"), "[")
	s = strings.TrimSuffix(strings.ToLower(s), ".")
	if s == "" {
		return "", fmt.Errorf("%w: %q has no host", ErrInvalidDomain, raw)
	}
	if ip := net.ParseIP(s); ip != nil {
		return ip.String(), nil
	}

	ascii, err := idna.ToASCII(s)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidDomain, raw, err)
	}
	for _, label := range strings.Split(ascii, ".") {
		if label == "" || len(label) > 63 {
			return "", fmt.Errorf("%w: %q", ErrInvalidDomain, raw)
		}
		for _, c := range label {
			if !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '-' || c == '_') {
				return "", fmt.Errorf("%w: %q contains %q", ErrInvalidDomain, raw, c)
			}
		}
	}
	return ascii, nil
}
