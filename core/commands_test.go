package core

import (
	"context"
	"net/url"
	"testing"
	"time"

	"langaccessor/database"
	"langaccessor/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) (*CommandHandler, *database.Settings, *ActiveTabTracker) {
	t.Helper()
	settings := database.NewSettings(database.NewMemoryStore())
	tabs := NewActiveTabTracker()
	h := NewCommandHandler(settings, tabs)
	h.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return h, settings, tabs
}

func boolPtr(b bool) *bool { return &b }

func TestNormalizeDomain(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"example.com", "example.com"},
		{"  Example.COM.  ", "example.com"},
		{"https://www.Example.com/path?q=1#frag", "www.example.com"},
		{"example.com/some/page", "example.com"},
		{"example.com:8443", "example.com"},
		{"http://127.0.0.1:8080/", "127.0.0.1"},
		{"[::1]", "::1"},
		{"[2001:DB8::1]:8443", "2001:db8::1"},
		{"https://[::1]/", "::1"},
		{"bücher.de", "xn--bcher-kva.de"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeDomain(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "   ", "https:///nohost", "exa mple.com", "a..b", "file:///etc/passwd"} {
		t.Run("invalid "+bad, func(t *testing.T) {
			_, err := NormalizeDomain(bad)
			assert.ErrorIs(t, err, ErrInvalidDomain)
		})
	}
}

func TestHandleUnknownAction(t *testing.T) {
	h, _, _ := newTestHandler(t)
	resp := h.Handle(context.Background(), models.Command{Action: "launchRockets"})
	assert.Equal(t, models.CommandResponse{Success: false, Error: "Unknown action"}, resp)
}

func TestHandleSettingsLifecycle(t *testing.T) {
	ctx := context.Background()
	h, settings, _ := newTestHandler(t)

	resp := h.Handle(ctx, models.Command{Action: models.ActionGetSettings})
	require.True(t, resp.Success)
	assert.Equal(t, models.SettingsView{Settings: models.DomainSettings{}, Enabled: true}, resp.Data)

	resp = h.Handle(ctx, models.Command{Action: models.ActionSaveSetting, Domain: "https://Example.com/x", Language: "zh-TW"})
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, models.DomainSettingView{
		Domain:        "example.com",
		DomainSetting: models.DomainSetting{Language: "zh-TW", Timestamp: 1700000000000},
	}, resp.Data)

	resp = h.Handle(ctx, models.Command{Action: models.ActionSaveSetting, Domain: "example.fr", Language: "fr-FR"})
	require.True(t, resp.Success, "unsupported languages are stored")

	resp = h.Handle(ctx, models.Command{Action: models.ActionGetSettings})
	require.True(t, resp.Success)
	view := resp.Data.(models.SettingsView)
	assert.Equal(t, []string{"example.com", "example.fr"}, view.Settings.Domains())

	resp = h.Handle(ctx, models.Command{Action: models.ActionRemoveSetting, Domain: "EXAMPLE.com"})
	assert.True(t, resp.Success)
	resp = h.Handle(ctx, models.Command{Action: models.ActionRemoveSetting, Domain: "never-saved.test"})
	assert.True(t, resp.Success, "removing an absent domain is not an error")

	stored, err := settings.DomainSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"example.fr"}, stored.Domains())

	resp = h.Handle(ctx, models.Command{Action: models.ActionClearAllSettings})
	assert.True(t, resp.Success)
	stored, err = settings.DomainSettings(ctx)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestHandleSaveSettingValidation(t *testing.T) {
	ctx := context.Background()
	h, _, _ := newTestHandler(t)

	resp := h.Handle(ctx, models.Command{Action: models.ActionSaveSetting, Domain: "", Language: "zh-TW"})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "domain is required")

	resp = h.Handle(ctx, models.Command{Action: models.ActionSaveSetting, Domain: "example.com"})
	assert.False(t, resp.Success)
	assert.Equal(t, "language is required", resp.Error)
}

func TestHandleSetExtensionStatus(t *testing.T) {
	ctx := context.Background()
	h, settings, _ := newTestHandler(t)

	resp := h.Handle(ctx, models.Command{Action: models.ActionSetExtensionStatus})
	assert.False(t, resp.Success)

	resp = h.Handle(ctx, models.Command{Action: models.ActionSetExtensionStatus, Enabled: boolPtr(false)})
	assert.True(t, resp.Success)
	enabled, err := settings.Enabled(ctx)
	require.NoError(t, err)
	assert.False(t, enabled)

	resp = h.Handle(ctx, models.Command{Action: models.ActionGetSettings})
	assert.False(t, resp.Data.(models.SettingsView).Enabled)
}

func TestHandleGetActiveTab(t *testing.T) {
	ctx := context.Background()
	h, _, tabs := newTestHandler(t)

	resp := h.Handle(ctx, models.Command{Action: models.ActionGetActiveTab})
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Data)

	u, err := url.Parse("https://www.example.com/news")
	require.NoError(t, err)
	seen := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tabs.Record(u, seen)
	tabs.SetTitle("https://www.example.com/news", "News")

	resp = h.Handle(ctx, models.Command{Action: models.ActionGetActiveTab})
	require.True(t, resp.Success)
	assert.Equal(t, models.Tab{URL: "https://www.example.com/news", Hostname: "www.example.com", Title: "News", LastSeen: seen}, resp.Data)
}
