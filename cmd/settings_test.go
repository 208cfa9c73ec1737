package cmd

import (
	"bytes"
	"context"
	"testing"
	"time"

	"langaccessor/database"
	"langaccessor/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useMemorySettings(t *testing.T) {
	t.Helper()
	prevStore, prevSettings := store, settings
	store = database.NewMemoryStore()
	settings = database.NewSettings(store)
	t.Cleanup(func() { store, settings = prevStore, prevSettings })
}

func TestSettingsFileRoundTrip(t *testing.T) {
	enabled := false
	in := settingsFile{
		Enabled: &enabled,
		Settings: models.DomainSettings{
			"example.com": {Language: "zh-TW", Timestamp: 1700000000000},
			"example.org": {Language: "en-GB", Timestamp: 1700000000001},
		},
	}

	for _, path := range []string{"backup.yaml", "backup.YML", "backup.json", "backup"} {
		t.Run(path, func(t *testing.T) {
			data, err := encodeSettingsFile(path, in)
			require.NoError(t, err)
			if isYAMLPath(path) {
				assert.Contains(t, string(data), "language: zh-TW")
			} else {
				assert.Contains(t, string(data), `"language": "zh-TW"`)
			}

			out, err := decodeSettingsFile(path, data)
			require.NoError(t, err)
			assert.Equal(t, in, out)
		})
	}
}

func TestDecodeSettingsFileRejectsGarbage(t *testing.T) {
	_, err := decodeSettingsFile("x.json", []byte("{not json"))
	assert.Error(t, err)
	_, err = decodeSettingsFile("x.yaml", []byte("settings: [1, 2"))
	assert.Error(t, err)
}

func TestImportSettingsMerges(t *testing.T) {
	useMemorySettings(t)
	ctx := context.Background()
	now := time.UnixMilli(1700000000000)

	_, err := settings.UpsertDomainSetting(ctx, "kept.example", "en-US", now)
	require.NoError(t, err)

	file := settingsFile{Settings: models.DomainSettings{
		"https://News.Example.com/path": {Language: "zh-CN"},
		"a..b":                          {Language: "en-US"},
		"nolang.example":                {Language: "  "},
		"dated.example":                 {Language: "en-GB", Timestamp: 42},
	}}
	imported, skipped, err := importSettings(ctx, file, false, now)
	require.NoError(t, err)
	assert.Equal(t, 2, imported)
	assert.Len(t, skipped, 2)

	got, err := settings.DomainSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.DomainSettings{
		"kept.example":     {Language: "en-US", Timestamp: now.UnixMilli()},
		"news.example.com": {Language: "zh-CN", Timestamp: now.UnixMilli()},
		"dated.example":    {Language: "en-GB", Timestamp: 42},
	}, got)

	enabled, err := settings.Enabled(ctx)
	require.NoError(t, err)
	assert.True(t, enabled, "a file without enabled leaves the flag alone")
}

func TestImportSettingsReplace(t *testing.T) {
	useMemorySettings(t)
	ctx := context.Background()
	now := time.UnixMilli(1700000000000)

	_, err := settings.UpsertDomainSetting(ctx, "dropped.example", "en-US", now)
	require.NoError(t, err)

	disabled := false
	_, _, err = importSettings(ctx, settingsFile{
		Enabled:  &disabled,
		Settings: models.DomainSettings{"example.com": {Language: "zh-TW"}},
	}, true, now)
	require.NoError(t, err)

	got, err := settings.DomainSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"example.com"}, got.Domains())

	enabled, err := settings.Enabled(ctx)
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestPrintSettings(t *testing.T) {
	var out bytes.Buffer
	printSettings(&out, models.SettingsSnapshot{Enabled: true, Settings: models.DomainSettings{}})
	assert.Equal(t, "Rewriting is enabled.\nNo domain settings stored.\n", out.String())

	out.Reset()
	printSettings(&out, models.SettingsSnapshot{
		Enabled: false,
		Settings: models.DomainSettings{
			"b.example": {Language: "en-US"},
			"a.example": {Language: "zh-TW", Timestamp: 1700000000000},
		},
	})
	text := out.String()
	assert.Contains(t, text, "Rewriting is disabled.")
	assert.Less(t, bytes.Index(out.Bytes(), []byte("a.example")), bytes.Index(out.Bytes(), []byte("b.example")))
	assert.Contains(t, text, "繁體中文 (台灣)")
	assert.Contains(t, text, "N/A")
}

func TestPrintRules(t *testing.T) {
	var out bytes.Buffer
	printRules(&out, nil)
	assert.Equal(t, "No rules installed.\n", out.String())

	out.Reset()
	printRules(&out, []models.Rule{models.NewLanguageRule(3, "example.com", "en-US,en;q=0.9")})
	assert.Contains(t, out.String(), "example.com")
	assert.Contains(t, out.String(), "en-US,en;q=0.9")
}

func TestPortFromFlag(t *testing.T) {
	assert.Equal(t, "9000", portFromFlag(true, "9000", "8788", "1"))
	assert.Equal(t, "8788", portFromFlag(false, "9000", "8788", "1"))
	assert.Equal(t, "1", portFromFlag(false, "9000", "", "1"))
}
