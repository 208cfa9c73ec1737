package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestLanguageTableValuesParse(t *testing.T) {
	for _, lang := range SupportedLanguages() {
		tags, err := ParseHeaderValue(lang.HeaderValue)
		require.NoError(t, err, lang.Code)
		// the first tag is always the code itself
		assert.Equal(t, language.MustParse(string(lang.Code)).String(), tags[0].String(), lang.Code)
	}
}

func TestHeaderValueFor(t *testing.T) {
	v, ok := HeaderValueFor("zh-TW")
	require.True(t, ok)
	assert.Equal(t, "zh-TW,zh;q=0.9,en;q=0.8,en-US;q=0.7", v)

	_, ok = HeaderValueFor("fr-FR")
	assert.False(t, ok)
	_, ok = HeaderValueFor("")
	assert.False(t, ok)
}

func TestSupportedLanguagesSorted(t *testing.T) {
	langs := SupportedLanguages()
	require.Len(t, langs, 4)
	codes := []LanguageCode{}
	for _, l := range langs {
		codes = append(codes, l.Code)
		assert.NotEmpty(t, l.Name)
	}
	assert.Equal(t, []LanguageCode{"en-GB", "en-US", "zh-CN", "zh-TW"}, codes)
}

func TestLanguageNameFallsBackToCode(t *testing.T) {
	assert.Equal(t, "English (US)", LanguageName("en-US"))
	assert.Equal(t, "fr-FR", LanguageName("fr-FR"))
}

func TestParseHeaderValueRejectsGarbage(t *testing.T) {
	_, err := ParseHeaderValue("")
	assert.Error(t, err)
	_, err = ParseHeaderValue("en;q=abc")
	assert.Error(t, err)
}

func TestNewLanguageRule(t *testing.T) {
	r := NewLanguageRule(3, "example.com", "en-US,en;q=0.9")
	assert.Equal(t, 3, r.ID)
	assert.Equal(t, DefaultRulePriority, r.Priority)
	assert.Equal(t, ActionModifyHeaders, r.Action.Type)
	require.Len(t, r.Action.RequestHeaders, 1)
	assert.Equal(t, HeaderModification{Header: "accept-language", Operation: "set", Value: "en-US,en;q=0.9"}, r.Action.RequestHeaders[0])
	assert.Equal(t, []string{"example.com"}, r.Condition.RequestDomains)
	assert.Equal(t, []ResourceType{ResourceMainFrame, ResourceSubFrame, ResourceXMLHTTPRequest}, r.Condition.ResourceTypes)

	// the shared slice must not leak into rules
	r.Condition.ResourceTypes[0] = ResourceOther
	assert.Equal(t, ResourceMainFrame, LanguageResourceTypes[0])
}
