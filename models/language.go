package models

import (
	"fmt"
	"sort"

	"golang.org/x/text/language"
)

// LanguageCode identifies one entry of the static Accept-Language table.
type LanguageCode string

const (
	LanguageZhTW LanguageCode = "zh-TW"
	LanguageZhCN LanguageCode = "zh-CN"
	LanguageEnUS LanguageCode = "en-US"
	LanguageEnGB LanguageCode = "en-GB"
)

// Language is a supported language code with the header value it expands to.
type Language struct {
	Code        LanguageCode `json:"code"`
	HeaderValue string       `json:"header_value"`
	Name        string       `json:"name"`
}

// languageHeaderValues is the closed code -> Accept-Language table. Never mutated.
var languageHeaderValues = map[LanguageCode]string{
	LanguageZhTW: "zh-TW,zh;q=0.9,en;q=0.8,en-US;q=0.7",
	LanguageZhCN: "zh-CN,zh;q=0.9,en;q=0.8,en-US;q=0.7",
	LanguageEnUS: "en-US,en;q=0.9",
	LanguageEnGB: "en-GB,en;q=0.9,en-US;q=0.8",
}

var languageNames = map[LanguageCode]string{
	LanguageZhTW: "繁體中文 (台灣)",
	LanguageZhCN: "简体中文 (中国)",
	LanguageEnUS: "English (US)",
	LanguageEnGB: "English (UK)",
}

// HeaderValueFor returns the Accept-Language value configured for code.
// The second result is false for codes outside the table.
func HeaderValueFor(code string) (string, bool) {
	v, ok := languageHeaderValues[LanguageCode(code)]
	return v, ok
}

// IsSupportedLanguage reports whether code is in the language table.
func IsSupportedLanguage(code string) bool {
	_, ok := languageHeaderValues[LanguageCode(code)]
	return ok
}

// LanguageName returns the display name of code, or code itself when unknown.
func LanguageName(code string) string {
	if name, ok := languageNames[LanguageCode(code)]; ok {
		return name
	}
	return code
}

// SupportedLanguages lists the table sorted by code.
func SupportedLanguages() []Language {
	langs := make([]Language, 0, len(languageHeaderValues))
	for code, value := range languageHeaderValues {
		langs = append(langs, Language{Code: code, HeaderValue: value, Name: languageNames[code]})
	}
	sort.Slice(langs, func(i, j int) bool { return langs[i].Code < langs[j].Code })
	return langs
}

// ParseHeaderValue parses an Accept-Language value into its tags, highest weight first.
func ParseHeaderValue(value string) ([]language.Tag, error) {
	tags, _, err := language.ParseAcceptLanguage(value)
	if err != nil {
		return nil, fmt.Errorf("parsing accept-language value %q: %w", value, err)
	}
	if len(tags) == 0 {
		return nil, fmt.Errorf("accept-language value %q has no tags", value)
	}
	return tags, nil
}
