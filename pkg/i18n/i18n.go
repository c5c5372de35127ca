// Package i18n resolves multilingual text stored as {field: {lang: value}} maps.
package i18n

import (
	"strconv"
	"strings"
)

const (
	French  = "fr"
	Arabic  = "ar"
	English = "en"

	// Primary is the language every translatable field must be filled in.
	Primary = French
)

var supported = map[string]struct{}{
	French:  {},
	Arabic:  {},
	English: {},
}

// Fields holds translations keyed by field name, then by language code.
type Fields map[string]map[string]string

// Localize returns field in lang, falling back to the primary language when
// the translation is missing or blank.
func Localize(fields Fields, field string, lang string) string {
	return LocalizeWithFallback(fields, field, lang, Primary)
}

func LocalizeWithFallback(fields Fields, field string, lang string, fallback string) string {
	values, ok := fields[field]
	if !ok {
		return ""
	}
	if value := values[NormalizeLanguage(lang)]; strings.TrimSpace(value) != "" {
		return value
	}
	return values[fallback]
}

// NormalizeLanguage maps inputs such as "EN", "en-US" or "ar_MA" to a
// supported code. Unknown languages resolve to Primary.
func NormalizeLanguage(lang string) string {
	if code, ok := supportedCode(lang); ok {
		return code
	}
	return Primary
}

// Supported reports whether lang names a supported language without falling back.
func Supported(lang string) bool {
	_, ok := supportedCode(lang)
	return ok
}

func supportedCode(lang string) (string, bool) {
	code := strings.ToLower(strings.TrimSpace(lang))
	if idx := strings.IndexAny(code, "-_,;"); idx >= 0 {
		code = code[:idx]
	}
	_, ok := supported[code]
	return code, ok
}

// Set stores value for field in lang, allocating maps as needed.
func (f Fields) Set(field string, lang string, value string) {
	if f[field] == nil {
		f[field] = make(map[string]string)
	}
	f[field][NormalizeLanguage(lang)] = value
}

// Numbered returns the localized values of field_1..field_n, skipping blanks.
func Numbered(fields Fields, prefix string, n int, lang string) []string {
	values := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		value := Localize(fields, prefix+"_"+strconv.Itoa(i), lang)
		if strings.TrimSpace(value) != "" {
			values = append(values, value)
		}
	}
	return values
}
