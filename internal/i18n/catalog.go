// Package i18n loads translation catalogs, tracks the active language and
// gates the first statistics render on localization readiness.
package i18n

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/language"
)

// FallbackLanguage is used whenever a key or a catalog is missing.
const FallbackLanguage = "es"

//go:embed locales/*.json
var embedded embed.FS

// Catalog maps dotted keys ("stats.title") to translated strings.
type Catalog map[string]string

// ParseCatalog flattens an i18next style nested JSON document.
func ParseCatalog(data []byte) (Catalog, error) {
	var nested map[string]any
	if err := json.Unmarshal(data, &nested); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	out := Catalog{}
	flatten("", nested, out)
	return out, nil
}

func flatten(prefix string, node map[string]any, out Catalog) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case string:
			out[key] = val
		case map[string]any:
			flatten(key, val, out)
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}

// Keys returns the catalog keys sorted.
func (c Catalog) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ErrUnsupportedLanguage is returned for a language without a bundled catalog.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// SupportedLanguages lists the languages with a bundled catalog, sorted.
func SupportedLanguages() []string {
	entries, err := embedded.ReadDir("locales")
	if err != nil {
		return []string{FallbackLanguage}
	}
	var langs []string
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), ".json"); ok {
			langs = append(langs, name)
		}
	}
	sort.Strings(langs)
	return langs
}

// Supported reports whether lang, after normalization, has a bundled catalog.
func Supported(lang string) bool {
	lang = Normalize(lang)
	for _, l := range SupportedLanguages() {
		if l == lang {
			return true
		}
	}
	return false
}

// EmbeddedCatalog returns the catalog bundled in the binary.
func EmbeddedCatalog(lang string) (Catalog, error) {
	data, err := embedded.ReadFile("locales/" + lang + ".json")
	if err != nil {
		return nil, fmt.Errorf("no embedded catalog for %q: %w", lang, err)
	}
	return ParseCatalog(data)
}

// Normalize reduces a language tag to its base language ("en-GB" → "en").
// Unparseable tags fall back to FallbackLanguage.
func Normalize(tag string) string {
	tag = strings.TrimSpace(strings.ReplaceAll(tag, "_", "-"))
	if i := strings.IndexByte(tag, '.'); i >= 0 {
		tag = tag[:i]
	}
	if tag == "" {
		return FallbackLanguage
	}
	t, err := language.Parse(tag)
	if err != nil {
		return FallbackLanguage
	}
	base, conf := t.Base()
	if conf == language.No {
		return FallbackLanguage
	}
	return base.String()
}

var placeholder = regexp.MustCompile(`{{\s*([A-Za-z0-9_.]+)\s*}}`)

// interpolate fills {{name}} placeholders; unknown names are left as is.
func interpolate(text string, args map[string]any) string {
	if len(args) == 0 {
		return text
	}
	return placeholder.ReplaceAllStringFunc(text, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		if v, ok := args[name]; ok {
			return fmt.Sprint(v)
		}
		return m
	})
}
