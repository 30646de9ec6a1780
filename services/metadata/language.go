package metadata

import (
	"strings"

	"golang.org/x/text/language"
)

// NormalizeLanguage returns the language tag TMDB expects for a preferred
// language and country: "es" in Mexico becomes "es-MX" and the second subtag
// of a two-part tag is upper-cased ("pt-br" becomes "pt-BR").
func NormalizeLanguage(lang, country string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return ""
	}
	if strings.EqualFold(lang, "es") && strings.EqualFold(strings.TrimSpace(country), "mx") {
		return "es-MX"
	}
	// Raw keeps legacy codes TMDB still serves ("tl", "sh", "mo") as given.
	if tag, err := language.Raw.Parse(lang); err == nil {
		lang = tag.String()
	}
	parts := strings.Split(lang, "-")
	if len(parts) == 2 {
		return parts[0] + "-" + strings.ToUpper(parts[1])
	}
	return lang
}

// imageLanguages builds the include_image_language list: the normalized
// language, its base language, untagged images and English.
func imageLanguages(lang, country string) string {
	lang = NormalizeLanguage(lang, country)
	if lang == "" {
		return ""
	}
	out := []string{lang}
	if base, _, ok := strings.Cut(lang, "-"); ok && base != "" {
		out = append(out, base)
	}
	out = append(out, "null")
	if !strings.EqualFold(lang, "en") {
		out = append(out, "en")
	}
	return strings.Join(dedupe(out), ",")
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, v := range in {
		k := strings.ToLower(v)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out
}
