package profile

import (
	"strings"

	"golang.org/x/text/language"
)

// LocalizedText is one language variant of a title or hint.
type LocalizedText struct {
	Lang  string
	Value string
}

// Titles is a set of language variants with a matcher built at load time.
type Titles struct {
	entries []LocalizedText
	matcher language.Matcher
}

func newTitles(entries []LocalizedText) Titles {
	if len(entries) == 0 {
		return Titles{}
	}
	tags := make([]language.Tag, len(entries))
	for i, entry := range entries {
		tags[i] = ParseLocale(entry.Lang)
	}
	return Titles{entries: entries, matcher: language.NewMatcher(tags)}
}

// Entries returns the raw variants in document order.
func (t Titles) Entries() []LocalizedText {
	return append([]LocalizedText(nil), t.entries...)
}

// Label returns the variant best matching tag. The first variant is the
// fallback when nothing matches, and fallback is returned when there are no
// variants at all.
func (t Titles) Label(tag language.Tag, fallback string) string {
	if len(t.entries) == 0 {
		return fallback
	}
	_, index, confidence := t.matcher.Match(tag)
	if confidence == language.No || index < 0 || index >= len(t.entries) {
		index = 0
	}
	if value := strings.TrimSpace(t.entries[index].Value); value != "" {
		return value
	}
	return fallback
}

// Localize is Label with a locale string.
func (t Titles) Localize(locale, fallback string) string {
	return t.Label(ParseLocale(locale), fallback)
}
