// Package matcher associates free-text entity names with keys in an asset
// registry. Matching is first-hit in a fixed strategy order; there is no
// scoring.
package matcher

import (
	"strings"
	"unicode"
)

// Strategy names the rule that produced a match.
type Strategy string

const (
	StrategyExact     Strategy = "exact"
	StrategySubstring Strategy = "substring"
	StrategySlug      Strategy = "slug"
	StrategyFallback  Strategy = "fallback"
)

// FallbackPrefix marks generated placeholder keys.
const FallbackPrefix = "initials:"

// Result is a resolved asset key.
type Result struct {
	Asset    string   `json:"asset"`
	Entry    string   `json:"entry,omitempty"`
	Strategy Strategy `json:"strategy"`
}

// Matcher resolves an entity name against a registry.
type Matcher interface {
	Match(name string, reg *AssetRegistry) (Result, bool)
}

// Heuristic tries exact, case-insensitive substring, then slug containment,
// and finally, when UseFallback is set, an initials placeholder.
type Heuristic struct {
	UseFallback bool
}

// Match implements Matcher. It never modifies reg and tolerates a nil or
// empty registry and an empty name.
func (h Heuristic) Match(name string, reg *AssetRegistry) (Result, bool) {
	if asset, ok := reg.Lookup(name); ok {
		return Result{Asset: asset, Entry: name, Strategy: StrategyExact}, true
	}

	if r, ok := matchSubstring(name, reg); ok {
		return r, true
	}
	if r, ok := matchSlug(name, reg); ok {
		return r, true
	}

	if h.UseFallback {
		return Result{Asset: Fallback(name), Strategy: StrategyFallback}, true
	}
	return Result{}, false
}

func matchSubstring(name string, reg *AssetRegistry) (Result, bool) {
	lower := strings.ToLower(strings.TrimSpace(name))
	if lower == "" {
		return Result{}, false
	}
	for _, e := range reg.Entries() {
		key := strings.ToLower(strings.TrimSpace(e.Name))
		if key == "" {
			continue
		}
		if strings.Contains(lower, key) || strings.Contains(key, lower) {
			return Result{Asset: e.Asset, Entry: e.Name, Strategy: StrategySubstring}, true
		}
	}
	return Result{}, false
}

func matchSlug(name string, reg *AssetRegistry) (Result, bool) {
	s := Slug(name)
	if s == "" {
		return Result{}, false
	}
	contains := func(other string) bool {
		return other != "" && (strings.Contains(s, other) || strings.Contains(other, s))
	}

	for _, e := range reg.Entries() {
		if contains(Slug(e.Name)) || contains(Slug(stem(e.Asset))) {
			return Result{Asset: e.Asset, Entry: e.Name, Strategy: StrategySlug}, true
		}
	}
	for _, f := range reg.Files() {
		if contains(Slug(stem(f))) {
			return Result{Asset: f, Strategy: StrategySlug}, true
		}
	}
	return Result{}, false
}

// Slug lowercases s, drops everything but letters, digits and whitespace,
// and joins the remaining words with hyphens.
func Slug(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case r == '-' || unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), "-")
}

// Fallback returns the deterministic placeholder key for name: the
// uppercased first letters of its first two words.
func Fallback(name string) string {
	var initials []rune
	for _, w := range strings.Fields(name) {
		initials = append(initials, unicode.ToUpper([]rune(w)[0]))
		if len(initials) == 2 {
			break
		}
	}
	if len(initials) == 0 {
		return FallbackPrefix + "?"
	}
	return FallbackPrefix + string(initials)
}
