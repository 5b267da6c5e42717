package matcher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchOrder(t *testing.T) {
	reg := NewAssetRegistry(
		Entry{Name: "Acme Corp", Asset: "acme.png"},
		Entry{Name: "Harvard", Asset: "harvard.svg"},
		Entry{Name: "Effective Altruism Oxford", Asset: "ea-oxford.png"},
	).WithFiles("yale-university.png")

	tests := []struct {
		name         string
		input        string
		wantAsset    string
		wantStrategy Strategy
		wantOK       bool
	}{
		{"exact", "Harvard", "harvard.svg", StrategyExact, true},
		{"substring case-insensitive", "ACME", "acme.png", StrategySubstring, true},
		{"substring other direction", "Harvard University Chapter", "harvard.svg", StrategySubstring, true},
		{"slug against asset stem", "EA-Oxford!", "ea-oxford.png", StrategySlug, true},
		{"slug against files", "Yale University", "yale-university.png", StrategySlug, true},
		{"no match", "Unrelated", "", "", false},
		{"empty name", "", "", "", false},
	}

	m := Heuristic{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := m.Match(tt.input, reg)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantAsset, got.Asset)
			assert.Equal(t, tt.wantStrategy, got.Strategy)
		})
	}
}

func TestMatchFirstEntryWins(t *testing.T) {
	reg := NewAssetRegistry(
		Entry{Name: "Oxford", Asset: "oxford.png"},
		Entry{Name: "Oxford Brookes", Asset: "brookes.png"},
	)
	got, ok := Heuristic{}.Match("Oxford Brookes University", reg)
	require.True(t, ok)
	assert.Equal(t, "oxford.png", got.Asset)
}

func TestFallbackIsDeterministic(t *testing.T) {
	reg := NewAssetRegistry(Entry{Name: "Acme Corp", Asset: "acme.png"})
	m := Heuristic{UseFallback: true}

	first, ok := m.Match("Unrelated", reg)
	require.True(t, ok)
	second, _ := m.Match("Unrelated", reg)
	assert.Equal(t, first, second)
	assert.Equal(t, StrategyFallback, first.Strategy)
	assert.Equal(t, "initials:U", first.Asset)

	assert.Equal(t, "initials:GW", Fallback("giving what we can"))
	assert.Equal(t, "initials:?", Fallback("   "))
}

func TestMatchEmptyRegistry(t *testing.T) {
	for _, reg := range []*AssetRegistry{nil, NewAssetRegistry()} {
		_, ok := Heuristic{}.Match("Acme", reg)
		assert.False(t, ok)
		got, ok := Heuristic{UseFallback: true}.Match("", reg)
		assert.True(t, ok)
		assert.Equal(t, "initials:?", got.Asset)
	}
}

func TestMatchDoesNotMutateRegistry(t *testing.T) {
	reg := NewAssetRegistry(Entry{Name: "Acme Corp", Asset: "acme.png"})
	before := reg.Entries()
	Heuristic{UseFallback: true}.Match("Something Else", reg)
	assert.Equal(t, before, reg.Entries())
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"Acme Corp":          "acme-corp",
		"  St. John's  Coll": "st-johns-coll",
		"EA-Oxford":          "ea-oxford",
		"!!!":                "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slug(in), in)
	}
}

func TestParseAssetRegistryKeepsOrder(t *testing.T) {
	data := []byte(`
assets:
  Zeta Chapter: zeta.png
  Alpha Chapter: alpha.png
  Mid Chapter: mid.svg
files:
  - extra-logo.png
`)
	reg, err := ParseAssetRegistry(data)
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Name: "Zeta Chapter", Asset: "zeta.png"},
		{Name: "Alpha Chapter", Asset: "alpha.png"},
		{Name: "Mid Chapter", Asset: "mid.svg"},
	}, reg.Entries())
	assert.Equal(t, []string{"extra-logo.png"}, reg.Files())

	_, err = ParseAssetRegistry([]byte("assets: [a, b]\n"))
	assert.Error(t, err)
}

func TestLoadAssetRegistryWithDirectory(t *testing.T) {
	dir := t.TempDir()
	logos := filepath.Join(dir, "logos")
	require.NoError(t, os.MkdirAll(logos, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(logos, "princeton.png"), []byte("png"), 0644))
	path := filepath.Join(dir, "assets.yaml")
	require.NoError(t, os.WriteFile(path, []byte("assets:\n  Acme Corp: acme.png\n"), 0644))

	reg, err := LoadAssetRegistry(path, logos)
	require.NoError(t, err)
	assert.Equal(t, 1, reg.Len())

	got, ok := Heuristic{}.Match("Princeton", reg)
	require.True(t, ok)
	assert.Equal(t, "princeton.png", got.Asset)
}
