package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type simFunc func(a, b string) float64

func allFuncs() map[string]simFunc {
	return map[string]simFunc{
		"levenshtein":   Levenshtein,
		"jaccard":       Jaccard,
		"jaccard_words": JaccardWords,
		"cosine":        Cosine,
		"jaro_winkler":  JaroWinkler,
		"ngram":         func(a, b string) float64 { return NGram(a, b, 2) },
	}
}

func TestIdenticalStringsScoreOne(t *testing.T) {
	inputs := []string{"", "a", "Alice Smith", "alice@example.com", "ÄÖÜ ß", "  spaced  "}
	for name, fn := range allFuncs() {
		for _, s := range inputs {
			assert.Equal(t, 1.0, fn(s, s), "%s(%q, %q)", name, s, s)
		}
	}
}

func TestDifferentStringsScoreBelowOne(t *testing.T) {
	pairs := [][2]string{
		{"alice", "bob"},
		{"kitten", "sitting"},
		{"martha", "dwayne"},
		{"a", "xyz"},
		{"", "nonempty"},
	}
	for name, fn := range allFuncs() {
		for _, p := range pairs {
			got := fn(p[0], p[1])
			assert.GreaterOrEqual(t, got, 0.0, "%s(%q, %q)", name, p[0], p[1])
			assert.Less(t, got, 1.0, "%s(%q, %q)", name, p[0], p[1])
		}
	}
}

func TestLevenshtein(t *testing.T) {
	assert.InDelta(t, 1-3.0/7.0, Levenshtein("kitten", "sitting"), 1e-9)
	assert.InDelta(t, 0.0, Levenshtein("abc", ""), 1e-9)
	assert.InDelta(t, 0.75, Levenshtein("café", "cafe"), 1e-9)
}

func TestLevenshteinSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"kitten", "sitting"},
		{"registration", "registrant"},
		{"", "abc"},
		{"Smith", "smyth"},
	}
	for _, p := range pairs {
		assert.Equal(t, Levenshtein(p[0], p[1]), Levenshtein(p[1], p[0]), "%q vs %q", p[0], p[1])
	}
}

func TestJaccard(t *testing.T) {
	assert.InDelta(t, 0.5, Jaccard("abc", "bcd"), 1e-9)
	assert.InDelta(t, 1.0, Jaccard("abc", "cba"), 1e-9)
	assert.InDelta(t, 0.0, Jaccard("abc", ""), 1e-9)
}

func TestJaccardWords(t *testing.T) {
	assert.InDelta(t, 1.0/3.0, JaccardWords("Hello World", "world peace"), 1e-9)
	assert.InDelta(t, 1.0, JaccardWords("John  Smith", "smith john"), 1e-9)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine("ab", "AB"), 1e-9)
	assert.InDelta(t, 0.0, Cosine("abc", "xyz"), 1e-9)
	assert.InDelta(t, 0.0, Cosine("", "abc"), 1e-9)
	// a:1 b:1 vs a:2 -> 2 / (sqrt(2) * 2)
	assert.InDelta(t, 0.70710678, Cosine("ab", "aa"), 1e-6)
}

func TestJaroWinkler(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"MARTHA", "MARHTA", 0.9611},
		{"DWAYNE", "DUANE", 0.84},
		{"DIXON", "DICKSONX", 0.8133},
		{"abc", "", 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, JaroWinkler(tt.a, tt.b), 1e-3, "%q vs %q", tt.a, tt.b)
	}
}

func TestJaroWinklerPrefixMonotonic(t *testing.T) {
	// Both pairs are one substitution apart; only the shared prefix differs.
	noPrefix := JaroWinkler("prefix", "qrefix")
	longPrefix := JaroWinkler("prefix", "prefiy")
	assert.GreaterOrEqual(t, longPrefix, noPrefix)
	assert.InDelta(t, 0.8889, noPrefix, 1e-3)
	assert.InDelta(t, 0.9333, longPrefix, 1e-3)
}

func TestNGram(t *testing.T) {
	assert.InDelta(t, 1.0/7.0, NGram("night", "nacht", 2), 1e-9)
	assert.Equal(t, 1.0, NGram("", "", 2))
	assert.Equal(t, 0.0, NGram("", "a", 2))
	assert.Equal(t, 0.0, NGram("a", "ab", 2))
	assert.Equal(t, NGram("night", "nacht", 2), NGram("night", "nacht", 0))
	assert.InDelta(t, 3.0/7.0, NGram("night", "nacht", 1), 1e-9)
}

func TestCombined(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 1.0, Combined(cfg, " Alice ", "alice"))
	assert.True(t, Similar(cfg, "Christopher", "christophe"))
	assert.False(t, Similar(cfg, "Jonathan", "Margaret"))

	only := Config{Levenshtein: Algorithm{Enabled: true, Weight: 1}, Threshold: 0.5}
	assert.InDelta(t, Levenshtein("kitten", "sitting"), Combined(only, "kitten", "sitting"), 1e-9)

	assert.Equal(t, 0.0, Combined(Config{}, "a", "b"))
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"default", func(c *Config) {}, false},
		{"negative weight", func(c *Config) { c.Cosine.Weight = -1 }, true},
		{"nothing enabled", func(c *Config) { *c = Config{Threshold: 0.5} }, true},
		{"threshold above one", func(c *Config) { c.Threshold = 1.5 }, true},
		{"negative ngram size", func(c *Config) { c.NGramSize = -2 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
