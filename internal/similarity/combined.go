package similarity

import (
	"errors"
	"fmt"
	"strings"
)

// Algorithm toggles one similarity function and sets its weight.
type Algorithm struct {
	Enabled bool    `mapstructure:"enabled" json:"enabled"`
	Weight  float64 `mapstructure:"weight" json:"weight"`
}

// Config selects and weights the algorithms used by Combined.
type Config struct {
	Levenshtein  Algorithm `mapstructure:"levenshtein" json:"levenshtein"`
	Jaccard      Algorithm `mapstructure:"jaccard" json:"jaccard"`
	JaccardWords Algorithm `mapstructure:"jaccard_words" json:"jaccardWords"`
	Cosine       Algorithm `mapstructure:"cosine" json:"cosine"`
	JaroWinkler  Algorithm `mapstructure:"jaro_winkler" json:"jaroWinkler"`
	NGram        Algorithm `mapstructure:"ngram" json:"ngram"`
	NGramSize    int       `mapstructure:"ngram_size" json:"ngramSize"`

	// Threshold is the combined value at or above which two strings are
	// considered the same.
	Threshold float64 `mapstructure:"threshold" json:"threshold"`
}

// DefaultConfig returns the default algorithm mix.
func DefaultConfig() Config {
	return Config{
		Levenshtein:  Algorithm{Enabled: true, Weight: 0.3},
		Jaccard:      Algorithm{Enabled: false, Weight: 0.1},
		JaccardWords: Algorithm{Enabled: false, Weight: 0.1},
		Cosine:       Algorithm{Enabled: true, Weight: 0.1},
		JaroWinkler:  Algorithm{Enabled: true, Weight: 0.4},
		NGram:        Algorithm{Enabled: true, Weight: 0.2},
		NGramSize:    defaultNGramSize,
		Threshold:    0.85,
	}
}

// Validate checks weights and the threshold.
func (c Config) Validate() error {
	total := 0.0
	for name, alg := range c.algorithms() {
		if alg.Weight < 0 {
			return fmt.Errorf("similarity: weight for %s must not be negative", name)
		}
		if alg.Enabled {
			total += alg.Weight
		}
	}
	if total == 0 {
		return errors.New("similarity: at least one algorithm must be enabled with a positive weight")
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("similarity: threshold %.2f outside [0,1]", c.Threshold)
	}
	if c.NGramSize < 0 {
		return fmt.Errorf("similarity: ngram size %d must not be negative", c.NGramSize)
	}
	return nil
}

func (c Config) algorithms() map[string]Algorithm {
	return map[string]Algorithm{
		"levenshtein":   c.Levenshtein,
		"jaccard":       c.Jaccard,
		"jaccard_words": c.JaccardWords,
		"cosine":        c.Cosine,
		"jaro_winkler":  c.JaroWinkler,
		"ngram":         c.NGram,
	}
}

// Combined returns the weighted mean of the enabled algorithms over the
// case-folded, trimmed inputs. It returns 0 when nothing is enabled.
func Combined(cfg Config, a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == b {
		return 1.0
	}

	type term struct {
		alg Algorithm
		fn  func(string, string) float64
	}
	terms := []term{
		{cfg.Levenshtein, Levenshtein},
		{cfg.Jaccard, Jaccard},
		{cfg.JaccardWords, JaccardWords},
		{cfg.Cosine, Cosine},
		{cfg.JaroWinkler, JaroWinkler},
		{cfg.NGram, func(x, y string) float64 { return NGram(x, y, cfg.NGramSize) }},
	}

	var sum, weights float64
	for _, t := range terms {
		if !t.alg.Enabled || t.alg.Weight <= 0 {
			continue
		}
		sum += t.alg.Weight * t.fn(a, b)
		weights += t.alg.Weight
	}
	if weights == 0 {
		return 0
	}
	return sum / weights
}

// Similar reports whether Combined reaches the configured threshold.
func Similar(cfg Config, a, b string) bool {
	return Combined(cfg, a, b) >= cfg.Threshold
}
