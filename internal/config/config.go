package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"payment-matcher/internal/domain"
	"payment-matcher/internal/gateway"
	"payment-matcher/internal/similarity"
	"payment-matcher/internal/usecase"
)

// DefaultConfigFile is looked up in the working directory when no path is given.
const DefaultConfigFile = "matcher.yaml"

// EnvPrefix prefixes environment overrides, e.g. MATCHER_SQUARE_ACCESS_TOKEN.
const EnvPrefix = "MATCHER"

// Config is the full matcher configuration.
type Config struct {
	Provider   string                `mapstructure:"provider"`
	Square     gateway.SquareConfig  `mapstructure:"square"`
	Stripe     gateway.StripeConfig  `mapstructure:"stripe"`
	Search     SearchConfig          `mapstructure:"search"`
	Batch      BatchConfig           `mapstructure:"batch"`
	Scoring    usecase.ScoringConfig `mapstructure:"scoring"`
	Confidence usecase.Classifier    `mapstructure:"confidence"`
	Similarity similarity.Config     `mapstructure:"similarity"`
	Store      StoreConfig           `mapstructure:"store"`
	Log        LogConfig             `mapstructure:"log"`
	HTTP       HTTPConfig            `mapstructure:"http"`
}

// SearchConfig controls candidate retrieval.
type SearchConfig struct {
	WindowMinutes  float64       `mapstructure:"window_minutes"`
	LocationIDs    []string      `mapstructure:"location_ids"`
	RateLimitDelay time.Duration `mapstructure:"rate_limit_delay"`
	MaxPages       int           `mapstructure:"max_pages"`
	PageSize       int           `mapstructure:"page_size"`
}

// BatchConfig controls batch pacing.
type BatchConfig struct {
	Delay time.Duration `mapstructure:"delay"`
}

// StoreConfig selects the registration store.
type StoreConfig struct {
	Driver string `mapstructure:"driver"` // sqlite or csv
	Path   string `mapstructure:"path"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// HTTPConfig controls the API server and the provider HTTP client. A zero
// ClientTimeout leaves provider requests without a client-side deadline.
type HTTPConfig struct {
	Addr          string        `mapstructure:"addr"`
	ClientTimeout time.Duration `mapstructure:"client_timeout"`
}

// SearchParams converts the search section to domain parameters.
func (c Config) SearchParams() domain.SearchParams {
	return domain.SearchParams{
		WindowMinutes:  c.Search.WindowMinutes,
		LocationIDs:    c.Search.LocationIDs,
		RateLimitDelay: c.Search.RateLimitDelay,
		MaxPages:       c.Search.MaxPages,
		PageSize:       c.Search.PageSize,
	}
}

// MatchingConfig builds the usecase matching configuration.
func (c Config) MatchingConfig() usecase.MatchingConfig {
	return usecase.MatchingConfig{
		Search:     c.SearchParams(),
		BatchDelay: c.Batch.Delay,
		Classifier: c.Confidence,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", string(domain.ProviderSquare))

	v.SetDefault("square.base_url", gateway.DefaultSquareBaseURL)
	v.SetDefault("square.access_token", "")
	v.SetDefault("square.version", gateway.DefaultSquareVersion)
	v.SetDefault("stripe.base_url", gateway.DefaultStripeBaseURL)
	v.SetDefault("stripe.secret_key", "")

	search := usecase.DefaultSearchParams()
	v.SetDefault("search.window_minutes", search.WindowMinutes)
	v.SetDefault("search.location_ids", []string{})
	v.SetDefault("search.rate_limit_delay", search.RateLimitDelay)
	v.SetDefault("search.max_pages", search.MaxPages)
	v.SetDefault("search.page_size", search.PageSize)

	v.SetDefault("batch.delay", usecase.DefaultBatchDelay)

	scoring := usecase.DefaultScoringConfig()
	v.SetDefault("scoring.time_cap", scoring.TimeCap)
	v.SetDefault("scoring.time_decay_per_minute", scoring.TimeDecayPerMinute)
	v.SetDefault("scoring.amount_cap", scoring.AmountCap)
	v.SetDefault("scoring.amount_near_threshold", scoring.AmountNearThreshold)
	v.SetDefault("scoring.amount_near_score", scoring.AmountNearScore)
	v.SetDefault("scoring.amount_far_threshold", scoring.AmountFarThreshold)
	v.SetDefault("scoring.amount_far_max_score", scoring.AmountFarMaxScore)
	v.SetDefault("scoring.amount_far_min_score", scoring.AmountFarMinScore)
	v.SetDefault("scoring.email_cap", scoring.EmailCap)
	v.SetDefault("scoring.name_cap", scoring.NameCap)
	v.SetDefault("scoring.fuzzy_names", scoring.FuzzyNames)

	classifier := usecase.DefaultClassifier()
	v.SetDefault("confidence.high", classifier.High)
	v.SetDefault("confidence.medium", classifier.Medium)
	v.SetDefault("confidence.low", classifier.Low)

	sim := similarity.DefaultConfig()
	for name, alg := range map[string]similarity.Algorithm{
		"levenshtein":   sim.Levenshtein,
		"jaccard":       sim.Jaccard,
		"jaccard_words": sim.JaccardWords,
		"cosine":        sim.Cosine,
		"jaro_winkler":  sim.JaroWinkler,
		"ngram":         sim.NGram,
	} {
		v.SetDefault("similarity."+name+".enabled", alg.Enabled)
		v.SetDefault("similarity."+name+".weight", alg.Weight)
	}
	v.SetDefault("similarity.ngram_size", sim.NGramSize)
	v.SetDefault("similarity.threshold", sim.Threshold)

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "data/matcher.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.client_timeout", time.Duration(0))
}

// Load reads configuration from path (or matcher.yaml in the working
// directory when path is empty), applies MATCHER_* environment overrides on
// top and validates the result. A missing default file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else if explicit || !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error

	switch domain.ProviderName(c.Provider) {
	case domain.ProviderSquare, domain.ProviderStripe:
	default:
		errs = append(errs, fmt.Errorf("provider must be square or stripe, got '%s'", c.Provider))
	}
	switch c.Store.Driver {
	case "sqlite", "csv":
	default:
		errs = append(errs, fmt.Errorf("store.driver must be sqlite or csv, got '%s'", c.Store.Driver))
	}
	if c.Store.Path == "" {
		errs = append(errs, errors.New("store.path is required"))
	}
	if c.Search.WindowMinutes <= 0 {
		errs = append(errs, fmt.Errorf("search.window_minutes must be positive, got %v", c.Search.WindowMinutes))
	}
	if c.Search.MaxPages <= 0 {
		errs = append(errs, fmt.Errorf("search.max_pages must be positive, got %d", c.Search.MaxPages))
	}
	if c.Search.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("search.page_size must be positive, got %d", c.Search.PageSize))
	}
	if c.Search.RateLimitDelay < 0 || c.Batch.Delay < 0 {
		errs = append(errs, errors.New("delays must not be negative"))
	}
	if err := c.Scoring.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("scoring: %w", err))
	}
	if err := c.Confidence.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("confidence: %w", err))
	}
	if err := c.Similarity.Validate(); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or console, got '%s'", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
