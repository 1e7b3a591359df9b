// Package config loads termlookup settings from defaults, an optional config
// file, .env files and TERMLOOKUP_* environment variables.
package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/japaniel/termlookup/pkg/fuzzy"
)

// EnvPrefix is prepended to every environment override, e.g.
// TERMLOOKUP_SEARCH_FUZZY_THRESHOLD.
const EnvPrefix = "TERMLOOKUP"

// Config holds application configuration.
type Config struct {
	DatabasePath string
	Dictionary   struct {
		Path string
		URL  string
	}
	Search struct {
		FuzzyThreshold float64
		Algorithm      string
		Location       int
		Distance       int
	}
	Batch struct {
		Workers int
		Size    int
	}
	LogLevel string
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database_path", "termlookup.db")
	v.SetDefault("dictionary.path", "system_terms.json")
	v.SetDefault("dictionary.url", "")
	v.SetDefault("search.fuzzy_threshold", 0.3)
	v.SetDefault("search.algorithm", fuzzy.AlgorithmBitap)
	v.SetDefault("search.location", fuzzy.DefaultLocation)
	v.SetDefault("search.distance", fuzzy.DefaultDistance)
	v.SetDefault("batch.workers", 4)
	v.SetDefault("batch.size", 50)
	v.SetDefault("log.level", "info")
}

// NewViper returns a viper instance with defaults and environment binding.
// When cfgFile is non-empty it is read; a missing file is an error.
// .env files in the working directory are loaded first, if present.
func NewViper(cfgFile string) (*viper.Viper, error) {
	// Missing .env is normal.
	_ = godotenv.Load()

	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	}
	return v, nil
}

// Load builds a validated Config from v.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	cfg.DatabasePath = v.GetString("database_path")
	cfg.Dictionary.Path = v.GetString("dictionary.path")
	cfg.Dictionary.URL = v.GetString("dictionary.url")
	cfg.Search.FuzzyThreshold = v.GetFloat64("search.fuzzy_threshold")
	cfg.Search.Algorithm = strings.ToLower(strings.TrimSpace(v.GetString("search.algorithm")))
	cfg.Search.Location = v.GetInt("search.location")
	cfg.Search.Distance = v.GetInt("search.distance")
	cfg.Batch.Workers = v.GetInt("batch.workers")
	cfg.Batch.Size = v.GetInt("batch.size")
	cfg.LogLevel = v.GetString("log.level")

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database_path must be set")
	}
	t := c.Search.FuzzyThreshold
	if math.IsNaN(t) || t < 0 || t > 1 {
		return fmt.Errorf("search.fuzzy_threshold must be within [0, 1], got %v", t)
	}
	known := false
	for _, a := range fuzzy.Algorithms {
		if c.Search.Algorithm == a {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("search.algorithm %q is not one of %s", c.Search.Algorithm, strings.Join(fuzzy.Algorithms, ", "))
	}
	if c.Search.Distance < 0 {
		return fmt.Errorf("search.distance must not be negative")
	}
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("batch.workers must be positive, got %d", c.Batch.Workers)
	}
	if c.Batch.Size <= 0 {
		return fmt.Errorf("batch.size must be positive, got %d", c.Batch.Size)
	}
	return nil
}

// Scorer returns the fuzzy scorer selected by the search settings.
func (c Config) Scorer() (fuzzy.Scorer, error) {
	return fuzzy.ScorerByName(c.Search.Algorithm, c.Search.Location, c.Search.Distance)
}
