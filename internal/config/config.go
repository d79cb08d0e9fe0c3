// Package config loads the optional YAML file that tunes interpretation bands,
// demand thresholds, the recommendation rule table and business profiles.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lox/stockcast/internal/accuracy"
	"github.com/lox/stockcast/internal/advisor"
	"github.com/lox/stockcast/internal/models"
)

// DefaultCurrency labels CPO and monthly cost figures.
const DefaultCurrency = "Rp"

type Config struct {
	Bands      accuracy.Bands
	Thresholds advisor.Thresholds
	Rules      advisor.Rules
	Profiles   []models.Profile
	Currency   string
}

func Default() *Config {
	return &Config{
		Bands:      accuracy.DefaultBands(),
		Thresholds: advisor.DefaultThresholds(),
		Rules:      advisor.DefaultRules(),
		Profiles:   advisor.DefaultProfiles(),
		Currency:   DefaultCurrency,
	}
}

// fileConfig mirrors the YAML layout. Sections left out keep their defaults.
type fileConfig struct {
	Bands      accuracy.Bands     `yaml:"bands"`
	Thresholds advisor.Thresholds `yaml:"thresholds"`
	Rules      []ruleEntry        `yaml:"rules"`
	Profiles   []profileEntry     `yaml:"profiles"`
	Currency   string             `yaml:"currency"`
}

type ruleEntry struct {
	Warehouse string         `yaml:"warehouse"`
	Expected  string         `yaml:"expected"`
	Match     advisor.Action `yaml:"match"`
	Fallback  advisor.Action `yaml:"fallback"`
}

type profileEntry struct {
	Warehouse   string  `yaml:"warehouse"`
	AsOf        string  `yaml:"as_of"`
	AccuracyPct float64 `yaml:"accuracy_pct"`
	FCRPct      float64 `yaml:"fcr_pct"`
	CPO         float64 `yaml:"cpo"`
	MonthlyCost float64 `yaml:"monthly_cost"`
	ROIPct      float64 `yaml:"roi_pct"`
}

// Load reads path. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result. Unknown keys
// are rejected.
func Parse(data []byte) (*Config, error) {
	def := Default()
	fc := fileConfig{
		Bands:      def.Bands,
		Thresholds: def.Thresholds,
		Currency:   def.Currency,
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg := &Config{
		Bands:      fc.Bands,
		Thresholds: fc.Thresholds,
		Rules:      def.Rules,
		Profiles:   def.Profiles,
		Currency:   strings.TrimSpace(fc.Currency),
	}

	if fc.Rules != nil {
		cfg.Rules = make(advisor.Rules, 0, len(fc.Rules))
		for i, r := range fc.Rules {
			cond, err := models.ParseDemandCondition(r.Expected)
			if err != nil {
				return nil, fmt.Errorf("rule %d: %w", i, err)
			}
			cfg.Rules = append(cfg.Rules, advisor.Rule{
				Location: models.NormalizeLocation(r.Warehouse),
				Expected: cond,
				Match:    r.Match,
				Fallback: r.Fallback,
			})
		}
	}

	if fc.Profiles != nil {
		cfg.Profiles = make([]models.Profile, 0, len(fc.Profiles))
		for i, p := range fc.Profiles {
			var asOf time.Time
			if p.AsOf != "" {
				t, err := time.Parse("2006-01-02", p.AsOf)
				if err != nil {
					return nil, fmt.Errorf("profile %d: as_of: %w", i, err)
				}
				asOf = t
			}
			cfg.Profiles = append(cfg.Profiles, models.Profile{
				Location:    models.NormalizeName(p.Warehouse),
				AsOf:        asOf,
				AccuracyPct: p.AccuracyPct,
				FCRPct:      p.FCRPct,
				CPO:         p.CPO,
				MonthlyCost: p.MonthlyCost,
				ROIPct:      p.ROIPct,
			})
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := c.Bands.Validate(); err != nil {
		return err
	}
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}
	if err := c.Rules.Validate(); err != nil {
		return fmt.Errorf("rules: %w", err)
	}
	if c.Currency == "" {
		return errors.New("currency must not be empty")
	}
	for i, p := range c.Profiles {
		if p.Location == "" {
			return fmt.Errorf("profile %d: warehouse is required", i)
		}
		if p.AccuracyPct < 0 || p.AccuracyPct > 100 {
			return fmt.Errorf("profile %d (%s): accuracy_pct %v out of range", i, p.Location, p.AccuracyPct)
		}
		if p.FCRPct < 0 || p.FCRPct > 100 {
			return fmt.Errorf("profile %d (%s): fcr_pct %v out of range", i, p.Location, p.FCRPct)
		}
	}
	return nil
}

// Advisor builds an advisor from the configured thresholds and rules.
func (c *Config) Advisor() *advisor.Advisor {
	return advisor.New(c.Thresholds, c.Rules)
}
