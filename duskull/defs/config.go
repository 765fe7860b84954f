package defs

import (
	"fmt"
	"math"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const DefaultDB = "ichor"

// Glucose targets, in mg/dL.
const (
	DefaultLowTarget  = 70
	DefaultHighTarget = 180
)

const (
	DefaultAddr       = ":4242"
	DefaultSQLitePath = "ichor.db"
	TimeoutInterval   = 2 * time.Second
)

type Config struct {
	DataFolder      string        `yaml:"dataFolder"`
	DataFolders     []string      `yaml:"dataFolders"`
	Glucose         GlucoseConfig `yaml:"glucose"`
	MatchDateRanges bool          `yaml:"matchDateRanges"`
	Timezone        string        `yaml:"timezone"`
	Mongo           MongoConfig   `yaml:"mongo"`
	SQLite          SQLiteConfig  `yaml:"sqlite"`
	Discord         DiscordConfig `yaml:"discord"`
	HTTP            HTTPConfig    `yaml:"http"`
	Metrics         MetricsConfig `yaml:"metrics"`
	Logger          *zap.Logger   `yaml:"-"`
}

type GlucoseConfig struct {
	Low  float64 `yaml:"low"`
	High float64 `yaml:"high"`
}

// Validate rejects inverted, degenerate or non-finite target ranges.
func (gc GlucoseConfig) Validate() error {
	for _, bound := range []float64{gc.Low, gc.High} {
		if math.IsNaN(bound) || math.IsInf(bound, 0) {
			return fmt.Errorf("%w: glucose targets must be finite, got %v and %v",
				ErrConfiguration, gc.Low, gc.High)
		}
	}
	if gc.Low >= gc.High {
		return fmt.Errorf("%w: low target %.1f must be below high target %.1f",
			ErrConfiguration, gc.Low, gc.High)
	}
	return nil
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type DiscordConfig struct {
	Token   string `yaml:"token"`
	Channel uint64 `yaml:"channel"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// MetricsConfig tunes the Prometheus metrics served by the read API. Empty
// fields keep the metrics package defaults.
type MetricsConfig struct {
	Namespace       string    `yaml:"namespace"`
	DurationBuckets []float64 `yaml:"durationBuckets"`
}

// Validate rejects duration buckets that are not finite and strictly
// increasing.
func (mc MetricsConfig) Validate() error {
	for i, b := range mc.DurationBuckets {
		if math.IsNaN(b) || math.IsInf(b, 0) {
			return fmt.Errorf("%w: duration bucket %v is not finite", ErrConfiguration, b)
		}
		if i > 0 && b <= mc.DurationBuckets[i-1] {
			return fmt.Errorf("%w: duration buckets must be strictly increasing", ErrConfiguration)
		}
	}
	return nil
}

func DefaultConfig() Config {
	return Config{
		Glucose: GlucoseConfig{
			Low:  DefaultLowTarget,
			High: DefaultHighTarget,
		},
		MatchDateRanges: true,
		Mongo:           MongoConfig{Database: DefaultDB},
		SQLite:          SQLiteConfig{Path: DefaultSQLitePath},
		HTTP:            HTTPConfig{Addr: DefaultAddr},
	}
}

// LoadConfig reads a yaml config file over the defaults. A missing file is
// not an error; the defaults are returned as is.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	file, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return config, nil
	}
	if err != nil {
		return config, fmt.Errorf("unable to read config file: %w", err)
	}

	if err := yaml.Unmarshal(file, &config); err != nil {
		return config, fmt.Errorf("unable to parse config file: %w", err)
	}

	if err := config.Glucose.Validate(); err != nil {
		return config, err
	}
	if err := config.Metrics.Validate(); err != nil {
		return config, err
	}

	return config, nil
}

// Location resolves the timezone used to interpret export timestamps.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown timezone %q", ErrConfiguration, c.Timezone)
	}
	return loc, nil
}

// Folders returns the export folders a run should read. DataFolders wins
// over DataFolder when both are set.
func (c Config) Folders() []string {
	if len(c.DataFolders) > 0 {
		return c.DataFolders
	}
	if c.DataFolder != "" {
		return []string{c.DataFolder}
	}
	return nil
}
