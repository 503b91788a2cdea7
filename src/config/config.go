package config

import (
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so yaml files can use forms like "30s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return errors.Wrapf(err, "parse duration %q", value.Value)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "pretty"
	File   string `yaml:"file"`
}

type RateLimitConfig struct {
	Disabled bool     `yaml:"disabled"`
	Max      int      `yaml:"max"`
	Window   Duration `yaml:"window"`
}

type DepthConfig struct {
	DefaultLevels int `yaml:"default_levels"`
	MaxLevels     int `yaml:"max_levels"`
}

type MatchingConfig struct {
	// PreserveTimePriority restores admission order when a partially filled
	// order re-enters the book instead of appending it at the end.
	PreserveTimePriority bool `yaml:"preserve_time_priority"`
}

// PairConfig declares one traded pair initialized at boot.
type PairConfig struct {
	BaseAsset     string `yaml:"base_asset"`
	QuoteAsset    string `yaml:"quote_asset"`
	BaseDecimals  uint8  `yaml:"base_decimals"`
	QuoteDecimals uint8  `yaml:"quote_decimals"`
	Authority     string `yaml:"authority"`
}

type Config struct {
	Port                  string          `yaml:"port"`
	ShutdownTimeout       Duration        `yaml:"shutdown_timeout"`
	DataDir               string          `yaml:"data_dir"`
	MaxConcurrentRequests int64           `yaml:"max_concurrent_requests"`
	Log                   LogConfig       `yaml:"log"`
	RateLimit             RateLimitConfig `yaml:"rate_limit"`
	Depth                 DepthConfig     `yaml:"depth"`
	Matching              MatchingConfig  `yaml:"matching"`
	Pairs                 []PairConfig    `yaml:"pairs"`
}

func Default() *Config {
	return &Config{
		Port:            "8080",
		ShutdownTimeout: Duration(10 * time.Second),
		DataDir:         "data",
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		RateLimit: RateLimitConfig{
			Max:    100,
			Window: Duration(time.Second),
		},
		Depth: DepthConfig{
			DefaultLevels: 10,
			MaxLevels:     1000,
		},
	}
}

// Load reads the yaml file when path is nonempty and applies environment
// overrides on top, so deployments can tweak a setting without editing the
// file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Port = v
	}
	if v := os.Getenv("SHUTDOWN_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil && parsed > 0 {
			c.ShutdownTimeout = Duration(parsed)
		}
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		c.Log.File = v
	}
	if os.Getenv("RATE_LIMIT_DISABLED") == "1" {
		c.RateLimit.Disabled = true
	}
	if v := os.Getenv("RATE_LIMIT_MAX"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			c.RateLimit.Max = parsed
		}
	}
	if v := os.Getenv("RATE_LIMIT_WINDOW"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil && parsed > 0 {
			c.RateLimit.Window = Duration(parsed)
		}
	}
	if v := os.Getenv("MAX_CONCURRENT_REQUESTS"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil && parsed > 0 {
			c.MaxConcurrentRequests = parsed
		}
	}
}

func (c *Config) validate() error {
	for i, pair := range c.Pairs {
		if pair.BaseAsset == "" || pair.QuoteAsset == "" {
			return errors.Errorf("pair %d: base_asset and quote_asset are required", i)
		}
		if pair.Authority == "" {
			return errors.Errorf("pair %s/%s: authority is required", pair.BaseAsset, pair.QuoteAsset)
		}
	}
	if c.Depth.DefaultLevels <= 0 || c.Depth.MaxLevels < c.Depth.DefaultLevels {
		return errors.New("depth levels misconfigured")
	}
	return nil
}
