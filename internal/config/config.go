package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/user/animerank-crawler/internal/collector"
	"github.com/user/animerank-crawler/internal/extractor"
)

// Config stores all configuration for the application.
type Config struct {
	BaseURL    string `mapstructure:"BASE_URL"`
	DataDir    string `mapstructure:"DATA_DIR"`
	OutputPath string `mapstructure:"OUTPUT_PATH"`

	StartOffset int `mapstructure:"START_OFFSET"`
	TotalItems  int `mapstructure:"TOTAL_ITEMS"`

	MaxRetries           int     `mapstructure:"MAX_RETRIES"`
	BaseBackoffSeconds   float64 `mapstructure:"BASE_BACKOFF_SECONDS"`
	CooldownMinSeconds   float64 `mapstructure:"COOLDOWN_MIN_SECONDS"`
	CooldownMaxSeconds   float64 `mapstructure:"COOLDOWN_MAX_SECONDS"`
	DetailTimeoutMinMS   int     `mapstructure:"DETAIL_TIMEOUT_MIN_MS"`
	DetailTimeoutMaxMS   int     `mapstructure:"DETAIL_TIMEOUT_MAX_MS"`
	ImageTimeoutMinMS    int     `mapstructure:"IMAGE_TIMEOUT_MIN_MS"`
	ImageTimeoutMaxMS    int     `mapstructure:"IMAGE_TIMEOUT_MAX_MS"`
	PaceMinMS            int     `mapstructure:"PACE_MIN_MS"`
	PaceMaxMS            int     `mapstructure:"PACE_MAX_MS"`
	FailureCooldownMinS  float64 `mapstructure:"FAILURE_COOLDOWN_MIN_SECONDS"`
	FailureCooldownMaxS  float64 `mapstructure:"FAILURE_COOLDOWN_MAX_SECONDS"`
	RequestsPerSecond    float64 `mapstructure:"REQUESTS_PER_SECOND"`
	RankDisclaimerRegexp string  `mapstructure:"RANK_DISCLAIMER_PATTERN"`
	RenderMode           string  `mapstructure:"RENDER_MODE"`
	BrowserTimeoutSec    int     `mapstructure:"BROWSER_TIMEOUT_SECONDS"`
	Proxies              string  `mapstructure:"PROXIES"`

	RedisAddr         string `mapstructure:"REDIS_ADDR"`
	DeduplicationDays int    `mapstructure:"DEDUPLICATION_DAYS"`
	PostgresURL       string `mapstructure:"POSTGRES_URL"`
	ServerPort        string `mapstructure:"SERVER_PORT"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
}

const (
	RenderHTTP    = "http"
	RenderBrowser = "browser"
)

// SetDefaults registers every key so that AutomaticEnv values are picked up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("BASE_URL", "https://myanimelist.net/topanime.php")
	v.SetDefault("DATA_DIR", "data/raw")
	v.SetDefault("OUTPUT_PATH", "data/anime.csv")
	v.SetDefault("START_OFFSET", 0)
	v.SetDefault("TOTAL_ITEMS", 1000)
	v.SetDefault("MAX_RETRIES", 3)
	v.SetDefault("BASE_BACKOFF_SECONDS", 2)
	v.SetDefault("COOLDOWN_MIN_SECONDS", 10)
	v.SetDefault("COOLDOWN_MAX_SECONDS", 15)
	v.SetDefault("DETAIL_TIMEOUT_MIN_MS", 1000)
	v.SetDefault("DETAIL_TIMEOUT_MAX_MS", 3000)
	v.SetDefault("IMAGE_TIMEOUT_MIN_MS", 500)
	v.SetDefault("IMAGE_TIMEOUT_MAX_MS", 1500)
	v.SetDefault("PACE_MIN_MS", 1500)
	v.SetDefault("PACE_MAX_MS", 3000)
	v.SetDefault("FAILURE_COOLDOWN_MIN_SECONDS", 15)
	v.SetDefault("FAILURE_COOLDOWN_MAX_SECONDS", 30)
	v.SetDefault("REQUESTS_PER_SECOND", 1)
	v.SetDefault("RANK_DISCLAIMER_PATTERN", extractor.DefaultDisclaimer)
	v.SetDefault("RENDER_MODE", RenderHTTP)
	v.SetDefault("BROWSER_TIMEOUT_SECONDS", 30)
	v.SetDefault("PROXIES", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("DEDUPLICATION_DAYS", 2)
	v.SetDefault("POSTGRES_URL", "")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
}

// Load reads configuration from envFile (optional) and environment variables
// into v, which may already carry bound command-line flags.
func Load(v *viper.Viper, envFile string) (*Config, error) {
	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		// A missing file is fine; the environment alone can configure everything.
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", envFile, err)
		}
	}
	v.AutomaticEnv()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the crawler cannot run with.
func (c *Config) Validate() error {
	if err := collector.ValidateRange(c.StartOffset, c.TotalItems); err != nil {
		return err
	}
	if c.BaseURL == "" {
		return errors.New("BASE_URL is required")
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("MAX_RETRIES must be at least 1, got %d", c.MaxRetries)
	}
	if c.PaceMinMS > c.PaceMaxMS {
		return fmt.Errorf("PACE_MIN_MS (%d) exceeds PACE_MAX_MS (%d)", c.PaceMinMS, c.PaceMaxMS)
	}
	if c.CooldownMinSeconds > c.CooldownMaxSeconds {
		return errors.New("COOLDOWN_MIN_SECONDS exceeds COOLDOWN_MAX_SECONDS")
	}
	if c.FailureCooldownMinS > c.FailureCooldownMaxS {
		return errors.New("FAILURE_COOLDOWN_MIN_SECONDS exceeds FAILURE_COOLDOWN_MAX_SECONDS")
	}
	switch c.RenderMode {
	case RenderHTTP, RenderBrowser:
	default:
		return fmt.Errorf("RENDER_MODE must be %q or %q, got %q", RenderHTTP, RenderBrowser, c.RenderMode)
	}
	if _, err := c.Disclaimer(); err != nil {
		return err
	}
	return nil
}

// Disclaimer compiles RANK_DISCLAIMER_PATTERN. An empty pattern disables stripping.
func (c *Config) Disclaimer() (*regexp.Regexp, error) {
	if c.RankDisclaimerRegexp == "" {
		return nil, nil
	}
	re, err := regexp.Compile(c.RankDisclaimerRegexp)
	if err != nil {
		return nil, fmt.Errorf("RANK_DISCLAIMER_PATTERN: %w", err)
	}
	return re, nil
}

// ProxyList splits PROXIES on commas.
func (c *Config) ProxyList() []string {
	var out []string
	for _, p := range strings.Split(c.Proxies, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) BaseBackoff() time.Duration { return seconds(c.BaseBackoffSeconds) }

func (c *Config) RetryCooldown() (time.Duration, time.Duration) {
	return seconds(c.CooldownMinSeconds), seconds(c.CooldownMaxSeconds)
}

func (c *Config) DetailTimeout() (time.Duration, time.Duration) {
	return millis(c.DetailTimeoutMinMS), millis(c.DetailTimeoutMaxMS)
}

func (c *Config) ImageTimeout() (time.Duration, time.Duration) {
	return millis(c.ImageTimeoutMinMS), millis(c.ImageTimeoutMaxMS)
}

func (c *Config) Pace() (time.Duration, time.Duration) {
	return millis(c.PaceMinMS), millis(c.PaceMaxMS)
}

func (c *Config) FailureCooldown() (time.Duration, time.Duration) {
	return seconds(c.FailureCooldownMinS), seconds(c.FailureCooldownMaxS)
}

func (c *Config) DedupTTL() time.Duration {
	return time.Duration(c.DeduplicationDays) * 24 * time.Hour
}

func (c *Config) BrowserTimeout() time.Duration {
	return time.Duration(c.BrowserTimeoutSec) * time.Second
}

func seconds(s float64) time.Duration { return time.Duration(s * float64(time.Second)) }

func millis(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }
