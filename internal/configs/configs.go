package configs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvDBDriver = "XRPLFEED_DB_DRIVER"
	EnvDBDSN    = "XRPLFEED_DB_DSN"
	EnvListen   = "XRPLFEED_LISTEN"
	EnvMetaURL  = "XRPLFEED_META_URL"
)

type Config struct {
	// 基础配置
	Listen   string `json:"listen" yaml:"listen"`       // HTTP 监听地址
	LogLevel string `json:"log_level" yaml:"log_level"` // debug/info/warn/error
	Debug    bool   `json:"debug" yaml:"debug"`

	Database Database `json:"database" yaml:"database"`

	// 数据源
	MetaBaseURL string      `json:"meta_base_url" yaml:"meta_base_url"`
	Providers   RateSources `json:"providers" yaml:"providers"`
	RateTTL     string      `json:"rate_ttl" yaml:"rate_ttl"`

	Limits Limits `json:"limits" yaml:"limits"`

	// 刷新节奏
	PollInterval string `json:"poll_interval" yaml:"poll_interval"`
	Debounce     string `json:"debounce" yaml:"debounce"`

	Realtime Realtime `json:"realtime" yaml:"realtime"`
}

type Database struct {
	Driver  string `json:"driver" yaml:"driver"`     // sqlite/postgres
	ConnStr string `json:"conn_str" yaml:"conn_str"` // 数据库连接字符串
}

// RateSources holds the fiat rate provider base URLs; an empty URL uses the provider default.
type RateSources struct {
	CoinGecko string `json:"coingecko" yaml:"coingecko"`
	Binance   string `json:"binance" yaml:"binance"`
	Kraken    string `json:"kraken" yaml:"kraken"`
}

type Limits struct {
	PageLimit       int `json:"page_limit" yaml:"page_limit"`               // 单页条数
	BatchSize       int `json:"batch_size" yaml:"batch_size"`               // 批量拉取每批条数
	MaxTokens       int `json:"max_tokens" yaml:"max_tokens"`               // 批量拉取上限
	DisplayPageSize int `json:"display_page_size" yaml:"display_page_size"` // 无搜索时展示条数
	MaxSearchable   int `json:"max_searchable" yaml:"max_searchable"`       // 搜索集合上限
}

type Endpoint struct {
	URL     string `json:"url" yaml:"url"`
	Timeout string `json:"timeout" yaml:"timeout"`
}

type Realtime struct {
	Endpoints    []Endpoint `json:"endpoints" yaml:"endpoints"`
	Streams      []string   `json:"streams" yaml:"streams"`
	BaseDelay    string     `json:"base_delay" yaml:"base_delay"`
	MaxDelay     string     `json:"max_delay" yaml:"max_delay"`
	MaxAttempts  int        `json:"max_attempts" yaml:"max_attempts"`
	PingInterval string     `json:"ping_interval" yaml:"ping_interval"`
}

// Default returns a config carrying every built-in policy value.
func Default() *Config {
	return &Config{
		Listen:   ":8080",
		LogLevel: "info",
		Database: Database{
			Driver:  "sqlite",
			ConnStr: "xrplfeed.db",
		},
		MetaBaseURL: "https://s2.xrplmeta.org",
		RateTTL:     "30s",
		Limits: Limits{
			PageLimit:       100,
			BatchSize:       100,
			MaxTokens:       1000,
			DisplayPageSize: 50,
			MaxSearchable:   30000,
		},
		PollInterval: "10s",
		Debounce:     "300ms",
		Realtime: Realtime{
			Endpoints: []Endpoint{
				{URL: "wss://s2.ripple.com/", Timeout: "5s"},
				{URL: "wss://s1.ripple.com/", Timeout: "5s"},
				{URL: "wss://xrplcluster.com/", Timeout: "8s"},
				{URL: "wss://xrpl.ws/", Timeout: "8s"},
			},
			Streams:      []string{"ledger", "server", "consensus", "peer_status", "validations"},
			BaseDelay:    "2s",
			MaxDelay:     "30s",
			MaxAttempts:  5,
			PingInterval: "10s",
		},
	}
}

// Load reads path on top of the defaults. YAML is used for .yaml/.yml files and
// JSON otherwise. An empty path yields the defaults. Environment overrides,
// optionally from a .env file, are applied last.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			err = yaml.Unmarshal(raw, cfg)
		default:
			err = json.Unmarshal(raw, cfg)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// .env 可选
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDBDriver); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv(EnvDBDSN); v != "" {
		c.Database.ConnStr = v
	}
	if v := os.Getenv(EnvListen); v != "" {
		c.Listen = v
	}
	if v := os.Getenv(EnvMetaURL); v != "" {
		c.MetaBaseURL = v
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.Limits.PageLimit <= 0 {
		errs = append(errs, errors.New("limits.page_limit must be positive"))
	}
	if c.Limits.BatchSize <= 0 {
		errs = append(errs, errors.New("limits.batch_size must be positive"))
	}
	if c.Limits.MaxTokens <= 0 {
		errs = append(errs, errors.New("limits.max_tokens must be positive"))
	}
	if c.Limits.DisplayPageSize <= 0 {
		errs = append(errs, errors.New("limits.display_page_size must be positive"))
	}
	if c.Limits.MaxSearchable <= 0 {
		errs = append(errs, errors.New("limits.max_searchable must be positive"))
	}
	if c.Realtime.MaxAttempts <= 0 {
		errs = append(errs, errors.New("realtime.max_attempts must be positive"))
	}
	if len(c.Realtime.Endpoints) == 0 {
		errs = append(errs, errors.New("realtime.endpoints must not be empty"))
	}
	for i, ep := range c.Realtime.Endpoints {
		if ep.URL == "" {
			errs = append(errs, fmt.Errorf("realtime.endpoints[%d].url is empty", i))
		}
	}
	switch c.Database.Driver {
	case "", "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("unsupported database driver %q", c.Database.Driver))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Duration parses s, returning fallback when it is empty or invalid.
func Duration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func (c *Config) PollEvery() time.Duration {
	return Duration(c.PollInterval, 10*time.Second)
}

func (c *Config) DebounceDelay() time.Duration {
	return Duration(c.Debounce, 300*time.Millisecond)
}

func (c *Config) RateCacheTTL() time.Duration {
	return Duration(c.RateTTL, 30*time.Second)
}
