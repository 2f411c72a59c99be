package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Armin-kho/gheymat-bot/internal/db"
)

// Labels are the user-facing texts of the persistent reply keyboard.
type Labels struct {
	Price     string `json:"price,omitempty" yaml:"price,omitempty"`
	Modes     string `json:"modes,omitempty" yaml:"modes,omitempty"`
	Customize string `json:"customize,omitempty" yaml:"customize,omitempty"`
	Refresh   string `json:"refresh,omitempty" yaml:"refresh,omitempty"`
	Welcome   string `json:"welcome,omitempty" yaml:"welcome,omitempty"`
}

type Config struct {
	BotToken string `json:"bot_token" yaml:"bot_token"`
	DataDir  string `json:"data_dir" yaml:"data_dir"`
	// Storage is "file" (one JSON document per file) or "sqlite".
	Storage string `json:"storage,omitempty" yaml:"storage,omitempty"`

	BRSAPIKey  string   `json:"brs_api_key,omitempty" yaml:"brs_api_key,omitempty"`
	BRSURL     string   `json:"brs_url,omitempty" yaml:"brs_url,omitempty"`
	BitpinURL  string   `json:"bitpin_url,omitempty" yaml:"bitpin_url,omitempty"`
	AllowPairs []string `json:"allow_pairs,omitempty" yaml:"allow_pairs,omitempty"`

	DailyLimit           int `json:"daily_limit,omitempty" yaml:"daily_limit,omitempty"`
	BitpinTTLSeconds     int `json:"bitpin_ttl_seconds,omitempty" yaml:"bitpin_ttl_seconds,omitempty"`
	BRSTTLSeconds        int `json:"brs_ttl_seconds,omitempty" yaml:"brs_ttl_seconds,omitempty"`
	BitpinTimeoutSeconds int `json:"bitpin_timeout_seconds,omitempty" yaml:"bitpin_timeout_seconds,omitempty"`
	BRSTimeoutSeconds    int `json:"brs_timeout_seconds,omitempty" yaml:"brs_timeout_seconds,omitempty"`
	// QuotaRetentionDays drops older ledger days when > 0.
	QuotaRetentionDays int `json:"quota_retention_days,omitempty" yaml:"quota_retention_days,omitempty"`

	WarmSchedule string `json:"warm_schedule,omitempty" yaml:"warm_schedule,omitempty"`
	WarmBRS      bool   `json:"warm_brs,omitempty" yaml:"warm_brs,omitempty"`

	// HTTPAddr enables the status API when set.
	HTTPAddr             string `json:"http_addr,omitempty" yaml:"http_addr,omitempty"`
	MaxConcurrentUpdates int    `json:"max_concurrent_updates,omitempty" yaml:"max_concurrent_updates,omitempty"`

	LogLevel string `json:"log_level,omitempty" yaml:"log_level,omitempty"`
	LogJSON  bool   `json:"log_json,omitempty" yaml:"log_json,omitempty"`
	// If true, bot will log debug messages.
	Debug bool `json:"debug,omitempty" yaml:"debug,omitempty"`

	Labels Labels `json:"labels,omitempty" yaml:"labels,omitempty"`
}

const (
	DefaultDailyLimit   = 1500
	DefaultWarmSchedule = "@every 30s"
	DefaultWelcome      = "Welcome! Use /gheymat or the bottom bar to view prices. You can change display mode too."
)

func DefaultDataDir() string {
	if v := os.Getenv("GHEYMAT_DATA_DIR"); v != "" {
		return v
	}
	return "data"
}

func DefaultConfigPath() string {
	if v := os.Getenv("GHEYMAT_CONFIG"); v != "" {
		return v
	}
	return "/etc/gheymat-bot/config.json"
}

// Load reads path (JSON, or YAML by extension), applies environment
// overrides and defaults, then validates. A missing file is not an error.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	var cfg Config
	// 1) Try file
	if b, err := os.ReadFile(path); err == nil {
		if err := decode(path, b, &cfg); err != nil {
			return Config{}, err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	// 2) Env fallback / override
	applyEnv(&cfg)

	// 3) Defaults
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%w (config %s)", err, path)
	}
	return cfg, nil
}

func decode(path string, b []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return fmt.Errorf("invalid config yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(b, cfg); err != nil {
			return fmt.Errorf("invalid config json: %w", err)
		}
	}
	return nil
}

func applyEnv(cfg *Config) {
	set := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := os.Getenv(k); v != "" {
				*dst = v
			}
		}
	}
	set(&cfg.BotToken, "BOT_TOKEN", "GHEYMAT_BOT_TOKEN")
	set(&cfg.DataDir, "DATA_DIR", "GHEYMAT_DATA_DIR")
	set(&cfg.Storage, "GHEYMAT_STORAGE")
	set(&cfg.BRSAPIKey, "BRS_API_KEY")
	set(&cfg.HTTPAddr, "GHEYMAT_HTTP_ADDR")
	set(&cfg.LogLevel, "LOG_LEVEL")
	set(&cfg.Labels.Price, "LABEL_PRICE_FA")
	set(&cfg.Labels.Modes, "LABEL_MODES_FA")
	set(&cfg.Labels.Customize, "LABEL_CUSTOMIZE_FA")
	set(&cfg.Labels.Refresh, "LABEL_REFRESH_FA")
	set(&cfg.Labels.Welcome, "WELCOME_TEXT")

	if v := os.Getenv("GHEYMAT_DEBUG"); v != "" {
		cfg.Debug = parseBool(v)
	}
	if v := os.Getenv("GHEYMAT_ALLOW_PAIRS"); v != "" {
		cfg.AllowPairs = parseList(v)
	}
}

func (c *Config) setDefaults() {
	c.AllowPairs = normalizePairs(c.AllowPairs)
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir()
	}
	c.DataDir = filepath.Clean(c.DataDir)
	if c.Storage == "" {
		c.Storage = db.BackendFile
	}
	if c.DailyLimit == 0 {
		c.DailyLimit = DefaultDailyLimit
	}
	if c.BitpinTTLSeconds == 0 {
		c.BitpinTTLSeconds = 30
	}
	if c.BRSTTLSeconds == 0 {
		c.BRSTTLSeconds = 60
	}
	if c.BitpinTimeoutSeconds == 0 {
		c.BitpinTimeoutSeconds = 8
	}
	if c.BRSTimeoutSeconds == 0 {
		c.BRSTimeoutSeconds = 30
	}
	if c.WarmSchedule == "" {
		c.WarmSchedule = DefaultWarmSchedule
	}
	if c.MaxConcurrentUpdates == 0 {
		c.MaxConcurrentUpdates = 8
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Debug {
		c.LogLevel = "debug"
	}
	if c.Labels.Price == "" {
		c.Labels.Price = "Price"
	}
	if c.Labels.Modes == "" {
		c.Labels.Modes = "Modes"
	}
	if c.Labels.Customize == "" {
		c.Labels.Customize = "Customize"
	}
	if c.Labels.Refresh == "" {
		c.Labels.Refresh = "Refresh"
	}
	if c.Labels.Welcome == "" {
		c.Labels.Welcome = DefaultWelcome
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.BotToken == "" {
		return errors.New("missing bot_token (set it in the config file or BOT_TOKEN env)")
	}
	switch c.Storage {
	case db.BackendFile, db.BackendSQLite:
	default:
		return fmt.Errorf("unknown storage %q", c.Storage)
	}
	if c.DailyLimit <= 0 {
		return fmt.Errorf("daily_limit must be positive, got %d", c.DailyLimit)
	}
	for name, v := range map[string]int{
		"bitpin_ttl_seconds":     c.BitpinTTLSeconds,
		"brs_ttl_seconds":        c.BRSTTLSeconds,
		"bitpin_timeout_seconds": c.BitpinTimeoutSeconds,
		"brs_timeout_seconds":    c.BRSTimeoutSeconds,
		"max_concurrent_updates": c.MaxConcurrentUpdates,
	} {
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, v)
		}
	}
	if c.QuotaRetentionDays < 0 {
		return fmt.Errorf("quota_retention_days must not be negative, got %d", c.QuotaRetentionDays)
	}
	return nil
}

func (c Config) BitpinTTL() time.Duration     { return seconds(c.BitpinTTLSeconds) }
func (c Config) BRSTTL() time.Duration        { return seconds(c.BRSTTLSeconds) }
func (c Config) BitpinTimeout() time.Duration { return seconds(c.BitpinTimeoutSeconds) }
func (c Config) BRSTimeout() time.Duration    { return seconds(c.BRSTimeoutSeconds) }

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func parseBool(v string) bool {
	return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
}

func parseList(s string) []string {
	return normalizePairs(strings.Split(s, ","))
}

// normalizePairs trims and uppercases pair codes and drops empty ones.
func normalizePairs(in []string) []string {
	var out []string
	for _, part := range in {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, strings.ToUpper(part))
	}
	return out
}
