package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"CryptoLens/internal/model"
	"CryptoLens/internal/validator"
)

// Duration is a time.Duration that unmarshals from strings such as "10s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// WatchItem is one watchlist entry written as "BTC/USDT@1h".
type WatchItem struct {
	Pair      model.AssetPair
	Timeframe model.Timeframe
}

// ParseWatchItem parses "BASE/QUOTE@tf". The timeframe defaults to 1h.
func ParseWatchItem(s string) (WatchItem, error) {
	pairPart, tfPart, found := strings.Cut(strings.TrimSpace(s), "@")
	pair, err := model.ParsePair(pairPart)
	if err != nil {
		return WatchItem{}, err
	}
	tf := model.TF1h
	if found {
		if tf, err = model.ParseTimeframe(tfPart); err != nil {
			return WatchItem{}, err
		}
	}
	return WatchItem{Pair: pair, Timeframe: tf}, nil
}

func (w WatchItem) String() string {
	return w.Pair.String() + "@" + string(w.Timeframe)
}

// Config holds all application configuration.
type Config struct {
	Server struct {
		Listen string `yaml:"listen"`
	} `yaml:"server"`
	Providers struct {
		Timeout    Duration `yaml:"timeout"`
		Proxy      string   `yaml:"proxy"`
		Mock       bool     `yaml:"mock"`
		CryptoAPIs struct {
			BaseURL         string `yaml:"base_url"`
			APIKey          string `yaml:"api_key"`
			UseBackupPrices bool   `yaml:"use_backup_prices"`
		} `yaml:"cryptoapis"`
		Smithery struct {
			URL string `yaml:"url"`
		} `yaml:"smithery"`
		CoinCap struct {
			BaseURL string `yaml:"base_url"`
			APIKey  string `yaml:"api_key"`
		} `yaml:"coincap"`
		CoinGecko struct {
			BaseURL string `yaml:"base_url"`
			APIKey  string `yaml:"api_key"`
		} `yaml:"coingecko"`
		Breaker struct {
			Failures int      `yaml:"failures"`
			Reset    Duration `yaml:"reset"`
		} `yaml:"breaker"`
	} `yaml:"providers"`
	Cache struct {
		TTL Duration `yaml:"ttl"`
	} `yaml:"cache"`
	Validation struct {
		Ranges map[string]validator.Range `yaml:"ranges"`
	} `yaml:"validation"`
	LLM struct {
		Enabled  bool     `yaml:"enabled"`
		Endpoint string   `yaml:"endpoint"`
		APIKey   string   `yaml:"api_key"`
		Model    string   `yaml:"model"`
		Timeout  Duration `yaml:"timeout"`
	} `yaml:"llm"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Redis struct {
		Addr      string   `yaml:"addr"`
		Password  string   `yaml:"password"`
		DB        int      `yaml:"db"`
		LatestTTL Duration `yaml:"latest_ttl"`
	} `yaml:"redis"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Schedule struct {
		RefreshCron string `yaml:"refresh_cron"`
		DigestCron  string `yaml:"digest_cron"`
	} `yaml:"schedule"`
	Watchlist struct {
		Entries   []string `yaml:"entries"`
		StateFile string   `yaml:"state_file"`
	} `yaml:"watchlist"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	overrides := []struct {
		env    string
		target *string
	}{
		{"CRYPTOAPIS_API_KEY", &c.Providers.CryptoAPIs.APIKey},
		{"SMITHERY_URL", &c.Providers.Smithery.URL},
		{"COINCAP_API_KEY", &c.Providers.CoinCap.APIKey},
		{"COINGECKO_API_KEY", &c.Providers.CoinGecko.APIKey},
		{"LLM_API_KEY", &c.LLM.APIKey},
		{"LLM_BASE_URL", &c.LLM.Endpoint},
		{"TELEGRAM_BOT_TOKEN", &c.Telegram.BotToken},
		{"TELEGRAM_CHAT_ID", &c.Telegram.ChatID},
		{"REDIS_ADDR", &c.Redis.Addr},
		{"SQLITE_PATH", &c.Database.SQLitePath},
		{"LISTEN_ADDR", &c.Server.Listen},
		{"HTTPS_PROXY", &c.Providers.Proxy},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.target = v
		}
	}
	if v := os.Getenv("PROVIDERS_MOCK"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Providers.Mock = b
		}
	}
	// A key supplied through the environment turns the LLM on.
	if os.Getenv("LLM_API_KEY") != "" {
		c.LLM.Enabled = true
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Providers.Timeout == 0 {
		c.Providers.Timeout = Duration(10 * time.Second)
	}
	if c.Providers.Breaker.Reset == 0 {
		c.Providers.Breaker.Reset = Duration(time.Minute)
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = Duration(5 * time.Minute)
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = Duration(30 * time.Second)
	}
	if c.Redis.LatestTTL == 0 {
		c.Redis.LatestTTL = Duration(30 * time.Minute)
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/cryptolens.db"
	}
	if c.Schedule.RefreshCron == "" {
		c.Schedule.RefreshCron = "0 */15 * * * *"
	}
	if c.Schedule.DigestCron == "" {
		c.Schedule.DigestCron = "0 0 8 * * *"
	}
	if len(c.Watchlist.Entries) == 0 {
		c.Watchlist.Entries = []string{"BTC/USDT@1h", "ETH/USDT@1h", "SOL/USDT@4h"}
	}
	if c.Watchlist.StateFile == "" {
		c.Watchlist.StateFile = "data/watchlist.json"
	}
}

// Validate checks that required fields are set and values are in range.
func (c *Config) Validate() error {
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen is required")
	}
	if t := c.Providers.Timeout.Std(); t < time.Second || t > time.Minute {
		return fmt.Errorf("providers.timeout must be between 1s and 60s, got %s", t)
	}
	if c.Providers.Breaker.Failures < 0 {
		return fmt.Errorf("providers.breaker.failures must not be negative")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}
	for base, r := range c.Validation.Ranges {
		if r.Min <= 0 || r.Max <= r.Min {
			return fmt.Errorf("validation.ranges.%s: want 0 < min < max", base)
		}
	}
	if c.Telegram.BotToken != "" && c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required when bot_token is set")
	}
	if _, err := c.WatchItems(); err != nil {
		return err
	}
	return nil
}

// WatchItems parses the watchlist entries.
func (c *Config) WatchItems() ([]WatchItem, error) {
	items := make([]WatchItem, 0, len(c.Watchlist.Entries))
	for _, raw := range c.Watchlist.Entries {
		item, err := ParseWatchItem(raw)
		if err != nil {
			return nil, fmt.Errorf("watchlist entry %q: %w", raw, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// LLMEnabled reports whether narratives should be requested from the LLM.
func (c *Config) LLMEnabled() bool {
	return c.LLM.Enabled && c.LLM.APIKey != ""
}

// RangeOverrides returns validation ranges keyed by upper-case base asset.
func (c *Config) RangeOverrides() map[string]validator.Range {
	out := make(map[string]validator.Range, len(c.Validation.Ranges))
	for base, r := range c.Validation.Ranges {
		out[strings.ToUpper(base)] = r
	}
	return out
}
