package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Exchanges ExchangesConfig `mapstructure:"exchanges"`
	Market    MarketConfig    `mapstructure:"market"`
	MMT       MMTConfig       `mapstructure:"mmt"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
}

// ExchangesConfig holds per-venue endpoint overrides. Empty URLs use the venue defaults.
type ExchangesConfig struct {
	Timeout          time.Duration `mapstructure:"timeout"`
	BinanceURL       string        `mapstructure:"binance_url"`
	BinanceStreamURL string        `mapstructure:"binance_stream_url"`
	BybitURL         string        `mapstructure:"bybit_url"`
	BybitStreamURL   string        `mapstructure:"bybit_stream_url"`
	OKXURL           string        `mapstructure:"okx_url"`
	CoinbaseURL      string        `mapstructure:"coinbase_url"`
}

type MarketConfig struct {
	MinInterval time.Duration `mapstructure:"min_interval"` // spacing between exchange requests
	TickerTTL   time.Duration `mapstructure:"ticker_ttl"`
	TopLimit    int           `mapstructure:"top_limit"`
	CandleLimit int           `mapstructure:"candle_limit"`
	Quote       string        `mapstructure:"quote"`
}

type CacheConfig struct {
	Backend string `mapstructure:"backend"` // "memory" or "redis"
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	Mode string `mapstructure:"mode"` // gin mode: "debug", "release", "test"
}

// LogConfig defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // optional rotated log file
	Environment string `mapstructure:"environment"` // "dev" or "prod"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("exchanges.timeout", 30*time.Second)
	v.SetDefault("exchanges.binance_url", "")
	v.SetDefault("exchanges.binance_stream_url", "")
	v.SetDefault("exchanges.bybit_stream_url", "")
	v.SetDefault("exchanges.bybit_url", "")
	v.SetDefault("exchanges.okx_url", "")
	v.SetDefault("exchanges.coinbase_url", "")

	v.SetDefault("market.min_interval", 1200*time.Millisecond)
	v.SetDefault("market.ticker_ttl", 300*time.Second)
	v.SetDefault("market.top_limit", 10)
	v.SetDefault("market.candle_limit", 50)
	v.SetDefault("market.quote", "USDT")

	v.SetDefault("mmt.api_key", "")
	v.SetDefault("mmt.api_key_parameter", "")
	v.SetDefault("mmt.region", "eu-central-1")
	v.SetDefault("mmt.base_url", "")
	v.SetDefault("mmt.timeout", 8*time.Second)
	v.SetDefault("mmt.exchange", "binancef")
	v.SetDefault("mmt.symbol", "btc/usd")
	v.SetDefault("mmt.tf", "1m")

	v.SetDefault("cache.backend", "memory")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("server.addr", ":3001")
	v.SetDefault("server.mode", "release")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output_file", "")
	v.SetDefault("log.environment", "dev")
}

// Load reads configuration from path, or from config.yaml in the working
// directory, ./config or next to the executable when path is empty. A missing
// config.yaml in those locations is not an error. Environment variables
// override file values (e.g. MARKET_TICKER_TTL, MMT_API_KEY).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("config")
		if ex, err := os.Executable(); err == nil {
			v.AddConfigPath(filepath.Join(filepath.Dir(ex), "../config"))
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid cache backend %q: must be memory or redis", c.Cache.Backend)
	}
	if c.Market.TickerTTL <= 0 {
		return fmt.Errorf("market.ticker_ttl must be positive")
	}
	if c.Market.Quote == "" {
		return fmt.Errorf("market.quote must be set")
	}
	return nil
}
