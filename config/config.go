package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Bybit    BybitConfig    `mapstructure:"bybit"`
	Feed     FeedConfig     `mapstructure:"feed"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Log      LogConfig      `mapstructure:"log"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type BybitConfig struct {
	Category string     `mapstructure:"category"` // "linear", "spot" or "inverse"
	REST     RESTConfig `mapstructure:"rest"`
	WS       WSConfig   `mapstructure:"ws"`
}

type RESTConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"` // requests per second, 0 disables pacing
}

type WSConfig struct {
	URL          string        `mapstructure:"url"`
	PingInterval time.Duration `mapstructure:"ping_interval"`
}

// FeedConfig tunes the bar engine and the charting datafeed.
type FeedConfig struct {
	Exchange             string        `mapstructure:"exchange"`               // label shown on charts
	PriceMode            string        `mapstructure:"price_mode"`             // "lastPrice" or "markPrice"
	QueueSize            int           `mapstructure:"queue_size"`             // transport event queue capacity
	HistoryTimeout       time.Duration `mapstructure:"history_timeout"`        // per getBars request
	UnsubscribeClearsAll bool          `mapstructure:"unsubscribe_clears_all"` // legacy unsubscribe behaviour
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	StreamBuffer    int           `mapstructure:"stream_buffer"` // bars buffered per browser connection
}

// Options defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // log level: "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // log format: "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // file path to store logs (optional)
	Environment string `mapstructure:"environment"` // environment: "dev" or "prod"
}

// RedisConfig configures the last-price snapshot mirror.
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	PriceTTL time.Duration `mapstructure:"price_ttl"`
}

// Load loads application configuration using Viper.
// It reads from config.yaml and overrides with environment variables.
func Load() *Config {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := LoadFrom(configPaths()...)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// LoadFrom reads config.yaml from the first of paths that has one.
func LoadFrom(paths ...string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config") // config.yaml
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	setDefaults(v)

	// Support environment variables with dot notation (e.g., BYBIT_WS_URL)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func configPaths() []string {
	if dir := os.Getenv("CHARTFEED_CONFIG_DIR"); dir != "" {
		return []string{dir}
	}

	paths := []string{"./config"}
	ex, _ := os.Executable()
	if strings.Contains(ex, "go-build") {
		pwd, _ := os.Getwd()
		paths = append(paths, filepath.Join(pwd, "../../config"))
	} else {
		paths = append(paths, filepath.Join(filepath.Dir(ex), "../config"))
	}
	return paths
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bybit.category", "linear")
	v.SetDefault("bybit.rest.base_url", "https://api.bybit.com")
	v.SetDefault("bybit.rest.timeout", 10*time.Second)
	v.SetDefault("bybit.rest.rate_limit", 10)
	v.SetDefault("bybit.ws.url", "wss://stream.bybit.com/v5/public/linear")
	v.SetDefault("bybit.ws.ping_interval", 20*time.Second)

	v.SetDefault("feed.exchange", "Bybit")
	v.SetDefault("feed.price_mode", "lastPrice")
	v.SetDefault("feed.queue_size", 4096)
	v.SetDefault("feed.history_timeout", 15*time.Second)
	v.SetDefault("feed.unsubscribe_clears_all", false)

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 30*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("http.stream_buffer", 256)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.environment", "dev")

	v.SetDefault("redis.price_ttl", 24*time.Hour)
}
