package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Bot        BotConfig        `mapstructure:"bot"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Session    SessionConfig    `mapstructure:"session"`
	Stats      StatsConfig      `mapstructure:"stats"`
	AI         AIConfig         `mapstructure:"ai"`
	API        APIConfig        `mapstructure:"api"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	I18n       I18nConfig       `mapstructure:"i18n"`
}

type BotConfig struct {
	Token         string `mapstructure:"token"`
	UpdateTimeout int    `mapstructure:"update_timeout"`
}

type DatabaseConfig struct {
	URL            string `mapstructure:"url"`
	MigrationsFile string `mapstructure:"migrations_file"`
	MaxOpenConns   int    `mapstructure:"max_open_conns"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Backend string        `mapstructure:"backend"` // redis or memory
	TTL     time.Duration `mapstructure:"ttl"`     // <= 0 disables expiry
	Redis   RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type SessionConfig struct {
	// TTL for an abandoned "awaiting search term" session. 0 keeps the
	// session until it is consumed, cancelled or overwritten.
	TTL time.Duration `mapstructure:"ttl"`
}

type StatsConfig struct {
	TopLimit    int `mapstructure:"top_limit"`
	SearchLimit int `mapstructure:"search_limit"`
	ListLimit   int `mapstructure:"list_limit"`
}

type AIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	// How many of the user's latest messages feed the style analysis.
	AnalyzeMessages int `mapstructure:"analyze_messages"`
}

type APIConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
}

type LoggingConfig struct {
	Level  string     `mapstructure:"level"`
	Format string     `mapstructure:"format"`
	Output string     `mapstructure:"output"`
	File   FileConfig `mapstructure:"file"`
}

type FileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

type MonitoringConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

type I18nConfig struct {
	DefaultLanguage string   `mapstructure:"default_language"`
	Languages       []string `mapstructure:"languages"`
	Directory       string   `mapstructure:"directory"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Environment variable overrides
	viper.BindEnv("bot.token", "BOT_TOKEN", "TELEGRAM_BOT_TOKEN")
	viper.BindEnv("database.url", "DATABASE_URL")
	viper.BindEnv("cache.redis.addr", "REDIS_ADDR")
	viper.BindEnv("cache.redis.password", "REDIS_PASSWORD")
	viper.BindEnv("cache.redis.db", "REDIS_DB")
	viper.BindEnv("cache.ttl", "REDIS_CACHE_TIME")
	viper.BindEnv("ai.api_key", "AI_API_KEY")
	viper.BindEnv("ai.base_url", "AI_BASE_URL")
	viper.BindEnv("api.port", "SERVER_PORT")

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// REDIS_HOST/REDIS_PORT pair takes precedence over a bare addr
	if redisHost := viper.GetString("REDIS_HOST"); redisHost != "" {
		redisPort := viper.GetString("REDIS_PORT")
		if redisPort == "" {
			redisPort = "6379"
		}
		config.Cache.Redis.Addr = fmt.Sprintf("%s:%s", redisHost, redisPort)
	}

	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Bot.UpdateTimeout == 0 {
		cfg.Bot.UpdateTimeout = 60
	}
	if cfg.Database.MigrationsFile == "" {
		cfg.Database.MigrationsFile = "migrations/init.sql"
	}
	if cfg.Stats.TopLimit == 0 {
		cfg.Stats.TopLimit = 10
	}
	if cfg.Stats.SearchLimit == 0 {
		cfg.Stats.SearchLimit = 10
	}
	if cfg.Stats.ListLimit == 0 {
		cfg.Stats.ListLimit = 20
	}
	if cfg.AI.AnalyzeMessages == 0 {
		cfg.AI.AnalyzeMessages = 50
	}
	if cfg.I18n.DefaultLanguage == "" {
		cfg.I18n.DefaultLanguage = "ru"
	}
	if len(cfg.I18n.Languages) == 0 {
		cfg.I18n.Languages = []string{"ru", "en"}
	}
	if cfg.I18n.Directory == "" {
		cfg.I18n.Directory = "configs/i18n"
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Bot.Token == "" {
		return fmt.Errorf("bot token is required")
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("database url is required")
	}
	if cfg.Cache.Enabled && cfg.Cache.Backend != "redis" && cfg.Cache.Backend != "memory" {
		return fmt.Errorf("unsupported cache backend: %s", cfg.Cache.Backend)
	}
	if cfg.AI.Enabled && cfg.AI.BaseURL == "" {
		return fmt.Errorf("ai base_url is required when ai is enabled")
	}
	return nil
}
