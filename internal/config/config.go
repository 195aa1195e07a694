package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App    AppConfig    `mapstructure:"app"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	DB     DBConfig     `mapstructure:"db"`
	Auth   AuthConfig   `mapstructure:"auth"`
	Cache  CacheConfig  `mapstructure:"cache"`
	Feed   FeedConfig   `mapstructure:"feed"`
	Board  BoardConfig  `mapstructure:"board"`
	Move   MoveConfig   `mapstructure:"move"`
	Cron   CronConfig   `mapstructure:"cron"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type AuthConfig struct {
	Disabled bool   `mapstructure:"disabled"`
	Secret   string `mapstructure:"secret"`
}

type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type FeedConfig struct {
	SubscriberBuffer int           `mapstructure:"subscriber_buffer"`
	ReplayLimit      int           `mapstructure:"replay_limit"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	Retention        time.Duration `mapstructure:"retention"`
}

type BoardConfig struct {
	RottenAfter     time.Duration `mapstructure:"rotten_after"`
	DefaultCurrency string        `mapstructure:"default_currency"`
	DefaultPipeline string        `mapstructure:"default_pipeline"`
}

type MoveConfig struct {
	MaxRetries int `mapstructure:"max_retries"`
}

type CronConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	FeedRetention string `mapstructure:"feed_retention"`
	RottenScan    string `mapstructure:"rotten_scan"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("auth.disabled", false)
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", "30s")
	v.SetDefault("feed.subscriber_buffer", 64)
	v.SetDefault("feed.replay_limit", 500)
	v.SetDefault("feed.write_timeout", "10s")
	v.SetDefault("feed.retention", "720h")
	v.SetDefault("board.rotten_after", "720h")
	v.SetDefault("board.default_currency", "EUR")
	v.SetDefault("board.default_pipeline", "Sales")
	v.SetDefault("move.max_retries", 3)
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.feed_retention", "@every 1h")
	v.SetDefault("cron.rotten_scan", "@every 10m")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
