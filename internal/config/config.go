package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Session store backends
const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
	SessionBackendDiskv  = "diskv"
)

// EnvPrefix prefixes automatic environment overrides, e.g. FLEETBOT_SERVER_PORT
const EnvPrefix = "FLEETBOT"

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Lark     LarkConfig     `mapstructure:"lark"`
	Bot      BotConfig      `mapstructure:"bot"`
	Session  SessionConfig  `mapstructure:"session"`
	Reminder ReminderConfig `mapstructure:"reminder"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// LarkConfig holds Lark API configuration
type LarkConfig struct {
	AppID     string `mapstructure:"app_id"`
	AppSecret string `mapstructure:"app_secret"`
	BaseURL   string `mapstructure:"base_url"`
}

// BotConfig holds chat behaviour settings
type BotConfig struct {
	AdminUserIDs []string `mapstructure:"admin_user_ids"`
	CancelTokens []string `mapstructure:"cancel_tokens"`

	// Lanes is the number of per-user ordering lanes, LaneCapacity their queue depth
	Lanes        int `mapstructure:"lanes"`
	LaneCapacity int `mapstructure:"lane_capacity"`

	// ReorderWindow holds each message so a user's earlier message delivered
	// late is still handled first
	ReorderWindow time.Duration `mapstructure:"reorder_window"`

	// MessagesPath optionally points to a YAML file overriding message texts
	MessagesPath string `mapstructure:"messages_path"`
}

// SessionConfig selects and configures the session store
type SessionConfig struct {
	Backend string `mapstructure:"backend"`

	// IdleTimeout evicts untouched sessions; zero keeps them forever
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`

	Redis RedisConfig `mapstructure:"redis"`
	Diskv DiskvConfig `mapstructure:"diskv"`
}

// RedisConfig holds redis connection settings
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// DiskvConfig holds the on-disk session store settings
type DiskvConfig struct {
	Path string `mapstructure:"path"`
}

// ReminderConfig holds the overdue shift reminder settings
type ReminderConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	OverdueAfter time.Duration `mapstructure:"overdue_after"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// LoadEnvFiles loads KEY=VALUE files into the process environment.
// Variables already set are kept and missing files are skipped.
func LoadEnvFiles(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := gotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", p, err)
		}
	}
	return nil
}

// Load loads configuration from v, the optional file at configPath and
// environment variables
func Load(v *viper.Viper, configPath string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := bindEnvVars(v); err != nil {
		return nil, fmt.Errorf("failed to bind env vars: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Bot.AdminUserIDs = splitList(cfg.Bot.AdminUserIDs)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	v.SetDefault("database.path", "data/fleetbot.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("bot.admin_user_ids", []string{})
	v.SetDefault("bot.cancel_tokens", []string{"/cancel", "cancel", "🚫 Cancel"})
	v.SetDefault("bot.lanes", 16)
	v.SetDefault("bot.lane_capacity", 64)
	v.SetDefault("bot.reorder_window", 300*time.Millisecond)

	v.SetDefault("session.backend", SessionBackendMemory)
	v.SetDefault("session.idle_timeout", 24*time.Hour)
	v.SetDefault("session.sweep_interval", 10*time.Minute)
	v.SetDefault("session.redis.addr", "localhost:6379")
	v.SetDefault("session.redis.prefix", "fleetbot")
	v.SetDefault("session.diskv.path", "data/sessions")

	v.SetDefault("reminder.enabled", true)
	v.SetDefault("reminder.poll_interval", 5*time.Minute)
	v.SetDefault("reminder.overdue_after", 12*time.Hour)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds the conventional unprefixed variables
func bindEnvVars(v *viper.Viper) error {
	binds := map[string]string{
		"lark.app_id":            "LARK_APP_ID",
		"lark.app_secret":        "LARK_APP_SECRET",
		"bot.admin_user_ids":     "ADMIN_USER_IDS",
		"session.redis.addr":     "REDIS_ADDR",
		"session.redis.password": "REDIS_PASSWORD",
	}
	for key, env := range binds {
		if err := v.BindEnv(key, env); err != nil {
			return err
		}
	}
	return nil
}

// splitList flattens comma separated entries and drops blanks
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Bot.Lanes <= 0 || c.Bot.LaneCapacity <= 0 {
		return fmt.Errorf("bot.lanes and bot.lane_capacity must be positive")
	}
	if c.Bot.ReorderWindow < 0 {
		return fmt.Errorf("bot.reorder_window must not be negative")
	}
	if len(c.Bot.CancelTokens) == 0 {
		return fmt.Errorf("bot.cancel_tokens must not be empty")
	}

	switch c.Session.Backend {
	case SessionBackendMemory:
	case SessionBackendRedis:
		if c.Session.Redis.Addr == "" {
			return fmt.Errorf("session.redis.addr is required for the redis backend")
		}
	case SessionBackendDiskv:
		if c.Session.Diskv.Path == "" {
			return fmt.Errorf("session.diskv.path is required for the diskv backend")
		}
	default:
		return fmt.Errorf("unknown session.backend %q", c.Session.Backend)
	}
	if c.Session.IdleTimeout < 0 {
		return fmt.Errorf("session.idle_timeout must not be negative")
	}

	if c.Reminder.Enabled && (c.Reminder.PollInterval <= 0 || c.Reminder.OverdueAfter <= 0) {
		return fmt.Errorf("reminder.poll_interval and reminder.overdue_after must be positive")
	}
	return nil
}

// RequireLark checks the credentials needed to connect to Lark
func (c *Config) RequireLark() error {
	if c.Lark.AppID == "" {
		return fmt.Errorf("lark.app_id is required")
	}
	if c.Lark.AppSecret == "" {
		return fmt.Errorf("lark.app_secret is required")
	}
	return nil
}
