// Package container provides dependency injection and lifecycle management
// for the fleet bot.
package container

import (
	"fmt"
	"time"
)

// Config holds all configuration for the Container.
type Config struct {
	Database DatabaseConfig
	Lark     LarkConfig
	Bot      BotConfig
	Session  SessionConfig
	Server   ServerConfig
	Worker   WorkerConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// LarkConfig holds Lark API settings.
type LarkConfig struct {
	AppID     string
	AppSecret string

	// BaseURL overrides the open platform domain
	BaseURL string
}

// BotConfig holds chat behaviour settings.
type BotConfig struct {
	// AdminUserIDs are the chat users with the admin role
	AdminUserIDs []string

	CancelTokens  []string
	Lanes         int
	LaneCapacity  int
	ReorderWindow time.Duration

	// Messages is a YAML catalog layered over the built-in texts
	Messages []byte
}

// SessionConfig selects the session store backend.
type SessionConfig struct {
	// Backend is memory, redis or diskv
	Backend string

	IdleTimeout   time.Duration
	SweepInterval time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	DiskvPath string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// WorkerConfig holds background worker settings.
type WorkerConfig struct {
	ReminderEnabled      bool
	ReminderPollInterval time.Duration
	ReminderOverdueAfter time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/fleetbot.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Bot: BotConfig{
			CancelTokens:  []string{"/cancel", "cancel", "🚫 Cancel"},
			Lanes:         16,
			LaneCapacity:  64,
			ReorderWindow: 300 * time.Millisecond,
		},
		Session: SessionConfig{
			Backend:       "memory",
			IdleTimeout:   24 * time.Hour,
			SweepInterval: 10 * time.Minute,
			RedisPrefix:   "fleetbot",
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Worker: WorkerConfig{
			ReminderEnabled:      true,
			ReminderPollInterval: 5 * time.Minute,
			ReminderOverdueAfter: 12 * time.Hour,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Bot.Lanes <= 0 || c.Bot.LaneCapacity <= 0 {
		return fmt.Errorf("bot lanes must be positive")
	}

	switch c.Session.Backend {
	case "memory":
	case "redis":
		if c.Session.RedisAddr == "" {
			return fmt.Errorf("session redis address is required")
		}
	case "diskv":
		if c.Session.DiskvPath == "" {
			return fmt.Errorf("session diskv path is required")
		}
	default:
		return fmt.Errorf("unknown session backend %q", c.Session.Backend)
	}
	return nil
}
