package config

import (
	"fmt"
	"os"

	"github.com/garyjia/fleetbot/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config,
// reading the message override file if one is configured.
func (c *Config) ToContainerConfig() (*container.Config, error) {
	var messages []byte
	if c.Bot.MessagesPath != "" {
		data, err := os.ReadFile(c.Bot.MessagesPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read messages file: %w", err)
		}
		messages = data
	}

	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		Lark: container.LarkConfig{
			AppID:     c.Lark.AppID,
			AppSecret: c.Lark.AppSecret,
			BaseURL:   c.Lark.BaseURL,
		},
		Bot: container.BotConfig{
			AdminUserIDs:  c.Bot.AdminUserIDs,
			CancelTokens:  c.Bot.CancelTokens,
			Lanes:         c.Bot.Lanes,
			LaneCapacity:  c.Bot.LaneCapacity,
			ReorderWindow: c.Bot.ReorderWindow,
			Messages:      messages,
		},
		Session: container.SessionConfig{
			Backend:       c.Session.Backend,
			IdleTimeout:   c.Session.IdleTimeout,
			SweepInterval: c.Session.SweepInterval,
			RedisAddr:     c.Session.Redis.Addr,
			RedisPassword: c.Session.Redis.Password,
			RedisDB:       c.Session.Redis.DB,
			RedisPrefix:   c.Session.Redis.Prefix,
			DiskvPath:     c.Session.Diskv.Path,
		},
		Server: container.ServerConfig{
			Host:         c.Server.Host,
			Port:         c.Server.Port,
			ReadTimeout:  c.Server.ReadTimeout,
			WriteTimeout: c.Server.WriteTimeout,
		},
		Worker: container.WorkerConfig{
			ReminderEnabled:      c.Reminder.Enabled,
			ReminderPollInterval: c.Reminder.PollInterval,
			ReminderOverdueAfter: c.Reminder.OverdueAfter,
		},
	}, nil
}
