package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/garyjia/fleetbot/internal/config"
	"github.com/garyjia/fleetbot/pkg/utils"
)

const version = "1.0.0"

var (
	v = viper.New()

	rootCmd = &cobra.Command{
		Use:           "fleetbot",
		Short:         "Fleet operations chat bot",
		Long:          "fleetbot runs the driver and dispatcher chat bot on Lark together with its admin HTTP API.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runServe,
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "configs/config.yaml", "path to the YAML configuration file")
	flags.StringSlice("env-file", []string{".env"}, "KEY=VALUE files loaded before the configuration")
	flags.Bool("debug", false, "log at debug level in console format")

	_ = v.BindPFlag("cli.config", flags.Lookup("config"))
	_ = v.BindPFlag("cli.env_files", flags.Lookup("env-file"))
	_ = v.BindPFlag("cli.debug", flags.Lookup("debug"))

	rootCmd.AddCommand(serveCmd, migrateCmd, flowsCmd)
}

// loadConfig reads env files and configuration named by the persistent flags
func loadConfig() (*config.Config, error) {
	if err := config.LoadEnvFiles(v.GetStringSlice("cli.env_files")...); err != nil {
		return nil, err
	}

	path := v.GetString("cli.config")
	if _, err := os.Stat(path); err != nil {
		path = ""
	}

	cfg, err := config.Load(v, path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if v.GetBool("cli.debug") {
		return utils.NewDevelopmentLogger()
	}
	return utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
