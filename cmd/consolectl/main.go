package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ncecere/tenant_console/internal/config"
	"github.com/ncecere/tenant_console/internal/logging"
)

var (
	flagConfig  string
	flagEnvFile string
	flagFormat  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "consolectl",
		Short:        "Operator tooling for the tenant console",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (env: CONSOLE_CONFIG_FILE)")
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", "", "Dotenv file loaded before the config")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "yaml", "Output format: yaml|json")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newSeedAdminCmd())
	rootCmd.AddCommand(newAuditCmd())
	rootCmd.AddCommand(newUsageCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.Options{ConfigFile: flagConfig, EnvFile: flagEnvFile})
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *zap.Logger {
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func printValue(w io.Writer, value any) error {
	switch flagFormat {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(value)
	case "yaml", "":
		// Round-trip through JSON so json tags and raw JSON fields render
		// as plain YAML.
		raw, err := json.Marshal(value)
		if err != nil {
			return err
		}
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(generic)
	default:
		return fmt.Errorf("unknown format %q", flagFormat)
	}
}
