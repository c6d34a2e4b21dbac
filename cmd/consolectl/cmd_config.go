package main

import (
	"github.com/spf13/cobra"

	"github.com/ncecere/tenant_console/internal/config"
)

const redacted = "[redacted]"

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration with secrets redacted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return printValue(cmd.OutOrStdout(), redactConfig(*cfg))
		},
	}
}

func redactConfig(cfg config.Config) config.Config {
	mask := func(s *string) {
		if *s != "" {
			*s = redacted
		}
	}
	mask(&cfg.Store.ServiceRoleKey)
	mask(&cfg.Store.AnonKey)
	mask(&cfg.Redis.URL)
	mask(&cfg.Redis.Password)
	mask(&cfg.Session.JWTSecret)
	mask(&cfg.Auth.OIDC.ClientSecret)
	mask(&cfg.AI.OpenAI.APIKey)
	mask(&cfg.AI.Anthropic.APIKey)
	mask(&cfg.AI.Bedrock.AccessKeyID)
	mask(&cfg.AI.Bedrock.SecretAccessKey)
	mask(&cfg.AI.Bedrock.SessionToken)
	return cfg
}
