package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ncecere/tenant_console/internal/redisclient"
	"github.com/ncecere/tenant_console/internal/services/usage"
)

func newUsageCmd() *cobra.Command {
	var (
		userID string
		period string
	)
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show a user's metered usage for a period",
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, err := uuid.Parse(userID)
			if err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client, err := redisclient.New(cfg.Redis)
			if err != nil {
				return err
			}
			defer client.Close()
			if err := redisclient.Ping(cmd.Context(), client, cfg.Redis.PingTimeout); err != nil {
				return err
			}

			meter := usage.NewMeter(client, cfg.Usage, cfg.Reporting.Location(), nil)
			summary, err := meter.Summarize(cmd.Context(), subject, period)
			if err != nil {
				return err
			}
			return printValue(cmd.OutOrStdout(), summary)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User id")
	cmd.Flags().StringVar(&period, "period", "", "Period key YYYY-MM-01 (default: current)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
