package main

import (
	"github.com/spf13/cobra"

	"github.com/ncecere/tenant_console/internal/services/audit"
	"github.com/ncecere/tenant_console/internal/store"
)

func newAuditCmd() *cobra.Command {
	var limit int32
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List the most recent admin audit entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client, err := store.NewServiceRoleClient(cfg.Store)
			if err != nil {
				return err
			}
			defer client.Close()

			if limit <= 0 || limit > audit.MaxEntries {
				limit = audit.MaxEntries
			}
			rows, err := client.ListAuditEntries(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printValue(cmd.OutOrStdout(), audit.NewPage(rows, int(limit)))
		},
	}
	cmd.Flags().Int32Var(&limit, "limit", audit.MaxEntries, "Maximum entries to print")
	return cmd
}
