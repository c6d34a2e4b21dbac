package main

import (
	"github.com/spf13/cobra"

	"github.com/ncecere/tenant_console/internal/database"
	"github.com/ncecere/tenant_console/internal/store"
	"github.com/ncecere/tenant_console/migrations"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations as the service role",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			connCfg, err := store.ServiceRoleConnConfig(cfg.Store)
			if err != nil {
				return err
			}
			fsys, err := database.MigrationsFS(cfg.Database, migrations.FS)
			if err != nil {
				return err
			}
			return database.RunMigrations(cmd.Context(), connCfg, fsys, newLogger(cfg))
		},
	}
}
