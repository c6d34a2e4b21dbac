package database

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/ncecere/tenant_console/internal/config"
)

// MigrationsFS returns the on-disk migrations directory when it can be
// located, falling back to the embedded copy.
func MigrationsFS(cfg config.DatabaseConfig, embedded fs.FS) (fs.FS, error) {
	if cfg.MigrationsDir != "" {
		if dir, err := resolveMigrationsDir(cfg.MigrationsDir); err == nil {
			return os.DirFS(dir), nil
		}
	}
	if embedded == nil {
		return nil, fmt.Errorf("could not locate migrations dir (%s)", cfg.MigrationsDir)
	}
	return embedded, nil
}

// RunMigrations applies pending goose migrations from fsys using connCfg.
func RunMigrations(ctx context.Context, connCfg *pgx.ConnConfig, fsys fs.FS, logger *zap.Logger) error {
	if connCfg == nil {
		return fmt.Errorf("migrations require a connection config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db := stdlib.OpenDB(*connCfg)
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database for migrations: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return fmt.Errorf("create goose provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	for _, r := range results {
		if r.Error != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", r.Source.Version, r.Source.Path, r.Error)
		}
		logger.Info("migration applied",
			zap.Int64("version", r.Source.Version),
			zap.String("file", r.Source.Path),
			zap.Duration("duration", r.Duration),
		)
	}
	if len(results) == 0 {
		logger.Debug("all migrations already applied")
	}
	return nil
}

func resolveMigrationsDir(dir string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("migrations dir not provided")
	}

	candidates := []string{dir}
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, dir))
	}
	if exe, err := os.Executable(); err == nil {
		base := filepath.Dir(exe)
		candidates = append(candidates, filepath.Join(base, dir))
	}

	for _, candidate := range candidates {
		absPath, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		info, err := os.Stat(absPath)
		if err == nil && info.IsDir() {
			return absPath, nil
		}
	}

	return "", fmt.Errorf("could not locate migrations dir (%s)", dir)
}
