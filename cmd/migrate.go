package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/whatsdex/gateway/internal/config"
	"github.com/whatsdex/gateway/internal/store/pg"
)

// resolveDSN loads config so env overlays apply. The DSN itself comes
// from WHATSDEX_POSTGRES_DSN only, never from the config file.
func resolveDSN() (string, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return "", fmt.Errorf("load config: %w", err)
	}
	if cfg.Database.PostgresDSN == "" {
		return "", fmt.Errorf("WHATSDEX_POSTGRES_DSN environment variable is not set")
	}
	return cfg.Database.PostgresDSN, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations (managed mode)",
		RunE: func(cmd *cobra.Command, args []string) error {
			dsn, err := resolveDSN()
			if err != nil {
				return err
			}
			db, err := pg.OpenDB(dsn)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := pg.Migrate(db); err != nil {
				return err
			}
			slog.Info("migration complete")
			return nil
		},
	}
}
