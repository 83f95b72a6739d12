package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ankisyncd/ankisyncd-go/internal/config"
	"github.com/ankisyncd/ankisyncd-go/internal/logger"
	"github.com/ankisyncd/ankisyncd-go/internal/migrations"
	"github.com/ankisyncd/ankisyncd-go/internal/sessionstore"
	"github.com/ankisyncd/ankisyncd-go/internal/usermanager"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database schema migrations",
	Long: `Apply pending database schema migrations.

For a postgres-backed session_manager, this runs the embedded SQL
migrations. For sqlite, opening the store already brings the
schema up to date, so this command just does that and reports success.

Examples:
  ankisyncd migrate
  ankisyncd migrate --config /etc/ankisyncd/config.yaml`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	if cfg.SessionManager == "postgres" || cfg.UserManager == "postgres" {
		dsn := postgresDSN(cfg)
		version, changed, err := migrations.RunPostgres(dsn)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		if changed {
			logger.Infof("applied migrations, schema now at version %d", version)
		} else {
			logger.Infof("schema already up to date at version %d", version)
		}
		fmt.Printf("Migrations complete (schema version %d)\n", version)
		return nil
	}

	if cfg.UserManager == "sqlite" {
		if _, err := usermanager.New(cfg.UserManager, cfg.Database.SQLitePath); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	if cfg.SessionManager == "sqlite" {
		if _, err := sessionstore.New(cfg.SessionManager, cfg.Database.SQLitePath); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	fmt.Println("Migrations complete (sqlite schema is current)")
	return nil
}

func postgresDSN(cfg *config.Config) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host, cfg.Database.Port, cfg.Database.User,
		cfg.Database.Password, cfg.Database.Name, cfg.Database.SSLMode)
}
