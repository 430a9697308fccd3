package cmd

import (
	"context"
	"fmt"

	"github.com/jmehdipour/credit-gateway/internal/db"
	"github.com/jmehdipour/credit-gateway/internal/logger"
	"github.com/jmehdipour/credit-gateway/migrations"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateSkipClickHouse bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations (dev: DROP & CREATE tables)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		sqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOptsFrom(cfg.MySQL))
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer sqlDB.Close()

		// session variables need one connection
		conn, err := sqlDB.Connx(ctx)
		if err != nil {
			return fmt.Errorf("mysql conn: %w", err)
		}
		defer conn.Close()

		if _, err := conn.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS = 0"); err != nil {
			return fmt.Errorf("disable fk checks: %w", err)
		}
		err = apply(ctx, conn, "mysql")
		if _, fkErr := conn.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS = 1"); fkErr != nil && err == nil {
			err = fmt.Errorf("enable fk checks: %w", fkErr)
		}
		if err != nil {
			return err
		}

		if !migrateSkipClickHouse {
			chDB, err := db.NewClickHouseConnection(db.ClickHouseOptsFrom(cfg.ClickHouse))
			if err != nil {
				return fmt.Errorf("clickhouse connect: %w", err)
			}
			defer func() { _ = chDB.Close() }()

			if err := apply(ctx, chDB, "clickhouse"); err != nil {
				return err
			}
		}

		logger.Log.Info("migration complete")
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateSkipClickHouse, "skip-clickhouse", false, "only migrate MySQL")
}

func apply(ctx context.Context, conn sqlx.ExecerContext, dir string) error {
	scripts, err := migrations.Load(dir)
	if err != nil {
		return fmt.Errorf("load %s migrations: %w", dir, err)
	}
	for _, s := range scripts {
		for i, stmt := range s.Statements {
			if _, err := conn.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("exec %s statement %d: %w", s.Name, i+1, err)
			}
		}
		logger.Log.Info("migration applied", zap.String("file", s.Name), zap.Int("statements", len(s.Statements)))
	}
	return nil
}
