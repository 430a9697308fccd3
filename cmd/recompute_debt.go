package cmd

import (
	"fmt"

	"github.com/jmehdipour/credit-gateway/internal/db"
	"github.com/spf13/cobra"
)

var recomputeDebtCmd = &cobra.Command{
	Use:   "recompute-debt",
	Short: "Recompute every customer's current debt from their active loans",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		sqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOptsFrom(cfg.MySQL))
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		svc, err := newLendingService(cfg, sqlDB)
		if err != nil {
			return err
		}
		n, err := svc.RecomputeCurrentDebt(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "current debt recomputed for %d customers\n", n)
		return nil
	},
}
