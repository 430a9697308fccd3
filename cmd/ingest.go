package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jmehdipour/credit-gateway/internal/config"
	"github.com/jmehdipour/credit-gateway/internal/db"
	"github.com/jmehdipour/credit-gateway/internal/engine"
	"github.com/jmehdipour/credit-gateway/internal/ingest"
	"github.com/jmehdipour/credit-gateway/internal/logger"
	"github.com/jmehdipour/credit-gateway/internal/repository"
	"github.com/jmehdipour/credit-gateway/internal/service/lending"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	ingestCustomersPath string
	ingestLoansPath     string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load customer and loan spreadsheets, then recompute current debt",
	RunE: func(cmd *cobra.Command, args []string) error {
		if ingestCustomersPath == "" && ingestLoansPath == "" {
			return errors.New("nothing to ingest: pass --customers and/or --loans")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		sqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOptsFrom(cfg.MySQL))
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		im := ingest.NewImporter(sqlDB, repository.NewCustomersRepository(sqlDB), repository.NewLoansRepository(sqlDB))

		// customers first: loans need their customer rows
		if ingestCustomersPath != "" {
			if err := ingestCustomers(ctx, im, ingestCustomersPath); err != nil {
				return err
			}
		}
		if ingestLoansPath != "" {
			if err := ingestLoans(ctx, im, ingestLoansPath); err != nil {
				return err
			}
		}

		svc, err := newLendingService(cfg, sqlDB)
		if err != nil {
			return err
		}
		n, err := svc.RecomputeCurrentDebt(ctx)
		if err != nil {
			return fmt.Errorf("recompute debt: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "current debt recomputed for %d customers\n", n)
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestCustomersPath, "customers", "", "path to customer_data.xlsx")
	ingestCmd.Flags().StringVar(&ingestLoansPath, "loans", "", "path to loan_data.xlsx")
}

func ingestCustomers(ctx context.Context, im *ingest.Importer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	rows, skipped, err := ingest.ReadCustomers(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	st, err := im.ImportCustomers(ctx, rows)
	if err != nil {
		return err
	}
	st.Skipped += skipped

	logger.Log.Info("customers ingested", zap.String("file", path), zap.Stringer("stats", st))
	return nil
}

func ingestLoans(ctx context.Context, im *ingest.Importer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	rows, skipped, err := ingest.ReadLoans(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	st, err := im.ImportLoans(ctx, rows)
	if err != nil {
		return err
	}
	st.Skipped += skipped

	logger.Log.Info("loans ingested", zap.String("file", path), zap.Stringer("stats", st))
	return nil
}

// newLendingService wires the MySQL repositories and the configured policy.
func newLendingService(cfg config.Config, sqlDB *sqlx.DB) (*lending.Service, error) {
	policy, err := cfg.Lending.Policy()
	if err != nil {
		return nil, fmt.Errorf("lending policy: %w", err)
	}
	eng, err := engine.New(policy)
	if err != nil {
		return nil, err
	}
	return lending.New(
		sqlDB,
		repository.NewCustomersRepository(sqlDB),
		repository.NewLoansRepository(sqlDB),
		repository.NewOutboxRepository(sqlDB),
		eng,
	).WithTopic(cfg.Kafka.DecisionsTopic), nil
}
