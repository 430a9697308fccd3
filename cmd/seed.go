package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jmehdipour/credit-gateway/internal/db"
	"github.com/jmehdipour/credit-gateway/internal/engine"
	"github.com/jmehdipour/credit-gateway/internal/ingest"
	"github.com/jmehdipour/credit-gateway/internal/logger"
	"github.com/jmehdipour/credit-gateway/internal/model"
	"github.com/jmehdipour/credit-gateway/internal/repository"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo customers and loans",
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1) load config
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		// 2) connect MySQL
		sqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOptsFrom(cfg.MySQL))
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		logger.Log.Info("seeding demo customers and loans")

		if err := seed(cmd.Context(), sqlDB, time.Now().UTC()); err != nil {
			return err
		}

		svc, err := newLendingService(cfg, sqlDB)
		if err != nil {
			return err
		}
		if _, err := svc.RecomputeCurrentDebt(cmd.Context()); err != nil {
			return fmt.Errorf("recompute debt: %w", err)
		}

		logger.Log.Info("seed completed")
		return nil
	},
}

type demoCustomer struct {
	id     int64
	first  string
	last   string
	age    int
	phone  int64
	income int64
}

// seed upserts deterministic demo rows, so it can run repeatedly.
func seed(ctx context.Context, dbx *sqlx.DB, now time.Time) error {
	people := []demoCustomer{
		{1, "Aarav", "Sharma", 34, 9810000001, 50000},
		{2, "Diya", "Patel", 29, 9810000002, 60000},
		{3, "Kabir", "Iyer", 45, 9810000003, 40000},
		{4, "Meera", "Nair", 52, 9810000004, 120000},
		{5, "Rohan", "Gupta", 23, 9810000005, 25000},
	}

	customers := make([]model.Customer, 0, len(people))
	for _, p := range people {
		income := decimal.NewFromInt(p.income)
		customers = append(customers, model.Customer{
			ID:            p.id,
			FirstName:     p.first,
			LastName:      p.last,
			Age:           p.age,
			PhoneNumber:   p.phone,
			MonthlySalary: income,
			ApprovedLimit: engine.ApprovedLimit(income),
		})
	}

	monthsAgo := func(n int) time.Time {
		d := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		return engine.AddMonths(d, -n)
	}
	loan := func(id, customerID, amount int64, rate string, tenure, paid int, start time.Time) model.Loan {
		principal := decimal.NewFromInt(amount)
		r := decimal.RequireFromString(rate)
		emi, err := engine.MonthlyInstallment(principal, r, tenure)
		if err != nil {
			panic(err) // demo data is constant
		}
		return model.Loan{
			ID:               id,
			CustomerID:       customerID,
			LoanAmount:       principal,
			Tenure:           tenure,
			InterestRate:     r,
			MonthlyRepayment: emi,
			EMIsPaidOnTime:   paid,
			StartDate:        start,
			EndDate:          engine.AddMonths(start, tenure),
		}
	}

	loans := []model.Loan{
		loan(1001, 1, 200000, "11.5", 12, 12, monthsAgo(30)),
		loan(1002, 2, 300000, "12", 24, 6, monthsAgo(6)),
		loan(1003, 3, 100000, "14", 12, 8, monthsAgo(40)),
		loan(1004, 3, 150000, "14", 12, 10, monthsAgo(26)),
		loan(1005, 3, 90000, "15", 6, 5, monthsAgo(14)),
		loan(1006, 4, 3000000, "10", 36, 20, monthsAgo(30)),
		loan(1007, 4, 2000000, "10", 24, 12, monthsAgo(14)),
	}

	im := ingest.NewImporter(dbx, repository.NewCustomersRepository(dbx), repository.NewLoansRepository(dbx))

	st, err := im.ImportCustomers(ctx, customers)
	if err != nil {
		return fmt.Errorf("seed customers: %w", err)
	}
	logger.Log.Info("customers seeded", zap.Stringer("stats", st))

	st, err = im.ImportLoans(ctx, loans)
	if err != nil {
		return fmt.Errorf("seed loans: %w", err)
	}
	logger.Log.Info("loans seeded", zap.Stringer("stats", st))
	return nil
}
