package ingest

import (
	"context"
	"fmt"

	"github.com/jmehdipour/credit-gateway/internal/logger"
	"github.com/jmehdipour/credit-gateway/internal/model"
	"github.com/jmehdipour/credit-gateway/internal/repository"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Stats counts what an import did.
type Stats struct {
	Created int
	Updated int
	Skipped int
}

func (s Stats) String() string {
	return fmt.Sprintf("created=%d updated=%d skipped=%d", s.Created, s.Updated, s.Skipped)
}

// Importer upserts parsed rows, one transaction per file.
type Importer struct {
	db        *sqlx.DB
	customers repository.CustomersRepository
	loans     repository.LoansRepository
}

func NewImporter(db *sqlx.DB, customers repository.CustomersRepository, loans repository.LoansRepository) *Importer {
	return &Importer{db: db, customers: customers, loans: loans}
}

// ImportCustomers upserts customers by id. Current debt is left to the
// recomputation that follows a loan import.
func (im *Importer) ImportCustomers(ctx context.Context, rows []model.Customer) (Stats, error) {
	var st Stats

	tx, err := im.db.BeginTxx(ctx, nil)
	if err != nil {
		return st, err
	}
	defer func() { _ = tx.Rollback() }()

	for _, c := range rows {
		created, err := im.customers.Upsert(ctx, tx, c)
		if err != nil {
			return Stats{}, fmt.Errorf("upsert customer %d: %w", c.ID, err)
		}
		if created {
			st.Created++
		} else {
			st.Updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, err
	}
	return st, nil
}

// ImportLoans upserts loans by id, skipping loans whose customer is unknown.
func (im *Importer) ImportLoans(ctx context.Context, rows []model.Loan) (Stats, error) {
	var st Stats

	tx, err := im.db.BeginTxx(ctx, nil)
	if err != nil {
		return st, err
	}
	defer func() { _ = tx.Rollback() }()

	known := make(map[int64]bool)
	for _, l := range rows {
		ok, seen := known[l.CustomerID]
		if !seen {
			c, err := im.customers.GetByID(ctx, tx, l.CustomerID)
			if err != nil {
				return Stats{}, fmt.Errorf("get customer %d: %w", l.CustomerID, err)
			}
			ok = c != nil
			known[l.CustomerID] = ok
		}
		if !ok {
			logger.Log.Warn("loan references unknown customer",
				zap.Int64("loan_id", l.ID), zap.Int64("customer_id", l.CustomerID))
			st.Skipped++
			continue
		}

		created, err := im.loans.Upsert(ctx, tx, l)
		if err != nil {
			return Stats{}, fmt.Errorf("upsert loan %d: %w", l.ID, err)
		}
		if created {
			st.Created++
		} else {
			st.Updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, err
	}
	return st, nil
}
