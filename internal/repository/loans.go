package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmehdipour/credit-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

// LoansRepository reads and writes the loans table.
type LoansRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Loan, error)
	ListByCustomer(ctx context.Context, tx *sqlx.Tx, customerID int64) ([]model.Loan, error)
	ListActiveByCustomer(ctx context.Context, customerID int64, asOf time.Time) ([]model.Loan, error)
	Insert(ctx context.Context, tx *sqlx.Tx, l model.Loan) (int64, error)
	Upsert(ctx context.Context, tx *sqlx.Tx, l model.Loan) (created bool, err error)
}

type LoansRepositoryImpl struct {
	db *sqlx.DB
}

func NewLoansRepository(db *sqlx.DB) *LoansRepositoryImpl {
	return &LoansRepositoryImpl{db: db}
}

var _ LoansRepository = (*LoansRepositoryImpl)(nil)

const loanColumns = `id, customer_id, loan_amount, tenure, interest_rate, monthly_repayment,
	emis_paid_on_time, start_date, end_date, created_at, updated_at`

func (r *LoansRepositoryImpl) GetByID(ctx context.Context, id int64) (*model.Loan, error) {
	var l model.Loan
	err := r.db.GetContext(ctx, &l, `SELECT `+loanColumns+` FROM loans WHERE id = ? LIMIT 1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// ListByCustomer returns the full loan history of a customer, oldest first.
func (r *LoansRepositoryImpl) ListByCustomer(ctx context.Context, tx *sqlx.Tx, customerID int64) ([]model.Loan, error) {
	var rows []model.Loan
	err := sqlx.SelectContext(ctx, on(r.db, tx), &rows,
		`SELECT `+loanColumns+` FROM loans WHERE customer_id = ? ORDER BY start_date, id`, customerID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListActiveByCustomer returns loans whose end date is not before asOf's day.
func (r *LoansRepositoryImpl) ListActiveByCustomer(ctx context.Context, customerID int64, asOf time.Time) ([]model.Loan, error) {
	var rows []model.Loan
	err := r.db.SelectContext(ctx, &rows,
		`SELECT `+loanColumns+` FROM loans WHERE customer_id = ? AND end_date >= ? ORDER BY start_date, id`,
		customerID, asOf.Format(time.DateOnly))
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *LoansRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, l model.Loan) (int64, error) {
	const q = `
		INSERT INTO loans
		    (customer_id, loan_amount, tenure, interest_rate, monthly_repayment, emis_paid_on_time, start_date, end_date, created_at, updated_at)
		VALUES
		    (?,           ?,           ?,      ?,             ?,                 ?,                 ?,          ?,        NOW(),      NOW())
	`
	res, err := on(r.db, tx).ExecContext(ctx, q,
		l.CustomerID, l.LoanAmount, l.Tenure, l.InterestRate, l.MonthlyRepayment, l.EMIsPaidOnTime,
		l.StartDate.Format(time.DateOnly), l.EndDate.Format(time.DateOnly),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Upsert writes a loan with an explicit id (ingestion).
func (r *LoansRepositoryImpl) Upsert(ctx context.Context, tx *sqlx.Tx, l model.Loan) (bool, error) {
	const q = `
		INSERT INTO loans
		    (id, customer_id, loan_amount, tenure, interest_rate, monthly_repayment, emis_paid_on_time, start_date, end_date, created_at, updated_at)
		VALUES
		    (?,  ?,           ?,           ?,      ?,             ?,                 ?,                 ?,          ?,        NOW(),      NOW())
		ON DUPLICATE KEY UPDATE
		    customer_id       = VALUES(customer_id),
		    loan_amount       = VALUES(loan_amount),
		    tenure            = VALUES(tenure),
		    interest_rate     = VALUES(interest_rate),
		    monthly_repayment = VALUES(monthly_repayment),
		    emis_paid_on_time = VALUES(emis_paid_on_time),
		    start_date        = VALUES(start_date),
		    end_date          = VALUES(end_date),
		    updated_at        = VALUES(updated_at)
	`
	var created bool
	err := withTx(ctx, r.db, tx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, q,
			l.ID, l.CustomerID, l.LoanAmount, l.Tenure, l.InterestRate, l.MonthlyRepayment, l.EMIsPaidOnTime,
			l.StartDate.Format(time.DateOnly), l.EndDate.Format(time.DateOnly),
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		created = n == 1
		return err
	})
	return created, err
}
