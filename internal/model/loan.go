package model

import (
	"time"

	"github.com/jmehdipour/credit-gateway/internal/engine"
	"github.com/shopspring/decimal"
)

// Loan is the DB entity persisted in the loans table.
type Loan struct {
	ID               int64           `db:"id"`
	CustomerID       int64           `db:"customer_id"`
	LoanAmount       decimal.Decimal `db:"loan_amount"`
	Tenure           int             `db:"tenure"`
	InterestRate     decimal.Decimal `db:"interest_rate"`
	MonthlyRepayment decimal.Decimal `db:"monthly_repayment"`
	EMIsPaidOnTime   int             `db:"emis_paid_on_time"`
	StartDate        time.Time       `db:"start_date"`
	EndDate          time.Time       `db:"end_date"`
	CreatedAt        time.Time       `db:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at"`
}

// RepaymentsLeft is the number of EMIs not yet paid on time.
func (l Loan) RepaymentsLeft() int {
	if left := l.Tenure - l.EMIsPaidOnTime; left > 0 {
		return left
	}
	return 0
}

func (l Loan) Active(asOf time.Time) bool { return l.Record().Active(asOf) }

// OutstandingDebt is the principal not yet covered by on-time repayments,
// floored at zero.
func (l Loan) OutstandingDebt() decimal.Decimal {
	paid := l.MonthlyRepayment.Mul(decimal.NewFromInt(int64(l.EMIsPaidOnTime)))
	return decimal.Max(l.LoanAmount.Sub(paid), decimal.Zero)
}

func (l Loan) Record() engine.LoanRecord {
	return engine.LoanRecord{
		ID:                 l.ID,
		CustomerID:         l.CustomerID,
		Principal:          l.LoanAmount,
		AnnualRate:         l.InterestRate,
		TenureMonths:       l.Tenure,
		MonthlyInstallment: l.MonthlyRepayment,
		EMIsPaidOnTime:     l.EMIsPaidOnTime,
		StartDate:          l.StartDate,
		EndDate:            l.EndDate,
	}
}

// Records converts a loan history for the engine.
func Records(loans []Loan) []engine.LoanRecord {
	out := make([]engine.LoanRecord, 0, len(loans))
	for _, l := range loans {
		out = append(out, l.Record())
	}
	return out
}
