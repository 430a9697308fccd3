package model

import (
	"time"

	"github.com/jmehdipour/credit-gateway/internal/engine"
	"github.com/shopspring/decimal"
)

type Customer struct {
	ID            int64           `db:"id"`
	FirstName     string          `db:"first_name"`
	LastName      string          `db:"last_name"`
	Age           int             `db:"age"`
	PhoneNumber   int64           `db:"phone_number"`
	MonthlySalary decimal.Decimal `db:"monthly_salary"`
	ApprovedLimit decimal.Decimal `db:"approved_limit"`
	CurrentDebt   decimal.Decimal `db:"current_debt"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

func (c Customer) Name() string { return c.FirstName + " " + c.LastName }

// Snapshot converts the row into the engine's read-only view. Active totals
// are left zero; the engine derives them from the loan history.
func (c Customer) Snapshot() engine.Customer {
	return engine.Customer{
		ID:            c.ID,
		MonthlyIncome: c.MonthlySalary,
		ApprovedLimit: c.ApprovedLimit,
		Age:           c.Age,
	}
}
