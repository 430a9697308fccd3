// Package engine turns a customer's loan history and a proposed loan into a
// credit score, an approval decision, a corrected interest rate and a monthly
// installment. Everything here is a pure function of its inputs: no I/O, no
// shared state.
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer is the read-only snapshot the engine evaluates against.
type Customer struct {
	ID            int64
	MonthlyIncome decimal.Decimal
	ApprovedLimit decimal.Decimal
	Age           int

	CurrentEMI      decimal.Decimal // sum of installments over active loans
	ActivePrincipal decimal.Decimal // sum of principals over active loans
}

// WithActiveTotals returns a copy of c whose CurrentEMI and ActivePrincipal
// are derived from the loans still active at asOf.
func (c Customer) WithActiveTotals(loans []LoanRecord, asOf time.Time) Customer {
	c.CurrentEMI, c.ActivePrincipal = ActiveTotals(loans, asOf)
	return c
}

// LoanRecord is one historical loan of a customer.
type LoanRecord struct {
	ID                 int64
	CustomerID         int64
	Principal          decimal.Decimal
	AnnualRate         decimal.Decimal
	TenureMonths       int
	MonthlyInstallment decimal.Decimal
	EMIsPaidOnTime     int
	StartDate          time.Time
	EndDate            time.Time
}

// Active reports whether the loan is still running on asOf's calendar day.
// A loan ending today is active. Dates compare by their calendar day in their
// own location, as stored DATE columns do.
func (l LoanRecord) Active(asOf time.Time) bool {
	return !dateOf(l.EndDate).Before(dateOf(asOf))
}

// ActiveTotals sums installments and principals of loans active at asOf.
func ActiveTotals(loans []LoanRecord, asOf time.Time) (emi, principal decimal.Decimal) {
	emi, principal = decimal.Zero, decimal.Zero
	for _, l := range loans {
		if !l.Active(asOf) {
			continue
		}
		emi = emi.Add(l.MonthlyInstallment)
		principal = principal.Add(l.Principal)
	}
	return emi, principal
}

// Application is a proposed new loan.
type Application struct {
	CustomerID   int64
	Principal    decimal.Decimal
	AnnualRate   decimal.Decimal // percent, e.g. 10.5
	TenureMonths int
}

// Result is the outcome of one evaluation. Rejections are results, not errors.
type Result struct {
	CustomerID         int64
	Approved           bool
	Score              int
	RequestedRate      decimal.Decimal
	CorrectedRate      decimal.Decimal
	TenureMonths       int
	MonthlyInstallment decimal.Decimal
	Reason             Reason
}

// Reason explains an evaluation outcome.
type Reason string

const (
	ReasonApproved                  Reason = "approved"
	ReasonEMIExceedsIncomeShare     Reason = "emi_exceeds_income_share"
	ReasonLimitExhausted            Reason = "approved_limit_exhausted"
	ReasonScoreTooLow               Reason = "credit_score_too_low"
	ReasonCorrectedEMIExceedsIncome Reason = "corrected_emi_exceeds_income_share"
)

func (r Reason) String() string { return string(r) }

// Message is the human readable form returned to API callers.
func (r Reason) Message() string {
	switch r {
	case ReasonApproved:
		return "Loan approved"
	case ReasonEMIExceedsIncomeShare:
		return "EMIs exceed 50% of monthly salary"
	case ReasonLimitExhausted:
		return "Current loans exhaust the approved limit"
	case ReasonScoreTooLow:
		return "Credit score too low"
	case ReasonCorrectedEMIExceedsIncome:
		return "EMIs at the corrected interest rate exceed 50% of monthly salary"
	default:
		return string(r)
	}
}

// dateOf is t's calendar day, pinned to UTC so days compare across zones.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddMonths moves t forward by n calendar months, clamping the day to the
// last day of the target month (Jan 31 + 1 month = Feb 28/29).
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}
