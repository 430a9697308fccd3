package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidInput marks contract violations (non-positive principal or
// tenure, negative rate). It is never a credit decision.
var ErrInvalidInput = errors.New("invalid input")

// internalPrecision bounds the scale of intermediate results so repeated
// multiplication in the compound factor stays small.
const internalPrecision = 24

var (
	one           = decimal.NewFromInt(1)
	hundred       = decimal.NewFromInt(100)
	twelveHundred = decimal.NewFromInt(1200)
)

func validateTerms(principal, annualRate decimal.Decimal, tenureMonths int) error {
	if !principal.IsPositive() {
		return fmt.Errorf("%w: principal must be positive, got %s", ErrInvalidInput, principal)
	}
	if tenureMonths <= 0 {
		return fmt.Errorf("%w: tenure must be a positive number of months, got %d", ErrInvalidInput, tenureMonths)
	}
	if annualRate.IsNegative() {
		return fmt.Errorf("%w: interest rate must not be negative, got %s", ErrInvalidInput, annualRate)
	}
	return nil
}

// MonthlyInstallment returns the reducing-balance EMI rounded half-up to 2
// places:
//
//	r   = annualRate / 100 / 12
//	EMI = P * r * (1+r)^n / ((1+r)^n - 1)
//
// A zero rate degrades to a straight-line split P / n.
func MonthlyInstallment(principal, annualRate decimal.Decimal, tenureMonths int) (decimal.Decimal, error) {
	if err := validateTerms(principal, annualRate, tenureMonths); err != nil {
		return decimal.Zero, err
	}

	n := decimal.NewFromInt(int64(tenureMonths))
	if annualRate.IsZero() {
		return principal.DivRound(n, 2), nil
	}

	r := monthlyRate(annualRate)
	factor := compound(one.Add(r), tenureMonths)
	emi := principal.Mul(r).Mul(factor).DivRound(factor.Sub(one), internalPrecision)

	return emi.Round(2), nil
}

func monthlyRate(annualRate decimal.Decimal) decimal.Decimal {
	return annualRate.DivRound(twelveHundred, internalPrecision)
}

// compound raises base to n by squaring, rounding every step to
// internalPrecision.
func compound(base decimal.Decimal, n int) decimal.Decimal {
	result := one
	for n > 0 {
		if n&1 == 1 {
			result = result.Mul(base).Round(internalPrecision)
		}
		base = base.Mul(base).Round(internalPrecision)
		n >>= 1
	}
	return result
}

// Installment is one period of a repayment schedule.
type Installment struct {
	Period    int
	DueDate   time.Time
	Payment   decimal.Decimal
	Principal decimal.Decimal
	Interest  decimal.Decimal
	Balance   decimal.Decimal
}

// Schedule expands a loan into its monthly repayment schedule. The first
// payment is due one month after start. The last period absorbs rounding so
// the remaining balance ends at exactly zero.
func Schedule(principal, annualRate decimal.Decimal, tenureMonths int, start time.Time) ([]Installment, error) {
	emi, err := MonthlyInstallment(principal, annualRate, tenureMonths)
	if err != nil {
		return nil, err
	}

	r := monthlyRate(annualRate)
	remaining := principal.Round(2)
	out := make([]Installment, 0, tenureMonths)

	for period := 1; period <= tenureMonths; period++ {
		interest := remaining.Mul(r).Round(2)
		part := emi.Sub(interest)
		if period == tenureMonths || part.GreaterThan(remaining) {
			part = remaining
		}
		remaining = remaining.Sub(part)

		out = append(out, Installment{
			Period:    period,
			DueDate:   AddMonths(start, period),
			Payment:   part.Add(interest),
			Principal: part,
			Interest:  interest,
			Balance:   remaining,
		})
	}

	return out, nil
}
