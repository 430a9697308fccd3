package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Tier maps scores strictly above Above to a minimum acceptable rate.
type Tier struct {
	Above   int
	MinRate decimal.Decimal
}

// Policy holds the approval thresholds.
type Policy struct {
	// MaxIncomeShare caps total monthly EMIs as a fraction of monthly income.
	MaxIncomeShare decimal.Decimal
	// Tiers are ordered by Above, highest first. Scores at or below the last
	// tier's Above are rejected.
	Tiers []Tier
}

// DefaultPolicy: EMIs up to 50% of income; score > 50 keeps the requested
// rate, 30 < score <= 50 floors at 12%, 10 < score <= 30 floors at 16%.
func DefaultPolicy() Policy {
	return Policy{
		MaxIncomeShare: decimal.RequireFromString("0.5"),
		Tiers: []Tier{
			{Above: 50, MinRate: decimal.Zero},
			{Above: 30, MinRate: decimal.NewFromInt(12)},
			{Above: 10, MinRate: decimal.NewFromInt(16)},
		},
	}
}

// Validate checks the policy is usable.
func (p Policy) Validate() error {
	if !p.MaxIncomeShare.IsPositive() {
		return fmt.Errorf("%w: max income share must be positive", ErrInvalidInput)
	}
	if len(p.Tiers) == 0 {
		return fmt.Errorf("%w: at least one rate tier is required", ErrInvalidInput)
	}
	for i := 1; i < len(p.Tiers); i++ {
		if p.Tiers[i].Above >= p.Tiers[i-1].Above {
			return fmt.Errorf("%w: rate tiers must be ordered by descending score", ErrInvalidInput)
		}
	}
	return nil
}

// CorrectRate returns the rate to lend at for score: the requested rate,
// raised to the tier's floor when below it. ok is false when no tier accepts
// the score.
func (p Policy) CorrectRate(score int, requested decimal.Decimal) (rate decimal.Decimal, ok bool) {
	for _, t := range p.Tiers {
		if score > t.Above {
			return decimal.Max(requested, t.MinRate), true
		}
	}
	return decimal.Zero, false
}

// Engine evaluates applications under a fixed Policy. It holds no mutable
// state and is safe for concurrent use.
type Engine struct {
	policy Policy
}

// New returns an engine for p.
func New(p Policy) (*Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Engine{policy: p}, nil
}

// Default returns an engine using DefaultPolicy.
func Default() *Engine {
	return &Engine{policy: DefaultPolicy()}
}

// Policy returns the engine's policy.
func (e *Engine) Policy() Policy { return e.policy }

// Validate checks the application terms.
func (a Application) Validate() error {
	return validateTerms(a.Principal, a.AnnualRate, a.TenureMonths)
}

// Check derives the active totals and the credit score from the history and
// evaluates app.
func (e *Engine) Check(c Customer, loans []LoanRecord, app Application, asOf time.Time) (Result, error) {
	c = c.WithActiveTotals(loans, asOf)
	return e.Evaluate(c, CreditScore(c, loans, asOf), app)
}

// Evaluate applies the decision table, first match wins:
//
//  1. EMIs (current + new at the requested rate) above the income share: reject
//  2. active principal at or above the approved limit: reject
//  3. score tiers pick the corrected rate, or reject at the bottom
//  4. EMIs recomputed at the corrected rate above the income share: reject
//
// The income check runs twice. Pass one uses the requested rate because the
// corrected rate depends on the score tier, which is only consulted after the
// cheaper checks. Correction never lowers the rate, so a pass one failure is
// final; pass two catches a passing check turned failing by the higher rate.
//
// Rates are taken at 2 decimal places, so the stored rate reproduces the
// installment. Rejections carry a zero corrected rate and a zero installment.
func (e *Engine) Evaluate(c Customer, score int, app Application) (Result, error) {
	if err := app.Validate(); err != nil {
		return Result{}, err
	}

	requested := app.AnnualRate.Round(2)
	res := Result{
		CustomerID:         app.CustomerID,
		Score:              score,
		RequestedRate:      requested,
		CorrectedRate:      decimal.Zero,
		TenureMonths:       app.TenureMonths,
		MonthlyInstallment: decimal.Zero,
	}

	// pass 1: requested rate
	emi, err := MonthlyInstallment(app.Principal, requested, app.TenureMonths)
	if err != nil {
		return Result{}, err
	}
	if e.exceedsIncomeShare(c, emi) {
		return reject(res, ReasonEMIExceedsIncomeShare), nil
	}

	if c.ActivePrincipal.GreaterThanOrEqual(c.ApprovedLimit) {
		return reject(res, ReasonLimitExhausted), nil
	}

	rate, ok := e.policy.CorrectRate(score, requested)
	if !ok {
		return reject(res, ReasonScoreTooLow), nil
	}
	rate = rate.Round(2)

	// pass 2: corrected rate
	if !rate.Equal(requested) {
		emi, err = MonthlyInstallment(app.Principal, rate, app.TenureMonths)
		if err != nil {
			return Result{}, err
		}
		if e.exceedsIncomeShare(c, emi) {
			return reject(res, ReasonCorrectedEMIExceedsIncome), nil
		}
	}

	res.Approved = true
	res.Reason = ReasonApproved
	res.CorrectedRate = rate
	res.MonthlyInstallment = emi
	return res, nil
}

func (e *Engine) exceedsIncomeShare(c Customer, emi decimal.Decimal) bool {
	return c.CurrentEMI.Add(emi).GreaterThan(c.MonthlyIncome.Mul(e.policy.MaxIncomeShare))
}

func reject(res Result, reason Reason) Result {
	res.Approved = false
	res.Reason = reason
	res.CorrectedRate = decimal.Zero
	res.MonthlyInstallment = decimal.Zero
	return res
}

var lakh = decimal.NewFromInt(100_000)

// ApprovedLimit is 36 months of income rounded half-up to the nearest 100,000.
func ApprovedLimit(monthlyIncome decimal.Decimal) decimal.Decimal {
	return monthlyIncome.Mul(decimal.NewFromInt(36)).Div(lakh).Round(0).Mul(lakh)
}
