package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// Component weights in percent; they sum to 100.
var (
	weightOnTime  = decimal.NewFromInt(35)
	weightCount   = decimal.NewFromInt(15)
	weightRecency = decimal.NewFromInt(15)
	weightVolume  = decimal.NewFromInt(35)
)

// Points lost per loan by the count and current-year sub-scores, which start
// at 100 for no loans.
const (
	countStep   = 10 // 10 loans -> 0
	recencyStep = 20 // 5 loans this year -> 0
)

// CreditScore derives a 0..100 score from the customer's loan history.
//
// The score is zero whenever the historical principal total or the current
// active principal exceeds the approved limit. Otherwise it is the weighted
// sum of four sub-scores, each on 0..100:
//
//	on-time ratio  35%  100 * sum(paid on time) / sum(tenure), 0 without history
//	loan count     15%  100 - 10 per loan, floored at 0
//	current year   15%  100 - 20 per loan started in asOf's year, floored at 0
//	volume         35%  100 * (1 - sum(principal) / approved limit)
//
// rounded half-up and clamped.
func CreditScore(c Customer, loans []LoanRecord, asOf time.Time) int {
	var (
		totalPrincipal = decimal.Zero
		paid, tenure   int64
		thisYear       int
	)
	for _, l := range loans {
		totalPrincipal = totalPrincipal.Add(l.Principal)
		paid += int64(l.EMIsPaidOnTime)
		tenure += int64(l.TenureMonths)
		if l.StartDate.Year() == asOf.Year() {
			thisYear++
		}
	}

	if totalPrincipal.GreaterThan(c.ApprovedLimit) || c.ActivePrincipal.GreaterThan(c.ApprovedLimit) {
		return 0
	}

	onTime := decimal.Zero
	if tenure > 0 {
		onTime = clamp100(hundred.Mul(decimal.NewFromInt(paid)).Div(decimal.NewFromInt(tenure)))
	}

	volume := hundred
	if totalPrincipal.IsPositive() {
		// totalPrincipal <= ApprovedLimit here, so the limit is positive.
		volume = clamp100(hundred.Mul(one.Sub(totalPrincipal.Div(c.ApprovedLimit))))
	}

	weighted := onTime.Mul(weightOnTime).
		Add(decay(len(loans), countStep).Mul(weightCount)).
		Add(decay(thisYear, recencyStep).Mul(weightRecency)).
		Add(volume.Mul(weightVolume)).
		Div(hundred)

	score := int(weighted.Round(0).IntPart())
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	}
	return score
}

func decay(n, step int) decimal.Decimal {
	v := 100 - n*step
	if v < 0 {
		v = 0
	}
	return decimal.NewFromInt(int64(v))
}

func clamp100(d decimal.Decimal) decimal.Decimal {
	return decimal.Min(decimal.Max(d, decimal.Zero), hundred)
}
