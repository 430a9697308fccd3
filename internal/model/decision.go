package model

import (
	"strings"
	"time"

	"github.com/jmehdipour/credit-gateway/internal/engine"
	"github.com/shopspring/decimal"
)

type DecisionKind string

const (
	DecisionEligibility DecisionKind = "eligibility"
	DecisionCreateLoan  DecisionKind = "create_loan"
)

func (k DecisionKind) String() string { return string(k) }

func (k DecisionKind) Valid() bool {
	return k == DecisionEligibility || k == DecisionCreateLoan
}

// ParseDecisionKind normalizes input; returns (value, true) if valid.
func ParseDecisionKind(s string) (DecisionKind, bool) {
	k := DecisionKind(strings.ToLower(strings.TrimSpace(s)))
	return k, k.Valid()
}

// DecisionEvent is the outbox payload published to Kafka (via Debezium
// outbox SMT) and the row projected into ClickHouse.
type DecisionEvent struct {
	ID                 string          `json:"id"          db:"id"` // ULID
	Kind               DecisionKind    `json:"kind"        db:"kind"`
	CustomerID         int64           `json:"customer_id" db:"customer_id"`
	LoanID             int64           `json:"loan_id"     db:"loan_id"` // 0 unless a loan was created
	Approved           bool            `json:"approved"    db:"approved"`
	Score              int64           `json:"score"       db:"score"`
	Reason             string          `json:"reason"      db:"reason"`
	LoanAmount         decimal.Decimal `json:"loan_amount"         db:"loan_amount"`
	RequestedRate      decimal.Decimal `json:"requested_rate"      db:"requested_rate"`
	CorrectedRate      decimal.Decimal `json:"corrected_rate"      db:"corrected_rate"`
	Tenure             int64           `json:"tenure"              db:"tenure"`
	MonthlyInstallment decimal.Decimal `json:"monthly_installment" db:"monthly_installment"`
	DecidedAt          time.Time       `json:"decided_at"          db:"decided_at"`
}

// NewDecisionEvent captures an engine result for the given application.
func NewDecisionEvent(id string, kind DecisionKind, app engine.Application, res engine.Result, loanID int64, at time.Time) DecisionEvent {
	return DecisionEvent{
		ID:                 id,
		Kind:               kind,
		CustomerID:         app.CustomerID,
		LoanID:             loanID,
		Approved:           res.Approved,
		Score:              int64(res.Score),
		Reason:             res.Reason.String(),
		LoanAmount:         app.Principal,
		RequestedRate:      res.RequestedRate,
		CorrectedRate:      res.CorrectedRate,
		Tenure:             int64(res.TenureMonths),
		MonthlyInstallment: res.MonthlyInstallment,
		DecidedAt:          at.UTC(),
	}
}
