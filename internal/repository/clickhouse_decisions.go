package repository

import (
	"context"

	"github.com/jmehdipour/credit-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

// DecisionFilter narrows a decision listing. Zero values match everything.
type DecisionFilter struct {
	Approved *bool
	Kind     model.DecisionKind
}

// CHDecisionsRepository stores and lists decision events in ClickHouse.
type CHDecisionsRepository interface {
	InsertBatch(ctx context.Context, events []model.DecisionEvent) error
	ListByCustomer(ctx context.Context, customerID int64, f DecisionFilter, limit, offset int) ([]model.DecisionEvent, error)
}

type chDecisionsRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewCHDecisionsRepository(ch *sqlx.DB) CHDecisionsRepository {
	return &chDecisionsRepository{ch: ch}
}

// InsertBatch sends events as a single ClickHouse block. The table is a
// ReplacingMergeTree on id, so replays after a crash collapse on merge.
func (r *chDecisionsRepository) InsertBatch(ctx context.Context, events []model.DecisionEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := r.ch.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO creditgw.decisions
		    (id, kind, customer_id, loan_id, approved, score, reason, loan_amount,
		     requested_rate, corrected_rate, tenure, monthly_installment, decided_at)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.ExecContext(ctx,
			e.ID, e.Kind.String(), e.CustomerID, e.LoanID, e.Approved, e.Score, e.Reason, e.LoanAmount,
			e.RequestedRate, e.CorrectedRate, e.Tenure, e.MonthlyInstallment, e.DecidedAt,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *chDecisionsRepository) ListByCustomer(ctx context.Context, customerID int64, f DecisionFilter, limit, offset int) ([]model.DecisionEvent, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	// decimals come back as strings; decimal.Decimal scans those
	q := `
		SELECT id, kind, customer_id, loan_id, approved, score, reason,
		       toString(loan_amount)         AS loan_amount,
		       toString(requested_rate)      AS requested_rate,
		       toString(corrected_rate)      AS corrected_rate,
		       tenure,
		       toString(monthly_installment) AS monthly_installment,
		       decided_at
		FROM creditgw.decisions FINAL
		WHERE customer_id = ?
	`
	args := []any{customerID}

	if f.Approved != nil {
		q += " AND approved = ?"
		args = append(args, *f.Approved)
	}
	if f.Kind != "" {
		q += " AND kind = ?"
		args = append(args, f.Kind.String())
	}

	q += " ORDER BY decided_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	var rows []model.DecisionEvent
	if err := r.ch.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
