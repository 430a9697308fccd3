// Package lending runs credit decisions against stored customers and loans.
// It owns the transactions; the engine stays free of I/O.
package lending

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmehdipour/credit-gateway/internal/engine"
	"github.com/jmehdipour/credit-gateway/internal/logger"
	"github.com/jmehdipour/credit-gateway/internal/metrics"
	"github.com/jmehdipour/credit-gateway/internal/model"
	"github.com/jmehdipour/credit-gateway/internal/repository"
	"github.com/jmehdipour/credit-gateway/internal/util"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DecisionsKafkaTopic is where Debezium routes decision outbox rows.
const DecisionsKafkaTopic = "credit.decisions"

const (
	minAge = 18
	maxAge = 100

	mysqlDuplicateEntry = 1062
)

var (
	ErrCustomerNotFound = errors.New("customer not found")
	ErrLoanNotFound     = errors.New("loan not found")
	ErrDuplicatePhone   = errors.New("phone number already registered")
	ErrInvalidCustomer  = errors.New("invalid customer")
)

// Service persists customers and loans and records every decision in the
// outbox.
type Service struct {
	db        *sqlx.DB
	customers repository.CustomersRepository
	loans     repository.LoansRepository
	outbox    repository.OutboxRepository
	engine    *engine.Engine

	topic string
	now   func() time.Time
}

// New constructs the lending service.
func New(
	db *sqlx.DB,
	customersRepo repository.CustomersRepository,
	loansRepo repository.LoansRepository,
	outboxRepo repository.OutboxRepository,
	eng *engine.Engine,
) *Service {
	return &Service{
		db:        db,
		customers: customersRepo,
		loans:     loansRepo,
		outbox:    outboxRepo,
		engine:    eng,
		topic:     DecisionsKafkaTopic,
		now:       time.Now,
	}
}

// WithTopic sets the Kafka topic decision outbox rows are routed to. An empty
// topic keeps DecisionsKafkaTopic.
func (s *Service) WithTopic(topic string) *Service {
	if topic != "" {
		s.topic = topic
	}
	return s
}

// RegisterInput is a new customer as submitted.
type RegisterInput struct {
	FirstName     string
	LastName      string
	Age           int
	MonthlyIncome decimal.Decimal
	Phone         string
}

// CreateResult is the outcome of CreateLoan. LoanID is zero when rejected.
type CreateResult struct {
	engine.Result
	LoanID  int64
	Message string
}

// LoanView is a loan with its borrower.
type LoanView struct {
	Loan     model.Loan
	Customer model.Customer
}

func (in RegisterInput) validate() (int64, error) {
	if strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "" {
		return 0, fmt.Errorf("%w: first and last name are required", ErrInvalidCustomer)
	}
	if in.Age < minAge || in.Age > maxAge {
		return 0, fmt.Errorf("%w: age must be between %d and %d", ErrInvalidCustomer, minAge, maxAge)
	}
	if in.MonthlyIncome.IsNegative() {
		return 0, fmt.Errorf("%w: monthly income must not be negative", ErrInvalidCustomer)
	}
	phone, ok := util.ParsePhone(in.Phone)
	if !ok {
		return 0, fmt.Errorf("%w: phone number needs at least 10 digits", ErrInvalidCustomer)
	}
	return phone, nil
}

// RegisterCustomer stores a new customer with an approved limit of 36 months
// of income rounded to the nearest 100,000.
func (s *Service) RegisterCustomer(ctx context.Context, in RegisterInput) (model.Customer, error) {
	phone, err := in.validate()
	if err != nil {
		return model.Customer{}, err
	}

	exists, err := s.customers.ExistsByPhone(ctx, phone)
	if err != nil {
		return model.Customer{}, fmt.Errorf("lookup phone: %w", err)
	}
	if exists {
		return model.Customer{}, ErrDuplicatePhone
	}

	c := model.Customer{
		FirstName:     strings.TrimSpace(in.FirstName),
		LastName:      strings.TrimSpace(in.LastName),
		Age:           in.Age,
		PhoneNumber:   phone,
		MonthlySalary: in.MonthlyIncome.Round(2),
		ApprovedLimit: engine.ApprovedLimit(in.MonthlyIncome),
		CurrentDebt:   decimal.Zero,
	}

	id, err := s.customers.Insert(ctx, nil, c)
	if err != nil {
		// a concurrent registration can still win the unique index
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
			return model.Customer{}, ErrDuplicatePhone
		}
		return model.Customer{}, fmt.Errorf("insert customer: %w", err)
	}
	c.ID = id

	logger.Log.Info("customer registered",
		zap.Int64("customer_id", id),
		zap.String("approved_limit", c.ApprovedLimit.String()),
	)
	return c, nil
}

// CheckEligibility evaluates app against the customer's history without
// persisting a loan. Failing to record the decision event is logged only.
func (s *Service) CheckEligibility(ctx context.Context, app engine.Application) (engine.Result, error) {
	if err := app.Validate(); err != nil {
		return engine.Result{}, err
	}

	c, err := s.customers.GetByID(ctx, nil, app.CustomerID)
	if err != nil {
		return engine.Result{}, fmt.Errorf("get customer: %w", err)
	}
	if c == nil {
		return engine.Result{}, ErrCustomerNotFound
	}

	history, err := s.loans.ListByCustomer(ctx, nil, c.ID)
	if err != nil {
		return engine.Result{}, fmt.Errorf("list loans: %w", err)
	}

	now := s.now().UTC()
	res, err := s.engine.Check(c.Snapshot(), model.Records(history), app, now)
	if err != nil {
		return engine.Result{}, err
	}
	observe(model.DecisionEligibility, res)

	evt := model.NewDecisionEvent(util.NewID(now), model.DecisionEligibility, app, res, 0, now)
	if err := s.record(ctx, nil, evt); err != nil {
		logger.Log.Warn("record eligibility decision failed",
			zap.Int64("customer_id", c.ID),
			zap.String("event_id", evt.ID),
			zap.Error(err),
		)
	}

	return res, nil
}

// CreateLoan re-evaluates app and, when approved, stores the loan at the
// corrected rate and adds the principal to the customer's current debt. The
// customer row stays locked for the whole transaction so concurrent requests
// for one customer see each other's loans.
func (s *Service) CreateLoan(ctx context.Context, app engine.Application) (CreateResult, error) {
	if err := app.Validate(); err != nil {
		return CreateResult{}, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return CreateResult{}, err
	}
	defer func() { _ = tx.Rollback() }()

	c, err := s.customers.GetForUpdate(ctx, tx, app.CustomerID)
	if err != nil {
		return CreateResult{}, fmt.Errorf("lock customer: %w", err)
	}
	if c == nil {
		return CreateResult{}, ErrCustomerNotFound
	}

	history, err := s.loans.ListByCustomer(ctx, tx, c.ID)
	if err != nil {
		return CreateResult{}, fmt.Errorf("list loans: %w", err)
	}

	now := s.now().UTC()
	res, err := s.engine.Check(c.Snapshot(), model.Records(history), app, now)
	if err != nil {
		return CreateResult{}, err
	}

	out := CreateResult{Result: res, Message: res.Reason.Message()}
	if res.Approved {
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		loan := model.Loan{
			CustomerID:       c.ID,
			LoanAmount:       app.Principal.Round(2),
			Tenure:           app.TenureMonths,
			InterestRate:     res.CorrectedRate,
			MonthlyRepayment: res.MonthlyInstallment,
			StartDate:        start,
			EndDate:          engine.AddMonths(start, app.TenureMonths),
		}
		if out.LoanID, err = s.loans.Insert(ctx, tx, loan); err != nil {
			return CreateResult{}, fmt.Errorf("insert loan: %w", err)
		}
		if err := s.customers.AddDebt(ctx, tx, c.ID, loan.LoanAmount); err != nil {
			return CreateResult{}, fmt.Errorf("add debt: %w", err)
		}
		out.Message = "Loan approved successfully"
	}

	evt := model.NewDecisionEvent(util.NewID(now), model.DecisionCreateLoan, app, res, out.LoanID, now)
	if err := s.record(ctx, tx, evt); err != nil {
		return CreateResult{}, fmt.Errorf("insert outbox: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return CreateResult{}, err
	}
	observe(model.DecisionCreateLoan, res)

	logger.Log.Info("loan decision",
		zap.Int64("customer_id", c.ID),
		zap.Int64("loan_id", out.LoanID),
		zap.Bool("approved", res.Approved),
		zap.String("reason", res.Reason.String()),
		zap.Int("score", res.Score),
	)
	return out, nil
}

// GetLoan returns a loan with its customer.
func (s *Service) GetLoan(ctx context.Context, loanID int64) (LoanView, error) {
	l, err := s.loans.GetByID(ctx, loanID)
	if err != nil {
		return LoanView{}, fmt.Errorf("get loan: %w", err)
	}
	if l == nil {
		return LoanView{}, ErrLoanNotFound
	}

	c, err := s.customers.GetByID(ctx, nil, l.CustomerID)
	if err != nil {
		return LoanView{}, fmt.Errorf("get customer: %w", err)
	}
	if c == nil {
		return LoanView{}, ErrCustomerNotFound
	}
	return LoanView{Loan: *l, Customer: *c}, nil
}

// CustomerLoans returns the customer's active loans.
func (s *Service) CustomerLoans(ctx context.Context, customerID int64) ([]model.Loan, error) {
	c, err := s.customers.GetByID(ctx, nil, customerID)
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	if c == nil {
		return nil, ErrCustomerNotFound
	}

	loans, err := s.loans.ListActiveByCustomer(ctx, customerID, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("list active loans: %w", err)
	}
	return loans, nil
}

// LoanSchedule returns the amortization table of a stored loan.
func (s *Service) LoanSchedule(ctx context.Context, loanID int64) ([]engine.Installment, error) {
	l, err := s.loans.GetByID(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("get loan: %w", err)
	}
	if l == nil {
		return nil, ErrLoanNotFound
	}
	return engine.Schedule(l.LoanAmount, l.InterestRate, l.Tenure, l.StartDate)
}

// RecomputeCurrentDebt resets every customer's current debt to the
// outstanding principal of their active loans. It returns the number of
// customers updated.
func (s *Service) RecomputeCurrentDebt(ctx context.Context) (int, error) {
	ids, err := s.customers.ListIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list customers: %w", err)
	}

	now := s.now().UTC()
	updated := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return updated, err
		}

		loans, err := s.loans.ListActiveByCustomer(ctx, id, now)
		if err != nil {
			return updated, fmt.Errorf("list active loans of %d: %w", id, err)
		}

		debt := decimal.Zero
		for _, l := range loans {
			debt = debt.Add(l.OutstandingDebt())
		}

		if err := s.customers.SetDebt(ctx, nil, id, debt); err != nil {
			return updated, fmt.Errorf("set debt of %d: %w", id, err)
		}
		updated++
	}

	logger.Log.Info("current debt recomputed", zap.Int("customers", updated))
	return updated, nil
}

func (s *Service) record(ctx context.Context, tx *sqlx.Tx, evt model.DecisionEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}

	return s.outbox.Append(ctx, tx, model.OutboxEvent{
		Aggregate:   "customer",
		AggregateID: strconv.FormatInt(evt.CustomerID, 10),
		Topic:       s.topic,
		Payload:     payload,
	})
}

func observe(kind model.DecisionKind, res engine.Result) {
	metrics.DecisionsTotal.WithLabelValues(kind.String(), metrics.Outcome(res.Approved), res.Reason.String()).Inc()
	metrics.CreditScore.Observe(float64(res.Score))
}
