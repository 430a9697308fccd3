package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jmehdipour/credit-gateway/internal/config"
	"github.com/jmehdipour/credit-gateway/internal/engine"
	"github.com/jmehdipour/credit-gateway/internal/model"
	"github.com/jmehdipour/credit-gateway/internal/repository"
	"github.com/jmehdipour/credit-gateway/internal/service/lending"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLending struct {
	registerFn func(lending.RegisterInput) (model.Customer, error)
	checkFn    func(engine.Application) (engine.Result, error)
	createFn   func(engine.Application) (lending.CreateResult, error)
	getLoanFn  func(int64) (lending.LoanView, error)
	loansFn    func(int64) ([]model.Loan, error)
	scheduleFn func(int64) ([]engine.Installment, error)
}

func (f *fakeLending) RegisterCustomer(_ context.Context, in lending.RegisterInput) (model.Customer, error) {
	return f.registerFn(in)
}

func (f *fakeLending) CheckEligibility(_ context.Context, app engine.Application) (engine.Result, error) {
	return f.checkFn(app)
}

func (f *fakeLending) CreateLoan(_ context.Context, app engine.Application) (lending.CreateResult, error) {
	return f.createFn(app)
}

func (f *fakeLending) GetLoan(_ context.Context, id int64) (lending.LoanView, error) {
	return f.getLoanFn(id)
}

func (f *fakeLending) CustomerLoans(_ context.Context, id int64) ([]model.Loan, error) {
	return f.loansFn(id)
}

func (f *fakeLending) LoanSchedule(_ context.Context, id int64) ([]engine.Installment, error) {
	return f.scheduleFn(id)
}

type fakeDecisions struct {
	gotFilter repository.DecisionFilter
	gotLimit  int
	gotOffset int
	rows      []model.DecisionEvent
	err       error
}

func (f *fakeDecisions) ListByCustomer(_ context.Context, _ int64, filter repository.DecisionFilter, limit, offset int) ([]model.DecisionEvent, error) {
	f.gotFilter, f.gotLimit, f.gotOffset = filter, limit, offset
	return f.rows, f.err
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestServer(svc Lending, decisions DecisionReader) http.Handler {
	return NewServer(config.Config{}, svc, decisions, nil).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestRegister(t *testing.T) {
	var got lending.RegisterInput
	svc := &fakeLending{registerFn: func(in lending.RegisterInput) (model.Customer, error) {
		got = in
		return model.Customer{
			ID:            11,
			FirstName:     in.FirstName,
			LastName:      in.LastName,
			Age:           in.Age,
			PhoneNumber:   9876543210,
			MonthlySalary: in.MonthlyIncome,
			ApprovedLimit: dec("1800000"),
		}, nil
	}}

	rec, body := do(t, newTestServer(svc, nil), http.MethodPost, "/v1/register",
		`{"first_name":"Asha","last_name":"Rao","age":31,"monthly_income":50000,"phone_number":9876543210}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "9876543210", got.Phone)
	assert.Equal(t, float64(11), body["customer_id"])
	assert.Equal(t, "Asha Rao", body["name"])
	assert.Contains(t, rec.Body.String(), `"approved_limit":1800000.00`)
	assert.Contains(t, rec.Body.String(), `"monthly_income":50000.00`)
}

func TestRegister_ErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{lending.ErrDuplicatePhone, http.StatusConflict},
		{lending.ErrInvalidCustomer, http.StatusBadRequest},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		svc := &fakeLending{registerFn: func(lending.RegisterInput) (model.Customer, error) { return model.Customer{}, tc.err }}
		rec, body := do(t, newTestServer(svc, nil), http.MethodPost, "/v1/register",
			`{"first_name":"A","last_name":"B","age":31,"monthly_income":1,"phone_number":"9876543210"}`)
		assert.Equal(t, tc.code, rec.Code, "%v", tc.err)
		assert.NotEmpty(t, body["error"])
	}
}

func TestRegister_MalformedBody(t *testing.T) {
	rec, _ := do(t, newTestServer(&fakeLending{}, nil), http.MethodPost, "/v1/register", `{"age":"old"`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckEligibility(t *testing.T) {
	var got engine.Application
	svc := &fakeLending{checkFn: func(app engine.Application) (engine.Result, error) {
		got = app
		return engine.Result{
			CustomerID:         app.CustomerID,
			Approved:           true,
			Score:              40,
			RequestedRate:      dec("10"),
			CorrectedRate:      dec("12"),
			TenureMonths:       12,
			MonthlyInstallment: dec("8884.88"),
		}, nil
	}}

	rec, body := do(t, newTestServer(svc, nil), http.MethodPost, "/v1/check-eligibility",
		`{"customer_id":3,"loan_amount":100000,"interest_rate":10,"tenure":12}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(3), got.CustomerID)
	assert.Equal(t, "100000", got.Principal.String())
	assert.Equal(t, 12, got.TenureMonths)

	assert.Equal(t, true, body["approval"])
	assert.Contains(t, rec.Body.String(), `"interest_rate":10.00`)
	assert.Contains(t, rec.Body.String(), `"corrected_interest_rate":12.00`)
	assert.Contains(t, rec.Body.String(), `"monthly_installment":8884.88`)
}

func TestCheckEligibility_Errors(t *testing.T) {
	cases := []struct {
		body string
		err  error
		code int
	}{
		{`{"customer_id":0,"loan_amount":1,"interest_rate":1,"tenure":1}`, nil, http.StatusBadRequest},
		{`{"customer_id":1,"loan_amount":1,"interest_rate":1,"tenure":0}`, engine.ErrInvalidInput, http.StatusBadRequest},
		{`{"customer_id":9,"loan_amount":1,"interest_rate":1,"tenure":1}`, lending.ErrCustomerNotFound, http.StatusNotFound},
	}
	for _, tc := range cases {
		svc := &fakeLending{checkFn: func(engine.Application) (engine.Result, error) { return engine.Result{}, tc.err }}
		rec, _ := do(t, newTestServer(svc, nil), http.MethodPost, "/v1/check-eligibility", tc.body)
		assert.Equal(t, tc.code, rec.Code, tc.body)
	}
}

func TestCreateLoan(t *testing.T) {
	t.Run("approved", func(t *testing.T) {
		svc := &fakeLending{createFn: func(app engine.Application) (lending.CreateResult, error) {
			return lending.CreateResult{
				Result:  engine.Result{CustomerID: app.CustomerID, Approved: true, MonthlyInstallment: dec("8791.59")},
				LoanID:  42,
				Message: "Loan approved successfully",
			}, nil
		}}
		rec, body := do(t, newTestServer(svc, nil), http.MethodPost, "/v1/create-loan",
			`{"customer_id":3,"loan_amount":100000,"interest_rate":10,"tenure":12}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, float64(42), body["loan_id"])
		assert.Equal(t, true, body["loan_approved"])
		assert.Equal(t, "Loan approved successfully", body["message"])
	})

	t.Run("rejected", func(t *testing.T) {
		svc := &fakeLending{createFn: func(app engine.Application) (lending.CreateResult, error) {
			return lending.CreateResult{
				Result:  engine.Result{CustomerID: app.CustomerID, Reason: engine.ReasonScoreTooLow},
				Message: engine.ReasonScoreTooLow.Message(),
			}, nil
		}}
		rec, body := do(t, newTestServer(svc, nil), http.MethodPost, "/v1/create-loan",
			`{"customer_id":3,"loan_amount":100000,"interest_rate":10,"tenure":12}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Nil(t, body["loan_id"])
		assert.Contains(t, rec.Body.String(), `"loan_id":null`)
		assert.Equal(t, false, body["loan_approved"])
		assert.Contains(t, rec.Body.String(), `"monthly_installment":0.00`)
	})
}

func TestViewLoan(t *testing.T) {
	svc := &fakeLending{getLoanFn: func(id int64) (lending.LoanView, error) {
		if id != 7 {
			return lending.LoanView{}, lending.ErrLoanNotFound
		}
		return lending.LoanView{
			Loan: model.Loan{ID: 7, CustomerID: 1, LoanAmount: dec("10000"), InterestRate: dec("12"),
				MonthlyRepayment: dec("470.73"), Tenure: 24},
			Customer: model.Customer{ID: 1, FirstName: "Asha", LastName: "Rao", PhoneNumber: 9876543210, Age: 31},
		}, nil
	}}
	h := newTestServer(svc, nil)

	rec, body := do(t, h, http.MethodGet, "/v1/view-loan/7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(7), body["loan_id"])
	cust, ok := body["customer"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Asha", cust["first_name"])
	assert.Contains(t, rec.Body.String(), `"monthly_installment":470.73`)

	rec, _ = do(t, h, http.MethodGet, "/v1/view-loan/8", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/v1/view-loan/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestViewLoans(t *testing.T) {
	svc := &fakeLending{loansFn: func(int64) ([]model.Loan, error) {
		return []model.Loan{{ID: 1, LoanAmount: dec("1000"), InterestRate: dec("10"),
			MonthlyRepayment: dec("100"), Tenure: 12, EMIsPaidOnTime: 5}}, nil
	}}

	rec := httptest.NewRecorder()
	newTestServer(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/view-loans/1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var out []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, float64(7), out[0]["repayments_left"])
}

func TestSchedule(t *testing.T) {
	svc := &fakeLending{scheduleFn: func(int64) ([]engine.Installment, error) {
		return engine.Schedule(dec("1000"), decimal.Zero, 3, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC))
	}}

	rec, body := do(t, newTestServer(svc, nil), http.MethodGet, "/v1/loans/5/schedule", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(3), body["count"])
	assert.Contains(t, rec.Body.String(), `"due_date":"2025-02-28"`)
	assert.Contains(t, rec.Body.String(), `"payment":333.34`)
}

func TestListDecisions(t *testing.T) {
	repo := &fakeDecisions{rows: []model.DecisionEvent{{
		ID:            "01J",
		Kind:          model.DecisionCreateLoan,
		CustomerID:    3,
		LoanID:        9,
		Approved:      true,
		Score:         80,
		Reason:        engine.ReasonApproved.String(),
		LoanAmount:    dec("1000"),
		CorrectedRate: dec("10"),
		DecidedAt:     time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
	}}}
	h := newTestServer(&fakeLending{}, repo)

	rec, body := do(t, h, http.MethodGet, "/v1/customers/3/decisions?approved=true&limit=10&offset=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, repo.gotFilter.Approved)
	assert.True(t, *repo.gotFilter.Approved)
	assert.Empty(t, repo.gotFilter.Kind)
	assert.Equal(t, 10, repo.gotLimit)
	assert.Equal(t, 5, repo.gotOffset)
	assert.Equal(t, float64(1), body["count"])
	assert.Contains(t, rec.Body.String(), `"decided_at":"2025-06-15T12:00:00Z"`)
	assert.Contains(t, rec.Body.String(), `"loan_id":9`)

	rec, _ = do(t, h, http.MethodGet, "/v1/customers/3/decisions?approved=maybe", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/v1/customers/3/decisions?kind=%20Create_Loan%20", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.DecisionCreateLoan, repo.gotFilter.Kind)
	assert.Nil(t, repo.gotFilter.Approved)

	rec, _ = do(t, h, http.MethodGet, "/v1/customers/3/decisions?kind=refund", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	repo.err = errors.New("clickhouse down")
	rec, _ = do(t, h, http.MethodGet, "/v1/customers/3/decisions", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, repository.DecisionFilter{}, repo.gotFilter)
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(&fakeLending{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
