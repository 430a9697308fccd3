package http

import (
	"net/http"
	"time"

	"github.com/jmehdipour/credit-gateway/internal/engine"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type loanReq struct {
	CustomerID   int64           `json:"customer_id"`
	LoanAmount   decimal.Decimal `json:"loan_amount"`
	InterestRate decimal.Decimal `json:"interest_rate"`
	Tenure       int             `json:"tenure"`
}

func (r loanReq) application() engine.Application {
	return engine.Application{
		CustomerID:   r.CustomerID,
		Principal:    r.LoanAmount,
		AnnualRate:   r.InterestRate,
		TenureMonths: r.Tenure,
	}
}

func bindLoanReq(c echo.Context) (loanReq, bool) {
	var req loanReq
	if err := c.Bind(&req); err != nil || req.CustomerID <= 0 {
		return loanReq{}, false
	}
	return req, true
}

type eligibilityResp struct {
	CustomerID            int64  `json:"customer_id"`
	Approval              bool   `json:"approval"`
	InterestRate          fixed2 `json:"interest_rate"`
	CorrectedInterestRate fixed2 `json:"corrected_interest_rate"`
	Tenure                int    `json:"tenure"`
	MonthlyInstallment    fixed2 `json:"monthly_installment"`
}

func checkEligibilityHandler(svc Lending) echo.HandlerFunc {
	return func(c echo.Context) error {
		req, ok := bindLoanReq(c)
		if !ok {
			return badRequest(c, "bad request")
		}

		res, err := svc.CheckEligibility(c.Request().Context(), req.application())
		if err != nil {
			return errorJSON(c, err)
		}

		return c.JSON(http.StatusOK, eligibilityResp{
			CustomerID:            res.CustomerID,
			Approval:              res.Approved,
			InterestRate:          fixed2(res.RequestedRate),
			CorrectedInterestRate: fixed2(res.CorrectedRate),
			Tenure:                res.TenureMonths,
			MonthlyInstallment:    fixed2(res.MonthlyInstallment),
		})
	}
}

type createLoanResp struct {
	LoanID             *int64 `json:"loan_id"`
	CustomerID         int64  `json:"customer_id"`
	LoanApproved       bool   `json:"loan_approved"`
	Message            string `json:"message"`
	MonthlyInstallment fixed2 `json:"monthly_installment"`
}

func createLoanHandler(svc Lending) echo.HandlerFunc {
	return func(c echo.Context) error {
		req, ok := bindLoanReq(c)
		if !ok {
			return badRequest(c, "bad request")
		}

		out, err := svc.CreateLoan(c.Request().Context(), req.application())
		if err != nil {
			return errorJSON(c, err)
		}

		resp := createLoanResp{
			CustomerID:         out.CustomerID,
			LoanApproved:       out.Approved,
			Message:            out.Message,
			MonthlyInstallment: fixed2(out.MonthlyInstallment),
		}
		if out.LoanID > 0 {
			resp.LoanID = &out.LoanID
		}
		return c.JSON(http.StatusOK, resp)
	}
}

type loanCustomer struct {
	ID          int64  `json:"id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber int64  `json:"phone_number"`
	Age         int    `json:"age"`
}

type viewLoanResp struct {
	LoanID             int64        `json:"loan_id"`
	Customer           loanCustomer `json:"customer"`
	LoanAmount         fixed2       `json:"loan_amount"`
	InterestRate       fixed2       `json:"interest_rate"`
	MonthlyInstallment fixed2       `json:"monthly_installment"`
	Tenure             int          `json:"tenure"`
}

func viewLoanHandler(svc Lending) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := idParam(c, "loan_id")
		if !ok {
			return badRequest(c, "invalid loan_id")
		}

		v, err := svc.GetLoan(c.Request().Context(), id)
		if err != nil {
			return errorJSON(c, err)
		}

		return c.JSON(http.StatusOK, viewLoanResp{
			LoanID: v.Loan.ID,
			Customer: loanCustomer{
				ID:          v.Customer.ID,
				FirstName:   v.Customer.FirstName,
				LastName:    v.Customer.LastName,
				PhoneNumber: v.Customer.PhoneNumber,
				Age:         v.Customer.Age,
			},
			LoanAmount:         fixed2(v.Loan.LoanAmount),
			InterestRate:       fixed2(v.Loan.InterestRate),
			MonthlyInstallment: fixed2(v.Loan.MonthlyRepayment),
			Tenure:             v.Loan.Tenure,
		})
	}
}

type customerLoanResp struct {
	LoanID             int64  `json:"loan_id"`
	LoanAmount         fixed2 `json:"loan_amount"`
	InterestRate       fixed2 `json:"interest_rate"`
	MonthlyInstallment fixed2 `json:"monthly_installment"`
	RepaymentsLeft     int    `json:"repayments_left"`
}

func viewLoansHandler(svc Lending) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := idParam(c, "customer_id")
		if !ok {
			return badRequest(c, "invalid customer_id")
		}

		loans, err := svc.CustomerLoans(c.Request().Context(), id)
		if err != nil {
			return errorJSON(c, err)
		}

		out := make([]customerLoanResp, 0, len(loans))
		for _, l := range loans {
			out = append(out, customerLoanResp{
				LoanID:             l.ID,
				LoanAmount:         fixed2(l.LoanAmount),
				InterestRate:       fixed2(l.InterestRate),
				MonthlyInstallment: fixed2(l.MonthlyRepayment),
				RepaymentsLeft:     l.RepaymentsLeft(),
			})
		}
		return c.JSON(http.StatusOK, out)
	}
}

type installmentResp struct {
	Period    int    `json:"period"`
	DueDate   string `json:"due_date"`
	Payment   fixed2 `json:"payment"`
	Principal fixed2 `json:"principal"`
	Interest  fixed2 `json:"interest"`
	Balance   fixed2 `json:"balance"`
}

func scheduleHandler(svc Lending) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := idParam(c, "loan_id")
		if !ok {
			return badRequest(c, "invalid loan_id")
		}

		rows, err := svc.LoanSchedule(c.Request().Context(), id)
		if err != nil {
			return errorJSON(c, err)
		}

		out := make([]installmentResp, 0, len(rows))
		for _, r := range rows {
			out = append(out, installmentResp{
				Period:    r.Period,
				DueDate:   r.DueDate.Format(time.DateOnly),
				Payment:   fixed2(r.Payment),
				Principal: fixed2(r.Principal),
				Interest:  fixed2(r.Interest),
				Balance:   fixed2(r.Balance),
			})
		}
		return c.JSON(http.StatusOK, map[string]any{
			"loan_id": id,
			"count":   len(out),
			"results": out,
		})
	}
}
