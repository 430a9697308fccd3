package http

import (
	"encoding/json"
	"net/http"

	"github.com/jmehdipour/credit-gateway/internal/service/lending"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type registerReq struct {
	FirstName     string          `json:"first_name"`
	LastName      string          `json:"last_name"`
	Age           int             `json:"age"`
	MonthlyIncome decimal.Decimal `json:"monthly_income"`
	PhoneNumber   json.Number     `json:"phone_number"` // number or numeric string
}

type registerResp struct {
	CustomerID    int64  `json:"customer_id"`
	Name          string `json:"name"`
	Age           int    `json:"age"`
	MonthlyIncome fixed2 `json:"monthly_income"`
	ApprovedLimit fixed2 `json:"approved_limit"`
	PhoneNumber   int64  `json:"phone_number"`
}

func registerHandler(svc Lending) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req registerReq
		if err := c.Bind(&req); err != nil {
			return badRequest(c, "bad request")
		}

		cust, err := svc.RegisterCustomer(c.Request().Context(), lending.RegisterInput{
			FirstName:     req.FirstName,
			LastName:      req.LastName,
			Age:           req.Age,
			MonthlyIncome: req.MonthlyIncome,
			Phone:         req.PhoneNumber.String(),
		})
		if err != nil {
			return errorJSON(c, err)
		}

		return c.JSON(http.StatusCreated, registerResp{
			CustomerID:    cust.ID,
			Name:          cust.Name(),
			Age:           cust.Age,
			MonthlyIncome: fixed2(cust.MonthlySalary),
			ApprovedLimit: fixed2(cust.ApprovedLimit),
			PhoneNumber:   cust.PhoneNumber,
		})
	}
}
