package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jmehdipour/credit-gateway/internal/model"
	"github.com/jmehdipour/credit-gateway/internal/repository"
	"github.com/labstack/echo/v4"
)

type decisionResp struct {
	ID                 string `json:"id"`
	Kind               string `json:"kind"`
	LoanID             *int64 `json:"loan_id"`
	Approved           bool   `json:"approved"`
	Score              int64  `json:"score"`
	Reason             string `json:"reason"`
	LoanAmount         fixed2 `json:"loan_amount"`
	RequestedRate      fixed2 `json:"requested_rate"`
	CorrectedRate      fixed2 `json:"corrected_rate"`
	Tenure             int64  `json:"tenure"`
	MonthlyInstallment fixed2 `json:"monthly_installment"`
	DecidedAt          string `json:"decided_at"`
}

func listDecisionsHandler(repo DecisionReader) echo.HandlerFunc {
	return func(c echo.Context) error {
		custID, ok := idParam(c, "customer_id")
		if !ok {
			return badRequest(c, "invalid customer_id")
		}

		limit := 50
		offset := 0
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
				limit = n
			}
		}
		if v := c.QueryParam("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				offset = n
			}
		}

		var filter repository.DecisionFilter
		if raw := strings.TrimSpace(c.QueryParam("approved")); raw != "" {
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return badRequest(c, "invalid approved filter")
			}
			filter.Approved = &b
		}
		if raw := c.QueryParam("kind"); raw != "" {
			k, ok := model.ParseDecisionKind(raw)
			if !ok {
				return badRequest(c, "kind must be eligibility or create_loan")
			}
			filter.Kind = k
		}

		events, err := repo.ListByCustomer(c.Request().Context(), custID, filter, limit, offset)
		if err != nil {
			c.Logger().Errorf("clickhouse list failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}

		results := make([]decisionResp, 0, len(events))
		for _, e := range events {
			r := decisionResp{
				ID:                 e.ID,
				Kind:               e.Kind.String(),
				Approved:           e.Approved,
				Score:              e.Score,
				Reason:             e.Reason,
				LoanAmount:         fixed2(e.LoanAmount),
				RequestedRate:      fixed2(e.RequestedRate),
				CorrectedRate:      fixed2(e.CorrectedRate),
				Tenure:             e.Tenure,
				MonthlyInstallment: fixed2(e.MonthlyInstallment),
				DecidedAt:          e.DecidedAt.UTC().Format(time.RFC3339),
			}
			if e.LoanID > 0 {
				id := e.LoanID
				r.LoanID = &id
			}
			results = append(results, r)
		}

		return c.JSON(http.StatusOK, map[string]any{
			"customer_id": custID,
			"limit":       limit,
			"offset":      offset,
			"count":       len(results),
			"results":     results,
		})
	}
}
