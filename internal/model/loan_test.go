package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestLoan_RepaymentsLeft(t *testing.T) {
	assert.Equal(t, 4, Loan{Tenure: 12, EMIsPaidOnTime: 8}.RepaymentsLeft())
	assert.Equal(t, 0, Loan{Tenure: 12, EMIsPaidOnTime: 12}.RepaymentsLeft())
	assert.Equal(t, 0, Loan{Tenure: 6, EMIsPaidOnTime: 9}.RepaymentsLeft())
}

func TestLoan_OutstandingDebt(t *testing.T) {
	l := Loan{
		LoanAmount:       decimal.RequireFromString("100000"),
		MonthlyRepayment: decimal.RequireFromString("8791.59"),
		EMIsPaidOnTime:   10,
	}
	assert.Equal(t, "12084.10", l.OutstandingDebt().StringFixed(2))

	l.EMIsPaidOnTime = 12
	assert.True(t, l.OutstandingDebt().IsZero())
}

func TestLoan_Active(t *testing.T) {
	now := time.Date(2025, 6, 15, 9, 30, 0, 0, time.UTC)
	assert.True(t, Loan{EndDate: time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)}.Active(now))
	assert.False(t, Loan{EndDate: time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC)}.Active(now))
}

func TestRecords(t *testing.T) {
	loans := []Loan{
		{ID: 1, CustomerID: 9, LoanAmount: decimal.NewFromInt(500), Tenure: 6, EMIsPaidOnTime: 2},
		{ID: 2, CustomerID: 9, LoanAmount: decimal.NewFromInt(700), Tenure: 12, EMIsPaidOnTime: 12},
	}
	recs := Records(loans)
	assert.Len(t, recs, 2)
	assert.Equal(t, int64(2), recs[1].ID)
	assert.True(t, recs[1].Principal.Equal(decimal.NewFromInt(700)))
	assert.Equal(t, 12, recs[1].EMIsPaidOnTime)
}
