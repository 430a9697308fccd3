package ingest

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmehdipour/credit-gateway/internal/model"
	"github.com/jmehdipour/credit-gateway/internal/repository"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func workbook(t *testing.T, rows ...[]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}

	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)
	return &buf
}

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func TestReadCustomers(t *testing.T) {
	buf := workbook(t,
		[]any{"Customer ID", "First Name", "Last Name", "Age", "Phone Number", "Monthly Salary", "Approved Limit"},
		[]any{1, "Aaron", "Garcia", 63, 9629317944, 50000, 1800000},
		[]any{2, "Abel", "Mason", 41, 9000000001, 76500.5, 2800000},
		[]any{3, "Short", "Row"},
	)

	rows, skipped, err := ReadCustomers(buf)
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	require.Len(t, rows, 2)

	assert.Equal(t, int64(1), rows[0].ID)
	assert.Equal(t, "Aaron Garcia", rows[0].Name())
	assert.Equal(t, 63, rows[0].Age)
	assert.Equal(t, int64(9629317944), rows[0].PhoneNumber)
	assert.True(t, rows[0].ApprovedLimit.Equal(decimal.NewFromInt(1800000)))
	assert.Equal(t, "76500.5", rows[1].MonthlySalary.String())
}

func TestReadCustomers_BadCell(t *testing.T) {
	buf := workbook(t,
		[]any{"Customer ID", "First Name", "Last Name", "Age", "Phone Number", "Monthly Salary", "Approved Limit"},
		[]any{1, "Aaron", "Garcia", "sixty", 9629317944, 50000, 1800000},
	)

	_, _, err := ReadCustomers(buf)
	var rowErr *RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, 2, rowErr.Row)
	assert.Equal(t, "age", rowErr.Column)
}

func TestReadCustomers_ShortPhone(t *testing.T) {
	buf := workbook(t,
		[]any{"Customer ID", "First Name", "Last Name", "Age", "Phone Number", "Monthly Salary", "Approved Limit"},
		[]any{1, "Aaron", "Garcia", 63, 9629317944, 50000, 1800000},
		[]any{2, "Abel", "Mason", 41, 96293179, 76500, 2800000},
	)

	_, _, err := ReadCustomers(buf)
	var rowErr *RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, 3, rowErr.Row)
	assert.Equal(t, "phone_number", rowErr.Column)
}

func TestReadLoans(t *testing.T) {
	buf := workbook(t,
		[]any{"Customer ID", "Loan ID", "Loan Amount", "Tenure", "Interest Rate", "Monthly payment", "EMIs paid on Time", "Date of Approval", "End Date"},
		[]any{1, 7798, 900000, 138, 16.06, 39978, 39, day(2019, 11, 30), day(2031, 5, 30)},
		[]any{2, 8125, 60000, 12, 10, 5275.0, 12, "2024-01-15", "2025-01-15"},
	)

	rows, skipped, err := ReadLoans(buf)
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, rows, 2)

	l := rows[0]
	assert.Equal(t, int64(7798), l.ID)
	assert.Equal(t, int64(1), l.CustomerID)
	assert.Equal(t, 138, l.Tenure)
	assert.Equal(t, "16.06", l.InterestRate.String())
	assert.Equal(t, 39, l.EMIsPaidOnTime)
	assert.Equal(t, day(2019, 11, 30), l.StartDate)
	assert.Equal(t, day(2031, 5, 30), l.EndDate)

	assert.Equal(t, day(2024, 1, 15), rows[1].StartDate)
	assert.Equal(t, 12, rows[1].Tenure)
}

func TestReadLoans_NotAWorkbook(t *testing.T) {
	_, _, err := ReadLoans(bytes.NewBufferString("customer_id,loan_id\n1,2\n"))
	assert.Error(t, err)
}

type fakeCustomers struct {
	repository.CustomersRepository
	rows map[int64]model.Customer
}

func (f *fakeCustomers) GetByID(_ context.Context, _ *sqlx.Tx, id int64) (*model.Customer, error) {
	c, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (f *fakeCustomers) Upsert(_ context.Context, _ *sqlx.Tx, c model.Customer) (bool, error) {
	_, existed := f.rows[c.ID]
	f.rows[c.ID] = c
	return !existed, nil
}

type fakeLoans struct {
	repository.LoansRepository
	rows map[int64]model.Loan
	err  error
}

func (f *fakeLoans) Upsert(_ context.Context, _ *sqlx.Tx, l model.Loan) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	_, existed := f.rows[l.ID]
	f.rows[l.ID] = l
	return !existed, nil
}

func newImporter(t *testing.T) (*Importer, sqlmock.Sqlmock, *fakeCustomers, *fakeLoans) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	custs := &fakeCustomers{rows: map[int64]model.Customer{}}
	loans := &fakeLoans{rows: map[int64]model.Loan{}}
	return NewImporter(sqlx.NewDb(db, "sqlmock"), custs, loans), mock, custs, loans
}

func TestImportCustomers_CountsCreatedAndUpdated(t *testing.T) {
	im, mock, custs, _ := newImporter(t)
	custs.rows[1] = model.Customer{ID: 1, FirstName: "Old"}
	mock.ExpectBegin()
	mock.ExpectCommit()

	st, err := im.ImportCustomers(context.Background(), []model.Customer{
		{ID: 1, FirstName: "Aaron"},
		{ID: 2, FirstName: "Abel"},
	})
	require.NoError(t, err)
	assert.Equal(t, Stats{Created: 1, Updated: 1}, st)
	assert.Equal(t, "Aaron", custs.rows[1].FirstName)
}

func TestImportLoans_SkipsUnknownCustomers(t *testing.T) {
	im, mock, custs, loans := newImporter(t)
	custs.rows[1] = model.Customer{ID: 1}
	mock.ExpectBegin()
	mock.ExpectCommit()

	st, err := im.ImportLoans(context.Background(), []model.Loan{
		{ID: 10, CustomerID: 1},
		{ID: 11, CustomerID: 404},
		{ID: 12, CustomerID: 1},
		{ID: 13, CustomerID: 404},
	})
	require.NoError(t, err)
	assert.Equal(t, Stats{Created: 2, Skipped: 2}, st)
	assert.Len(t, loans.rows, 2)
	assert.Equal(t, "created=2 updated=0 skipped=2", st.String())
}

func TestImportLoans_RollsBackOnError(t *testing.T) {
	im, mock, custs, loans := newImporter(t)
	custs.rows[1] = model.Customer{ID: 1}
	loans.err = errors.New("deadlock")
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := im.ImportLoans(context.Background(), []model.Loan{{ID: 10, CustomerID: 1}})
	assert.ErrorContains(t, err, "deadlock")
}
