// Package ingest loads customer and loan spreadsheets into MySQL.
package ingest

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jmehdipour/credit-gateway/internal/model"
	"github.com/jmehdipour/credit-gateway/internal/util"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	customerColumns = 7 // customer_id first_name last_name age phone_number monthly_salary approved_limit
	loanColumns     = 9 // customer_id loan_id loan_amount tenure interest_rate monthly_payment emis_paid_on_time start_date end_date
)

// RowError reports a row that could not be parsed. Rows are 1-based as shown
// in a spreadsheet.
type RowError struct {
	Row    int
	Column string
	Err    error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d, %s: %v", e.Row, e.Column, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// readRows returns the data rows of the workbook's first sheet with raw cell
// values, skipping the header. Blank and short rows are dropped and counted.
func readRows(r io.Reader, width int) (rows [][]string, lines []int, skipped int, err error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, 0, fmt.Errorf("workbook has no sheets")
	}

	all, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, nil, 0, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}

	for i, row := range all {
		if i == 0 {
			continue // header
		}
		if len(row) < width || strings.TrimSpace(row[0]) == "" {
			skipped++
			continue
		}
		rows = append(rows, row)
		lines = append(lines, i+1)
	}
	return rows, lines, skipped, nil
}

// ReadCustomers parses customer_data.xlsx.
func ReadCustomers(r io.Reader) ([]model.Customer, int, error) {
	rows, lines, skipped, err := readRows(r, customerColumns)
	if err != nil {
		return nil, 0, err
	}

	out := make([]model.Customer, 0, len(rows))
	for i, row := range rows {
		p := parser{row: row, line: lines[i]}
		c := model.Customer{
			ID:            p.whole(0, "customer_id"),
			FirstName:     p.text(1),
			LastName:      p.text(2),
			Age:           int(p.whole(3, "age")),
			PhoneNumber:   p.whole(4, "phone_number"),
			MonthlySalary: p.amount(5, "monthly_salary"),
			ApprovedLimit: p.amount(6, "approved_limit"),
			CurrentDebt:   decimal.Zero,
		}
		if p.err == nil && !util.ValidPhone(c.PhoneNumber) {
			p.fail("phone_number", fmt.Errorf("%d has fewer than 10 digits", c.PhoneNumber))
		}
		if p.err != nil {
			return nil, 0, p.err
		}
		out = append(out, c)
	}
	return out, skipped, nil
}

// ReadLoans parses loan_data.xlsx.
func ReadLoans(r io.Reader) ([]model.Loan, int, error) {
	rows, lines, skipped, err := readRows(r, loanColumns)
	if err != nil {
		return nil, 0, err
	}

	out := make([]model.Loan, 0, len(rows))
	for i, row := range rows {
		p := parser{row: row, line: lines[i]}
		l := model.Loan{
			CustomerID:       p.whole(0, "customer_id"),
			ID:               p.whole(1, "loan_id"),
			LoanAmount:       p.amount(2, "loan_amount"),
			Tenure:           int(p.whole(3, "tenure")),
			InterestRate:     p.amount(4, "interest_rate"),
			MonthlyRepayment: p.amount(5, "monthly_payment"),
			EMIsPaidOnTime:   int(p.whole(6, "emis_paid_on_time")),
			StartDate:        p.date(7, "start_date"),
			EndDate:          p.date(8, "end_date"),
		}
		if p.err != nil {
			return nil, 0, p.err
		}
		out = append(out, l)
	}
	return out, skipped, nil
}

// parser keeps the first error so a row can be read field by field.
type parser struct {
	row  []string
	line int
	err  error
}

func (p *parser) fail(col string, err error) {
	if p.err == nil {
		p.err = &RowError{Row: p.line, Column: col, Err: err}
	}
}

func (p *parser) text(i int) string { return strings.TrimSpace(p.row[i]) }

func (p *parser) amount(i int, col string) decimal.Decimal {
	d, err := decimal.NewFromString(p.text(i))
	if err != nil {
		p.fail(col, err)
		return decimal.Zero
	}
	return d
}

// whole accepts whole numbers written as floats ("12.0").
func (p *parser) whole(i int, col string) int64 {
	d := p.amount(i, col)
	if !d.Equal(d.Truncate(0)) {
		p.fail(col, fmt.Errorf("%s is not a whole number", d))
		return 0
	}
	return d.IntPart()
}

// date accepts Excel serial dates and ISO dates.
func (p *parser) date(i int, col string) time.Time {
	s := p.text(i)
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			p.fail(col, err)
			return time.Time{}
		}
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	for _, layout := range []string{time.DateOnly, time.DateTime, "02/01/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		}
	}
	p.fail(col, fmt.Errorf("unrecognised date %q", s))
	return time.Time{}
}
