package lending

import (
	"context"
	"time"

	"github.com/jmehdipour/credit-gateway/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// fakeCustomers keeps customers in memory; the func fields override single
// methods when a test needs an error.
type fakeCustomers struct {
	rows map[int64]*model.Customer
	next int64

	insertFn func(c model.Customer) (int64, error)
	locked   []int64
}

func newFakeCustomers(cs ...model.Customer) *fakeCustomers {
	f := &fakeCustomers{rows: map[int64]*model.Customer{}, next: 100}
	for i := range cs {
		c := cs[i]
		f.rows[c.ID] = &c
	}
	return f
}

func (f *fakeCustomers) GetByID(_ context.Context, _ *sqlx.Tx, id int64) (*model.Customer, error) {
	c, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCustomers) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id int64) (*model.Customer, error) {
	f.locked = append(f.locked, id)
	return f.GetByID(ctx, tx, id)
}

func (f *fakeCustomers) ExistsByPhone(_ context.Context, phone int64) (bool, error) {
	for _, c := range f.rows {
		if c.PhoneNumber == phone {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeCustomers) Insert(_ context.Context, _ *sqlx.Tx, c model.Customer) (int64, error) {
	if f.insertFn != nil {
		return f.insertFn(c)
	}
	f.next++
	c.ID = f.next
	f.rows[c.ID] = &c
	return c.ID, nil
}

func (f *fakeCustomers) Upsert(_ context.Context, _ *sqlx.Tx, c model.Customer) (bool, error) {
	_, existed := f.rows[c.ID]
	f.rows[c.ID] = &c
	return !existed, nil
}

func (f *fakeCustomers) AddDebt(_ context.Context, _ *sqlx.Tx, id int64, delta decimal.Decimal) error {
	f.rows[id].CurrentDebt = f.rows[id].CurrentDebt.Add(delta)
	return nil
}

func (f *fakeCustomers) SetDebt(_ context.Context, _ *sqlx.Tx, id int64, debt decimal.Decimal) error {
	f.rows[id].CurrentDebt = debt
	return nil
}

func (f *fakeCustomers) ListIDs(context.Context) ([]int64, error) {
	ids := make([]int64, 0, len(f.rows))
	for id := range f.rows {
		ids = append(ids, id)
	}
	return ids, nil
}

type fakeLoans struct {
	rows []model.Loan
	next int64
	asOf []time.Time
}

func (f *fakeLoans) GetByID(_ context.Context, id int64) (*model.Loan, error) {
	for i := range f.rows {
		if f.rows[i].ID == id {
			l := f.rows[i]
			return &l, nil
		}
	}
	return nil, nil
}

func (f *fakeLoans) ListByCustomer(_ context.Context, _ *sqlx.Tx, customerID int64) ([]model.Loan, error) {
	var out []model.Loan
	for _, l := range f.rows {
		if l.CustomerID == customerID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeLoans) ListActiveByCustomer(_ context.Context, customerID int64, asOf time.Time) ([]model.Loan, error) {
	f.asOf = append(f.asOf, asOf)
	var out []model.Loan
	for _, l := range f.rows {
		if l.CustomerID == customerID && l.Active(asOf) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeLoans) Insert(_ context.Context, _ *sqlx.Tx, l model.Loan) (int64, error) {
	f.next++
	l.ID = 1000 + f.next
	f.rows = append(f.rows, l)
	return l.ID, nil
}

func (f *fakeLoans) Upsert(_ context.Context, _ *sqlx.Tx, l model.Loan) (bool, error) {
	f.rows = append(f.rows, l)
	return true, nil
}

type fakeOutbox struct {
	events   []model.OutboxEvent
	inTx     []bool
	appendFn func(model.OutboxEvent) error
}

func (f *fakeOutbox) Append(_ context.Context, tx *sqlx.Tx, evt model.OutboxEvent) error {
	if f.appendFn != nil {
		if err := f.appendFn(evt); err != nil {
			return err
		}
	}
	f.events = append(f.events, evt)
	f.inTx = append(f.inTx, tx != nil)
	return nil
}
