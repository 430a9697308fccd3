package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmehdipour/credit-gateway/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// CustomersRepository reads and writes the customers table. Lookups return
// (nil, nil) when the row does not exist.
type CustomersRepository interface {
	GetByID(ctx context.Context, tx *sqlx.Tx, id int64) (*model.Customer, error)
	GetForUpdate(ctx context.Context, tx *sqlx.Tx, id int64) (*model.Customer, error)
	ExistsByPhone(ctx context.Context, phone int64) (bool, error)
	Insert(ctx context.Context, tx *sqlx.Tx, c model.Customer) (int64, error)
	Upsert(ctx context.Context, tx *sqlx.Tx, c model.Customer) (created bool, err error)
	AddDebt(ctx context.Context, tx *sqlx.Tx, id int64, delta decimal.Decimal) error
	SetDebt(ctx context.Context, tx *sqlx.Tx, id int64, debt decimal.Decimal) error
	ListIDs(ctx context.Context) ([]int64, error)
}

type CustomersRepositoryImpl struct {
	db *sqlx.DB
}

func NewCustomersRepository(db *sqlx.DB) *CustomersRepositoryImpl {
	return &CustomersRepositoryImpl{db: db}
}

var _ CustomersRepository = (*CustomersRepositoryImpl)(nil)

const customerColumns = `id, first_name, last_name, age, phone_number, monthly_salary,
	approved_limit, current_debt, created_at, updated_at`

func (r *CustomersRepositoryImpl) GetByID(ctx context.Context, tx *sqlx.Tx, id int64) (*model.Customer, error) {
	return r.get(ctx, tx, `SELECT `+customerColumns+` FROM customers WHERE id = ? LIMIT 1`, id)
}

// GetForUpdate locks the customer row until tx ends, serialising concurrent
// loan creation for the same customer.
func (r *CustomersRepositoryImpl) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id int64) (*model.Customer, error) {
	return r.get(ctx, tx, `SELECT `+customerColumns+` FROM customers WHERE id = ? FOR UPDATE`, id)
}

func (r *CustomersRepositoryImpl) get(ctx context.Context, tx *sqlx.Tx, q string, id int64) (*model.Customer, error) {
	var c model.Customer
	err := sqlx.GetContext(ctx, on(r.db, tx), &c, q, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CustomersRepositoryImpl) ExistsByPhone(ctx context.Context, phone int64) (bool, error) {
	var one int
	err := r.db.QueryRowxContext(ctx, `SELECT 1 FROM customers WHERE phone_number = ? LIMIT 1`, phone).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Insert adds a new customer and returns its generated id.
func (r *CustomersRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, c model.Customer) (int64, error) {
	const q = `
		INSERT INTO customers
		    (first_name, last_name, age, phone_number, monthly_salary, approved_limit, current_debt, created_at, updated_at)
		VALUES
		    (?,          ?,         ?,   ?,            ?,              ?,              ?,            NOW(),      NOW())
	`
	res, err := on(r.db, tx).ExecContext(ctx, q,
		c.FirstName, c.LastName, c.Age, c.PhoneNumber, c.MonthlySalary, c.ApprovedLimit, c.CurrentDebt,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Upsert writes a customer with an explicit id (ingestion). MySQL reports one
// affected row for an insert and two for an update.
func (r *CustomersRepositoryImpl) Upsert(ctx context.Context, tx *sqlx.Tx, c model.Customer) (bool, error) {
	const q = `
		INSERT INTO customers
		    (id, first_name, last_name, age, phone_number, monthly_salary, approved_limit, current_debt, created_at, updated_at)
		VALUES
		    (?,  ?,          ?,         ?,   ?,            ?,              ?,              0,            NOW(),      NOW())
		ON DUPLICATE KEY UPDATE
		    first_name     = VALUES(first_name),
		    last_name      = VALUES(last_name),
		    age            = VALUES(age),
		    phone_number   = VALUES(phone_number),
		    monthly_salary = VALUES(monthly_salary),
		    approved_limit = VALUES(approved_limit),
		    updated_at     = VALUES(updated_at)
	`
	var created bool
	err := withTx(ctx, r.db, tx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, q,
			c.ID, c.FirstName, c.LastName, c.Age, c.PhoneNumber, c.MonthlySalary, c.ApprovedLimit,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		created = n == 1
		return err
	})
	return created, err
}

func (r *CustomersRepositoryImpl) AddDebt(ctx context.Context, tx *sqlx.Tx, id int64, delta decimal.Decimal) error {
	_, err := on(r.db, tx).ExecContext(ctx, `
		UPDATE customers
		SET current_debt = current_debt + ?, updated_at = NOW()
		WHERE id = ?
	`, delta, id)
	return err
}

func (r *CustomersRepositoryImpl) SetDebt(ctx context.Context, tx *sqlx.Tx, id int64, debt decimal.Decimal) error {
	_, err := on(r.db, tx).ExecContext(ctx, `
		UPDATE customers
		SET current_debt = ?, updated_at = NOW()
		WHERE id = ?
	`, debt, id)
	return err
}

func (r *CustomersRepositoryImpl) ListIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, `SELECT id FROM customers ORDER BY id`); err != nil {
		return nil, err
	}
	return ids, nil
}
