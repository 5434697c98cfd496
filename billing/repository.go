package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound signals the bill does not exist.
	ErrNotFound = errors.New("billing: bill not found")
	// ErrDuplicateCode signals a bill code collision.
	ErrDuplicateCode = errors.New("billing: duplicate bill code")
)

// Repository abstracts bill persistence.
type Repository interface {
	Create(ctx context.Context, bill Bill) (Bill, error)
	GetByCode(ctx context.Context, code string) (Bill, error)
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]Bill, error)
	MarkPaid(ctx context.Context, code string) (Bill, error)
}

const billColumns = `id, code, request_code, customer_id, customer_name, vendor_id, vendor_name,
	description, amount, gst_percent, gst_amount, total_amount, status, issued_at, paid_at`

// PGRepository persists bills in PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) Create(ctx context.Context, bill Bill) (Bill, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO bills (id, code, request_code, customer_id, customer_name, vendor_id, vendor_name,
			description, amount, gst_percent, gst_amount, total_amount, status, issued_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now())
		RETURNING `+billColumns,
		bill.ID, bill.Code, bill.RequestCode, bill.CustomerID, bill.CustomerName,
		bill.VendorID, bill.VendorName, bill.Description,
		bill.Amount, bill.GSTPercent, bill.GSTAmount, bill.TotalAmount, bill.Status,
	)
	created, err := scanBill(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Bill{}, ErrDuplicateCode
		}
		return Bill{}, fmt.Errorf("billing: insert bill: %w", err)
	}
	return created, nil
}

func (r *PGRepository) GetByCode(ctx context.Context, code string) (Bill, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+billColumns+` FROM bills WHERE code = $1`, code)
	bill, err := scanBill(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bill{}, ErrNotFound
		}
		return Bill{}, fmt.Errorf("billing: get bill %s: %w", code, err)
	}
	return bill, nil
}

func (r *PGRepository) ListByCustomer(ctx context.Context, customerID string, limit int) ([]Bill, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+billColumns+`
		FROM bills
		WHERE customer_id = $1
		ORDER BY issued_at DESC
		LIMIT $2`, customerID, limit)
	if err != nil {
		return nil, fmt.Errorf("billing: list bills: %w", err)
	}
	defer rows.Close()

	var bills []Bill
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, fmt.Errorf("billing: scan bill: %w", err)
		}
		bills = append(bills, bill)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("billing: iterate bills: %w", err)
	}
	return bills, nil
}

func (r *PGRepository) MarkPaid(ctx context.Context, code string) (Bill, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE bills
		SET status = $2, paid_at = now()
		WHERE code = $1
		RETURNING `+billColumns, code, StatusPaid)
	bill, err := scanBill(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bill{}, ErrNotFound
		}
		return Bill{}, fmt.Errorf("billing: mark bill %s paid: %w", code, err)
	}
	return bill, nil
}

func scanBill(row pgx.Row) (Bill, error) {
	var bill Bill
	err := row.Scan(
		&bill.ID, &bill.Code, &bill.RequestCode, &bill.CustomerID, &bill.CustomerName,
		&bill.VendorID, &bill.VendorName, &bill.Description,
		&bill.Amount, &bill.GSTPercent, &bill.GSTAmount, &bill.TotalAmount,
		&bill.Status, &bill.IssuedAt, &bill.PaidAt,
	)
	return bill, err
}
