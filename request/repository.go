package request

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound signals the referenced request does not exist.
	ErrNotFound = errors.New("request: not found")
	// ErrAssignmentNotFound signals the referenced assignment row is gone.
	ErrAssignmentNotFound = errors.New("request: assignment not found")
	// ErrDuplicateVendor signals a second assignment row for the same vendor
	// slipped past the engine's dedup; the unique constraint is the backstop.
	ErrDuplicateVendor = errors.New("request: vendor already assigned")
)

// Repository owns the durable representation of requests and their
// assignments. Mutating methods take the caller's transaction so the whole
// read-mutate-recompute-write sequence commits atomically under the request
// row lock.
type Repository interface {
	Create(ctx context.Context, tx pgx.Tx, req Request) (Request, error)
	GetByCode(ctx context.Context, code string) (Request, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, code string) (Request, error)
	ListByRequester(ctx context.Context, requesterID string, limit int) ([]Request, error)
	ListByVendor(ctx context.Context, vendorID string, limit int) ([]Request, error)
	ListRecent(ctx context.Context, limit int) ([]Request, error)
	InsertAssignment(ctx context.Context, tx pgx.Tx, a Assignment) (Assignment, error)
	UpdateAssignmentStatus(ctx context.Context, tx pgx.Tx, assignmentID string, status AssignmentStatus) error
	UpdateStatus(ctx context.Context, tx pgx.Tx, requestID string, status Status) error
	Delete(ctx context.Context, tx pgx.Tx, code string) error
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const (
	requestColumns         = `id, code, requester_id, items, scheduled_at, status, created_at, updated_at`
	prefixedRequestColumns = `r.id, r.code, r.requester_id, r.items, r.scheduled_at, r.status, r.created_at, r.updated_at`
)

func (r *PGRepository) Create(ctx context.Context, tx pgx.Tx, req Request) (Request, error) {
	const query = `
		INSERT INTO requests (id, code, requester_id, items, scheduled_at, status)
		VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6)
		RETURNING ` + requestColumns

	created, err := scanRequestRow(tx.QueryRow(ctx, query,
		req.ID,
		req.Code,
		req.RequesterID,
		req.Items,
		req.ScheduledAt,
		req.Status,
	))
	if err != nil {
		return Request{}, fmt.Errorf("request: insert: %w", err)
	}
	created.Assignments = []Assignment{}
	return created, nil
}

func (r *PGRepository) GetByCode(ctx context.Context, code string) (Request, error) {
	const query = `SELECT ` + requestColumns + ` FROM requests WHERE code = $1`

	req, err := scanRequestRow(r.pool.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrNotFound
		}
		return Request{}, fmt.Errorf("request: get by code: %w", err)
	}

	req.Assignments, err = listAssignments(ctx, r.pool, req.ID)
	if err != nil {
		return Request{}, err
	}
	return req, nil
}

// GetForUpdate locks the request row for the duration of the transaction and
// loads the assignment list after the lock is held, so the caller sees a
// serialized view of both.
func (r *PGRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, code string) (Request, error) {
	const query = `SELECT ` + requestColumns + ` FROM requests WHERE code = $1 FOR UPDATE`

	req, err := scanRequestRow(tx.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrNotFound
		}
		return Request{}, fmt.Errorf("request: get for update: %w", err)
	}

	req.Assignments, err = listAssignments(ctx, tx, req.ID)
	if err != nil {
		return Request{}, err
	}
	return req, nil
}

// ListByRequester returns a customer's own requests, newest first.
func (r *PGRepository) ListByRequester(ctx context.Context, requesterID string, limit int) ([]Request, error) {
	const query = `SELECT ` + requestColumns + ` FROM requests
		WHERE requester_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`
	return r.listRequests(ctx, query, requesterID, limit)
}

// ListByVendor returns the requests carrying an assignment for the vendor,
// newest first.
func (r *PGRepository) ListByVendor(ctx context.Context, vendorID string, limit int) ([]Request, error) {
	const query = `SELECT ` + prefixedRequestColumns + ` FROM requests r
		JOIN assignments a ON a.request_id = r.id
		WHERE a.vendor_id = $1
		ORDER BY r.created_at DESC, r.id DESC
		LIMIT $2`
	return r.listRequests(ctx, query, vendorID, limit)
}

// ListRecent returns the most recent requests across all requesters.
func (r *PGRepository) ListRecent(ctx context.Context, limit int) ([]Request, error) {
	const query = `SELECT ` + requestColumns + ` FROM requests
		ORDER BY created_at DESC, id DESC
		LIMIT $1`
	return r.listRequests(ctx, query, limit)
}

func (r *PGRepository) listRequests(ctx context.Context, query string, args ...any) ([]Request, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("request: list: %w", err)
	}
	defer rows.Close()

	requests := make([]Request, 0, 16)
	for rows.Next() {
		req, err := scanRequestRow(rows)
		if err != nil {
			return nil, fmt.Errorf("request: scan listed request: %w", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("request: iterate requests: %w", err)
	}

	if err := attachAssignments(ctx, r.pool, requests); err != nil {
		return nil, err
	}
	return requests, nil
}

// attachAssignments loads the assignment lists for a batch of requests in one
// query and distributes them by request id.
func attachAssignments(ctx context.Context, q querier, requests []Request) error {
	if len(requests) == 0 {
		return nil
	}

	ids := make([]string, 0, len(requests))
	index := make(map[string]int, len(requests))
	for i := range requests {
		requests[i].Assignments = []Assignment{}
		ids = append(ids, requests[i].ID)
		index[requests[i].ID] = i
	}

	const query = `
		SELECT id, request_id, vendor_id, vendor_name, vendor_contact, items, status, created_at, updated_at
		FROM assignments
		WHERE request_id = ANY ($1)
		ORDER BY created_at ASC, id ASC
	`

	rows, err := q.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("request: batch list assignments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.ID, &a.RequestID, &a.VendorID, &a.VendorName, &a.VendorContact, &a.Items, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return fmt.Errorf("request: scan assignment: %w", err)
		}
		if i, ok := index[a.RequestID]; ok {
			requests[i].Assignments = append(requests[i].Assignments, a)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("request: iterate assignments: %w", err)
	}
	return nil
}

func (r *PGRepository) InsertAssignment(ctx context.Context, tx pgx.Tx, a Assignment) (Assignment, error) {
	const query = `
		INSERT INTO assignments (id, request_id, vendor_id, vendor_name, vendor_contact, items, status)
		VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7)
		RETURNING id, request_id, vendor_id, vendor_name, vendor_contact, items, status, created_at, updated_at
	`

	var created Assignment
	err := tx.QueryRow(ctx, query,
		a.ID,
		a.RequestID,
		a.VendorID,
		a.VendorName,
		a.VendorContact,
		a.Items,
		a.Status,
	).Scan(
		&created.ID,
		&created.RequestID,
		&created.VendorID,
		&created.VendorName,
		&created.VendorContact,
		&created.Items,
		&created.Status,
		&created.CreatedAt,
		&created.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Assignment{}, ErrDuplicateVendor
		}
		return Assignment{}, fmt.Errorf("request: insert assignment: %w", err)
	}
	return created, nil
}

func (r *PGRepository) UpdateAssignmentStatus(ctx context.Context, tx pgx.Tx, assignmentID string, status AssignmentStatus) error {
	const query = `
		UPDATE assignments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
	`

	tag, err := tx.Exec(ctx, query, assignmentID, status)
	if err != nil {
		return fmt.Errorf("request: update assignment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAssignmentNotFound
	}
	return nil
}

func (r *PGRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, requestID string, status Status) error {
	const query = `
		UPDATE requests
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
	`

	tag, err := tx.Exec(ctx, query, requestID, status)
	if err != nil {
		return fmt.Errorf("request: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the request and, via the FK cascade, its assignments.
func (r *PGRepository) Delete(ctx context.Context, tx pgx.Tx, code string) error {
	tag, err := tx.Exec(ctx, `DELETE FROM requests WHERE code = $1`, code)
	if err != nil {
		return fmt.Errorf("request: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listAssignments(ctx context.Context, q querier, requestID string) ([]Assignment, error) {
	const query = `
		SELECT id, request_id, vendor_id, vendor_name, vendor_contact, items, status, created_at, updated_at
		FROM assignments
		WHERE request_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := q.Query(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("request: list assignments: %w", err)
	}
	defer rows.Close()

	assignments := make([]Assignment, 0, 4)
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.ID, &a.RequestID, &a.VendorID, &a.VendorName, &a.VendorContact, &a.Items, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("request: scan assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("request: iterate assignments: %w", err)
	}
	return assignments, nil
}

func scanRequestRow(row pgx.Row) (Request, error) {
	var req Request
	err := row.Scan(
		&req.ID,
		&req.Code,
		&req.RequesterID,
		&req.Items,
		&req.ScheduledAt,
		&req.Status,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return Request{}, err
	}
	return req, nil
}
