package issue

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound  = errors.New("issue: not found")
	ErrForbidden = errors.New("issue: forbidden")
	ErrBadStatus = errors.New("issue: invalid status transition")
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) List(ctx context.Context, ownerID string, requestID string) ([]Record, error) {
	query := `
		SELECT i.id, i.request_id, i.subject, i.status::text, i.created_at, i.updated_at, i.resolved_at
		FROM issues i
		JOIN requests req ON req.id = i.request_id
		WHERE req.requester_id = $1
	`
	args := []any{ownerID}
	if requestID != "" {
		query += " AND i.request_id = $2"
		args = append(args, requestID)
	}
	query += " ORDER BY i.created_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("issue: list: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0, 8)
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.RequestID, &rec.Subject, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt, &rec.ResolvedAt); err != nil {
			return nil, fmt.Errorf("issue: scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("issue: iterate: %w", err)
	}
	return out, nil
}

func (r *Repository) Create(ctx context.Context, ownerID, requestID, subject string) (Record, error) {
	const query = `
		INSERT INTO issues (request_id, subject, status)
		SELECT $1, $3, 'under_review'
		FROM requests req
		WHERE req.id = $1 AND req.requester_id = $2
		RETURNING id, request_id, subject, status::text, created_at, updated_at, resolved_at
	`

	var rec Record
	err := r.pool.QueryRow(ctx, query, requestID, ownerID, subject).
		Scan(&rec.ID, &rec.RequestID, &rec.Subject, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt, &rec.ResolvedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrForbidden
		}
		return Record{}, fmt.Errorf("issue: create: %w", err)
	}
	return rec, nil
}

func (r *Repository) Resolve(ctx context.Context, ownerID, issueID string) (Record, error) {
	const query = `
		UPDATE issues i
		SET status = 'resolved', resolved_at = now(), updated_at = now()
		FROM requests req
		WHERE i.id = $1
		  AND i.request_id = req.id
		  AND req.requester_id = $2
		  AND i.status <> 'resolved'
		RETURNING i.id, i.request_id, i.subject, i.status::text, i.created_at, i.updated_at, i.resolved_at
	`

	var rec Record
	err := r.pool.QueryRow(ctx, query, issueID, ownerID).
		Scan(&rec.ID, &rec.RequestID, &rec.Subject, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt, &rec.ResolvedAt)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Record{}, fmt.Errorf("issue: resolve: %w", err)
	}

	const check = `
		SELECT i.status::text
		FROM issues i
		JOIN requests req ON req.id = i.request_id
		WHERE i.id = $1 AND req.requester_id = $2
	`
	var status Status
	if err := r.pool.QueryRow(ctx, check, issueID, ownerID).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrForbidden
		}
		return Record{}, fmt.Errorf("issue: resolve fetch: %w", err)
	}
	if status == StatusResolved {
		return Record{}, ErrBadStatus
	}
	return Record{}, ErrForbidden
}
