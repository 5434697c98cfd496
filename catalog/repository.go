package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound signals the requested category does not exist.
var ErrNotFound = errors.New("catalog: not found")

// Repository provides read access to service categories.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID fetches a category by its primary key.
func (r *Repository) GetByID(ctx context.Context, id string) (Category, error) {
	const query = `
		SELECT id, name, active, created_at
		FROM service_categories
		WHERE id = $1
	`

	var category Category
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&category.ID,
		&category.Name,
		&category.Active,
		&category.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Category{}, ErrNotFound
		}
		return Category{}, fmt.Errorf("catalog: query by id: %w", err)
	}

	return category, nil
}

// List fetches up to limit active categories ordered by name.
func (r *Repository) List(ctx context.Context, limit int) ([]Category, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	const query = `
		SELECT id, name, active, created_at
		FROM service_categories
		WHERE active
		ORDER BY name ASC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("catalog: list: %w", err)
	}
	defer rows.Close()

	categories := make([]Category, 0, limit)
	for rows.Next() {
		var category Category
		if err := rows.Scan(&category.ID, &category.Name, &category.Active, &category.CreatedAt); err != nil {
			return nil, fmt.Errorf("catalog: scan category: %w", err)
		}
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterate categories: %w", err)
	}

	return categories, nil
}
