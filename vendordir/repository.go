package vendordir

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound signals the requested vendor does not exist.
	ErrNotFound = errors.New("vendordir: not found")
	// ErrDuplicateMobile signals the mobile number is already registered.
	ErrDuplicateMobile = errors.New("vendordir: mobile already registered")
)

// Repository provides access to vendor profiles.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateParams contains write parameters for registering a vendor. UserID is
// optional; when set it binds the profile to the acting login account.
type CreateParams struct {
	Code     string
	Name     string
	Mobile   string
	Category string
	UserID   string
}

const profileColumns = `id, code, name, mobile, category, COALESCE(user_id::text, ''), active, created_at`

func (r *Repository) Create(ctx context.Context, params CreateParams) (Profile, error) {
	const query = `
		INSERT INTO vendors (code, name, mobile, category, user_id)
		VALUES ($1, $2, $3, $4, NULLIF($5, '')::uuid)
		RETURNING ` + profileColumns

	profile, err := scanProfile(r.pool.QueryRow(ctx, query, params.Code, params.Name, params.Mobile, params.Category, params.UserID))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Profile{}, ErrDuplicateMobile
		}
		return Profile{}, fmt.Errorf("vendordir: create vendor: %w", err)
	}
	return profile, nil
}

// GetByID fetches a vendor profile by its primary key.
func (r *Repository) GetByID(ctx context.Context, id string) (Profile, error) {
	const query = `SELECT ` + profileColumns + ` FROM vendors WHERE id = $1`

	profile, err := scanProfile(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("vendordir: query by id: %w", err)
	}
	return profile, nil
}

// GetByUserID fetches the profile bound to a login account.
func (r *Repository) GetByUserID(ctx context.Context, userID string) (Profile, error) {
	const query = `SELECT ` + profileColumns + ` FROM vendors WHERE user_id = $1`

	profile, err := scanProfile(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("vendordir: query by user id: %w", err)
	}
	return profile, nil
}

// List fetches up to limit vendor profiles ordered by name.
func (r *Repository) List(ctx context.Context, limit int) ([]Profile, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	const query = `
		SELECT ` + profileColumns + `
		FROM vendors
		ORDER BY name ASC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("vendordir: list: %w", err)
	}
	defer rows.Close()

	profiles := make([]Profile, 0, limit)
	for rows.Next() {
		var profile Profile
		if err := rows.Scan(&profile.ID, &profile.Code, &profile.Name, &profile.Mobile, &profile.Category, &profile.UserID, &profile.Active, &profile.CreatedAt); err != nil {
			return nil, fmt.Errorf("vendordir: scan profile: %w", err)
		}
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vendordir: iterate profiles: %w", err)
	}

	return profiles, nil
}

// SetActive flips the vendor's active flag.
func (r *Repository) SetActive(ctx context.Context, id string, active bool) (Profile, error) {
	const query = `
		UPDATE vendors
		SET active = $2
		WHERE id = $1
		RETURNING ` + profileColumns

	profile, err := scanProfile(r.pool.QueryRow(ctx, query, id, active))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("vendordir: set active: %w", err)
	}
	return profile, nil
}

func scanProfile(row pgx.Row) (Profile, error) {
	var profile Profile
	err := row.Scan(
		&profile.ID,
		&profile.Code,
		&profile.Name,
		&profile.Mobile,
		&profile.Category,
		&profile.UserID,
		&profile.Active,
		&profile.CreatedAt,
	)
	if err != nil {
		return Profile{}, err
	}
	return profile, nil
}
