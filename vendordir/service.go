package vendordir

import (
	"context"
	"fmt"
	"strings"

	"serviceflow/sequence"
)

// ProfileStore abstracts repository operations for the service.
type ProfileStore interface {
	Create(ctx context.Context, params CreateParams) (Profile, error)
	GetByID(ctx context.Context, id string) (Profile, error)
	GetByUserID(ctx context.Context, userID string) (Profile, error)
	List(ctx context.Context, limit int) ([]Profile, error)
	SetActive(ctx context.Context, id string, active bool) (Profile, error)
}

// CodeAllocator mints human-readable vendor codes (VENDOR-012).
type CodeAllocator interface {
	Next(ctx context.Context, entity sequence.Entity) (string, error)
}

// Service exposes business-level vendor directory operations.
type Service struct {
	repo  ProfileStore
	codes CodeAllocator
}

// NewService builds a Service using the provided repository and allocator.
func NewService(repo ProfileStore, codes CodeAllocator) *Service {
	return &Service{repo: repo, codes: codes}
}

// RegisterParams contains vendor registration input. UserID optionally binds
// the profile to an existing login account so that account can self-report on
// its assignments.
type RegisterParams struct {
	Name     string
	Mobile   string
	Category string
	UserID   string
}

// Register creates a vendor profile with a freshly allocated code.
func (s *Service) Register(ctx context.Context, params RegisterParams) (Profile, error) {
	name := strings.TrimSpace(params.Name)
	mobile := strings.TrimSpace(params.Mobile)
	if name == "" || mobile == "" {
		return Profile{}, fmt.Errorf("vendordir: name and mobile are required")
	}

	code, err := s.codes.Next(ctx, sequence.EntityVendor)
	if err != nil {
		return Profile{}, fmt.Errorf("vendordir: allocate vendor code: %w", err)
	}

	return s.repo.Create(ctx, CreateParams{
		Code:     code,
		Name:     name,
		Mobile:   mobile,
		Category: strings.TrimSpace(params.Category),
		UserID:   strings.TrimSpace(params.UserID),
	})
}

// Lookup returns the vendor profile for the given identifier. Callers decide
// how to treat inactive vendors; the profile's Active flag is authoritative.
func (s *Service) Lookup(ctx context.Context, id string) (Profile, error) {
	return s.repo.GetByID(ctx, id)
}

// LookupByUser returns the vendor profile bound to the given login account.
func (s *Service) LookupByUser(ctx context.Context, userID string) (Profile, error) {
	return s.repo.GetByUserID(ctx, userID)
}

// List returns up to limit vendor profiles.
func (s *Service) List(ctx context.Context, limit int) ([]Profile, error) {
	return s.repo.List(ctx, limit)
}

// Deactivate disables a vendor so new assignments skip it.
func (s *Service) Deactivate(ctx context.Context, id string) (Profile, error) {
	return s.repo.SetActive(ctx, id, false)
}
