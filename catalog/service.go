package catalog

import "context"

// CategoryReader abstracts repository operations for the service.
type CategoryReader interface {
	GetByID(ctx context.Context, id string) (Category, error)
	List(ctx context.Context, limit int) ([]Category, error)
}

// Service exposes read-level catalog operations.
type Service struct {
	repo CategoryReader
}

// NewService builds a Service using the provided repository.
func NewService(repo CategoryReader) *Service {
	return &Service{repo: repo}
}

// GetByID returns the category for the given identifier.
func (s *Service) GetByID(ctx context.Context, id string) (Category, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns up to limit active categories.
func (s *Service) List(ctx context.Context, limit int) ([]Category, error) {
	return s.repo.List(ctx, limit)
}
