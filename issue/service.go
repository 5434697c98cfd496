package issue

import "context"

type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, ownerID, requestID string) ([]Record, error) {
	return s.repo.List(ctx, ownerID, requestID)
}

func (s *Service) Create(ctx context.Context, ownerID, requestID, subject string) (Record, error) {
	return s.repo.Create(ctx, ownerID, requestID, subject)
}

func (s *Service) Resolve(ctx context.Context, ownerID, issueID string) (Record, error) {
	return s.repo.Resolve(ctx, ownerID, issueID)
}
