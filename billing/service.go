package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"serviceflow/sequence"
)

var (
	// ErrInvalidAmount signals a non-positive bill amount.
	ErrInvalidAmount = errors.New("billing: amount must be positive")
	// ErrInvalidGST signals a GST percentage outside 0-100.
	ErrInvalidGST = errors.New("billing: gst percent must be between 0 and 100")
)

// CodeAllocator mints bill codes (BILL/2025/0007). The series restarts each
// calendar year.
type CodeAllocator interface {
	Next(ctx context.Context, entity sequence.Entity) (string, error)
}

// Service raises and settles bills.
type Service struct {
	repo  Repository
	codes CodeAllocator
	idGen func() string
}

func NewService(repo Repository, codes CodeAllocator) *Service {
	return &Service{
		repo:  repo,
		codes: codes,
		idGen: func() string { return uuid.NewString() },
	}
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGen = gen
	return s
}

// IssueParams contains the input for raising a bill. Amount is in the minor
// currency unit.
type IssueParams struct {
	RequestCode  string
	CustomerID   string
	CustomerName string
	VendorID     string
	VendorName   string
	Description  string
	Amount       int64
	GSTPercent   int64
}

// Issue computes GST, mints the yearly bill code, and persists the bill as
// unpaid.
func (s *Service) Issue(ctx context.Context, params IssueParams) (Bill, error) {
	if params.Amount <= 0 {
		return Bill{}, ErrInvalidAmount
	}
	if params.GSTPercent < 0 || params.GSTPercent > 100 {
		return Bill{}, ErrInvalidGST
	}
	if strings.TrimSpace(params.RequestCode) == "" || strings.TrimSpace(params.CustomerID) == "" {
		return Bill{}, fmt.Errorf("billing: request code and customer are required")
	}

	code, err := s.codes.Next(ctx, sequence.EntityBill)
	if err != nil {
		return Bill{}, fmt.Errorf("billing: allocate bill code: %w", err)
	}

	gst := params.Amount * params.GSTPercent / 100
	return s.repo.Create(ctx, Bill{
		ID:           s.idGen(),
		Code:         code,
		RequestCode:  params.RequestCode,
		CustomerID:   params.CustomerID,
		CustomerName: params.CustomerName,
		VendorID:     params.VendorID,
		VendorName:   params.VendorName,
		Description:  strings.TrimSpace(params.Description),
		Amount:       params.Amount,
		GSTPercent:   params.GSTPercent,
		GSTAmount:    gst,
		TotalAmount:  params.Amount + gst,
		Status:       StatusUnpaid,
	})
}

// GetByCode returns a single bill.
func (s *Service) GetByCode(ctx context.Context, code string) (Bill, error) {
	return s.repo.GetByCode(ctx, code)
}

// ListForCustomer returns the customer's bills, newest first.
func (s *Service) ListForCustomer(ctx context.Context, customerID string, limit int) ([]Bill, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	return s.repo.ListByCustomer(ctx, customerID, limit)
}

// MarkPaid settles a bill.
func (s *Service) MarkPaid(ctx context.Context, code string) (Bill, error) {
	return s.repo.MarkPaid(ctx, code)
}
