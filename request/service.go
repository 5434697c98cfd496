package request

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"serviceflow/auth"
	"serviceflow/notify"
	"serviceflow/sequence"
	"serviceflow/vendordir"
)

var (
	// ErrNoItems signals a request created without any service items.
	ErrNoItems = errors.New("request: requested items must not be empty")
	// ErrPartialSchedule signals only one of schedule date and time was given.
	ErrPartialSchedule = errors.New("request: schedule date and time must be set together")
	// ErrInvalidReportStatus signals a self-report with a non-terminal status.
	ErrInvalidReportStatus = errors.New("request: reported status must be completed or cancelled")
	// ErrNotAssigned signals the vendor holds no assignment on the request.
	ErrNotAssigned = errors.New("request: vendor not assigned to this request")
	// ErrConflict signals lock contention that survived the bounded retries.
	ErrConflict = errors.New("request: concurrent update conflict")
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// VendorDirectory is the engine's view of the vendor registry. LookupByUser
// resolves the vendor profile bound to a login account; self-reports act on
// that profile's assignment, never on one named by the caller.
type VendorDirectory interface {
	Lookup(ctx context.Context, vendorID string) (vendordir.Profile, error)
	LookupByUser(ctx context.Context, userID string) (vendordir.Profile, error)
}

// CodeAllocator mints human-readable request codes (REQ-003).
type CodeAllocator interface {
	Next(ctx context.Context, entity sequence.Entity) (string, error)
}

// Service is the request assignment and lifecycle engine. Every mutating
// operation serializes on the request row lock inside one transaction;
// notification dispatch happens strictly after commit.
type Service struct {
	pool       TxBeginner
	repo       Repository
	vendors    VendorDirectory
	dispatcher notify.Dispatcher
	codes      CodeAllocator
	now        func() time.Time
	idGen      func() string
	logger     *log.Logger
}

func NewService(pool TxBeginner, repo Repository, vendors VendorDirectory, dispatcher notify.Dispatcher, codes CodeAllocator) *Service {
	return &Service{
		pool:       pool,
		repo:       repo,
		vendors:    vendors,
		dispatcher: dispatcher,
		codes:      codes,
		now:        time.Now,
		idGen:      func() string { return uuid.NewString() },
		logger:     log.Default(),
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGen = gen
	return s
}

func (s *Service) WithLogger(logger *log.Logger) *Service {
	s.logger = logger
	return s
}

// CreateParams contains request creation input. ScheduleDate (2006-01-02)
// and ScheduleTime (15:04) combine into the scheduled service moment; both
// must be present or both absent.
type CreateParams struct {
	RequesterID  string
	ActorRole    auth.Role
	Items        []string
	ScheduleDate string
	ScheduleTime string
}

// Create validates the input, mints the request code, and persists the
// request in pending state.
func (s *Service) Create(ctx context.Context, params CreateParams) (Request, error) {
	if err := requirePermission(OpCreate, params.ActorRole); err != nil {
		return Request{}, err
	}
	if params.RequesterID == "" {
		return Request{}, fmt.Errorf("request: missing requester id")
	}

	items := dedupeItems(params.Items)
	if len(items) == 0 {
		return Request{}, ErrNoItems
	}

	scheduledAt, err := combineSchedule(params.ScheduleDate, params.ScheduleTime)
	if err != nil {
		return Request{}, err
	}

	code, err := s.codes.Next(ctx, sequence.EntityRequest)
	if err != nil {
		return Request{}, fmt.Errorf("request: allocate code: %w", err)
	}

	var created Request
	err = s.inTx(ctx, func(tx pgx.Tx) error {
		created, err = s.repo.Create(ctx, tx, Request{
			ID:          s.idGen(),
			Code:        code,
			RequesterID: params.RequesterID,
			Items:       items,
			ScheduledAt: scheduledAt,
			Status:      StatusPending,
		})
		return err
	})
	if err != nil {
		return Request{}, err
	}
	return created, nil
}

// GetByCode returns a read-only snapshot of the request and its assignments.
func (s *Service) GetByCode(ctx context.Context, code string) (Request, error) {
	return s.repo.GetByCode(ctx, code)
}

// ListParams scopes a request listing to the acting account.
type ListParams struct {
	ActorID   string
	ActorRole auth.Role
	Limit     int
}

// List returns the requests visible to the actor: customers see their own,
// vendors see the requests carrying their assignment, staff and admin see the
// most recent across all requesters.
func (s *Service) List(ctx context.Context, params ListParams) ([]Request, error) {
	if err := requirePermission(OpList, params.ActorRole); err != nil {
		return nil, err
	}

	limit := params.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	switch params.ActorRole {
	case auth.RoleCustomer:
		return s.repo.ListByRequester(ctx, params.ActorID, limit)
	case auth.RoleVendor:
		profile, err := s.vendors.LookupByUser(ctx, params.ActorID)
		if err != nil {
			if errors.Is(err, vendordir.ErrNotFound) {
				return []Request{}, nil
			}
			return nil, fmt.Errorf("request: resolve acting vendor: %w", err)
		}
		return s.repo.ListByVendor(ctx, profile.ID, limit)
	default:
		return s.repo.ListRecent(ctx, limit)
	}
}

// Delete removes a request and its assignments. Admin only; assignments have
// no independent deletion path.
func (s *Service) Delete(ctx context.Context, code string, actorRole auth.Role) error {
	if err := requirePermission(OpDelete, actorRole); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx pgx.Tx) error {
		return s.repo.Delete(ctx, tx, code)
	})
}

// ReportParams contains a vendor's self-report on its own assignment. ActorID
// is the reporting account; the targeted assignment is always the one held by
// the vendor profile bound to that account.
type ReportParams struct {
	Code      string
	ActorID   string
	ActorRole auth.Role
	NewStatus AssignmentStatus
}

// ReportStatus applies a vendor's completion or cancellation report to its
// own assignment and recomputes the request status. Accounts without a bound
// vendor profile cannot report at all, so one vendor can never move another
// vendor's assignment.
func (s *Service) ReportStatus(ctx context.Context, params ReportParams) (Status, error) {
	if err := requirePermission(OpReport, params.ActorRole); err != nil {
		return "", err
	}
	if params.NewStatus != AssignmentCompleted && params.NewStatus != AssignmentCancelled {
		return "", ErrInvalidReportStatus
	}

	profile, err := s.vendors.LookupByUser(ctx, params.ActorID)
	if err != nil {
		if errors.Is(err, vendordir.ErrNotFound) {
			return "", ErrForbidden
		}
		return "", fmt.Errorf("request: resolve acting vendor: %w", err)
	}

	var status Status
	err = s.inTx(ctx, func(tx pgx.Tx) error {
		req, err := s.repo.GetForUpdate(ctx, tx, params.Code)
		if err != nil {
			return err
		}

		owned, ok := req.AssignmentFor(profile.ID)
		if !ok {
			return ErrNotAssigned
		}

		if owned.Status != params.NewStatus {
			if err := s.repo.UpdateAssignmentStatus(ctx, tx, owned.ID, params.NewStatus); err != nil {
				return err
			}
			for i := range req.Assignments {
				if req.Assignments[i].ID == owned.ID {
					req.Assignments[i].Status = params.NewStatus
				}
			}
		}

		status = AggregateStatus(req.Status, req.Assignments)
		if status != req.Status {
			if err := s.repo.UpdateStatus(ctx, tx, req.ID, status); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return status, nil
}

const maxTxAttempts = 3

// inTx runs fn inside a transaction, retrying a bounded number of times on
// serialization or deadlock failures. fn re-reads all state on each attempt.
func (s *Service) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("request: begin tx: %w", err)
		}

		if err := fn(tx); err != nil {
			_ = tx.Rollback(ctx)
			if isRetryable(err) {
				lastErr = err
				continue
			}
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			_ = tx.Rollback(ctx)
			if isRetryable(err) {
				lastErr = err
				continue
			}
			return fmt.Errorf("request: commit tx: %w", err)
		}
		return nil
	}
	return fmt.Errorf("%w: %v", ErrConflict, lastErr)
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	// serialization_failure and deadlock_detected
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

func dedupeItems(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}

func combineSchedule(date, clock string) (*time.Time, error) {
	if date == "" && clock == "" {
		return nil, nil
	}
	if date == "" || clock == "" {
		return nil, ErrPartialSchedule
	}

	moment, err := time.ParseInLocation("2006-01-02 15:04", date+" "+clock, time.Local)
	if err != nil {
		return nil, fmt.Errorf("request: parse schedule: %w", err)
	}
	return &moment, nil
}
