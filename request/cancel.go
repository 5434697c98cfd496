package request

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"serviceflow/auth"
	"serviceflow/notify"
)

var (
	// ErrScheduleNotSet signals a cancellation attempt on an unscheduled request.
	ErrScheduleNotSet = errors.New("request: schedule not set")
	// ErrWithinCutoffWindow signals the cancellation arrived inside the one
	// hour window before the scheduled service moment.
	ErrWithinCutoffWindow = errors.New("request: within cancellation cutoff window")
)

// cancelCutoff is how long before the scheduled moment cancellation closes.
const cancelCutoff = time.Hour

// CancelParams contains a cancellation command. Empty VendorIDs targets every
// assignment on the request.
type CancelParams struct {
	Code      string
	ActorID   string
	ActorRole auth.Role
	VendorIDs []string
}

// CancelResult reports the recomputed status and the vendors a notification
// was attempted for.
type CancelResult struct {
	RequestStatus     Status
	NotifiedVendorIDs []string
}

type pendingNotice struct {
	vendorID string
	contact  string
}

// Cancel applies the schedule-gated cancellation flow. The state transition
// commits first; notification delivery is attempted afterwards, outside the
// request lock, and failures are logged rather than surfaced.
func (s *Service) Cancel(ctx context.Context, params CancelParams) (CancelResult, error) {
	if err := requirePermission(OpCancel, params.ActorRole); err != nil {
		return CancelResult{}, err
	}

	targets := make(map[string]bool, len(params.VendorIDs))
	for _, id := range params.VendorIDs {
		targets[id] = true
	}

	var (
		status  Status
		notices []pendingNotice
	)
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		notices = notices[:0]

		req, err := s.repo.GetForUpdate(ctx, tx, params.Code)
		if err != nil {
			return err
		}

		if params.ActorRole == auth.RoleCustomer && req.RequesterID != params.ActorID {
			return ErrForbidden
		}

		if req.ScheduledAt == nil {
			return ErrScheduleNotSet
		}
		cutoff := req.ScheduledAt.Add(-cancelCutoff)
		if !s.now().Before(cutoff) {
			return ErrWithinCutoffWindow
		}

		if len(req.Assignments) == 0 {
			status = StatusCancelled
			return s.repo.UpdateStatus(ctx, tx, req.ID, status)
		}

		for i := range req.Assignments {
			a := &req.Assignments[i]
			if len(targets) > 0 && !targets[a.VendorID] {
				continue
			}
			if a.Status == AssignmentCancelled {
				continue
			}
			if err := s.repo.UpdateAssignmentStatus(ctx, tx, a.ID, AssignmentCancelled); err != nil {
				return err
			}
			a.Status = AssignmentCancelled
			notices = append(notices, pendingNotice{vendorID: a.VendorID, contact: a.VendorContact})
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
		return CancelResult{}, err
	}

	result := CancelResult{
		RequestStatus:     status,
		NotifiedVendorIDs: []string{},
	}
	msg := notify.CancellationMessage(params.Code)
	for _, n := range notices {
		if err := s.dispatcher.Send(ctx, n.contact, msg); err != nil {
			s.logger.Printf("request: notify vendor %s about %s: %v", n.vendorID, params.Code, err)
		}
		result.NotifiedVendorIDs = append(result.NotifiedVendorIDs, n.vendorID)
	}
	return result, nil
}
