package request

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"serviceflow/auth"
	"serviceflow/vendordir"
)

var (
	// ErrEmptyCoveredItems signals an assignment entry with no items.
	ErrEmptyCoveredItems = errors.New("request: covered items must not be empty")
	// ErrItemNotRequested signals a covered item outside the request's items.
	ErrItemNotRequested = errors.New("request: covered item not in requested items")
)

// SkipReason explains why a batch entry was not applied.
type SkipReason string

const (
	SkipUnknownVendor   SkipReason = "unknown_vendor"
	SkipAlreadyAssigned SkipReason = "already_assigned"
)

// AssignEntry is one vendor in an assignment batch.
type AssignEntry struct {
	VendorID string
	Items    []string
}

// SkippedEntry reports one entry the engine declined, with the reason.
type SkippedEntry struct {
	VendorID string
	Reason   SkipReason
}

// AssignParams contains an assignment batch against one request.
type AssignParams struct {
	Code      string
	ActorRole auth.Role
	Entries   []AssignEntry
}

// AssignResult reports what the batch did.
type AssignResult struct {
	RequestStatus Status
	Applied       []string
	Skipped       []SkippedEntry
}

// AssignVendors attaches vendors to disjoint or overlapping subsets of the
// request's items. Entries for vendors that are unknown, inactive, or already
// assigned are skipped per entry with a reason; validation failures fail the
// whole batch. All accepted entries and the single recomputed status write
// commit in one transaction.
func (s *Service) AssignVendors(ctx context.Context, params AssignParams) (AssignResult, error) {
	if err := requirePermission(OpAssign, params.ActorRole); err != nil {
		return AssignResult{}, err
	}
	if len(params.Entries) == 0 {
		return AssignResult{}, fmt.Errorf("request: empty assignment batch")
	}

	var result AssignResult
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		result = AssignResult{
			Applied: []string{},
			Skipped: []SkippedEntry{},
		}

		req, err := s.repo.GetForUpdate(ctx, tx, params.Code)
		if err != nil {
			return err
		}

		requested := make(map[string]bool, len(req.Items))
		for _, item := range req.Items {
			requested[item] = true
		}

		assigned := make(map[string]bool, len(req.Assignments))
		for _, a := range req.Assignments {
			assigned[a.VendorID] = true
		}

		applied := 0
		for _, entry := range params.Entries {
			items := dedupeItems(entry.Items)
			if len(items) == 0 {
				return fmt.Errorf("%w (vendor %s)", ErrEmptyCoveredItems, entry.VendorID)
			}
			for _, item := range items {
				if !requested[item] {
					return fmt.Errorf("%w: %q (vendor %s)", ErrItemNotRequested, item, entry.VendorID)
				}
			}

			if assigned[entry.VendorID] {
				result.Skipped = append(result.Skipped, SkippedEntry{VendorID: entry.VendorID, Reason: SkipAlreadyAssigned})
				continue
			}

			profile, err := s.vendors.Lookup(ctx, entry.VendorID)
			if err != nil {
				if errors.Is(err, vendordir.ErrNotFound) {
					result.Skipped = append(result.Skipped, SkippedEntry{VendorID: entry.VendorID, Reason: SkipUnknownVendor})
					continue
				}
				return fmt.Errorf("request: lookup vendor %s: %w", entry.VendorID, err)
			}
			if !profile.Active {
				result.Skipped = append(result.Skipped, SkippedEntry{VendorID: entry.VendorID, Reason: SkipUnknownVendor})
				continue
			}

			created, err := s.repo.InsertAssignment(ctx, tx, Assignment{
				ID:            s.idGen(),
				RequestID:     req.ID,
				VendorID:      entry.VendorID,
				VendorName:    profile.Name,
				VendorContact: profile.Mobile,
				Items:         items,
				Status:        AssignmentAssigned,
			})
			if err != nil {
				return err
			}

			req.Assignments = append(req.Assignments, created)
			assigned[entry.VendorID] = true
			result.Applied = append(result.Applied, entry.VendorID)
			applied++
		}

		result.RequestStatus = req.Status
		if applied > 0 {
			status := AggregateStatus(req.Status, req.Assignments)
			if status != req.Status {
				if err := s.repo.UpdateStatus(ctx, tx, req.ID, status); err != nil {
					return err
				}
			}
			result.RequestStatus = status
		}
		return nil
	})
	if err != nil {
		return AssignResult{}, err
	}
	return result, nil
}
