package actors

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"serviceflow/auth"
	"serviceflow/request"
	"serviceflow/sequence"
)

// Actors drive the request engine through its service layer, the same path the
// API uses. Domain rejections (conflicts, cutoff, skips) are expected under
// contention and are swallowed; the oracles decide whether state stayed sane.

// Creator keeps minting new scheduled requests for the same customer.
func Creator(ctx context.Context, svc *request.Service, requesterID string, items []string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		_, _ = svc.Create(ctx, request.CreateParams{
			RequesterID:  requesterID,
			ActorRole:    auth.RoleCustomer,
			Items:        items,
			ScheduleDate: "2099-01-10",
			ScheduleTime: "10:00",
		})
		time.Sleep(time.Duration(20+rand.Intn(40)) * time.Millisecond)
	}
}

// Assigner batches a random vendor subset onto the request as staff.
func Assigner(ctx context.Context, svc *request.Service, code string, vendorIDs, items []string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		entries := make([]request.AssignEntry, 0, len(vendorIDs))
		for _, id := range vendorIDs {
			if rand.Intn(2) == 0 {
				continue
			}
			entries = append(entries, request.AssignEntry{
				VendorID: id,
				Items:    []string{items[rand.Intn(len(items))]},
			})
		}
		if len(entries) > 0 {
			_, _ = svc.AssignVendors(ctx, request.AssignParams{
				Code:      code,
				ActorRole: auth.RoleStaff,
				Entries:   entries,
			})
		}
		time.Sleep(time.Duration(10+rand.Intn(20)) * time.Millisecond)
	}
}

// Reporter keeps flipping its own assignment between completed and cancelled,
// acting as the vendor's login account.
func Reporter(ctx context.Context, svc *request.Service, code, actorID string, stop <-chan struct{}) error {
	statuses := []request.AssignmentStatus{request.AssignmentCompleted, request.AssignmentCancelled}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		_, _ = svc.ReportStatus(ctx, request.ReportParams{
			Code:      code,
			ActorID:   actorID,
			ActorRole: auth.RoleVendor,
			NewStatus: statuses[rand.Intn(len(statuses))],
		})
		time.Sleep(time.Duration(15+rand.Intn(35)) * time.Millisecond)
	}
}

// Canceller alternates between targeted and full cancellations.
func Canceller(ctx context.Context, svc *request.Service, code, actorID string, vendorIDs []string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		var targets []string
		if len(vendorIDs) > 0 && rand.Intn(2) == 0 {
			targets = []string{vendorIDs[rand.Intn(len(vendorIDs))]}
		}
		_, _ = svc.Cancel(ctx, request.CancelParams{
			Code:      code,
			ActorID:   actorID,
			ActorRole: auth.RoleStaff,
			VendorIDs: targets,
		})
		time.Sleep(time.Duration(50+rand.Intn(100)) * time.Millisecond)
	}
}

// Minter hammers the shared allocator and fails on the first duplicate code it
// observes across all Minter goroutines.
func Minter(ctx context.Context, alloc *sequence.Allocator, entity sequence.Entity, seen *SeenCodes, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		code, err := alloc.Next(ctx, entity)
		if err == nil {
			if !seen.Add(code) {
				return fmt.Errorf("minter: duplicate code %s", code)
			}
		}
		time.Sleep(time.Duration(5+rand.Intn(15)) * time.Millisecond)
	}
}

// NotificationDrainer plays the out-of-band sender: it claims pending
// notification rows with SKIP LOCKED and marks them sent.
func NotificationDrainer(ctx context.Context, pool *pgxpool.Pool, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		tx, err := pool.Begin(ctx)
		if err != nil {
			time.Sleep(100 * time.Millisecond)
			continue
		}
		rows, err := tx.Query(ctx, `SELECT id FROM notifications WHERE status='pending' ORDER BY created_at FOR UPDATE SKIP LOCKED LIMIT 10`)
		if err != nil {
			_ = tx.Rollback(ctx)
			time.Sleep(100 * time.Millisecond)
			continue
		}
		ids := make([]string, 0, 10)
		for rows.Next() {
			var id string
			_ = rows.Scan(&id)
			ids = append(ids, id)
		}
		rows.Close()
		for _, id := range ids {
			_, _ = tx.Exec(ctx, `UPDATE notifications SET status='sent' WHERE id=$1`, id)
		}
		_ = tx.Commit(ctx)
		time.Sleep(100 * time.Millisecond)
	}
}

// SeenCodes is a concurrency-safe set of allocated codes.
type SeenCodes struct {
	mu    sync.Mutex
	codes map[string]bool
}

func NewSeenCodes() *SeenCodes {
	return &SeenCodes{codes: make(map[string]bool)}
}

// Add records code and reports whether it was new.
func (s *SeenCodes) Add(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.codes[code] {
		return false
	}
	s.codes[code] = true
	return true
}
