package request

import "time"

// Status is the aggregate lifecycle state of a service request.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAssigned  Status = "assigned"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// AssignmentStatus is the per-vendor fulfillment state.
type AssignmentStatus string

const (
	AssignmentAssigned  AssignmentStatus = "assigned"
	AssignmentCompleted AssignmentStatus = "completed"
	AssignmentCancelled AssignmentStatus = "cancelled"
)

// Request is a customer's bundle of requested service items with a single
// schedule. Code is the human-readable identifier (REQ-003), immutable once
// set. Status always reflects the aggregate over Assignments; it is never
// written directly outside the aggregation and the no-assignment cancel path.
type Request struct {
	ID          string
	Code        string
	RequesterID string
	Items       []string
	ScheduledAt *time.Time
	Status      Status
	Assignments []Assignment
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Assignment is the portion of a request delegated to one vendor. Vendor name
// and contact are snapshotted from the directory at assignment time so later
// notifications do not depend on directory availability.
type Assignment struct {
	ID            string
	RequestID     string
	VendorID      string
	VendorName    string
	VendorContact string
	Items         []string
	Status        AssignmentStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AssignmentFor returns the assignment held by the given vendor, if any.
func (r *Request) AssignmentFor(vendorID string) (Assignment, bool) {
	for _, a := range r.Assignments {
		if a.VendorID == vendorID {
			return a, true
		}
	}
	return Assignment{}, false
}
