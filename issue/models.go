package issue

import "time"

// Status represents the lifecycle of an issue record.
type Status string

const (
	StatusUnderReview Status = "under_review"
	StatusResolved    Status = "resolved"
)

// Record mirrors the issues table. Issues are raised by the customer who owns
// the request.
type Record struct {
	ID         string
	RequestID  string
	Subject    string
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ResolvedAt *time.Time
}
