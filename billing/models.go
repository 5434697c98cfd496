package billing

import "time"

// Status is a bill's payment state.
type Status string

const (
	StatusUnpaid Status = "unpaid"
	StatusPaid   Status = "paid"
)

// Bill is an invoice raised against a completed request. Customer and vendor
// details are snapshotted at issue time so later profile edits do not rewrite
// history.
type Bill struct {
	ID            string
	Code          string
	RequestCode   string
	CustomerID    string
	CustomerName  string
	VendorID      string
	VendorName    string
	Description   string
	Amount        int64
	GSTPercent    int64
	GSTAmount     int64
	TotalAmount   int64
	Status        Status
	IssuedAt      time.Time
	PaidAt        *time.Time
}
