package vendordir

import "time"

// Profile captures the vendor data exposed to dispatchers and the assignment
// flow. Code is the human-readable identifier (VENDOR-012) minted at
// registration. UserID links the profile to the login account acting for this
// vendor; it is empty for profiles registered without an account.
type Profile struct {
	ID        string
	Code      string
	Name      string
	Mobile    string
	Category  string
	UserID    string
	Active    bool
	CreatedAt time.Time
}
