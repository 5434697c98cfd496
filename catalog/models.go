package catalog

import "time"

// Category is one service category customers can request items from.
type Category struct {
	ID        string
	Name      string
	Active    bool
	CreatedAt time.Time
}
