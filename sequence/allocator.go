package sequence

import (
	"context"
	"fmt"
	"time"
)

// Entity identifies an independently numbered identifier series.
type Entity string

const (
	EntityRequest Entity = "REQ"
	EntityVendor  Entity = "VENDOR"
	EntityUser    Entity = "USER"
	EntityBill    Entity = "BILL"
)

// GlobalScope is the counter partition for series that do not reset.
const GlobalScope = "global"

type format struct {
	width  int
	yearly bool
}

var formats = map[Entity]format{
	EntityRequest: {width: 3},
	EntityVendor:  {width: 3},
	EntityUser:    {width: 3},
	EntityBill:    {width: 4, yearly: true},
}

// Allocator mints human-readable entity codes such as REQ-003 or
// BILL/2025/0007. Uniqueness and ordering are delegated to the CounterStore,
// which must advance each (entity, scope) counter atomically.
type Allocator struct {
	store CounterStore
	now   func() time.Time
}

func NewAllocator(store CounterStore) *Allocator {
	return &Allocator{
		store: store,
		now:   time.Now,
	}
}

func (a *Allocator) WithClock(now func() time.Time) *Allocator {
	a.now = now
	return a
}

// Next returns the next code in the entity's series. Yearly entities scope
// their counter to the current calendar year, so the first bill of a new year
// starts over at 1.
func (a *Allocator) Next(ctx context.Context, entity Entity) (string, error) {
	f, ok := formats[entity]
	if !ok {
		return "", fmt.Errorf("sequence: unknown entity %q", entity)
	}

	scope := GlobalScope
	year := a.now().Year()
	if f.yearly {
		scope = fmt.Sprintf("%d", year)
	}

	n, err := a.store.Next(ctx, string(entity), scope)
	if err != nil {
		return "", fmt.Errorf("sequence: advance %s/%s: %w", entity, scope, err)
	}

	if f.yearly {
		return fmt.Sprintf("%s/%d/%0*d", entity, year, f.width, n), nil
	}
	return fmt.Sprintf("%s-%0*d", entity, f.width, n), nil
}
