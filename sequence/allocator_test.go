package sequence

import (
	"context"
	"fmt"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestAllocator_Formats(t *testing.T) {
	alloc := NewAllocator(NewMemoryCounterStore()).
		WithClock(fixedClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)))

	ctx := context.Background()

	cases := []struct {
		entity Entity
		want   string
	}{
		{EntityRequest, "REQ-001"},
		{EntityRequest, "REQ-002"},
		{EntityVendor, "VENDOR-001"},
		{EntityUser, "USER-001"},
		{EntityBill, "BILL/2025/0001"},
		{EntityBill, "BILL/2025/0002"},
	}

	for _, c := range cases {
		got, err := alloc.Next(ctx, c.entity)
		if err != nil {
			t.Fatalf("next %s: %v", c.entity, err)
		}
		if got != c.want {
			t.Fatalf("expected %s, got %s", c.want, got)
		}
	}
}

func TestAllocator_UnknownEntity(t *testing.T) {
	alloc := NewAllocator(NewMemoryCounterStore())
	if _, err := alloc.Next(context.Background(), Entity("INVOICE")); err == nil {
		t.Fatal("expected error for unknown entity")
	}
}

func TestAllocator_BillScopeResetsPerYear(t *testing.T) {
	store := NewMemoryCounterStore()
	ctx := context.Background()

	dec := NewAllocator(store).WithClock(fixedClock(time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC)))
	jan := NewAllocator(store).WithClock(fixedClock(time.Date(2025, 1, 1, 1, 0, 0, 0, time.UTC)))

	got, err := dec.Next(ctx, EntityBill)
	if err != nil {
		t.Fatalf("december bill: %v", err)
	}
	if got != "BILL/2024/0001" {
		t.Fatalf("expected BILL/2024/0001, got %s", got)
	}

	got, err = jan.Next(ctx, EntityBill)
	if err != nil {
		t.Fatalf("january bill: %v", err)
	}
	if got != "BILL/2025/0001" {
		t.Fatalf("expected january counter to restart, got %s", got)
	}
}

func TestAllocator_ConcurrentCallersGetContiguousNumbers(t *testing.T) {
	const callers = 64

	store := NewMemoryCounterStore()
	alloc := NewAllocator(store)

	results := make([]string, callers)
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < callers; i++ {
		g.Go(func() error {
			code, err := alloc.Next(ctx, EntityRequest)
			if err != nil {
				return err
			}
			results[i] = code
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent allocation: %v", err)
	}

	seen := make(map[string]bool, callers)
	for _, code := range results {
		if seen[code] {
			t.Fatalf("duplicate code allocated: %s", code)
		}
		seen[code] = true
	}
	for i := 1; i <= callers; i++ {
		want := fmt.Sprintf("REQ-%03d", i)
		if !seen[want] {
			t.Fatalf("missing code %s; allocation left a gap", want)
		}
	}
}
