package sequence

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CounterStore advances a named counter and returns its new value. The first
// call for a (entity, scope) pair yields 1. Implementations must guarantee
// that concurrent callers never observe the same value.
type CounterStore interface {
	Next(ctx context.Context, entity, scope string) (int64, error)
}

// PGCounterStore keeps one row per (entity, scope) in sequence_counters and
// advances it in a single upsert statement, so the read-increment-write runs
// under the row lock Postgres takes for the update.
type PGCounterStore struct {
	pool *pgxpool.Pool
}

func NewPGCounterStore(pool *pgxpool.Pool) *PGCounterStore {
	return &PGCounterStore{pool: pool}
}

func (s *PGCounterStore) Next(ctx context.Context, entity, scope string) (int64, error) {
	const query = `
		INSERT INTO sequence_counters (entity, scope, value)
		VALUES ($1, $2, 1)
		ON CONFLICT (entity, scope)
		DO UPDATE SET value = sequence_counters.value + 1
		RETURNING value
	`

	var value int64
	if err := s.pool.QueryRow(ctx, query, entity, scope).Scan(&value); err != nil {
		return 0, fmt.Errorf("sequence: upsert counter: %w", err)
	}
	return value, nil
}

// MemoryCounterStore is a mutex-guarded in-process store for tests and
// single-node tooling.
type MemoryCounterStore struct {
	mu     sync.Mutex
	values map[string]int64
}

func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{values: make(map[string]int64)}
}

func (s *MemoryCounterStore) Next(_ context.Context, entity, scope string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := entity + "/" + scope
	s.values[key]++
	return s.values[key], nil
}
