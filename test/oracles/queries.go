package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_no_duplicate_vendor_per_request",
			SQL: `SELECT request_id, vendor_id, COUNT(*) FROM assignments
                  GROUP BY request_id, vendor_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O2_status_matches_assignment_aggregate",
			SQL: `SELECT r.id, r.status FROM requests r
                  WHERE EXISTS (SELECT 1 FROM assignments a WHERE a.request_id = r.id)
                    AND r.status <> (
                        SELECT CASE
                            WHEN bool_and(a.status = 'completed') THEN 'completed'
                            WHEN bool_and(a.status = 'cancelled') THEN 'cancelled'
                            ELSE 'assigned'
                        END
                        FROM assignments a WHERE a.request_id = r.id)`,
		},
		{
			Name: "O3_covered_items_subset_of_requested",
			SQL: `SELECT a.id FROM assignments a
                  JOIN requests r ON r.id = a.request_id
                  WHERE EXISTS (
                      SELECT 1 FROM unnest(a.items) AS it
                      WHERE NOT (it = ANY (r.items)))`,
		},
		{
			Name: "O4_request_codes_unique",
			SQL: `SELECT code, COUNT(*) FROM requests
                  GROUP BY code HAVING COUNT(*) > 1`,
		},
		{
			Name: "O5_counter_never_behind_issued_codes",
			SQL: `SELECT 'REQ counter behind' AS detail
                  WHERE (SELECT COALESCE(MAX(value), 0) FROM sequence_counters WHERE entity = 'REQ')
                      < (SELECT COUNT(DISTINCT code) FROM requests WHERE code ~ '^REQ-[0-9]+$')`,
		},
		{
			Name: "O6_pending_request_has_no_assignments",
			SQL: `SELECT r.id FROM requests r
                  WHERE r.status = 'pending'
                    AND EXISTS (SELECT 1 FROM assignments a WHERE a.request_id = r.id)`,
		},
		{
			Name: "O7_notifications_well_formed",
			SQL: `SELECT id FROM notifications
                  WHERE contact = '' OR body = '' OR request_code = ''`,
		},
		{
			Name: "O8_assignments_not_orphaned",
			SQL: `SELECT a.id FROM assignments a
                  WHERE NOT EXISTS (SELECT 1 FROM requests r WHERE r.id = a.request_id)`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
