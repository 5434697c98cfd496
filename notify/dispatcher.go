package notify

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Message is an outbound vendor notification. Body is the full templated
// text; RequestCode identifies the request it concerns.
type Message struct {
	RequestCode string
	Body        string
}

// CancellationMessage builds the templated text sent to a vendor whose
// assignment was cancelled.
func CancellationMessage(requestCode string) Message {
	return Message{
		RequestCode: requestCode,
		Body:        fmt.Sprintf("Service request %s has been cancelled. Please do not proceed with the visit.", requestCode),
	}
}

// Dispatcher delivers an outbound message to a vendor contact. Delivery is
// best effort: callers log failures and never let them affect request state.
type Dispatcher interface {
	Send(ctx context.Context, contact string, msg Message) error
}

// LogDispatcher writes every message to the process log. It stands in for a
// real SMS gateway in development and tests.
type LogDispatcher struct {
	logger *log.Logger
}

func NewLogDispatcher(logger *log.Logger) *LogDispatcher {
	if logger == nil {
		logger = log.Default()
	}
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Send(_ context.Context, contact string, msg Message) error {
	d.logger.Printf("notify: send to %s [%s]: %s", contact, msg.RequestCode, msg.Body)
	return nil
}

// PGOutboxDispatcher records the message as a pending notifications row for an
// out-of-band sender to pick up. The insert runs outside any request
// transaction; a failed insert is just a lost best-effort notification.
type PGOutboxDispatcher struct {
	pool *pgxpool.Pool
}

func NewPGOutboxDispatcher(pool *pgxpool.Pool) *PGOutboxDispatcher {
	return &PGOutboxDispatcher{pool: pool}
}

func (d *PGOutboxDispatcher) Send(ctx context.Context, contact string, msg Message) error {
	const query = `
		INSERT INTO notifications (contact, request_code, body, status)
		VALUES ($1, $2, $3, 'pending')
	`
	if _, err := d.pool.Exec(ctx, query, contact, msg.RequestCode, msg.Body); err != nil {
		return fmt.Errorf("notify: enqueue notification: %w", err)
	}
	return nil
}
