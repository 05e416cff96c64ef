package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of *pgxpool.Pool used by PostgresLogger
type PgxPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Record is one row of the logs table
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	MsgType   string    `json:"msg_type"`
	Message   string    `json:"message"`
}

// PostgresLogger persists events to the logs table
type PostgresLogger struct {
	pool PgxPool
}

func NewPostgresLogger(pool PgxPool) *PostgresLogger {
	return &PostgresLogger{pool: pool}
}

func (l *PostgresLogger) Log(ctx context.Context, event Event) error {
	event.Fill()

	message := event.Message
	if event.CorrelationID != "" {
		message = fmt.Sprintf("[%s] %s", event.CorrelationID, message)
	}
	if event.Error != "" {
		message = fmt.Sprintf("%s: %s", message, event.Error)
	}

	_, err := l.pool.Exec(ctx,
		`INSERT INTO logs (timestamp, msg_type, message) VALUES ($1, $2, $3)`,
		event.Timestamp, string(event.EventType), message,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// Events lists stored events newest first; msgType "all" or "" matches every type.
func (l *PostgresLogger) Events(ctx context.Context, msgType string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}

	var (
		rows pgx.Rows
		err  error
	)
	if msgType == "" || msgType == "all" {
		rows, err = l.pool.Query(ctx,
			`SELECT timestamp, msg_type, message FROM logs ORDER BY timestamp DESC LIMIT $1`, limit)
	} else {
		rows, err = l.pool.Query(ctx,
			`SELECT timestamp, msg_type, message FROM logs WHERE msg_type = $1 ORDER BY timestamp DESC LIMIT $2`, msgType, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Timestamp, &r.MsgType, &r.Message); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return records, nil
}
