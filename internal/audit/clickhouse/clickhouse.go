package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/fizzworks/fountd/internal/audit"
)

// Sink sends audit events to ClickHouse using the official ClickHouse Go
// client. The target table must exist; ClickHouse deployments own their own
// schema (engine and partitioning are a cluster decision, not ours).
type Sink struct {
	conn  driver.Conn
	table string
}

// Options configures the ClickHouse connection.
type Options struct {
	Addr     string // host:port
	Database string
	Username string
	Password string
	Table    string
}

func New(opts Options) (*Sink, error) {
	if opts.Database == "" {
		opts.Database = "default"
	}
	if opts.Username == "" {
		opts.Username = "default"
	}
	if opts.Table == "" {
		opts.Table = "dispense_audit"
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{opts.Addr},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.Username,
			Password: opts.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	return &Sink{conn: conn, table: opts.Table}, nil
}

func (s *Sink) Send(ctx context.Context, e audit.Event) error {
	query := fmt.Sprintf(`INSERT INTO %s (event, occurred_at, session_id, target_water_ml, dispensed_water_ml, target_syrup_ml, dispensed_syrup_ml, status, stop_reason) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table)

	sess := e.Session
	err := s.conn.Exec(ctx, query,
		string(e.Type),
		e.OccurredAt,
		sess.ID,
		sess.TargetWaterML,
		sess.DispensedWaterML,
		sess.TargetSyrupML,
		sess.DispensedSyrupML,
		string(sess.Status),
		sess.StopReason,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event into ClickHouse: %w", err)
	}
	return nil
}

func (s *Sink) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
