package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/fizzworks/fountd/internal/audit"
)

// Sink writes audit events to a SQLite database.
// DSN format:
//   - "sqlite:///path/to/file.db"
//   - "sqlite://:memory:"
//   - "/path/to/file.db" (without prefix)
//   - ":memory:" (in-memory database)
type Sink struct {
	db *sql.DB
}

// New creates a new SQLite audit sink.
func New(dsn string) (*Sink, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("empty SQLite DSN")
	}
	if strings.HasPrefix(strings.ToLower(dsn), "sqlite://") {
		dsn = dsn[len("sqlite://"):]
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	sink := &Sink{db: db}
	if err := sink.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return sink, nil
}

func (s *Sink) ensureSchema(ctx context.Context) error {
	// Append-only audit table, no primary key.
	stmt := `CREATE TABLE IF NOT EXISTS dispense_audit(
		occurred_at TIMESTAMP NOT NULL,
		event TEXT NOT NULL,
		session_id INTEGER NOT NULL,
		target_water_ml REAL NOT NULL,
		dispensed_water_ml REAL NOT NULL,
		target_syrup_ml REAL NOT NULL,
		dispensed_syrup_ml REAL NOT NULL,
		status TEXT NOT NULL,
		stop_reason TEXT
	);`
	_, err := s.db.ExecContext(ctx, stmt)
	return err
}

func (s *Sink) Send(ctx context.Context, e audit.Event) error {
	sess := e.Session
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dispense_audit(occurred_at, event, session_id, target_water_ml, dispensed_water_ml, target_syrup_ml, dispensed_syrup_ml, status, stop_reason)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		e.OccurredAt.UTC(), string(e.Type), sess.ID,
		sess.TargetWaterML, sess.DispensedWaterML,
		sess.TargetSyrupML, sess.DispensedSyrupML,
		string(sess.Status), sess.StopReason)
	return err
}

func (s *Sink) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
