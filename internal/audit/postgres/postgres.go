package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/fizzworks/fountd/internal/audit"
)

// Sink writes audit events to a PostgreSQL database via the pgx stdlib driver.
type Sink struct {
	db *sql.DB
}

// New creates a new PostgreSQL audit sink from a postgres:// DSN.
func New(dsn string) (*Sink, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("empty PostgreSQL DSN")
	}
	db, err := sql.Open("pgx", dsn)
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
	stmt := `CREATE TABLE IF NOT EXISTS dispense_audit(
		id BIGSERIAL PRIMARY KEY,
		occurred_at TIMESTAMPTZ NOT NULL,
		event TEXT NOT NULL,
		session_id BIGINT NOT NULL,
		target_water_ml DOUBLE PRECISION NOT NULL,
		dispensed_water_ml DOUBLE PRECISION NOT NULL,
		target_syrup_ml DOUBLE PRECISION NOT NULL,
		dispensed_syrup_ml DOUBLE PRECISION NOT NULL,
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
		VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9);`,
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
