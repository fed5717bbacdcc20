package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/fizzworks/fountd/internal/session"
	"github.com/fizzworks/fountd/internal/store"
)

// DB implements store.Store for PostgreSQL via the pgx stdlib driver.

type DB struct {
	db *sql.DB
}

func New(dsn string) (*DB, error) {
	d, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &DB{db: d}, nil
}

func (p *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS dispense_log(
			id BIGSERIAL PRIMARY KEY,
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ NULL,
			target_water_ml DOUBLE PRECISION NOT NULL,
			dispensed_water_ml DOUBLE PRECISION NOT NULL,
			target_syrup_ml DOUBLE PRECISION NOT NULL,
			dispensed_syrup_ml DOUBLE PRECISION NOT NULL,
			status TEXT NOT NULL,
			stop_reason TEXT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_dispense_log_status ON dispense_log(status);`,
		// backstop for the single-active-session invariant
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_dispense_log_active ON dispense_log(status) WHERE status='IN_PROGRESS';`,
	}
	for _, q := range stmts {
		if _, err := p.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (p *DB) Close() error { return p.db.Close() }

func (p *DB) CreateSession(ctx context.Context, targetWaterML, targetSyrupML float64) (int64, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var active int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM dispense_log WHERE status=$1;`,
		string(session.StatusInProgress)).Scan(&active)
	if err != nil {
		return 0, err
	}
	if active > 0 {
		return 0, store.ErrSessionActive
	}

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO dispense_log(start_time, target_water_ml, dispensed_water_ml, target_syrup_ml, dispensed_syrup_ml, status)
		VALUES($1, $2, 0, $3, 0, $4)
		RETURNING id;`,
		time.Now().UTC(), targetWaterML, targetSyrupML, string(session.StatusInProgress)).Scan(&id)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

func (p *DB) ActiveSession(ctx context.Context) (*session.Session, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, start_time, end_time, target_water_ml, dispensed_water_ml, target_syrup_ml, dispensed_syrup_ml, status, stop_reason
		FROM dispense_log
		WHERE status=$1
		ORDER BY id DESC
		LIMIT 1;`, string(session.StatusInProgress))
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

const activeRowQuery = `(SELECT id FROM dispense_log WHERE status='IN_PROGRESS' ORDER BY id DESC LIMIT 1)`

func (p *DB) UpdateProgress(ctx context.Context, dispensedWaterML, dispensedSyrupML float64) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE dispense_log
		SET dispensed_water_ml=$1, dispensed_syrup_ml=$2
		WHERE id=`+activeRowQuery+`;`,
		dispensedWaterML, dispensedSyrupML)
	return err
}

func (p *DB) MarkCompleted(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE dispense_log
		SET end_time=$1, status=$2
		WHERE id=`+activeRowQuery+`;`,
		time.Now().UTC(), string(session.StatusCompleted))
	return err
}

func (p *DB) MarkEmergencyStop(ctx context.Context, reason string) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE dispense_log
		SET end_time=$1, status=$2, stop_reason=$3
		WHERE id=`+activeRowQuery+`;`,
		time.Now().UTC(), string(session.StatusEmergencyStop), reason)
	return err
}

func (p *DB) ListSessions(ctx context.Context) ([]session.Session, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, start_time, end_time, target_water_ml, dispensed_water_ml, target_syrup_ml, dispensed_syrup_ml, status, stop_reason
		FROM dispense_log
		ORDER BY id DESC;`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanSessions(rows)
}

func (p *DB) DeleteSession(ctx context.Context, id int64) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM dispense_log WHERE id=$1;`, id)
	return err
}

func (p *DB) ClearSessions(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM dispense_log;`)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*session.Session, error) {
	var sess session.Session
	var end sql.NullTime
	var reason sql.NullString
	var status string
	if err := row.Scan(&sess.ID, &sess.StartTime, &end, &sess.TargetWaterML, &sess.DispensedWaterML,
		&sess.TargetSyrupML, &sess.DispensedSyrupML, &status, &reason); err != nil {
		return nil, err
	}
	sess.Status = session.Status(status)
	if end.Valid {
		sess.EndTime = end.Time
	}
	if reason.Valid {
		sess.StopReason = reason.String
	}
	return &sess, nil
}

func scanSessions(rows *sql.Rows) ([]session.Session, error) {
	out := make([]session.Session, 0)
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sess)
	}
	return out, rows.Err()
}
