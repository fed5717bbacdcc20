package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fizzworks/fountd/internal/session"
	"github.com/fizzworks/fountd/internal/store"
)

// DB implements store.Store for SQLite (modernc.org/sqlite driver, CGO-free).
// DSN is a filesystem path to the SQLite database file. Use ":memory:" for in-memory.

type DB struct {
	db *sql.DB
}

// New opens a SQLite database at path. A "sqlite://" prefix is accepted and
// stripped.
func New(path string) (*DB, error) {
	p := strings.TrimSpace(path)
	if strings.HasPrefix(strings.ToLower(p), "sqlite://") {
		p = p[len("sqlite://"):]
	}
	if p == "" {
		return nil, errors.New("empty sqlite path")
	}
	d, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	// busy timeout helps with short concurrent locks
	_, _ = d.Exec("PRAGMA busy_timeout=3000;")
	// a single connection keeps :memory: databases coherent and serializes
	// the read-modify-write sequences on file databases
	d.SetMaxOpenConns(1)
	return &DB{db: d}, nil
}

func (s *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS dispense_log(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			start_time TIMESTAMP NOT NULL,
			end_time TIMESTAMP NULL,
			target_water_ml REAL NOT NULL,
			dispensed_water_ml REAL NOT NULL,
			target_syrup_ml REAL NOT NULL,
			dispensed_syrup_ml REAL NOT NULL,
			status TEXT NOT NULL,
			stop_reason TEXT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_dispense_log_status ON dispense_log(status);`,
		// backstop for the single-active-session invariant
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_dispense_log_active ON dispense_log(status) WHERE status='IN_PROGRESS';`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *DB) Close() error { return s.db.Close() }

func (s *DB) CreateSession(ctx context.Context, targetWaterML, targetSyrupML float64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var active int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM dispense_log WHERE status=?;`,
		string(session.StatusInProgress)).Scan(&active)
	if err != nil {
		return 0, err
	}
	if active > 0 {
		return 0, store.ErrSessionActive
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO dispense_log(start_time, target_water_ml, dispensed_water_ml, target_syrup_ml, dispensed_syrup_ml, status)
		VALUES(?, ?, 0, ?, 0, ?);`,
		time.Now().UTC(), targetWaterML, targetSyrupML, string(session.StatusInProgress))
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *DB) ActiveSession(ctx context.Context) (*session.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, start_time, end_time, target_water_ml, dispensed_water_ml, target_syrup_ml, dispensed_syrup_ml, status, stop_reason
		FROM dispense_log
		WHERE status=?
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

// activeRowQuery targets the active session in a single UPDATE so the
// find-then-mutate sequence cannot race another request.
const activeRowQuery = `(SELECT id FROM dispense_log WHERE status='IN_PROGRESS' ORDER BY id DESC LIMIT 1)`

func (s *DB) UpdateProgress(ctx context.Context, dispensedWaterML, dispensedSyrupML float64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE dispense_log
		SET dispensed_water_ml=?, dispensed_syrup_ml=?
		WHERE id=`+activeRowQuery+`;`,
		dispensedWaterML, dispensedSyrupML)
	return err
}

func (s *DB) MarkCompleted(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE dispense_log
		SET end_time=?, status=?
		WHERE id=`+activeRowQuery+`;`,
		time.Now().UTC(), string(session.StatusCompleted))
	return err
}

func (s *DB) MarkEmergencyStop(ctx context.Context, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE dispense_log
		SET end_time=?, status=?, stop_reason=?
		WHERE id=`+activeRowQuery+`;`,
		time.Now().UTC(), string(session.StatusEmergencyStop), reason)
	return err
}

func (s *DB) ListSessions(ctx context.Context) ([]session.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, start_time, end_time, target_water_ml, dispensed_water_ml, target_syrup_ml, dispensed_syrup_ml, status, stop_reason
		FROM dispense_log
		ORDER BY id DESC;`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanSessions(rows)
}

func (s *DB) DeleteSession(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM dispense_log WHERE id=?;`, id)
	return err
}

func (s *DB) ClearSessions(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM dispense_log;`)
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
