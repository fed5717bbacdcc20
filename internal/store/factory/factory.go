package factory

import (
	"errors"
	"strings"

	"github.com/fizzworks/fountd/internal/store"
	pg "github.com/fizzworks/fountd/internal/store/postgres"
	sq "github.com/fizzworks/fountd/internal/store/sqlite"
)

// NewFromDSN selects a store implementation based on DSN.
// Supported:
//   - sqlite:  "sqlite://<path>", "sqlite://:memory:" or bare filepath
//   - postgres: DSN starting with "postgres://" or "postgresql://"
func NewFromDSN(dsn string) (store.Store, error) {
	d := strings.TrimSpace(dsn)
	ld := strings.ToLower(d)
	if ld == "" {
		return nil, errors.New("empty DSN")
	}
	if strings.HasPrefix(ld, "postgres://") || strings.HasPrefix(ld, "postgresql://") {
		return pg.New(d)
	}
	if strings.HasPrefix(ld, "sqlite://") {
		return sq.New(d)
	}
	// default to sqlite path
	return sq.New(d)
}
