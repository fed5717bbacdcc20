package factory

import (
	"path/filepath"
	"testing"

	sq "github.com/fizzworks/fountd/internal/audit/sqlite"
)

func TestNewSinkFromDSNSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	for _, dsn := range []string{path, "sqlite://" + path} {
		sink, err := NewSinkFromDSN(dsn)
		if err != nil {
			t.Fatalf("dsn %q: %v", dsn, err)
		}
		if _, ok := sink.(*sq.Sink); !ok {
			t.Fatalf("dsn %q: expected a SQLite sink, got %T", dsn, sink)
		}
		_ = sink.Close()
	}
}

func TestNewSinkFromDSNErrors(t *testing.T) {
	cases := []string{"", "   ", "mysql://host/db", "clickhouse://"}
	for _, dsn := range cases {
		if _, err := NewSinkFromDSN(dsn); err == nil {
			t.Fatalf("dsn %q: expected an error", dsn)
		}
	}
}
