package persist

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/arenasim/simcore/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// openTestDB connects to ARENASIM_TEST_DSN, skipping when it is unset.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("ARENASIM_TEST_DSN")
	if dsn == "" {
		t.Skip("ARENASIM_TEST_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	db, err := Open(ctx, config.DatabaseConfig{DSN: dsn, MaxOpenConns: 2}, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(db.Close)
	return db
}

func TestNewDBRejectsBadDSN(t *testing.T) {
	_, err := NewDB(context.Background(), config.DatabaseConfig{DSN: "postgres://%zz"}, nil)
	if err == nil {
		t.Fatal("malformed dsn accepted")
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) == 0 {
		t.Fatal("no migrations embedded")
	}
}

func TestCloseNilDB(t *testing.T) {
	var db *DB
	db.Close()
}

func TestGooseLoggerWritesToZap(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := gooseLogger{log: zap.New(core).Sugar()}

	l.Printf("OK   %s (%s)\n", "00001_create_rounds.sql", "3ms")
	l.Fatalf("bad version %d", 7)

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("%d entries", len(entries))
	}
	if entries[0].Level != zapcore.InfoLevel || entries[0].Message != "OK   00001_create_rounds.sql (3ms)" {
		t.Fatalf("printf entry %+v", entries[0].Entry)
	}
	if entries[1].Level != zapcore.ErrorLevel || entries[1].Message != "bad version 7" {
		t.Fatalf("fatalf entry %+v", entries[1].Entry)
	}
}
