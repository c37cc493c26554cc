package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

// useMock routes Connect to a sqlmock connection that expects the initial ping.
func useMock(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	mock.ExpectPing()
	prev := openDB
	openDB = func(driverName, dsn string) (*sql.DB, error) {
		if driverName != "pgx" {
			t.Fatalf("unexpected driver %q", driverName)
		}
		return mockDB, nil
	}
	t.Cleanup(func() { openDB = prev })
	return mock
}

func TestConnectRejectsEmptyURL(t *testing.T) {
	if _, err := Connect(context.Background(), "  ", MigrateOptions()); err == nil {
		t.Fatalf("expected error for empty url")
	}
}

func TestConnectAppliesPoolOptions(t *testing.T) {
	mock := useMock(t)
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "")
	t.Setenv("DB_MAX_OPEN_CONNS", "7")
	t.Setenv("DB_MAX_IDLE_CONNS", "3")
	t.Setenv("DB_CONN_MAX_LIFETIME", "20m")
	t.Setenv("DB_CONN_MAX_IDLE_TIME", "45s")
	t.Setenv("DB_PING_TIMEOUT", "1s")

	opts, err := OptionsFromEnv()
	if err != nil {
		t.Fatalf("OptionsFromEnv: %v", err)
	}
	if opts.MaxIdleConns != 3 || opts.ConnMaxLifetime != 20*time.Minute ||
		opts.ConnMaxIdleTime != 45*time.Second || opts.PingTimeout != time.Second {
		t.Fatalf("unexpected options %+v", opts)
	}

	db, err := Connect(context.Background(), "postgres://workforce@localhost/workforce", opts)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer db.Close()
	if got := db.Stats().MaxOpenConnections; got != 7 {
		t.Fatalf("expected MaxOpenConnections=7, got %d", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestOptionsFromEnvDefaults(t *testing.T) {
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "")
	opts, err := OptionsFromEnv()
	if err != nil {
		t.Fatalf("OptionsFromEnv: %v", err)
	}
	if opts.MaxOpenConns != 10 || opts.MaxIdleConns != 5 || opts.PingTimeout != 5*time.Second {
		t.Fatalf("unexpected defaults: %+v", opts)
	}
}

func TestOptionsFromEnvShrinksPoolInLambda(t *testing.T) {
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "workforce-api")
	t.Setenv("DB_MAX_IDLE_CONNS", "4")

	opts, err := OptionsFromEnv()
	if err != nil {
		t.Fatalf("OptionsFromEnv: %v", err)
	}
	if opts.MaxOpenConns != 2 || opts.ConnMaxIdleTime != 30*time.Second {
		t.Fatalf("expected lambda pool defaults, got %+v", opts)
	}
	if opts.MaxIdleConns != 4 {
		t.Fatalf("explicit DB_MAX_IDLE_CONNS must win, got %d", opts.MaxIdleConns)
	}
}

func TestConnectFailsWhenPingFails(t *testing.T) {
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	mock.ExpectPing().WillReturnError(driver.ErrBadConn)
	prev := openDB
	openDB = func(string, string) (*sql.DB, error) { return mockDB, nil }
	defer func() { openDB = prev }()

	if _, err := Connect(context.Background(), "postgres://x", MigrateOptions()); err == nil {
		t.Fatalf("expected ping error")
	}
}

func TestConnectPropagatesOpenError(t *testing.T) {
	prev := openDB
	openDB = func(name, dsn string) (*sql.DB, error) {
		return nil, driver.ErrBadConn
	}
	defer func() { openDB = prev }()

	if _, err := Connect(context.Background(), "postgres://x", MigrateOptions()); err == nil {
		t.Fatalf("expected open error")
	}
}

func TestWithTxCommitsAndRollsBack(t *testing.T) {
	mock := useMock(t)
	db, err := Connect(context.Background(), "postgres://x", MigrateOptions())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE companies").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	err = WithTx(context.Background(), db, func(tx *sql.Tx) error {
		_, err := tx.Exec("UPDATE companies SET plan = 'pro'")
		return err
	})
	if err != nil {
		t.Fatalf("expected commit, got %v", err)
	}

	want := errors.New("boom")
	mock.ExpectBegin()
	mock.ExpectRollback()
	if err := WithTx(context.Background(), db, func(tx *sql.Tx) error { return want }); !errors.Is(err, want) {
		t.Fatalf("expected fn error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
