package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestPGRepoInsertMapsUniqueViolation(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	user := User{
		ID:               "u1",
		CompanyID:        "c1",
		Name:             "Ann",
		Email:            "ann@example.com",
		PasswordHash:     "hash",
		Role:             RoleUser,
		OnboardingStatus: OnboardingPending,
	}

	mock.ExpectExec("INSERT INTO users").
		WithArgs("u1", "c1", "Ann", "ann@example.com", "hash", "user", false, "pending", nil, nil).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_lower_idx"})

	if err := repo.Create(context.Background(), user); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByEmailLowercases(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "company_id", "name", "email", "password_hash", "role", "verified",
		"onboarding_status", "google_id", "github_id", "created_at", "updated_at",
	}).AddRow("u1", "c1", "Ann", "Ann@Example.com", "hash", "admin", true, "approved", "g-1", nil, now, now)

	mock.ExpectQuery("SELECT (.+) FROM users WHERE lower\\(email\\) = \\$1").
		WithArgs("ann@example.com").
		WillReturnRows(rows)

	got, err := (&PGRepo{DB: db}).GetByEmail(context.Background(), "ANN@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if got.Role != RoleAdmin || !got.Verified || got.GoogleID != "g-1" || got.GithubID != "" {
		t.Fatalf("unexpected user %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoSetOnboardingStatusNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectExec("UPDATE users SET onboarding_status").
		WithArgs(ghostID, "approved").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = (&PGRepo{DB: db}).SetOnboardingStatus(context.Background(), ghostID, OnboardingApproved)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

const ghostID = "7c9e6679-7425-40de-944b-e07fc1f90ae7"

func TestPGRepoMalformedIDsSkipTheDatabase(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	repo := &PGRepo{DB: db}
	ctx := context.Background()

	if _, err := repo.GetByID(ctx, "abc"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetByID: expected ErrNotFound, got %v", err)
	}
	if err := repo.MarkVerified(ctx, "abc"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("MarkVerified: expected ErrNotFound, got %v", err)
	}
	if err := repo.LinkGoogle(ctx, "abc", "g-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("LinkGoogle: expected ErrNotFound, got %v", err)
	}
	if list, err := repo.ListByCompany(ctx, "abc"); err != nil || list == nil || len(list) != 0 {
		t.Fatalf("ListByCompany: expected empty list, got %#v %v", list, err)
	}
	if n, err := repo.CountByCompany(ctx, "abc"); err != nil || n != 0 {
		t.Fatalf("CountByCompany: expected 0, got %d %v", n, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no query should reach the database: %v", err)
	}
}
