package users

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"workforce-backend/internal/shared/storage/db"
)

const uniqueViolation = "23505"

type PGRepo struct {
	DB *sql.DB
}

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const userColumns = `id, company_id, name, email, password_hash, role, verified, onboarding_status, google_id, github_id, created_at, updated_at`

// Insert writes user through ex so it can join a caller's transaction.
func Insert(ctx context.Context, ex Execer, user User) error {
	const query = `
INSERT INTO users (id, company_id, name, email, password_hash, role, verified, onboarding_status, google_id, github_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())`
	_, err := ex.ExecContext(ctx, query,
		user.ID,
		user.CompanyID,
		user.Name,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		user.Verified,
		string(user.OnboardingStatus),
		nullableString(user.GoogleID),
		nullableString(user.GithubID),
	)
	if IsUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

// IsUniqueViolation reports whether err is a Postgres unique_violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func (r *PGRepo) Create(ctx context.Context, user User) error {
	return Insert(ctx, r.DB, user)
}

func (r *PGRepo) GetByID(ctx context.Context, userID string) (User, error) {
	if !db.IsUUID(userID) {
		return User{}, ErrNotFound
	}
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 LIMIT 1`, userID)
}

func (r *PGRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = $1 LIMIT 1`, NormalizeEmail(email))
}

func (r *PGRepo) GetByGoogleID(ctx context.Context, googleID string) (User, error) {
	if googleID == "" {
		return User{}, ErrNotFound
	}
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE google_id = $1 LIMIT 1`, googleID)
}

func (r *PGRepo) getOne(ctx context.Context, query string, arg any) (User, error) {
	user, err := scanUser(r.DB.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return user, nil
}

func (r *PGRepo) ListByCompany(ctx context.Context, companyID string) ([]User, error) {
	if !db.IsUUID(companyID) {
		return []User{}, nil
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE company_id = $1 ORDER BY created_at ASC`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *PGRepo) CountByCompany(ctx context.Context, companyID string) (int, error) {
	if !db.IsUUID(companyID) {
		return 0, nil
	}
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM users WHERE company_id = $1`, companyID).Scan(&n)
	return n, err
}

func (r *PGRepo) MarkVerified(ctx context.Context, userID string) error {
	return r.execOne(ctx, `UPDATE users SET verified = TRUE, updated_at = now() WHERE id = $1`, userID)
}

func (r *PGRepo) SetOnboardingStatus(ctx context.Context, userID string, status OnboardingStatus) error {
	return r.execOne(ctx, `UPDATE users SET onboarding_status = $2, updated_at = now() WHERE id = $1`, userID, string(status))
}

func (r *PGRepo) LinkGoogle(ctx context.Context, userID, googleID string) error {
	err := r.execOne(ctx, `UPDATE users SET google_id = $2, updated_at = now() WHERE id = $1`, userID, googleID)
	if IsUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

// execOne expects args[0] to be the row's id.
func (r *PGRepo) execOne(ctx context.Context, query string, args ...any) error {
	if id, _ := args[0].(string); !db.IsUUID(id) {
		return ErrNotFound
	}
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var (
		u        User
		role     string
		status   string
		googleID sql.NullString
		githubID sql.NullString
	)
	if err := row.Scan(
		&u.ID,
		&u.CompanyID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&role,
		&u.Verified,
		&status,
		&googleID,
		&githubID,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return User{}, err
	}
	u.Role = Role(role)
	u.OnboardingStatus = OnboardingStatus(status)
	u.GoogleID = googleID.String
	u.GithubID = githubID.String
	return u, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
