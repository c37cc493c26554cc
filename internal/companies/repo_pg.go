package companies

import (
	"context"
	"database/sql"
	"errors"

	"workforce-backend/internal/shared/storage/db"
	"workforce-backend/internal/users"
)

type PGRepo struct {
	DB *sql.DB
}

const companyColumns = `id, name, company_code, plan, max_employees, created_at, updated_at`

func (r *PGRepo) CreateWithAdmin(ctx context.Context, company Company, admin users.User) error {
	return db.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		const query = `
INSERT INTO companies (id, name, company_code, plan, max_employees, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, now(), now())`
		_, err := tx.ExecContext(ctx, query,
			company.ID,
			company.Name,
			NormalizeCode(company.Code),
			string(company.Plan),
			company.MaxEmployees,
		)
		if err != nil {
			if users.IsUniqueViolation(err) {
				return ErrConflict
			}
			return err
		}
		return users.Insert(ctx, tx, admin)
	})
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (Company, error) {
	if !db.IsUUID(id) {
		return Company{}, ErrNotFound
	}
	return r.getOne(ctx, `SELECT `+companyColumns+` FROM companies WHERE id = $1`, id)
}

func (r *PGRepo) GetByCode(ctx context.Context, code string) (Company, error) {
	return r.getOne(ctx, `SELECT `+companyColumns+` FROM companies WHERE lower(company_code) = $1`, NormalizeCode(code))
}

func (r *PGRepo) List(ctx context.Context) ([]Company, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+companyColumns+` FROM companies ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Company, 0)
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PGRepo) UpdateName(ctx context.Context, id, name string) (Company, error) {
	if !db.IsUUID(id) {
		return Company{}, ErrNotFound
	}
	return r.getOne(ctx, `
UPDATE companies SET name = $2, updated_at = now()
WHERE id = $1
RETURNING `+companyColumns, id, name)
}

func (r *PGRepo) UpdatePlan(ctx context.Context, id string, plan Plan, maxEmployees int) (Company, error) {
	if !db.IsUUID(id) {
		return Company{}, ErrNotFound
	}
	return r.getOne(ctx, `
UPDATE companies SET plan = $2, max_employees = $3, updated_at = now()
WHERE id = $1
RETURNING `+companyColumns, id, string(plan), maxEmployees)
}

func (r *PGRepo) getOne(ctx context.Context, query string, args ...any) (Company, error) {
	c, err := scanCompany(r.DB.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Company{}, ErrNotFound
		}
		return Company{}, err
	}
	return c, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCompany(row rowScanner) (Company, error) {
	var (
		c    Company
		plan string
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Code, &plan, &c.MaxEmployees, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return Company{}, err
	}
	c.Plan = Plan(plan)
	return c, nil
}
