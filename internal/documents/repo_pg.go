package documents

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"workforce-backend/internal/shared/storage/db"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const documentColumns = `id, user_id, company_id, file_name, original_name, mime_type, size_bytes, document_type, storage_provider, storage_key, metadata, created_at`

func (r *PGRepo) Create(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO documents (` + documentColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	meta, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	originalName := doc.OriginalName
	if originalName == "" {
		originalName = doc.FileName
	}
	docType := doc.DocumentType
	if docType == "" {
		docType = TypeOther
	}

	_, err = r.DB.ExecContext(ctx, query,
		doc.ID,
		doc.UserID,
		doc.CompanyID,
		doc.FileName,
		originalName,
		doc.MimeType,
		doc.SizeBytes,
		string(docType),
		doc.StorageProvider,
		doc.StorageKey,
		meta,
		doc.CreatedAt,
	)
	return err
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (Document, error) {
	if !db.IsUUID(id) {
		return Document{}, ErrNotFound
	}
	const query = `SELECT ` + documentColumns + ` FROM documents WHERE id = $1 LIMIT 1`
	doc, err := scanDocument(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

// List filters by owner or company and, for a non-blank query, by a
// case-insensitive match on file name, document type and metadata text.
func (r *PGRepo) List(ctx context.Context, q ListQuery) ([]Document, error) {
	q = q.normalized()

	var (
		where []string
		args  []any
	)
	if q.Scope.Company {
		args = append(args, q.Scope.CompanyID)
		where = append(where, fmt.Sprintf("company_id = $%d", len(args)))
	} else {
		args = append(args, q.Scope.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if q.Query != "" {
		args = append(args, "%"+escapeLike(q.Query)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(
			"(file_name ILIKE $%[1]d OR original_name ILIKE $%[1]d OR document_type ILIKE $%[1]d OR metadata->>'text' ILIKE $%[1]d)", n))
	}
	args = append(args, q.Limit, q.Offset)
	query := `SELECT ` + documentColumns + ` FROM documents WHERE ` + strings.Join(where, " AND ") +
		fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (r *PGRepo) Delete(ctx context.Context, id string) error {
	if !db.IsUUID(id) {
		return ErrNotFound
	}
	res, err := r.DB.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
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

func scanDocument(row rowScanner) (Document, error) {
	var (
		doc     Document
		docType string
		meta    []byte
	)
	if err := row.Scan(
		&doc.ID,
		&doc.UserID,
		&doc.CompanyID,
		&doc.FileName,
		&doc.OriginalName,
		&doc.MimeType,
		&doc.SizeBytes,
		&docType,
		&doc.StorageProvider,
		&doc.StorageKey,
		&meta,
		&doc.CreatedAt,
	); err != nil {
		return Document{}, err
	}
	doc.DocumentType = DocumentType(docType)
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &doc.Metadata); err != nil {
			return Document{}, fmt.Errorf("decode metadata for %s: %w", doc.ID, err)
		}
	}
	return doc, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

var _ Repo = (*PGRepo)(nil)
