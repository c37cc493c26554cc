package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"workforce-backend/internal/shared/storage/object"
)

// DownloadPath is the route that serves presigned local downloads.
const DownloadPath = "/api/v1/files/download"

// TokenIssuer signs read grants for local presigned URLs.
type TokenIssuer interface {
	IssueFileToken(key, filename string, ttl time.Duration) (string, time.Time, error)
}

// Store implements ObjectStore using the local filesystem.
type Store struct {
	baseDir string
	baseURL string
	tokens  TokenIssuer
}

// New creates a new local object store rooted at baseDir. Presigned URLs
// point at baseURL + DownloadPath and carry a token from tokens.
func New(baseDir, baseURL string, tokens TokenIssuer) *Store {
	return &Store{
		baseDir: baseDir,
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
	}
}

// Save writes the reader to disk under the owner's namespace with a random prefix.
func (s *Store) Save(ctx context.Context, ownerID string, fileName string, r io.Reader) (string, int64, string, error) {
	storageKey, err := object.NewKey(ownerID, fileName)
	if err != nil {
		return "", 0, "", err
	}
	if err := ctx.Err(); err != nil {
		return "", 0, "", err
	}

	fullPath, err := s.resolve(storageKey)
	if err != nil {
		return "", 0, "", err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", 0, "", fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.OpenFile(fullPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", 0, "", fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	mimeType, body, err := object.Sniff(r)
	if err != nil {
		return "", 0, "", err
	}
	written, err := io.Copy(f, body)
	if err != nil {
		_ = os.Remove(fullPath)
		return "", 0, "", fmt.Errorf("write body: %w", err)
	}
	return storageKey, written, mimeType, nil
}

// Open opens a stored object for reading.
func (s *Store) Open(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fullPath, err := s.resolve(storageKey)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fullPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, object.ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

// Delete removes the file; a missing file is ignored.
func (s *Store) Delete(ctx context.Context, storageKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fullPath, err := s.resolve(storageKey)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove: %w", err)
	}
	return nil
}

// PresignGet returns a URL served by the API that is valid for ttl.
func (s *Store) PresignGet(ctx context.Context, storageKey string, fileName string, ttl time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.tokens == nil {
		return "", errors.New("local store has no token issuer")
	}
	if _, err := s.resolve(storageKey); err != nil {
		return "", err
	}
	tok, _, err := s.tokens.IssueFileToken(storageKey, fileName, ttl)
	if err != nil {
		return "", fmt.Errorf("issue file token: %w", err)
	}
	return s.baseURL + DownloadPath + "?token=" + url.QueryEscape(tok), nil
}

// Ping verifies the base directory is usable.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.MkdirAll(s.baseDir, 0o755)
}

func (s *Store) resolve(storageKey string) (string, error) {
	clean := filepath.Clean(storageKey)
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) || clean == "." {
		return "", fmt.Errorf("invalid storage key")
	}
	return filepath.Join(s.baseDir, clean), nil
}

var _ object.ObjectStore = (*Store)(nil)
