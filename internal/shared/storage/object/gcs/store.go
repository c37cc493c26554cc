package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"

	"workforce-backend/internal/shared/storage/object"
)

// Store implements ObjectStore on Google Cloud Storage.
type Store struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
	prefix string
}

// New uses application default credentials.
func New(ctx context.Context, bucket, prefix string) (*Store, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	return &Store{
		client: client,
		bucket: client.Bucket(bucket),
		name:   bucket,
		prefix: strings.Trim(strings.TrimSpace(prefix), "/"),
	}, nil
}

func (s *Store) objectName(key string) string {
	key = strings.TrimLeft(key, "/")
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

func (s *Store) Save(ctx context.Context, ownerID string, fileName string, r io.Reader) (string, int64, string, error) {
	storageKey, err := object.NewKey(ownerID, fileName)
	if err != nil {
		return "", 0, "", err
	}
	mimeType, body, err := object.Sniff(r)
	if err != nil {
		return "", 0, "", err
	}

	name := s.objectName(storageKey)
	writer := s.bucket.Object(name).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = mimeType

	written, err := io.Copy(writer, body)
	if err != nil {
		_ = writer.Close()
		return "", 0, "", fmt.Errorf("gcs write object=%s: %w", name, err)
	}
	if err := writer.Close(); err != nil {
		return "", 0, "", fmt.Errorf("gcs finalize object=%s: %w", name, err)
	}
	return storageKey, written, mimeType, nil
}

func (s *Store) Open(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	rc, err := s.bucket.Object(s.objectName(storageKey)).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, object.ErrNotFound
		}
		return nil, fmt.Errorf("gcs read object: %w", err)
	}
	return rc, nil
}

func (s *Store) Delete(ctx context.Context, storageKey string) error {
	err := s.bucket.Object(s.objectName(storageKey)).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("gcs delete object: %w", err)
	}
	return nil
}

// PresignGet signs a V4 URL with the client's credentials.
func (s *Store) PresignGet(ctx context.Context, storageKey string, fileName string, ttl time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	u, err := s.bucket.SignedURL(s.objectName(storageKey), &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(ttl),
		QueryParameters: map[string][]string{
			"response-content-disposition": {object.ContentDisposition(fileName)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("gcs sign url: %w", err)
	}
	return u, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.bucket.Attrs(ctx); err != nil {
		return fmt.Errorf("gcs bucket %s: %w", s.name, err)
	}
	return nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

var _ object.ObjectStore = (*Store)(nil)
