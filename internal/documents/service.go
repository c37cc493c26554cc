package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"workforce-backend/internal/extract"
	"workforce-backend/internal/progress"
	"workforce-backend/internal/shared/apperr"
	"workforce-backend/internal/shared/metrics"
	"workforce-backend/internal/shared/server/middleware"
	"workforce-backend/internal/shared/storage/object"
	"workforce-backend/internal/shared/telemetry"
)

const (
	DefaultPresignTTL = 15 * time.Minute
	DefaultMaxBytes   = 10 << 20
)

// Service runs the upload pipeline and the access operations on documents.
type Service struct {
	Repo  Repo
	Store object.ObjectStore
	Hub   *progress.Hub
	// Provider is recorded on each document, e.g. "local" or "s3".
	Provider   string
	PresignTTL time.Duration
	MaxBytes   int64

	now func() time.Time
}

func NewService(repo Repo, store object.ObjectStore, hub *progress.Hub, provider string) *Service {
	return &Service{
		Repo:       repo,
		Store:      store,
		Hub:        hub,
		Provider:   provider,
		PresignTTL: DefaultPresignTTL,
		MaxBytes:   DefaultMaxBytes,
		now:        time.Now,
	}
}

// UploadInput is one file received from a client.
type UploadInput struct {
	FileName     string
	ContentType  string
	DocumentType string
	Body         io.Reader
}

// ScopeFor returns the documents visible to p: company admins see their
// whole company, everyone else only their own uploads.
func ScopeFor(p middleware.Principal) Scope {
	return Scope{UserID: p.UserID, CompanyID: p.CompanyID, Company: p.Admin}
}

// Upload stores a file and records its metadata, publishing each stage to the
// uploader's progress subscribers. The returned document carries the id used
// in every event, including the error event of a failed upload.
func (s *Service) Upload(ctx context.Context, actor middleware.Principal, in UploadInput) (Document, error) {
	fileName := strings.TrimSpace(in.FileName)
	if fileName == "" {
		return Document{}, apperr.Validation("No file uploaded")
	}
	docType, err := ParseDocumentType(in.DocumentType)
	if err != nil {
		return Document{}, apperr.Wrap(apperr.KindValidation, "Invalid document type", err)
	}

	run := &pipeline{
		svc:   s,
		actor: actor,
		doc: Document{
			ID:              uuid.NewString(),
			UserID:          actor.UserID,
			CompanyID:       actor.CompanyID,
			FileName:        fileName,
			OriginalName:    fileName,
			DocumentType:    docType,
			StorageProvider: s.Provider,
		},
		start: s.clock(),
	}
	doc, err := run.execute(ctx, in)
	if err != nil {
		run.fail(err)
		return Document{ID: run.doc.ID}, err
	}
	return doc, nil
}

type pipeline struct {
	svc     *Service
	actor   middleware.Principal
	doc     Document
	tracker progress.Tracker
	start   time.Time
}

func (p *pipeline) emit(stage progress.Stage) error {
	if err := p.tracker.Advance(stage); err != nil {
		return err
	}
	if p.svc.Hub != nil {
		p.svc.Hub.Publish(p.actor.UserID, progress.Event{DocumentID: p.doc.ID, Status: stage})
	}
	return nil
}

func (p *pipeline) execute(ctx context.Context, in UploadInput) (Document, error) {
	s := p.svc
	if err := p.emit(progress.StageStarting); err != nil {
		return Document{}, apperr.Internal(err)
	}
	metrics.IncUploadStarted()

	data, err := readLimited(in.Body, s.maxBytes())
	if err != nil {
		return Document{}, err
	}
	if len(data) == 0 {
		return Document{}, apperr.Validation("Uploaded file is empty")
	}
	contentType := resolveContentType(in.ContentType, data)
	p.doc.Metadata = p.extractMetadata(ctx, data, contentType)

	if err := p.emit(progress.StageMovingFile); err != nil {
		return Document{}, apperr.Internal(err)
	}
	key, size, sniffed, err := s.Store.Save(ctx, p.actor.UserID, p.doc.FileName, bytes.NewReader(data))
	if err != nil {
		return Document{}, apperr.Wrap(apperr.KindInternal, "Failed to store file", err)
	}
	p.doc.StorageKey = key
	p.doc.SizeBytes = size
	p.doc.MimeType = contentType
	if p.doc.MimeType == "" {
		p.doc.MimeType = sniffed
	}

	if err := p.emit(progress.StageUpdatingDB); err != nil {
		return Document{}, apperr.Internal(err)
	}
	p.doc.CreatedAt = s.clock().UTC()
	if err := s.Repo.Create(ctx, p.doc); err != nil {
		p.discardBlob(ctx)
		return Document{}, apperr.Wrap(apperr.KindInternal, "Failed to save document", err)
	}

	if err := p.emit(progress.StageDone); err != nil {
		return Document{}, apperr.Internal(err)
	}
	metrics.IncUploadCompleted()
	metrics.ObserveUploadDurationMs(metrics.Since(p.start))
	telemetry.Info("document.uploaded", map[string]any{
		"document_id":   p.doc.ID,
		"user_id":       p.actor.UserID,
		"company_id":    p.actor.CompanyID,
		"size_bytes":    p.doc.SizeBytes,
		"document_type": string(p.doc.DocumentType),
		"page_count":    p.doc.Metadata.PageCount,
	})
	return p.doc, nil
}

func (p *pipeline) extractMetadata(ctx context.Context, data []byte, contentType string) extract.Metadata {
	md, err := extract.FromBytes(ctx, data, contentType, p.doc.FileName)
	if err != nil {
		level := telemetry.Warn
		if errors.Is(err, extract.ErrUnsupported) {
			level = telemetry.Debug
		}
		level("document.extract_skipped", map[string]any{
			"document_id": p.doc.ID,
			"error":       err.Error(),
		})
		return extract.Metadata{}
	}
	return md
}

// discardBlob removes a stored object whose metadata write failed.
func (p *pipeline) discardBlob(ctx context.Context) {
	if p.doc.StorageKey == "" {
		return
	}
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := p.svc.Store.Delete(cleanupCtx, p.doc.StorageKey); err != nil {
		telemetry.Error("document.orphan_blob", map[string]any{
			"document_id": p.doc.ID,
			"storage_key": p.doc.StorageKey,
			"error":       err.Error(),
		})
	}
}

func (p *pipeline) fail(cause error) {
	if err := p.emit(progress.StageError); err != nil {
		telemetry.Error("document.progress_state", map[string]any{"document_id": p.doc.ID, "error": err.Error()})
	}
	metrics.IncUploadFailed()
	telemetry.Warn("document.upload_failed", map[string]any{
		"document_id": p.doc.ID,
		"user_id":     p.actor.UserID,
		"stage":       string(p.tracker.Current()),
		"error":       cause.Error(),
	})
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if r == nil {
		return nil, apperr.Validation("No file uploaded")
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fileTooLarge(limit)
		}
		return nil, apperr.Wrap(apperr.KindValidation, "Unable to read uploaded file", err)
	}
	if int64(len(data)) > limit {
		return nil, fileTooLarge(limit)
	}
	return data, nil
}

func fileTooLarge(limit int64) error {
	return apperr.Validation(fmt.Sprintf("File exceeds the %d byte limit", limit)).With("maxBytes", limit)
}

// resolveContentType prefers the client's declared type unless it is generic.
func resolveContentType(declared string, data []byte) string {
	clean := strings.TrimSpace(strings.Split(declared, ";")[0])
	if clean == "" || clean == "application/octet-stream" {
		return strings.Split(http.DetectContentType(data), ";")[0]
	}
	return strings.ToLower(clean)
}

// List returns the caller's visible documents, newest first.
func (s *Service) List(ctx context.Context, actor middleware.Principal, limit, offset int) ([]Document, error) {
	return s.Search(ctx, actor, "", limit, offset)
}

// Search matches file name, document type and extracted text. A blank query lists.
func (s *Service) Search(ctx context.Context, actor middleware.Principal, query string, limit, offset int) ([]Document, error) {
	docs, err := s.Repo.List(ctx, ListQuery{Scope: ScopeFor(actor), Query: query, Limit: limit, Offset: offset})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return docs, nil
}

// Download is a short-lived URL for a stored document.
type Download struct {
	URL      string
	FileName string
}

func (s *Service) Download(ctx context.Context, actor middleware.Principal, id string) (Download, error) {
	doc, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Download{}, apperr.NotFound("Document not found")
		}
		return Download{}, apperr.Internal(err)
	}
	if !ScopeFor(actor).Allows(doc) {
		return Download{}, apperr.Forbidden("Not authorized to download this document")
	}
	url, err := s.Store.PresignGet(ctx, doc.StorageKey, doc.OriginalName, s.presignTTL())
	if err != nil {
		return Download{}, apperr.Wrap(apperr.KindInternal, "Failed to generate download link", err)
	}
	return Download{URL: url, FileName: doc.OriginalName}, nil
}

// Delete removes the metadata row, then the blob. It reports false when the
// document was already gone. A blob that fails to delete is logged and left.
func (s *Service) Delete(ctx context.Context, actor middleware.Principal, id string) (bool, error) {
	doc, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, apperr.Internal(err)
	}
	if !ScopeFor(actor).Allows(doc) {
		return false, apperr.Forbidden("Not authorized to delete this document")
	}
	if err := s.Repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, apperr.Internal(err)
	}
	if err := s.Store.Delete(ctx, doc.StorageKey); err != nil {
		telemetry.Error("document.orphan_blob", map[string]any{
			"document_id": doc.ID,
			"storage_key": doc.StorageKey,
			"error":       err.Error(),
		})
	}
	telemetry.Info("document.deleted", map[string]any{"document_id": doc.ID, "user_id": actor.UserID})
	return true, nil
}

func (s *Service) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

func (s *Service) maxBytes() int64 {
	if s.MaxBytes <= 0 {
		return DefaultMaxBytes
	}
	return s.MaxBytes
}

func (s *Service) presignTTL() time.Duration {
	if s.PresignTTL <= 0 {
		return DefaultPresignTTL
	}
	return s.PresignTTL
}
