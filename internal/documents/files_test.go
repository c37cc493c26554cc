package documents

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestFilesDownloadServesPresignedBlob(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newHarness(t)
	doc := upload(t, h, alice, "march.txt", "payslip body")
	dl, err := h.svc.Download(context.Background(), alice, doc.ID)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	u, err := url.Parse(dl.URL)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	r := gin.New()
	NewFilesHandler(h.svc.Store, h.signer).RegisterRoutes(r.Group("/api/v1"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, u.RequestURI(), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "payslip body" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, `filename="march.txt"`) {
		t.Fatalf("unexpected disposition %q", cd)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/files/download?token=forged", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for forged token, got %d", rec.Code)
	}

	if _, err := h.svc.Delete(context.Background(), alice, doc.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, u.RequestURI(), nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}

	expired := h.signer.WithClock(func() time.Time { return time.Now().Add(-time.Hour) })
	tok, _, _ := expired.IssueFileToken(doc.StorageKey, "march.txt", time.Minute)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/files/download?token="+url.QueryEscape(tok), nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %d", rec.Code)
	}
}
