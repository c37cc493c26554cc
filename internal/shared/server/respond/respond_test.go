package respond

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"workforce-backend/internal/shared/apperr"
)

func serve(t *testing.T, h gin.HandlerFunc) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", h)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return rec, body
}

func TestSuccessEnvelope(t *testing.T) {
	rec, body := serve(t, func(c *gin.Context) {
		Success(c, http.StatusCreated, gin.H{"message": "ok", "data": 1})
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if body["success"] != true || body["message"] != "ok" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestFailMapsKindAndExtraFields(t *testing.T) {
	rec, body := serve(t, func(c *gin.Context) {
		Fail(c, apperr.Forbidden("Please verify your email").With("needsVerification", true))
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if body["success"] != false || body["needsVerification"] != true {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestFailPassesThroughUnknownErrors(t *testing.T) {
	rec, body := serve(t, func(c *gin.Context) {
		Fail(c, errors.New("connection refused"))
	})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if body["message"] != "connection refused" {
		t.Fatalf("expected message pass-through, got %v", body["message"])
	}
}
