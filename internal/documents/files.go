package documents

import (
	"errors"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	sharedauth "workforce-backend/internal/shared/auth"
	"workforce-backend/internal/shared/server/respond"
	"workforce-backend/internal/shared/storage/object"
)

// FileTokenVerifier validates read grants minted for local presigned URLs.
type FileTokenVerifier interface {
	VerifyFileToken(token string) (sharedauth.FileClaims, error)
}

// FilesHandler serves blobs of the local object store behind signed tokens.
type FilesHandler struct {
	Store  object.ObjectStore
	Tokens FileTokenVerifier
}

func NewFilesHandler(store object.ObjectStore, tokens FileTokenVerifier) *FilesHandler {
	return &FilesHandler{Store: store, Tokens: tokens}
}

func (h *FilesHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/files/download", h.download)
}

func (h *FilesHandler) download(c *gin.Context) {
	claims, err := h.Tokens.VerifyFileToken(c.Query("token"))
	if err != nil {
		respond.Error(c, http.StatusUnauthorized, "Invalid or expired download link", nil)
		return
	}

	body, err := h.Store.Open(c.Request.Context(), claims.Key)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "File not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	defer body.Close()

	contentType := mime.TypeByExtension(filepath.Ext(claims.Filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, -1, contentType, body, map[string]string{
		"Content-Disposition": object.ContentDisposition(claims.Filename),
	})
}
