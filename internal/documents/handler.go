package documents

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"workforce-backend/internal/shared/server/middleware"
	"workforce-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches document routes. rg must already authenticate and
// enforce onboarding.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/documents", h.list)
	rg.GET("/documents/search", h.search)
	rg.GET("/documents/:id/download", h.download)
	rg.POST("/documents", h.upload)
	rg.DELETE("/documents/:id", h.delete)
}

func (h *Handler) upload(c *gin.Context) {
	p, _ := middleware.CurrentPrincipal(c)
	// multipart overhead on top of the file itself
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.Svc.maxBytes()+1<<20)

	fileHeader, err := c.FormFile("document")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Fail(c, fileTooLarge(h.Svc.maxBytes()))
			return
		}
		respond.Error(c, http.StatusBadRequest, "No file uploaded", nil)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "Unable to read uploaded file", nil)
		return
	}
	defer file.Close()

	doc, err := h.Svc.Upload(c.Request.Context(), p, UploadInput{
		FileName:     fileHeader.Filename,
		ContentType:  fileHeader.Header.Get("Content-Type"),
		DocumentType: c.PostForm("documentType"),
		Body:         file,
	})
	if doc.ID != "" {
		c.Set("documentId", doc.ID)
	}
	if err != nil {
		c.Set("uploadStage", "error")
		respond.Fail(c, err)
		return
	}
	c.Set("uploadStage", "done")
	respond.Success(c, http.StatusCreated, gin.H{
		"message":  "Document uploaded successfully",
		"document": doc,
	})
}

func (h *Handler) list(c *gin.Context) {
	p, _ := middleware.CurrentPrincipal(c)
	limit, offset := paging(c)
	docs, err := h.Svc.List(c.Request.Context(), p, limit, offset)
	if err != nil {
		respond.Fail(c, err)
		return
	}
	respond.Success(c, http.StatusOK, gin.H{"data": docs})
}

func (h *Handler) search(c *gin.Context) {
	p, _ := middleware.CurrentPrincipal(c)
	limit, offset := paging(c)
	docs, err := h.Svc.Search(c.Request.Context(), p, c.Query("q"), limit, offset)
	if err != nil {
		respond.Fail(c, err)
		return
	}
	respond.Success(c, http.StatusOK, gin.H{"documents": docs})
}

func (h *Handler) download(c *gin.Context) {
	p, _ := middleware.CurrentPrincipal(c)
	id := c.Param("id")
	c.Set("documentId", id)
	dl, err := h.Svc.Download(c.Request.Context(), p, id)
	if err != nil {
		respond.Fail(c, err)
		return
	}
	respond.Success(c, http.StatusOK, gin.H{
		"downloadUrl": dl.URL,
		"filename":    dl.FileName,
	})
}

func (h *Handler) delete(c *gin.Context) {
	p, _ := middleware.CurrentPrincipal(c)
	id := c.Param("id")
	c.Set("documentId", id)
	deleted, err := h.Svc.Delete(c.Request.Context(), p, id)
	if err != nil {
		respond.Fail(c, err)
		return
	}
	message := "Document deleted successfully"
	if !deleted {
		message = "Document already deleted"
	}
	respond.Success(c, http.StatusOK, gin.H{"message": message})
}

func paging(c *gin.Context) (limit, offset int) {
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	return limit, offset
}
