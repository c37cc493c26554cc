package companies

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"workforce-backend/internal/shared/server/middleware"
	"workforce-backend/internal/shared/server/respond"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterPublicRoutes attaches unauthenticated routes.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.POST("/company/register", h.register)
}

// RegisterRoutes attaches routes for authenticated members.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/company", h.get)
	rg.PATCH("/company", middleware.RequireAdmin(), h.rename)
}

// RegisterSuperAdminRoutes expects rg to enforce RequireSuperAdmin.
func (h *Handler) RegisterSuperAdminRoutes(rg *gin.RouterGroup) {
	rg.GET("/companies", h.list)
	rg.PATCH("/companies/:id/plan", h.changePlan)
}

func (h *Handler) register(c *gin.Context) {
	var in RegisterInput
	// An unreadable body is treated like an empty one so the caller gets the
	// missing-fields message.
	_ = c.ShouldBindJSON(&in)

	company, err := h.Svc.Register(c.Request.Context(), in)
	if err != nil {
		respond.Fail(c, err)
		return
	}
	respond.Success(c, http.StatusCreated, gin.H{
		"data":    company,
		"message": "Company registered successfully",
	})
}

func (h *Handler) get(c *gin.Context) {
	p, _ := middleware.CurrentPrincipal(c)
	company, err := h.Svc.Get(c.Request.Context(), p.CompanyID)
	if err != nil {
		respond.Fail(c, err)
		return
	}
	respond.Success(c, http.StatusOK, gin.H{"data": company})
}

type renameRequest struct {
	CompanyName string `json:"companyName"`
}

func (h *Handler) rename(c *gin.Context) {
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	p, _ := middleware.CurrentPrincipal(c)
	company, err := h.Svc.Rename(c.Request.Context(), p.CompanyID, req.CompanyName)
	if err != nil {
		respond.Fail(c, err)
		return
	}
	respond.Success(c, http.StatusOK, gin.H{"data": company, "message": "Company updated"})
}

func (h *Handler) list(c *gin.Context) {
	list, err := h.Svc.List(c.Request.Context())
	if err != nil {
		respond.Fail(c, err)
		return
	}
	respond.Success(c, http.StatusOK, gin.H{"data": list})
}

type planRequest struct {
	Plan         string `json:"plan"`
	MaxEmployees int    `json:"maxEmployees"`
}

func (h *Handler) changePlan(c *gin.Context) {
	var req planRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	company, err := h.Svc.ChangePlan(c.Request.Context(), c.Param("id"), req.Plan, req.MaxEmployees)
	if err != nil {
		respond.Fail(c, err)
		return
	}
	respond.Success(c, http.StatusOK, gin.H{"data": company, "message": "Plan updated"})
}
