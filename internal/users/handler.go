package users

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"workforce-backend/internal/shared/config"
	"workforce-backend/internal/shared/server/middleware"
	"workforce-backend/internal/shared/server/respond"
	"workforce-backend/internal/shared/validation"
)

type Handler struct {
	Svc        *Service
	SuperAdmin config.SuperAdmin
}

func NewHandler(svc *Service, superAdmin config.SuperAdmin) *Handler {
	return &Handler{Svc: svc, SuperAdmin: superAdmin}
}

// RegisterRoutes attaches routes for any authenticated account.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", h.me)
	rg.POST("/onboarding/submit", h.submitOnboarding)
}

// RegisterAdminRoutes attaches company-admin routes. rg must already enforce RequireAdmin.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.GET("/users", h.list)
	rg.PATCH("/users/:id/onboarding", h.setOnboarding)
}

type meResponse struct {
	User
	IsAdmin      bool `json:"isAdmin"`
	IsSuperAdmin bool `json:"isSuperAdmin"`
}

func (h *Handler) me(c *gin.Context) {
	p, _ := middleware.CurrentPrincipal(c)
	user, err := h.Svc.GetByID(c.Request.Context(), p.UserID)
	if err != nil {
		respond.Fail(c, err)
		return
	}
	user.CompanyID = p.CompanyID
	respond.Success(c, http.StatusOK, gin.H{"data": meResponse{
		User:         user,
		IsAdmin:      user.IsAdmin(),
		IsSuperAdmin: middleware.IsSuperAdmin(p, h.SuperAdmin),
	}})
}

func (h *Handler) submitOnboarding(c *gin.Context) {
	p, _ := middleware.CurrentPrincipal(c)
	user, err := h.Svc.SubmitOnboarding(c.Request.Context(), p.UserID)
	if err != nil {
		respond.Fail(c, err)
		return
	}
	respond.Success(c, http.StatusOK, gin.H{"data": user, "message": "Onboarding submitted for review"})
}

func (h *Handler) list(c *gin.Context) {
	p, _ := middleware.CurrentPrincipal(c)
	list, err := h.Svc.ListCompanyUsers(c.Request.Context(), p.CompanyID)
	if err != nil {
		respond.Fail(c, err)
		return
	}
	respond.Success(c, http.StatusOK, gin.H{"data": list})
}

type onboardingRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *Handler) setOnboarding(c *gin.Context) {
	var req onboardingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := validation.Struct(req, ""); err != nil {
		respond.Fail(c, err)
		return
	}
	p, _ := middleware.CurrentPrincipal(c)
	user, err := h.Svc.SetOnboardingStatus(c.Request.Context(), p, c.Param("id"), req.Status)
	if err != nil {
		respond.Fail(c, err)
		return
	}
	respond.Success(c, http.StatusOK, gin.H{"data": user, "message": "Onboarding status updated"})
}
