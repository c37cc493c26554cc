package auth

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"workforce-backend/internal/shared/server/middleware"
	"workforce-backend/internal/shared/server/respond"
)

type Handler struct {
	Svc          *Service
	SecureCookie bool
}

func NewHandler(svc *Service, secureCookie bool) *Handler {
	return &Handler{Svc: svc, SecureCookie: secureCookie}
}

// RegisterRoutes attaches unauthenticated account routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/auth/login", h.login)
	rg.POST("/auth/signup", h.signup)
	rg.POST("/auth/logout", h.logout)
	rg.GET("/auth/verify", h.verify)
	rg.POST("/auth/verify/resend", h.resend)
}

func (h *Handler) login(c *gin.Context) {
	var in LoginInput
	_ = c.ShouldBindJSON(&in)
	session, err := h.Svc.Login(c.Request.Context(), in)
	if err != nil {
		respond.Fail(c, err)
		return
	}
	setSessionCookie(c, session.Token, session.ExpiresAt, h.SecureCookie)
	respond.Success(c, http.StatusOK, gin.H{
		"token":   session.Token,
		"data":    session.User,
		"message": "Login successful",
	})
}

func (h *Handler) signup(c *gin.Context) {
	var in SignupInput
	_ = c.ShouldBindJSON(&in)
	user, err := h.Svc.Signup(c.Request.Context(), in)
	if err != nil {
		respond.Fail(c, err)
		return
	}
	respond.Success(c, http.StatusCreated, gin.H{
		"data":    user,
		"message": "Account created. Please verify your email",
	})
}

func (h *Handler) logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, "", -1, "/", "", h.SecureCookie, true)
	respond.Success(c, http.StatusOK, gin.H{"message": "Logged out"})
}

func (h *Handler) verify(c *gin.Context) {
	user, err := h.Svc.Verify(c.Request.Context(), c.Query("token"))
	if err != nil {
		respond.Fail(c, err)
		return
	}
	respond.Success(c, http.StatusOK, gin.H{"data": user, "message": "Email verified successfully"})
}

type resendRequest struct {
	Email string `json:"email"`
}

func (h *Handler) resend(c *gin.Context) {
	var req resendRequest
	_ = c.ShouldBindJSON(&req)
	if err := h.Svc.ResendVerification(c.Request.Context(), req.Email); err != nil {
		respond.Fail(c, err)
		return
	}
	respond.Success(c, http.StatusOK, gin.H{"message": "If the account exists, a verification email was sent"})
}

func setSessionCookie(c *gin.Context, token string, expires time.Time, secure bool) {
	maxAge := int(time.Until(expires).Seconds())
	if maxAge < 0 {
		maxAge = 0
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, token, maxAge, "/", "", secure, true)
}
