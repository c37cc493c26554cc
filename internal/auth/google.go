package auth

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	googleoauth "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"workforce-backend/internal/shared/apperr"
	"workforce-backend/internal/shared/server/respond"
	"workforce-backend/internal/shared/telemetry"
)

// ProfileFetcher exchanges an OAuth token for the Google profile.
type ProfileFetcher func(ctx context.Context, ts oauth2.TokenSource) (GoogleProfile, error)

// GoogleHandler handles the Google OAuth redirect flow.
type GoogleHandler struct {
	svc          *Service
	oauthConfig  *oauth2.Config
	uiRedirect   string
	stateTTL     time.Duration
	stateStore   *stateStore
	fetch        ProfileFetcher
	secureCookie bool
}

// NewGoogleHandler builds a GoogleHandler.
func NewGoogleHandler(svc *Service, clientID, clientSecret, redirectURL, uiRedirect string, secureCookie bool) *GoogleHandler {
	return &GoogleHandler{
		svc: svc,
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes: []string{
				googleoauth.UserinfoEmailScope,
				googleoauth.UserinfoProfileScope,
			},
			Endpoint: google.Endpoint,
		},
		uiRedirect:   uiRedirect,
		stateTTL:     5 * time.Minute,
		stateStore:   newStateStore(),
		fetch:        fetchGoogleProfile,
		secureCookie: secureCookie,
	}
}

// RegisterRoutes attaches Google auth routes.
func (h *GoogleHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/auth/google/start", h.start)
	rg.GET("/auth/google/callback", h.callback)
}

func (h *GoogleHandler) configured() bool {
	return h.oauthConfig.ClientID != "" && h.oauthConfig.ClientSecret != "" && h.oauthConfig.RedirectURL != ""
}

func (h *GoogleHandler) start(c *gin.Context) {
	if !h.configured() {
		respond.Error(c, http.StatusInternalServerError, "Google auth not configured", nil)
		return
	}

	state := uuid.NewString()
	h.stateStore.put(state, time.Now().Add(h.stateTTL))
	c.Redirect(http.StatusFound, h.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOnline))
}

func (h *GoogleHandler) callback(c *gin.Context) {
	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		respond.Error(c, http.StatusBadRequest, "missing state or code", nil)
		return
	}
	if !h.stateStore.consume(state) {
		respond.Error(c, http.StatusBadRequest, "invalid or expired state", nil)
		return
	}

	ctx := c.Request.Context()
	token, err := h.oauthConfig.Exchange(ctx, code)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "failed to exchange code", nil)
		return
	}

	profile, err := h.fetch(ctx, h.oauthConfig.TokenSource(ctx, token))
	if err != nil {
		telemetry.Warn("auth.google_profile_failed", map[string]any{"error": err.Error()})
		respond.Error(c, http.StatusBadGateway, "failed to fetch user profile", nil)
		return
	}

	session, err := h.svc.GoogleLogin(ctx, profile)
	if err != nil {
		respond.Fail(c, err)
		return
	}
	h.finish(c, session)
}

func (h *GoogleHandler) finish(c *gin.Context, session Session) {
	redirectURL, err := appendToken(h.uiRedirect, session.Token)
	if err != nil {
		respond.Fail(c, apperr.Internal(err))
		return
	}
	setSessionCookie(c, session.Token, session.ExpiresAt, h.secureCookie)
	c.Redirect(http.StatusFound, redirectURL)
}

func fetchGoogleProfile(ctx context.Context, ts oauth2.TokenSource) (GoogleProfile, error) {
	svc, err := googleoauth.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return GoogleProfile{}, err
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return GoogleProfile{}, err
	}
	return GoogleProfile{
		ID:            info.Id,
		Email:         info.Email,
		Name:          info.Name,
		VerifiedEmail: info.VerifiedEmail != nil && *info.VerifiedEmail,
	}, nil
}

type stateStore struct {
	items map[string]time.Time
	mu    sync.Mutex
	now   func() time.Time
}

func newStateStore() *stateStore {
	return &stateStore{items: make(map[string]time.Time), now: time.Now}
}

func (s *stateStore) put(state string, exp time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, v := range s.items {
		if now.After(v) {
			delete(s.items, k)
		}
	}
	s.items[state] = exp
}

// consume reports whether state was issued and unexpired. A state is single use.
func (s *stateStore) consume(state string) bool {
	s.mu.Lock()
	exp, ok := s.items[state]
	if ok {
		delete(s.items, state)
	}
	s.mu.Unlock()
	return ok && !s.now().After(exp)
}

func appendToken(rawURL, token string) (string, error) {
	if rawURL == "" {
		return "", errors.New("redirect url required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
