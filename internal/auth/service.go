package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"workforce-backend/internal/companies"
	"workforce-backend/internal/shared/apperr"
	sharedauth "workforce-backend/internal/shared/auth"
	"workforce-backend/internal/shared/mailer"
	"workforce-backend/internal/shared/metrics"
	"workforce-backend/internal/shared/telemetry"
	"workforce-backend/internal/shared/validation"
	"workforce-backend/internal/users"
)

const (
	defaultVerifyTTL = 48 * time.Hour
	verifyPath       = "/api/v1/auth/verify"
)

// Service handles password accounts, e-mail verification and SSO linking.
type Service struct {
	Users     users.Repo
	Companies companies.Repo
	Signer    *sharedauth.Signer
	Mailer    mailer.Sender
	// BaseURL is the public API origin used in verification links.
	BaseURL   string
	VerifyTTL time.Duration
}

type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type SignupInput struct {
	Name        string `json:"name" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	CompanyCode string `json:"companyCode" validate:"required"`
}

// Session is an issued session token for a user.
type Session struct {
	User      users.User
	Token     string
	ExpiresAt time.Time
}

// Login checks e-mail and password and issues a session.
func (s *Service) Login(ctx context.Context, in LoginInput) (Session, error) {
	if err := validation.Struct(in, "Email and password are required"); err != nil {
		return Session{}, err
	}
	user, err := s.Users.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			metrics.IncLoginFailed()
			return Session{}, apperr.Auth("Invalid email or password")
		}
		return Session{}, apperr.Internal(err)
	}
	if err := sharedauth.CheckPassword(user.PasswordHash, in.Password); err != nil {
		metrics.IncLoginFailed()
		return Session{}, apperr.Auth("Invalid email or password")
	}
	if !user.Verified && user.GoogleID == "" && user.GithubID == "" {
		return Session{}, apperr.Forbidden("Please verify your email").With("needsVerification", true)
	}
	return s.issue(user)
}

// Signup creates an unverified member of an existing company and mails a
// verification link. The company seat quota is enforced.
func (s *Service) Signup(ctx context.Context, in SignupInput) (users.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.CompanyCode = strings.TrimSpace(in.CompanyCode)
	if err := validation.Struct(in, ""); err != nil {
		return users.User{}, err
	}

	company, err := s.Companies.GetByCode(ctx, in.CompanyCode)
	if err != nil {
		if errors.Is(err, companies.ErrNotFound) {
			return users.User{}, apperr.Validation("Invalid company code")
		}
		return users.User{}, apperr.Internal(err)
	}
	// Soft limit: concurrent sign-ups for the last seat can both pass.
	members, err := s.Users.CountByCompany(ctx, company.ID)
	if err != nil {
		return users.User{}, apperr.Internal(err)
	}
	if members >= company.MaxEmployees {
		return users.User{}, apperr.Forbidden("Company has reached its employee limit").
			With("maxEmployees", company.MaxEmployees)
	}

	hash, err := sharedauth.HashPassword(in.Password)
	if err != nil {
		return users.User{}, apperr.Internal(err)
	}
	user := users.User{
		ID:               uuid.NewString(),
		CompanyID:        company.ID,
		Name:             in.Name,
		Email:            in.Email,
		PasswordHash:     hash,
		Role:             users.RoleUser,
		OnboardingStatus: users.OnboardingPending,
	}
	if err := s.Users.Create(ctx, user); err != nil {
		if errors.Is(err, users.ErrConflict) {
			return users.User{}, apperr.Conflict("User with this email already exists")
		}
		return users.User{}, apperr.Internal(err)
	}

	if err := s.sendVerification(ctx, user); err != nil {
		// The account exists; the user can ask for a new link.
		telemetry.Warn("auth.verification_mail_failed", map[string]any{
			"user_id": user.ID,
			"error":   err.Error(),
		})
	}
	return user, nil
}

// ResendVerification mails a new link to an unverified account. Unknown
// addresses are ignored so the endpoint does not reveal which e-mails exist.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	user, err := s.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil
		}
		return apperr.Internal(err)
	}
	if user.Verified {
		return nil
	}
	return s.sendVerification(ctx, user)
}

// Verify marks the account named by a verification token as verified.
func (s *Service) Verify(ctx context.Context, token string) (users.User, error) {
	if strings.TrimSpace(token) == "" {
		return users.User{}, apperr.Validation("verification token is required")
	}
	userID, err := s.Signer.VerifyVerification(token)
	if err != nil {
		return users.User{}, apperr.Wrap(apperr.KindAuth, "Invalid or expired verification link", err)
	}
	if err := s.Users.MarkVerified(ctx, userID); err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return users.User{}, apperr.NotFound("user not found")
		}
		return users.User{}, apperr.Internal(err)
	}
	user, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		return users.User{}, apperr.Internal(err)
	}
	return user, nil
}

// GoogleProfile is the subset of the Google userinfo used for sign-in.
type GoogleProfile struct {
	ID            string
	Email         string
	Name          string
	VerifiedEmail bool
}

// GoogleLogin signs in an SSO user. Accounts are matched by google id, then
// by a verified e-mail address, which links the google id to that account.
// Google sign-in never creates a company membership.
func (s *Service) GoogleLogin(ctx context.Context, profile GoogleProfile) (Session, error) {
	if profile.ID == "" {
		return Session{}, apperr.Auth("invalid Google profile")
	}
	user, err := s.Users.GetByGoogleID(ctx, profile.ID)
	if err == nil {
		return s.issue(user)
	}
	if !errors.Is(err, users.ErrNotFound) {
		return Session{}, apperr.Internal(err)
	}

	if profile.Email == "" || !profile.VerifiedEmail {
		return Session{}, apperr.Forbidden("Google account e-mail is not verified")
	}
	user, err = s.Users.GetByEmail(ctx, profile.Email)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return Session{}, apperr.NotFound("No account found for this Google user. Sign up with your company code first")
		}
		return Session{}, apperr.Internal(err)
	}
	if err := s.Users.LinkGoogle(ctx, user.ID, profile.ID); err != nil {
		if errors.Is(err, users.ErrConflict) {
			return Session{}, apperr.Conflict("Google account already linked to another user")
		}
		return Session{}, apperr.Internal(err)
	}
	user.GoogleID = profile.ID
	telemetry.Info("auth.google_linked", map[string]any{"user_id": user.ID})
	return s.issue(user)
}

func (s *Service) issue(user users.User) (Session, error) {
	tok, exp, err := s.Signer.IssueSession(user.ID, user.CompanyID)
	if err != nil {
		return Session{}, apperr.Internal(err)
	}
	return Session{User: user, Token: tok, ExpiresAt: exp}, nil
}

func (s *Service) sendVerification(ctx context.Context, user users.User) error {
	ttl := s.VerifyTTL
	if ttl <= 0 {
		ttl = defaultVerifyTTL
	}
	tok, err := s.Signer.IssueVerification(user.ID, ttl)
	if err != nil {
		return err
	}
	link := strings.TrimRight(s.BaseURL, "/") + verifyPath + "?token=" + url.QueryEscape(tok)
	return s.Mailer.Send(ctx, mailer.Email{
		To:      []string{user.Email},
		Subject: "Verify your email",
		Body:    fmt.Sprintf("Hi %s,\n\nConfirm your e-mail address by opening this link:\n%s\n", user.Name, link),
	})
}
