package users

import (
	"context"
	"errors"
	"strings"

	"workforce-backend/internal/shared/apperr"
	"workforce-backend/internal/shared/server/middleware"
	"workforce-backend/internal/shared/telemetry"
)

type Service struct {
	Repo Repo
}

func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

func (s *Service) GetByID(ctx context.Context, userID string) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("users service not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return User{}, apperr.Validation("user id is required")
	}
	user, err := s.Repo.GetByID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return User{}, apperr.Wrap(apperr.KindNotFound, "user not found", err)
	}
	return user, err
}

// LoadPrincipal resolves the account for the auth middleware.
func (s *Service) LoadPrincipal(ctx context.Context, userID string) (middleware.Principal, error) {
	user, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return middleware.Principal{}, middleware.ErrUnknownUser
		}
		return middleware.Principal{}, err
	}
	return PrincipalOf(user), nil
}

func PrincipalOf(u User) middleware.Principal {
	return middleware.Principal{
		UserID:           u.ID,
		CompanyID:        u.CompanyID,
		Email:            u.Email,
		Name:             u.Name,
		Admin:            u.IsAdmin(),
		Verified:         u.Verified,
		OnboardingStatus: string(u.OnboardingStatus),
		GoogleID:         u.GoogleID,
		GithubID:         u.GithubID,
		PasswordHash:     u.PasswordHash,
	}
}

// ListCompanyUsers returns every account of the company, oldest first.
func (s *Service) ListCompanyUsers(ctx context.Context, companyID string) ([]User, error) {
	if strings.TrimSpace(companyID) == "" {
		return nil, apperr.Validation("company id is required")
	}
	return s.Repo.ListByCompany(ctx, companyID)
}

// SetOnboardingStatus lets a company admin move a member's onboarding. Members
// of other companies are reported as missing.
func (s *Service) SetOnboardingStatus(ctx context.Context, actor middleware.Principal, targetID, rawStatus string) (User, error) {
	status, err := ParseOnboardingStatus(rawStatus)
	if err != nil {
		return User{}, apperr.Wrap(apperr.KindValidation, "status must be one of pending, submitted, approved, rejected", err)
	}
	target, err := s.GetByID(ctx, targetID)
	if err != nil {
		return User{}, err
	}
	if target.CompanyID != actor.CompanyID && !actor.SuperAdmin {
		return User{}, apperr.NotFound("user not found")
	}
	if err := s.Repo.SetOnboardingStatus(ctx, target.ID, status); err != nil {
		return User{}, err
	}
	telemetry.Info("users.onboarding_updated", map[string]any{
		"actor_id":   actor.UserID,
		"user_id":    target.ID,
		"company_id": target.CompanyID,
		"from":       string(target.OnboardingStatus),
		"to":         string(status),
	})
	target.OnboardingStatus = status
	return target, nil
}

// SubmitOnboarding moves the caller's own onboarding to submitted for admin review.
func (s *Service) SubmitOnboarding(ctx context.Context, userID string) (User, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return User{}, err
	}
	switch user.OnboardingStatus {
	case OnboardingApproved:
		return User{}, apperr.Validation("Onboarding already approved")
	case OnboardingSubmitted:
		return user, nil
	}
	if err := s.Repo.SetOnboardingStatus(ctx, user.ID, OnboardingSubmitted); err != nil {
		return User{}, err
	}
	user.OnboardingStatus = OnboardingSubmitted
	return user, nil
}
