package users

import (
	"fmt"
	"strings"
	"time"
)

// Role is the stored account tier. The platform super-admin is never stored;
// it is derived from configuration at request time.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleUser:
		return RoleUser, nil
	case RoleAdmin:
		return RoleAdmin, nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, raw)
}

// OnboardingStatus tracks the admin review of a new employee.
type OnboardingStatus string

const (
	OnboardingPending   OnboardingStatus = "pending"
	OnboardingSubmitted OnboardingStatus = "submitted"
	OnboardingApproved  OnboardingStatus = "approved"
	OnboardingRejected  OnboardingStatus = "rejected"
)

func ParseOnboardingStatus(raw string) (OnboardingStatus, error) {
	s := OnboardingStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case OnboardingPending, OnboardingSubmitted, OnboardingApproved, OnboardingRejected:
		return s, nil
	}
	return "", fmt.Errorf("%w: unknown onboarding status %q", ErrInvalidInput, raw)
}

type User struct {
	ID               string           `json:"id"`
	CompanyID        string           `json:"companyId"`
	Name             string           `json:"name"`
	Email            string           `json:"email"`
	PasswordHash     string           `json:"-"`
	Role             Role             `json:"role"`
	Verified         bool             `json:"isVerified"`
	OnboardingStatus OnboardingStatus `json:"onboardingStatus"`
	GoogleID         string           `json:"googleId,omitempty"`
	GithubID         string           `json:"githubId,omitempty"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// NormalizeEmail lower-cases and trims an address for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
