package companies

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"workforce-backend/internal/shared/apperr"
	"workforce-backend/internal/shared/auth"
	"workforce-backend/internal/shared/telemetry"
	"workforce-backend/internal/shared/validation"
	"workforce-backend/internal/users"
)

const (
	msgMissingFields = "Company name, code, admin name, admin email, and admin password are required"
	msgCodeTaken     = "Company with this code already exists"
)

type Service struct {
	Repo Repo
}

func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

type RegisterInput struct {
	CompanyName   string `json:"companyName" validate:"required"`
	CompanyCode   string `json:"companyCode" validate:"required"`
	AdminName     string `json:"adminName" validate:"required"`
	AdminEmail    string `json:"adminEmail" validate:"required"`
	AdminPassword string `json:"adminPassword" validate:"required"`
}

func (in RegisterInput) trimmed() RegisterInput {
	return RegisterInput{
		CompanyName:   strings.TrimSpace(in.CompanyName),
		CompanyCode:   strings.TrimSpace(in.CompanyCode),
		AdminName:     strings.TrimSpace(in.AdminName),
		AdminEmail:    strings.TrimSpace(in.AdminEmail),
		AdminPassword: in.AdminPassword,
	}
}

// Register creates a company on the free plan together with its verified,
// approved administrator.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Company, error) {
	in = in.trimmed()
	if err := validation.Struct(in, msgMissingFields); err != nil {
		return Company{}, err
	}

	code := NormalizeCode(in.CompanyCode)
	if _, err := s.Repo.GetByCode(ctx, code); err == nil {
		return Company{}, apperr.Conflict(msgCodeTaken)
	} else if !errors.Is(err, ErrNotFound) {
		return Company{}, apperr.Internal(err)
	}

	hash, err := auth.HashPassword(in.AdminPassword)
	if err != nil {
		return Company{}, apperr.Internal(err)
	}

	company := Company{
		ID:           uuid.NewString(),
		Name:         in.CompanyName,
		Code:         code,
		Plan:         PlanFree,
		MaxEmployees: DefaultMaxEmployees,
	}
	admin := users.User{
		ID:               uuid.NewString(),
		CompanyID:        company.ID,
		Name:             in.AdminName,
		Email:            in.AdminEmail,
		PasswordHash:     hash,
		Role:             users.RoleAdmin,
		Verified:         true,
		OnboardingStatus: users.OnboardingApproved,
	}

	// The unique index decides concurrent registrations of the same code.
	if err := s.Repo.CreateWithAdmin(ctx, company, admin); err != nil {
		switch {
		case errors.Is(err, ErrConflict):
			return Company{}, apperr.Wrap(apperr.KindConflict, msgCodeTaken, err)
		case errors.Is(err, users.ErrConflict):
			return Company{}, apperr.Wrap(apperr.KindConflict, "User with this email already exists", err)
		}
		return Company{}, apperr.Internal(err)
	}

	stored, err := s.Repo.GetByID(ctx, company.ID)
	if err != nil {
		stored = company
	}
	telemetry.Info("companies.registered", map[string]any{
		"company_id": company.ID,
		"code":       code,
		"admin_id":   admin.ID,
	})
	return stored, nil
}

func (s *Service) Get(ctx context.Context, id string) (Company, error) {
	c, err := s.Repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Company{}, apperr.Wrap(apperr.KindNotFound, "Company not found", err)
	}
	return c, err
}

func (s *Service) GetByCode(ctx context.Context, code string) (Company, error) {
	c, err := s.Repo.GetByCode(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return Company{}, apperr.Wrap(apperr.KindNotFound, "Company not found", err)
	}
	return c, err
}

func (s *Service) List(ctx context.Context) ([]Company, error) {
	return s.Repo.List(ctx)
}

func (s *Service) Rename(ctx context.Context, id, name string) (Company, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Company{}, apperr.Validation("Company name is required")
	}
	c, err := s.Repo.UpdateName(ctx, id, name)
	if errors.Is(err, ErrNotFound) {
		return Company{}, apperr.Wrap(apperr.KindNotFound, "Company not found", err)
	}
	return c, err
}

// ChangePlan sets the plan. A non-positive maxEmployees takes the plan default.
func (s *Service) ChangePlan(ctx context.Context, id, rawPlan string, maxEmployees int) (Company, error) {
	plan, err := ParsePlan(rawPlan)
	if err != nil {
		return Company{}, apperr.Wrap(apperr.KindValidation, "plan must be one of free, pro, enterprise", err)
	}
	if maxEmployees <= 0 {
		maxEmployees = plan.Seats()
	}
	c, err := s.Repo.UpdatePlan(ctx, id, plan, maxEmployees)
	if errors.Is(err, ErrNotFound) {
		return Company{}, apperr.Wrap(apperr.KindNotFound, "Company not found", err)
	}
	if err != nil {
		return Company{}, err
	}
	telemetry.Info("companies.plan_changed", map[string]any{
		"company_id":    id,
		"plan":          string(plan),
		"max_employees": maxEmployees,
	})
	return c, nil
}
