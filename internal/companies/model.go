package companies

import (
	"fmt"
	"strings"
	"time"
)

// Plan is the subscription tier of a company.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// DefaultMaxEmployees is the seat quota of a newly registered company.
const DefaultMaxEmployees = 10

var planSeats = map[Plan]int{
	PlanFree:       DefaultMaxEmployees,
	PlanPro:        100,
	PlanEnterprise: 1000,
}

func ParsePlan(raw string) (Plan, error) {
	p := Plan(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := planSeats[p]; !ok {
		return "", fmt.Errorf("%w: unknown plan %q", ErrInvalidInput, raw)
	}
	return p, nil
}

// Seats returns the default seat quota for the plan.
func (p Plan) Seats() int { return planSeats[p] }

type Company struct {
	ID           string    `json:"companyId"`
	Name         string    `json:"companyName"`
	Code         string    `json:"companyCode"`
	Plan         Plan      `json:"companyPlan"`
	MaxEmployees int       `json:"maxEmployees"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// NormalizeCode lower-cases and trims a company code. Codes are unique case-insensitively.
func NormalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
