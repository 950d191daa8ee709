package users

import (
	"sort"
	"strings"
	"time"

	"github.com/angelmondragon/personacraft-backend/pkg/db/models"
)

// Identity is what the auth provider tells us about a user.
type Identity struct {
	ID              string  `json:"id"`
	Email           *string `json:"email,omitempty"`
	DisplayName     *string `json:"displayName,omitempty"`
	ProfileImageURL *string `json:"profileImageUrl,omitempty"`
}

func (i Identity) toModel(planID string) *models.User {
	return &models.User{
		ID:              strings.TrimSpace(i.ID),
		Email:           i.Email,
		DisplayName:     i.DisplayName,
		ProfileImageURL: i.ProfileImageURL,
		PlanID:          planID,
	}
}

// PlanDTO is the public view of a subscription tier.
type PlanDTO struct {
	ID                       string `json:"id"`
	Name                     string `json:"name"`
	MonthlyGenerationLimit   int    `json:"monthlyGenerationLimit"`
	MaxPersonasPerGeneration int    `json:"maxPersonasPerGeneration"`
	Price                    string `json:"price"`
	Currency                 string `json:"currency"`
}

// UserDTO is the transport shape for GET /me.
type UserDTO struct {
	ID              string    `json:"id"`
	Email           *string   `json:"email,omitempty"`
	DisplayName     *string   `json:"displayName,omitempty"`
	ProfileImageURL *string   `json:"profileImageUrl,omitempty"`
	Plan            PlanDTO   `json:"plan"`
	Roles           []string  `json:"roles"`
	Permissions     []string  `json:"permissions"`
	CreatedAt       time.Time `json:"createdAt"`
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}

	roles := make([]string, 0, len(u.Roles))
	permSet := map[string]struct{}{}
	for _, role := range u.Roles {
		roles = append(roles, role.ID)
		for _, perm := range role.Permissions {
			permSet[perm.ID] = struct{}{}
		}
	}
	permissions := make([]string, 0, len(permSet))
	for perm := range permSet {
		permissions = append(permissions, perm)
	}
	sort.Strings(roles)
	sort.Strings(permissions)

	return &UserDTO{
		ID:              u.ID,
		Email:           u.Email,
		DisplayName:     u.DisplayName,
		ProfileImageURL: u.ProfileImageURL,
		Plan: PlanDTO{
			ID:                       u.Plan.ID,
			Name:                     u.Plan.Name,
			MonthlyGenerationLimit:   u.Plan.MonthlyGenerationLimit,
			MaxPersonasPerGeneration: u.Plan.MaxPersonasPerGeneration,
			Price:                    u.Plan.PriceAmount.StringFixed(2),
			Currency:                 u.Plan.CurrencyCode,
		},
		Roles:       roles,
		Permissions: permissions,
		CreatedAt:   u.CreatedAt,
	}
}
