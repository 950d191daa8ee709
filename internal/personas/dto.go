package personas

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/personacraft-backend/internal/users"
	"github.com/angelmondragon/personacraft-backend/pkg/types"
)

// ListParams configures owner-scoped cursor pagination.
type ListParams struct {
	UserID string
	Limit  int
	Cursor string
}

// ListResult wraps returned personas and the cursor for the next page.
type ListResult struct {
	Items  []types.Persona `json:"items"`
	Cursor string          `json:"cursor"`
}

// UpdateInput carries a partial persona document; fields it omits keep their
// stored value.
type UpdateInput struct {
	Identity users.Identity
	ID       uuid.UUID
	Fields   map[string]any
}

// MigrateResult reports how many client-cached personas were stored.
type MigrateResult struct {
	MigratedCount int     `json:"migratedCount"`
	TotalCount    int     `json:"totalCount"`
	Issues        []Issue `json:"issues,omitempty"`
}
