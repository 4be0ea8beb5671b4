package repositories

import (
	"context"

	"github.com/moacode/craft-fab-permissions/internal/entities"
)

// GrantFilter defines filter criteria for querying grants.
// Zero values mean "not filtered".
type GrantFilter struct {
	LayoutID   int64  // Filter by layout ID (optional)
	SiteID     int64  // Filter by site ID (optional)
	TabName    string // Filter by exact tab name (optional)
	FieldID    int64  // Filter by field ID (optional)
	GroupID    int64  // Filter by user group ID (optional)
	TabsOnly   bool   // Restrict to tab grants (field ID is null)
	FieldsOnly bool   // Restrict to field grants (tab name is null)
}

// GrantRepository defines the interface for grant data access. The grant
// store is a queryable cache of the config tree: rows are keyed by the
// grant UID and fully replaced on every write, so upserts for the same
// UID are commutative.
type GrantRepository interface {
	// Upsert inserts the grant or fully replaces the row with the same UID.
	// Applying the same grant twice is a no-op, not an error.
	Upsert(ctx context.Context, grant *entities.Grant) error

	// DeleteByUID removes the grant with the given UID; no-op if absent
	DeleteByUID(ctx context.Context, uid string) error

	// GetByUID retrieves a grant by UID, or nil if no such grant exists
	GetByUID(ctx context.Context, uid string) (*entities.Grant, error)

	// UIDByID returns the UID of the grant with the given surrogate row ID,
	// or "" if no such row exists
	UIDByID(ctx context.Context, id int64) (string, error)

	// List retrieves grants matching the filter; nil lists every grant
	List(ctx context.Context, filter *GrantFilter) ([]*entities.Grant, error)

	// ListUIDs retrieves the UIDs of grants matching the filter
	ListUIDs(ctx context.Context, filter *GrantFilter) ([]string, error)

	// StaleUIDs returns the UIDs of the layout's grants that are not in keep
	StaleUIDs(ctx context.Context, layoutID int64, keep []string) ([]string, error)
}
