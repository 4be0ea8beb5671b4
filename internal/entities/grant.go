package entities

import (
	"fmt"
	"time"
)

// AdminGroupHandle is the pseudo group handle used for the implicit
// administrator grant. It never resolves to a real user group; an admin
// grant is stored with a NULL group ID and both permission bits set.
const AdminGroupHandle = "admin"

// Grant represents a single permission rule: whether a user group may
// view/edit a specific tab or field on a field layout, for one site.
// Example: layout:12/tab:Settings@group:5 view=true edit=true
// A grant targets either a tab (TabName set) or a field (FieldID set),
// never both. GroupID nil means the administrator pseudo group.
type Grant struct {
	ID        int64  // Surrogate row ID, assigned by the grant store
	UID       string // Stable opaque identifier, the join key with the config tree
	LayoutID  int64
	TabName   *string
	FieldID   *int64
	SiteID    int64
	GroupID   *int64
	CanView   bool
	CanEdit   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// String returns a string representation of the grant
// Format: layout:<id>/<subject>@group:<id> view=<bool> edit=<bool>
func (g *Grant) String() string {
	subject := "?"
	if g.TabName != nil {
		subject = "tab:" + *g.TabName
	} else if g.FieldID != nil {
		subject = fmt.Sprintf("field:%d", *g.FieldID)
	}
	group := AdminGroupHandle
	if g.GroupID != nil {
		group = fmt.Sprintf("%d", *g.GroupID)
	}
	return fmt.Sprintf("layout:%d/%s@group:%s site:%d view=%t edit=%t",
		g.LayoutID, subject, group, g.SiteID, g.CanView, g.CanEdit)
}

// Validate checks if the grant is structurally valid
func (g *Grant) Validate() error {
	if g.UID == "" {
		return fmt.Errorf("grant UID is required")
	}
	if g.LayoutID == 0 {
		return fmt.Errorf("layout ID is required")
	}
	if g.SiteID == 0 {
		return fmt.Errorf("site ID is required")
	}
	if (g.TabName == nil) == (g.FieldID == nil) {
		return fmt.Errorf("grant must target exactly one of tab name or field ID")
	}
	if g.GroupID == nil && !(g.CanView && g.CanEdit) {
		return fmt.Errorf("administrator grant must have view and edit permission")
	}
	return nil
}

// IsTabGrant reports whether the grant targets a layout tab
func (g *Grant) IsTabGrant() bool {
	return g.TabName != nil
}

// IsFieldGrant reports whether the grant targets a field
func (g *Grant) IsFieldGrant() bool {
	return g.FieldID != nil
}

// IsAdminGrant reports whether the grant is the implicit administrator grant
func (g *Grant) IsAdminGrant() bool {
	return g.GroupID == nil
}

// Config returns the declarative counterpart of the grant: the attribute
// set written to the config tree under grants.<uid>. Surrogate ID and
// timestamps are bookkeeping and are not part of the config shape.
func (g *Grant) Config() GrantConfig {
	return GrantConfig{
		LayoutID: g.LayoutID,
		TabName:  g.TabName,
		FieldID:  g.FieldID,
		SiteID:   g.SiteID,
		GroupID:  g.GroupID,
		CanView:  g.CanView,
		CanEdit:  g.CanEdit,
	}
}

// GrantConfig is the config tree entry for a grant, keyed by the grant UID.
// The config tree is the authoritative source; grant rows are a derived,
// queryable cache rebuilt from entries of this shape.
type GrantConfig struct {
	LayoutID int64   `yaml:"layoutId"`
	TabName  *string `yaml:"tabName"`
	FieldID  *int64  `yaml:"fieldId"`
	SiteID   int64   `yaml:"siteId"`
	GroupID  *int64  `yaml:"groupId"`
	CanView  bool    `yaml:"canView"`
	CanEdit  bool    `yaml:"canEdit"`
}

// Grant materializes the config entry as a grant keyed by uid.
func (c GrantConfig) Grant(uid string) *Grant {
	return &Grant{
		UID:      uid,
		LayoutID: c.LayoutID,
		TabName:  c.TabName,
		FieldID:  c.FieldID,
		SiteID:   c.SiteID,
		GroupID:  c.GroupID,
		CanView:  c.CanView,
		CanEdit:  c.CanEdit,
	}
}
