package permissions

import (
	"context"
	"fmt"

	"github.com/moacode/craft-fab-permissions/internal/repositories"
)

// Cascade cleanup: when the host deletes a field, site, layout or user
// group, every grant referencing it is removed from the config tree,
// which flows into the grant cache through the apply path. Fire and
// forget: no matching grants is a no-op. Removal runs under the same
// per-layout lock as layout saves, so a cascade cannot interleave with
// a save's upsert/sweep pass on the same layout.

// HandleDeletedField removes every grant targeting the field.
func (s *Service) HandleDeletedField(ctx context.Context, fieldID int64) error {
	return s.cascade(ctx, "field", &repositories.GrantFilter{FieldID: fieldID, FieldsOnly: true})
}

// HandleDeletedSite removes every grant scoped to the site.
func (s *Service) HandleDeletedSite(ctx context.Context, siteID int64) error {
	return s.cascade(ctx, "site", &repositories.GrantFilter{SiteID: siteID})
}

// HandleDeletedLayout removes every grant for the layout.
func (s *Service) HandleDeletedLayout(ctx context.Context, layoutID int64) error {
	return s.cascade(ctx, "layout", &repositories.GrantFilter{LayoutID: layoutID})
}

// HandleDeletedGroup removes every grant held by the group. Administrator
// grants carry no group ID and are never touched here.
func (s *Service) HandleDeletedGroup(ctx context.Context, groupID int64) error {
	return s.cascade(ctx, "group", &repositories.GrantFilter{GroupID: groupID})
}

func (s *Service) cascade(ctx context.Context, entity string, filter *repositories.GrantFilter) error {
	matched, err := s.grants.List(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to list grants for deleted %s: %w", entity, err)
	}

	var layouts []int64
	seen := make(map[int64]bool)
	for _, g := range matched {
		if !seen[g.LayoutID] {
			seen[g.LayoutID] = true
			layouts = append(layouts, g.LayoutID)
		}
	}

	removed := 0
	for _, layoutID := range layouts {
		n, err := s.cascadeLayout(ctx, layoutID, filter)
		if err != nil {
			return fmt.Errorf("failed to remove grants for deleted %s: %w", entity, err)
		}
		removed += n
	}

	if s.metrics != nil {
		s.metrics.RecordCascade(entity, removed)
	}
	return nil
}

// cascadeLayout sweeps one layout's matching grants under the layout
// lock. The UIDs are listed again inside the lock, so a grant written by
// a save that committed between enumeration and sweep is still caught.
func (s *Service) cascadeLayout(ctx context.Context, layoutID int64, filter *repositories.GrantFilter) (int, error) {
	lock := s.layoutLock(layoutID)
	lock.Lock()
	defer lock.Unlock()

	scoped := *filter
	scoped.LayoutID = layoutID
	uids, err := s.grants.ListUIDs(ctx, &scoped)
	if err != nil {
		return 0, err
	}
	for _, uid := range uids {
		if err := s.tree.Remove(ctx, uid); err != nil {
			return 0, fmt.Errorf("failed to remove grant %s: %w", uid, err)
		}
	}
	return len(uids), nil
}
