package permissions

import (
	"context"
	"fmt"

	"github.com/moacode/craft-fab-permissions/internal/entities"
	"github.com/moacode/craft-fab-permissions/internal/repositories"
)

// PermissionSummary is one grant as shown in the permission editor.
type PermissionSummary struct {
	ID      int64
	CanView bool
	CanEdit bool
}

// EditorData is the payload a front-end permission editor fetches for a
// layout/site: the current grants grouped by subject and group handle,
// plus the full group roster to render unconfigured rows.
type EditorData struct {
	Tabs   map[string]map[string]PermissionSummary
	Fields map[int64]map[string]PermissionSummary
	Groups []*entities.Group
}

// EditorData assembles the editor payload for the layout on the given
// site. Grants referencing a group that no longer exists are skipped;
// administrator grants appear under the admin pseudo handle.
func (s *Service) EditorData(ctx context.Context, layoutID int64, siteID int64) (*EditorData, error) {
	grants, err := s.grants.List(ctx, &repositories.GrantFilter{LayoutID: layoutID, SiteID: siteID})
	if err != nil {
		return nil, fmt.Errorf("failed to list grants for editor: %w", err)
	}

	out := &EditorData{
		Tabs:   make(map[string]map[string]PermissionSummary),
		Fields: make(map[int64]map[string]PermissionSummary),
	}

	if s.groups != nil {
		roster, err := s.groups.Groups(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load group roster: %w", err)
		}
		out.Groups = roster
	}

	for _, grant := range grants {
		handle := entities.AdminGroupHandle
		if grant.GroupID != nil {
			if s.groups == nil {
				continue
			}
			group, err := s.groups.GroupByID(ctx, *grant.GroupID)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve group %d: %w", *grant.GroupID, err)
			}
			if group == nil {
				// stale reference to a deleted group; cascade cleanup
				// has not caught up yet
				continue
			}
			handle = group.Handle
		}

		summary := PermissionSummary{ID: grant.ID, CanView: grant.CanView, CanEdit: grant.CanEdit}
		switch {
		case grant.IsTabGrant():
			if out.Tabs[*grant.TabName] == nil {
				out.Tabs[*grant.TabName] = make(map[string]PermissionSummary)
			}
			out.Tabs[*grant.TabName][handle] = summary
		case grant.IsFieldGrant():
			if out.Fields[*grant.FieldID] == nil {
				out.Fields[*grant.FieldID] = make(map[string]PermissionSummary)
			}
			out.Fields[*grant.FieldID][handle] = summary
		}
	}

	return out, nil
}
