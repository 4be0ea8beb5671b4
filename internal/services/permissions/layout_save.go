package permissions

import (
	"context"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	"github.com/moacode/craft-fab-permissions/internal/entities"
	"github.com/moacode/craft-fab-permissions/internal/repositories"
)

// PermissionInput is one submitted permission entry for a subject/group
// pair. GrantID, when non-zero, refers to an existing grant whose UID is
// reused instead of minting a new one.
type PermissionInput struct {
	GrantID int64
	CanView bool
	CanEdit bool
}

// Submission is a layout permission save payload: per-tab and per-field
// maps of group handle to permission input. Tab keys arrive URL-encoded.
// Aborted is the load guard sentinel: when the editor never finished
// loading the current permission set, the client sets it so the save is
// abandoned instead of silently persisting an incomplete set.
type Submission struct {
	Aborted          bool
	TabPermissions   map[string]map[string]PermissionInput
	FieldPermissions map[int64]map[string]PermissionInput
}

func (s *Submission) empty() bool {
	return len(s.TabPermissions) == 0 && len(s.FieldPermissions) == 0
}

// SaveLayoutPermissions reconciles the submitted permission set against
// the layout's existing grants: every submitted entry is upserted through
// the config tree, then any grant for the layout whose UID was not just
// written is swept as stale. Re-submitting the same payload converges on
// the same grant set. An empty submission clears every grant for the
// layout. All group handles are validated before anything is written, so
// an unknown handle fails the save with nothing committed.
func (s *Service) SaveLayoutPermissions(ctx context.Context, layout entities.Layout, siteID int64, sub *Submission) error {
	if sub == nil || sub.Aborted {
		return nil
	}

	lock := s.layoutLock(layout.ID())
	lock.Lock()
	defer lock.Unlock()

	if sub.empty() {
		if err := s.clearLayout(ctx, layout.ID()); err != nil {
			return err
		}
		s.recordLayoutSave()
		return nil
	}

	groups, err := s.resolveHandles(ctx, sub)
	if err != nil {
		return err
	}

	tabNames := make(map[string]bool)
	fieldIDs := make(map[int64]bool)
	for _, tab := range layout.Tabs() {
		tabNames[tab.Name()] = true
		for _, f := range tab.Fields() {
			fieldIDs[f.ID()] = true
		}
	}

	written := make([]string, 0, len(sub.TabPermissions)+len(sub.FieldPermissions))

	for rawName, byHandle := range sub.TabPermissions {
		// submissions for renamed or removed tabs are dropped; a key
		// that does not decode is skipped rather than failing the save
		tabName, err := url.QueryUnescape(rawName)
		if err != nil || !tabNames[tabName] {
			continue
		}
		name := tabName
		for handle, input := range byHandle {
			grant := s.buildGrant(ctx, layout.ID(), siteID, handle, groups[handle], input)
			grant.TabName = &name
			// tabs gate visibility only; edit granularity lives at the
			// field level
			grant.CanEdit = true
			if err := s.tree.Set(ctx, grant.UID, grant.Config()); err != nil {
				return fmt.Errorf("failed to save tab grant for %q: %w", tabName, err)
			}
			written = append(written, grant.UID)
		}
	}

	for fieldID, byHandle := range sub.FieldPermissions {
		if !fieldIDs[fieldID] {
			continue
		}
		id := fieldID
		for handle, input := range byHandle {
			grant := s.buildGrant(ctx, layout.ID(), siteID, handle, groups[handle], input)
			grant.FieldID = &id
			if err := s.tree.Set(ctx, grant.UID, grant.Config()); err != nil {
				return fmt.Errorf("failed to save field grant for %d: %w", fieldID, err)
			}
			written = append(written, grant.UID)
		}
	}

	if len(written) > 0 {
		stale, err := s.grants.StaleUIDs(ctx, layout.ID(), written)
		if err != nil {
			return fmt.Errorf("failed to find stale grants: %w", err)
		}
		for _, uid := range stale {
			if err := s.tree.Remove(ctx, uid); err != nil {
				return fmt.Errorf("failed to remove stale grant %s: %w", uid, err)
			}
		}
	}

	s.recordLayoutSave()
	return nil
}

// resolveHandles validates every group handle in the submission up front.
// The administrator pseudo handle maps to a nil group.
func (s *Service) resolveHandles(ctx context.Context, sub *Submission) (map[string]*entities.Group, error) {
	groups := make(map[string]*entities.Group)
	resolve := func(handle string) error {
		if _, seen := groups[handle]; seen {
			return nil
		}
		if handle == entities.AdminGroupHandle {
			groups[handle] = nil
			return nil
		}
		if s.groups == nil {
			return fmt.Errorf("%w: no group directory to resolve %q", ErrUnknownGroupHandle, handle)
		}
		group, err := s.groups.GroupByHandle(ctx, handle)
		if err != nil {
			return fmt.Errorf("failed to resolve group %q: %w", handle, err)
		}
		if group == nil {
			return fmt.Errorf("%w: %q", ErrUnknownGroupHandle, handle)
		}
		groups[handle] = group
		return nil
	}

	for _, byHandle := range sub.TabPermissions {
		for handle := range byHandle {
			if err := resolve(handle); err != nil {
				return nil, err
			}
		}
	}
	for _, byHandle := range sub.FieldPermissions {
		for handle := range byHandle {
			if err := resolve(handle); err != nil {
				return nil, err
			}
		}
	}
	return groups, nil
}

// buildGrant assembles the common part of a grant from a submission
// entry: UID reuse or minting, group resolution and the admin forcing
// rule. The caller sets the subject.
func (s *Service) buildGrant(ctx context.Context, layoutID, siteID int64, handle string, group *entities.Group, input PermissionInput) *entities.Grant {
	grant := &entities.Grant{
		UID:      s.resolveUID(ctx, input.GrantID),
		LayoutID: layoutID,
		SiteID:   siteID,
		CanView:  input.CanView,
		CanEdit:  input.CanEdit,
	}
	if group == nil {
		// administrator grants always carry both bits, whatever was posted
		grant.CanView = true
		grant.CanEdit = true
	} else {
		id := group.ID
		grant.GroupID = &id
	}
	return grant
}

// resolveUID looks up the UID for an existing grant ID, minting a fresh
// one when the ID is zero or the row no longer exists.
func (s *Service) resolveUID(ctx context.Context, grantID int64) string {
	if grantID > 0 {
		uid, err := s.grants.UIDByID(ctx, grantID)
		if err == nil && uid != "" {
			return uid
		}
	}
	return uuid.NewString()
}

// clearLayout removes every grant for the layout through the tree.
func (s *Service) clearLayout(ctx context.Context, layoutID int64) error {
	uids, err := s.grants.ListUIDs(ctx, &repositories.GrantFilter{LayoutID: layoutID})
	if err != nil {
		return fmt.Errorf("failed to list grants for layout %d: %w", layoutID, err)
	}
	for _, uid := range uids {
		if err := s.tree.Remove(ctx, uid); err != nil {
			return fmt.Errorf("failed to remove grant %s: %w", uid, err)
		}
	}
	return nil
}

func (s *Service) recordLayoutSave() {
	if s.metrics != nil {
		s.metrics.RecordLayoutSave()
	}
}
