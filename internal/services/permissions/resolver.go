package permissions

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/moacode/craft-fab-permissions/internal/entities"
	"github.com/moacode/craft-fab-permissions/internal/repositories"
)

const (
	checkViewTab   = "view_tab"
	checkViewField = "view_field"
	checkEditField = "edit_field"
)

// CanViewTab reports whether the actor may see the named tab of the
// layout on the given site. Administrators always may; guests never may;
// with no grants recorded for the tab the answer is true (default-allow).
// Otherwise the actor's group grants are OR'd: one permissive grant wins.
func (s *Service) CanViewTab(ctx context.Context, layoutID int64, tabName string, actor entities.Actor, siteID int64) (bool, error) {
	return s.check(ctx, checkViewTab, layoutID, "tab:"+tabName, actor, siteID, func() (bool, error) {
		grants, err := s.grants.List(ctx, &repositories.GrantFilter{
			LayoutID: layoutID,
			SiteID:   siteID,
			TabName:  tabName,
			TabsOnly: true,
		})
		if err != nil {
			return false, fmt.Errorf("failed to list tab grants: %w", err)
		}
		return resolveView(grants, actor), nil
	})
}

// CanViewField reports whether the actor may see the field on the layout
// for the given site. Semantics match CanViewTab, keyed by field ID.
func (s *Service) CanViewField(ctx context.Context, layoutID int64, fieldID int64, actor entities.Actor, siteID int64) (bool, error) {
	return s.check(ctx, checkViewField, layoutID, fmt.Sprintf("field:%d", fieldID), actor, siteID, func() (bool, error) {
		grants, err := s.grants.List(ctx, &repositories.GrantFilter{
			LayoutID:   layoutID,
			SiteID:     siteID,
			FieldID:    fieldID,
			FieldsOnly: true,
		})
		if err != nil {
			return false, fmt.Errorf("failed to list field grants: %w", err)
		}
		return resolveView(grants, actor), nil
	})
}

// CanEditField reports whether the actor may edit the field on the layout
// for the given site. Unlike the view checks, guests are not
// short-circuited here: callers are expected to check view first, and an
// edit answer is meaningful for any non-admin actor. With no grants
// recorded the answer is true (default-allow).
func (s *Service) CanEditField(ctx context.Context, layoutID int64, fieldID int64, actor entities.Actor, siteID int64) (bool, error) {
	return s.check(ctx, checkEditField, layoutID, fmt.Sprintf("field:%d", fieldID), actor, siteID, func() (bool, error) {
		grants, err := s.grants.List(ctx, &repositories.GrantFilter{
			LayoutID:   layoutID,
			SiteID:     siteID,
			FieldID:    fieldID,
			FieldsOnly: true,
		})
		if err != nil {
			return false, fmt.Errorf("failed to list field grants: %w", err)
		}
		return resolveEdit(grants, actor), nil
	})
}

// check runs the admin/guest/degraded short circuits and the cache
// around the grant evaluation in eval.
func (s *Service) check(ctx context.Context, kind string, layoutID int64, subject string, actor entities.Actor, siteID int64, eval func() (bool, error)) (bool, error) {
	if actor.IsAdmin() {
		s.recordCheck(kind, true)
		return true, nil
	}
	if actor.IsGuest() && kind != checkEditField {
		s.recordCheck(kind, false)
		return false, nil
	}

	// With no group directory the membership model is unusable; degrade
	// to always-allow rather than lock every actor out.
	if s.groups == nil {
		s.warnOnce.Do(func() {
			log.Printf("WARNING: no user group directory configured; permission checks degrade to always-allow")
		})
		s.recordCheck(kind, true)
		return true, nil
	}

	var key string
	if s.cache != nil {
		key = s.cacheKey(kind, layoutID, subject, siteID, actor)
		if cached, found := s.cache.Get(ctx, key); found {
			if allowed, ok := cached.(bool); ok {
				s.recordCheck(kind, allowed)
				return allowed, nil
			}
		}
	}

	allowed, err := eval()
	if err != nil {
		return false, err
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, key, allowed, s.cacheTTL)
	}
	s.recordCheck(kind, allowed)
	return allowed, nil
}

// cacheKey builds a stable key over the check parameters and the actor's
// sorted group memberships.
func (s *Service) cacheKey(kind string, layoutID int64, subject string, siteID int64, actor entities.Actor) string {
	groups := append([]int64(nil), actor.GroupIDs()...)
	sort.Slice(groups, func(i, j int) bool { return groups[i] < groups[j] })

	var b strings.Builder
	fmt.Fprintf(&b, "%s:%d:%s:%d:", kind, layoutID, subject, siteID)
	for _, id := range groups {
		fmt.Fprintf(&b, "%d,", id)
	}

	hash := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(hash[:])
}

// resolveView evaluates the view bit of a grant set for an actor.
// Zero grants means unrestricted. Grants with a nil group ID belong to
// the administrator pseudo group and never match a non-admin actor.
func resolveView(grants []*entities.Grant, actor entities.Actor) bool {
	if len(grants) == 0 {
		return true
	}
	for _, g := range grants {
		if g.GroupID == nil {
			continue
		}
		if g.CanView && actor.IsInGroup(*g.GroupID) {
			return true
		}
	}
	return false
}

// resolveEdit evaluates the edit bit of a grant set for an actor.
func resolveEdit(grants []*entities.Grant, actor entities.Actor) bool {
	if len(grants) == 0 {
		return true
	}
	for _, g := range grants {
		if g.GroupID == nil {
			continue
		}
		if g.CanEdit && actor.IsInGroup(*g.GroupID) {
			return true
		}
	}
	return false
}

func (s *Service) recordCheck(kind string, allowed bool) {
	if s.metrics != nil {
		s.metrics.RecordCheck(kind, allowed)
	}
}
