package permissions

import (
	"context"
	"fmt"

	"github.com/moacode/craft-fab-permissions/internal/decorators"
	"github.com/moacode/craft-fab-permissions/internal/entities"
)

// ResolvedTab is one tab of a layout after permission filtering: denied
// fields are gone and view-only fields are wrapped to render statically.
type ResolvedTab struct {
	Name   string
	Fields []entities.Field
}

// VisibleTabs applies the actor's permissions to a layout: tabs the actor
// may not view are pruned, fields the actor may not view are dropped, and
// fields the actor may view but not edit are wrapped in a static field
// decorator. A pruned field is never decorated; view is always checked
// before edit.
func (s *Service) VisibleTabs(ctx context.Context, layout entities.Layout, actor entities.Actor, siteID int64) ([]ResolvedTab, error) {
	var out []ResolvedTab
	for _, tab := range layout.Tabs() {
		viewable, err := s.CanViewTab(ctx, layout.ID(), tab.Name(), actor, siteID)
		if err != nil {
			return nil, fmt.Errorf("failed to check tab %q: %w", tab.Name(), err)
		}
		if !viewable {
			continue
		}

		resolved := ResolvedTab{Name: tab.Name()}
		for _, field := range tab.Fields() {
			canView, err := s.CanViewField(ctx, layout.ID(), field.ID(), actor, siteID)
			if err != nil {
				return nil, fmt.Errorf("failed to check field %d: %w", field.ID(), err)
			}
			if !canView {
				continue
			}

			canEdit, err := s.CanEditField(ctx, layout.ID(), field.ID(), actor, siteID)
			if err != nil {
				return nil, fmt.Errorf("failed to check field %d: %w", field.ID(), err)
			}
			if !canEdit {
				field = decorators.NewStaticField(field)
			}
			resolved.Fields = append(resolved.Fields, field)
		}
		out = append(out, resolved)
	}
	return out, nil
}
