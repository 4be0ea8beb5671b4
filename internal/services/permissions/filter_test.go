package permissions

import (
	"context"
	"testing"

	"github.com/moacode/craft-fab-permissions/internal/decorators"
	"github.com/moacode/craft-fab-permissions/internal/entities"
)

func TestVisibleTabs_PrunesDeniedTabs(t *testing.T) {
	ctx := context.Background()
	svc, _, tree := newTestService()
	layout := testLayout()

	err := seedGrant(ctx, tree, "uid-1", entities.GrantConfig{
		LayoutID: 12, TabName: strPtr("Advanced"), SiteID: 1, GroupID: i64Ptr(6),
		CanView: true, CanEdit: true,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	// actor is in group 5, which holds no grant on Advanced
	actor := &entities.StaticActor{Groups: []int64{5}}
	tabs, err := svc.VisibleTabs(ctx, layout, actor, 1)
	if err != nil {
		t.Fatalf("VisibleTabs() error: %v", err)
	}

	if len(tabs) != 1 || tabs[0].Name != "Settings" {
		t.Fatalf("tabs = %v, want only Settings", tabs)
	}
	// Settings has no grants, so both fields survive undecorated
	if len(tabs[0].Fields) != 2 {
		t.Errorf("got %d fields, want 2", len(tabs[0].Fields))
	}
	for _, f := range tabs[0].Fields {
		if decorators.IsStatic(f) {
			t.Errorf("field %d decorated without any grant", f.ID())
		}
	}
}

func TestVisibleTabs_DropsDeniedFields(t *testing.T) {
	ctx := context.Background()
	svc, _, tree := newTestService()
	layout := testLayout()

	err := seedGrant(ctx, tree, "uid-1", entities.GrantConfig{
		LayoutID: 12, FieldID: i64Ptr(42), SiteID: 1, GroupID: i64Ptr(6),
		CanView: true, CanEdit: true,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	actor := &entities.StaticActor{Groups: []int64{5}}
	tabs, err := svc.VisibleTabs(ctx, layout, actor, 1)
	if err != nil {
		t.Fatalf("VisibleTabs() error: %v", err)
	}

	var settings *ResolvedTab
	for i := range tabs {
		if tabs[i].Name == "Settings" {
			settings = &tabs[i]
		}
	}
	if settings == nil {
		t.Fatal("Settings tab missing")
	}
	if len(settings.Fields) != 1 || settings.Fields[0].ID() != 43 {
		t.Fatalf("fields = %v, want only field 43", settings.Fields)
	}
	// a pruned field is never wrapped; the survivor has no grant and
	// stays interactive
	if decorators.IsStatic(settings.Fields[0]) {
		t.Error("field 43 decorated without any grant")
	}
}

func TestVisibleTabs_WrapsViewOnlyFields(t *testing.T) {
	ctx := context.Background()
	svc, _, tree := newTestService()
	layout := testLayout()

	err := seedGrant(ctx, tree, "uid-1", entities.GrantConfig{
		LayoutID: 12, FieldID: i64Ptr(42), SiteID: 1, GroupID: i64Ptr(5),
		CanView: true, CanEdit: false,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	actor := &entities.StaticActor{Groups: []int64{5}}
	tabs, err := svc.VisibleTabs(ctx, layout, actor, 1)
	if err != nil {
		t.Fatalf("VisibleTabs() error: %v", err)
	}

	for _, tab := range tabs {
		for _, f := range tab.Fields {
			wantStatic := f.ID() == 42
			if decorators.IsStatic(f) != wantStatic {
				t.Errorf("field %d static = %v, want %v", f.ID(), decorators.IsStatic(f), wantStatic)
			}
			if wantStatic {
				// the wrapper preserves identity and redirects input
				// rendering to the static presentation
				if got := f.RenderInput("v"); got != "<static>v</static>" {
					t.Errorf("RenderInput() = %q, want static output", got)
				}
			}
		}
	}
}

func TestVisibleTabs_AdminSeesEverythingInteractive(t *testing.T) {
	ctx := context.Background()
	svc, _, tree := newTestService()
	layout := testLayout()

	seed := map[string]entities.GrantConfig{
		"uid-1": {LayoutID: 12, TabName: strPtr("Settings"), SiteID: 1, GroupID: i64Ptr(5), CanView: false, CanEdit: true},
		"uid-2": {LayoutID: 12, FieldID: i64Ptr(42), SiteID: 1, GroupID: i64Ptr(5), CanView: false, CanEdit: false},
	}
	for uid, cfg := range seed {
		if err := seedGrant(ctx, tree, uid, cfg); err != nil {
			t.Fatalf("seed %s: %v", uid, err)
		}
	}

	admin := &entities.StaticActor{Admin: true}
	tabs, err := svc.VisibleTabs(ctx, layout, admin, 1)
	if err != nil {
		t.Fatalf("VisibleTabs() error: %v", err)
	}
	if len(tabs) != 2 {
		t.Fatalf("got %d tabs, want 2", len(tabs))
	}
	for _, tab := range tabs {
		for _, f := range tab.Fields {
			if decorators.IsStatic(f) {
				t.Errorf("field %d decorated for an administrator", f.ID())
			}
		}
	}
}

func TestVisibleTabs_GuestSeesNothing(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	guest := &entities.StaticActor{Guest: true}
	tabs, err := svc.VisibleTabs(ctx, testLayout(), guest, 1)
	if err != nil {
		t.Fatalf("VisibleTabs() error: %v", err)
	}
	if len(tabs) != 0 {
		t.Errorf("got %d tabs for a guest, want 0", len(tabs))
	}
}
