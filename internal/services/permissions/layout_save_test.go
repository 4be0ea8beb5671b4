package permissions

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"testing"

	"github.com/moacode/craft-fab-permissions/internal/entities"
)

func TestSaveLayoutPermissions_WritesTabAndFieldGrants(t *testing.T) {
	ctx := context.Background()
	svc, repo, tree := newTestService()
	layout := testLayout()

	sub := &Submission{
		TabPermissions: map[string]map[string]PermissionInput{
			"Settings": {"editors": {CanView: true}},
		},
		FieldPermissions: map[int64]map[string]PermissionInput{
			42: {"editors": {CanView: true, CanEdit: false}},
		},
	}
	if err := svc.SaveLayoutPermissions(ctx, layout, 1, sub); err != nil {
		t.Fatalf("SaveLayoutPermissions() error: %v", err)
	}

	grants, err := repo.List(ctx, nil)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(grants) != 2 {
		t.Fatalf("got %d grants, want 2", len(grants))
	}

	for _, g := range grants {
		if g.IsTabGrant() {
			if *g.TabName != "Settings" || !g.CanView {
				t.Errorf("tab grant = %s", g)
			}
			// tabs gate visibility only; the edit bit is forced on save
			if !g.CanEdit {
				t.Error("tab grant edit bit should be forced true")
			}
		} else {
			if *g.FieldID != 42 || !g.CanView || g.CanEdit {
				t.Errorf("field grant = %s", g)
			}
		}
		if g.GroupID == nil || *g.GroupID != 5 {
			t.Errorf("grant group = %v, want 5", g.GroupID)
		}
		// every grant must also live in the config tree
		if _, ok := tree.Get(g.UID); !ok {
			t.Errorf("grant %s missing from the config tree", g.UID)
		}
	}
}

func TestSaveLayoutPermissions_AdminHandleForcedPermissive(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService()
	layout := testLayout()

	sub := &Submission{
		FieldPermissions: map[int64]map[string]PermissionInput{
			// posted bits are ignored for the administrator pseudo handle
			42: {"admin": {CanView: false, CanEdit: false}},
		},
	}
	if err := svc.SaveLayoutPermissions(ctx, layout, 1, sub); err != nil {
		t.Fatalf("SaveLayoutPermissions() error: %v", err)
	}

	grants, _ := repo.List(ctx, nil)
	if len(grants) != 1 {
		t.Fatalf("got %d grants, want 1", len(grants))
	}
	g := grants[0]
	if g.GroupID != nil {
		t.Errorf("admin grant group = %v, want nil", *g.GroupID)
	}
	if !g.CanView || !g.CanEdit {
		t.Errorf("admin grant bits = view=%t edit=%t, want both true", g.CanView, g.CanEdit)
	}
}

func TestSaveLayoutPermissions_UnknownHandleFailsBeforeWriting(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService()
	layout := testLayout()

	sub := &Submission{
		TabPermissions: map[string]map[string]PermissionInput{
			"Settings": {"editors": {CanView: true}},
		},
		FieldPermissions: map[int64]map[string]PermissionInput{
			42: {"nosuchgroup": {CanView: true}},
		},
	}
	err := svc.SaveLayoutPermissions(ctx, layout, 1, sub)
	if !errors.Is(err, ErrUnknownGroupHandle) {
		t.Fatalf("SaveLayoutPermissions() error = %v, want ErrUnknownGroupHandle", err)
	}

	// handles are validated before any grant is written
	grants, _ := repo.List(ctx, nil)
	if len(grants) != 0 {
		t.Errorf("got %d grants after a failed save, want 0", len(grants))
	}
}

func TestSaveLayoutPermissions_AbortSentinelIsNoOp(t *testing.T) {
	ctx := context.Background()
	svc, repo, tree := newTestService()
	layout := testLayout()

	err := seedGrant(ctx, tree, "uid-1", entities.GrantConfig{
		LayoutID: 12, TabName: strPtr("Settings"), SiteID: 1, GroupID: i64Ptr(5),
		CanView: true, CanEdit: true,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	// the editor never finished loading; an aborted submission must not
	// clear the existing grants
	sub := &Submission{Aborted: true}
	if err := svc.SaveLayoutPermissions(ctx, layout, 1, sub); err != nil {
		t.Fatalf("SaveLayoutPermissions() error: %v", err)
	}

	grants, _ := repo.List(ctx, nil)
	if len(grants) != 1 {
		t.Errorf("got %d grants after aborted save, want 1", len(grants))
	}
}

func TestSaveLayoutPermissions_EmptySubmissionClearsLayout(t *testing.T) {
	ctx := context.Background()
	svc, repo, tree := newTestService()
	layout := testLayout()

	sub := &Submission{
		TabPermissions: map[string]map[string]PermissionInput{
			"Settings": {"editors": {CanView: true, CanEdit: false}},
		},
	}
	if err := svc.SaveLayoutPermissions(ctx, layout, 1, sub); err != nil {
		t.Fatalf("first save error: %v", err)
	}

	// a grant on another layout must survive the clear
	err := seedGrant(ctx, tree, "uid-other", entities.GrantConfig{
		LayoutID: 99, TabName: strPtr("Other"), SiteID: 1, GroupID: i64Ptr(5), CanView: true, CanEdit: true,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := svc.SaveLayoutPermissions(ctx, layout, 1, &Submission{}); err != nil {
		t.Fatalf("empty save error: %v", err)
	}

	grants, _ := repo.List(ctx, nil)
	if len(grants) != 1 || grants[0].UID != "uid-other" {
		t.Errorf("grants after clear = %v, want only uid-other", grants)
	}
	if len(tree.All()) != 1 {
		t.Errorf("tree has %d entries after clear, want 1", len(tree.All()))
	}
}

func TestSaveLayoutPermissions_Idempotent(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService()
	layout := testLayout()

	sub := &Submission{
		TabPermissions: map[string]map[string]PermissionInput{
			"Settings": {"editors": {CanView: true}},
			"Advanced": {"authors": {CanView: true}},
		},
		FieldPermissions: map[int64]map[string]PermissionInput{
			42: {"editors": {CanView: true, CanEdit: true}},
		},
	}
	if err := svc.SaveLayoutPermissions(ctx, layout, 1, sub); err != nil {
		t.Fatalf("first save error: %v", err)
	}

	first, _ := repo.List(ctx, nil)
	if len(first) != 3 {
		t.Fatalf("got %d grants after first save, want 3", len(first))
	}

	// the editor posts back the grant IDs it was handed, so a resubmission
	// reuses the existing UIDs
	resub := &Submission{
		TabPermissions:   map[string]map[string]PermissionInput{},
		FieldPermissions: map[int64]map[string]PermissionInput{},
	}
	for _, g := range first {
		input := PermissionInput{GrantID: g.ID, CanView: g.CanView, CanEdit: g.CanEdit}
		handle := "editors"
		if g.GroupID != nil && *g.GroupID == 6 {
			handle = "authors"
		}
		if g.IsTabGrant() {
			resub.TabPermissions[*g.TabName] = map[string]PermissionInput{handle: input}
		} else {
			resub.FieldPermissions[*g.FieldID] = map[string]PermissionInput{handle: input}
		}
	}
	if err := svc.SaveLayoutPermissions(ctx, layout, 1, resub); err != nil {
		t.Fatalf("second save error: %v", err)
	}

	second, _ := repo.List(ctx, nil)
	if !reflect.DeepEqual(uidsOf(first), uidsOf(second)) {
		t.Errorf("UIDs changed across identical saves: %v vs %v", uidsOf(first), uidsOf(second))
	}
}

func TestSaveLayoutPermissions_SweepsStaleGrants(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService()
	layout := testLayout()

	sub := &Submission{
		TabPermissions: map[string]map[string]PermissionInput{
			"Settings": {"editors": {CanView: true}},
			"Advanced": {"editors": {CanView: true}},
		},
	}
	if err := svc.SaveLayoutPermissions(ctx, layout, 1, sub); err != nil {
		t.Fatalf("first save error: %v", err)
	}

	// the second submission drops the Advanced tab entirely
	if err := svc.SaveLayoutPermissions(ctx, layout, 1, &Submission{
		TabPermissions: map[string]map[string]PermissionInput{
			"Settings": {"editors": {CanView: true}},
		},
	}); err != nil {
		t.Fatalf("second save error: %v", err)
	}

	grants, _ := repo.List(ctx, nil)
	if len(grants) != 1 {
		t.Fatalf("got %d grants after sweep, want 1", len(grants))
	}
	if *grants[0].TabName != "Settings" {
		t.Errorf("surviving grant targets %q, want Settings", *grants[0].TabName)
	}
}

func TestSaveLayoutPermissions_DropsUnknownAndMalformedTabKeys(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService()
	layout := testLayout()

	sub := &Submission{
		TabPermissions: map[string]map[string]PermissionInput{
			"My%20Tab":    {"editors": {CanView: true}}, // decodes to a tab the layout does not have
			"bad%zzkey":   {"editors": {CanView: true}}, // does not decode at all
			"Settings":    {"editors": {CanView: true}},
			"Old%20Name%": {"editors": {CanView: true}},
		},
	}
	if err := svc.SaveLayoutPermissions(ctx, layout, 1, sub); err != nil {
		t.Fatalf("SaveLayoutPermissions() error: %v", err)
	}

	grants, _ := repo.List(ctx, nil)
	if len(grants) != 1 {
		t.Fatalf("got %d grants, want 1 (only the matching tab)", len(grants))
	}
	if *grants[0].TabName != "Settings" {
		t.Errorf("grant targets %q, want Settings", *grants[0].TabName)
	}
}

func TestSaveLayoutPermissions_URLEncodedTabNameMatches(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService()

	layout := &entities.SimpleLayout{
		LayoutID: 12,
		LayoutTabs: []entities.Tab{
			&entities.SimpleTab{TabName: "My Tab"},
		},
	}
	sub := &Submission{
		TabPermissions: map[string]map[string]PermissionInput{
			"My%20Tab": {"editors": {CanView: true}},
		},
	}
	if err := svc.SaveLayoutPermissions(ctx, layout, 1, sub); err != nil {
		t.Fatalf("SaveLayoutPermissions() error: %v", err)
	}

	grants, _ := repo.List(ctx, nil)
	if len(grants) != 1 || *grants[0].TabName != "My Tab" {
		t.Fatalf("grants = %v, want one grant on tab %q", grants, "My Tab")
	}
}

func TestSaveLayoutPermissions_DropsFieldsNotOnLayout(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService()
	layout := testLayout()

	sub := &Submission{
		FieldPermissions: map[int64]map[string]PermissionInput{
			42:  {"editors": {CanView: true}},
			999: {"editors": {CanView: true}},
		},
	}
	if err := svc.SaveLayoutPermissions(ctx, layout, 1, sub); err != nil {
		t.Fatalf("SaveLayoutPermissions() error: %v", err)
	}

	grants, _ := repo.List(ctx, nil)
	if len(grants) != 1 || *grants[0].FieldID != 42 {
		t.Fatalf("grants = %v, want one grant on field 42", grants)
	}
}

func uidsOf(grants []*entities.Grant) []string {
	uids := make([]string, 0, len(grants))
	for _, g := range grants {
		uids = append(uids, g.UID)
	}
	sort.Strings(uids)
	return uids
}
