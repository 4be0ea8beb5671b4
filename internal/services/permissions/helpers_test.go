package permissions

import (
	"context"
	"sort"
	"sync"

	"github.com/moacode/craft-fab-permissions/internal/entities"
	"github.com/moacode/craft-fab-permissions/internal/infrastructure/configtree"
	"github.com/moacode/craft-fab-permissions/internal/repositories"
)

// memGrantRepository is an in-memory GrantRepository for tests.
type memGrantRepository struct {
	mu     sync.Mutex
	nextID int64
	grants map[string]*entities.Grant
}

func newMemGrantRepository() *memGrantRepository {
	return &memGrantRepository{grants: make(map[string]*entities.Grant)}
}

func (r *memGrantRepository) Upsert(ctx context.Context, grant *entities.Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *grant
	if existing, ok := r.grants[grant.UID]; ok {
		copied.ID = existing.ID
	} else {
		r.nextID++
		copied.ID = r.nextID
	}
	r.grants[grant.UID] = &copied
	return nil
}

func (r *memGrantRepository) DeleteByUID(ctx context.Context, uid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.grants, uid)
	return nil
}

func (r *memGrantRepository) GetByUID(ctx context.Context, uid string) (*entities.Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.grants[uid]
	if !ok {
		return nil, nil
	}
	copied := *g
	return &copied, nil
}

func (r *memGrantRepository) UIDByID(ctx context.Context, id int64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for uid, g := range r.grants {
		if g.ID == id {
			return uid, nil
		}
	}
	return "", nil
}

func (r *memGrantRepository) List(ctx context.Context, filter *repositories.GrantFilter) ([]*entities.Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*entities.Grant
	for _, g := range r.grants {
		if matchesFilter(g, filter) {
			copied := *g
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memGrantRepository) ListUIDs(ctx context.Context, filter *repositories.GrantFilter) ([]string, error) {
	grants, err := r.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	uids := make([]string, 0, len(grants))
	for _, g := range grants {
		uids = append(uids, g.UID)
	}
	return uids, nil
}

func (r *memGrantRepository) StaleUIDs(ctx context.Context, layoutID int64, keep []string) ([]string, error) {
	kept := make(map[string]bool, len(keep))
	for _, uid := range keep {
		kept[uid] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for uid, g := range r.grants {
		if g.LayoutID == layoutID && !kept[uid] {
			out = append(out, uid)
		}
	}
	sort.Strings(out)
	return out, nil
}

func matchesFilter(g *entities.Grant, f *repositories.GrantFilter) bool {
	if f == nil {
		return true
	}
	if f.LayoutID != 0 && g.LayoutID != f.LayoutID {
		return false
	}
	if f.SiteID != 0 && g.SiteID != f.SiteID {
		return false
	}
	if f.TabName != "" && (g.TabName == nil || *g.TabName != f.TabName) {
		return false
	}
	if f.FieldID != 0 && (g.FieldID == nil || *g.FieldID != f.FieldID) {
		return false
	}
	if f.GroupID != 0 && (g.GroupID == nil || *g.GroupID != f.GroupID) {
		return false
	}
	if f.TabsOnly && g.TabName == nil {
		return false
	}
	if f.FieldsOnly && g.FieldID == nil {
		return false
	}
	return true
}

// staticDirectory is a fixed-roster GroupDirectory for tests.
type staticDirectory struct {
	groups []*entities.Group
}

func (d *staticDirectory) GroupByHandle(ctx context.Context, handle string) (*entities.Group, error) {
	for _, g := range d.groups {
		if g.Handle == handle {
			return g, nil
		}
	}
	return nil, nil
}

func (d *staticDirectory) GroupByID(ctx context.Context, id int64) (*entities.Group, error) {
	for _, g := range d.groups {
		if g.ID == id {
			return g, nil
		}
	}
	return nil, nil
}

func (d *staticDirectory) Groups(ctx context.Context) ([]*entities.Group, error) {
	return d.groups, nil
}

func testDirectory() *staticDirectory {
	return &staticDirectory{groups: []*entities.Group{
		{ID: 5, Name: "Editors", Handle: "editors"},
		{ID: 6, Name: "Authors", Handle: "authors"},
	}}
}

// newTestService wires an in-memory repository, an in-memory config tree
// and the fixed test roster into a service.
func newTestService() (*Service, *memGrantRepository, *configtree.Tree) {
	repo := newMemGrantRepository()
	tree := configtree.New("")
	svc := NewService(repo, tree, testDirectory())
	return svc, repo, tree
}

// testLayout builds layout 12: tab "Settings" with fields 42 and 43, tab
// "Advanced" with field 44.
func testLayout() entities.Layout {
	return &entities.SimpleLayout{
		LayoutID: 12,
		LayoutTabs: []entities.Tab{
			&entities.SimpleTab{TabName: "Settings", TabFields: []entities.Field{
				&fakeField{id: 42, handle: "title"},
				&fakeField{id: 43, handle: "summary"},
			}},
			&entities.SimpleTab{TabName: "Advanced", TabFields: []entities.Field{
				&fakeField{id: 44, handle: "slug"},
			}},
		},
	}
}

// fakeField is a minimal concrete Field for tests.
type fakeField struct {
	id     int64
	handle string
}

func (f *fakeField) ID() int64      { return f.id }
func (f *fakeField) Handle() string { return f.handle }

func (f *fakeField) RenderInput(value string) string  { return "<input>" + value + "</input>" }
func (f *fakeField) RenderStatic(value string) string { return "<static>" + value + "</static>" }

func strPtr(s string) *string { return &s }
func i64Ptr(i int64) *int64   { return &i }

// seedGrant writes a grant through the config tree so both stores see it.
func seedGrant(ctx context.Context, tree *configtree.Tree, uid string, cfg entities.GrantConfig) error {
	return tree.Set(ctx, uid, cfg)
}
