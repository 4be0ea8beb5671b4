// Package configtree holds the declarative, UID-keyed source of truth for
// permission grants. Entries live under grants.<uid> and are persisted as a
// YAML snapshot; every mutation is dispatched to registered handlers so the
// relational grant cache can follow the tree.
package configtree

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/moacode/craft-fab-permissions/internal/entities"
	"gopkg.in/yaml.v3"
)

// Handler receives config tree change events. Implementations must be
// idempotent: the same event may be delivered more than once, and an
// update may arrive for a UID the handler has never seen.
type Handler interface {
	GrantAdded(ctx context.Context, uid string, cfg entities.GrantConfig) error
	GrantUpdated(ctx context.Context, uid string, cfg entities.GrantConfig) error
	GrantRemoved(ctx context.Context, uid string) error
}

// fileFormat is the on-disk YAML shape of the tree.
type fileFormat struct {
	Grants map[string]entities.GrantConfig `yaml:"grants"`
}

// Tree is a durable key-value tree of grant config entries. Mutations
// update memory, persist the snapshot, then notify handlers in
// registration order. The tree is authoritative: a handler failure is
// surfaced to the caller but does not roll the entry back.
type Tree struct {
	mu       sync.Mutex
	path     string // snapshot file; empty disables persistence
	grants   map[string]entities.GrantConfig
	handlers []Handler
}

// New creates a config tree persisting to the YAML file at path.
// An empty path keeps the tree in memory only.
func New(path string) *Tree {
	return &Tree{
		path:   path,
		grants: make(map[string]entities.GrantConfig),
	}
}

// Register adds a handler for subsequent change events.
func (t *Tree) Register(h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers = append(t.handlers, h)
}

// Load reads the snapshot file and replays every entry through the
// handlers as an add. Missing file is not an error: the tree starts empty.
func (t *Tree) Load(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.path == "" {
		return nil
	}

	data, err := os.ReadFile(t.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config tree: %w", err)
	}

	var file fileFormat
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse config tree: %w", err)
	}

	if file.Grants == nil {
		file.Grants = make(map[string]entities.GrantConfig)
	}
	t.grants = file.Grants

	for uid, cfg := range t.grants {
		for _, h := range t.handlers {
			if err := h.GrantAdded(ctx, uid, cfg); err != nil {
				return fmt.Errorf("failed to apply config entry %s: %w", uid, err)
			}
		}
	}

	return nil
}

// Set adds or fully replaces the entry for uid, persists the snapshot and
// dispatches the change. Setting an entry to its current value is still
// dispatched; handlers are idempotent.
func (t *Tree) Set(ctx context.Context, uid string, cfg entities.GrantConfig) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, existed := t.grants[uid]
	t.grants[uid] = cfg

	if err := t.persist(); err != nil {
		return err
	}

	for _, h := range t.handlers {
		var err error
		if existed {
			err = h.GrantUpdated(ctx, uid, cfg)
		} else {
			err = h.GrantAdded(ctx, uid, cfg)
		}
		if err != nil {
			return fmt.Errorf("failed to apply config change for %s: %w", uid, err)
		}
	}

	return nil
}

// Remove deletes the entry for uid if present, persists the snapshot and
// dispatches the removal. Removing an absent UID is a no-op.
func (t *Tree) Remove(ctx context.Context, uid string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.grants[uid]; !ok {
		return nil
	}
	delete(t.grants, uid)

	if err := t.persist(); err != nil {
		return err
	}

	for _, h := range t.handlers {
		if err := h.GrantRemoved(ctx, uid); err != nil {
			return fmt.Errorf("failed to apply config removal for %s: %w", uid, err)
		}
	}

	return nil
}

// Get returns the entry for uid.
func (t *Tree) Get(uid string) (entities.GrantConfig, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cfg, ok := t.grants[uid]
	return cfg, ok
}

// All returns a copy of every entry keyed by UID.
func (t *Tree) All() map[string]entities.GrantConfig {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]entities.GrantConfig, len(t.grants))
	for uid, cfg := range t.grants {
		out[uid] = cfg
	}
	return out
}

// ReplaceAll swaps the entire tree content and persists it without
// dispatching events. Used when adopting a rebuilt tree; the caller is
// expected to resynchronize the cache separately.
func (t *Tree) ReplaceAll(grants map[string]entities.GrantConfig) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.grants = make(map[string]entities.GrantConfig, len(grants))
	for uid, cfg := range grants {
		t.grants[uid] = cfg
	}

	return t.persist()
}

// persist writes the YAML snapshot atomically. Callers hold t.mu.
func (t *Tree) persist() error {
	if t.path == "" {
		return nil
	}

	data, err := yaml.Marshal(fileFormat{Grants: t.grants})
	if err != nil {
		return fmt.Errorf("failed to serialize config tree: %w", err)
	}

	dir := filepath.Dir(t.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config tree directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".permissions-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create config tree temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write config tree: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close config tree temp file: %w", err)
	}

	if err := os.Rename(tmpName, t.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace config tree snapshot: %w", err)
	}

	return nil
}
