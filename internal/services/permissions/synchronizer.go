package permissions

import (
	"context"
	"fmt"

	"github.com/moacode/craft-fab-permissions/internal/entities"
)

// The service is the config tree's change handler: every tree mutation is
// applied to the grant repository so the relational cache follows the
// tree. Apply events fully replace the row keyed by UID, which makes them
// idempotent and order-tolerant for a single UID.

// GrantAdded upserts the grant row for a new config entry.
func (s *Service) GrantAdded(ctx context.Context, uid string, cfg entities.GrantConfig) error {
	return s.apply(ctx, "added", uid, cfg)
}

// GrantUpdated upserts the grant row for a changed config entry. An
// update for a UID the cache has never seen inserts the row.
func (s *Service) GrantUpdated(ctx context.Context, uid string, cfg entities.GrantConfig) error {
	return s.apply(ctx, "updated", uid, cfg)
}

// GrantRemoved deletes the grant row for a removed config entry; no-op
// if the row is already gone.
func (s *Service) GrantRemoved(ctx context.Context, uid string) error {
	if err := s.grants.DeleteByUID(ctx, uid); err != nil {
		return fmt.Errorf("failed to remove grant %s: %w", uid, err)
	}
	s.invalidate(ctx, "removed")
	return nil
}

func (s *Service) apply(ctx context.Context, op string, uid string, cfg entities.GrantConfig) error {
	grant := cfg.Grant(uid)
	if err := grant.Validate(); err != nil {
		return fmt.Errorf("invalid config entry %s: %w", uid, err)
	}
	if err := s.grants.Upsert(ctx, grant); err != nil {
		return fmt.Errorf("failed to apply grant %s: %w", uid, err)
	}
	s.invalidate(ctx, op)
	return nil
}

// invalidate drops memoized check results after any grant change and
// counts the sync event.
func (s *Service) invalidate(ctx context.Context, op string) {
	if s.cache != nil {
		_ = s.cache.Clear(ctx)
	}
	if s.metrics != nil {
		s.metrics.RecordSyncEvent(op)
	}
}

// Rebuild regenerates the full config tree content from the grant
// repository: every row re-serialized into a flat map keyed by UID,
// surrogate IDs and timestamps dropped. Used for disaster recovery or
// initial adoption, never for ordinary sync; the caller decides whether
// to adopt the result via the tree's ReplaceAll.
func (s *Service) Rebuild(ctx context.Context) (map[string]entities.GrantConfig, error) {
	grants, err := s.grants.List(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to scan grants for rebuild: %w", err)
	}

	out := make(map[string]entities.GrantConfig, len(grants))
	for _, g := range grants {
		out[g.UID] = g.Config()
	}
	return out, nil
}
