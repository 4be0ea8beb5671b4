// Package permissions implements the per-group view/edit access control
// overlay on field layout tabs and fields: grant resolution, layout save
// reconciliation, config tree synchronization and cascade cleanup.
package permissions

import (
	"sync"
	"time"

	"github.com/moacode/craft-fab-permissions/internal/infrastructure/configtree"
	"github.com/moacode/craft-fab-permissions/internal/infrastructure/metrics"
	"github.com/moacode/craft-fab-permissions/internal/repositories"
	"github.com/moacode/craft-fab-permissions/pkg/cache"
)

// Service provides permission checks and mutations for field layouts.
// The config tree is the authoritative store; the grant repository is the
// queryable cache the service keeps in sync by acting as the tree's
// change handler. The group directory is optional: when nil, checks
// degrade to always-allow and a warning is logged once.
type Service struct {
	grants  repositories.GrantRepository
	tree    *configtree.Tree
	groups  GroupDirectory
	metrics *metrics.Collector

	cache    cache.Cache
	cacheTTL time.Duration

	warnOnce sync.Once

	// layout save mutations are serialized per layout so a concurrent
	// save cannot sweep grants another save just wrote
	mu          sync.Mutex
	layoutLocks map[int64]*sync.Mutex
}

// NewService creates a permission service without result caching and
// registers it as the config tree's change handler.
func NewService(grants repositories.GrantRepository, tree *configtree.Tree, groups GroupDirectory) *Service {
	s := &Service{
		grants:      grants,
		tree:        tree,
		groups:      groups,
		layoutLocks: make(map[int64]*sync.Mutex),
	}
	if tree != nil {
		tree.Register(s)
	}
	return s
}

// NewServiceWithCache creates a permission service that memoizes check
// results in c with the given TTL. The cache is cleared whenever a grant
// changes, so entries can only serve stale reads within a single apply.
func NewServiceWithCache(
	grants repositories.GrantRepository,
	tree *configtree.Tree,
	groups GroupDirectory,
	c cache.Cache,
	cacheTTL time.Duration,
) *Service {
	s := NewService(grants, tree, groups)
	s.cache = c
	s.cacheTTL = cacheTTL
	return s
}

// SetMetrics attaches a metrics collector. Optional; the service works
// without one.
func (s *Service) SetMetrics(m *metrics.Collector) {
	s.metrics = m
}

// layoutLock returns the mutex serializing mutations for the given layout.
func (s *Service) layoutLock(layoutID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.layoutLocks[layoutID]
	if !ok {
		l = &sync.Mutex{}
		s.layoutLocks[layoutID] = l
	}
	return l
}
