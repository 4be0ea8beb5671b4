package permissions

import (
	"context"
	"errors"

	"github.com/moacode/craft-fab-permissions/internal/entities"
)

// ErrUnknownGroupHandle is returned when a permission submission names a
// group handle that does not resolve to a real user group. The whole save
// fails; nothing from the submission is written.
var ErrUnknownGroupHandle = errors.New("invalid group reference")

// GroupDirectory is the read contract for the host's user group service.
// When no directory is available the resolver degrades to always-allow
// (see Service).
type GroupDirectory interface {
	// GroupByHandle resolves a group by its handle, or nil if no such group
	GroupByHandle(ctx context.Context, handle string) (*entities.Group, error)

	// GroupByID resolves a group by its ID, or nil if no such group
	GroupByID(ctx context.Context, id int64) (*entities.Group, error)

	// Groups returns the full group roster
	Groups(ctx context.Context) ([]*entities.Group, error)
}
