package entities

// Actor is the evaluating subject of a permission check. It is supplied by
// the caller per evaluation and never persisted.
type Actor interface {
	// IsAdmin reports whether the actor bypasses all permission checks
	IsAdmin() bool

	// IsGuest reports whether the actor is unauthenticated
	IsGuest() bool

	// IsInGroup reports whether the actor is a member of the given user group
	IsInGroup(groupID int64) bool

	// GroupIDs returns every group the actor belongs to. The result is
	// used for cache keying and must be stable for a given actor.
	GroupIDs() []int64
}

// StaticActor is a fixed-membership Actor, convenient for hosts that
// already have the membership set in hand.
type StaticActor struct {
	Admin  bool
	Guest  bool
	Groups []int64
}

func (a *StaticActor) IsAdmin() bool { return a.Admin }
func (a *StaticActor) IsGuest() bool { return a.Guest }

func (a *StaticActor) GroupIDs() []int64 { return a.Groups }

func (a *StaticActor) IsInGroup(groupID int64) bool {
	for _, id := range a.Groups {
		if id == groupID {
			return true
		}
	}
	return false
}

// Group is a user group as defined by the surrounding system.
type Group struct {
	ID     int64
	Name   string
	Handle string
}
