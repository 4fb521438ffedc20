package shared

// Actor identifies who performs an operation. It is threaded explicitly into
// every service call instead of being read from ambient state, so the
// capability check stays testable without a simulated session.
type Actor struct {
	ID          int64
	Name        string
	permissions map[string]struct{}
	system      bool
}

// NewActor builds an actor with an explicit permission set.
func NewActor(id int64, name string, permissions ...string) Actor {
	set := make(map[string]struct{}, len(permissions))
	for _, p := range permissions {
		set[p] = struct{}{}
	}
	return Actor{ID: id, Name: name, permissions: set}
}

// SystemActor returns the actor used by scheduled automation. It passes every
// capability check.
func SystemActor() Actor {
	return Actor{ID: 1, Name: "system", system: true}
}

// Can reports whether the actor holds the named capability.
func (a Actor) Can(permission string) bool {
	if a.system {
		return true
	}
	if permission == "" {
		return true
	}
	_, ok := a.permissions[permission]
	return ok
}

// IsSystem reports whether the actor is the automation identity.
func (a Actor) IsSystem() bool {
	return a.system
}
