package domain

// Role enumerates portal account roles.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleAgent  Role = "AGENT"
	RoleCloser Role = "CLOSER"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleAgent, RoleCloser:
		return true
	}
	return false
}

// Actor identifies the caller of a service operation. It is built from the
// access token by the auth middleware.
type Actor struct {
	UserID   string
	Role     Role
	AgentID  *string
	CloserID *string
}

// IsAdmin reports whether the actor holds the ADMIN role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// IsAgent reports whether the actor acts as the given agent.
func (a Actor) IsAgent(agentID string) bool {
	return a.Role == RoleAgent && a.AgentID != nil && *a.AgentID == agentID
}

// IsCloser reports whether the actor acts as the given closer.
func (a Actor) IsCloser(closerID string) bool {
	return a.Role == RoleCloser && a.CloserID != nil && *a.CloserID == closerID
}

// SystemActor is used for bootstrap tasks that run without a caller.
func SystemActor() Actor {
	return Actor{UserID: "system", Role: RoleAdmin}
}
