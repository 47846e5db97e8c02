package domain

// Session is the authenticated caller as extracted at the HTTP boundary.
type Session struct {
	UserID         string
	OrganizationID string
	Role           Role
}

// Actor returns the audit actor for this session.
func (s Session) Actor() Actor {
	return Actor{UserID: s.UserID, Role: s.Role}
}

// Actor identifies who performed a mutation.
type Actor struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}

// SystemActor is used for reconciliation passes and other unattended writes.
var SystemActor = Actor{UserID: "system", Role: RoleSuperAdmin}
