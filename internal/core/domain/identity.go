package domain

// UserRole is the coarse role used to tell shoppers from administrators.
type UserRole string

const (
	UserRoleCustomer UserRole = "customer"
	UserRoleAdmin    UserRole = "admin"
)

// User mirrors the subset of the user directory the identity layer depends on.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         UserRole
	IsActive     bool
}

// IsAdmin reports whether the user carries the admin role.
func (u User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}

// Identity is the resolved visitor for a single request.
// At most one of UserID and SessionID is populated.
type Identity struct {
	UserID         string
	SessionID      string
	Role           UserRole
	ImpersonatorID string
}

// IsAuthenticated reports whether a user was resolved.
func (i Identity) IsAuthenticated() bool {
	return i.UserID != ""
}

// IsGuest reports whether the visitor is tracked only by a session identifier.
func (i Identity) IsGuest() bool {
	return i.UserID == "" && i.SessionID != ""
}

// IsAnonymous reports whether neither a user nor a session was resolved.
func (i Identity) IsAnonymous() bool {
	return i.UserID == "" && i.SessionID == ""
}

// IsAdmin reports whether the resolved user is an administrator.
func (i Identity) IsAdmin() bool {
	return i.IsAuthenticated() && i.Role == UserRoleAdmin
}

// IsImpersonated reports whether the identity was produced on behalf of an admin.
func (i Identity) IsImpersonated() bool {
	return i.ImpersonatorID != ""
}

// UserIdentity builds the identity exposed for an authenticated request.
func UserIdentity(user User) Identity {
	return Identity{UserID: user.ID, Role: user.Role}
}

// GuestIdentity builds the identity exposed for a guest request.
func GuestIdentity(sessionID string) Identity {
	return Identity{SessionID: sessionID}
}
