package auth

// Role is the caller role supplied by the gateway after authentication.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Caller identifies the authenticated principal behind a request.
type Caller struct {
	UserID int64
	Role   Role
}

// IsAdmin reports whether the caller holds the administrator role.
func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// CanAccessOrder reports whether the caller may read or mutate an order
// owned by ownerID.
func (c Caller) CanAccessOrder(ownerID int64) bool {
	return c.IsAdmin() || c.UserID == ownerID
}
