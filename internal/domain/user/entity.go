package user

import "time"

type Role string

const (
	RoleAdmin    Role = "admin"    // Workforce administrator - full access
	RoleManager  Role = "manager"  // Can resolve approvals and view team data
	RoleEmployee Role = "employee" // Regular employee
)

// User is the identity record this service resolves punches against. Account
// management belongs to the identity provider; this service only reads.
type User struct {
	ID          string
	WorkplaceID string
	Name        string
	Email       string
	Role        Role
	ShiftID     *string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsAdmin checks if the role is workforce administrator
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// IsManager checks if the role is manager or admin
func (r Role) IsManager() bool {
	return r == RoleManager || r == RoleAdmin
}

// CanResolveApprovals checks if the role can approve or reject requests
func (r Role) CanResolveApprovals() bool {
	return r.IsManager()
}

// IsAdmin checks if user is a workforce administrator
func (u *User) IsAdmin() bool {
	return u.Role.IsAdmin()
}

// IsManager checks if user is manager or admin
func (u *User) IsManager() bool {
	return u.Role.IsManager()
}

// CanResolveApprovals checks if user can approve or reject requests
func (u *User) CanResolveApprovals() bool {
	return u.Role.CanResolveApprovals()
}
