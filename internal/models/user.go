package models

// Role constants
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// User is the identity reported by the identity provider.
// A nil *User means nobody is signed in.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"` // USER or ADMIN
}

// IsAdmin returns true if the user is an admin. Safe on a nil receiver.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
