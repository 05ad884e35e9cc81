package model

// Role is the closed set of user roles allowed to operate the desk.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleStaff Role = "STAFF"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleStaff
}

type Staff struct {
	ID       string
	Username string
	Role     Role
	IsActive bool
}
