package identity

import "time"

type Role string

const (
	RoleGlobalAdmin        Role = "global_admin"
	RoleCustomerAdmin      Role = "customer_admin"
	RoleCustomerAccountant Role = "customer_accountant"
	RoleEmployer           Role = "employer"
	RoleCustomer           Role = "customer"
	RoleDriver             Role = "driver"
)

// ContactPersonRoles lists the roles whose scope is derived from a
// ContactPerson profile rather than a Driver profile.
var ContactPersonRoles = []Role{RoleCustomerAdmin, RoleCustomerAccountant, RoleEmployer, RoleCustomer}

// IsContactPersonRole reports whether the role scopes through a ContactPerson.
func (r Role) IsContactPersonRole() bool {
	switch r {
	case RoleCustomerAdmin, RoleCustomerAccountant, RoleEmployer, RoleCustomer:
		return true
	default:
		return false
	}
}

// Identity is the actor descriptor handed to the core on every request. The
// core never computes it; it is produced here from a verified token and
// consumed opaquely downstream.
type Identity struct {
	UserID string
	Role   Role
}

// User is the domain representation of an authenticated user account.
// It mirrors the users table and should not include JSON annotations so it
// can be reused by different presentation layers.
type User struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RegisterRequest contains user registration data supplied by callers.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     Role   `json:"role"`
}

// LoginRequest contains user login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
