package models

import "time"

// Staff roles. Manager may do everything; the others are scoped in the router.
const (
	RoleManager = "manager"
	RoleWaiter  = "waiter"
	RoleKitchen = "kitchen"
	RoleBar     = "bar"
)

// IsValidRole checks a role name against the known set.
func IsValidRole(role string) bool {
	switch role {
	case RoleManager, RoleWaiter, RoleKitchen, RoleBar:
		return true
	default:
		return false
	}
}

// User represents a staff login
type User struct {
	ID              int64     `json:"id"`
	EstablishmentID int64     `json:"establishment_id" db:"establishment_id"`
	Username        string    `json:"username" db:"username"`
	PasswordHash    string    `json:"-" db:"password_hash"`
	FullName        *string   `json:"full_name,omitempty" db:"full_name"`
	Role            string    `json:"role" db:"role"`
	IsActive        bool      `json:"is_active" db:"is_active"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// Session is the caller context passed explicitly into every service call.
type Session struct {
	EstablishmentID int64
	UserID          int64
	Role            string
}

// Credentials for login request
type Credentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}
