package models

import "time"

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "customer"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleCustomer
}

// User mirrors an identity-provider account. IdentityRole is the role the
// provider asserted at the last login; it wins over Role when set.
type User struct {
	ID           string    `gorm:"primaryKey" json:"id"` // identity subject
	Username     string    `json:"username"`
	Email        string    `gorm:"index" json:"email"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	City         string    `json:"city"`
	Address      string    `json:"address"`
	Role         Role      `gorm:"not null;default:customer" json:"role"`
	IdentityRole Role      `json:"identity_role,omitempty"`
	CreatedAt    time.Time `gorm:"autoCreateTime;<-:create" json:"created_at"`
}
