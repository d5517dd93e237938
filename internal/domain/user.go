package domain

import "time"

// UserRole distinguishes the customer portal from the admin dashboard.
type UserRole string

const (
	RoleCustomer UserRole = "CUSTOMER"
	RoleAdmin    UserRole = "ADMIN"
)

// User is the domain model for accounts that sign in to the shop.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         UserRole
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
