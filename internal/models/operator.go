package models

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// OperatorRoles is a custom type for handling TEXT[] arrays in PostgreSQL
type OperatorRoles []string

// Value implements the driver.Valuer interface
func (r OperatorRoles) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	return pq.Array(r).Value()
}

// Scan implements the sql.Scanner interface
func (r *OperatorRoles) Scan(src interface{}) error {
	return pq.Array(r).Scan(src)
}

// Operator is a back-office user scoped to one organization
type Operator struct {
	ID             uuid.UUID      `json:"id" db:"id"`
	OrganizationID uuid.UUID      `json:"organization_id" db:"organization_id"`
	Email          string         `json:"email" db:"email"`
	PasswordHash   string         `json:"-" db:"password_hash"`
	FullName       string         `json:"full_name" db:"full_name"`
	Roles          OperatorRoles  `json:"roles" db:"roles"`
	Status         string         `json:"status" db:"status"` // "active", "disabled"
	LastLoginAt    *time.Time     `json:"last_login_at,omitempty" db:"last_login_at"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}

// LoginRequest is the operator credentials payload
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest carries a refresh token
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// TokenResponse is the auth success payload
type TokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}
