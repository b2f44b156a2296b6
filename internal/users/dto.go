package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/pharmexa/pharmastock-backend/pkg/enums"
)

// LoginRequest is the credential payload for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// LoginResponse carries the minted token and the authenticated profile.
type LoginResponse struct {
	AccessToken string      `json:"access_token"`
	User        UserSummary `json:"user"`
}

// UserSummary is the public shape of a user record.
type UserSummary struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Role        enums.Role `json:"role"`
	SiteID      *uuid.UUID `json:"site_id,omitempty"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// CreateInput is the payload for provisioning a user account.
type CreateInput struct {
	Email     string     `json:"email" validate:"required,email"`
	Password  string     `json:"password" validate:"required,min=8,max=128"`
	FirstName string     `json:"first_name" validate:"required,min=1,max=100"`
	LastName  string     `json:"last_name" validate:"required,min=1,max=100"`
	Role      string     `json:"role" validate:"required"`
	SiteID    *uuid.UUID `json:"site_id"`
}
