package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds operator credentials.
type LoginRequest struct {
	Username  string `json:"username" validate:"required"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// LoginResponse returns the issued token and operator info.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresIn int64     `json:"expiresIn"`
	IssuedAt  time.Time `json:"issuedAt"`
	User      UserInfo  `json:"user"`
}

// RegisterRequest creates a new operator account.
type RegisterRequest struct {
	Username string   `json:"username" validate:"required,min=3,max=64,alphanum"`
	Password string   `json:"password" validate:"required,min=8,max=72"`
	Role     UserRole `json:"role" validate:"omitempty,oneof=ADMIN SUPERADMIN"`
}

// UserInfo describes the authenticated operator in responses.
type UserInfo struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Role     UserRole `json:"role"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Username string   `json:"username"`
	Role     UserRole `json:"role"`
	jwt.RegisteredClaims
}
