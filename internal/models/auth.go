package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTypeBearer is the only access token scheme issued.
const TokenTypeBearer = "Bearer"

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	// Client details are taken from the request, never the body.
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
	IP           string `json:"-"`
	UserAgent    string `json:"-"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,nefield=OldPassword"`
}

// TokenPair is an access token plus the single-use refresh token that
// can replace it. ExpiresIn counts seconds of access token validity.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	IssuedAt     time.Time `json:"issued_at"`
}

type LoginResponse struct {
	TokenPair
	User UserInfo `json:"user"`
}

type RefreshTokenResponse = TokenPair

type UserInfo struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	Role     UserRole `json:"role"`
}

// JWTClaims is the access token payload. Subject mirrors UserID.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// Actor returns the identity recorded on audit entries for these claims.
func (c *JWTClaims) Actor() (userID string, role UserRole) {
	if c == nil {
		return "", ""
	}
	return c.UserID, c.Role
}
