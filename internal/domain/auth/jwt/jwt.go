package jwt

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/accounthub/auth-service/internal/domain/auth/model"
)

// Token type discriminator values carried in the "typ" claim. Every
// Validate* rejects tokens whose type does not match, so a refresh or
// reset token can never stand in for an access token.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
	TypeReset   = "reset"
)

type AccessClaims struct {
	jwt.RegisteredClaims
	TokenType string   `json:"typ"`
	Roles     []string `json:"roles"`
}

type RefreshClaims struct {
	jwt.RegisteredClaims
	TokenType  string `json:"typ"`
	SessionKey string `json:"sid"`
	Platform   string `json:"plt"`
}

// ResetClaims authorizes exactly one follow-up password change after a
// successful reset-secret consumption.
type ResetClaims struct {
	jwt.RegisteredClaims
	TokenType string `json:"typ"`
	Purpose   string `json:"purpose"`
}

type JWTUtil interface {
	GenerateAccessToken(userID uuid.UUID, roles []string) (token string, exp time.Time, jti string, err error)
	GenerateRefreshToken(userID uuid.UUID, sessionKey string, platform model.Platform) (token string, exp time.Time, jti string, err error)
	GenerateResetConfirmation(userID uuid.UUID) (token string, err error)
	ValidateAccessToken(token string) (claims AccessClaims, err error)
	ValidateRefreshToken(token string) (claims RefreshClaims, err error)
	ValidateResetConfirmation(token string) (claims ResetClaims, err error)
}
