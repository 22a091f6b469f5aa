package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/accounthub/auth-service/internal/domain/auth/model"
)

// TokenRepo tracks the currently valid refresh token per session and a
// denylist of revoked access tokens. All mutations are atomic per key.
type TokenRepo interface {
	// Register stores tokens as THE token pair for (userID, sessionKey),
	// replacing whatever was registered for that session before.
	Register(ctx context.Context, userID uuid.UUID, sessionKey string, tokens model.SessionTokens) error

	// IsActive reports whether jti is still the registered refresh token
	// for the session. A superseded or revoked token is not active.
	IsActive(ctx context.Context, userID uuid.UUID, sessionKey, jti string) (bool, error)

	// Revoke drops the session and denylists its outstanding access token
	// for the remainder of that token's lifetime.
	Revoke(ctx context.Context, userID uuid.UUID, sessionKey string) error

	RevokeAll(ctx context.Context, userID uuid.UUID) error

	IsAccessRevoked(ctx context.Context, jti string) (bool, error)
}
