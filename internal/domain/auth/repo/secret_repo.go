package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SecretRepo issues and consumes one-time password-reset secrets.
type SecretRepo interface {
	Issue(ctx context.Context, userID uuid.UUID, ttl time.Duration) (secretKey string, err error)

	// Consume redeems the secret for the owning user id. Exactly one
	// concurrent caller succeeds for a given key; later calls get
	// ErrSecretAlreadyUsed, expired keys get ErrSecretExpired and unknown
	// keys get ErrSecretInvalid.
	Consume(ctx context.Context, secretKey string) (uuid.UUID, error)
}
