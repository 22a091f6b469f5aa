package repo

import "context"

// Notifier delivers a reset secret to the account owner. Delivery is
// best-effort: the auth service bounds the call with a timeout and does not
// fail the request when dispatch fails.
type Notifier interface {
	SendResetSecret(ctx context.Context, email, secretKey string) error
}
