// Package notify holds reset-secret dispatch implementations. The log
// notifier is the development default; real deployments swap in a mail
// or SMS sender behind the same interface.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/accounthub/auth-service/internal/domain/auth/repo"
)

type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) repo.Notifier {
	return &LogNotifier{log: log}
}

// SendResetSecret logs the dispatch without the secret itself, so dev
// logs never hold a usable reset credential.
func (n *LogNotifier) SendResetSecret(ctx context.Context, email, secretKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.log.Info("reset secret issued",
		zap.String("email", email),
		zap.Int("secret_len", len(secretKey)),
	)
	return nil
}
