package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	customErrors "github.com/accounthub/auth-service/internal/domain/auth/errors"
)

func TestRedisSecretRepo_IssueConsume(t *testing.T) {
	repo := NewRedisSecretRepo(newClient(t))
	ctx := context.Background()
	uid := uuid.New()

	secret, err := repo.Issue(ctx, uid, 15*time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if secret == "" {
		t.Fatal("empty secret")
	}

	got, err := repo.Consume(ctx, secret)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if got != uid {
		t.Fatalf("want %s got %s", uid, got)
	}
}

func TestRedisSecretRepo_ConsumeTwice(t *testing.T) {
	repo := NewRedisSecretRepo(newClient(t))
	ctx := context.Background()

	secret, err := repo.Issue(ctx, uuid.New(), 15*time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := repo.Consume(ctx, secret); err != nil {
		t.Fatalf("first Consume: %v", err)
	}
	if _, err := repo.Consume(ctx, secret); !customErrors.IsSecretAlreadyUsed(err) {
		t.Fatalf("want already used, got %v", err)
	}
}

func TestRedisSecretRepo_ConsumeUnknown(t *testing.T) {
	repo := NewRedisSecretRepo(newClient(t))

	_, err := repo.Consume(context.Background(), "no-such-secret")
	if !customErrors.IsSecretInvalid(err) {
		t.Fatalf("want invalid secret, got %v", err)
	}
}

func TestRedisSecretRepo_ConsumeExpired(t *testing.T) {
	repo := NewRedisSecretRepo(newClient(t))
	ctx := context.Background()

	secret, err := repo.Issue(ctx, uuid.New(), -time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := repo.Consume(ctx, secret); !customErrors.IsSecretExpired(err) {
		t.Fatalf("want expired secret, got %v", err)
	}

	// a failed expired consume leaves the store unchanged: retrying keeps
	// reporting expiry, never "already used"
	if _, err := repo.Consume(ctx, secret); !customErrors.IsSecretExpired(err) {
		t.Fatalf("want expired secret on retry, got %v", err)
	}
}

func TestRedisSecretRepo_ConcurrentConsume(t *testing.T) {
	repo := NewRedisSecretRepo(newClient(t))
	ctx := context.Background()

	secret, err := repo.Issue(ctx, uuid.New(), 15*time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	const n = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		used      int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Consume(ctx, secret)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case customErrors.IsSecretAlreadyUsed(err):
				used++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("want exactly 1 success, got %d", successes)
	}
	if used != n-1 {
		t.Fatalf("want %d already-used, got %d", n-1, used)
	}
}
