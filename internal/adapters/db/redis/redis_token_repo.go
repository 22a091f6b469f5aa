package redis

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/accounthub/auth-service/internal/domain/auth/model"
)

const denyPrefix = "a:"

type RedisTokenRepo struct {
	client *redis.Client
}

func NewRedisTokenRepo(client *redis.Client) *RedisTokenRepo {
	return &RedisTokenRepo{
		client: client,
	}
}

func sessionRedisKey(userID uuid.UUID, sessionKey string) string {
	return "session:" + userID.String() + ":" + sessionKey
}

// sessionValue packs the record as refreshJTI|accessJTI|accessExpUnix.
func sessionValue(t model.SessionTokens) string {
	return t.RefreshJTI + "|" + t.AccessJTI + "|" + strconv.FormatInt(t.AccessExpiresAt.Unix(), 10)
}

func parseSessionValue(val string) (refreshJTI, accessJTI string, accessExp time.Time) {
	parts := strings.SplitN(val, "|", 3)
	refreshJTI = parts[0]
	if len(parts) == 3 {
		accessJTI = parts[1]
		if unix, err := strconv.ParseInt(parts[2], 10, 64); err == nil {
			accessExp = time.Unix(unix, 0)
		}
	}
	return refreshJTI, accessJTI, accessExp
}

// Register overwrites any previous record for the same session, so a fresh
// login on the same device invalidates the tokens it replaces.
func (r *RedisTokenRepo) Register(ctx context.Context, userID uuid.UUID, sessionKey string, tokens model.SessionTokens) error {
	return r.client.Set(ctx,
		sessionRedisKey(userID, sessionKey),
		sessionValue(tokens),
		safeTTL(tokens.RefreshExpiresAt),
	).Err()
}

func (r *RedisTokenRepo) IsActive(ctx context.Context, userID uuid.UUID, sessionKey, jti string) (bool, error) {
	val, err := r.client.Get(ctx, sessionRedisKey(userID, sessionKey)).Result()
	switch {
	case err == redis.Nil:
		return false, nil // no session entry, logged out or expired
	case err != nil:
		return false, err
	}
	refreshJTI, _, _ := parseSessionValue(val)
	return refreshJTI == jti, nil // superseded tokens fail the compare
}

func (r *RedisTokenRepo) Revoke(ctx context.Context, userID uuid.UUID, sessionKey string) error {
	key := sessionRedisKey(userID, sessionKey)
	val, err := r.client.Get(ctx, key).Result()
	switch {
	case err == redis.Nil:
		return nil // already gone, nothing to denylist
	case err != nil:
		return err
	}
	if err := r.denylistAccess(ctx, val); err != nil {
		return err
	}
	return r.client.Del(ctx, key).Err()
}

func (r *RedisTokenRepo) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	var keys []string
	iter := r.client.Scan(ctx, 0, "session:"+userID.String()+":*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	for _, key := range keys {
		val, err := r.client.Get(ctx, key).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return err
		}
		if err := r.denylistAccess(ctx, val); err != nil {
			return err
		}
	}
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

func (r *RedisTokenRepo) IsAccessRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.client.Exists(ctx, denyPrefix+jti).Result()
	return n > 0, err
}

// denylistAccess marks the session's access token revoked until it would
// have expired anyway.
func (r *RedisTokenRepo) denylistAccess(ctx context.Context, sessionVal string) error {
	_, accessJTI, accessExp := parseSessionValue(sessionVal)
	if accessJTI == "" {
		return nil
	}
	return r.client.Set(ctx, denyPrefix+accessJTI, 1, safeTTL(accessExp)).Err()
}

func safeTTL(exp time.Time) time.Duration {
	ttl := time.Until(exp)
	if ttl <= 0 {
		// minimal TTL so the key still disappears
		return time.Hour
	}
	return ttl
}
