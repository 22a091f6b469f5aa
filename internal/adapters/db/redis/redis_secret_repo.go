package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	customErrors "github.com/accounthub/auth-service/internal/domain/auth/errors"
)

const (
	secretPrefix = "reset:"
	usedPrefix   = "resetused:"

	// expired secrets stay around this long past their TTL so a late
	// consume reports "expired" instead of "invalid"
	expiryGrace = time.Hour

	usedMarkerTTL = 24 * time.Hour
)

// consumeScript claims the secret and plants the used marker in one atomic
// step, so of N concurrent consumers exactly one gets the value and the rest
// see the marker. An expired secret is left untouched, so retrying keeps
// reporting expiry instead of flipping to "already used".
var consumeScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if v then
  local sep = string.find(v, '|', 1, true)
  local exp = tonumber(string.sub(v, sep + 1))
  if exp and exp < tonumber(ARGV[2]) then
    return 'EXPIRED'
  end
  redis.call('DEL', KEYS[1])
  redis.call('SET', KEYS[2], '1', 'EX', ARGV[1])
  return v
end
if redis.call('EXISTS', KEYS[2]) == 1 then
  return 'USED'
end
return false
`)

type RedisSecretRepo struct {
	client *redis.Client
}

func NewRedisSecretRepo(client *redis.Client) *RedisSecretRepo {
	return &RedisSecretRepo{
		client: client,
	}
}

func (r *RedisSecretRepo) Issue(ctx context.Context, userID uuid.UUID, ttl time.Duration) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", customErrors.WrapInternal(err, "generate reset secret")
	}
	secret := hex.EncodeToString(raw)

	expiresAt := time.Now().Add(ttl)
	val := userID.String() + "|" + strconv.FormatInt(expiresAt.Unix(), 10)

	ok, err := r.client.SetNX(ctx, secretPrefix+secret, val, ttl+expiryGrace).Result()
	if err != nil {
		return "", customErrors.WrapInternal(err, "store reset secret")
	}
	if !ok {
		return "", customErrors.WrapInternal(redis.TxFailedErr, "reset secret collision")
	}
	return secret, nil
}

func (r *RedisSecretRepo) Consume(ctx context.Context, secretKey string) (uuid.UUID, error) {
	res, err := consumeScript.Run(ctx, r.client,
		[]string{secretPrefix + secretKey, usedPrefix + secretKey},
		int(usedMarkerTTL.Seconds()),
		time.Now().Unix(),
	).Result()
	switch {
	case err == redis.Nil:
		return uuid.Nil, customErrors.ErrSecretInvalid
	case err != nil:
		return uuid.Nil, customErrors.WrapInternal(err, "consume reset secret")
	}

	val, ok := res.(string)
	if !ok {
		return uuid.Nil, customErrors.ErrSecretInvalid
	}
	switch val {
	case "USED":
		return uuid.Nil, customErrors.ErrSecretAlreadyUsed
	case "EXPIRED":
		return uuid.Nil, customErrors.ErrSecretExpired
	}

	userPart, _, ok := strings.Cut(val, "|")
	if !ok {
		return uuid.Nil, customErrors.ErrSecretInvalid
	}

	userID, err := uuid.Parse(userPart)
	if err != nil {
		return uuid.Nil, customErrors.ErrSecretInvalid
	}
	return userID, nil
}
