package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RequestGuard rejects a second request for the same key while the first is
// still being forwarded.
type RequestGuard interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard implements RequestGuard with SET NX locks.
type RedisGuard struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisGuard(client redis.UniversalClient) *RedisGuard {
	return &RedisGuard{client: client, prefix: "scriptslap:guard:"}
}

func (g *RedisGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	redisKey := g.prefix + key
	ok, err := g.client.SetNX(ctx, redisKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire request guard: %w", err)
	}
	if !ok {
		return nil, ErrRequestInFlight
	}
	return func() {
		_ = releaseScript.Run(context.Background(), g.client, []string{redisKey}, token).Err()
	}, nil
}
