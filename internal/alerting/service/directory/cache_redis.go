package directory

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/qiniu/alertdash/internal/config"
)

// NewRedisClientFromConfig returns nil when no address is configured.
func NewRedisClientFromConfig(c *config.RedisConfig) *redis.Client {
	if c == nil || c.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
	})
}

// presenceMember marks a cached set that exists but has no names.
const presenceMember = ""

var addIfCached = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  redis.call('SADD', KEYS[1], ARGV[1])
  return 1
end
return 0
`)

// KEYS[1] name set, KEYS[2] remaining scan window rows
var addSampleIfRoom = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
local room = tonumber(redis.call('GET', KEYS[2]) or '0')
if room <= 0 then
  return 0
end
redis.call('DECR', KEYS[2])
redis.call('SADD', KEYS[1], ARGV[1])
return 1
`)

// RedisCache keeps each user's names in a set that expires after ttl.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func cacheKey(userID string) string { return "alertdash:metric_names:" + userID }

func roomKey(userID string) string { return "alertdash:metric_names:" + userID + ":room" }

func (c *RedisCache) Get(ctx context.Context, userID string) ([]string, bool, error) {
	members, err := c.rdb.SMembers(ctx, cacheKey(userID)).Result()
	if err != nil {
		return nil, false, err
	}
	if len(members) == 0 {
		return nil, false, nil
	}
	names := make([]string, 0, len(members))
	for _, m := range members {
		if m != presenceMember {
			names = append(names, m)
		}
	}
	return names, true, nil
}

func (c *RedisCache) Set(ctx context.Context, userID string, names []string, room int) error {
	key, rkey := cacheKey(userID), roomKey(userID)
	members := make([]any, 0, len(names)+1)
	members = append(members, presenceMember)
	for _, n := range names {
		members = append(members, n)
	}
	_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		p.SAdd(ctx, key, members...)
		p.Expire(ctx, key, c.ttl)
		p.Set(ctx, rkey, room, c.ttl)
		return nil
	})
	return err
}

func (c *RedisCache) Add(ctx context.Context, userID, name string) error {
	return addIfCached.Run(ctx, c.rdb, []string{cacheKey(userID)}, name).Err()
}

func (c *RedisCache) AddSample(ctx context.Context, userID, name string) error {
	return addSampleIfRoom.Run(ctx, c.rdb, []string{cacheKey(userID), roomKey(userID)}, name).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, userID string) error {
	return c.rdb.Del(ctx, cacheKey(userID), roomKey(userID)).Err()
}
