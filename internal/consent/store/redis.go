package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"parishnet/internal/consent/models"
)

const consentKeyPrefix = "consent:"

// swapScript writes the new flags and returns the previous ones in a single
// round trip, so concurrent writers never observe a torn read-modify-write.
var swapScript = redis.NewScript(`
local prev = redis.call('HMGET', KEYS[1], 'community', 'region', 'global')
redis.call('HSET', KEYS[1], 'community', ARGV[1], 'region', ARGV[2], 'global', ARGV[3])
return prev
`)

// Redis stores one hash per individual under consent:<key>.
type Redis struct {
	client *redis.Client
}

// NewRedis constructs a Redis-backed consent registry. The client lifecycle is
// managed by the caller.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (s *Redis) Get(ctx context.Context, individualKey string) (models.Flags, error) {
	vals, err := s.client.HMGet(ctx, consentKeyPrefix+individualKey, "community", "region", "global").Result()
	if err != nil {
		return models.None, fmt.Errorf("get consent: %w", err)
	}
	return decodeFlags(vals), nil
}

func (s *Redis) GetMany(ctx context.Context, individualKeys []string) (map[string]models.Flags, error) {
	out := make(map[string]models.Flags, len(individualKeys))
	if len(individualKeys) == 0 {
		return out, nil
	}
	pipe := s.client.Pipeline()
	cmds := make([]*redis.SliceCmd, len(individualKeys))
	for i, key := range individualKeys {
		cmds[i] = pipe.HMGet(ctx, consentKeyPrefix+key, "community", "region", "global")
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("get consents: %w", err)
	}
	for i, key := range individualKeys {
		out[key] = decodeFlags(cmds[i].Val())
	}
	return out, nil
}

// Set overwrites the flags and returns the previous value.
func (s *Redis) Set(ctx context.Context, individualKey string, flags models.Flags) (models.Flags, error) {
	res, err := swapScript.Run(ctx, s.client,
		[]string{consentKeyPrefix + individualKey},
		encodeFlag(flags.ShareToCommunity),
		encodeFlag(flags.ShareToRegion),
		encodeFlag(flags.ShareToGlobal),
	).Slice()
	if err != nil {
		return models.None, fmt.Errorf("set consent: %w", err)
	}
	return decodeFlags(res), nil
}

func (s *Redis) Delete(ctx context.Context, individualKey string) error {
	if err := s.client.Del(ctx, consentKeyPrefix+individualKey).Err(); err != nil {
		return fmt.Errorf("delete consent: %w", err)
	}
	return nil
}

func encodeFlag(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

// decodeFlags reads HMGET results; missing hashes and fields decode to false.
func decodeFlags(vals []any) models.Flags {
	flag := func(i int) bool {
		if i >= len(vals) {
			return false
		}
		s, ok := vals[i].(string)
		return ok && s == "1"
	}
	return models.Flags{
		ShareToCommunity: flag(0),
		ShareToRegion:    flag(1),
		ShareToGlobal:    flag(2),
	}
}
