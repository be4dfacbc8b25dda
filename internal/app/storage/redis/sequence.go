// Package redis provides a Redis-backed wish sequence for deployments that
// share one counter across several stores.
package redis

import (
	"context"
	"fmt"

	goredis "github.com/go-redis/redis/v8"

	"github.com/wishbank/wishbank/internal/app/storage"
)

// DefaultKey is the key INCR'd for every wish.
const DefaultKey = "wishbank:wish_sequence"

// Client is the subset of the Redis client the sequence needs.
type Client interface {
	Incr(ctx context.Context, key string) *goredis.IntCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *goredis.Cmd
}

// raiseScript sets KEYS[1] to ARGV[1] when the stored counter is missing or
// lower, and returns the resulting counter.
const raiseScript = `
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local floor = tonumber(ARGV[1])
if current < floor then
	redis.call('SET', KEYS[1], floor)
	return floor
end
return current
`

// Sequence draws wish sequence numbers with Redis INCR, which is atomic and
// survives process restarts when Redis persistence is enabled.
type Sequence struct {
	client Client
	key    string
}

var _ storage.SequenceStore = (*Sequence)(nil)

// NewSequence wraps client. An empty key selects DefaultKey.
func NewSequence(client Client, key string) *Sequence {
	if key == "" {
		key = DefaultKey
	}
	return &Sequence{client: client, key: key}
}

// Open parses a redis:// URL and returns a connected client.
func Open(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (s *Sequence) NextSequence(ctx context.Context) (int64, error) {
	n, err := s.client.Incr(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", s.key, err)
	}
	return n, nil
}

// Seed raises the counter to at least floor so the next draw is above every
// number already handed out by another sequence. It never lowers the counter
// and returns the value in effect afterwards.
func (s *Sequence) Seed(ctx context.Context, floor int64) (int64, error) {
	if floor < 0 {
		floor = 0
	}
	n, err := s.client.Eval(ctx, raiseScript, []string{s.key}, floor).Int64()
	if err != nil {
		return 0, fmt.Errorf("seed %s: %w", s.key, err)
	}
	return n, nil
}
