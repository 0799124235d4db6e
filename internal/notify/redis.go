package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisVersionKey = "booking:channel:version"
	redisSlotKey    = "booking:channel:current"
)

// publishScript bumps the version counter and rewrites the slot in one
// atomic step, so racing publishers can never leave the slot holding a
// payload older than the stored version.
var publishScript = redis.NewScript(`
local v = redis.call('INCR', KEYS[1])
redis.call('HSET', KEYS[2], 'version', v, 'payload', ARGV[1], 'producer', ARGV[2], 'published_at', ARGV[3])
return v
`)

// RedisChannel is a channel backend shared by multiple service instances.
type RedisChannel struct {
	client *redis.Client
}

// NewRedisChannel wraps an initialized Redis client.
func NewRedisChannel(client *redis.Client) *RedisChannel {
	return &RedisChannel{client: client}
}

// Publish bumps the version and rewrites the slot atomically.
func (c *RedisChannel) Publish(ctx context.Context, payload json.RawMessage, producerTag string) (int64, error) {
	result, err := publishScript.Run(ctx, c.client,
		[]string{redisVersionKey, redisSlotKey},
		string(payload), producerTag, time.Now().UTC().Format(time.RFC3339Nano)).Result()
	if err != nil {
		return 0, fmt.Errorf("notify: redis publish: %w", err)
	}

	version, ok := result.(int64)
	if !ok {
		return 0, fmt.Errorf("notify: redis publish returned %T, want int64", result)
	}
	return version, nil
}

// Poll reads the slot and returns it when newer than sinceVersion.
func (c *RedisChannel) Poll(ctx context.Context, sinceVersion int64) (*Message, error) {
	fields, err := c.client.HGetAll(ctx, redisSlotKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("notify: redis poll: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	version, err := strconv.ParseInt(fields["version"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("notify: redis poll: bad version %q: %w", fields["version"], err)
	}
	if version <= sinceVersion {
		return nil, nil
	}

	msg := &Message{
		Version:     version,
		Payload:     json.RawMessage(fields["payload"]),
		ProducerTag: fields["producer"],
	}
	if raw := fields["published_at"]; raw != "" {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			msg.PublishedAt = ts
		}
	}
	return msg, nil
}
