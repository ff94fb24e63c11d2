package cache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultRedisPrefix namespaces the hashes written by Redis.
const DefaultRedisPrefix = "mirror:"

// Redis is a Store backed by Redis hashes, so that several proxy replicas can
// share fetched content. Keys are never given a Redis-side expiry.
type Redis struct {
	Client *redis.Client
	Prefix string
	Logger *log.Logger
}

func (r *Redis) key(k string) string {
	p := r.Prefix
	if p == "" {
		p = DefaultRedisPrefix
	}
	return p + k
}

// Get returns the entry stored under key. Redis failures are logged and
// reported as a miss.
func (r *Redis) Get(ctx context.Context, key string) (*Entry, bool) {
	m, err := r.Client.HGetAll(ctx, r.key(key)).Result()
	if err != nil {
		r.logf("WARN: redis lookup for %s failed: %v", key, err)
		return nil, false
	}

	e, err := entryFromMap(m)
	if err != nil {
		if len(m) != 0 {
			r.logf("WARN: ignoring malformed redis entry %s: %v", key, err)
		}
		return nil, false
	}

	return e, true
}

// Put stores entry under key, replacing any previous entry.
func (r *Redis) Put(ctx context.Context, key string, entry *Entry) error {
	k := r.key(key)

	_, err := r.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, k)
		p.HSet(ctx, k, map[string]interface{}{
			"payload":      entry.Payload,
			"content-type": entry.ContentType,
			"stored-at":    strconv.FormatInt(entry.StoredAt.UnixNano(), 10),
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("error storing %s in redis: %w", key, err)
	}

	return nil
}

// Clear removes every key under the store's prefix.
func (r *Redis) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := r.Client.Scan(ctx, cursor, r.key("*"), 100).Result()
		if err != nil {
			return fmt.Errorf("error scanning redis keys: %w", err)
		}

		if len(keys) > 0 {
			if err := r.Client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("error deleting redis keys: %w", err)
			}
		}

		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (r *Redis) logf(format string, v ...interface{}) {
	if r.Logger != nil {
		r.Logger.Printf(format, v...)
		return
	}
	log.Printf(format, v...)
}

func entryFromMap(m map[string]string) (*Entry, error) {
	payload, ok := m["payload"]
	if !ok {
		return nil, errors.New("missing payload")
	}

	storedAt, ok := m["stored-at"]
	if !ok {
		return nil, errors.New("missing timestamp")
	}

	ns, err := strconv.ParseInt(storedAt, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp %q: %w", storedAt, err)
	}

	return &Entry{
		Payload:     []byte(payload),
		ContentType: m["content-type"],
		StoredAt:    time.Unix(0, ns),
	}, nil
}
