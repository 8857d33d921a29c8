package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"parley/client/internal/logger"
)

const (
	listPrefix    = "rt:"
	channelPrefix = "rt:notify:"
)

// RedisStore implements Store on Redis: records live in a list per path,
// and a pub/sub message per append tells subscribers to re-read the list.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Append marshals record, pushes it under path with a store-assigned key,
// and notifies subscribers.
func (s *RedisStore) Append(ctx context.Context, path string, record any) (string, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return "", storeError("append", path, err)
	}

	entry := Entry{Key: uuid.NewString(), Record: raw}
	envelope, err := json.Marshal(entry)
	if err != nil {
		return "", storeError("append", path, err)
	}

	if err := s.client.RPush(ctx, listPrefix+path, envelope).Err(); err != nil {
		return "", storeError("append", path, err)
	}
	if err := s.client.Publish(ctx, channelPrefix+path, entry.Key).Err(); err != nil {
		return "", storeError("append", path, err)
	}
	return entry.Key, nil
}

// Subscribe delivers the current snapshot, then the full snapshot after
// every append to path, until the subscription is canceled.
func (s *RedisStore) Subscribe(ctx context.Context, path string, fn func(Snapshot)) (Subscription, error) {
	pubsub := s.client.Subscribe(ctx, channelPrefix+path)

	// Confirm the subscription is live before reading the initial
	// snapshot, so no append slips between the two.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, storeError("subscribe", path, err)
	}

	sub := &redisSubscription{pubsub: pubsub, done: make(chan struct{})}
	notifications := pubsub.Channel()

	go func() {
		if snap, err := s.snapshot(ctx, path); err != nil {
			logger.Log.Warn("initial snapshot", zap.String("path", path), zap.Error(err))
		} else {
			fn(snap)
		}

		for {
			select {
			case <-sub.done:
				return
			case _, ok := <-notifications:
				if !ok {
					return
				}
				snap, err := s.snapshot(ctx, path)
				if err != nil {
					logger.Log.Warn("snapshot after notify", zap.String("path", path), zap.Error(err))
					continue
				}
				select {
				case <-sub.done:
					return
				default:
				}
				fn(snap)
			}
		}
	}()

	return sub, nil
}

func (s *RedisStore) snapshot(ctx context.Context, path string) (Snapshot, error) {
	raw, err := s.client.LRange(ctx, listPrefix+path, 0, -1).Result()
	if err != nil {
		return nil, storeError("snapshot", path, err)
	}

	snap := make(Snapshot, 0, len(raw))
	for _, item := range raw {
		var entry Entry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			logger.Log.Warn("skip malformed entry", zap.String("path", path), zap.Error(err))
			continue
		}
		snap = append(snap, entry)
	}
	return snap, nil
}

type redisSubscription struct {
	pubsub *redis.PubSub
	done   chan struct{}
	once   sync.Once
}

func (s *redisSubscription) Cancel() {
	s.once.Do(func() {
		close(s.done)
		_ = s.pubsub.Close()
	})
}
