package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/motheroflaunch/backend/internal/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrMiss is returned by reads of keys that do not exist
var ErrMiss = redis.Nil

// RedisClient wraps the redis.Client with the operations the API uses for
// counters, leaderboards and locks
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient creates and pings a Redis client with connection pooling
func NewRedisClient(host string, port string, password string) (*RedisClient, error) {
	if host == "" {
		host = "localhost"
	}
	if port == "" {
		port = "6379"
	}

	addr := fmt.Sprintf("%s:%s", host, port)

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		MaxRetries:   3,
		PoolSize:     10,
		MinIdleConns: 5,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.ErrorWithFields("Failed to connect to Redis", err)
		return nil, err
	}

	logger.Log.Info("Redis client connected", zap.String("address", addr))

	return &RedisClient{client: client}, nil
}

// Wrap adapts an existing go-redis client
func Wrap(client *redis.Client) *RedisClient {
	return &RedisClient{client: client}
}

// Close closes the Redis connection gracefully
func (rc *RedisClient) Close() error {
	if rc == nil || rc.client == nil {
		return nil
	}
	return rc.client.Close()
}

// Ping tests the Redis connection
func (rc *RedisClient) Ping(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

// Get retrieves a value from Redis
func (rc *RedisClient) Get(ctx context.Context, key string) (string, error) {
	return rc.client.Get(ctx, key).Result()
}

// SetEx stores a value in Redis with expiration
func (rc *RedisClient) SetEx(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return rc.client.Set(ctx, key, value, ttl).Err()
}

// Del deletes one or more keys from Redis
func (rc *RedisClient) Del(ctx context.Context, keys ...string) error {
	return rc.client.Del(ctx, keys...).Err()
}

// IncrBy increments a key by a value
func (rc *RedisClient) IncrBy(ctx context.Context, key string, increment int64) (int64, error) {
	return rc.client.IncrBy(ctx, key, increment).Result()
}

// IncrWithin increments a fixed-window counter, setting the expiry on the
// first hit of the window. It returns the new count.
func (rc *RedisClient) IncrWithin(ctx context.Context, key string, window time.Duration) (int64, error) {
	n, err := rc.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if err := rc.client.Expire(ctx, key, window).Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}

// TTL returns the time-to-live for a key
func (rc *RedisClient) TTL(ctx context.Context, key string) (time.Duration, error) {
	return rc.client.TTL(ctx, key).Result()
}

// GetDelInt atomically reads and removes an integer counter. Missing keys
// read as zero.
func (rc *RedisClient) GetDelInt(ctx context.Context, key string) (int64, error) {
	n, err := rc.client.GetDel(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// Scan returns every key matching pattern. SCAN is used instead of KEYS so
// large keyspaces do not block the server.
func (rc *RedisClient) Scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := rc.client.Scan(ctx, 0, pattern, 200).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	return keys, iter.Err()
}

// ZIncrBy increments a member's score in a sorted set
func (rc *RedisClient) ZIncrBy(ctx context.Context, key string, increment float64, member string) (float64, error) {
	return rc.client.ZIncrBy(ctx, key, increment, member).Result()
}

// ZReplace overwrites a sorted set with the given scores and sets its TTL
func (rc *RedisClient) ZReplace(ctx context.Context, key string, scores map[string]float64, ttl time.Duration) error {
	pipe := rc.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(scores) > 0 {
		members := make([]redis.Z, 0, len(scores))
		for member, score := range scores {
			members = append(members, redis.Z{Score: score, Member: member})
		}
		pipe.ZAdd(ctx, key, members...)
		pipe.Expire(ctx, key, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// ZTop returns members ordered by score descending
func (rc *RedisClient) ZTop(ctx context.Context, key string, limit int64) ([]redis.Z, error) {
	return rc.client.ZRevRangeWithScores(ctx, key, 0, limit-1).Result()
}

// Exists reports whether key exists
func (rc *RedisClient) Exists(ctx context.Context, key string) (bool, error) {
	n, err := rc.client.Exists(ctx, key).Result()
	return n > 0, err
}

// Raw exposes the underlying client for scripts
func (rc *RedisClient) Raw() *redis.Client {
	return rc.client
}
