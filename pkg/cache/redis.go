package cache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/hed1ad/fraudscope/pkg/txn"
)

// DefaultPrefix namespaces sample keys in a shared Redis.
const DefaultPrefix = "fraudscope:sample:"

// RedisStore keeps gob-encoded tables in Redis with a TTL.
type RedisStore struct {
	client redis.Cmdable
	ttl    time.Duration
	prefix string
}

// NewRedisStore creates a store over an existing client.
func NewRedisStore(client redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
		prefix: DefaultPrefix,
	}
}

// DialRedis connects to addr and verifies the connection.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "failed to connect to redis")
	}
	return client, nil
}

func (r *RedisStore) key(k Key) string {
	return r.prefix + k.String()
}

// Get implements Store.
func (r *RedisStore) Get(ctx context.Context, key Key) (*txn.Table, bool, error) {
	b, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "redis get")
	}

	table, err := decode(b)
	if err != nil {
		return nil, false, err
	}
	return table, true, nil
}

// Set implements Store.
func (r *RedisStore) Set(ctx context.Context, key Key, table *txn.Table) error {
	b, err := encode(table)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key(key), b, r.ttl).Err(); err != nil {
		return errors.Wrap(err, "redis set")
	}
	return nil
}
