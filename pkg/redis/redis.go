// Package redis wraps go-redis behind the small key/value surface the
// application needs, with an optional key prefix shared by all callers.
package redis

import (
	"context"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

var NilError = goredis.Nil

type Options = goredis.UniversalOptions

type Adapter interface {
	Set(key string, value []byte, ttl time.Duration) error
	SetNX(key string, value []byte, ttl time.Duration) (bool, error)
	Get(key string) ([]byte, error)
	Del(key string) error
	Exist(key string) (int64, error)
	Client() goredis.UniversalClient
}

type adapter struct {
	prefix string
	conn   goredis.UniversalClient
}

var (
	instancesMu sync.RWMutex
	instances   map[string]Adapter
)

// NewAdapter connects (or returns the cached connection for connName)
// and pings the server once to fail fast on bad config.
func NewAdapter(connName, keyPrefix string, opts *Options) (Adapter, error) {
	instancesMu.RLock()
	if a, ok := instances[connName]; ok {
		instancesMu.RUnlock()
		return a, nil
	}
	instancesMu.RUnlock()

	c := goredis.NewUniversalClient(opts)
	if cmd := c.Ping(context.Background()); cmd.Err() != nil {
		return nil, cmd.Err()
	}

	a := &adapter{conn: c, prefix: keyPrefix}

	instancesMu.Lock()
	if instances == nil {
		instances = make(map[string]Adapter)
	}
	if existing, ok := instances[connName]; ok {
		instancesMu.Unlock()
		_ = c.Close()
		return existing, nil
	}
	instances[connName] = a
	instancesMu.Unlock()

	return a, nil
}

func (r *adapter) Set(key string, value []byte, ttl time.Duration) error {
	return r.conn.Set(context.Background(), r.prefix+key, value, ttl).Err()
}

func (r *adapter) SetNX(key string, value []byte, ttl time.Duration) (bool, error) {
	cmd := r.conn.SetNX(context.Background(), r.prefix+key, value, ttl)
	if err := cmd.Err(); err != nil {
		return false, err
	}
	return cmd.Val(), nil
}

func (r *adapter) Get(key string) ([]byte, error) {
	cmd := r.conn.Get(context.Background(), r.prefix+key)
	if err := cmd.Err(); err != nil {
		return nil, err
	}
	return cmd.Bytes()
}

func (r *adapter) Del(key string) error {
	return r.conn.Del(context.Background(), r.prefix+key).Err()
}

func (r *adapter) Exist(key string) (int64, error) {
	cmd := r.conn.Exists(context.Background(), r.prefix+key)
	if err := cmd.Err(); err != nil {
		return 0, err
	}
	return cmd.Val(), nil
}

func (r *adapter) Client() goredis.UniversalClient {
	return r.conn
}
