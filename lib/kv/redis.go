/*
Copyright 2025 TritonDataCenter, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package kv

import (
	"context"
	"errors"
	"time"

	"github.com/gravitational/trace"
	"github.com/redis/go-redis/v9"

	"github.com/TritonDataCenter/mahi-sub003/lib/defaults"
)

// Config configures the redis-backed store client.
type Config struct {
	// Addr is the host:port of the redis server.
	Addr string
	// Username and Password authenticate the connection when set.
	Username string
	Password string
	// DB selects the redis logical database.
	DB int
	// DialTimeout bounds connection establishment.
	DialTimeout time.Duration
}

// CheckAndSetDefaults checks and sets default values.
func (c *Config) CheckAndSetDefaults() error {
	if c.Addr == "" {
		c.Addr = defaults.RedisAddr
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = defaults.RedisDialTimeout
	}
	return nil
}

// Client is a redis-backed Store.
type Client struct {
	rdb redis.UniversalClient
}

// New connects to redis and returns a Client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Username:    cfg.Username,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, trace.ConnectionProblem(err, "failed to connect to redis at %v", cfg.Addr)
	}
	log.InfoContext(ctx, "Connected to redis", "addr", cfg.Addr, "db", cfg.DB)
	return &Client{rdb: rdb}, nil
}

// NewFromRedis wraps an existing redis client. Tests use it to run
// against miniredis.
func NewFromRedis(rdb redis.UniversalClient) *Client {
	return &Client{rdb: rdb}
}

// Close closes the underlying connection pool.
func (c *Client) Close() error {
	return trace.Wrap(c.rdb.Close())
}

// Get returns the value at key or trace.NotFound.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, trace.NotFound("key %q is not found", key)
		}
		return nil, trace.ConnectionProblem(err, "failed to get %q", key)
	}
	return value, nil
}

// Put sets key to value.
func (c *Client) Put(ctx context.Context, key string, value []byte) error {
	if err := c.rdb.Set(ctx, key, value, 0).Err(); err != nil {
		return trace.ConnectionProblem(err, "failed to set %q", key)
	}
	return nil
}

// SMembers returns the members of the native set at key.
func (c *Client) SMembers(ctx context.Context, key string) ([]string, error) {
	members, err := c.rdb.SMembers(ctx, key).Result()
	if err != nil {
		return nil, trace.ConnectionProblem(err, "failed to read set %q", key)
	}
	return members, nil
}

// Tx begins an atomic write transaction over a redis MULTI/EXEC
// pipeline. Commands are buffered client-side until Commit.
func (c *Client) Tx() Tx {
	return &redisTx{pipe: c.rdb.TxPipeline()}
}

type redisTx struct {
	pipe redis.Pipeliner
}

func (t *redisTx) Set(key string, value []byte) {
	t.pipe.Set(context.Background(), key, value, 0)
}

func (t *redisTx) Del(key string) {
	t.pipe.Del(context.Background(), key)
}

func (t *redisTx) SAdd(key, member string) {
	t.pipe.SAdd(context.Background(), key, member)
}

func (t *redisTx) SRem(key, member string) {
	t.pipe.SRem(context.Background(), key, member)
}

func (t *redisTx) Len() int {
	return t.pipe.Len()
}

func (t *redisTx) Commit(ctx context.Context) error {
	if t.pipe.Len() == 0 {
		return nil
	}
	if _, err := t.pipe.Exec(ctx); err != nil {
		return trace.ConnectionProblem(err, "failed to commit transaction")
	}
	return nil
}
