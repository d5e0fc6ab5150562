// Copyright 2026 The Go OIDC Provider Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oidcprovider/pkg/oidcprovider/logging"
)

// RedisBackend is a Backend implementation suitable for multi-instance
// deployments: every stateful entity (codes, jti statuses, PAR entries,
// CIBA records) is visible to every process sharing the same Redis
// instance. It also exposes Redis pub/sub through Publish and Subscribe;
// the CIBA coordinator (C13) does not use them, and its long-poll waiters
// are signalled only within the process that made the transition.
type RedisBackend struct {
	client redis.UniversalClient
}

// NewRedisBackend wraps an existing Redis client. The caller owns the
// client's lifecycle except that Close on the returned backend also closes
// the client.
func NewRedisBackend(client redis.UniversalClient) *RedisBackend {
	return &RedisBackend{client: client}
}

// Put implements Backend.
func (r *RedisBackend) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		logging.Errorw("redis SET failed", "key", key, "error", err)
		return fmt.Errorf("redis SET %s: %w", key, err)
	}
	return nil
}

// Get implements Backend.
func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		logging.Errorw("redis GET failed", "key", key, "error", err)
		return nil, false, fmt.Errorf("redis GET %s: %w", key, err)
	}
	return val, true, nil
}

// Delete implements Backend.
func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		logging.Errorw("redis DEL failed", "key", key, "error", err)
		return fmt.Errorf("redis DEL %s: %w", key, err)
	}
	return nil
}

// GetAndDelete implements Backend using GETDEL, which Redis executes
// atomically server-side so two concurrent callers can never both observe
// the value.
func (r *RedisBackend) GetAndDelete(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.GetDel(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		logging.Errorw("redis GETDEL failed", "key", key, "error", err)
		return nil, false, fmt.Errorf("redis GETDEL %s: %w", key, err)
	}
	return val, true, nil
}

// Close closes the underlying Redis client.
func (r *RedisBackend) Close() error {
	return r.client.Close()
}

// Publish publishes payload on channel. Nothing in this module calls it.
func (r *RedisBackend) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := r.client.Publish(ctx, channel, payload).Err(); err != nil {
		logging.Errorw("redis PUBLISH failed", "channel", channel, "error", err)
		return fmt.Errorf("redis PUBLISH %s: %w", channel, err)
	}
	return nil
}

// Subscribe returns a Redis subscription to channel. The caller must close
// the returned *redis.PubSub when done.
func (r *RedisBackend) Subscribe(ctx context.Context, channel string) *redis.PubSub {
	return r.client.Subscribe(ctx, channel)
}
