// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
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

package engine

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSchemaCache adapts a *redis.Client to the SchemaCache surface,
// giving cross-query schema/small-dimension caching a concrete backend
// (the same github.com/redis/go-redis/v9 client the teacher already
// depends on for commit-marker persistence in
// internal/ratelimiter/persistence/redis.go, repurposed here from an
// idempotency ledger to a read-through cache).
type RedisSchemaCache struct {
	client *redis.Client
}

// NewRedisSchemaCache wraps client. A nil client is valid and produces a
// cache that always misses, so a host can wire this unconditionally and
// only pay for Redis when a real client is configured.
func NewRedisSchemaCache(client *redis.Client) *RedisSchemaCache {
	return &RedisSchemaCache{client: client}
}

func (c *RedisSchemaCache) Get(ctx context.Context, key string) (string, bool, error) {
	if c == nil || c.client == nil {
		return "", false, nil
	}
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (c *RedisSchemaCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Set(ctx, key, value, ttl).Err()
}
