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

// Package storage implements the entity storage abstraction (C3), the
// token registry (C4), the PAR store (C6) and the authorization-code
// service (C7). Every stateful component in the provider is built on top
// of the single Backend interface so an operator can swap the in-memory
// backend for the Redis one without touching call sites.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by the stores built on Backend (CodeService,
// PARStore, CIBAStore, RefreshGrantStore) when no value is stored under
// the given key (or it has already expired). Backend implementations
// report a missing key through the boolean result of Get/GetAndDelete.
var ErrNotFound = errors.New("storage: key not found")

// Backend is the put/get/remove-with-TTL abstraction (C3) every stateful
// store in the package is built on. Implementations MUST make Delete
// idempotent (deleting a missing key is not an error) and GetAndDelete
// atomic, since the code service's single-use guarantee depends on it: two
// concurrent GetAndDelete calls for the same key must not both succeed.
type Backend interface {
	// Put stores value under key with the given TTL. A zero TTL means no
	// expiration.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Get returns the value stored under key. The second return value is
	// false if the key does not exist or has expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Delete removes key. It does not report whether the key existed.
	Delete(ctx context.Context, key string) error
	// GetAndDelete atomically reads and removes the value under key.
	GetAndDelete(ctx context.Context, key string) ([]byte, bool, error)
	// Close releases any resources held by the backend.
	Close() error
}

// Key prefixes for the persisted state layout (spec external-interfaces
// section): every entity the core writes is namespaced by one of these.
const (
	codePrefix    = "code:"
	jtiPrefix     = "jti:"
	parPrefix     = "par:"
	cibaPrefix    = "ciba:"
	clientPrefix  = "client:"
	refreshPrefix = "refresh:"
)

// TokenStatus is the value of a token-registry entry (C4). The zero value,
// Active, is never persisted explicitly: a jti with no registry entry is
// implicitly Active, so only transitions to Used or Revoked are stored.
type TokenStatus int

// Token registry statuses.
const (
	StatusActive TokenStatus = iota
	StatusUsed
	StatusRevoked
)

// String renders the status for logging.
func (s TokenStatus) String() string {
	switch s {
	case StatusUsed:
		return "used"
	case StatusRevoked:
		return "revoked"
	default:
		return "active"
	}
}
