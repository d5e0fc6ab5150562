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
	"fmt"
	"time"
)

// TokenRegistry tracks per-jti status (C4), queried by introspection,
// refresh-token validation, and revocation. A jti with no entry is
// implicitly Active; only transitions to Used or Revoked are persisted,
// each with a TTL equal to the token's remaining lifetime so the registry
// never grows unbounded.
type TokenRegistry struct {
	backend Backend
}

// NewTokenRegistry constructs a TokenRegistry over backend.
func NewTokenRegistry(backend Backend) *TokenRegistry {
	return &TokenRegistry{backend: backend}
}

// MarkUsed records jti as Used until expiresAt.
func (r *TokenRegistry) MarkUsed(ctx context.Context, jti string, expiresAt time.Time) error {
	return r.setStatus(ctx, jti, StatusUsed, expiresAt)
}

// Revoke records jti as Revoked until expiresAt.
func (r *TokenRegistry) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	return r.setStatus(ctx, jti, StatusRevoked, expiresAt)
}

func (r *TokenRegistry) setStatus(ctx context.Context, jti string, status TokenStatus, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	if err := r.backend.Put(ctx, jtiPrefix+jti, []byte{byte(status)}, ttl); err != nil {
		return fmt.Errorf("failed to set status for jti %s: %w", jti, err)
	}
	return nil
}

// Status returns the current status of jti. A jti with no registry entry
// is reported as StatusActive.
func (r *TokenRegistry) Status(ctx context.Context, jti string) (TokenStatus, error) {
	data, ok, err := r.backend.Get(ctx, jtiPrefix+jti)
	if err != nil {
		return StatusActive, fmt.Errorf("failed to read status for jti %s: %w", jti, err)
	}
	if !ok || len(data) == 0 {
		return StatusActive, nil
	}
	return TokenStatus(data[0]), nil
}

// IsActive reports whether jti is neither Used nor Revoked.
func (r *TokenRegistry) IsActive(ctx context.Context, jti string) (bool, error) {
	status, err := r.Status(ctx, jti)
	if err != nil {
		return false, err
	}
	return status == StatusActive, nil
}
