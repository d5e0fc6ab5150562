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
	"encoding/json"
	"fmt"
	"time"
)

// RefreshGrantStore persists the AuthorizedGrant a refresh token's `jti`
// was issued against, so the refresh_token grant handler can recover the
// original session/scope/resource context without re-deriving it from the
// JWT claims alone. Unlike CodeService, lookup is non-consuming: whether a
// refresh token rotates or is reused is a client policy decision made
// after the lookup, not a replay-prevention requirement on the read
// itself.
type RefreshGrantStore struct {
	backend Backend
}

// NewRefreshGrantStore constructs a RefreshGrantStore over backend.
func NewRefreshGrantStore(backend Backend) *RefreshGrantStore {
	return &RefreshGrantStore{backend: backend}
}

// Store saves grant under jti with the given TTL (the refresh token's
// remaining lifetime).
func (s *RefreshGrantStore) Store(ctx context.Context, jti string, grant AuthorizedGrant, ttl time.Duration) error {
	data, err := json.Marshal(grant)
	if err != nil {
		return fmt.Errorf("failed to marshal authorized grant: %w", err)
	}
	if err := s.backend.Put(ctx, refreshPrefix+jti, data, ttl); err != nil {
		return fmt.Errorf("failed to store refresh grant: %w", err)
	}
	return nil
}

// Get returns the grant stored under jti. It returns ErrNotFound if jti is
// unknown, deleted, or expired.
func (s *RefreshGrantStore) Get(ctx context.Context, jti string) (*AuthorizedGrant, error) {
	data, ok, err := s.backend.Get(ctx, refreshPrefix+jti)
	if err != nil {
		return nil, fmt.Errorf("failed to read refresh grant: %w", err)
	}
	if !ok {
		return nil, ErrNotFound
	}

	var grant AuthorizedGrant
	if err := json.Unmarshal(data, &grant); err != nil {
		return nil, fmt.Errorf("failed to unmarshal refresh grant: %w", err)
	}
	return &grant, nil
}

// Delete removes the grant stored under jti, used when a refresh token is
// rotated out. Revocation through the revocation endpoint only marks the
// jti Revoked in the TokenRegistry and leaves this record in place.
func (s *RefreshGrantStore) Delete(ctx context.Context, jti string) error {
	if err := s.backend.Delete(ctx, refreshPrefix+jti); err != nil {
		return fmt.Errorf("failed to delete refresh grant: %w", err)
	}
	return nil
}
