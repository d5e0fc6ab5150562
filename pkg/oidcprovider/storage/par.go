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

// RequestURIPrefix is the required prefix of every Pushed Authorization
// Request URN (RFC 9126).
const RequestURIPrefix = "urn:ietf:params:oauth:request_uri:"

// MinRequestURIEntropyBytes is the minimum entropy for the opaque suffix of
// a PAR request_uri.
const MinRequestURIEntropyBytes = 16

// PARStore persists fully validated authorization requests under an opaque
// URN (C6), for later single-use lookup from the authorize endpoint.
type PARStore struct {
	backend Backend
}

// NewPARStore constructs a PARStore over backend.
func NewPARStore(backend Backend) *PARStore {
	return &PARStore{backend: backend}
}

// Store saves req under a freshly generated URN with the given TTL and
// returns the URN.
func (s *PARStore) Store(ctx context.Context, req AuthorizationRequest, ttl time.Duration) (string, error) {
	suffix, err := generateOpaqueToken(MinRequestURIEntropyBytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate request_uri: %w", err)
	}
	urn := RequestURIPrefix + suffix

	data, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal pushed authorization request: %w", err)
	}

	if err := s.backend.Put(ctx, parPrefix+urn, data, ttl); err != nil {
		return "", fmt.Errorf("failed to store pushed authorization request: %w", err)
	}
	return urn, nil
}

// Consume atomically looks up and removes the request stored under urn. It
// returns ErrNotFound if the URN is unknown, already consumed, or expired.
func (s *PARStore) Consume(ctx context.Context, urn string) (*AuthorizationRequest, error) {
	data, ok, err := s.backend.GetAndDelete(ctx, parPrefix+urn)
	if err != nil {
		return nil, fmt.Errorf("failed to consume pushed authorization request: %w", err)
	}
	if !ok {
		return nil, ErrNotFound
	}

	var req AuthorizationRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pushed authorization request: %w", err)
	}
	return &req, nil
}
