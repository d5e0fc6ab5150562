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

// MinCIBARequestIDEntropyBytes is the minimum entropy for an auth_req_id.
const MinCIBARequestIDEntropyBytes = 16

// CIBAStore persists backchannel authentication requests (C13) keyed by
// their opaque auth_req_id. The coordinator layers poll/ping/push delivery
// semantics and long-poll waiters on top of this store; the store itself
// only knows how to read, write and atomically update a record.
type CIBAStore struct {
	backend Backend
}

// NewCIBAStore constructs a CIBAStore over backend.
func NewCIBAStore(backend Backend) *CIBAStore {
	return &CIBAStore{backend: backend}
}

// Create generates a fresh auth_req_id, stores record under it (with
// AuthReqID filled in) with a TTL equal to the time remaining until
// record.ExpiresAt, and returns the id.
func (s *CIBAStore) Create(ctx context.Context, record CIBARecord) (string, error) {
	id, err := generateOpaqueToken(MinCIBARequestIDEntropyBytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate auth_req_id: %w", err)
	}
	record.AuthReqID = id

	if err := s.put(ctx, record); err != nil {
		return "", err
	}
	return id, nil
}

func (s *CIBAStore) put(ctx context.Context, record CIBARecord) error {
	ttl := time.Until(record.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal CIBA record: %w", err)
	}
	if err := s.backend.Put(ctx, cibaPrefix+record.AuthReqID, data, ttl); err != nil {
		return fmt.Errorf("failed to store CIBA record: %w", err)
	}
	return nil
}

// Get returns the record for authReqID. It returns ErrNotFound if no
// record exists (unknown id, already removed, or expired).
func (s *CIBAStore) Get(ctx context.Context, authReqID string) (*CIBARecord, error) {
	data, ok, err := s.backend.Get(ctx, cibaPrefix+authReqID)
	if err != nil {
		return nil, fmt.Errorf("failed to read CIBA record: %w", err)
	}
	if !ok {
		return nil, ErrNotFound
	}

	var record CIBARecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal CIBA record: %w", err)
	}
	return &record, nil
}

// Update overwrites the stored record for record.AuthReqID, preserving its
// TTL relative to record.ExpiresAt. No compare-and-swap or lock is
// applied, here or in its callers (the CIBA coordinator and the CIBA
// grant handler): when two updates of the same auth_req_id race, the last
// write wins.
func (s *CIBAStore) Update(ctx context.Context, record CIBARecord) error {
	return s.put(ctx, record)
}

// Delete removes the record for authReqID.
func (s *CIBAStore) Delete(ctx context.Context, authReqID string) error {
	if err := s.backend.Delete(ctx, cibaPrefix+authReqID); err != nil {
		return fmt.Errorf("failed to delete CIBA record: %w", err)
	}
	return nil
}
