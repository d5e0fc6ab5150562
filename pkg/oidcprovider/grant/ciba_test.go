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

package grant

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oidcprovider/pkg/oidcprovider/result"
	"github.com/oidcprovider/pkg/oidcprovider/storage"
)

func newCIBATestHandler(t *testing.T, now time.Time) (*CIBAGrantHandler, *storage.CIBAStore) {
	t.Helper()
	store := storage.NewCIBAStore(storage.NewMemoryBackend())
	h := NewCIBAGrantHandler(store, DefaultPollInterval)
	h.now = func() time.Time { return now }
	return h, store
}

func TestCIBAGrantHandler_Authorize_AuthenticatedPollIssuesAndRemoves(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Now()
	handler, store := newCIBATestHandler(t, now)

	authReqID, err := store.Create(ctx, storage.CIBARecord{
		Grant:        storage.AuthorizedGrant{Context: storage.AuthorizationContext{ClientID: "client-1"}},
		Status:       storage.CIBAAuthenticated,
		ExpiresAt:    now.Add(time.Minute),
		DeliveryMode: storage.CIBAPoll,
	})
	require.NoError(t, err)

	res := handler.Authorize(ctx, Request{AuthReqID: authReqID}, testClient("client-1"))
	require.True(t, res.Ok())

	_, err = store.Get(ctx, authReqID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCIBAGrantHandler_Authorize_PendingBeforeIntervalSlowsDown(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Now()
	handler, store := newCIBATestHandler(t, now)

	authReqID, err := store.Create(ctx, storage.CIBARecord{
		Grant:        storage.AuthorizedGrant{Context: storage.AuthorizationContext{ClientID: "client-1"}},
		Status:       storage.CIBAPending,
		ExpiresAt:    now.Add(time.Minute),
		NextPollAt:   now.Add(time.Second),
		DeliveryMode: storage.CIBAPoll,
	})
	require.NoError(t, err)

	res := handler.Authorize(ctx, Request{AuthReqID: authReqID}, testClient("client-1"))
	require.False(t, res.Ok())
	assert.Equal(t, result.SlowDown, res.Err().ErrorCode)
}

func TestCIBAGrantHandler_Authorize_PendingAfterIntervalIsAuthorizationPending(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Now()
	handler, store := newCIBATestHandler(t, now)

	authReqID, err := store.Create(ctx, storage.CIBARecord{
		Grant:        storage.AuthorizedGrant{Context: storage.AuthorizationContext{ClientID: "client-1"}},
		Status:       storage.CIBAPending,
		ExpiresAt:    now.Add(time.Minute),
		NextPollAt:   now.Add(-time.Second),
		DeliveryMode: storage.CIBAPoll,
	})
	require.NoError(t, err)

	res := handler.Authorize(ctx, Request{AuthReqID: authReqID}, testClient("client-1"))
	require.False(t, res.Ok())
	assert.Equal(t, result.AuthorizationPending, res.Err().ErrorCode)
}

func TestCIBAGrantHandler_Authorize_PendingPushRejectsPolling(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Now()
	handler, store := newCIBATestHandler(t, now)

	authReqID, err := store.Create(ctx, storage.CIBARecord{
		Grant:        storage.AuthorizedGrant{Context: storage.AuthorizationContext{ClientID: "client-1"}},
		Status:       storage.CIBAPending,
		ExpiresAt:    now.Add(time.Minute),
		DeliveryMode: storage.CIBAPush,
	})
	require.NoError(t, err)

	res := handler.Authorize(ctx, Request{AuthReqID: authReqID}, testClient("client-1"))
	require.False(t, res.Ok())
	assert.Equal(t, result.InvalidGrant, res.Err().ErrorCode)
}

func TestCIBAGrantHandler_Authorize_Denied(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Now()
	handler, store := newCIBATestHandler(t, now)

	authReqID, err := store.Create(ctx, storage.CIBARecord{
		Grant:     storage.AuthorizedGrant{Context: storage.AuthorizationContext{ClientID: "client-1"}},
		Status:    storage.CIBADenied,
		ExpiresAt: now.Add(time.Minute),
	})
	require.NoError(t, err)

	res := handler.Authorize(ctx, Request{AuthReqID: authReqID}, testClient("client-1"))
	require.False(t, res.Ok())
	assert.Equal(t, result.AccessDenied, res.Err().ErrorCode)

	_, err = store.Get(ctx, authReqID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCIBAGrantHandler_Authorize_Expired(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Now()
	handler, store := newCIBATestHandler(t, now)

	authReqID, err := store.Create(ctx, storage.CIBARecord{
		Grant:     storage.AuthorizedGrant{Context: storage.AuthorizationContext{ClientID: "client-1"}},
		Status:    storage.CIBAPending,
		ExpiresAt: now.Add(-time.Second),
	})
	require.NoError(t, err)

	res := handler.Authorize(ctx, Request{AuthReqID: authReqID}, testClient("client-1"))
	require.False(t, res.Ok())
	assert.Equal(t, result.ExpiredToken, res.Err().ErrorCode)
}

func TestCIBAGrantHandler_Authorize_RejectsWrongClient(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Now()
	handler, store := newCIBATestHandler(t, now)

	authReqID, err := store.Create(ctx, storage.CIBARecord{
		Grant:     storage.AuthorizedGrant{Context: storage.AuthorizationContext{ClientID: "client-1"}},
		Status:    storage.CIBAAuthenticated,
		ExpiresAt: now.Add(time.Minute),
	})
	require.NoError(t, err)

	res := handler.Authorize(ctx, Request{AuthReqID: authReqID}, testClient("client-2"))
	require.False(t, res.Ok())
	assert.Equal(t, result.InvalidGrant, res.Err().ErrorCode)
}

func TestCIBAGrantHandler_Authorize_MissingAuthReqID(t *testing.T) {
	t.Parallel()
	handler, _ := newCIBATestHandler(t, time.Now())

	res := handler.Authorize(context.Background(), Request{}, testClient("client-1"))
	require.False(t, res.Ok())
	assert.Equal(t, result.InvalidRequest, res.Err().ErrorCode)
}
