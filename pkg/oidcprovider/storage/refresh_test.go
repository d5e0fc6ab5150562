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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshGrantStore_StoreGetDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewRefreshGrantStore(NewMemoryBackend())

	require.NoError(t, store.Store(ctx, "jti-1", testGrant(), time.Hour))

	grant, err := store.Get(ctx, "jti-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", grant.Session.Subject)

	// non-consuming: a second Get still sees it
	again, err := store.Get(ctx, "jti-1")
	require.NoError(t, err)
	assert.Equal(t, grant.Session.Subject, again.Session.Subject)

	require.NoError(t, store.Delete(ctx, "jti-1"))
	_, err = store.Get(ctx, "jti-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRefreshGrantStore_GetUnknown(t *testing.T) {
	t.Parallel()
	store := NewRefreshGrantStore(NewMemoryBackend())

	_, err := store.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}
