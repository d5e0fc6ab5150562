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

func testGrant() AuthorizedGrant {
	return AuthorizedGrant{
		Session: AuthSession{Subject: "alice", SessionID: "sess-1"},
		Context: AuthorizationContext{ClientID: "c1", Scopes: []string{"openid", "profile"}},
	}
}

func TestCodeService_IssueAndConsume(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := NewCodeService(NewMemoryBackend())

	code, err := svc.IssueCode(ctx, testGrant(), time.Minute)
	require.NoError(t, err)
	assert.NotEmpty(t, code)

	grant, err := svc.ConsumeCode(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, "alice", grant.Session.Subject)
	assert.Equal(t, []string{"openid", "profile"}, grant.Context.Scopes)

	_, err = svc.ConsumeCode(ctx, code)
	assert.ErrorIs(t, err, ErrNotFound, "code must be single-use")
}

func TestCodeService_ConsumeUnknownCode(t *testing.T) {
	t.Parallel()
	svc := NewCodeService(NewMemoryBackend())

	_, err := svc.ConsumeCode(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCodeService_ReuseDetectionWindow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := NewCodeService(NewMemoryBackend())

	grant := testGrant()
	grant.AppendIssuedToken("jti-1", time.Now().Add(time.Hour))

	code, err := svc.IssueCode(ctx, grant, time.Minute)
	require.NoError(t, err)

	consumed, err := svc.ConsumeCode(ctx, code)
	require.NoError(t, err)
	require.NoError(t, svc.RetainForReuseDetection(ctx, code, *consumed))

	// replay is visible exactly once, carrying the issued-token fingerprints
	replayed, err := svc.ConsumeCode(ctx, code)
	require.NoError(t, err)
	require.Len(t, replayed.IssuedTokens, 1)
	assert.Equal(t, "jti-1", replayed.IssuedTokens[0].JTI)

	// and is gone afterwards
	_, err = svc.ConsumeCode(ctx, code)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAuthorizedGrant_HasIssuedTokens(t *testing.T) {
	t.Parallel()

	grant := testGrant()
	assert.False(t, grant.HasIssuedTokens())

	grant.AppendIssuedToken("jti-1", time.Now().Add(time.Minute))
	assert.True(t, grant.HasIssuedTokens())
}

func TestAuthSession_AddAffectedClient(t *testing.T) {
	t.Parallel()

	s := AuthSession{Subject: "alice"}
	s.AddAffectedClient("c1")
	s.AddAffectedClient("c2")
	s.AddAffectedClient("c1")

	assert.Equal(t, []string{"c1", "c2"}, s.AffectedClients)
}
