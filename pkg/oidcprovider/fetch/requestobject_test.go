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

package fetch

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oidcprovider/pkg/oidcprovider/client"
	"github.com/oidcprovider/pkg/oidcprovider/storage"
)

func signRequestObject(t *testing.T, key any, alg jose.SignatureAlgorithm, claims map[string]any) string {
	t.Helper()
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: alg, Key: key}, nil)
	require.NoError(t, err)
	token, err := jwt.Signed(signer).Claims(claims).Serialize()
	require.NoError(t, err)
	return token
}

func TestRequestObjectFetcher_VerifiesAndMerges(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	jwk := jose.JSONWebKey{Key: key.Public(), KeyID: "kid-1", Algorithm: "ES256", Use: "sig"}

	info := &client.Info{
		ClientID: "c1",
		JWKS:     &jose.JSONWebKeySet{Keys: []jose.JSONWebKey{jwk}},
	}
	registry := client.NewMemoryRegistry(info)

	assertion := signRequestObject(t, key, jose.ES256, map[string]any{
		"client_id":     "c1",
		"response_type": "code",
		"redirect_uri":  "https://rp.example/callback",
		"nonce":         "n-1",
		"custom_claim":  "extension-value",
	})

	stage := RequestObjectFetcher(registry)
	res := stage(ctx, storage.AuthorizationRequest{Extra: map[string]string{"request": assertion}})
	require.True(t, res.Ok(), "expected verification to succeed: %+v", res.Err())

	out := res.Value()
	assert.Equal(t, "c1", out.ClientID)
	assert.Equal(t, "code", out.ResponseType)
	assert.Equal(t, "https://rp.example/callback", out.RedirectURI)
	assert.Equal(t, "n-1", out.Nonce)
	assert.Equal(t, "extension-value", out.Extra["custom_claim"])
}

func TestRequestObjectFetcher_RejectsBadSignature(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	other, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	info := &client.Info{
		ClientID: "c1",
		JWKS:     &jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{Key: other.Public(), KeyID: "kid-1"}}},
	}
	registry := client.NewMemoryRegistry(info)

	assertion := signRequestObject(t, key, jose.ES256, map[string]any{"client_id": "c1"})

	stage := RequestObjectFetcher(registry)
	res := stage(ctx, storage.AuthorizationRequest{Extra: map[string]string{"request": assertion}})
	require.False(t, res.Ok())
	assert.Equal(t, "invalid_request_object", res.Err().ErrorCode)
}

func TestRequestObjectFetcher_RejectsUnknownClient(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	registry := client.NewMemoryRegistry()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	assertion := signRequestObject(t, key, jose.ES256, map[string]any{"client_id": "ghost"})

	stage := RequestObjectFetcher(registry)
	res := stage(ctx, storage.AuthorizationRequest{Extra: map[string]string{"request": assertion}})
	require.False(t, res.Ok())
	assert.Equal(t, "invalid_client", res.Err().ErrorCode)
}

func TestRequestObjectFetcher_PassthroughWhenAbsent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	registry := client.NewMemoryRegistry()

	stage := RequestObjectFetcher(registry)
	res := stage(ctx, storage.AuthorizationRequest{ClientID: "c1"})
	require.True(t, res.Ok())
	assert.Equal(t, "c1", res.Value().ClientID)
}
