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

package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo_MatchRedirectURI(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		registeredURIs []string
		requestedURI   string
		shouldMatch    bool
	}{
		{
			name:           "exact match https",
			registeredURIs: []string{"https://example.com/callback"},
			requestedURI:   "https://example.com/callback",
			shouldMatch:    true,
		},
		{
			name:           "scheme and host case-insensitive",
			registeredURIs: []string{"https://Example.com/callback"},
			requestedURI:   "HTTPS://example.COM/callback",
			shouldMatch:    true,
		},
		{
			name:           "path is case-sensitive",
			registeredURIs: []string{"https://example.com/Callback"},
			requestedURI:   "https://example.com/callback",
			shouldMatch:    false,
		},
		{
			name:           "trailing slash is not relaxed",
			registeredURIs: []string{"https://example.com/callback"},
			requestedURI:   "https://example.com/callback/",
			shouldMatch:    false,
		},
		{
			name:           "fragment is ignored",
			registeredURIs: []string{"https://example.com/callback"},
			requestedURI:   "https://example.com/callback#fragment",
			shouldMatch:    true,
		},
		{
			name:           "query must match",
			registeredURIs: []string{"https://example.com/callback?x=1"},
			requestedURI:   "https://example.com/callback?x=2",
			shouldMatch:    false,
		},
		{
			name:           "loopback IPv4 dynamic port matches",
			registeredURIs: []string{"http://127.0.0.1/callback"},
			requestedURI:   "http://127.0.0.1:57403/callback",
			shouldMatch:    true,
		},
		{
			name:           "loopback IPv6 dynamic port matches",
			registeredURIs: []string{"http://[::1]/callback"},
			requestedURI:   "http://[::1]:9999/callback",
			shouldMatch:    true,
		},
		{
			name:           "loopback localhost dynamic port matches",
			registeredURIs: []string{"http://localhost/callback"},
			requestedURI:   "http://localhost:12345/callback",
			shouldMatch:    true,
		},
		{
			name:           "loopback https is not allowed to vary port",
			registeredURIs: []string{"http://127.0.0.1/callback"},
			requestedURI:   "https://127.0.0.1:8080/callback",
			shouldMatch:    false,
		},
		{
			name:           "loopback path must still match exactly",
			registeredURIs: []string{"http://127.0.0.1/callback"},
			requestedURI:   "http://127.0.0.1:8080/other",
			shouldMatch:    false,
		},
		{
			name:           "127.0.0.1 does not match localhost",
			registeredURIs: []string{"http://127.0.0.1/callback"},
			requestedURI:   "http://localhost:8080/callback",
			shouldMatch:    false,
		},
		{
			name:           "non-loopback host cannot vary port",
			registeredURIs: []string{"https://example.com:443/callback"},
			requestedURI:   "https://example.com:8443/callback",
			shouldMatch:    false,
		},
		{
			name:           "no registered URIs never match",
			registeredURIs: nil,
			requestedURI:   "https://example.com/callback",
			shouldMatch:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			info := &Info{ClientID: "c1", RedirectURIs: tt.registeredURIs}

			matched, ok := info.MatchRedirectURI(tt.requestedURI)
			assert.Equal(t, tt.shouldMatch, ok)
			if tt.shouldMatch {
				assert.NotEmpty(t, matched)
			}
		})
	}
}

func TestIsLoopbackHost(t *testing.T) {
	t.Parallel()

	assert.True(t, IsLoopbackHost("127.0.0.1"))
	assert.True(t, IsLoopbackHost("::1"))
	assert.True(t, IsLoopbackHost("localhost"))
	assert.True(t, IsLoopbackHost("LOCALHOST"))
	assert.False(t, IsLoopbackHost("example.com"))
	assert.False(t, IsLoopbackHost("10.0.0.1"))
}

func TestInfo_SupportsMethodGrantTypeScope(t *testing.T) {
	t.Parallel()

	info := &Info{
		ClientID:    "c1",
		AuthMethods: []AuthMethod{MethodClientSecretBasic},
		GrantTypes:  []string{"authorization_code", "refresh_token"},
		Scopes:      []string{"openid", "profile"},
	}

	assert.True(t, info.SupportsMethod(MethodClientSecretBasic))
	assert.False(t, info.SupportsMethod(MethodNone))

	assert.True(t, info.SupportsGrantType("refresh_token"))
	assert.False(t, info.SupportsGrantType("implicit"))

	assert.True(t, info.SupportsScope("openid"))
	assert.False(t, info.SupportsScope("email"))
}

func TestInfo_SupportsResponseTypeAndResource(t *testing.T) {
	t.Parallel()

	info := &Info{
		ClientID:         "c1",
		ResponseTypes:    []string{"code", "code id_token"},
		AllowedResources: []string{"https://api.example"},
	}

	assert.True(t, info.SupportsResponseType("code"))
	assert.True(t, info.SupportsResponseType("code id_token"))
	assert.False(t, info.SupportsResponseType("token"))

	assert.True(t, info.SupportsResource("https://api.example"))
	assert.False(t, info.SupportsResource("https://other.example"))

	unrestricted := &Info{ClientID: "c2"}
	assert.True(t, unrestricted.SupportsResource("https://anything.example"))
}

func TestInfo_MatchPostLogoutRedirectURI(t *testing.T) {
	t.Parallel()

	info := &Info{
		ClientID:               "c1",
		PostLogoutRedirectURIs: []string{"https://example.com/logged-out"},
	}

	matched, ok := info.MatchPostLogoutRedirectURI("https://example.com/logged-out")
	assert.True(t, ok)
	assert.Equal(t, "https://example.com/logged-out", matched)

	_, ok = info.MatchPostLogoutRedirectURI("https://example.com/other")
	assert.False(t, ok)
}
