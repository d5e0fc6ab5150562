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

package httpfetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetcher_Fetch_HappyPath(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"keys":[]}`))
	}))
	defer srv.Close()

	f := New(Policy{AllowHTTP: true, DisableSSRFChecks: true, Timeout: 2 * time.Second})

	res := f.Fetch(context.Background(), srv.URL+"/jwks.json")
	require.True(t, res.Ok())
	assert.Equal(t, `{"keys":[]}`, string(res.Value()))
}

func TestFetcher_Fetch_RejectsDisallowedScheme(t *testing.T) {
	t.Parallel()

	f := New(Policy{})
	res := f.Fetch(context.Background(), "http://example.com/resource")
	require.False(t, res.Ok())
	assert.Equal(t, "invalid_client_metadata", res.Err().ErrorCode)
}

func TestFetcher_Fetch_RejectsBannedHostname(t *testing.T) {
	t.Parallel()

	f := New(Policy{AllowHTTP: true})
	res := f.Fetch(context.Background(), "http://localhost:9999/resource")
	require.False(t, res.Ok())
	assert.Equal(t, "invalid_client_metadata", res.Err().ErrorCode)
}

func TestFetcher_Fetch_NonSuccessStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(Policy{AllowHTTP: true, DisableSSRFChecks: true, MaxRetries: 0, Timeout: 2 * time.Second})

	res := f.Fetch(context.Background(), srv.URL+"/missing")
	require.False(t, res.Ok())
	assert.Equal(t, "invalid_client_metadata", res.Err().ErrorCode)
}

func TestFetcher_Fetch_EmptyBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := New(Policy{AllowHTTP: true, DisableSSRFChecks: true, MaxRetries: 0, Timeout: 2 * time.Second})

	res := f.Fetch(context.Background(), srv.URL+"/empty")
	require.False(t, res.Ok())
	assert.Equal(t, "invalid_client_metadata", res.Err().ErrorCode)
}

func TestFetcher_Fetch_RateLimitHookRejects(t *testing.T) {
	t.Parallel()

	f := New(Policy{
		AllowHTTP: true,
		RateLimit: func(ctx context.Context, url string) error {
			return errors.New("too many requests")
		},
	})

	res := f.Fetch(context.Background(), "http://example.com/resource")
	require.False(t, res.Ok())
	assert.Equal(t, "invalid_client_metadata", res.Err().ErrorCode)
}
