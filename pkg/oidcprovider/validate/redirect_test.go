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

package validate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oidcprovider/pkg/oidcprovider/client"
	"github.com/oidcprovider/pkg/oidcprovider/storage"
)

func TestRedirectURI_ExactMatch(t *testing.T) {
	t.Parallel()
	validator := RedirectURI()

	vctx := &ValidationContext{
		Request: storage.AuthorizationRequest{RedirectURI: "https://rp.example/callback"},
		Client:  &client.Info{RedirectURIs: []string{"https://rp.example/callback"}},
	}
	require.Nil(t, validator(context.Background(), vctx))
	assert.Equal(t, "https://rp.example/callback", vctx.RedirectURI)
}

func TestRedirectURI_DefaultsWhenSingleRegistered(t *testing.T) {
	t.Parallel()
	validator := RedirectURI()

	vctx := &ValidationContext{
		Client: &client.Info{RedirectURIs: []string{"https://rp.example/callback"}},
	}
	require.Nil(t, validator(context.Background(), vctx))
	assert.Equal(t, "https://rp.example/callback", vctx.RedirectURI)
}

func TestRedirectURI_RequiredWithMultipleRegistered(t *testing.T) {
	t.Parallel()
	validator := RedirectURI()

	vctx := &ValidationContext{
		Client: &client.Info{RedirectURIs: []string{"https://rp.example/a", "https://rp.example/b"}},
	}
	err := validator(context.Background(), vctx)
	require.NotNil(t, err)
	assert.Equal(t, "invalid_request", err.ErrorCode)
}

func TestRedirectURI_RejectsUnregistered(t *testing.T) {
	t.Parallel()
	validator := RedirectURI()

	vctx := &ValidationContext{
		Request: storage.AuthorizationRequest{RedirectURI: "https://evil.example/callback"},
		Client:  &client.Info{RedirectURIs: []string{"https://rp.example/callback"}},
	}
	err := validator(context.Background(), vctx)
	require.NotNil(t, err)
	assert.Equal(t, "invalid_request", err.ErrorCode)
}
