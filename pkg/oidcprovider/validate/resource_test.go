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

func TestResource_AcceptsAllowedAbsoluteURI(t *testing.T) {
	t.Parallel()
	validator := Resource()

	vctx := &ValidationContext{
		Request: storage.AuthorizationRequest{Resources: []string{"https://api.example"}},
		Client:  &client.Info{AllowedResources: []string{"https://api.example"}},
	}
	require.Nil(t, validator(context.Background(), vctx))
	assert.Equal(t, []string{"https://api.example"}, vctx.Resources)
}

func TestResource_RejectsRelativeURI(t *testing.T) {
	t.Parallel()
	validator := Resource()

	vctx := &ValidationContext{
		Request: storage.AuthorizationRequest{Resources: []string{"/not-absolute"}},
		Client:  &client.Info{},
	}
	err := validator(context.Background(), vctx)
	require.NotNil(t, err)
	assert.Equal(t, "invalid_target", err.ErrorCode)
}

func TestResource_RejectsFragment(t *testing.T) {
	t.Parallel()
	validator := Resource()

	vctx := &ValidationContext{
		Request: storage.AuthorizationRequest{Resources: []string{"https://api.example#frag"}},
		Client:  &client.Info{},
	}
	err := validator(context.Background(), vctx)
	require.NotNil(t, err)
	assert.Equal(t, "invalid_target", err.ErrorCode)
}

func TestResource_RejectsNotAllowedForClient(t *testing.T) {
	t.Parallel()
	validator := Resource()

	vctx := &ValidationContext{
		Request: storage.AuthorizationRequest{Resources: []string{"https://other.example"}},
		Client:  &client.Info{AllowedResources: []string{"https://api.example"}},
	}
	err := validator(context.Background(), vctx)
	require.NotNil(t, err)
	assert.Equal(t, "invalid_target", err.ErrorCode)
}
