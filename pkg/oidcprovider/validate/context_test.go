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

	"github.com/oidcprovider/pkg/oidcprovider/result"
)

func TestRun_ShortCircuitsOnFirstFailure(t *testing.T) {
	t.Parallel()

	var secondRan bool
	failing := func(_ context.Context, vctx *ValidationContext) *result.OidcError {
		return result.New(result.InvalidRequest, "boom")
	}
	recording := func(_ context.Context, vctx *ValidationContext) *result.OidcError {
		secondRan = true
		return nil
	}

	err := Run(context.Background(), &ValidationContext{}, failing, recording)
	require.NotNil(t, err)
	assert.False(t, secondRan)
}

func TestValidationContext_FailAttachesRedirectOnceResolved(t *testing.T) {
	t.Parallel()

	vctx := &ValidationContext{}
	bare := vctx.fail(result.InvalidScope, "nope")
	assert.Empty(t, bare.RedirectURI)

	vctx.RedirectURI = "https://rp.example/callback"
	vctx.ResponseMode = "query"
	withRedirect := vctx.fail(result.InvalidScope, "nope")
	assert.Equal(t, "https://rp.example/callback", withRedirect.RedirectURI)
	assert.Equal(t, "query", withRedirect.ResponseMode)
}
