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

package result

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuccessAndFailure(t *testing.T) {
	t.Parallel()

	ok := Success(42)
	assert.True(t, ok.Ok())
	assert.Equal(t, 42, ok.Value())
	assert.Nil(t, ok.Err())

	fail := Failure[int](New(InvalidRequest, "missing client_id"))
	assert.False(t, fail.Ok())
	require.NotNil(t, fail.Err())
	assert.Equal(t, InvalidRequest, fail.Err().ErrorCode)
}

func TestValuePanicsOnFailure(t *testing.T) {
	t.Parallel()

	fail := Failure[string](New(InvalidGrant, "code reused"))
	assert.Panics(t, func() { fail.Value() })
}

func TestBindShortCircuitsOnFailure(t *testing.T) {
	t.Parallel()

	called := false
	fail := Failure[int](New(InvalidScope, "scope not allowed"))
	out := Bind(fail, func(int) Result[string] {
		called = true
		return Success("unreached")
	})

	assert.False(t, called)
	assert.False(t, out.Ok())
	assert.Equal(t, InvalidScope, out.Err().ErrorCode)
}

func TestBindChainsOnSuccess(t *testing.T) {
	t.Parallel()

	out := Bind(Success(2), func(v int) Result[int] {
		return Success(v * 21)
	})

	require.True(t, out.Ok())
	assert.Equal(t, 42, out.Value())
}

func TestMap(t *testing.T) {
	t.Parallel()

	out := Map(Success(21), func(v int) int { return v * 2 })
	assert.Equal(t, 42, out.Value())

	failed := Map(Failure[int](New(ServerError, "boom")), func(v int) int { return v * 2 })
	assert.False(t, failed.Ok())
}

func TestMatch(t *testing.T) {
	t.Parallel()

	got := Match(Success(10),
		func(v int) string { return "ok" },
		func(e *OidcError) string { return "err:" + e.ErrorCode },
	)
	assert.Equal(t, "ok", got)

	got = Match(Failure[int](New(AccessDenied, "")),
		func(v int) string { return "ok" },
		func(e *OidcError) string { return "err:" + e.ErrorCode },
	)
	assert.Equal(t, "err:"+AccessDenied, got)
}

func TestOidcErrorWithRedirect(t *testing.T) {
	t.Parallel()

	base := New(InvalidRequest, "bad scope")
	withRedirect := base.WithRedirect("https://client.example/cb", "fragment")

	assert.Empty(t, base.RedirectURI)
	assert.Equal(t, "https://client.example/cb", withRedirect.RedirectURI)
	assert.Equal(t, "fragment", withRedirect.ResponseMode)
	assert.Equal(t, base.ErrorCode, withRedirect.ErrorCode)
}

func TestOidcErrorError(t *testing.T) {
	t.Parallel()

	withDesc := New(InvalidGrant, "code expired")
	assert.Equal(t, "invalid_grant: code expired", withDesc.Error())

	withoutDesc := &OidcError{ErrorCode: InvalidGrant}
	assert.Equal(t, "invalid_grant", withoutDesc.Error())
}
