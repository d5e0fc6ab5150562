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

package response

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oidcprovider/pkg/oidcprovider/result"
)

func TestRedirectLocationModes(t *testing.T) {
	t.Parallel()

	params := url.Values{"code": {"abc"}, "state": {"s"}}

	query := NewRedirect("https://client.example/cb", "query", params)
	assert.Equal(t, "https://client.example/cb?code=abc&state=s", query.Location())

	fragment := NewRedirect("https://client.example/cb", "fragment", params)
	assert.True(t, strings.HasPrefix(fragment.Location(), "https://client.example/cb#"))
	assert.Contains(t, fragment.Location(), "code=abc")

	formPost := NewRedirect("https://client.example/cb", "form_post", params)
	assert.Equal(t, "https://client.example/cb", formPost.Location())
	assert.Contains(t, formPost.FormPostHTML(), `name="code" value="abc"`)
}

func TestErrorRedirectAndDirectError(t *testing.T) {
	t.Parallel()

	withRedirect := result.New(result.InvalidScope, "bad scope").WithRedirect("https://client.example/cb", "query")
	require.True(t, HasRedirect(withRedirect))
	redirect := ErrorRedirect(withRedirect, "xyz")
	assert.Equal(t, "invalid_scope", redirect.Params.Get("error"))
	assert.Equal(t, "xyz", redirect.Params.Get("state"))

	bare := result.New(result.InvalidRequest, "missing client_id")
	require.False(t, HasRedirect(bare))
	assert.Equal(t, JSONError{Error: "invalid_request", ErrorDescription: "missing client_id"}, ToJSONError(bare))
	assert.Equal(t, 400, StatusCode(bare.ErrorCode))
	assert.Equal(t, 401, StatusCode(result.InvalidClient))
	assert.Equal(t, 500, StatusCode(result.ServerError))
}

func TestInactiveIntrospection(t *testing.T) {
	t.Parallel()

	data, err := Marshal(Inactive())
	require.NoError(t, err)
	assert.JSONEq(t, `{"active":false}`, string(data))
}
