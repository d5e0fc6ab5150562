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
	"slices"
	"strings"

	"github.com/oidcprovider/pkg/oidcprovider/result"
)

// Scope validates Request.Scope is a subset of both the client's allowed
// scopes and the server's supported scopes, requiring "openid" whenever an
// ID-token-producing response type was requested.
func Scope(serverScopes []string) Validator {
	return func(ctx context.Context, vctx *ValidationContext) *result.OidcError {
		requested := strings.Fields(vctx.Request.Scope)

		for _, s := range requested {
			if !slices.Contains(serverScopes, s) {
				return vctx.fail(result.InvalidScope, "scope \""+s+"\" is not supported by this server")
			}
			if !vctx.Client.SupportsScope(s) {
				return vctx.fail(result.InvalidScope, "scope \""+s+"\" is not allowed for this client")
			}
		}

		if requiresIDToken(vctx.ResponseTypes) && !slices.Contains(requested, "openid") {
			return vctx.fail(result.InvalidScope, "openid scope is required for this response_type")
		}

		vctx.Scopes = requested
		return nil
	}
}

func requiresIDToken(responseTypes []string) bool {
	return slices.Contains(responseTypes, "id_token")
}
