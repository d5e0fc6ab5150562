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

	"github.com/oidcprovider/pkg/oidcprovider/result"
)

// RedirectURI resolves Request.RedirectURI against the client's registered
// URIs and sets the effective RedirectURI used by every later redirect. A
// failure here can never be rendered as a redirect — the URI itself is
// unresolved or untrusted — so it is reported as a direct error.
func RedirectURI() Validator {
	return func(ctx context.Context, vctx *ValidationContext) *result.OidcError {
		if vctx.Client == nil {
			return result.New(result.ServerError, "redirect URI validator run before client resolution")
		}

		if len(vctx.Client.RedirectURIs) == 0 {
			return result.New(result.InvalidRequest, "client has no registered redirect URIs")
		}

		requested := vctx.Request.RedirectURI
		if requested == "" {
			if len(vctx.Client.RedirectURIs) == 1 {
				vctx.RedirectURI = vctx.Client.RedirectURIs[0]
				return nil
			}
			return result.New(result.InvalidRequest, "redirect_uri is required when client has multiple registered URIs")
		}

		matched, ok := vctx.Client.MatchRedirectURI(requested)
		if !ok {
			return result.New(result.InvalidRequest, "redirect_uri does not match any registered URI")
		}

		vctx.RedirectURI = matched
		return nil
	}
}
