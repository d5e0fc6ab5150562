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

var validPrompts = map[string]struct{}{
	"none": {}, "login": {}, "consent": {}, "select_account": {},
}

// NonceAndPrompt requires a nonce for implicit/hybrid response types
// (anything producing an id_token or token directly from the authorize
// endpoint), and validates the prompt parameter's values, enforcing that
// "none" is never combined with another prompt value.
func NonceAndPrompt() Validator {
	return func(ctx context.Context, vctx *ValidationContext) *result.OidcError {
		if requiresNonce(vctx.ResponseTypes) && vctx.Request.Nonce == "" {
			return vctx.fail(result.InvalidRequest, "nonce is required for this response_type")
		}
		vctx.Nonce = vctx.Request.Nonce

		raw := strings.TrimSpace(vctx.Request.Prompt)
		if raw == "" {
			return nil
		}
		prompts := strings.Fields(raw)
		for _, p := range prompts {
			if _, ok := validPrompts[p]; !ok {
				return vctx.fail(result.InvalidRequest, "unsupported prompt value \""+p+"\"")
			}
		}
		if slices.Contains(prompts, "none") && len(prompts) > 1 {
			return vctx.fail(result.InvalidRequest, "prompt=none must not be combined with other prompt values")
		}

		vctx.Prompts = prompts
		return nil
	}
}

func requiresNonce(responseTypes []string) bool {
	return slices.Contains(responseTypes, "id_token") || slices.Contains(responseTypes, "token")
}
