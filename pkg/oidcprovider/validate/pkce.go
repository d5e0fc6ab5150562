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

	"github.com/oidcprovider/pkg/oidcprovider/result"
)

// PKCE validates Request.CodeChallenge/CodeChallengeMethod, requiring a
// challenge whenever the client mandates PKCE or the response_type
// includes "code". Only S256 is accepted; "plain" is rejected by default
// per this server's policy.
func PKCE() Validator {
	return func(ctx context.Context, vctx *ValidationContext) *result.OidcError {
		required := vctx.Client.PKCERequired || slices.Contains(vctx.ResponseTypes, "code")
		vctx.PKCERequired = required

		challenge := vctx.Request.CodeChallenge
		method := vctx.Request.CodeChallengeMethod

		if challenge == "" {
			if required {
				return vctx.fail(result.InvalidRequest, "code_challenge is required")
			}
			return nil
		}

		if method == "" {
			method = "plain"
		}
		if method != "S256" {
			return vctx.fail(result.InvalidRequest, "code_challenge_method must be S256")
		}

		vctx.CodeChallenge = challenge
		vctx.CodeChallengeMethod = method
		return nil
	}
}
