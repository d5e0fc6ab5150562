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
	"net/url"

	"github.com/oidcprovider/pkg/oidcprovider/result"
)

// Resource validates each RFC 8707 `resource` indicator: it must be an
// absolute URI without a fragment, and a subset of the client's allowed
// resources.
func Resource() Validator {
	return func(ctx context.Context, vctx *ValidationContext) *result.OidcError {
		for _, r := range vctx.Request.Resources {
			u, err := url.Parse(r)
			if err != nil || !u.IsAbs() {
				return vctx.fail(result.InvalidTarget, "resource \""+r+"\" is not an absolute URI")
			}
			if u.Fragment != "" {
				return vctx.fail(result.InvalidTarget, "resource \""+r+"\" must not contain a fragment")
			}
			if !vctx.Client.SupportsResource(r) {
				return vctx.fail(result.InvalidTarget, "resource \""+r+"\" is not allowed for this client")
			}
		}

		vctx.Resources = vctx.Request.Resources
		return nil
	}
}
