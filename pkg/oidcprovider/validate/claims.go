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
	"encoding/json"

	"github.com/oidcprovider/pkg/oidcprovider/result"
)

var validClaimsTopLevelKeys = map[string]struct{}{
	"userinfo": {}, "id_token": {},
}

// Claims parses the `claims` parameter (already bound as a map when it
// arrived via a request object; parsed from its raw JSON string form when
// it arrived as a query parameter) and rejects any top-level key other
// than "userinfo" or "id_token" per the OpenID Connect claims request
// syntax.
func Claims() Validator {
	return func(ctx context.Context, vctx *ValidationContext) *result.OidcError {
		claims := vctx.Request.Claims
		if claims == nil {
			raw := vctx.Request.Extra["claims"]
			if raw == "" {
				return nil
			}
			if err := json.Unmarshal([]byte(raw), &claims); err != nil {
				return vctx.fail(result.InvalidRequest, "claims parameter is not valid JSON")
			}
		}

		for key := range claims {
			if _, ok := validClaimsTopLevelKeys[key]; !ok {
				return vctx.fail(result.InvalidRequest, "unsupported top-level claims key \""+key+"\"")
			}
		}

		vctx.Claims = claims
		return nil
	}
}
