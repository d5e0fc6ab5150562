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
	"sort"
	"strings"

	"github.com/oidcprovider/pkg/oidcprovider/result"
)

var validResponseModes = map[string]struct{}{
	"query": {}, "fragment": {}, "form_post": {},
}

// ResponseType parses and validates Request.ResponseType against the
// client's registered response types, and resolves the effective response
// mode: "code" defaults to query, any type containing "token" or
// "id_token" defaults to fragment, and an explicitly requested
// response_mode (including form_post) is honored if recognized.
func ResponseType() Validator {
	return func(ctx context.Context, vctx *ValidationContext) *result.OidcError {
		raw := strings.TrimSpace(vctx.Request.ResponseType)
		if raw == "" {
			return vctx.fail(result.InvalidRequest, "response_type is required")
		}

		types := strings.Fields(raw)
		normalized := strings.Join(sortedCopy(types), " ")
		if !vctx.Client.SupportsResponseType(normalized) && !vctx.Client.SupportsResponseType(raw) {
			return vctx.fail(result.UnauthorizedClient, "client is not registered for this response_type")
		}
		vctx.ResponseTypes = types

		mode := vctx.Request.ResponseMode
		if mode == "" {
			mode = defaultResponseMode(types)
		}
		if _, ok := validResponseModes[mode]; !ok {
			return vctx.fail(result.InvalidRequest, "unsupported response_mode")
		}
		vctx.ResponseMode = mode

		return nil
	}
}

func defaultResponseMode(types []string) string {
	for _, t := range types {
		if t == "token" || t == "id_token" {
			return "fragment"
		}
	}
	return "query"
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
