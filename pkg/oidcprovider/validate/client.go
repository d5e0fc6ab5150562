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

	"github.com/oidcprovider/pkg/oidcprovider/client"
	"github.com/oidcprovider/pkg/oidcprovider/result"
)

// ClientResolution resolves Request.ClientID through registry and sets
// Client. It must run first: every later validator depends on Client.
func ClientResolution(registry client.Registry) Validator {
	return func(ctx context.Context, vctx *ValidationContext) *result.OidcError {
		if vctx.Request.ClientID == "" {
			return vctx.fail(result.InvalidRequest, "client_id is required")
		}

		info, ok, err := registry.Lookup(ctx, vctx.Request.ClientID)
		if err != nil {
			return vctx.fail(result.ServerError, err.Error())
		}
		if !ok {
			return vctx.fail(result.InvalidClient, "unknown client")
		}

		vctx.Client = info
		return nil
	}
}
