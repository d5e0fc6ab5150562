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

package grant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oidcprovider/pkg/oidcprovider/client"
	"github.com/oidcprovider/pkg/oidcprovider/result"
	"github.com/oidcprovider/pkg/oidcprovider/storage"
)

// ClientCredentialsHandler implements the `client_credentials` grant_type:
// the client authenticates as itself and is its own subject. There is no
// end-user session, no redirect_uri, and no refresh token (offline_access
// is meaningless without a user); scope is the intersection of what was
// requested and what the client is allowed, defaulting to the client's
// full allowed set when no scope parameter is present.
type ClientCredentialsHandler struct {
	now func() time.Time
}

// NewClientCredentialsHandler constructs a ClientCredentialsHandler.
func NewClientCredentialsHandler() *ClientCredentialsHandler {
	return &ClientCredentialsHandler{now: time.Now}
}

// GrantType implements Handler.
func (h *ClientCredentialsHandler) GrantType() string { return "client_credentials" }

// Authorize implements Handler.
func (h *ClientCredentialsHandler) Authorize(ctx context.Context, req Request, authenticated *client.Info) result.Result[Outcome] {
	scopes, err := resolveClientCredentialsScope(req.Scope, authenticated)
	if err != nil {
		return result.Failure[Outcome](result.New(result.InvalidScope, err.Error()))
	}

	for _, r := range req.Resources {
		if !authenticated.SupportsResource(r) {
			return result.Failure[Outcome](result.New(result.InvalidTarget, "resource is not allowed for this client"))
		}
	}

	now := h.now()
	grant := storage.AuthorizedGrant{
		Session: storage.AuthSession{
			Subject:         authenticated.ClientID,
			IDP:             "client_credentials",
			AuthTime:        now,
			AffectedClients: []string{authenticated.ClientID},
		},
		Context: storage.AuthorizationContext{
			ClientID:  authenticated.ClientID,
			Scopes:    scopes,
			Resources: req.Resources,
		},
	}

	return result.Success(Outcome{Grant: grant})
}

func resolveClientCredentialsScope(requested string, c *client.Info) ([]string, error) {
	if requested == "" {
		return append([]string(nil), c.Scopes...), nil
	}
	var scopes []string
	for _, s := range strings.Fields(requested) {
		if c.SupportsScope(s) {
			scopes = append(scopes, s)
		}
	}
	if len(scopes) == 0 {
		return nil, fmt.Errorf("none of the requested scopes are permitted for this client")
	}
	return scopes, nil
}
