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
	"errors"
	"strings"

	"github.com/oidcprovider/pkg/oidcprovider/client"
	"github.com/oidcprovider/pkg/oidcprovider/result"
	"github.com/oidcprovider/pkg/oidcprovider/storage"
	"github.com/oidcprovider/pkg/oidcprovider/token"
)

// RefreshTokenHandler implements the `refresh_token` grant_type. It
// validates the presented JWT is actually a refresh token (by its `typ`
// header, since access and refresh tokens share the same signing keys and
// claim shape), recovers the AuthorizedGrant it was issued against, and
// reports its jti via Outcome.RefreshJTI so the token endpoint's rotation
// decorator can revoke or retain it.
//
// Whether rotation actually happens — issuing a new refresh token and
// revoking this one, versus returning it unchanged — is a token-endpoint
// concern (it depends on client.Info.AllowRefreshTokenReuse), not this
// handler's.
type RefreshTokenHandler struct {
	tokens *token.Service
	grants *storage.RefreshGrantStore
	jtis   *storage.TokenRegistry
}

// NewRefreshTokenHandler constructs a RefreshTokenHandler.
func NewRefreshTokenHandler(tokens *token.Service, grants *storage.RefreshGrantStore, jtis *storage.TokenRegistry) *RefreshTokenHandler {
	return &RefreshTokenHandler{tokens: tokens, grants: grants, jtis: jtis}
}

// GrantType implements Handler.
func (h *RefreshTokenHandler) GrantType() string { return "refresh_token" }

// Authorize implements Handler.
func (h *RefreshTokenHandler) Authorize(ctx context.Context, req Request, authenticated *client.Info) result.Result[Outcome] {
	if req.RefreshToken == "" {
		return result.Failure[Outcome](result.New(result.InvalidRequest, "refresh_token is required"))
	}

	headers, err := token.Headers(req.RefreshToken)
	if err != nil {
		return result.Failure[Outcome](result.New(result.InvalidGrant, "refresh_token is malformed"))
	}
	if typ, _ := headers["typ"].(string); typ != string(token.KindRefresh) {
		return result.Failure[Outcome](result.New(result.InvalidGrant, "token presented is not a refresh token"))
	}

	claims, err := h.tokens.Validate(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, token.ErrTokenExpired) {
			return result.Failure[Outcome](result.New(result.InvalidGrant, "refresh token has expired"))
		}
		return result.Failure[Outcome](result.New(result.InvalidGrant, "refresh_token does not verify"))
	}

	jti := claims.ID
	if jti == "" {
		return result.Failure[Outcome](result.New(result.InvalidGrant, "refresh_token is missing a jti"))
	}

	if active, err := h.jtis.IsActive(ctx, jti); err != nil {
		return result.Failure[Outcome](result.New(result.ServerError, "failed to check token status"))
	} else if !active {
		return result.Failure[Outcome](result.New(result.InvalidGrant, "refresh_token has been revoked or already used"))
	}

	grant, err := h.grants.Get(ctx, jti)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return result.Failure[Outcome](result.New(result.InvalidGrant, "refresh_token is unknown"))
		}
		return result.Failure[Outcome](result.New(result.ServerError, "failed to load refresh token grant"))
	}

	if grant.Context.ClientID != authenticated.ClientID {
		return result.Failure[Outcome](result.New(result.InvalidGrant, "refresh_token was not issued to this client"))
	}

	narrowed, err := narrowScopeAndResources(*grant, req)
	if err != nil {
		return result.Failure[Outcome](result.New(result.InvalidScope, err.Error()))
	}

	return result.Success(Outcome{Grant: narrowed, RefreshJTI: jti})
}

// narrowScopeAndResources applies RFC 6749 §6's rule that a refresh_token
// request may request a scope that is equal to or a subset of the
// originally granted scope, never a superset. An empty req.Scope leaves
// the original grant untouched.
func narrowScopeAndResources(grant storage.AuthorizedGrant, req Request) (storage.AuthorizedGrant, error) {
	if req.Scope == "" {
		return grant, nil
	}

	requested := strings.Fields(req.Scope)
	granted := make(map[string]bool, len(grant.Context.Scopes))
	for _, s := range grant.Context.Scopes {
		granted[s] = true
	}
	for _, s := range requested {
		if !granted[s] {
			return grant, errors.New("requested scope exceeds the scope originally granted")
		}
	}

	grant.Context.Scopes = requested
	return grant, nil
}
