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
	"crypto/subtle"
	"errors"

	"github.com/oidcprovider/pkg/oidcprovider/client"
	"github.com/oidcprovider/pkg/oidcprovider/keys"
	"github.com/oidcprovider/pkg/oidcprovider/result"
	"github.com/oidcprovider/pkg/oidcprovider/storage"
)

// AuthorizationCodeHandler implements the `authorization_code` grant_type:
// it consumes a code minted by the authorization handler (C10) and issues
// the AuthorizedGrant it was bound to, after checking the presenting
// client and redirect_uri match and, when the original request carried a
// PKCE challenge, that the supplied code_verifier reproduces it.
//
// Reuse of an already-consumed code is not handled here: ConsumeCode's
// get-and-delete semantics mean a replay simply misses (ErrNotFound). The
// token endpoint's reuse-prevention decorator is responsible for noticing
// a grant that already has issued tokens and revoking them; this handler
// only ever sees a code exactly once in the non-replay path.
type AuthorizationCodeHandler struct {
	codes *storage.CodeService
}

// NewAuthorizationCodeHandler constructs an AuthorizationCodeHandler over
// codes.
func NewAuthorizationCodeHandler(codes *storage.CodeService) *AuthorizationCodeHandler {
	return &AuthorizationCodeHandler{codes: codes}
}

// GrantType implements Handler.
func (h *AuthorizationCodeHandler) GrantType() string { return "authorization_code" }

// Authorize implements Handler.
func (h *AuthorizationCodeHandler) Authorize(ctx context.Context, req Request, authenticated *client.Info) result.Result[Outcome] {
	if req.Code == "" {
		return result.Failure[Outcome](result.New(result.InvalidRequest, "code is required"))
	}

	grant, err := h.codes.ConsumeCode(ctx, req.Code)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return result.Failure[Outcome](result.New(result.InvalidGrant, "authorization code is unknown, expired, or already used"))
		}
		return result.Failure[Outcome](result.New(result.ServerError, "failed to consume authorization code"))
	}

	if grant.Context.ClientID != authenticated.ClientID {
		return result.Failure[Outcome](result.New(result.InvalidGrant, "authorization code was not issued to this client"))
	}

	if grant.Context.RedirectURI != "" && grant.Context.RedirectURI != req.RedirectURI {
		return result.Failure[Outcome](result.New(result.InvalidGrant, "redirect_uri does not match the value used at authorization time"))
	}

	if err := verifyPKCE(grant.Context, req.CodeVerifier); err != nil {
		return result.Failure[Outcome](result.New(result.InvalidGrant, err.Error()))
	}

	return result.Success(Outcome{Grant: *grant})
}

// verifyPKCE checks verifier against the code_challenge recorded at
// authorization time, when one was recorded. Only S256 is accepted; the
// "plain" method is rejected even if somehow persisted, since the
// authorization handler (C9's PKCE validator) never stores it.
func verifyPKCE(authCtx storage.AuthorizationContext, verifier string) error {
	if authCtx.CodeChallenge == "" {
		return nil
	}
	if verifier == "" {
		return errors.New("code_verifier is required")
	}
	if authCtx.CodeChallengeMethod != "" && authCtx.CodeChallengeMethod != "S256" {
		return errors.New("unsupported code_challenge_method")
	}

	computed := keys.ComputePKCEChallenge(verifier)
	if subtle.ConstantTimeCompare([]byte(computed), []byte(authCtx.CodeChallenge)) != 1 {
		return errors.New("code_verifier does not match the code_challenge")
	}
	return nil
}
