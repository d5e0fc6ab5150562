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
	"fmt"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"

	"github.com/oidcprovider/pkg/oidcprovider/client"
	"github.com/oidcprovider/pkg/oidcprovider/result"
	"github.com/oidcprovider/pkg/oidcprovider/storage"
)

var errNoIssuerKeys = errors.New("issuer has no registered keys")

var jwtBearerAlgorithms = []jose.SignatureAlgorithm{
	jose.RS256, jose.RS384, jose.RS512,
	jose.PS256, jose.PS384, jose.PS512,
	jose.ES256, jose.ES384, jose.ES512,
	jose.EdDSA,
}

// JWTBearerHandler implements `urn:ietf:params:oauth:grant-type:jwt-bearer`
// (RFC 7523): the assertion is minted by a trusted third-party issuer
// rather than the presenting client, so authorization rests on the
// assertion's signature and claims, not on client authentication alone.
// Replay is prevented the same way as any other token: the assertion's
// `jti` is checked and then marked used in the shared token registry
// (C4), so a captured assertion cannot be redeemed twice even within its
// validity window.
type JWTBearerHandler struct {
	issuers *StaticIssuerDirectory
	jtis    *storage.TokenRegistry
	now     func() time.Time
}

// NewJWTBearerHandler constructs a JWTBearerHandler.
func NewJWTBearerHandler(issuers *StaticIssuerDirectory, jtis *storage.TokenRegistry) *JWTBearerHandler {
	return &JWTBearerHandler{issuers: issuers, jtis: jtis, now: time.Now}
}

// GrantType implements Handler.
func (h *JWTBearerHandler) GrantType() string { return "urn:ietf:params:oauth:grant-type:jwt-bearer" }

// Authorize implements Handler.
func (h *JWTBearerHandler) Authorize(ctx context.Context, req Request, authenticated *client.Info) result.Result[Outcome] {
	if req.Assertion == "" {
		return result.Failure[Outcome](result.New(result.InvalidRequest, "assertion is required"))
	}

	tok, err := jwt.ParseSigned(req.Assertion, jwtBearerAlgorithms)
	if err != nil {
		return result.Failure[Outcome](result.New(result.InvalidGrant, "assertion is malformed"))
	}

	var unverified jwt.Claims
	if err := tok.UnsafeClaimsWithoutVerification(&unverified); err != nil {
		return result.Failure[Outcome](result.New(result.InvalidGrant, "assertion claims could not be read"))
	}
	if unverified.Issuer == "" {
		return result.Failure[Outcome](result.New(result.InvalidGrant, "assertion is missing an issuer"))
	}

	issuer, ok := h.issuers.Lookup(unverified.Issuer)
	if !ok {
		return result.Failure[Outcome](result.New(result.InvalidGrant, "assertion issuer is not trusted"))
	}

	claims, err := verifyAgainstIssuerKeys(tok, issuer)
	if err != nil {
		return result.Failure[Outcome](result.New(result.InvalidGrant, "assertion signature does not verify against the issuer's keys"))
	}

	now := h.now()
	if claims.Expiry == nil || claims.Expiry.Time().Before(now) {
		return result.Failure[Outcome](result.New(result.InvalidGrant, "assertion has expired"))
	}
	if claims.Subject == "" {
		return result.Failure[Outcome](result.New(result.InvalidGrant, "assertion is missing a subject"))
	}
	if issuer.Subject != "" && issuer.Subject != claims.Subject {
		return result.Failure[Outcome](result.New(result.InvalidGrant, "assertion subject is not authorized for this issuer"))
	}
	if claims.ID == "" {
		return result.Failure[Outcome](result.New(result.InvalidGrant, "assertion is missing a jti"))
	}

	if active, err := h.jtis.IsActive(ctx, claims.ID); err != nil {
		return result.Failure[Outcome](result.New(result.ServerError, "failed to check assertion replay status"))
	} else if !active {
		return result.Failure[Outcome](result.New(result.InvalidGrant, "assertion has already been redeemed"))
	}

	scopes, err := resolveJWTBearerScope(req.Scope, issuer, authenticated)
	if err != nil {
		return result.Failure[Outcome](result.New(result.InvalidScope, err.Error()))
	}

	if err := h.jtis.MarkUsed(ctx, claims.ID, claims.Expiry.Time()); err != nil {
		return result.Failure[Outcome](result.New(result.ServerError, "failed to record assertion as used"))
	}

	grant := storage.AuthorizedGrant{
		Session: storage.AuthSession{
			Subject:  claims.Subject,
			IDP:      issuer.Issuer,
			AuthTime: now,
		},
		Context: storage.AuthorizationContext{
			ClientID:  authenticated.ClientID,
			Scopes:    scopes,
			Resources: req.Resources,
		},
	}

	return result.Success(Outcome{Grant: grant})
}

func verifyAgainstIssuerKeys(tok *jwt.JSONWebToken, issuer TrustedIssuer) (*jwt.Claims, error) {
	lastErr := errNoIssuerKeys
	for _, key := range issuer.JWKS.Keys {
		var claims jwt.Claims
		if err := tok.Claims(key.Key, &claims); err == nil {
			return &claims, nil
		} else {
			lastErr = err
		}
	}
	return nil, lastErr
}

func resolveJWTBearerScope(requested string, issuer TrustedIssuer, authenticated *client.Info) ([]string, error) {
	if requested == "" {
		return append([]string(nil), issuer.AllowedScopes...), nil
	}
	scopes := strings.Fields(requested)
	for _, s := range scopes {
		if !issuer.SupportsScope(s) {
			return nil, fmt.Errorf("issuer is not configured to vouch for scope %s", s)
		}
		if !authenticated.SupportsScope(s) {
			return nil, fmt.Errorf("client is not permitted to request scope %s", s)
		}
	}
	return scopes, nil
}
