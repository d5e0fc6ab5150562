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

// Package tokenendpoint implements the token handler and grant dispatcher
// (C11): authenticating the calling client, validating top-level request
// parameters, dispatching to the grant.Registry (C12), reconciling
// scope/resource narrowing, and issuing the final token response —
// including the authorization-code reuse-prevention decorator and
// refresh-token rotation spec.md §4.6 requires.
package tokenendpoint

import (
	"context"
	"net/url"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/oidcprovider/pkg/oidcprovider/client"
	"github.com/oidcprovider/pkg/oidcprovider/grant"
	"github.com/oidcprovider/pkg/oidcprovider/logging"
	"github.com/oidcprovider/pkg/oidcprovider/response"
	"github.com/oidcprovider/pkg/oidcprovider/result"
	"github.com/oidcprovider/pkg/oidcprovider/storage"
	"github.com/oidcprovider/pkg/oidcprovider/token"
)

// Lifetimes bounds the TTLs Handler assigns to issued tokens.
type Lifetimes struct {
	AccessToken  time.Duration
	RefreshToken time.Duration
	IDToken      time.Duration
}

func (l Lifetimes) withDefaults() Lifetimes {
	if l.AccessToken <= 0 {
		l.AccessToken = time.Hour
	}
	if l.RefreshToken <= 0 {
		l.RefreshToken = 7 * 24 * time.Hour
	}
	if l.IDToken <= 0 {
		l.IDToken = time.Hour
	}
	return l
}

// Handler implements C11.
type Handler struct {
	auth      *client.Authenticator
	grants    *grant.Registry
	codes     *storage.CodeService
	jtis      *storage.TokenRegistry
	refresh   *storage.RefreshGrantStore
	tokens    *token.Service
	issuer    string
	lifetimes Lifetimes
	salt      []byte
	now       func() time.Time
}

// Config supplies Handler's collaborators and policy.
type Config struct {
	Authenticator *client.Authenticator
	Grants        *grant.Registry
	Codes         *storage.CodeService
	TokenRegistry *storage.TokenRegistry
	RefreshGrants *storage.RefreshGrantStore
	Tokens        *token.Service
	Issuer        string
	Lifetimes     Lifetimes
	PairwiseSalt  []byte
}

// New builds a Handler from cfg.
func New(cfg Config) *Handler {
	return &Handler{
		auth:      cfg.Authenticator,
		grants:    cfg.Grants,
		codes:     cfg.Codes,
		jtis:      cfg.TokenRegistry,
		refresh:   cfg.RefreshGrants,
		tokens:    cfg.Tokens,
		issuer:    cfg.Issuer,
		lifetimes: cfg.Lifetimes.withDefaults(),
		salt:      cfg.PairwiseSalt,
		now:       time.Now,
	}
}

// Request is the wire-level shape of an incoming token request, combining
// the client-authentication credentials (C2) with the grant parameters
// (C12's grant-agnostic Request).
type Request struct {
	Auth  client.Request
	Grant grant.Request
	// Resources carries the raw, unparsed resource indicator values so
	// they can be validated as absolute URIs without a fragment before
	// any grant handler sees them.
	Resources []string
}

// Handle authenticates the caller, dispatches to the appropriate grant
// handler, and issues the resulting token response.
func (h *Handler) Handle(ctx context.Context, req Request) result.Result[response.TokenResponse] {
	authResult := h.auth.Authenticate(ctx, req.Auth)
	if !authResult.Ok() {
		logging.Infow("token request client authentication failed", "error_code", authResult.Err().ErrorCode)
		return result.Failure[response.TokenResponse](authResult.Err())
	}
	authenticated := authResult.Value()

	if err := validateResources(req.Resources); err != nil {
		return result.Failure[response.TokenResponse](err)
	}

	handler, ok := h.grants.Lookup(req.Grant.GrantType)
	if !ok {
		return result.Failure[response.TokenResponse](result.New(result.UnsupportedGrantType, "grant_type is not supported"))
	}

	outcome := handler.Authorize(ctx, req.Grant, authenticated)
	if !outcome.Ok() {
		return result.Failure[response.TokenResponse](outcome.Err())
	}

	processed := outcome.Value()

	if req.Grant.GrantType == "authorization_code" && h.preventCodeReuse(ctx, req.Grant.Code, &processed) {
		return result.Failure[response.TokenResponse](result.New(result.InvalidGrant, "authorization code has already been used"))
	}

	narrowed, resErr := narrowResources(processed.Grant, req.Resources)
	if resErr != nil {
		return result.Failure[response.TokenResponse](resErr)
	}
	processed.Grant = narrowed

	tr, rotateErr := h.rotateRefreshToken(ctx, req.Grant, authenticated, &processed)
	if rotateErr != nil {
		return result.Failure[response.TokenResponse](rotateErr)
	}

	resp := h.issueTokens(ctx, authenticated, &processed, tr)
	if resp.Ok() && req.Grant.GrantType == "authorization_code" {
		if err := h.codes.RetainForReuseDetection(ctx, req.Grant.Code, processed.Grant); err != nil {
			logging.Errorw("failed to retain authorization code for reuse detection", "error", err)
		}
	}
	return resp
}

// preventCodeReuse implements the authorization-code reuse-prevention
// decorator: a grant that already carries issued-token fingerprints means
// the code was replayed (the grant was re-inserted by
// CodeService.RetainForReuseDetection). Every token it previously issued
// is revoked and the request is denied.
func (h *Handler) preventCodeReuse(ctx context.Context, code string, outcome *grant.Outcome) (denied bool) {
	if !outcome.Grant.HasIssuedTokens() {
		return false
	}

	logging.Warnw("authorization code replay detected, revoking all previously issued tokens", "code_suffix", suffixFor(code))
	for _, fp := range outcome.Grant.IssuedTokens {
		if err := h.jtis.Revoke(ctx, fp.JTI, fp.ExpiresAt); err != nil {
			logging.Errorw("failed to revoke token during reuse detection", "jti", fp.JTI, "error", err)
		}
	}
	return true
}

func suffixFor(s string) string {
	if len(s) <= 6 {
		return s
	}
	return s[len(s)-6:]
}

// rotatedRefresh carries the refresh token string to surface in the
// response, which may be the freshly rotated token, the reused token
// unchanged, or empty when this grant does not produce one.
type rotatedRefresh struct {
	token string
}

// rotateRefreshToken implements refresh-token rotation: when the incoming
// request was itself a refresh_token grant and the authenticated client
// does not allow reuse, the consumed jti is revoked, its backing grant
// record removed, and a fresh refresh token minted below in issueTokens.
// When the client allows reuse, the same token is returned unchanged.
func (h *Handler) rotateRefreshToken(ctx context.Context, req grant.Request, authenticated *client.Info, outcome *grant.Outcome) (*rotatedRefresh, *result.OidcError) {
	if req.GrantType != "refresh_token" || outcome.RefreshJTI == "" {
		return nil, nil
	}

	if authenticated.AllowRefreshTokenReuse {
		return &rotatedRefresh{token: req.RefreshToken}, nil
	}

	expiresAt := h.now().Add(h.lifetimes.RefreshToken)
	if err := h.jtis.Revoke(ctx, outcome.RefreshJTI, expiresAt); err != nil {
		return nil, result.New(result.ServerError, "failed to revoke rotated refresh token")
	}
	if err := h.refresh.Delete(ctx, outcome.RefreshJTI); err != nil {
		return nil, result.New(result.ServerError, "failed to delete rotated refresh token grant")
	}
	return nil, nil
}

// issueTokens mints the final response: an access token always, a refresh
// token when offline_access was granted and the client allows it (a
// refresh_token grant by a client that allows reuse gets the presented
// token back unchanged instead), and an id_token when openid was granted.
func (h *Handler) issueTokens(ctx context.Context, authenticated *client.Info, outcome *grant.Outcome, rotated *rotatedRefresh) result.Result[response.TokenResponse] {
	now := h.now()
	grantCtx := outcome.Grant.Context

	subject := grantCtx.ClientID
	if outcome.Grant.Session.Subject != "" {
		subject = h.subjectFor(authenticated, outcome.Grant.Session.Subject)
	}

	audience := grantCtx.Resources
	if len(audience) == 0 {
		audience = []string{h.issuer}
	}

	accessJTI := uuid.NewString()
	accessExpiresAt := now.Add(h.lifetimes.AccessToken)
	accessToken, err := h.tokens.IssueAccessToken(ctx, token.AccessTokenInput{
		Issuer:    h.issuer,
		Subject:   subject,
		Audience:  audience,
		ClientID:  grantCtx.ClientID,
		Scopes:    grantCtx.Scopes,
		JTI:       accessJTI,
		IssuedAt:  now,
		ExpiresAt: accessExpiresAt,
	})
	if err != nil {
		return result.Failure[response.TokenResponse](result.New(result.ServerError, "failed to issue access token"))
	}
	outcome.Grant.AppendIssuedToken(accessJTI, accessExpiresAt)

	resp := response.TokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(h.lifetimes.AccessToken / time.Second),
		Scope:       joinScopes(grantCtx.Scopes),
	}

	if rotated != nil && rotated.token != "" {
		resp.RefreshToken = rotated.token
	} else if shouldIssueRefreshToken(grantCtx.Scopes, authenticated) {
		refreshJTI := uuid.NewString()
		refreshExpiresAt := now.Add(h.lifetimes.RefreshToken)
		refreshToken, err := h.tokens.IssueRefreshToken(ctx, token.RefreshTokenInput{
			Issuer:    h.issuer,
			Subject:   subject,
			ClientID:  grantCtx.ClientID,
			Scopes:    grantCtx.Scopes,
			JTI:       refreshJTI,
			IssuedAt:  now,
			ExpiresAt: refreshExpiresAt,
		})
		if err != nil {
			return result.Failure[response.TokenResponse](result.New(result.ServerError, "failed to issue refresh token"))
		}
		if err := h.refresh.Store(ctx, refreshJTI, outcome.Grant, h.lifetimes.RefreshToken); err != nil {
			return result.Failure[response.TokenResponse](result.New(result.ServerError, "failed to store refresh token grant"))
		}
		outcome.Grant.AppendIssuedToken(refreshJTI, refreshExpiresAt)
		resp.RefreshToken = refreshToken
	}

	if slices.Contains(grantCtx.Scopes, "openid") {
		idToken, err := h.tokens.IssueIDToken(ctx, token.IDTokenInput{
			Issuer:      h.issuer,
			Subject:     subject,
			Audience:    []string{grantCtx.ClientID},
			Nonce:       grantCtx.Nonce,
			AuthTime:    outcome.Grant.Session.AuthTime,
			ACR:         outcome.Grant.Session.ACR,
			AMR:         outcome.Grant.Session.AMR,
			IssuedAt:    now,
			ExpiresAt:   now.Add(h.lifetimes.IDToken),
			Claims:      idTokenClaims(grantCtx.Claims),
			AccessToken: accessToken,
		})
		if err != nil {
			return result.Failure[response.TokenResponse](result.New(result.ServerError, "failed to issue id token"))
		}
		resp.IDToken = idToken
	}

	return result.Success(resp)
}

// shouldIssueRefreshToken reports whether a fresh refresh token should be
// minted: the grant carries offline_access and the client is allowed to
// request it. Called only once the reuse-unchanged case has already been
// handled by the caller.
func shouldIssueRefreshToken(scopes []string, c *client.Info) bool {
	return slices.Contains(scopes, "offline_access") && c.OfflineAccessAllowed
}

func (h *Handler) subjectFor(c *client.Info, realSubject string) string {
	if c.SubjectType != client.SubjectTypePairwise {
		return realSubject
	}
	return token.PairwiseSubject(c.SectorIdentifier, realSubject, h.salt)
}

func idTokenClaims(claims map[string]any) map[string]any {
	if claims == nil {
		return nil
	}
	idClaims, _ := claims["id_token"].(map[string]any)
	return idClaims
}

func joinScopes(scopes []string) string {
	if len(scopes) == 0 {
		return ""
	}
	out := scopes[0]
	for _, s := range scopes[1:] {
		out += " " + s
	}
	return out
}

// validateResources checks every requested resource indicator is an
// absolute URI without a fragment, per RFC 8707.
func validateResources(resources []string) *result.OidcError {
	for _, r := range resources {
		u, err := url.Parse(r)
		if err != nil || !u.IsAbs() {
			return result.New(result.InvalidTarget, "resource must be an absolute URI")
		}
		if u.Fragment != "" {
			return result.New(result.InvalidTarget, "resource must not contain a fragment")
		}
	}
	return nil
}

// narrowResources intersects the grant's previously recorded resources
// with the requested set. An empty requested set inherits the grant's
// resources unchanged; a non-empty request that has no overlap with the
// grant's is rejected.
func narrowResources(g storage.AuthorizedGrant, requested []string) (storage.AuthorizedGrant, *result.OidcError) {
	if len(requested) == 0 {
		return g, nil
	}
	if len(g.Context.Resources) == 0 {
		g.Context.Resources = requested
		return g, nil
	}

	allowed := make(map[string]bool, len(g.Context.Resources))
	for _, r := range g.Context.Resources {
		allowed[r] = true
	}

	var intersection []string
	for _, r := range requested {
		if allowed[r] {
			intersection = append(intersection, r)
		}
	}
	if len(intersection) == 0 {
		return g, result.New(result.InvalidTarget, "requested resource was not granted")
	}

	g.Context.Resources = intersection
	return g, nil
}
