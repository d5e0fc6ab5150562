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

// Package authorize implements the authorization handler (C10): the
// START -> VALIDATED -> {DIRECT_ERROR, login/consent redirect, ISSUE}
// state machine of spec.md §4.5, built on top of the composite request
// fetcher (C8) and context validators (C9) already implemented by the
// fetch and validate packages, plus a Pushed Authorization Request
// variant that terminates at VALIDATED.
package authorize

import (
	"context"
	"net/url"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/oidcprovider/pkg/oidcprovider/client"
	"github.com/oidcprovider/pkg/oidcprovider/fetch"
	"github.com/oidcprovider/pkg/oidcprovider/logging"
	"github.com/oidcprovider/pkg/oidcprovider/response"
	"github.com/oidcprovider/pkg/oidcprovider/result"
	"github.com/oidcprovider/pkg/oidcprovider/storage"
	"github.com/oidcprovider/pkg/oidcprovider/token"
	"github.com/oidcprovider/pkg/oidcprovider/validate"
)

// UserAuthenticator is the external collaborator resolving whether the
// incoming request carries an already-authenticated end-user session. A
// nil session with ok=false is not itself a failure; it means the handler
// must transition to REDIRECT_TO_LOGIN (or ERROR(login_required) under
// prompt=none).
type UserAuthenticator interface {
	Authenticate(ctx context.Context, vctx *validate.ValidationContext) (session *storage.AuthSession, ok bool, err error)
}

// ConsentChecker is the external collaborator deciding whether an
// already-authenticated session still needs an interactive consent step
// for this client/scope combination.
type ConsentChecker interface {
	NeedsConsent(ctx context.Context, session *storage.AuthSession, vctx *validate.ValidationContext) (bool, error)
}

// State distinguishes the non-error outcomes of Authorize: either tokens
// were issued, or the caller must route the user agent to an interactive
// login or consent step and re-invoke Authorize once that completes
// (rendering the login/consent UI itself is a Non-goal; see spec.md §1).
type State int

// Authorize outcome states.
const (
	StateIssued State = iota
	StateLoginRequired
	StateConsentRequired
)

// Decision is the successful result of Authorize. Redirect is populated
// only when State is StateIssued.
type Decision struct {
	State    State
	Redirect response.Redirect
}

// Lifetimes bounds the TTLs Handler uses for artifacts it issues directly
// (codes, tokens minted at the authorize endpoint for implicit/hybrid
// response types, and PAR requests).
type Lifetimes struct {
	Code        time.Duration
	AccessToken time.Duration
	IDToken     time.Duration
	PAR         time.Duration
}

func (l Lifetimes) withDefaults() Lifetimes {
	if l.Code <= 0 {
		l.Code = 10 * time.Minute
	}
	if l.AccessToken <= 0 {
		l.AccessToken = time.Hour
	}
	if l.IDToken <= 0 {
		l.IDToken = time.Hour
	}
	if l.PAR <= 0 {
		l.PAR = 60 * time.Second
	}
	return l
}

// Handler implements C10.
type Handler struct {
	registry   client.Registry
	fetchChain fetch.Stage
	validators []validate.Validator

	users   UserAuthenticator
	consent ConsentChecker

	codes  *storage.CodeService
	par    *storage.PARStore
	tokens *token.Service

	issuer       string
	lifetimes    Lifetimes
	pairwiseSalt []byte
	now          func() time.Time
}

// Config supplies Handler's collaborators and policy.
type Config struct {
	Registry     client.Registry
	FetchChain   fetch.Stage
	Validators   []validate.Validator
	Users        UserAuthenticator
	Consent      ConsentChecker
	Codes        *storage.CodeService
	PAR          *storage.PARStore
	Tokens       *token.Service
	Issuer       string
	Lifetimes    Lifetimes
	PairwiseSalt []byte
}

// New builds a Handler from cfg.
func New(cfg Config) *Handler {
	return &Handler{
		registry:     cfg.Registry,
		fetchChain:   cfg.FetchChain,
		validators:   cfg.Validators,
		users:        cfg.Users,
		consent:      cfg.Consent,
		codes:        cfg.Codes,
		par:          cfg.PAR,
		tokens:       cfg.Tokens,
		issuer:       cfg.Issuer,
		lifetimes:    cfg.Lifetimes.withDefaults(),
		pairwiseSalt: cfg.PairwiseSalt,
		now:          time.Now,
	}
}

// failWith builds an OidcError, attaching the redirect info vctx has
// already resolved (mirroring validate.ValidationContext's unexported
// fail helper, which this package cannot call directly).
func failWith(vctx *validate.ValidationContext, code, description string) *result.OidcError {
	err := result.New(code, description)
	if vctx.RedirectURI != "" {
		return err.WithRedirect(vctx.RedirectURI, vctx.ResponseMode)
	}
	return err
}

// resolve runs the fetch chain and validator chain over req, producing a
// fully widened ValidationContext or a failure.
func (h *Handler) resolve(ctx context.Context, req storage.AuthorizationRequest) (*validate.ValidationContext, *result.OidcError) {
	fetched := h.fetchChain(ctx, req)
	if !fetched.Ok() {
		return nil, fetched.Err()
	}

	vctx := &validate.ValidationContext{Request: fetched.Value()}
	if err := validate.Run(ctx, vctx, h.validators...); err != nil {
		return nil, err
	}
	return vctx, nil
}

// Authorize runs the full C10 state machine for an incoming authorization
// request.
func (h *Handler) Authorize(ctx context.Context, req storage.AuthorizationRequest) result.Result[Decision] {
	vctx, err := h.resolve(ctx, req)
	if err != nil {
		logging.Debugw("authorize request failed validation", "error_code", err.ErrorCode)
		return result.Failure[Decision](err)
	}

	promptNone := slices.Contains(vctx.Prompts, "none")

	session, authenticated, authErr := h.users.Authenticate(ctx, vctx)
	if authErr != nil {
		logging.Errorw("user authenticator failed", "error", authErr)
		return result.Failure[Decision](failWith(vctx, result.ServerError, "failed to resolve user session"))
	}
	if !authenticated {
		if promptNone {
			return result.Failure[Decision](failWith(vctx, result.LoginRequired, "no active user session and prompt=none was requested"))
		}
		return result.Success(Decision{State: StateLoginRequired})
	}

	if h.consent != nil {
		needsConsent, consentErr := h.consent.NeedsConsent(ctx, session, vctx)
		if consentErr != nil {
			logging.Errorw("consent checker failed", "error", consentErr)
			return result.Failure[Decision](failWith(vctx, result.ServerError, "failed to resolve consent status"))
		}
		if needsConsent {
			if promptNone {
				return result.Failure[Decision](failWith(vctx, result.ConsentRequired, "interactive consent is required and prompt=none was requested"))
			}
			return result.Success(Decision{State: StateConsentRequired})
		}
	}

	redirect, issueErr := h.issue(ctx, vctx, session, req.State)
	if issueErr != nil {
		return result.Failure[Decision](failWith(vctx, result.ServerError, issueErr.Error()))
	}
	return result.Success(Decision{State: StateIssued, Redirect: redirect})
}

// issue performs the ISSUE state: minting whichever of code/access_token/
// id_token the response_type calls for and assembling the redirect.
func (h *Handler) issue(ctx context.Context, vctx *validate.ValidationContext, session *storage.AuthSession, state string) (response.Redirect, error) {
	now := h.now()
	session.AddAffectedClient(vctx.Client.ClientID)

	grant := storage.AuthorizedGrant{
		Session: *session,
		Context: storage.AuthorizationContext{
			ClientID:            vctx.Client.ClientID,
			Scopes:              vctx.Scopes,
			Resources:           vctx.Resources,
			Claims:              vctx.Claims,
			Nonce:               vctx.Nonce,
			SectorID:            vctx.Client.SectorIdentifier,
			Pairwise:            vctx.Client.SubjectType == client.SubjectTypePairwise,
			RedirectURI:         vctx.RedirectURI,
			CodeChallenge:       vctx.CodeChallenge,
			CodeChallengeMethod: vctx.CodeChallengeMethod,
		},
	}

	subject := h.subjectFor(vctx.Client, session.Subject)
	audience := vctx.Resources
	if len(audience) == 0 {
		audience = []string{h.issuer}
	}

	params := url.Values{}
	if state != "" {
		params.Set("state", state)
	}

	var accessToken, authCode string

	if slices.Contains(vctx.ResponseTypes, "code") {
		code, err := h.codes.IssueCode(ctx, grant, h.lifetimes.Code)
		if err != nil {
			return response.Redirect{}, err
		}
		authCode = code
		params.Set("code", code)
	}

	if slices.Contains(vctx.ResponseTypes, "token") {
		jti := uuid.NewString()
		expiresAt := now.Add(h.lifetimes.AccessToken)
		at, err := h.tokens.IssueAccessToken(ctx, token.AccessTokenInput{
			Issuer:    h.issuer,
			Subject:   subject,
			Audience:  audience,
			ClientID:  vctx.Client.ClientID,
			Scopes:    vctx.Scopes,
			JTI:       jti,
			IssuedAt:  now,
			ExpiresAt: expiresAt,
		})
		if err != nil {
			return response.Redirect{}, err
		}
		accessToken = at
		grant.AppendIssuedToken(jti, expiresAt)
		params.Set("access_token", at)
		params.Set("token_type", "Bearer")
	}

	if slices.Contains(vctx.ResponseTypes, "id_token") {
		idt, err := h.tokens.IssueIDToken(ctx, token.IDTokenInput{
			Issuer:            h.issuer,
			Subject:           subject,
			Audience:          []string{vctx.Client.ClientID},
			Nonce:             vctx.Nonce,
			AuthTime:          session.AuthTime,
			ACR:               session.ACR,
			AMR:               session.AMR,
			IssuedAt:          now,
			ExpiresAt:         now.Add(h.lifetimes.IDToken),
			Claims:            idTokenClaims(vctx.Claims),
			AccessToken:       accessToken,
			AuthorizationCode: authCode,
		})
		if err != nil {
			return response.Redirect{}, err
		}
		params.Set("id_token", idt)
	}

	return response.NewRedirect(vctx.RedirectURI, vctx.ResponseMode, params), nil
}

// subjectFor resolves the `sub` value for c, applying the pairwise
// transform when the client's subject type requires it.
func (h *Handler) subjectFor(c *client.Info, realSubject string) string {
	if c.SubjectType != client.SubjectTypePairwise {
		return realSubject
	}
	return token.PairwiseSubject(c.SectorIdentifier, realSubject, h.pairwiseSalt)
}

// idTokenClaims extracts the id_token-scoped requested claims, if any,
// from the OpenID claims request parameter.
func idTokenClaims(claims map[string]any) map[string]any {
	if claims == nil {
		return nil
	}
	idClaims, _ := claims["id_token"].(map[string]any)
	return idClaims
}

// PushedAuthorizationRequest implements the RFC 9126 PAR variant: the same
// fetch+validate pipeline, terminating at VALIDATED and storing the
// resolved request under a fresh single-use URN instead of issuing
// anything.
func (h *Handler) PushedAuthorizationRequest(ctx context.Context, req storage.AuthorizationRequest) result.Result[response.ParResponse] {
	vctx, err := h.resolve(ctx, req)
	if err != nil {
		return result.Failure[response.ParResponse](err)
	}

	stored := storage.AuthorizationRequest{
		ClientID:            vctx.Client.ClientID,
		ResponseType:        req.ResponseType,
		ResponseMode:        vctx.ResponseMode,
		RedirectURI:         vctx.RedirectURI,
		Scope:               req.Scope,
		State:               req.State,
		Nonce:               vctx.Nonce,
		CodeChallenge:       vctx.CodeChallenge,
		CodeChallengeMethod: vctx.CodeChallengeMethod,
		Resources:           vctx.Resources,
		Claims:              vctx.Claims,
		Prompt:              req.Prompt,
		MaxAge:              req.MaxAge,
		ACRValues:           req.ACRValues,
		Extra:               req.Extra,
	}

	urn, storeErr := h.par.Store(ctx, stored, h.lifetimes.PAR)
	if storeErr != nil {
		return result.Failure[response.ParResponse](failWith(vctx, result.ServerError, storeErr.Error()))
	}

	return result.Success(response.ParResponse{
		RequestURI: urn,
		ExpiresIn:  int64(h.lifetimes.PAR / time.Second),
	})
}
