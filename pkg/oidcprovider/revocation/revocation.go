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

// Package revocation implements the RFC 7009 revocation and RFC 7662
// introspection endpoints (C14).
package revocation

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/oidcprovider/pkg/oidcprovider/client"
	"github.com/oidcprovider/pkg/oidcprovider/logging"
	"github.com/oidcprovider/pkg/oidcprovider/response"
	"github.com/oidcprovider/pkg/oidcprovider/result"
	"github.com/oidcprovider/pkg/oidcprovider/storage"
	"github.com/oidcprovider/pkg/oidcprovider/token"
)

// Config supplies Handler's collaborators.
type Config struct {
	Authenticator *client.Authenticator
	Tokens        *token.Service
	Registry      *storage.TokenRegistry
}

// Handler implements C14.
type Handler struct {
	auth       *client.Authenticator
	tokens     *token.Service
	registry   *storage.TokenRegistry
	introspect singleflight.Group
}

// New builds a Handler from cfg.
func New(cfg Config) *Handler {
	return &Handler{auth: cfg.Authenticator, tokens: cfg.Tokens, registry: cfg.Registry}
}

// Request carries the wire fields common to both endpoints.
type Request struct {
	Auth          client.Request
	Token         string
	TokenTypeHint string
}

// Revoke implements RFC 7009 §2.1: the caller authenticates, and if Token
// parses as a JWT issued to the caller's own client_id, its jti is marked
// Revoked for the remainder of its lifetime. Every other outcome —
// unparseable token, unknown jti, token issued to a different client — is
// reported as a silent success, per RFC 7009's requirement that revocation
// never leaks whether a token existed or belonged to someone else.
func (h *Handler) Revoke(ctx context.Context, req Request) result.Result[struct{}] {
	authResult := h.auth.Authenticate(ctx, req.Auth)
	if !authResult.Ok() {
		return result.Failure[struct{}](authResult.Err())
	}
	info := authResult.Value()

	if req.Token == "" {
		return result.Success(struct{}{})
	}

	claims, err := h.tokens.Validate(ctx, req.Token)
	if err != nil {
		logging.Debugw("revocation request presented a token that does not parse or verify", "error", err)
		return result.Success(struct{}{})
	}
	if claims.ClientID() != info.ClientID {
		logging.Warnw("revocation request attempted to revoke a token issued to a different client",
			"client_id", info.ClientID)
		return result.Success(struct{}{})
	}
	if claims.ID == "" {
		return result.Success(struct{}{})
	}

	expiresAt := time.Now().Add(time.Minute)
	if claims.Expiry != nil {
		expiresAt = claims.Expiry.Time()
	}
	if err := h.registry.Revoke(ctx, claims.ID, expiresAt); err != nil {
		logging.Errorw("failed to revoke token", "jti", claims.ID, "error", err)
	}
	return result.Success(struct{}{})
}

// Introspect implements RFC 7662 §2.1. The caller must authenticate with a
// confidential-client or resource-server credential; a client registered
// for only "none" cannot introspect. Concurrent introspections of the same
// token are de-duplicated through a singleflight group, since the storage
// lookup behind IsActive is identical for every caller asking about the
// same jti within the same instant.
func (h *Handler) Introspect(ctx context.Context, req Request) result.Result[response.IntrospectionResponse] {
	authResult := h.auth.Authenticate(ctx, req.Auth)
	if !authResult.Ok() {
		return result.Failure[response.IntrospectionResponse](authResult.Err())
	}
	if isPublicOnly(authResult.Value()) {
		return result.Failure[response.IntrospectionResponse](result.New(result.InvalidClient,
			"introspection requires a confidential client or resource server credential"))
	}

	if req.Token == "" {
		return result.Success(response.Inactive())
	}

	v, err, _ := h.introspect.Do(req.Token, func() (any, error) {
		return h.resolve(ctx, req.Token)
	})
	if err != nil {
		return result.Success(response.Inactive())
	}
	return result.Success(v.(response.IntrospectionResponse))
}

func (h *Handler) resolve(ctx context.Context, raw string) (response.IntrospectionResponse, error) {
	claims, err := h.tokens.Validate(ctx, raw)
	if err != nil {
		return response.Inactive(), nil
	}

	if claims.ID != "" {
		active, err := h.registry.IsActive(ctx, claims.ID)
		if err != nil {
			return response.Inactive(), err
		}
		if !active {
			return response.Inactive(), nil
		}
	}

	tokenType := "Bearer"
	if headers, err := token.Headers(raw); err == nil {
		if typ, ok := headers["typ"].(string); ok && typ == string(token.KindRefresh) {
			tokenType = "refresh_token"
		}
	}

	resp := response.IntrospectionResponse{
		Active:    true,
		Scope:     strings.Join(claims.Scope(), " "),
		ClientID:  claims.ClientID(),
		Subject:   claims.Subject,
		TokenType: tokenType,
	}
	if claims.Expiry != nil {
		resp.ExpiresAt = claims.Expiry.Time().Unix()
	}
	if claims.IssuedAt != nil {
		resp.IssuedAt = claims.IssuedAt.Time().Unix()
	}
	if len(claims.Audience) > 0 {
		resp.Audience = strings.Join(claims.Audience, " ")
	}
	return resp, nil
}

// isPublicOnly reports whether info has no authentication method stronger
// than "none", making it ineligible to call the introspection endpoint.
func isPublicOnly(info *client.Info) bool {
	for _, m := range info.AuthMethods {
		if m != client.MethodNone {
			return false
		}
	}
	return true
}
