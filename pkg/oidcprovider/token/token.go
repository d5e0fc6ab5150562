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

// Package token implements access/refresh/identity JWT issuance and
// validation (C5): building the claim sets spec.md §4.9 describes on top
// of a pluggable signing-key provider, and parsing/verifying tokens
// against that same key set.
package token

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"

	"github.com/oidcprovider/pkg/oidcprovider/keys"
	"github.com/oidcprovider/pkg/oidcprovider/logging"
)

// Kind distinguishes the three JWT flavors this service issues. It is
// carried in the `typ` JOSE header (for refresh tokens, per spec) so a
// validator can reject a token presented at the wrong endpoint without
// needing to inspect claims first.
type Kind string

const (
	KindAccess  Kind = "at+jwt"
	KindRefresh Kind = "refresh_token"
	KindID      Kind = "id_token"
)

// AccessTokenInput carries everything needed to build an RFC 9068 access
// token JWT.
type AccessTokenInput struct {
	Issuer    string
	Subject   string
	Audience  []string
	ClientID  string
	Scopes    []string
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Extra     map[string]any
}

// RefreshTokenInput carries everything needed to build a refresh token
// JWT. Besides the registered claims its payload carries only client_id
// and scope; on refresh the grant handler recovers the full
// AuthorizationContext from storage.RefreshGrantStore under the token's
// jti.
type RefreshTokenInput struct {
	Issuer    string
	Subject   string
	ClientID  string
	Scopes    []string
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// IDTokenInput carries everything needed to build an OpenID Connect
// identity token.
type IDTokenInput struct {
	Issuer    string
	Subject   string
	Audience  []string
	Nonce     string
	AuthTime  time.Time
	ACR       string
	AMR       []string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Claims    map[string]any

	// AccessToken/AuthorizationCode, when non-empty, cause at_hash/c_hash
	// to be computed and attached using the signing algorithm's hash.
	AccessToken       string
	AuthorizationCode string
}

// Service issues and validates JWTs using a signing-key Provider.
type Service struct {
	keys keys.Provider
}

// NewService builds a Service over a signing-key Provider.
func NewService(provider keys.Provider) *Service {
	return &Service{keys: provider}
}

// IssueAccessToken builds and signs an access token JWT.
func (s *Service) IssueAccessToken(ctx context.Context, in AccessTokenInput) (string, error) {
	claims := jwt.Claims{
		Issuer:    in.Issuer,
		Subject:   in.Subject,
		Audience:  jwt.Audience(in.Audience),
		Expiry:    jwt.NewNumericDate(in.ExpiresAt),
		IssuedAt:  jwt.NewNumericDate(in.IssuedAt),
		ID:        in.JTI,
	}
	extra := map[string]any{
		"client_id": in.ClientID,
		"scope":     strings.Join(in.Scopes, " "),
	}
	for k, v := range in.Extra {
		extra[k] = v
	}
	return s.sign(ctx, KindAccess, claims, extra)
}

// IssueRefreshToken builds and signs a refresh token JWT.
func (s *Service) IssueRefreshToken(ctx context.Context, in RefreshTokenInput) (string, error) {
	claims := jwt.Claims{
		Issuer:   in.Issuer,
		Subject:  in.Subject,
		Expiry:   jwt.NewNumericDate(in.ExpiresAt),
		IssuedAt: jwt.NewNumericDate(in.IssuedAt),
		ID:       in.JTI,
	}
	extra := map[string]any{
		"client_id": in.ClientID,
		"scope":     strings.Join(in.Scopes, " "),
	}
	return s.sign(ctx, KindRefresh, claims, extra)
}

// IssueIDToken builds and signs an identity token JWT, attaching
// at_hash/c_hash when the corresponding artifact is supplied.
func (s *Service) IssueIDToken(ctx context.Context, in IDTokenInput) (string, error) {
	signingKey, err := s.keys.SigningKey(ctx)
	if err != nil {
		logging.Errorw("failed to obtain signing key for id token", "error", err)
		return "", fmt.Errorf("failed to obtain signing key: %w", err)
	}

	claims := jwt.Claims{
		Issuer:   in.Issuer,
		Subject:  in.Subject,
		Audience: jwt.Audience(in.Audience),
		Expiry:   jwt.NewNumericDate(in.ExpiresAt),
		IssuedAt: jwt.NewNumericDate(in.IssuedAt),
	}
	extra := map[string]any{
		"auth_time": in.AuthTime.Unix(),
	}
	if in.Nonce != "" {
		extra["nonce"] = in.Nonce
	}
	if in.ACR != "" {
		extra["acr"] = in.ACR
	}
	if len(in.AMR) > 0 {
		extra["amr"] = in.AMR
	}
	for k, v := range in.Claims {
		extra[k] = v
	}
	if in.AccessToken != "" {
		hash, err := leftmostHash(signingKey.Algorithm, in.AccessToken)
		if err != nil {
			return "", err
		}
		extra["at_hash"] = hash
	}
	if in.AuthorizationCode != "" {
		hash, err := leftmostHash(signingKey.Algorithm, in.AuthorizationCode)
		if err != nil {
			return "", err
		}
		extra["c_hash"] = hash
	}

	return s.signWithKey(signingKey, KindID, claims, extra)
}

func (s *Service) sign(ctx context.Context, kind Kind, claims jwt.Claims, extra map[string]any) (string, error) {
	signingKey, err := s.keys.SigningKey(ctx)
	if err != nil {
		logging.Errorw("failed to obtain signing key", "kind", kind, "error", err)
		return "", fmt.Errorf("failed to obtain signing key: %w", err)
	}
	return s.signWithKey(signingKey, kind, claims, extra)
}

func (s *Service) signWithKey(signingKey *keys.SigningKeyData, kind Kind, claims jwt.Claims, extra map[string]any) (string, error) {
	opts := (&jose.SignerOptions{}).WithHeader("kid", signingKey.KeyID)
	if kind == KindRefresh {
		opts = opts.WithHeader("typ", string(KindRefresh))
	}

	signer, err := jose.NewSigner(jose.SigningKey{
		Algorithm: jose.SignatureAlgorithm(signingKey.Algorithm),
		Key:       signingKey.Key,
	}, opts)
	if err != nil {
		logging.Errorw("failed to construct token signer", "kind", kind, "key_id", signingKey.KeyID, "error", err)
		return "", fmt.Errorf("failed to construct signer: %w", err)
	}

	builder := jwt.Signed(signer).Claims(claims)
	if len(extra) > 0 {
		builder = builder.Claims(extra)
	}
	serialized, err := builder.Serialize()
	if err != nil {
		logging.Errorw("failed to serialize token", "kind", kind, "error", err)
		return "", fmt.Errorf("failed to serialize token: %w", err)
	}
	return serialized, nil
}
