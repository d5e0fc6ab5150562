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

package token

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"

	"github.com/oidcprovider/pkg/oidcprovider/logging"
)

// ErrTokenExpired is returned by Validate when the token's `exp` claim
// has passed.
var ErrTokenExpired = errors.New("token has expired")

// ErrWrongKind reports a token whose `typ` header does not match the
// expected Kind. Nothing in this package returns it; Validate does not
// check `typ`.
var ErrWrongKind = errors.New("token presented at the wrong endpoint")

// Claims is the decoded, verified claim set of a token, plus its raw
// extension claims for callers that need fields outside the registered
// set (scope, client_id, nonce, acr, amr, at_hash, c_hash, ...).
type Claims struct {
	jwt.Claims
	Extra map[string]any
}

// Scope returns the space-separated `scope` claim split into its parts.
func (c Claims) Scope() []string {
	raw, _ := c.Extra["scope"].(string)
	if raw == "" {
		return nil
	}
	return strings.Fields(raw)
}

// ClientID returns the `client_id` claim.
func (c Claims) ClientID() string {
	v, _ := c.Extra["client_id"].(string)
	return v
}

var allValidationAlgorithms = []jose.SignatureAlgorithm{
	jose.RS256, jose.RS384, jose.RS512,
	jose.PS256, jose.PS384, jose.PS512,
	jose.ES256, jose.ES384, jose.ES512,
	jose.EdDSA,
	jose.HS256, jose.HS384, jose.HS512,
}

// Validate parses and verifies raw against the Service's current signing
// key set (signing key plus any registered fallback/rotation keys),
// checking the signature and expiry. It does not check `typ`; a caller
// that needs to pin the token to a specific endpoint reads the header
// with Headers.
func (s *Service) Validate(ctx context.Context, raw string) (*Claims, error) {
	tok, err := jwt.ParseSigned(raw, allValidationAlgorithms)
	if err != nil {
		return nil, err
	}

	candidates, err := s.keys.PublicKeys(ctx)
	if err != nil {
		logging.Errorw("failed to obtain public keys for token validation", "error", err)
		return nil, err
	}

	var claims jwt.Claims
	var extra map[string]any
	verified := false
	for _, k := range candidates {
		var rawExtra map[string]any
		if err := tok.Claims(k.Key.Public(), &claims, &rawExtra); err == nil {
			extra = rawExtra
			verified = true
			break
		}
	}
	if !verified {
		return nil, errors.New("token signature does not verify against any known signing key")
	}

	if claims.Expiry != nil && claims.Expiry.Time().Before(time.Now()) {
		return nil, ErrTokenExpired
	}

	return &Claims{Claims: claims, Extra: extra}, nil
}

// Headers returns the unverified JOSE header of raw, primarily so a
// caller can inspect `typ` before deciding how to validate the token
// further (e.g. the token endpoint rejecting an access token presented
// as a refresh_token).
func Headers(raw string) (map[string]any, error) {
	tok, err := jwt.ParseSigned(raw, allValidationAlgorithms)
	if err != nil {
		return nil, err
	}
	if len(tok.Headers) == 0 {
		return map[string]any{}, nil
	}
	h := tok.Headers[0]
	out := map[string]any{"alg": string(h.Algorithm), "kid": h.KeyID}
	if typ, ok := h.ExtraHeaders[jose.HeaderKey("typ")]; ok {
		out["typ"] = typ
	}
	return out, nil
}
