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

package fetch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"

	"github.com/oidcprovider/pkg/oidcprovider/client"
	"github.com/oidcprovider/pkg/oidcprovider/result"
	"github.com/oidcprovider/pkg/oidcprovider/storage"
)

var requestObjectAlgorithms = []jose.SignatureAlgorithm{
	jose.RS256, jose.RS384, jose.RS512,
	jose.PS256, jose.PS384, jose.PS512,
	jose.ES256, jose.ES384, jose.ES512,
	jose.EdDSA,
}

// requestObjectFields are the claims not copied into Extra: those bound
// into AuthorizationRequest's named fields (client_id is set by the
// caller) and the JWT registered claims iss, aud, exp, iat, nbf and jti,
// which are dropped. Any other claim in the object is preserved as a
// string in Extra rather than dropped, per OIDC's extensibility rule.
var requestObjectFields = map[string]struct{}{
	"client_id": {}, "response_type": {}, "response_mode": {}, "redirect_uri": {},
	"scope": {}, "state": {}, "nonce": {}, "code_challenge": {}, "code_challenge_method": {},
	"resource": {}, "claims": {}, "prompt": {}, "max_age": {}, "acr_values": {},
	"iss": {}, "aud": {}, "exp": {}, "iat": {}, "nbf": {}, "jti": {},
}

// RequestObjectFetcher validates and merges a signed JWT request object
// (inline, or one resolved by RequestUriFetcher) into the in-flight
// request. JWT claims take precedence over any same-named value already on
// the request. Signature verification uses the issuing client's
// registered JWKS, never a shared secret, since a request object's whole
// purpose is non-repudiation.
func RequestObjectFetcher(registry client.Registry) Stage {
	return func(ctx context.Context, req storage.AuthorizationRequest) result.Result[storage.AuthorizationRequest] {
		raw := req.Extra["request"]
		if raw == "" {
			return result.Success(req)
		}

		tok, err := jwt.ParseSigned(raw, requestObjectAlgorithms)
		if err != nil {
			return result.Failure[storage.AuthorizationRequest](result.New(result.InvalidRequestObject,
				"request object is not a valid signed JWT"))
		}

		var unverified map[string]any
		if err := tok.UnsafeClaimsWithoutVerification(&unverified); err != nil {
			return result.Failure[storage.AuthorizationRequest](result.New(result.InvalidRequestObject,
				"unable to parse request object claims"))
		}

		clientID, _ := unverified["client_id"].(string)
		if clientID == "" {
			clientID = req.ClientID
		}
		if clientID == "" {
			return result.Failure[storage.AuthorizationRequest](result.New(result.InvalidRequestObject,
				"unable to determine client_id for request object verification"))
		}

		info, ok, err := registry.Lookup(ctx, clientID)
		if err != nil {
			return result.Failure[storage.AuthorizationRequest](result.New(result.ServerError, err.Error()))
		}
		if !ok {
			return result.Failure[storage.AuthorizationRequest](result.New(result.InvalidClient, "unknown client"))
		}
		if info.JWKS == nil || len(info.JWKS.Keys) == 0 {
			return result.Failure[storage.AuthorizationRequest](result.New(result.InvalidRequestObject,
				"client has no registered keys to verify a request object"))
		}

		var claims map[string]any
		verified := false
		for _, key := range info.JWKS.Keys {
			var candidate map[string]any
			if err := tok.Claims(key.Key, &candidate); err == nil {
				claims = candidate
				verified = true
				break
			}
		}
		if !verified {
			return result.Failure[storage.AuthorizationRequest](result.New(result.InvalidRequestObject,
				"request object signature verification failed"))
		}

		next := mergeRequestObjectClaims(cloneRequest(req), claims)
		next.ClientID = clientID
		return result.Success(next)
	}
}

// mergeRequestObjectClaims writes claims onto req field-by-field, JWT
// values winning over whatever the query string already set. Claims not
// understood as a named field are kept verbatim in Extra.
func mergeRequestObjectClaims(req storage.AuthorizationRequest, claims map[string]any) storage.AuthorizationRequest {
	if s, ok := claims["response_type"].(string); ok && s != "" {
		req.ResponseType = s
	}
	if s, ok := claims["response_mode"].(string); ok && s != "" {
		req.ResponseMode = s
	}
	if s, ok := claims["redirect_uri"].(string); ok && s != "" {
		req.RedirectURI = s
	}
	if s, ok := claims["scope"].(string); ok && s != "" {
		req.Scope = s
	}
	if s, ok := claims["state"].(string); ok && s != "" {
		req.State = s
	}
	if s, ok := claims["nonce"].(string); ok && s != "" {
		req.Nonce = s
	}
	if s, ok := claims["code_challenge"].(string); ok && s != "" {
		req.CodeChallenge = s
	}
	if s, ok := claims["code_challenge_method"].(string); ok && s != "" {
		req.CodeChallengeMethod = s
	}
	if s, ok := claims["prompt"].(string); ok && s != "" {
		req.Prompt = s
	}
	if s, ok := claims["max_age"]; ok {
		req.MaxAge = fmt.Sprintf("%v", s)
	}
	if s, ok := claims["acr_values"].(string); ok && s != "" {
		req.ACRValues = s
	}
	if v, ok := claims["resource"]; ok {
		req.Resources = toStringSlice(v)
	}
	if m, ok := claims["claims"].(map[string]any); ok {
		req.Claims = m
	}

	if req.Extra == nil {
		req.Extra = map[string]string{}
	}
	for k, v := range claims {
		if _, known := requestObjectFields[k]; known && k != "client_id" {
			continue
		}
		if k == "client_id" {
			continue
		}
		req.Extra[k] = stringifyClaim(v)
	}
	delete(req.Extra, "request")

	return req
}

func toStringSlice(v any) []string {
	switch val := v.(type) {
	case string:
		return []string{val}
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func stringifyClaim(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
