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

package client

import (
	"errors"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

var allAssertionAlgorithms = []jose.SignatureAlgorithm{
	jose.HS256, jose.HS384, jose.HS512,
	jose.RS256, jose.RS384, jose.RS512,
	jose.PS256, jose.PS384, jose.PS512,
	jose.ES256, jose.ES384, jose.ES512,
}

// resolveAssertionClaims verifies assertion against info's registered
// keys, trying HMAC secrets (client_secret_jwt) before JWKS public keys
// (private_key_jwt), and reports which method's key family verified it.
func resolveAssertionClaims(info *Info, assertion string) (*jwt.Claims, AuthMethod, error) {
	tok, err := jwt.ParseSigned(assertion, allAssertionAlgorithms)
	if err != nil {
		return nil, "", err
	}

	now := time.Now()
	for _, s := range info.Secrets {
		if len(s.HMACKey) == 0 || !s.activeAt(now) {
			continue
		}
		var claims jwt.Claims
		if err := tok.Claims(s.HMACKey, &claims); err == nil {
			return &claims, MethodClientSecretJWT, nil
		}
	}

	if info.JWKS != nil {
		for _, key := range info.JWKS.Keys {
			var claims jwt.Claims
			if err := tok.Claims(key.Key, &claims); err == nil {
				return &claims, MethodPrivateKeyJWT, nil
			}
		}
	}

	return nil, "", errors.New("no registered client key verified the assertion signature")
}
