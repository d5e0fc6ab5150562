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

package keys

import (
	"context"

	"github.com/go-jose/go-jose/v4"
)

// JWKS renders every public key provider.PublicKeys currently publishes
// (the active signing key plus any fallback/rotated keys) as a JSON Web
// Key Set, suitable for serving from a well-known jwks_uri.
func JWKS(ctx context.Context, provider Provider) (jose.JSONWebKeySet, error) {
	all, err := provider.PublicKeys(ctx)
	if err != nil {
		return jose.JSONWebKeySet{}, err
	}

	set := jose.JSONWebKeySet{Keys: make([]jose.JSONWebKey, 0, len(all))}
	for _, k := range all {
		set.Keys = append(set.Keys, jose.JSONWebKey{
			Key:       k.Key.Public(),
			KeyID:     k.KeyID,
			Algorithm: k.Algorithm,
			Use:       "sig",
		})
	}
	return set, nil
}
