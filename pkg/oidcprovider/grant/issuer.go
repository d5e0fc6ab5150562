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

import "github.com/go-jose/go-jose/v4"

// TrustedIssuer is one entry in an IssuerDirectory: an external party
// permitted to mint jwt-bearer assertions, with the keys used to verify
// them and the scopes it is allowed to vouch for.
type TrustedIssuer struct {
	Issuer        string
	JWKS          jose.JSONWebKeySet
	AllowedScopes []string
	Subject       string // when set, only this subject may be asserted
}

// SupportsScope reports whether scope is one the issuer is configured to
// vouch for. An empty AllowedScopes list permits any scope.
func (i TrustedIssuer) SupportsScope(scope string) bool {
	if len(i.AllowedScopes) == 0 {
		return true
	}
	for _, s := range i.AllowedScopes {
		if s == scope {
			return true
		}
	}
	return false
}

// IssuerDirectory resolves the jwt-bearer grant handler's trusted issuers
// by the `iss` claim of the presented assertion.
type IssuerDirectory interface {
	Lookup(issuer string) (TrustedIssuer, bool)
}

// StaticIssuerDirectory is an IssuerDirectory backed by a fixed, in-memory
// configuration, the expected shape for a deployment whose trusted
// third-party issuers are known at startup.
type StaticIssuerDirectory struct {
	issuers map[string]TrustedIssuer
}

// NewStaticIssuerDirectory builds a StaticIssuerDirectory from issuers.
func NewStaticIssuerDirectory(issuers ...TrustedIssuer) *StaticIssuerDirectory {
	d := &StaticIssuerDirectory{issuers: make(map[string]TrustedIssuer, len(issuers))}
	for _, iss := range issuers {
		d.issuers[iss.Issuer] = iss
	}
	return d
}

// Lookup implements IssuerDirectory.
func (d *StaticIssuerDirectory) Lookup(issuer string) (TrustedIssuer, bool) {
	iss, ok := d.issuers[issuer]
	return iss, ok
}
