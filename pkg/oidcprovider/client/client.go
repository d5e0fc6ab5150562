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

// Package client implements the client registry and authenticator (C2):
// resolving registered clients by id and authenticating them against the
// method(s) they present on the wire.
package client

import (
	"net/url"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
)

// AuthMethod identifies a token-endpoint-auth-method a client may use.
type AuthMethod string

const (
	MethodNone                    AuthMethod = "none"
	MethodClientSecretBasic       AuthMethod = "client_secret_basic"
	MethodClientSecretPost        AuthMethod = "client_secret_post"
	MethodClientSecretJWT         AuthMethod = "client_secret_jwt"
	MethodPrivateKeyJWT           AuthMethod = "private_key_jwt"
	MethodTLSClientAuth           AuthMethod = "tls_client_auth"
	MethodSelfSignedTLSClientAuth AuthMethod = "self_signed_tls_client_auth"
)

// SubjectType controls how the `sub` claim of ID tokens is derived.
type SubjectType string

const (
	SubjectTypePublic   SubjectType = "public"
	SubjectTypePairwise SubjectType = "pairwise"
)

// DeliveryMode is the CIBA client-notification mode a client supports.
type DeliveryMode string

const (
	DeliveryModePoll DeliveryMode = "poll"
	DeliveryModePing DeliveryMode = "ping"
	DeliveryModePush DeliveryMode = "push"
)

// Secret is a client secret with a validity window. Hash is a bcrypt hash
// used for constant-time comparison against client_secret_basic/post
// credentials. HMACKey, when set, holds the same secret's raw bytes and is
// used only to verify client_secret_jwt assertions (RFC 7523 HMAC
// signatures are not verifiable from a one-way hash); it is left nil for
// clients that never enable client_secret_jwt.
type Secret struct {
	Hash      []byte
	HMACKey   []byte
	NotBefore time.Time
	NotAfter  time.Time // zero means no expiry
}

// activeAt reports whether the secret is usable at t.
func (s Secret) activeAt(t time.Time) bool {
	if t.Before(s.NotBefore) {
		return false
	}
	return s.NotAfter.IsZero() || t.Before(s.NotAfter)
}

// TokenLifetimes holds the per-client TTLs for issued artifacts.
type TokenLifetimes struct {
	AccessToken       time.Duration
	RefreshToken      time.Duration
	AuthorizationCode time.Duration
}

// Info is the immutable per-client descriptor.
type Info struct {
	ClientID string

	AuthMethods []AuthMethod
	Secrets     []Secret

	// JWKS holds inline client signing/encryption keys; JWKSURI is used
	// instead when the client publishes its keys remotely (resolution of
	// JWKSURI is an HTTP concern left to the caller/C16 fetcher).
	JWKS    *jose.JSONWebKeySet
	JWKSURI string

	RedirectURIs           []string
	PostLogoutRedirectURIs []string

	NotificationEndpoint string
	DeliveryMode         DeliveryMode

	GrantTypes    []string
	ResponseTypes []string
	Scopes        []string

	// AllowedResources bounds which RFC 8707 resource indicators this
	// client may request. An empty list means the client may request any
	// resource (no allow-list configured).
	AllowedResources []string

	PKCERequired bool

	Lifetimes TokenLifetimes

	// AllowRefreshTokenReuse disables reuse-prevention (rotation) for this
	// client's refresh tokens when true. Defaults to false (rotate+revoke).
	AllowRefreshTokenReuse bool

	SubjectType      SubjectType
	SectorIdentifier string

	IDTokenSignedResponseAlg string

	OfflineAccessAllowed bool
}

// SupportsMethod reports whether m is one of the client's registered
// authentication methods.
func (c *Info) SupportsMethod(m AuthMethod) bool {
	for _, allowed := range c.AuthMethods {
		if allowed == m {
			return true
		}
	}
	return false
}

// SupportsGrantType reports whether grantType is allowed for this client.
func (c *Info) SupportsGrantType(grantType string) bool {
	for _, g := range c.GrantTypes {
		if g == grantType {
			return true
		}
	}
	return false
}

// SupportsResponseType reports whether responseType (the full, possibly
// space-separated value such as "code" or "code id_token") is one of the
// client's registered response types.
func (c *Info) SupportsResponseType(responseType string) bool {
	for _, rt := range c.ResponseTypes {
		if rt == responseType {
			return true
		}
	}
	return false
}

// SupportsScope reports whether scope is in the client's allowed scope set.
func (c *Info) SupportsScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// SupportsResource reports whether resource is allowed for this client. An
// empty AllowedResources list permits any resource.
func (c *Info) SupportsResource(resource string) bool {
	if len(c.AllowedResources) == 0 {
		return true
	}
	for _, r := range c.AllowedResources {
		if r == resource {
			return true
		}
	}
	return false
}

// MatchRedirectURI resolves requestedURI against the client's registered
// redirect URIs. Matching is exact (scheme and host case-insensitive, path
// case-sensitive, query must match, fragment ignored) with one documented
// carve-out: RFC 8252 Section 7.3 loopback redirect URIs ("http" on
// 127.0.0.1, [::1], or localhost) may vary their port. It returns the
// effective redirect URI to use and whether a match was found.
func (c *Info) MatchRedirectURI(requestedURI string) (string, bool) {
	for _, registered := range c.RedirectURIs {
		if exactRedirectMatch(requestedURI, registered) {
			return registered, true
		}
		if matchesAsLoopback(requestedURI, registered) {
			return requestedURI, true
		}
	}
	return "", false
}

// MatchPostLogoutRedirectURI resolves requestedURI against the client's
// registered post-logout redirect URIs using the same exact-match rule.
func (c *Info) MatchPostLogoutRedirectURI(requestedURI string) (string, bool) {
	for _, registered := range c.PostLogoutRedirectURIs {
		if exactRedirectMatch(requestedURI, registered) {
			return registered, true
		}
	}
	return "", false
}

func exactRedirectMatch(requested, registered string) bool {
	if requested == registered {
		return true
	}

	r, err := url.Parse(requested)
	if err != nil {
		return false
	}
	g, err := url.Parse(registered)
	if err != nil {
		return false
	}

	return strings.EqualFold(r.Scheme, g.Scheme) &&
		strings.EqualFold(r.Host, g.Host) &&
		r.Path == g.Path &&
		r.RawQuery == g.RawQuery
}

// matchesAsLoopback implements the RFC 8252 Section 7.3 loopback carve-out:
// scheme must be "http", host must be a loopback host on both sides (and
// the same loopback host), path and query must match, port is unconstrained.
func matchesAsLoopback(requested, registered string) bool {
	r, err := url.Parse(requested)
	if err != nil {
		return false
	}
	g, err := url.Parse(registered)
	if err != nil {
		return false
	}

	if r.Scheme != "http" || g.Scheme != "http" {
		return false
	}
	if !IsLoopbackHost(r.Hostname()) || !IsLoopbackHost(g.Hostname()) {
		return false
	}
	if !strings.EqualFold(r.Hostname(), g.Hostname()) {
		return false
	}
	return r.Path == g.Path && r.RawQuery == g.RawQuery
}
