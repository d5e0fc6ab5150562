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

// Package oidcprovider wires the C1-C17 components into a single running
// provider: one client registry/authenticator, one set of storage-backed
// stores, the fetch/validate chains, the grant registry, and the five
// protocol-endpoint handlers (authorize, token, backchannel
// authentication, revocation/introspection, end-session).
package oidcprovider

import (
	"fmt"
	"time"

	"github.com/oidcprovider/pkg/oidcprovider/authorize"
	"github.com/oidcprovider/pkg/oidcprovider/ciba"
	"github.com/oidcprovider/pkg/oidcprovider/client"
	"github.com/oidcprovider/pkg/oidcprovider/endsession"
	"github.com/oidcprovider/pkg/oidcprovider/grant"
	"github.com/oidcprovider/pkg/oidcprovider/httpfetch"
	"github.com/oidcprovider/pkg/oidcprovider/keys"
	"github.com/oidcprovider/pkg/oidcprovider/logging"
	"github.com/oidcprovider/pkg/oidcprovider/storage"
	"github.com/oidcprovider/pkg/oidcprovider/tokenendpoint"
)

// Config is the pure configuration for the provider. All values must be
// fully resolved (no file paths beyond Keys, no env vars).
type Config struct {
	// Issuer is the issuer identifier included in the "iss" claim of
	// every token this provider issues.
	Issuer string

	// Keys describes where to load signing key material from disk. If
	// KeyDir/SigningKeyFile are left unset, a fresh ECDSA key is
	// generated at startup (development/test use only).
	Keys keys.Config

	// Backend is the storage.Backend every store in the provider is
	// built on. If nil, an in-process storage.MemoryBackend is used,
	// which does not survive a restart and cannot be shared across
	// instances.
	Backend storage.Backend

	// Clients is the set of pre-registered OAuth/OIDC clients. Dynamic
	// registration is a spec.md Non-goal, so this list is the only way
	// clients enter the provider.
	Clients []*client.Info

	// ServerScopes is the full set of scopes this provider is willing to
	// grant, independent of what any one client is permitted to request.
	ServerScopes []string

	// TrustedIssuers are the external parties permitted to mint
	// jwt-bearer assertions (RFC 7523), keyed by the assertion's `iss`
	// claim.
	TrustedIssuers []grant.TrustedIssuer

	// RequirePAR, when true, rejects any authorize request that carries
	// neither a request_uri nor an inline request object.
	RequirePAR bool

	// Users resolves the authenticated end-user session behind an
	// authorize request. Required: spec.md treats user authentication as
	// an external collaborator, never implemented by the core itself.
	Users authorize.UserAuthenticator

	// Consent decides whether an authenticated session still needs an
	// interactive consent step. Optional; a nil Consent skips the
	// consent step entirely.
	Consent authorize.ConsentChecker

	// CIBAResolver performs the out-of-band user-device authentication a
	// backchannel request requires. Required to serve C13.
	CIBAResolver ciba.HintResolver

	// SessionTerminator ends the end user's authenticated session on
	// RP-initiated logout. Optional; a nil SessionTerminator makes
	// EndSession a client-registry/redirect-validation no-op beyond that
	// point.
	SessionTerminator endsession.SessionTerminator

	// PairwiseSalt is mixed into the pairwise `sub` computation for
	// clients registered with SubjectTypePairwise. Required if any
	// configured client uses pairwise subjects.
	PairwiseSalt []byte

	// HTTPFetch configures the SSRF-guarded fetcher used for non-PAR
	// request_uri resolution and CIBA ping/push delivery.
	HTTPFetch httpfetch.Policy

	AuthorizeLifetimes authorize.Lifetimes
	TokenLifetimes     tokenendpoint.Lifetimes
	CIBALifetimes      ciba.Lifetimes
	CIBADefaultExpiry  time.Duration
	CIBAMaxExpiry      time.Duration
	CIBAPollInterval   time.Duration
	CIBAWaitTimeout    time.Duration
}

// Validate checks that the Config is usable, returning the first problem
// found.
func (c *Config) Validate() error {
	logging.Debugw("validating provider config", "issuer", c.Issuer)

	if c.Issuer == "" {
		return fmt.Errorf("issuer is required")
	}
	if c.Users == nil {
		return fmt.Errorf("a user authenticator is required")
	}
	if c.CIBAResolver == nil {
		return fmt.Errorf("a ciba hint resolver is required")
	}

	for i, info := range c.Clients {
		if info.ClientID == "" {
			return fmt.Errorf("client %d: client id is required", i)
		}
		if info.SubjectType == client.SubjectTypePairwise && len(c.PairwiseSalt) == 0 {
			return fmt.Errorf("client %d (%s): pairwise subject type requires PairwiseSalt", i, info.ClientID)
		}
	}

	logging.Debugw("provider config validation passed",
		"issuer", c.Issuer, "client_count", len(c.Clients))
	return nil
}

// applyDefaults fills zero-valued fields with their production defaults.
func (c *Config) applyDefaults() {
	logging.Debugw("applying default values to provider config")

	if c.Backend == nil {
		c.Backend = storage.NewMemoryBackend()
	}
	if c.CIBADefaultExpiry <= 0 {
		c.CIBADefaultExpiry = 120 * time.Second
	}
	if c.CIBAMaxExpiry <= 0 {
		c.CIBAMaxExpiry = 10 * time.Minute
	}
	if c.CIBAPollInterval <= 0 {
		c.CIBAPollInterval = grant.DefaultPollInterval
	}
	if c.CIBAWaitTimeout <= 0 {
		c.CIBAWaitTimeout = 30 * time.Second
	}
}
