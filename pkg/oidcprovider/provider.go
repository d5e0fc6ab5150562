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

package oidcprovider

import (
	"context"
	"fmt"

	"github.com/go-jose/go-jose/v4"

	"github.com/oidcprovider/pkg/oidcprovider/authorize"
	"github.com/oidcprovider/pkg/oidcprovider/ciba"
	"github.com/oidcprovider/pkg/oidcprovider/client"
	"github.com/oidcprovider/pkg/oidcprovider/endsession"
	"github.com/oidcprovider/pkg/oidcprovider/fetch"
	"github.com/oidcprovider/pkg/oidcprovider/grant"
	"github.com/oidcprovider/pkg/oidcprovider/httpfetch"
	"github.com/oidcprovider/pkg/oidcprovider/keys"
	"github.com/oidcprovider/pkg/oidcprovider/logging"
	"github.com/oidcprovider/pkg/oidcprovider/revocation"
	"github.com/oidcprovider/pkg/oidcprovider/storage"
	"github.com/oidcprovider/pkg/oidcprovider/token"
	"github.com/oidcprovider/pkg/oidcprovider/tokenendpoint"
	"github.com/oidcprovider/pkg/oidcprovider/validate"
)

// Provider is a fully wired instance of every C1-C17 component: the five
// protocol-endpoint handlers a transport layer calls into, plus the
// client registry and key provider a transport layer needs for
// client-management and discovery endpoints outside this package's scope
// (dynamic registration, the well-known documents).
type Provider struct {
	Authorize  *authorize.Handler
	Token      *tokenendpoint.Handler
	CIBA       *ciba.Handler
	Revocation *revocation.Handler
	EndSession *endsession.Handler

	Clients client.Registry
	Keys    keys.Provider

	backend storage.Backend
}

// New validates cfg, applies its defaults, and wires every component into
// a running Provider.
func New(cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid provider config: %w", err)
	}
	cfg.applyDefaults()

	signingKeys, err := keys.NewProviderFromConfig(cfg.Keys)
	if err != nil {
		return nil, fmt.Errorf("failed to build signing key provider: %w", err)
	}

	backend := cfg.Backend
	codes := storage.NewCodeService(backend)
	par := storage.NewPARStore(backend)
	jtis := storage.NewTokenRegistry(backend)
	refreshGrants := storage.NewRefreshGrantStore(backend)
	cibaStore := storage.NewCIBAStore(backend)

	registry := client.NewMemoryRegistry(cfg.Clients...)
	authenticator := client.NewAuthenticator(registry, jtis)
	tokens := token.NewService(signingKeys)
	notifier := httpfetch.New(cfg.HTTPFetch)

	fetchChain := fetch.Chain(
		fetch.PushedRequestFetcher(par, cfg.RequirePAR),
		fetch.RequestUriFetcher(notifier),
		fetch.RequestObjectFetcher(registry),
	)

	validators := []validate.Validator{
		validate.ClientResolution(registry),
		validate.RedirectURI(),
		validate.ResponseType(),
		validate.Scope(cfg.ServerScopes),
		validate.PKCE(),
		validate.NonceAndPrompt(),
		validate.ACRAndMaxAge(),
		validate.Resource(),
		validate.Claims(),
	}

	issuers := grant.NewStaticIssuerDirectory(cfg.TrustedIssuers...)
	grants := grant.NewRegistry(
		grant.NewAuthorizationCodeHandler(codes),
		grant.NewRefreshTokenHandler(tokens, refreshGrants, jtis),
		grant.NewClientCredentialsHandler(),
		grant.NewCIBAGrantHandler(cibaStore, cfg.CIBAPollInterval),
		grant.NewJWTBearerHandler(issuers, jtis),
	)

	logging.Debugw("provider wired",
		"issuer", cfg.Issuer, "client_count", len(cfg.Clients), "require_par", cfg.RequirePAR)

	return &Provider{
		Authorize: authorize.New(authorize.Config{
			Registry:     registry,
			FetchChain:   fetchChain,
			Validators:   validators,
			Users:        cfg.Users,
			Consent:      cfg.Consent,
			Codes:        codes,
			PAR:          par,
			Tokens:       tokens,
			Issuer:       cfg.Issuer,
			Lifetimes:    cfg.AuthorizeLifetimes,
			PairwiseSalt: cfg.PairwiseSalt,
		}),
		Token: tokenendpoint.New(tokenendpoint.Config{
			Authenticator: authenticator,
			Grants:        grants,
			Codes:         codes,
			TokenRegistry: jtis,
			RefreshGrants: refreshGrants,
			Tokens:        tokens,
			Issuer:        cfg.Issuer,
			Lifetimes:     cfg.TokenLifetimes,
			PairwiseSalt:  cfg.PairwiseSalt,
		}),
		CIBA: ciba.New(ciba.Config{
			Registry:      registry,
			Authenticator: authenticator,
			Store:         cibaStore,
			RefreshGrants: refreshGrants,
			Resolver:      cfg.CIBAResolver,
			Tokens:        tokens,
			Notifier:      notifier,
			Issuer:        cfg.Issuer,
			DefaultExpiry: cfg.CIBADefaultExpiry,
			MaxExpiry:     cfg.CIBAMaxExpiry,
			PollInterval:  cfg.CIBAPollInterval,
			WaitTimeout:   cfg.CIBAWaitTimeout,
			Lifetimes:     cfg.CIBALifetimes,
			PairwiseSalt:  cfg.PairwiseSalt,
		}),
		Revocation: revocation.New(revocation.Config{
			Authenticator: authenticator,
			Tokens:        tokens,
			Registry:      jtis,
		}),
		EndSession: endsession.New(endsession.Config{
			Registry:   registry,
			Terminator: cfg.SessionTerminator,
		}),
		Clients: registry,
		Keys:    signingKeys,
		backend: backend,
	}, nil
}

// JWKS renders the provider's current signing keys as a JSON Web Key Set,
// suitable for serving from a well-known jwks_uri.
func (p *Provider) JWKS(ctx context.Context) (jose.JSONWebKeySet, error) {
	return keys.JWKS(ctx, p.Keys)
}

// Close releases the provider's storage backend.
func (p *Provider) Close() error {
	return p.backend.Close()
}
