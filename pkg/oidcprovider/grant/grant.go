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

// Package grant implements the token-endpoint grant handlers (C12): one
// implementation per grant_type, each resolving a token request into an
// AuthorizedGrant the token services (C5) can issue tokens from.
package grant

import (
	"context"

	"github.com/oidcprovider/pkg/oidcprovider/client"
	"github.com/oidcprovider/pkg/oidcprovider/result"
	"github.com/oidcprovider/pkg/oidcprovider/storage"
)

// Request is the grant-type-agnostic shape of a token request; each
// Handler reads only the fields relevant to its grant_type.
type Request struct {
	GrantType    string
	RedirectURI  string
	Code         string
	CodeVerifier string
	RefreshToken string
	Scope        string
	Resources    []string
	AuthReqID    string
	Assertion    string
}

// Outcome is what a Handler resolves a request to. RefreshJTI is set only
// by the refresh_token handler, letting the token endpoint's rotation
// decorator revoke or retain the consumed token without re-parsing it.
type Outcome struct {
	Grant      storage.AuthorizedGrant
	RefreshJTI string
}

// Handler implements one grant_type.
type Handler interface {
	GrantType() string
	Authorize(ctx context.Context, req Request, authenticated *client.Info) result.Result[Outcome]
}

// Registry dispatches a token request to the Handler that advertises its
// grant_type.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry builds a Registry over handlers, keyed by their own
// GrantType().
func NewRegistry(handlers ...Handler) *Registry {
	r := &Registry{handlers: make(map[string]Handler, len(handlers))}
	for _, h := range handlers {
		r.handlers[h.GrantType()] = h
	}
	return r
}

// Lookup returns the Handler registered for grantType, if any.
func (r *Registry) Lookup(grantType string) (Handler, bool) {
	h, ok := r.handlers[grantType]
	return h, ok
}
