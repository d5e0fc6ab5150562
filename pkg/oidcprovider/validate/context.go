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

// Package validate implements the context validators (C9): a chain of
// composable checks that share a single mutable ValidationContext and run
// in declared order over an already request-object-merged authorization
// (or PAR, or CIBA) request.
package validate

import (
	"context"
	"time"

	"github.com/oidcprovider/pkg/oidcprovider/client"
	"github.com/oidcprovider/pkg/oidcprovider/result"
	"github.com/oidcprovider/pkg/oidcprovider/storage"
)

// ValidationContext is widened by each validator in the chain; none may
// narrow or reset a field another validator already set.
type ValidationContext struct {
	Request storage.AuthorizationRequest
	Client  *client.Info

	RedirectURI   string
	ResponseTypes []string
	ResponseMode  string

	Scopes    []string
	Resources []string

	PKCERequired        bool
	CodeChallenge       string
	CodeChallengeMethod string

	Nonce   string
	Prompts []string

	Claims map[string]any

	ACRValues []string
	MaxAge    *time.Duration
}

// hasRedirect reports whether the redirect URI has been resolved, so that a
// failure from here on can be rendered as a protocol redirect rather than a
// direct HTTP error. The response mode is not checked; it may still be
// empty.
func (v *ValidationContext) hasRedirect() bool {
	return v.RedirectURI != ""
}

// fail builds an OidcError, attaching redirect info when the context has
// resolved enough to make that meaningful.
func (v *ValidationContext) fail(code, description string) *result.OidcError {
	err := result.New(code, description)
	if v.hasRedirect() {
		return err.WithRedirect(v.RedirectURI, v.ResponseMode)
	}
	return err
}

// Validator checks and widens vctx, returning nil on success.
type Validator func(ctx context.Context, vctx *ValidationContext) *result.OidcError

// Run executes validators in order, stopping at the first failure.
func Run(ctx context.Context, vctx *ValidationContext, validators ...Validator) *result.OidcError {
	for _, v := range validators {
		if err := v(ctx, vctx); err != nil {
			return err
		}
	}
	return nil
}
