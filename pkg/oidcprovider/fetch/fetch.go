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

// Package fetch implements the composite request fetcher (C8): an ordered
// chain of stages that successively rewrite an AuthorizationRequest,
// resolving PAR references, remote request_uri JWTs, and inline request
// objects before the authorization handler sees a fully materialized
// request.
package fetch

import (
	"context"
	"maps"

	"github.com/oidcprovider/pkg/oidcprovider/result"
	"github.com/oidcprovider/pkg/oidcprovider/storage"
)

// Stage rewrites an AuthorizationRequest, or fails with an OidcError. The
// composite runs stages in declared order and short-circuits on the first
// failure.
type Stage func(ctx context.Context, req storage.AuthorizationRequest) result.Result[storage.AuthorizationRequest]

// Chain composes stages into a single Stage run in order.
func Chain(stages ...Stage) Stage {
	return func(ctx context.Context, req storage.AuthorizationRequest) result.Result[storage.AuthorizationRequest] {
		current := req
		for _, stage := range stages {
			res := stage(ctx, current)
			if !res.Ok() {
				return res
			}
			current = res.Value()
		}
		return result.Success(current)
	}
}

// cloneRequest returns a deep-enough copy of req so a stage can rewrite
// Extra/Claims/Resources without mutating the caller's value.
func cloneRequest(req storage.AuthorizationRequest) storage.AuthorizationRequest {
	cp := req
	if req.Extra != nil {
		cp.Extra = maps.Clone(req.Extra)
	}
	if req.Claims != nil {
		cp.Claims = maps.Clone(req.Claims)
	}
	if req.Resources != nil {
		cp.Resources = append([]string(nil), req.Resources...)
	}
	return cp
}
