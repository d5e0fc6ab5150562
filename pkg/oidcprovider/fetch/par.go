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
	"errors"
	"strings"

	"github.com/oidcprovider/pkg/oidcprovider/result"
	"github.com/oidcprovider/pkg/oidcprovider/storage"
)

// PushedRequestFetcher resolves a request_uri that references a previously
// pushed authorization request (RFC 9126), replacing the in-flight request
// with the one stored under that URN. If requirePAR is set, any request
// that arrives without a PAR reference and without an inline request
// object fails invalid_request.
func PushedRequestFetcher(store *storage.PARStore, requirePAR bool) Stage {
	return func(ctx context.Context, req storage.AuthorizationRequest) result.Result[storage.AuthorizationRequest] {
		uri := req.Extra["request_uri"]

		if strings.HasPrefix(uri, storage.RequestURIPrefix) {
			stored, err := store.Consume(ctx, uri)
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					return result.Failure[storage.AuthorizationRequest](result.New(result.InvalidRequestURI,
						"pushed authorization request not found or already used"))
				}
				return result.Failure[storage.AuthorizationRequest](result.New(result.ServerError, err.Error()))
			}
			return result.Success(*stored)
		}

		if requirePAR && uri == "" && req.Extra["request"] == "" {
			return result.Failure[storage.AuthorizationRequest](result.New(result.InvalidRequest,
				"this authorization server requires pushed authorization requests"))
		}

		return result.Success(req)
	}
}
