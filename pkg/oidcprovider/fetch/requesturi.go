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
	"strings"

	"github.com/oidcprovider/pkg/oidcprovider/httpfetch"
	"github.com/oidcprovider/pkg/oidcprovider/result"
	"github.com/oidcprovider/pkg/oidcprovider/storage"
)

// RequestUriFetcher resolves an absolute, non-PAR request_uri by fetching
// it over the SSRF-guarded client and feeding the returned JWT into the
// following stage as an inline request object. It runs after
// PushedRequestFetcher, so by the time it sees a request_uri that value is
// never a PAR URN.
func RequestUriFetcher(fetcher *httpfetch.Fetcher) Stage {
	return func(ctx context.Context, req storage.AuthorizationRequest) result.Result[storage.AuthorizationRequest] {
		uri := req.Extra["request_uri"]
		if uri == "" {
			return result.Success(req)
		}

		if req.Extra["request"] != "" {
			return result.Failure[storage.AuthorizationRequest](result.New(result.InvalidRequest,
				"request and request_uri must not be used together"))
		}

		fetched := fetcher.Fetch(ctx, uri)
		if !fetched.Ok() {
			return result.Failure[storage.AuthorizationRequest](result.New(result.InvalidRequestURI,
				fetched.Err().ErrorDescription))
		}

		next := cloneRequest(req)
		if next.Extra == nil {
			next.Extra = map[string]string{}
		}
		next.Extra["request"] = strings.TrimSpace(string(fetched.Value()))
		delete(next.Extra, "request_uri")
		return result.Success(next)
	}
}
