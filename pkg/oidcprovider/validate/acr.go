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

package validate

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/oidcprovider/pkg/oidcprovider/result"
)

// ACRAndMaxAge splits the acr_values parameter into its requested values
// and parses max_age as a non-negative number of seconds.
func ACRAndMaxAge() Validator {
	return func(ctx context.Context, vctx *ValidationContext) *result.OidcError {
		if raw := strings.TrimSpace(vctx.Request.ACRValues); raw != "" {
			vctx.ACRValues = strings.Fields(raw)
		}

		raw := strings.TrimSpace(vctx.Request.MaxAge)
		if raw == "" {
			return nil
		}
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds < 0 {
			return vctx.fail(result.InvalidRequest, "max_age must be a non-negative integer number of seconds")
		}
		d := time.Duration(seconds) * time.Second
		vctx.MaxAge = &d
		return nil
	}
}
