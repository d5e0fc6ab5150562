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

import (
	"context"
	"errors"
	"time"

	"github.com/oidcprovider/pkg/oidcprovider/client"
	"github.com/oidcprovider/pkg/oidcprovider/result"
	"github.com/oidcprovider/pkg/oidcprovider/storage"
)

// DefaultPollInterval is the minimum spacing the coordinator enforces
// between two poll/ping token requests for the same auth_req_id, per
// CIBA's `interval` parameter, when the caller does not supply its own.
const DefaultPollInterval = 5 * time.Second

// CIBAGrantHandler implements `urn:openid:params:grant-type:ciba` at the
// token endpoint: the synchronous half of the CIBA flow, returning a
// status-dependent response for a given auth_req_id without itself
// holding the request open. Long-polling (holding a poll request open
// until a status transition, per spec.md's waiter-set description) is a
// transport-level concern layered on top of this handler by the CIBA
// coordinator, not implemented here.
type CIBAGrantHandler struct {
	store        *storage.CIBAStore
	pollInterval time.Duration
	now          func() time.Time
}

// NewCIBAGrantHandler constructs a CIBAGrantHandler. pollInterval must be
// the same value advertised to clients as `interval` by the backchannel
// authentication endpoint (ciba.Config.PollInterval), or callers polling
// at the advertised rate will still see slow_down. A non-positive
// pollInterval falls back to DefaultPollInterval.
func NewCIBAGrantHandler(store *storage.CIBAStore, pollInterval time.Duration) *CIBAGrantHandler {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &CIBAGrantHandler{store: store, pollInterval: pollInterval, now: time.Now}
}

// GrantType implements Handler.
func (h *CIBAGrantHandler) GrantType() string { return "urn:openid:params:grant-type:ciba" }

// Authorize implements Handler.
func (h *CIBAGrantHandler) Authorize(ctx context.Context, req Request, authenticated *client.Info) result.Result[Outcome] {
	if req.AuthReqID == "" {
		return result.Failure[Outcome](result.New(result.InvalidRequest, "auth_req_id is required"))
	}

	record, err := h.store.Get(ctx, req.AuthReqID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return result.Failure[Outcome](result.New(result.ExpiredToken, "auth_req_id is unknown or has already been consumed"))
		}
		return result.Failure[Outcome](result.New(result.ServerError, "failed to load backchannel authentication request"))
	}

	if record.Grant.Context.ClientID != authenticated.ClientID {
		return result.Failure[Outcome](result.New(result.InvalidGrant, "auth_req_id was not issued to this client"))
	}

	now := h.now()
	if record.Expired(now) {
		_ = h.store.Delete(ctx, req.AuthReqID)
		return result.Failure[Outcome](result.New(result.ExpiredToken, "backchannel authentication request has expired"))
	}

	switch record.Status {
	case storage.CIBADenied:
		_ = h.store.Delete(ctx, req.AuthReqID)
		return result.Failure[Outcome](result.New(result.AccessDenied, "end user denied the authentication request"))

	case storage.CIBAAuthenticated:
		// one-shot regardless of delivery mode: poll and ping both
		// consume the record on their first successful read.
		_ = h.store.Delete(ctx, req.AuthReqID)
		return result.Success(Outcome{Grant: record.Grant})

	default: // CIBAPending
		if record.DeliveryMode == storage.CIBAPush {
			return result.Failure[Outcome](result.New(result.InvalidGrant, "push-mode clients must not poll the token endpoint"))
		}
		if now.Before(record.NextPollAt) {
			return result.Failure[Outcome](result.New(result.SlowDown, "polling too frequently"))
		}
		record.NextPollAt = now.Add(h.pollInterval)
		_ = h.store.Update(ctx, *record)
		return result.Failure[Outcome](result.New(result.AuthorizationPending, "end user has not yet completed authentication"))
	}
}
