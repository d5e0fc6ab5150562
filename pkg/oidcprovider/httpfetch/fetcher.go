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

package httpfetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/oidcprovider/pkg/oidcprovider/logging"
	"github.com/oidcprovider/pkg/oidcprovider/result"
)

// RateLimitHook is called before every outbound fetch; returning an error
// aborts the fetch with invalid_client_metadata. Rate-limiting policy
// itself is out of scope (see Non-goals) — this is the hook a caller
// wires a policy into.
type RateLimitHook func(ctx context.Context, url string) error

// Policy configures the guard a Fetcher applies to every outbound request.
type Policy struct {
	// AllowHTTP permits the "http" scheme in addition to "https". Default
	// false.
	AllowHTTP bool
	// DisableSSRFChecks skips hostname/IP checks, leaving only the scheme
	// allow-list in effect. Intended for local development only.
	DisableSSRFChecks bool
	// Timeout bounds each HTTP attempt. Default 5s. A retried fetch makes
	// up to MaxRetries+1 attempts, each with its own Timeout, plus the
	// backoff wait between them, so the fetch as a whole can take longer.
	Timeout time.Duration
	// MaxRetries bounds the fetcher's transient-failure retry count.
	// Default 2.
	MaxRetries int
	// RateLimit, when set, is consulted before every fetch.
	RateLimit RateLimitHook
}

func (p Policy) withDefaults() Policy {
	if p.Timeout <= 0 {
		p.Timeout = 5 * time.Second
	}
	if p.MaxRetries <= 0 {
		p.MaxRetries = 2
	}
	return p
}

// Fetcher performs SSRF-guarded outbound HTTP GETs.
type Fetcher struct {
	policy Policy
	client *retryablehttp.Client
}

// New builds a Fetcher enforcing policy.
func New(policy Policy) *Fetcher {
	policy = policy.withDefaults()

	transport := &http.Transport{
		DialContext: guardedDialContext(policy),
	}

	client := retryablehttp.NewClient()
	client.RetryMax = policy.MaxRetries
	client.Logger = nil
	client.HTTPClient = &http.Client{
		Transport: transport,
		Timeout:   policy.Timeout,
	}

	return &Fetcher{policy: policy, client: client}
}

// guardedDialContext wraps the default dialer to reject connections to
// resolved addresses the policy forbids, closing the TOCTOU gap a
// hostname-only check would leave open (DNS rebinding).
func guardedDialContext(policy Policy) func(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: policy.Timeout}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		if !policy.DisableSSRFChecks {
			ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
			if err != nil {
				return nil, err
			}
			for _, ip := range ips {
				if err := checkResolvedIP(ip.IP); err != nil {
					return nil, err
				}
			}
			if len(ips) > 0 {
				host = ips[0].IP.String()
			}
		}
		return dialer.DialContext(ctx, network, net.JoinHostPort(host, port))
	}
}

// Fetch performs a guarded GET of rawURL and returns its body. Non-2xx
// responses, empty bodies, and guard violations all map to
// invalid_client_metadata.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) result.Result[[]byte] {
	if f.policy.RateLimit != nil {
		if err := f.policy.RateLimit(ctx, rawURL); err != nil {
			logging.Warnw("outbound fetch rejected by rate limit hook", "url", rawURL)
			return result.Failure[[]byte](result.New(result.InvalidClientMetadata, "rate limit exceeded"))
		}
	}

	u, err := checkScheme(rawURL, f.policy.AllowHTTP)
	if err != nil {
		logging.Debugw("outbound fetch rejected by scheme guard", "url", rawURL, "error", err)
		return result.Failure[[]byte](result.New(result.InvalidClientMetadata, err.Error()))
	}

	if !f.policy.DisableSSRFChecks {
		if err := checkHostname(u.Hostname()); err != nil {
			logging.Debugw("outbound fetch rejected by hostname guard", "url", rawURL, "error", err)
			return result.Failure[[]byte](result.New(result.InvalidClientMetadata, err.Error()))
		}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return result.Failure[[]byte](result.New(result.InvalidClientMetadata, "failed to construct request"))
	}

	resp, err := f.client.Do(req)
	if err != nil {
		logging.Warnw("outbound fetch failed", "url", rawURL, "error", err)
		return result.Failure[[]byte](result.New(result.InvalidClientMetadata, fmt.Sprintf("fetch failed: %v", err)))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return result.Failure[[]byte](result.New(result.InvalidClientMetadata,
			fmt.Sprintf("unexpected status code %d", resp.StatusCode)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return result.Failure[[]byte](result.New(result.InvalidClientMetadata, "failed to read response body"))
	}
	if len(body) == 0 {
		return result.Failure[[]byte](result.New(result.InvalidClientMetadata, "empty response body"))
	}

	return result.Success(body)
}

// ValidateDestination applies the scheme and hostname guard checks to
// rawURL without performing a network round trip, for callers (CIBA
// notification delivery) that must reject a misconfigured destination
// before attempting to use it.
func (f *Fetcher) ValidateDestination(rawURL string) error {
	u, err := checkScheme(rawURL, f.policy.AllowHTTP)
	if err != nil {
		return err
	}
	if !f.policy.DisableSSRFChecks {
		if err := checkHostname(u.Hostname()); err != nil {
			return err
		}
	}
	return nil
}

// Post performs a guarded POST of body to rawURL with the given headers
// and returns the response body. Used for CIBA ping/push client
// notification delivery. Non-2xx responses map to invalid_client_metadata;
// callers that treat delivery failure as best-effort (ping) should log and
// continue rather than propagate the error as a protocol failure.
func (f *Fetcher) Post(ctx context.Context, rawURL string, body []byte, headers map[string]string) result.Result[[]byte] {
	u, err := checkScheme(rawURL, f.policy.AllowHTTP)
	if err != nil {
		return result.Failure[[]byte](result.New(result.InvalidClientMetadata, err.Error()))
	}
	if !f.policy.DisableSSRFChecks {
		if err := checkHostname(u.Hostname()); err != nil {
			return result.Failure[[]byte](result.New(result.InvalidClientMetadata, err.Error()))
		}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return result.Failure[[]byte](result.New(result.InvalidClientMetadata, "failed to construct request"))
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		logging.Warnw("outbound notification delivery failed", "url", rawURL, "error", err)
		return result.Failure[[]byte](result.New(result.InvalidClientMetadata, fmt.Sprintf("delivery failed: %v", err)))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return result.Failure[[]byte](result.New(result.InvalidClientMetadata, "failed to read response body"))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logging.Warnw("notification endpoint returned non-2xx status", "url", rawURL, "status", resp.StatusCode)
		return result.Failure[[]byte](result.New(result.InvalidClientMetadata,
			fmt.Sprintf("unexpected status code %d", resp.StatusCode)))
	}

	return result.Success(respBody)
}
