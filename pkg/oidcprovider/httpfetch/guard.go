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

// Package httpfetch implements the SSRF-guarded outbound HTTP fetcher
// (C16) used for request_uri resolution, JWKS fetching, and CIBA client
// notification.
package httpfetch

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// bannedHostnames are rejected outright regardless of DNS resolution.
var bannedHostnames = map[string]struct{}{
	"localhost":     {},
	"loopback":      {},
	"broadcasthost": {},
	"local":         {},
	"internal":      {},
	"intranet":      {},
	"private":       {},
	"corp":          {},
	"home":          {},
	"lan":           {},
}

// bannedTLDs are rejected when they appear as a hostname's last label.
var bannedTLDs = map[string]struct{}{
	"local":     {},
	"localhost": {},
	"internal":  {},
	"intranet":  {},
	"corp":      {},
	"home":      {},
	"lan":       {},
}

// checkScheme validates uri's scheme against the policy's allow-list.
func checkScheme(rawURL string, allowHTTP bool) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme == "https" {
		return u, nil
	}
	if scheme == "http" && allowHTTP {
		return u, nil
	}
	return nil, fmt.Errorf("scheme %q is not allowed", u.Scheme)
}

// checkHostname applies the hostname-level checks that don't require DNS
// resolution: exact banned names, bare single-label hosts, and banned
// TLDs. Matching is case-insensitive.
func checkHostname(hostname string) error {
	lower := strings.ToLower(hostname)

	if _, banned := bannedHostnames[lower]; banned {
		return fmt.Errorf("host %q is not allowed", hostname)
	}

	labels := strings.Split(lower, ".")
	if len(labels) == 1 {
		return fmt.Errorf("single-label hostnames are not allowed: %q", hostname)
	}

	tld := labels[len(labels)-1]
	if _, banned := bannedTLDs[tld]; banned {
		return fmt.Errorf("host %q uses a disallowed TLD", hostname)
	}

	return nil
}

// checkResolvedIP rejects an IP address that falls in a loopback,
// link-local, RFC1918, unique-local, multicast, or broadcast range.
func checkResolvedIP(ip net.IP) error {
	switch {
	case ip.IsLoopback():
		return fmt.Errorf("resolved address %s is a loopback address", ip)
	case ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast():
		return fmt.Errorf("resolved address %s is link-local", ip)
	case ip.IsPrivate():
		return fmt.Errorf("resolved address %s is a private-use address", ip)
	case ip.IsMulticast():
		return fmt.Errorf("resolved address %s is multicast", ip)
	case ip.Equal(net.IPv4bcast):
		return fmt.Errorf("resolved address %s is the broadcast address", ip)
	}
	return nil
}
