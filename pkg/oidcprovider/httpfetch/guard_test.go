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
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckScheme(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		rawURL    string
		allowHTTP bool
		wantErr   bool
	}{
		{name: "https allowed", rawURL: "https://example.com/a", wantErr: false},
		{name: "http rejected by default", rawURL: "http://example.com/a", wantErr: true},
		{name: "http allowed when opted in", rawURL: "http://example.com/a", allowHTTP: true, wantErr: false},
		{name: "ftp rejected", rawURL: "ftp://example.com/a", wantErr: true},
		{name: "malformed URL", rawURL: "://bad", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := checkScheme(tt.rawURL, tt.allowHTTP)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCheckHostname(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		hostname string
		wantErr  bool
	}{
		{name: "ordinary domain", hostname: "api.example.com", wantErr: false},
		{name: "exact banned name", hostname: "localhost", wantErr: true},
		{name: "banned name case insensitive", hostname: "LocalHost", wantErr: true},
		{name: "single label host", hostname: "myserver", wantErr: true},
		{name: "banned tld", hostname: "db.internal", wantErr: true},
		{name: "banned tld case insensitive", hostname: "db.INTERNAL", wantErr: true},
		{name: "lan suffix", hostname: "printer.lan", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := checkHostname(tt.hostname)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCheckResolvedIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		ip      string
		wantErr bool
	}{
		{name: "public ipv4", ip: "93.184.216.34", wantErr: false},
		{name: "loopback v4", ip: "127.0.0.1", wantErr: true},
		{name: "loopback v6", ip: "::1", wantErr: true},
		{name: "link-local v4", ip: "169.254.1.1", wantErr: true},
		{name: "rfc1918 10/8", ip: "10.0.0.1", wantErr: true},
		{name: "rfc1918 172.16/12", ip: "172.16.5.5", wantErr: true},
		{name: "rfc1918 192.168/16", ip: "192.168.1.1", wantErr: true},
		{name: "unique local v6", ip: "fc00::1", wantErr: true},
		{name: "multicast v4", ip: "224.0.0.1", wantErr: true},
		{name: "broadcast v4", ip: "255.255.255.255", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ip := net.ParseIP(tt.ip)
			err := checkResolvedIP(ip)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
