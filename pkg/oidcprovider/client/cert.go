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

package client

import (
	"bytes"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"net/url"
)

// resolvePeerCertificate extracts the client's leaf certificate from
// whichever form the edge forwarded it in: a direct TLS socket cert takes
// priority, then the X-Forwarded-Client-Cert/X-Client-Cert header, tried
// as PEM, then base64 DER, then URL-encoded PEM, falling back silently
// between forms as required.
func resolvePeerCertificate(req Request) (*x509.Certificate, error) {
	if len(req.PeerCertificateDER) > 0 {
		return x509.ParseCertificate(req.PeerCertificateDER)
	}
	if req.ForwardedClientCert == "" {
		return nil, nil
	}
	return parseForwardedClientCert(req.ForwardedClientCert)
}

func parseForwardedClientCert(raw string) (*x509.Certificate, error) {
	if block, _ := pem.Decode([]byte(raw)); block != nil {
		return x509.ParseCertificate(block.Bytes)
	}

	if der, err := base64.StdEncoding.DecodeString(raw); err == nil {
		if cert, err := x509.ParseCertificate(der); err == nil {
			return cert, nil
		}
	}

	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		return nil, err
	}
	if block, _ := pem.Decode([]byte(decoded)); block != nil {
		return x509.ParseCertificate(block.Bytes)
	}
	return x509.ParseCertificate([]byte(decoded))
}

// certificateMatchesClient checks the resolved certificate's public key
// against the client's registered JWKS. Both tls_client_auth (CA-issued)
// and self_signed_tls_client_auth bindings are represented the same way
// here: the client publishes the public key it will present, and the
// presented certificate must carry that exact key.
func certificateMatchesClient(info *Info, cert *x509.Certificate) bool {
	if info.JWKS == nil {
		return false
	}
	certKeyDER, err := x509.MarshalPKIXPublicKey(cert.PublicKey)
	if err != nil {
		return false
	}
	for _, key := range info.JWKS.Keys {
		registeredDER, err := x509.MarshalPKIXPublicKey(key.Key)
		if err != nil {
			continue
		}
		if bytes.Equal(certKeyDER, registeredDER) {
			return true
		}
	}
	return false
}
