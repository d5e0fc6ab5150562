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

// Package keys loads and derives parameters for the asymmetric signing keys
// used by the token service (C5) to sign access, refresh, and identity
// JWTs. It also loads symmetric HMAC secret files (LoadHMACSecrets) and
// provides the PKCE verifier and challenge helpers.
package keys

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
	"strings"
)

// MinRSAKeyBits is the minimum acceptable RSA modulus size, per NIST SP 800-57.
const MinRSAKeyBits = 2048

// MinHMACSecretBytes is the minimum acceptable length for an HMAC secret.
const MinHMACSecretBytes = 32

// LoadSigningKey reads a PEM-encoded private key from path and returns it as
// a crypto.Signer. It accepts PKCS#1 and PKCS#8 RSA keys, SEC1 and PKCS#8 EC
// keys, and PKCS#8 Ed25519 keys. RSA keys below MinRSAKeyBits are rejected.
func LoadSigningKey(path string) (crypto.Signer, error) {
	raw, err := os.ReadFile(path) //nolint:gosec // path is operator-supplied configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}

	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block from %s", path)
	}

	signer, err := parsePrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key in %s: %w", path, err)
	}

	if rsaKey, ok := signer.(*rsa.PrivateKey); ok {
		if rsaKey.N.BitLen() < MinRSAKeyBits {
			return nil, fmt.Errorf("RSA key size %d bits is below minimum required %d bits", rsaKey.N.BitLen(), MinRSAKeyBits)
		}
	}

	return signer, nil
}

func parsePrivateKey(der []byte) (crypto.Signer, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParseECPrivateKey(der); err == nil {
		return key, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("key does not implement crypto.Signer")
	}
	return signer, nil
}

// DeriveAlgorithm picks the canonical JWS algorithm for a key's type, using
// the strongest commonly deployed algorithm for that key family.
func DeriveAlgorithm(key crypto.Signer) (string, error) {
	switch k := key.Public().(type) {
	case *rsa.PublicKey:
		return "RS256", nil
	case *ecdsa.PublicKey:
		switch k.Curve {
		case elliptic.P256():
			return "ES256", nil
		case elliptic.P384():
			return "ES384", nil
		case elliptic.P521():
			return "ES512", nil
		default:
			return "", fmt.Errorf("unsupported EC curve: %s", k.Curve.Params().Name)
		}
	case ed25519.PublicKey:
		return "EdDSA", nil
	default:
		return "", fmt.Errorf("unsupported key type: %T", key)
	}
}

// ValidateAlgorithmForKey checks that alg is a valid JWS algorithm for key's
// concrete type (and, for EC keys, for its curve).
func ValidateAlgorithmForKey(alg string, key crypto.Signer) error {
	switch k := key.Public().(type) {
	case *rsa.PublicKey:
		switch alg {
		case "RS256", "RS384", "RS512":
			return nil
		default:
			return fmt.Errorf("algorithm %s is not compatible with RSA keys", alg)
		}
	case *ecdsa.PublicKey:
		expected, ok := map[string]string{"ES256": "P-256", "ES384": "P-384", "ES512": "P-521"}[alg]
		if !ok {
			return fmt.Errorf("algorithm %s is not compatible with EC keys", alg)
		}
		if k.Curve.Params().Name != expected {
			return fmt.Errorf("algorithm %s is not compatible with EC key on curve %s (wants %s)",
				alg, k.Curve.Params().Name, expected)
		}
		return nil
	case ed25519.PublicKey:
		if alg != "EdDSA" {
			return fmt.Errorf("algorithm %s is not compatible with Ed25519 keys", alg)
		}
		return nil
	default:
		return fmt.Errorf("unsupported key type: %T", key)
	}
}

// SigningKeyParams is the resolved (keyID, algorithm) pair for a signing key.
type SigningKeyParams struct {
	KeyID     string
	Algorithm string
}

// DeriveSigningKeyParams fills in keyID/algorithm when they are empty,
// deriving the algorithm from the key's type and the key ID from its public
// key fingerprint, and validates any explicitly supplied algorithm.
func DeriveSigningKeyParams(key crypto.Signer, keyID, algorithm string) (*SigningKeyParams, error) {
	if algorithm == "" {
		alg, err := DeriveAlgorithm(key)
		if err != nil {
			return nil, err
		}
		algorithm = alg
	} else if err := ValidateAlgorithmForKey(algorithm, key); err != nil {
		return nil, err
	}

	if keyID == "" {
		id, err := DeriveKeyID(key)
		if err != nil {
			return nil, err
		}
		keyID = id
	}

	return &SigningKeyParams{KeyID: keyID, Algorithm: algorithm}, nil
}

// DeriveKeyID derives a stable, content-addressed key ID from a public key's
// DER encoding, so the same key always yields the same "kid".
func DeriveKeyID(key crypto.Signer) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(key.Public())
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %w", err)
	}
	sum := sha256.Sum256(der)
	return base64.RawURLEncoding.EncodeToString(sum[:16]), nil
}

// HMACSecrets is resolved symmetric secret material: the current secret
// and any rotated ones, in the order their paths were given. No other
// package in this module reads it; refresh tokens are JWTs signed with the
// asymmetric signing key.
type HMACSecrets struct {
	Current []byte
	Rotated [][]byte
}

// LoadHMACSecrets reads the "current" secret from paths[0] and any
// additional "rotated" secrets from paths[1:], trimming whitespace and
// enforcing the minimum length on every secret. An empty paths slice
// returns a nil HMACSecrets with no error (no HMAC secret configured).
// Empty entries in paths[1:] are skipped.
func LoadHMACSecrets(paths []string) (*HMACSecrets, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	if paths[0] == "" {
		return nil, fmt.Errorf("current HMAC secret path cannot be empty")
	}
	current, err := loadSecretFile(paths[0])
	if err != nil {
		return nil, fmt.Errorf("failed to load current HMAC secret: %w", err)
	}

	var rotated [][]byte
	for i, p := range paths[1:] {
		if p == "" {
			continue
		}
		secret, err := loadSecretFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to load rotated HMAC secret [%d]: %w", i+1, err)
		}
		rotated = append(rotated, secret)
	}

	return &HMACSecrets{Current: current, Rotated: rotated}, nil
}

func loadSecretFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path) //nolint:gosec // path is operator-supplied configuration
	if err != nil {
		return nil, err
	}
	secret := []byte(strings.TrimSpace(string(raw)))
	if len(secret) < MinHMACSecretBytes {
		return nil, fmt.Errorf("HMAC secret must be at least %d bytes, got %d", MinHMACSecretBytes, len(secret))
	}
	return secret, nil
}
