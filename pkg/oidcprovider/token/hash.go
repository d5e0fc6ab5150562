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

package token

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"strings"
)

// leftmostHash implements the at_hash/c_hash computation: base64url
// (no padding) of the leftmost half of the hash of the ASCII value,
// using the hash algorithm matched to the signing algorithm's bit
// length (SHA-256 for *256, SHA-384 for *384, SHA-512 for *512).
func leftmostHash(signingAlg string, value string) (string, error) {
	var sum []byte
	switch {
	case strings.HasSuffix(signingAlg, "256"):
		h := sha256.Sum256([]byte(value))
		sum = h[:]
	case strings.HasSuffix(signingAlg, "384"):
		h := sha512.Sum384([]byte(value))
		sum = h[:]
	case strings.HasSuffix(signingAlg, "512"):
		h := sha512.Sum512([]byte(value))
		sum = h[:]
	case signingAlg == "EdDSA":
		h := sha512.Sum512([]byte(value))
		sum = h[:]
	default:
		return "", fmt.Errorf("unsupported signing algorithm for hash claim: %s", signingAlg)
	}
	half := sum[:len(sum)/2]
	return base64.RawURLEncoding.EncodeToString(half), nil
}
