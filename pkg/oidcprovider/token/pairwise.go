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
	"encoding/base64"
)

// PairwiseSubject computes a stable pairwise `sub` value for a client
// whose subject-type is "pairwise": a hash of the client's sector
// identifier, the user's real subject, and a server-held salt, so the
// same user presents a different, non-correlatable subject to every
// sector.
func PairwiseSubject(sectorIdentifier, subject string, salt []byte) string {
	h := sha256.New()
	h.Write([]byte(sectorIdentifier))
	h.Write([]byte{0})
	h.Write([]byte(subject))
	h.Write([]byte{0})
	h.Write(salt)
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
