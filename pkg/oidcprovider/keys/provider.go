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

package keys

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"path/filepath"
	"sync"
	"time"
)

// DefaultAlgorithm is the algorithm GeneratingProvider uses when none is
// requested.
const DefaultAlgorithm = "ES256"

// SigningKeyData is a resolved signing key together with the metadata
// needed to publish it in a JWKS and reference it from a JWT header.
type SigningKeyData struct {
	KeyID     string
	Algorithm string
	Key       crypto.Signer
	CreatedAt time.Time
}

// Provider supplies the active signing key and the full set of public keys
// (current plus any fallback/rotated keys) that should appear in the JWKS
// document so relying parties can verify tokens signed under a key that has
// since rotated out.
type Provider interface {
	SigningKey(ctx context.Context) (*SigningKeyData, error)
	PublicKeys(ctx context.Context) ([]*SigningKeyData, error)
}

// Config describes where to load signing key material from disk.
type Config struct {
	// KeyDir is the directory SigningKeyFile and FallbackKeyFiles are
	// resolved relative to.
	KeyDir string
	// SigningKeyFile is the PEM file holding the active signing key.
	SigningKeyFile string
	// FallbackKeyFiles are additional PEM files whose public keys are
	// published in the JWKS (for verifying tokens signed under a
	// previous key) but which are never used to sign new tokens.
	FallbackKeyFiles []string
}

// FileProvider serves signing keys loaded once from PEM files on disk.
type FileProvider struct {
	signing *SigningKeyData
	all     []*SigningKeyData
}

// NewFileProvider loads the signing key and any fallback keys named in cfg.
func NewFileProvider(cfg Config) (*FileProvider, error) {
	if cfg.SigningKeyFile == "" {
		return nil, fmt.Errorf("signing key file is required")
	}

	signing, err := loadKeyData(cfg.KeyDir, cfg.SigningKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load signing key: %w", err)
	}

	all := []*SigningKeyData{signing}
	for _, f := range cfg.FallbackKeyFiles {
		fallback, err := loadKeyData(cfg.KeyDir, f)
		if err != nil {
			return nil, fmt.Errorf("failed to load fallback key %s: %w", f, err)
		}
		all = append(all, fallback)
	}

	return &FileProvider{signing: signing, all: all}, nil
}

func loadKeyData(dir, file string) (*SigningKeyData, error) {
	key, err := LoadSigningKey(filepath.Join(dir, file))
	if err != nil {
		return nil, err
	}
	params, err := DeriveSigningKeyParams(key, "", "")
	if err != nil {
		return nil, err
	}
	return &SigningKeyData{
		KeyID:     params.KeyID,
		Algorithm: params.Algorithm,
		Key:       key,
		CreatedAt: time.Now(),
	}, nil
}

// SigningKey returns the configured active signing key.
func (p *FileProvider) SigningKey(_ context.Context) (*SigningKeyData, error) {
	return p.signing, nil
}

// PublicKeys returns the signing key followed by every fallback key, in the
// order they were configured.
func (p *FileProvider) PublicKeys(_ context.Context) ([]*SigningKeyData, error) {
	return p.all, nil
}

// GeneratingProvider lazily generates an ECDSA signing key on first use and
// serves that same key for the remainder of the process's lifetime. It
// exists for development and test use where no key material is configured.
type GeneratingProvider struct {
	algorithm string

	mu  sync.Mutex
	key *SigningKeyData
	err error
}

// NewGeneratingProvider returns a provider that will generate a key using
// algorithm on first access. An empty algorithm selects DefaultAlgorithm.
func NewGeneratingProvider(algorithm string) *GeneratingProvider {
	if algorithm == "" {
		algorithm = DefaultAlgorithm
	}
	return &GeneratingProvider{algorithm: algorithm}
}

func (p *GeneratingProvider) ensureKey() (*SigningKeyData, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.key != nil || p.err != nil {
		return p.key, p.err
	}

	curve, ok := map[string]elliptic.Curve{
		"ES256": elliptic.P256(),
		"ES384": elliptic.P384(),
		"ES512": elliptic.P521(),
	}[p.algorithm]
	if !ok {
		p.err = fmt.Errorf("unsupported algorithm for key generation: %s", p.algorithm)
		return nil, p.err
	}

	ecKey, err := ecdsa.GenerateKey(curve, rand.Reader)
	if err != nil {
		p.err = fmt.Errorf("failed to generate signing key: %w", err)
		return nil, p.err
	}

	keyID, err := DeriveKeyID(ecKey)
	if err != nil {
		p.err = err
		return nil, p.err
	}

	p.key = &SigningKeyData{
		KeyID:     keyID,
		Algorithm: p.algorithm,
		Key:       ecKey,
		CreatedAt: time.Now(),
	}
	return p.key, nil
}

// SigningKey returns the generated signing key, generating it on first call.
func (p *GeneratingProvider) SigningKey(_ context.Context) (*SigningKeyData, error) {
	return p.ensureKey()
}

// PublicKeys returns the single generated key, generating it on first call.
func (p *GeneratingProvider) PublicKeys(_ context.Context) ([]*SigningKeyData, error) {
	key, err := p.ensureKey()
	if err != nil {
		return nil, err
	}
	return []*SigningKeyData{key}, nil
}

// NewProviderFromConfig returns a FileProvider when cfg names a signing key
// file, or a GeneratingProvider otherwise.
func NewProviderFromConfig(cfg Config) (Provider, error) {
	if cfg.SigningKeyFile == "" {
		return NewGeneratingProvider(DefaultAlgorithm), nil
	}
	return NewFileProvider(cfg)
}
