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
	"context"
	"time"

	"github.com/go-jose/go-jose/v4/jwt"
	"golang.org/x/crypto/bcrypt"

	"github.com/oidcprovider/pkg/oidcprovider/logging"
	"github.com/oidcprovider/pkg/oidcprovider/result"
)

// Request carries every wire-level credential an incoming request might
// present, regardless of which authentication method it turns out to use.
// Fields the caller didn't populate are left at their zero value; the
// Authenticator only inspects the ones relevant to the method it detects.
type Request struct {
	ClientID string

	// HTTP Basic credentials (client_secret_basic).
	HasBasicAuth bool
	BasicUser    string
	BasicPass    string

	// client_secret_post.
	FormClientSecret string

	// client_secret_jwt / private_key_jwt.
	ClientAssertionType string
	ClientAssertion     string

	// tls_client_auth / self_signed_tls_client_auth: exactly one of these
	// should be populated by the caller's transport binding.
	PeerCertificateDER  []byte // direct TLS socket peer certificate
	ForwardedClientCert string // X-Forwarded-Client-Cert / X-Client-Cert

	// Audience is the token endpoint URL, used to validate the `aud` claim
	// of client_secret_jwt / private_key_jwt assertions.
	Audience string
}

const assertionTypeJWTBearer = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

// methodJWTAssertion is an internal marker meaning "the request presented
// a client_assertion"; the concrete method (client_secret_jwt vs.
// private_key_jwt) is only known once the signature has been verified
// against one of the client's registered keys.
const methodJWTAssertion AuthMethod = "_jwt_assertion"

// ReplayChecker guards client-assertion `jti` values against replay. It is
// satisfied by *storage.TokenRegistry.
type ReplayChecker interface {
	IsActive(ctx context.Context, jti string) (bool, error)
	MarkUsed(ctx context.Context, jti string, expiresAt time.Time) error
}

// Authenticator implements C2: resolving a client and verifying the
// credential it presented.
type Authenticator struct {
	registry Registry
	replay   ReplayChecker
}

// NewAuthenticator builds an Authenticator over a client Registry and a
// jti ReplayChecker (used for JWT-assertion replay protection).
func NewAuthenticator(registry Registry, replay ReplayChecker) *Authenticator {
	return &Authenticator{registry: registry, replay: replay}
}

// SupportedMethods lists every authentication method this Authenticator
// knows how to verify.
func (a *Authenticator) SupportedMethods() []AuthMethod {
	return []AuthMethod{
		MethodNone,
		MethodClientSecretBasic,
		MethodClientSecretPost,
		MethodClientSecretJWT,
		MethodPrivateKeyJWT,
		MethodTLSClientAuth,
		MethodSelfSignedTLSClientAuth,
	}
}

// Authenticate resolves the client referenced by req and verifies it used
// one of its registered authentication methods. Presenting more than one
// method's credentials in the same request is rejected with
// invalid_request.
func (a *Authenticator) Authenticate(ctx context.Context, req Request) result.Result[*Info] {
	presented := presentedMethods(req)
	if len(presented) > 1 {
		return result.Failure[*Info](result.New(result.InvalidRequest,
			"request presented credentials for more than one client authentication method"))
	}

	clientID := req.ClientID
	if clientID == "" && len(presented) == 1 && presented[0] == methodJWTAssertion {
		var err error
		clientID, err = assertionSubject(req.ClientAssertion)
		if err != nil {
			return result.Failure[*Info](result.New(result.InvalidClient, "unable to determine client_id"))
		}
	}
	if clientID == "" {
		return result.Failure[*Info](result.New(result.InvalidRequest, "client_id is required"))
	}

	info, ok, err := a.registry.Lookup(ctx, clientID)
	if err != nil {
		logging.Errorw("failed to look up client", "client_id", clientID, "error", err)
		return result.Failure[*Info](result.New(result.ServerError, "failed to look up client"))
	}
	if !ok {
		logging.Infow("client authentication failed: unknown client", "client_id", clientID)
		return result.Failure[*Info](result.New(result.InvalidClient, "unknown client"))
	}

	presentedMethod := MethodNone
	if len(presented) == 1 {
		presentedMethod = presented[0]
	}

	// Assertion methods resolve their concrete AuthMethod (and check
	// client support for it) only after the signature verifies, since
	// that's the only point at which we know which key family matched.
	// A presented certificate satisfies either TLS binding; certificate
	// verification is the same for both (see certificateMatchesClient).
	if presentedMethod == MethodTLSClientAuth && !info.SupportsMethod(MethodTLSClientAuth) &&
		info.SupportsMethod(MethodSelfSignedTLSClientAuth) {
		presentedMethod = MethodSelfSignedTLSClientAuth
	}
	if presentedMethod != methodJWTAssertion && !info.SupportsMethod(presentedMethod) {
		return result.Failure[*Info](result.New(result.InvalidClient,
			"client is not registered to use the presented authentication method"))
	}

	if err := a.verify(ctx, info, presentedMethod, req); err != nil {
		logging.Infow("client authentication failed",
			"client_id", clientID, "method", presentedMethod, "error_code", err.ErrorCode)
		return result.Failure[*Info](err)
	}

	return result.Success(info)
}

// presentedMethods inspects which credential fields req actually carries.
func presentedMethods(req Request) []AuthMethod {
	var methods []AuthMethod
	if req.HasBasicAuth {
		methods = append(methods, MethodClientSecretBasic)
	}
	if req.FormClientSecret != "" {
		methods = append(methods, MethodClientSecretPost)
	}
	if req.ClientAssertion != "" {
		methods = append(methods, methodJWTAssertion)
	}
	if len(req.PeerCertificateDER) > 0 || req.ForwardedClientCert != "" {
		methods = append(methods, MethodTLSClientAuth)
	}
	return methods
}

func (a *Authenticator) verify(ctx context.Context, info *Info, method AuthMethod, req Request) *result.OidcError {
	switch method {
	case MethodNone:
		return nil
	case MethodClientSecretBasic:
		if req.ClientID != "" && req.ClientID != info.ClientID {
			return result.New(result.InvalidClient, "client_id mismatch")
		}
		return verifySecret(info, req.BasicPass)
	case MethodClientSecretPost:
		return verifySecret(info, req.FormClientSecret)
	case MethodTLSClientAuth, MethodSelfSignedTLSClientAuth:
		return verifyCertificateBound(info, req)
	case methodJWTAssertion:
		return a.verifyAssertion(ctx, info, req)
	default:
		return result.New(result.UnauthorizedClient, "unsupported authentication method")
	}
}

func verifySecret(info *Info, presented string) *result.OidcError {
	if presented == "" {
		return result.New(result.InvalidClient, "client secret is required")
	}
	now := time.Now()
	for _, s := range info.Secrets {
		if !s.activeAt(now) {
			continue
		}
		if bcrypt.CompareHashAndPassword(s.Hash, []byte(presented)) == nil {
			return nil
		}
	}
	return result.New(result.InvalidClient, "client secret is invalid")
}

// verifyCertificateBound checks a TLS-bound client credential. The edge
// may forward the peer certificate as a raw socket cert or as a header in
// PEM, base64-DER, or URL-encoded-PEM form; all three are accepted.
func verifyCertificateBound(info *Info, req Request) *result.OidcError {
	cert, err := resolvePeerCertificate(req)
	if err != nil || cert == nil {
		return result.New(result.InvalidClient, "no client certificate presented")
	}
	if !certificateMatchesClient(info, cert) {
		return result.New(result.InvalidClient, "client certificate does not match registered binding")
	}
	return nil
}

// verifyAssertion validates a client_secret_jwt / private_key_jwt
// assertion: it tries the client's HMAC secrets first, then its JWKS
// public keys, and whichever family verifies the signature determines the
// concrete method that must be in the client's registered AuthMethods.
func (a *Authenticator) verifyAssertion(ctx context.Context, info *Info, req Request) *result.OidcError {
	if req.ClientAssertionType != assertionTypeJWTBearer {
		return result.New(result.InvalidClient, "unsupported client_assertion_type")
	}

	claims, method, err := resolveAssertionClaims(info, req.ClientAssertion)
	if err != nil {
		return result.New(result.InvalidClient, "client assertion signature or claims are invalid")
	}
	if !info.SupportsMethod(method) {
		return result.New(result.InvalidClient, "client is not registered to use the presented authentication method")
	}

	if claims.Subject != info.ClientID || claims.Issuer != info.ClientID {
		return result.New(result.InvalidClient, "client assertion iss/sub must equal client_id")
	}
	if !audienceContains(claims.Audience, req.Audience) {
		return result.New(result.InvalidClient, "client assertion aud does not match token endpoint")
	}
	if claims.Expiry == nil || claims.Expiry.Time().Before(time.Now()) {
		return result.New(result.InvalidClient, "client assertion has expired")
	}
	if claims.ID == "" {
		return result.New(result.InvalidClient, "client assertion jti is required")
	}

	if a.replay != nil {
		active, err := a.replay.IsActive(ctx, claims.ID)
		if err != nil {
			logging.Errorw("failed to check client assertion replay status", "jti", claims.ID, "error", err)
			return result.New(result.ServerError, "failed to check client assertion replay status")
		}
		if !active {
			return result.New(result.InvalidClient, "client assertion jti has already been used")
		}
		if err := a.replay.MarkUsed(ctx, claims.ID, claims.Expiry.Time()); err != nil {
			logging.Errorw("failed to record client assertion jti", "jti", claims.ID, "error", err)
			return result.New(result.ServerError, "failed to record client assertion jti")
		}
	}

	return nil
}

func audienceContains(aud jwt.Audience, want string) bool {
	for _, a := range aud {
		if a == want {
			return true
		}
	}
	return false
}

// assertionSubject extracts the `sub` claim without verifying the
// signature, solely to resolve which client's keys to verify against.
func assertionSubject(assertion string) (string, error) {
	tok, err := jwt.ParseSigned(assertion, allAssertionAlgorithms)
	if err != nil {
		return "", err
	}
	var claims jwt.Claims
	if err := tok.UnsafeClaimsWithoutVerification(&claims); err != nil {
		return "", err
	}
	return claims.Subject, nil
}
