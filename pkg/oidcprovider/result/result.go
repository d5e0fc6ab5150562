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

// Package result defines the typed success/failure algebra every handler in
// this module returns instead of throwing for expected protocol outcomes.
package result

import "fmt"

// Error codes from the OAuth 2.0 / OpenID Connect registry that the core
// handlers are known to produce.
const (
	InvalidRequest           = "invalid_request"
	InvalidClient             = "invalid_client"
	InvalidGrant              = "invalid_grant"
	InvalidScope              = "invalid_scope"
	UnauthorizedClient        = "unauthorized_client"
	UnsupportedGrantType      = "unsupported_grant_type"
	AccessDenied              = "access_denied"
	ConsentRequired           = "consent_required"
	LoginRequired             = "login_required"
	InteractionRequired       = "interaction_required"
	AccountSelectionRequired  = "account_selection_required"
	InvalidRequestObject      = "invalid_request_object"
	InvalidRequestURI         = "invalid_request_uri"
	InvalidTarget             = "invalid_target"
	InvalidClientMetadata     = "invalid_client_metadata"
	SlowDown                  = "slow_down"
	AuthorizationPending      = "authorization_pending"
	ExpiredToken              = "expired_token"
	ServerError                = "server_error"
)

// OidcError is the failure value carried by a Result. ErrorURI, RedirectURI
// and ResponseMode are populated once a validator has resolved enough of
// the request to render a protocol-conformant redirect error; until then
// they are empty and the caller must fall back to a direct JSON error body,
// whose HTTP status response.StatusCode derives from ErrorCode.
type OidcError struct {
	ErrorCode        string
	ErrorDescription string
	ErrorURI         string
	RedirectURI      string
	ResponseMode     string
}

// Error implements the error interface so an OidcError can be returned or
// wrapped using ordinary Go error-handling idioms alongside Result.
func (e *OidcError) Error() string {
	if e.ErrorDescription != "" {
		return fmt.Sprintf("%s: %s", e.ErrorCode, e.ErrorDescription)
	}
	return e.ErrorCode
}

// New builds an OidcError with the given code and description.
func New(code, description string) *OidcError {
	return &OidcError{ErrorCode: code, ErrorDescription: description}
}

// WithRedirect returns a copy of e annotated with the redirect URI and
// response mode a handler resolved before the failure occurred.
func (e *OidcError) WithRedirect(redirectURI, responseMode string) *OidcError {
	cp := *e
	cp.RedirectURI = redirectURI
	cp.ResponseMode = responseMode
	return &cp
}

// Result is the sum type every C1-consuming handler returns: exactly one of
// Value or Err is meaningful, selected by Ok.
type Result[T any] struct {
	value T
	err   *OidcError
	ok    bool
}

// Success wraps a successful value.
func Success[T any](value T) Result[T] {
	return Result[T]{value: value, ok: true}
}

// Failure wraps a protocol failure.
func Failure[T any](err *OidcError) Result[T] {
	return Result[T]{err: err, ok: false}
}

// Ok reports whether the result is a success.
func (r Result[T]) Ok() bool {
	return r.ok
}

// Value returns the success value. It panics if the result is a failure;
// callers should check Ok (or use Match/Bind) first.
func (r Result[T]) Value() T {
	if !r.ok {
		panic("result: Value called on a Failure result")
	}
	return r.value
}

// Err returns the failure value, or nil if the result is a success.
func (r Result[T]) Err() *OidcError {
	return r.err
}

// Bind chains a function that itself returns a Result: on success it
// invokes fn with the wrapped value; on failure it short-circuits and
// propagates the existing error unchanged.
func Bind[T, U any](r Result[T], fn func(T) Result[U]) Result[U] {
	if !r.ok {
		return Failure[U](r.err)
	}
	return fn(r.value)
}

// Map transforms a successful value, leaving a failure untouched.
func Map[T, U any](r Result[T], fn func(T) U) Result[U] {
	if !r.ok {
		return Failure[U](r.err)
	}
	return Success(fn(r.value))
}

// Match invokes onSuccess or onFailure depending on the result's outcome
// and returns whichever value that callback produces.
func Match[T, U any](r Result[T], onSuccess func(T) U, onFailure func(*OidcError) U) U {
	if r.ok {
		return onSuccess(r.value)
	}
	return onFailure(r.err)
}
