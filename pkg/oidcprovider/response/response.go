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

// Package response implements the response builders and error mapper
// (C17): rendering an authorization outcome as a query/fragment/form_post
// redirect, and mapping an OidcError to the wire shape spec.md §6 and §7
// describe for both redirect-based and JSON endpoints.
package response

import (
	"encoding/json"
	"html"
	"net/url"
	"strconv"
	"strings"

	"github.com/oidcprovider/pkg/oidcprovider/result"
)

// Redirect is a rendered authorization (or CIBA/end-session) outcome: the
// base URI to send the user agent to, the parameters to attach, and the
// mode describing how to attach them. Transport bindings are responsible
// for turning this into an actual HTTP response (302 Location header for
// query/fragment, an auto-submitting HTML form for form_post); this
// package only computes the values.
type Redirect struct {
	URI    string
	Mode   string
	Params url.Values
}

// Query returns the redirect as a query-string URL, regardless of Mode.
// Callers that need mode-specific rendering should switch on Mode
// themselves; this is a convenience for callers (and tests) that only need
// the final location.
func (r Redirect) Query() string {
	u, err := url.Parse(r.URI)
	if err != nil {
		return r.URI
	}
	q := u.Query()
	for k, v := range r.Params {
		q[k] = v
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// NewRedirect builds a Redirect for the given base URI, mode ("query",
// "fragment", or "form_post"), and parameters. An unrecognized mode is
// treated as "query".
func NewRedirect(uri, mode string, params url.Values) Redirect {
	if mode == "" {
		mode = "query"
	}
	return Redirect{URI: uri, Mode: mode, Params: params}
}

// Location renders the Redirect as the literal URI a transport binding
// should set in a Location header for "query" and "fragment" modes. For
// "form_post" it returns the base URI unchanged — FormPostHTML renders the
// body.
func (r Redirect) Location() string {
	switch r.Mode {
	case "fragment":
		u, err := url.Parse(r.URI)
		if err != nil {
			return r.URI
		}
		u.Fragment = ""
		return u.String() + "#" + r.Params.Encode()
	case "form_post":
		return r.URI
	default:
		return r.Query()
	}
}

// FormPostHTML renders the OpenID Connect form_post response_mode body: an
// auto-submitting HTML form whose hidden inputs carry Params, posting to
// URI. Every value is HTML-escaped; this is the only response mode where
// parameter values are ever embedded directly in a response body rather
// than a URL.
func (r Redirect) FormPostHTML() string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html><html><head><title>Submit</title></head><body onload=\"document.forms[0].submit()\">")
	b.WriteString(`<form method="post" action="`)
	b.WriteString(html.EscapeString(r.URI))
	b.WriteString(`">`)
	for k, values := range r.Params {
		for _, v := range values {
			b.WriteString(`<input type="hidden" name="`)
			b.WriteString(html.EscapeString(k))
			b.WriteString(`" value="`)
			b.WriteString(html.EscapeString(v))
			b.WriteString(`">`)
		}
	}
	b.WriteString("</form></body></html>")
	return b.String()
}

// ErrorRedirect builds the Redirect for an OidcError that already carries a
// resolved RedirectURI/ResponseMode (i.e. enough of the request validated
// before the failure that a redirect-shaped error is meaningful). Callers
// must check HasRedirect first; an error with no redirect info must be
// rendered as a direct JSON error instead.
func ErrorRedirect(err *result.OidcError, state string) Redirect {
	params := url.Values{}
	params.Set("error", err.ErrorCode)
	if err.ErrorDescription != "" {
		params.Set("error_description", err.ErrorDescription)
	}
	if err.ErrorURI != "" {
		params.Set("error_uri", err.ErrorURI)
	}
	if state != "" {
		params.Set("state", state)
	}
	return NewRedirect(err.RedirectURI, err.ResponseMode, params)
}

// HasRedirect reports whether err resolved enough of the request to be
// rendered as a protocol redirect rather than a direct HTTP error.
func HasRedirect(err *result.OidcError) bool {
	return err != nil && err.RedirectURI != ""
}

// JSONError is the wire shape of a direct (non-redirect) error response,
// per spec.md §6 "All errors on JSON endpoints:
// {error, error_description, optional error_uri}".
type JSONError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	ErrorURI         string `json:"error_uri,omitempty"`
}

// ToJSONError converts an OidcError to its JSON wire shape.
func ToJSONError(err *result.OidcError) JSONError {
	return JSONError{
		Error:            err.ErrorCode,
		ErrorDescription: err.ErrorDescription,
		ErrorURI:         err.ErrorURI,
	}
}

// StatusCode maps an OidcError's code to the HTTP status RFC 6749 §5.2
// (and RFC 7009/7662/CIBA's extensions) assign it on a JSON endpoint.
func StatusCode(code string) int {
	switch code {
	case result.InvalidClient:
		return 401
	case result.ServerError:
		return 500
	case result.SlowDown, result.AuthorizationPending:
		return 400
	default:
		return 400
	}
}

// Marshal serializes v (a token response, introspection result, or
// JSONError) to JSON. It exists so callers never import encoding/json
// directly, keeping the wire-shape decision centralized in this package.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// TokenResponse is the RFC 6749 §5.1 / OpenID Connect token endpoint
// success body, shared by the token endpoint and CIBA push delivery.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// IntrospectionResponse is the RFC 7662 introspection response shape.
// Fields other than Active are omitted entirely when the token is
// inactive, per spec.md §4.10's "{active: false} with no further detail".
type IntrospectionResponse struct {
	Active    bool   `json:"active"`
	Scope     string `json:"scope,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	Subject   string `json:"sub,omitempty"`
	ExpiresAt int64  `json:"exp,omitempty"`
	IssuedAt  int64  `json:"iat,omitempty"`
	Audience  string `json:"aud,omitempty"`
	TokenType string `json:"token_type,omitempty"`
}

// Inactive is the canonical {"active": false} introspection response.
func Inactive() IntrospectionResponse {
	return IntrospectionResponse{Active: false}
}

// BackchannelAuthResponse is the CIBA backchannel-authentication endpoint's
// success body: {auth_req_id, expires_in, interval}.
type BackchannelAuthResponse struct {
	AuthReqID string `json:"auth_req_id"`
	ExpiresIn int64  `json:"expires_in"`
	Interval  int64  `json:"interval,omitempty"`
}

// ParResponse is the RFC 9126 Pushed Authorization Request success body.
type ParResponse struct {
	RequestURI string `json:"request_uri"`
	ExpiresIn  int64  `json:"expires_in"`
}

// ExpiresIn renders a duration in whole seconds as the wire-format integer
// string OAuth2 JSON responses use for expires_in/interval fields.
func ExpiresIn(seconds int64) string {
	return strconv.FormatInt(seconds, 10)
}
