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

// Package ciba implements the Client-Initiated Backchannel Authentication
// coordinator (C13): accepting a backchannel-authentication request,
// driving it through the external device-authentication collaborator,
// and delivering the outcome to the client via poll, ping, or push, with
// cancellable long-poll waiters for poll clients.
package ciba

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/oidcprovider/pkg/oidcprovider/client"
	"github.com/oidcprovider/pkg/oidcprovider/httpfetch"
	"github.com/oidcprovider/pkg/oidcprovider/logging"
	"github.com/oidcprovider/pkg/oidcprovider/response"
	"github.com/oidcprovider/pkg/oidcprovider/result"
	"github.com/oidcprovider/pkg/oidcprovider/storage"
	"github.com/oidcprovider/pkg/oidcprovider/token"
)

// HintResolver performs the out-of-band user-device authentication a
// backchannel request requires: push notification to a registered device,
// SMS/FIDO challenge, or whatever mechanism the deployment wires in. It
// returns the authenticated session, or an error/nil session to deny the
// request.
type HintResolver interface {
	Resolve(ctx context.Context, req Request) (*storage.AuthSession, error)
}

// Lifetimes bounds the TTLs Handler assigns to tokens it mints directly
// (poll/ping token-endpoint issuance is handled by grant.CIBAGrantHandler
// and tokenendpoint.Handler instead; these lifetimes are used only for
// push delivery, which this package builds the token response for
// itself).
type Lifetimes struct {
	AccessToken  time.Duration
	RefreshToken time.Duration
	IDToken      time.Duration
}

func (l Lifetimes) withDefaults() Lifetimes {
	if l.AccessToken <= 0 {
		l.AccessToken = time.Hour
	}
	if l.RefreshToken <= 0 {
		l.RefreshToken = 7 * 24 * time.Hour
	}
	if l.IDToken <= 0 {
		l.IDToken = time.Hour
	}
	return l
}

// Config supplies Handler's collaborators and policy.
type Config struct {
	Registry      client.Registry
	Authenticator *client.Authenticator
	Store         *storage.CIBAStore
	RefreshGrants *storage.RefreshGrantStore
	Resolver      HintResolver
	Tokens        *token.Service
	Notifier      *httpfetch.Fetcher

	Issuer string

	// DefaultExpiry/MaxExpiry bound the requested_expiry parameter.
	DefaultExpiry time.Duration
	MaxExpiry     time.Duration

	// PollInterval is advertised to poll/ping clients and enforced by
	// grant.CIBAGrantHandler.
	PollInterval time.Duration

	// WaitTimeout bounds how long Wait will hold a long-poll open.
	WaitTimeout time.Duration

	Lifetimes    Lifetimes
	PairwiseSalt []byte
}

func (c Config) withDefaults() Config {
	if c.DefaultExpiry <= 0 {
		c.DefaultExpiry = 120 * time.Second
	}
	if c.MaxExpiry <= 0 {
		c.MaxExpiry = 10 * time.Minute
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = 30 * time.Second
	}
	c.Lifetimes = c.Lifetimes.withDefaults()
	return c
}

// Handler implements C13.
type Handler struct {
	registry client.Registry
	auth     *client.Authenticator
	store    *storage.CIBAStore
	refresh  *storage.RefreshGrantStore
	resolver HintResolver
	tokens   *token.Service
	notifier *httpfetch.Fetcher
	cfg      Config
	waiters  *waiterHub
	// completion de-dupes concurrent attempts to resolve the same
	// auth_req_id's outcome (the device-authentication collaborator
	// callback racing a transport-level retry, for instance) so the
	// status transition, waiter signal, and notification delivery each
	// happen exactly once per auth_req_id.
	completion singleflight.Group
	now        func() time.Time
}

// New builds a Handler from cfg.
func New(cfg Config) *Handler {
	return &Handler{
		registry: cfg.Registry,
		auth:     cfg.Authenticator,
		store:    cfg.Store,
		refresh:  cfg.RefreshGrants,
		resolver: cfg.Resolver,
		tokens:   cfg.Tokens,
		notifier: cfg.Notifier,
		cfg:      cfg.withDefaults(),
		waiters:  newWaiterHub(),
		now:      time.Now,
	}
}

// Request is the wire-level shape of a backchannel-authentication
// request.
type Request struct {
	Auth client.Request

	Scope                   string
	LoginHint               string
	IDTokenHint             string
	LoginHintToken          string
	BindingMessage          string
	UserCode                string
	RequestedExpiry         string
	ClientNotificationToken string
	Resources               []string
}

// Authenticate validates req, creates the pending backchannel
// authentication request, and asynchronously begins out-of-band
// user-device authentication.
func (h *Handler) Authenticate(ctx context.Context, req Request) result.Result[response.BackchannelAuthResponse] {
	authResult := h.auth.Authenticate(ctx, req.Auth)
	if !authResult.Ok() {
		logging.Infow("ciba request client authentication failed", "error_code", authResult.Err().ErrorCode)
		return result.Failure[response.BackchannelAuthResponse](authResult.Err())
	}
	info := authResult.Value()

	if req.LoginHint == "" && req.IDTokenHint == "" && req.LoginHintToken == "" {
		return result.Failure[response.BackchannelAuthResponse](result.New(result.InvalidRequest,
			"one of login_hint, id_token_hint, or login_hint_token is required"))
	}

	deliveryMode := storage.CIBADeliveryMode(info.DeliveryMode)
	notifyRequired := deliveryMode == storage.CIBAPing || deliveryMode == storage.CIBAPush
	if notifyRequired && req.ClientNotificationToken == "" {
		return result.Failure[response.BackchannelAuthResponse](result.New(result.InvalidRequest,
			"client_notification_token is required for ping and push delivery"))
	}

	if req.RequestedExpiry != "" {
		if seconds, err := strconv.Atoi(req.RequestedExpiry); err != nil || seconds < 0 {
			return result.Failure[response.BackchannelAuthResponse](result.New(result.InvalidRequest,
				"requested_expiry must be a non-negative integer number of seconds"))
		}
	}

	now := h.now()
	expiry := h.resolveExpiry(req.RequestedExpiry)

	status := storage.CIBAPending
	if notifyRequired {
		if err := h.notifier.ValidateDestination(info.NotificationEndpoint); err != nil {
			logging.Warnw("ciba client notification endpoint is misconfigured, denying request",
				"client_id", info.ClientID, "error", err)
			status = storage.CIBADenied
		}
	}

	record := storage.CIBARecord{
		Grant: storage.AuthorizedGrant{
			Context: storage.AuthorizationContext{
				ClientID:  info.ClientID,
				Scopes:    strings.Fields(req.Scope),
				Resources: req.Resources,
			},
		},
		Status:               status,
		ExpiresAt:            now.Add(expiry),
		NextPollAt:           now,
		NotificationEndpoint: info.NotificationEndpoint,
		NotificationToken:    req.ClientNotificationToken,
		DeliveryMode:         deliveryMode,
	}

	authReqID, err := h.store.Create(ctx, record)
	if err != nil {
		return result.Failure[response.BackchannelAuthResponse](result.New(result.ServerError,
			"failed to store backchannel authentication request"))
	}

	if status == storage.CIBAPending {
		h.beginAuthentication(authReqID, req, expiry)
	}

	return result.Success(response.BackchannelAuthResponse{
		AuthReqID: authReqID,
		ExpiresIn: int64(expiry / time.Second),
		Interval:  int64(h.cfg.PollInterval / time.Second),
	})
}

// resolveExpiry parses the requested_expiry parameter (seconds), clamping
// it to at most MaxExpiry and falling back to DefaultExpiry when absent or
// zero. Authenticate has already rejected non-numeric and negative values
// with invalid_request.
func (h *Handler) resolveExpiry(requested string) time.Duration {
	if requested == "" {
		return h.cfg.DefaultExpiry
	}
	seconds, err := strconv.Atoi(requested)
	if err != nil || seconds <= 0 {
		return h.cfg.DefaultExpiry
	}
	d := time.Duration(seconds) * time.Second
	if d > h.cfg.MaxExpiry {
		return h.cfg.MaxExpiry
	}
	return d
}

// beginAuthentication drives the external device-authentication
// collaborator in the background, bounded by the request's own expiry so
// an abandoned resolver call cannot outlive the backchannel request it
// belongs to.
func (h *Handler) beginAuthentication(authReqID string, req Request, expiry time.Duration) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), expiry)
		defer cancel()

		session, err := h.resolver.Resolve(ctx, req)
		if err != nil {
			logging.Warnw("ciba device authentication collaborator failed", "auth_req_id", authReqID, "error", err)
		}
		h.complete(ctx, authReqID, session)
	}()
}

// complete applies the collaborator's outcome to the stored record,
// signals any long-poll waiters, and performs ping/push delivery. It is a
// no-op if the record has already transitioned (expired and was removed,
// or was denied at creation time).
func (h *Handler) complete(ctx context.Context, authReqID string, session *storage.AuthSession) {
	_, _, _ = h.completion.Do(authReqID, func() (any, error) {
		record, err := h.store.Get(ctx, authReqID)
		if err != nil {
			logging.Debugw("ciba record no longer present at completion", "auth_req_id", authReqID)
			return nil, nil
		}
		if record.Status != storage.CIBAPending {
			return nil, nil
		}

		if session == nil {
			record.Status = storage.CIBADenied
		} else {
			record.Status = storage.CIBAAuthenticated
			record.Grant.Session = *session
			record.Grant.Session.AddAffectedClient(record.Grant.Context.ClientID)
		}

		if err := h.store.Update(ctx, *record); err != nil {
			logging.Errorw("failed to persist ciba status transition", "auth_req_id", authReqID, "error", err)
			return nil, nil
		}

		h.waiters.signal(authReqID, record.Status)

		if record.Status != storage.CIBAAuthenticated {
			return nil, nil
		}

		switch record.DeliveryMode {
		case storage.CIBAPing:
			h.deliverPing(ctx, authReqID, *record)
		case storage.CIBAPush:
			h.deliverPush(ctx, authReqID, *record)
		}
		return nil, nil
	})
}

// pingPayload is the body POSTed to the client notification endpoint in
// ping mode, per CIBA §10.2.
type pingPayload struct {
	AuthReqID string `json:"auth_req_id"`
}

func (h *Handler) deliverPing(ctx context.Context, authReqID string, record storage.CIBARecord) {
	body, err := json.Marshal(pingPayload{AuthReqID: authReqID})
	if err != nil {
		logging.Errorw("failed to marshal ciba ping payload", "auth_req_id", authReqID, "error", err)
		return
	}

	res := h.notifier.Post(ctx, record.NotificationEndpoint, body, map[string]string{
		"Authorization": "Bearer " + record.NotificationToken,
	})
	if !res.Ok() {
		logging.Warnw("ciba ping delivery failed, client will learn the outcome by polling instead",
			"auth_req_id", authReqID, "client_id", record.Grant.Context.ClientID, "error", res.Err().ErrorDescription)
	}
}

func (h *Handler) deliverPush(ctx context.Context, authReqID string, record storage.CIBARecord) {
	defer func() {
		if err := h.store.Delete(ctx, authReqID); err != nil {
			logging.Errorw("failed to delete ciba record after push delivery", "auth_req_id", authReqID, "error", err)
		}
	}()

	resp, err := h.issuePushTokens(ctx, record)
	if err != nil {
		logging.Errorw("failed to issue tokens for ciba push delivery", "auth_req_id", authReqID, "error", err)
		return
	}

	body, err := json.Marshal(resp)
	if err != nil {
		logging.Errorw("failed to marshal ciba push token response", "auth_req_id", authReqID, "error", err)
		return
	}

	res := h.notifier.Post(ctx, record.NotificationEndpoint, body, map[string]string{
		"Authorization": "Bearer " + record.NotificationToken,
	})
	if !res.Ok() {
		logging.Warnw("ciba push delivery failed; tokens were minted but could not be delivered",
			"auth_req_id", authReqID, "client_id", record.Grant.Context.ClientID, "error", res.Err().ErrorDescription)
	}
}

// issuePushTokens mints the access/id/refresh tokens push delivery
// requires. An id_token is mandatory in push mode per CIBA, regardless of
// whether openid was requested.
func (h *Handler) issuePushTokens(ctx context.Context, record storage.CIBARecord) (response.TokenResponse, error) {
	now := h.now()
	grantCtx := record.Grant.Context

	subject := record.Grant.Session.Subject
	if info, ok, err := h.registry.Lookup(ctx, grantCtx.ClientID); err == nil && ok {
		subject = h.subjectFor(info, record.Grant.Session.Subject)
	}
	audience := grantCtx.Resources
	if len(audience) == 0 {
		audience = []string{h.cfg.Issuer}
	}

	accessJTI := uuid.NewString()
	accessExpiresAt := now.Add(h.cfg.Lifetimes.AccessToken)
	accessToken, err := h.tokens.IssueAccessToken(ctx, token.AccessTokenInput{
		Issuer:    h.cfg.Issuer,
		Subject:   subject,
		Audience:  audience,
		ClientID:  grantCtx.ClientID,
		Scopes:    grantCtx.Scopes,
		JTI:       accessJTI,
		IssuedAt:  now,
		ExpiresAt: accessExpiresAt,
	})
	if err != nil {
		return response.TokenResponse{}, err
	}

	resp := response.TokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(h.cfg.Lifetimes.AccessToken / time.Second),
		Scope:       strings.Join(grantCtx.Scopes, " "),
	}

	if h.containsScope(grantCtx.Scopes, "offline_access") {
		refreshJTI := uuid.NewString()
		refreshExpiresAt := now.Add(h.cfg.Lifetimes.RefreshToken)
		refreshToken, err := h.tokens.IssueRefreshToken(ctx, token.RefreshTokenInput{
			Issuer:    h.cfg.Issuer,
			Subject:   subject,
			ClientID:  grantCtx.ClientID,
			Scopes:    grantCtx.Scopes,
			JTI:       refreshJTI,
			IssuedAt:  now,
			ExpiresAt: refreshExpiresAt,
		})
		if err != nil {
			return response.TokenResponse{}, err
		}
		if err := h.refresh.Store(ctx, refreshJTI, record.Grant, h.cfg.Lifetimes.RefreshToken); err != nil {
			return response.TokenResponse{}, err
		}
		resp.RefreshToken = refreshToken
	}

	idToken, err := h.tokens.IssueIDToken(ctx, token.IDTokenInput{
		Issuer:      h.cfg.Issuer,
		Subject:     subject,
		Audience:    []string{grantCtx.ClientID},
		AuthTime:    record.Grant.Session.AuthTime,
		ACR:         record.Grant.Session.ACR,
		AMR:         record.Grant.Session.AMR,
		IssuedAt:    now,
		ExpiresAt:   now.Add(h.cfg.Lifetimes.IDToken),
		AccessToken: accessToken,
	})
	if err != nil {
		return response.TokenResponse{}, err
	}
	resp.IDToken = idToken

	return resp, nil
}

func (h *Handler) subjectFor(info *client.Info, realSubject string) string {
	if info.SubjectType != client.SubjectTypePairwise {
		return realSubject
	}
	return token.PairwiseSubject(info.SectorIdentifier, realSubject, h.cfg.PairwiseSalt)
}

func (h *Handler) containsScope(scopes []string, want string) bool {
	for _, s := range scopes {
		if s == want {
			return true
		}
	}
	return false
}

// Wait holds a long-poll request open until authReqID transitions out of
// Pending or the configured WaitTimeout elapses, whichever comes first.
// Waiters register before re-checking current status, closing the
// lost-wakeup window between the initial read and registration.
func (h *Handler) Wait(ctx context.Context, authReqID string) (storage.CIBAStatus, error) {
	record, err := h.store.Get(ctx, authReqID)
	if err != nil {
		return storage.CIBAPending, err
	}
	if record.Status != storage.CIBAPending {
		return record.Status, nil
	}

	ch := h.waiters.register(authReqID)
	defer h.waiters.deregister(authReqID, ch)

	record, err = h.store.Get(ctx, authReqID)
	if err != nil {
		return storage.CIBAPending, err
	}
	if record.Status != storage.CIBAPending {
		return record.Status, nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, h.cfg.WaitTimeout)
	defer cancel()

	select {
	case status := <-ch:
		return status, nil
	case <-waitCtx.Done():
		return storage.CIBAPending, waitCtx.Err()
	}
}
