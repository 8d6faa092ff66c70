package agent

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/webauth-go/webauth/oauth2"
)

// Agent owns one authentication scope: it drives the authorization-code
// flow, holds the authoritative AuthState and token set, schedules token
// refreshes, and publishes every state transition to subscribers in order.
//
// An Agent performs no navigation itself: StartLogin and Logout return URLs
// for the host to navigate to, and the host invokes HandleRedirectCallback
// with the query of the redirect URL when the provider sends the user back.
// This keeps the agent free of browser dependencies and testable without
// one.
//
// Operations may be called from multiple goroutines. Overlapping async
// operations are serialized by an epoch check: an operation that suspends
// on the network captures the state epoch first and discards its result if
// another operation moved the machine on in the meantime (so a Logout
// during an in-flight Refresh wins, and the refresh result cannot
// resurrect the cleared token set).
type Agent struct {
	client     *oauth2.Client
	storage    Storage
	storageKey string
	logger     hclog.Logger
	clock      Clock
	flowExpiry time.Duration
	expirySkew time.Duration

	mu           sync.Mutex
	state        AuthState
	token        *oauth2.Token
	epoch        uint64
	refreshTimer Timer
	notifyQueue  []AuthState
	notifying    bool

	subMu   sync.Mutex
	subs    []*subscription
	nextSub uint64
}

type subscription struct {
	id uint64
	fn func(AuthState)
}

// New creates an Agent for the given config. The config is validated and
// cloned here, so later mutation of the caller's copy has no effect. A new
// agent starts in StatusNotAuthenticated.
//
// See Agent.Done() which should be called to release the agent's refresh
// timer when the agent is no longer needed.
//
// Supported options: WithLogger, WithStorage, WithStorageKey, WithClock,
// WithDoer, WithFlowExpiry, WithExpirySkew
func New(c *oauth2.Config, opt ...Option) (*Agent, error) {
	const op = "agent.New"
	if c == nil {
		return nil, fmt.Errorf("%s: config is nil: %w", op, oauth2.ErrNilParameter)
	}
	opts := getAgentOpts(opt...)

	clientOpts := []oauth2.Option{
		oauth2.WithLogger(opts.withLogger),
		oauth2.WithNow(opts.withClock.Now),
	}
	if opts.withDoer != nil {
		clientOpts = append(clientOpts, oauth2.WithDoer(opts.withDoer))
	}
	client, err := oauth2.NewClient(c, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	storage := opts.withStorage
	if storage == nil {
		storage = NewMemStorage()
	}
	storageKey := opts.withStorageKey
	if storageKey == "" {
		storageKey = "webauth/" + c.ClientID + "/pendingFlow"
	}

	return &Agent{
		client:     client,
		storage:    storage,
		storageKey: storageKey,
		logger:     opts.withLogger,
		clock:      opts.withClock,
		flowExpiry: opts.withFlowExpiry,
		expirySkew: opts.withExpirySkew,
		state:      AuthState{Status: StatusNotAuthenticated},
	}, nil
}

// Done releases the agent's resources (its scheduled refresh timer) and
// discards the result of any in-flight operation. The agent must not be
// used after Done returns.
func (a *Agent) Done() {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cancelRefreshLocked()
	a.epoch++
}

// CurrentState returns a snapshot of the agent's state. The returned
// token (if any) is a copy: mutating it has no effect on the agent.
func (a *Agent) CurrentState() AuthState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

// Subscribe registers fn to be called with a snapshot of every state
// transition from this point on, in the order the transitions happened.
// The returned cancel func removes the subscription; it's safe to call
// more than once.
//
// fn must not block for long: deliveries are serialized, so a slow
// subscriber delays every later notification. Calling agent operations
// from within fn is allowed.
func (a *Agent) Subscribe(fn func(AuthState)) (cancel func()) {
	a.subMu.Lock()
	id := a.nextSub
	a.nextSub++
	a.subs = append(a.subs, &subscription{id: id, fn: fn})
	a.subMu.Unlock()

	return func() {
		a.subMu.Lock()
		defer a.subMu.Unlock()
		for i, s := range a.subs {
			if s.id == id {
				a.subs = append(a.subs[:i], a.subs[i+1:]...)
				return
			}
		}
	}
}

// StartLogin begins a fresh authorization-code flow and returns the
// provider authorization URL for the host to navigate to. redirectTarget
// is an application-internal location (it is never sent to the provider)
// that HandleRedirectCallback hands back once the flow completes, so the
// host can restore where the user was before the login round trip.
//
// The pending flow (state, nonce, PKCE verifier) is persisted to the
// agent's Storage before the URL is returned, so the callback can be
// handled by a different process instance than the one that started the
// login. Starting a login discards any previous session: the token set is
// cleared and any earlier pending flow is overwritten.
func (a *Agent) StartLogin(ctx context.Context, redirectTarget string) (string, error) {
	const op = "agent.(Agent).StartLogin"
	flow, err := oauth2.NewPendingFlow(
		a.flowExpiry,
		oauth2.WithRedirectTarget(redirectTarget),
		oauth2.WithNow(a.clock.Now),
	)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	data, err := json.Marshal(flow)
	if err != nil {
		return "", fmt.Errorf("%s: unable to encode pending flow: %w", op, err)
	}
	if err := a.storage.Set(ctx, a.storageKey, data); err != nil {
		return "", fmt.Errorf("%s: unable to persist pending flow: %w", op, err)
	}
	authURL, err := a.client.AuthCodeURL(flow)
	if err != nil {
		_ = a.storage.Delete(ctx, a.storageKey)
		return "", fmt.Errorf("%s: %w", op, err)
	}

	a.mu.Lock()
	a.cancelRefreshLocked()
	a.token = nil
	a.setStateLocked(AuthState{Status: StatusLoggingIn})
	a.mu.Unlock()
	a.flushNotify()

	a.logger.Debug("login started", "redirect_target", redirectTarget)
	return authURL, nil
}

// HandleRedirectCallback consumes the provider's redirect back to the
// application. query is the query component of the redirect URL. On
// success the agent transitions to StatusAuthenticated and the redirect
// target given to StartLogin is returned so the host can navigate the
// user back to where they were.
//
// The pending flow is consumed exactly once: a second callback for the
// same flow (or a callback with no login in progress) returns
// ErrMissingPendingFlow without changing the agent's state, so a stray
// re-delivery cannot knock out an established session. All other failures
// (expired flow, provider error response, state mismatch, code exchange
// failure) transition the agent to StatusFailed.
func (a *Agent) HandleRedirectCallback(ctx context.Context, query url.Values) (string, error) {
	const op = "agent.(Agent).HandleRedirectCallback"
	resp := oauth2.ParseAuthResponse(query)
	if !resp.IsCallback() {
		return "", fmt.Errorf("%s: query is not an authorization response: %w", op, oauth2.ErrInvalidParameter)
	}

	data, err := a.storage.Get(ctx, a.storageKey)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return "", fmt.Errorf("%s: %w", op, ErrMissingPendingFlow)
		}
		return "", fmt.Errorf("%s: unable to read pending flow: %w", op, err)
	}
	// consume the flow before validating anything from the response
	if err := a.storage.Delete(ctx, a.storageKey); err != nil {
		a.logger.Warn("unable to delete pending flow", "err", err)
	}
	var flow oauth2.PendingFlow
	if err := json.Unmarshal(data, &flow); err != nil {
		return "", fmt.Errorf("%s: unable to decode pending flow: %w", op, ErrMissingPendingFlow)
	}

	if flow.IsExpired(oauth2.WithNow(a.clock.Now)) {
		err := fmt.Errorf("%s: %w", op, oauth2.ErrExpiredPendingFlow)
		a.fail(err)
		return "", err
	}
	if respErr := resp.Err(); respErr != nil {
		// the provider denied the request; there is nothing to exchange
		err := fmt.Errorf("%s: %w", op, respErr)
		a.fail(err)
		return "", err
	}
	if subtle.ConstantTimeCompare([]byte(resp.State), []byte(flow.State())) != 1 {
		err := fmt.Errorf("%s: %w", op, ErrStateMismatch)
		a.fail(err)
		return "", err
	}

	a.mu.Lock()
	a.cancelRefreshLocked()
	a.token = nil
	a.setStateLocked(AuthState{Status: StatusLoggingIn})
	epoch := a.epoch
	a.mu.Unlock()
	a.flushNotify()

	tok, err := a.client.Exchange(ctx, &flow, resp.Code)
	if err != nil {
		err = fmt.Errorf("%s: %w", op, err)
		a.failAtEpoch(epoch, err)
		return "", err
	}

	a.mu.Lock()
	if a.epoch != epoch {
		a.mu.Unlock()
		return "", fmt.Errorf("%s: %w", op, ErrSuperseded)
	}
	a.installTokenLocked(tok)
	a.mu.Unlock()
	a.flushNotify()

	a.logger.Debug("authenticated", "redirect_target", flow.RedirectTarget())
	return flow.RedirectTarget(), nil
}

// Refresh brings the agent's token set up to date and returns the
// resulting state. If the current access token is still valid (within the
// agent's expiry skew) this is a no-op: no request is made. An expired
// token with no refresh token fails the session without a network round
// trip.
//
// Refresh is invoked automatically by the agent's scheduled timer just
// before the access token expires; calling it directly is only needed to
// force the check (for example after the host process resumes from
// suspend).
//
// A transient network failure leaves the agent's state untouched and
// returns an error wrapping oauth2.ErrNetworkFailure: the token set may
// still be usable and a later attempt may succeed. Only a definitive
// provider rejection transitions the agent to StatusFailed.
func (a *Agent) Refresh(ctx context.Context) (AuthState, error) {
	const op = "agent.(Agent).Refresh"
	a.mu.Lock()
	if a.token == nil {
		st := a.snapshotLocked()
		a.mu.Unlock()
		return st, nil
	}
	if !a.token.Expired(oauth2.WithExpirySkew(a.expirySkew), oauth2.WithNow(a.clock.Now)) {
		st := a.snapshotLocked()
		a.mu.Unlock()
		return st, nil
	}
	if a.token.RefreshToken == "" {
		a.cancelRefreshLocked()
		a.token = nil
		err := fmt.Errorf("%s: %w", op, ErrTokenExpired)
		a.setStateLocked(AuthState{Status: StatusFailed, Err: err})
		st := a.snapshotLocked()
		a.mu.Unlock()
		a.flushNotify()
		return st, err
	}
	epoch := a.epoch
	prev := a.token.Clone()
	a.mu.Unlock()

	tok, err := a.client.Refresh(ctx, prev.RefreshToken)
	if err != nil {
		if errors.Is(err, oauth2.ErrNetworkFailure) {
			// transient; keep the current token set, a retry may succeed
			return a.CurrentState(), fmt.Errorf("%s: %w", op, err)
		}
		err = fmt.Errorf("%s: %w", op, err)
		a.failAtEpoch(epoch, err)
		return a.CurrentState(), err
	}

	a.mu.Lock()
	if a.epoch != epoch {
		st := a.snapshotLocked()
		a.mu.Unlock()
		return st, fmt.Errorf("%s: %w", op, ErrSuperseded)
	}
	if tok.RefreshToken == "" {
		// the provider did not rotate the refresh token; keep the old one
		tok.RefreshToken = prev.RefreshToken
	}
	a.installTokenLocked(tok)
	st := a.snapshotLocked()
	a.mu.Unlock()
	a.flushNotify()
	return st, nil
}

// Logout clears the agent's token set and pending flow and transitions to
// StatusNotAuthenticated. If the config has an end-session endpoint the
// returned URL is the provider logout URL (with an id_token_hint when an
// ID token was held, and redirectTarget as the post-logout redirect when
// non-empty) for the host to navigate to; otherwise it is empty and the
// logout is purely local. Local cleanup happens unconditionally.
func (a *Agent) Logout(ctx context.Context, redirectTarget string) (string, error) {
	const op = "agent.(Agent).Logout"
	a.mu.Lock()
	tok := a.token
	a.cancelRefreshLocked()
	a.token = nil
	a.setStateLocked(AuthState{Status: StatusNotAuthenticated})
	a.mu.Unlock()
	a.flushNotify()

	if err := a.storage.Delete(ctx, a.storageKey); err != nil {
		a.logger.Warn("unable to delete pending flow", "err", err)
	}

	var opts []oauth2.Option
	if redirectTarget != "" {
		opts = append(opts, oauth2.WithPostLogoutRedirectURL(redirectTarget))
	}
	if tok != nil && tok.IdToken != "" {
		opts = append(opts, oauth2.WithIDTokenHint(tok.IdToken))
	}
	logoutURL, err := a.client.LogoutURL(opts...)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	a.logger.Debug("logged out")
	return logoutURL, nil
}

// installTokenLocked makes tok the agent's token set, transitions to
// StatusAuthenticated and schedules the next refresh. a.mu must be held.
func (a *Agent) installTokenLocked(tok *oauth2.Token) {
	a.token = tok
	a.setStateLocked(AuthState{Status: StatusAuthenticated, Token: tok.Clone()})
	a.scheduleRefreshLocked()
}

// setStateLocked records s as the authoritative state, advances the epoch
// and queues the transition for delivery. a.mu must be held; the caller
// must call flushNotify after releasing it.
func (a *Agent) setStateLocked(s AuthState) {
	a.state = s
	a.epoch++
	a.notifyQueue = append(a.notifyQueue, s)
}

// fail transitions to StatusFailed unconditionally, discarding any token
// and scheduled refresh. It acquires a.mu itself.
func (a *Agent) fail(err error) {
	a.mu.Lock()
	a.cancelRefreshLocked()
	a.token = nil
	a.setStateLocked(AuthState{Status: StatusFailed, Err: err})
	a.mu.Unlock()
	a.flushNotify()
}

// failAtEpoch transitions to StatusFailed only if no other operation has
// advanced the state machine since epoch was captured.
func (a *Agent) failAtEpoch(epoch uint64, err error) {
	a.mu.Lock()
	if a.epoch != epoch {
		a.mu.Unlock()
		return
	}
	a.cancelRefreshLocked()
	a.token = nil
	a.setStateLocked(AuthState{Status: StatusFailed, Err: err})
	a.mu.Unlock()
	a.flushNotify()
}

func (a *Agent) snapshotLocked() AuthState {
	st := a.state
	st.Token = st.Token.Clone()
	return st
}

// scheduleRefreshLocked arms the refresh timer to fire the agent's expiry
// skew before the current token expires. Tokens without an expiry are
// never refreshed proactively. a.mu must be held.
func (a *Agent) scheduleRefreshLocked() {
	a.cancelRefreshLocked()
	if a.token == nil || a.token.Expiry.IsZero() {
		return
	}
	delay := a.token.Expiry.Sub(a.clock.Now()) - a.expirySkew
	if delay < 0 {
		delay = 0
	}
	epoch := a.epoch
	a.refreshTimer = a.clock.AfterFunc(delay, func() {
		a.mu.Lock()
		stale := a.epoch != epoch
		a.mu.Unlock()
		if stale {
			return
		}
		if _, err := a.Refresh(context.Background()); err != nil {
			a.logger.Debug("scheduled refresh failed", "err", err)
		}
	})
	a.logger.Debug("scheduled token refresh", "delay", delay.String())
}

func (a *Agent) cancelRefreshLocked() {
	if a.refreshTimer != nil {
		a.refreshTimer.Stop()
		a.refreshTimer = nil
	}
}

// flushNotify drains the pending transition queue and delivers each
// snapshot to every subscriber. Exactly one caller drains at a time
// (transitions queued while a drain is running are picked up by the
// running drainer), which guarantees a single total order of deliveries.
// Neither a.mu nor subMu is held while a subscriber runs, so callbacks
// may invoke agent operations, including Subscribe.
func (a *Agent) flushNotify() {
	a.mu.Lock()
	if a.notifying {
		a.mu.Unlock()
		return
	}
	a.notifying = true
	for len(a.notifyQueue) > 0 {
		next := a.notifyQueue[0]
		a.notifyQueue = a.notifyQueue[1:]
		a.mu.Unlock()

		a.subMu.Lock()
		subs := make([]*subscription, len(a.subs))
		copy(subs, a.subs)
		a.subMu.Unlock()
		for _, s := range subs {
			s.fn(AuthState{Status: next.Status, Token: next.Token.Clone(), Err: next.Err})
		}

		a.mu.Lock()
	}
	a.notifying = false
	a.mu.Unlock()
}
