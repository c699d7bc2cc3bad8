package sessionx

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Controller owns the session: it exchanges credentials with the backend,
// persists the token and is the only writer of the token entry in the Store.
// Build one per process and hand it to the consumers that need it.
type Controller struct {
	api     AuthAPI
	store   *Store
	policy  *Policy
	log     *zap.Logger
	metrics *Metrics
	nav     Navigator
	routes  RouteConfig
	key     string

	mu       sync.Mutex
	state    State
	token    string
	user     *User
	loading  bool
	inflight bool
	closed   bool
	// generation advances whenever a session ends so that late responses
	// started under an older session are dropped.
	generation uint64
	subs       map[int]func(Session)
	nextSub    int
}

// ControllerOption customizes a Controller.
type ControllerOption func(*Controller)

// WithLogger sets the audit and diagnostic logger.
func WithLogger(l *zap.Logger) ControllerOption {
	return func(c *Controller) {
		c.log = l
	}
}

// WithMetrics records attempts and logouts.
func WithMetrics(m *Metrics) ControllerOption {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithNavigator sets where post-transition navigation is sent.
func WithNavigator(n Navigator) ControllerOption {
	return func(c *Controller) {
		c.nav = n
	}
}

// WithPolicy replaces the default expiry policy.
func WithPolicy(p *Policy) ControllerOption {
	return func(c *Controller) {
		if p != nil {
			c.policy = p
		}
	}
}

// WithRoutes overrides the landing and sign-in routes.
func WithRoutes(r RouteConfig) ControllerOption {
	return func(c *Controller) {
		c.routes = r
	}
}

// WithTokenKey overrides the store key holding the bearer token.
func WithTokenKey(key string) ControllerOption {
	return func(c *Controller) {
		if key != "" {
			c.key = key
		}
	}
}

// NewController builds a controller in StateInitializing; call Initialize to
// restore a stored session.
func NewController(api AuthAPI, store *Store, opts ...ControllerOption) *Controller {
	c := &Controller{
		api:     api,
		store:   store,
		policy:  defaultPolicy,
		key:     defaultTokenKey,
		state:   StateInitializing,
		loading: true,
		subs:    make(map[int]func(Session)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.routes.normalize()
	c.log = orNop(c.log)
	if c.store == nil {
		c.store = NewStore(nil, WithStoreLogger(c.log), WithStoreMetrics(c.metrics))
	}
	return c
}

// Session returns the current snapshot.
func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// IsAuthenticated reports whether both a token and a user are held.
func (c *Controller) IsAuthenticated() bool {
	return c.Session().IsAuthenticated()
}

// IsLoading reports whether a network-bound auth operation is pending.
func (c *Controller) IsLoading() bool {
	return c.Session().Loading
}

// Policy returns the expiry policy in use.
func (c *Controller) Policy() *Policy {
	return c.policy
}

// Subscribe registers fn to receive every new snapshot. The returned function
// removes it; after that fn is never called again.
func (c *Controller) Subscribe(fn func(Session)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// Close detaches every subscriber; results that arrive afterwards are ignored.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.subs = make(map[int]func(Session))
	c.mu.Unlock()
}

// Initialize restores the stored session, confirming the token with the backend.
// Every failure purges the stored token and settles in StateUnauthenticated.
func (c *Controller) Initialize(ctx context.Context) State {
	c.mu.Lock()
	if c.inflight || c.state == StateLoggingOut {
		state := c.state
		c.mu.Unlock()
		return state
	}
	c.state = StateInitializing
	c.loading = true
	c.inflight = true
	gen := c.generation
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)

	token, ok := c.store.GetString(ctx, c.key)
	if !ok || token == "" {
		c.log.Debug("no stored session")
		return c.settleUnauthenticated(ctx, gen, "", nil)
	}
	if _, err := Decode(token); err != nil {
		return c.settleUnauthenticated(ctx, gen, reasonInvalidStored, err)
	}
	if c.policy.IsExpired(token) {
		return c.settleUnauthenticated(ctx, gen, reasonExpired, nil)
	}

	user, err := c.api.Me(ctx, token)
	c.metrics.attempt("me", err)
	if err != nil {
		return c.settleUnauthenticated(ctx, gen, reasonRejected, err)
	}

	c.mu.Lock()
	if c.closed || gen != c.generation {
		c.inflight = false
		c.loading = false
		state := c.state
		c.mu.Unlock()
		return state
	}
	c.token = token
	c.user = user
	c.state = StateAuthenticated
	c.loading = false
	c.inflight = false
	snap = c.snapshotLocked()
	c.mu.Unlock()

	c.log.Info("session restored",
		zap.String("subject", user.ID),
		zap.String("email", user.Email),
	)
	c.publish(snap)
	return StateAuthenticated
}

// Login exchanges credentials for a session. Backend errors are returned
// unchanged and leave the session untouched.
func (c *Controller) Login(ctx context.Context, email, password string) error {
	req := LoginRequest{Email: email, Password: password}
	if err := req.Validate(); err != nil {
		return err
	}
	return c.authenticate(ctx, "login", email, func(ctx context.Context) (*AuthResponse, error) {
		return c.api.Login(ctx, req)
	})
}

// Signup registers a principal and starts a session with the returned token.
// A request without an organization name fails before any network call.
func (c *Controller) Signup(ctx context.Context, req SignupRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	return c.authenticate(ctx, "signup", req.Email, func(ctx context.Context) (*AuthResponse, error) {
		return c.api.Signup(ctx, req)
	})
}

// Logout clears the session locally. It never contacts the backend and always succeeds.
func (c *Controller) Logout() {
	c.endSession(context.Background(), reasonExplicit)
}

// RefreshUser re-fetches the user for the current token. A failed fetch ends
// the session exactly like Logout.
func (c *Controller) RefreshUser(ctx context.Context) {
	token, gen := c.current()
	if token == "" {
		return
	}

	user, err := c.api.Me(ctx, token)
	c.metrics.attempt("me", err)
	if err != nil {
		if !c.endSessionIfCurrent(ctx, gen, token, reasonRefreshFailed) {
			c.log.Debug("stale user refresh failed, session already replaced", zap.Error(err))
			return
		}
		c.log.Warn("user refresh failed, session ended", zap.Error(err))
		return
	}

	c.mu.Lock()
	if c.closed || gen != c.generation || c.token != token {
		c.mu.Unlock()
		return
	}
	c.user = user
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)
}

// CheckExpiry evaluates the current token and ends the session when the
// policy demands it.
func (c *Controller) CheckExpiry(ctx context.Context) Status {
	token, gen := c.current()
	if token == "" {
		return Status{}
	}

	status := c.policy.Evaluate(token)
	switch {
	case status.ForceLogout:
		if c.endSessionIfCurrent(ctx, gen, token, reasonExpired) {
			c.log.Info("session expired, logged out", zap.Int("minutes_left", status.MinutesLeft))
		}
	case status.Warn:
		c.log.Info("session expiring soon",
			zap.Int("minutes_left", status.MinutesLeft),
			zap.String("expires_at", status.ExpiresAt),
		)
	}
	return status
}

// Watch runs CheckExpiry every interval until ctx is done, handing each
// non-empty result to onStatus.
func (c *Controller) Watch(ctx context.Context, interval time.Duration, onStatus func(Status)) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status := c.CheckExpiry(ctx)
			if onStatus != nil && (status.Valid || status.ForceLogout) {
				onStatus(status)
			}
		}
	}
}

func (c *Controller) authenticate(
	ctx context.Context,
	operation, email string,
	call func(context.Context) (*AuthResponse, error),
) error {
	log := c.log.With(
		zap.String("operation", operation),
		zap.String("attempt_id", attemptID(ctx)),
	)

	c.mu.Lock()
	if c.inflight || c.state == StateLoggingOut {
		c.mu.Unlock()
		return newError(ErrCodeBusy, nil)
	}
	c.inflight = true
	c.loading = true
	gen := c.generation
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)

	resp, err := call(ctx)
	c.metrics.attempt(operation, err)
	if err != nil {
		c.finish()
		log.Warn("authentication failed", zap.String("email", email), zap.Error(err))
		return err
	}

	// The token must be persisted before the authenticated state is observable.
	if !c.store.Set(ctx, c.key, resp.AccessToken) {
		log.Warn("token not persisted, session will not survive a restart")
	}

	user := resp.User
	c.mu.Lock()
	if c.closed || gen != c.generation {
		c.inflight = false
		c.loading = false
		c.mu.Unlock()
		c.store.Remove(ctx, c.key)
		log.Info("session ended while authenticating, discarding token")
		return newError(ErrCodeUnauthenticated, errors.New("session ended during authentication"))
	}
	c.token = resp.AccessToken
	c.user = &user
	c.state = StateAuthenticated
	c.loading = false
	c.inflight = false
	snap = c.snapshotLocked()
	c.mu.Unlock()

	log.Info("authentication succeeded",
		zap.String("subject", user.ID),
		zap.String("email", user.Email),
	)
	c.publish(snap)
	c.navigate(c.routes.Landing)
	return nil
}

func (c *Controller) finish() {
	c.mu.Lock()
	c.inflight = false
	c.loading = false
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)
}

// settleUnauthenticated ends initialization without a session. A non-empty
// reason means a stored token existed and is purged.
func (c *Controller) settleUnauthenticated(ctx context.Context, gen uint64, reason string, cause error) State {
	if reason != "" {
		c.store.Remove(ctx, c.key)
		c.metrics.logout(reason)
		c.log.Info("stored session discarded", zap.String("reason", reason), zap.Error(cause))
	}

	c.mu.Lock()
	c.inflight = false
	c.loading = false
	if c.closed || gen != c.generation {
		state := c.state
		c.mu.Unlock()
		return state
	}
	c.token = ""
	c.user = nil
	c.state = StateUnauthenticated
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(snap)
	if reason != "" {
		c.navigate(c.routes.SignIn)
	}
	return StateUnauthenticated
}

// current returns the held token and the generation it belongs to.
func (c *Controller) current() (string, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token, c.generation
}

func (c *Controller) endSession(ctx context.Context, reason string) {
	c.mu.Lock()
	snap := c.beginLogoutLocked()
	c.mu.Unlock()
	c.completeLogout(ctx, reason, snap)
}

// endSessionIfCurrent ends the session only while it is still the one
// identified by gen and token. It reports whether it did.
func (c *Controller) endSessionIfCurrent(ctx context.Context, gen uint64, token, reason string) bool {
	c.mu.Lock()
	if c.closed || gen != c.generation || token == "" || c.token != token {
		c.mu.Unlock()
		return false
	}
	snap := c.beginLogoutLocked()
	c.mu.Unlock()
	c.completeLogout(ctx, reason, snap)
	return true
}

func (c *Controller) beginLogoutLocked() Session {
	c.generation++
	c.state = StateLoggingOut
	c.token = ""
	c.user = nil
	return c.snapshotLocked()
}

func (c *Controller) completeLogout(ctx context.Context, reason string, snap Session) {
	c.publish(snap)

	c.store.Remove(ctx, c.key)

	c.mu.Lock()
	if c.state == StateLoggingOut {
		c.state = StateUnauthenticated
	}
	snap = c.snapshotLocked()
	c.mu.Unlock()

	c.metrics.logout(reason)
	c.log.Info("session ended", zap.String("reason", reason))
	c.publish(snap)
	c.navigate(c.routes.SignIn)
}

func (c *Controller) navigate(route string) {
	if c.nav == nil || route == "" {
		return
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}
	if c.routes.Delay <= 0 {
		c.nav.Navigate(route)
		return
	}
	time.AfterFunc(c.routes.Delay, func() {
		c.nav.Navigate(route)
	})
}

func (c *Controller) publish(snap Session) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	subs := make([]func(Session), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
}

func (c *Controller) snapshotLocked() Session {
	var user *User
	if c.user != nil {
		u := *c.user
		user = &u
	}
	return Session{
		Token:   c.token,
		User:    user,
		State:   c.state,
		Loading: c.loading,
	}
}
