package sessionx

import (
	"time"

	"github.com/goodsign/monday"
)

// InvalidTokenLabel is what FormatExpiry renders for tokens it cannot decode.
const InvalidTokenLabel = "Invalid token"

var defaultPolicy = &Policy{cfg: DefaultPolicyConfig(), now: time.Now}

// Policy turns time-to-expiry into session UX signals.
type Policy struct {
	cfg PolicyConfig
	now func() time.Time
}

// PolicyOption customizes a Policy.
type PolicyOption func(*Policy)

// WithClock overrides the wall clock used for every evaluation.
func WithClock(now func() time.Time) PolicyOption {
	return func(p *Policy) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPolicy builds a policy, rejecting thresholds that would contradict each other.
func NewPolicy(cfg PolicyConfig, opts ...PolicyOption) (*Policy, error) {
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Policy{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Config returns the normalized thresholds in use.
func (p *Policy) Config() PolicyConfig {
	return p.cfg
}

// Status is a single evaluation of a token against the policy.
type Status struct {
	Claims      *Claims
	Valid       bool
	Expired     bool
	MinutesLeft int
	Warn        bool
	ForceLogout bool
	ExpiresAt   string
}

// ShouldWarnBeforeExpiry reports whether token is inside the refresh warning window.
// Already expired tokens never warn; they are logged out instead.
func (p *Policy) ShouldWarnBeforeExpiry(token string) bool {
	minutes, ok := p.MinutesUntilExpiry(token)
	return p.warn(minutes, ok)
}

// ShouldForceLogout reports whether the session must end now: the token is
// undecodable, expired, or inside the grace window.
func (p *Policy) ShouldForceLogout(token string) bool {
	minutes, ok := p.MinutesUntilExpiry(token)
	return p.forceLogout(minutes, ok)
}

// FormatExpiry renders the expiry time in the configured locale.
func (p *Policy) FormatExpiry(token string) string {
	claims, err := Decode(token)
	if err != nil {
		return InvalidTokenLabel
	}
	return p.formatClaims(claims)
}

// Evaluate decodes token once and computes every signal.
func (p *Policy) Evaluate(token string) Status {
	claims, err := Decode(token)
	if err != nil {
		return Status{Expired: true, ForceLogout: true, ExpiresAt: InvalidTokenLabel}
	}
	now := p.now()
	minutes, ok := minutesUntil(claims, now)
	return Status{
		Claims:      claims,
		Valid:       true,
		Expired:     claimsExpired(claims, now),
		MinutesLeft: minutes,
		Warn:        p.warn(minutes, ok),
		ForceLogout: p.forceLogout(minutes, ok),
		ExpiresAt:   p.formatClaims(claims),
	}
}

func (p *Policy) warn(minutes int, ok bool) bool {
	if !ok {
		return false
	}
	return minutes > 0 && minutes <= p.cfg.WarningWindowMinutes
}

func (p *Policy) forceLogout(minutes int, ok bool) bool {
	if !ok {
		return true
	}
	return minutes <= p.cfg.GraceMinutes
}

func (p *Policy) formatClaims(claims *Claims) string {
	if !claims.HasExpiry() {
		return InvalidTokenLabel
	}
	local := claims.ExpiresAt.In(p.cfg.Location)
	return monday.Format(local, p.cfg.ExpiryLayout, monday.Locale(p.cfg.Locale))
}

// ShouldWarnBeforeExpiry applies the default policy.
func ShouldWarnBeforeExpiry(token string) bool {
	return defaultPolicy.ShouldWarnBeforeExpiry(token)
}

// ShouldForceLogout applies the default policy.
func ShouldForceLogout(token string) bool {
	return defaultPolicy.ShouldForceLogout(token)
}

// FormatExpiry applies the default policy.
func FormatExpiry(token string) string {
	return defaultPolicy.FormatExpiry(token)
}
