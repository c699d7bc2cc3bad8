package sessionx

import (
	"math"
	"time"
)

// IsExpired reports whether token is past its expiry according to the default policy.
// Tokens that cannot be decoded count as expired.
func IsExpired(token string) bool {
	return defaultPolicy.IsExpired(token)
}

// MinutesUntilExpiry returns the signed whole minutes left on token according to
// the default policy. ok is false when the token cannot be decoded.
func MinutesUntilExpiry(token string) (minutes int, ok bool) {
	return defaultPolicy.MinutesUntilExpiry(token)
}

// IsExpired reports whether the token's exp claim lies before now.
func (p *Policy) IsExpired(token string) bool {
	claims, err := Decode(token)
	if err != nil {
		return true
	}
	return claimsExpired(claims, p.now())
}

// MinutesUntilExpiry returns floor((exp - now) / 60). Negative values mean the
// token expired that many minutes ago.
func (p *Policy) MinutesUntilExpiry(token string) (int, bool) {
	claims, err := Decode(token)
	if err != nil {
		return 0, false
	}
	return minutesUntil(claims, p.now())
}

// claimsExpired treats a missing exp claim as expired.
func claimsExpired(claims *Claims, now time.Time) bool {
	if !claims.HasExpiry() {
		return true
	}
	return claims.ExpiresAt.Before(now)
}

func minutesUntil(claims *Claims, now time.Time) (int, bool) {
	if !claims.HasExpiry() {
		return 0, false
	}
	seconds := claims.ExpiresAt.Sub(now).Seconds()
	return int(math.Floor(seconds / 60)), true
}
