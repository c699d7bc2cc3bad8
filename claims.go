package sessionx

import "time"

// Claims represents the payload of a dashboard bearer token.
// Raw keeps every payload field exactly as decoded.
type Claims struct {
	Subject   string
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time

	Issuer         string
	Audience       []string
	Role           string
	SessionID      string
	OrganizationID string

	Raw map[string]any
}

// HasExpiry reports whether the token carried an exp claim.
func (c *Claims) HasExpiry() bool {
	return c != nil && !c.ExpiresAt.IsZero()
}
