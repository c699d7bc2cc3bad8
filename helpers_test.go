package sessionx

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Unix(1_700_000_000, 0).UTC()

func fixedClock() time.Time { return fixedNow }

// makeToken encodes claims as an unsigned three-segment token.
func makeToken(t *testing.T, claims map[string]any) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	payload, err := json.Marshal(claims)
	require.NoError(t, err)
	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + ".signature"
}

func tokenExpiringIn(t *testing.T, d time.Duration) string {
	t.Helper()
	return makeToken(t, map[string]any{
		"sub":   "user-1",
		"email": "analyst@fraudguard.io",
		"iat":   fixedNow.Add(-time.Hour).Unix(),
		"exp":   fixedNow.Add(d).Unix(),
	})
}

func newTestPolicy(t *testing.T) *Policy {
	t.Helper()
	p, err := NewPolicy(PolicyConfig{Location: time.UTC}, WithClock(fixedClock))
	require.NoError(t, err)
	return p
}
