package sessionx

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_RoundTripsPayload(t *testing.T) {
	original := map[string]any{
		"sub":        "5f0c2d4e",
		"email":      "analyst@fraudguard.io",
		"iat":        float64(1_699_990_000),
		"exp":        float64(1_700_036_000),
		"session_id": "sess-42",
		"pillars":    []any{"velocity", "device"},
		"limits":     map[string]any{"daily": float64(5000), "strict": true},
		"nickname":   nil,
	}
	claims, err := Decode(makeToken(t, original))
	require.NoError(t, err)

	assert.Equal(t, original, claims.Raw)
	assert.Equal(t, "5f0c2d4e", claims.Subject)
	assert.Equal(t, "analyst@fraudguard.io", claims.Email)
	assert.Equal(t, "sess-42", claims.SessionID)
	assert.Equal(t, int64(1_699_990_000), claims.IssuedAt.Unix())
	assert.Equal(t, int64(1_700_036_000), claims.ExpiresAt.Unix())
}

func TestDecode_SignedToken(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	tok, err := jwt.NewBuilder().
		Issuer("https://api.fraudguard.io").
		Subject("user-7").
		Audience([]string{"dashboard"}).
		IssuedAt(now).
		Expiration(now.Add(time.Hour)).
		Claim("email", "ops@fraudguard.io").
		Claim("role", "admin").
		Claim("organization_id", "org-1").
		Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, []byte("not-checked")))
	require.NoError(t, err)

	claims, err := Decode(string(signed))
	require.NoError(t, err)
	assert.Equal(t, "user-7", claims.Subject)
	assert.Equal(t, "https://api.fraudguard.io", claims.Issuer)
	assert.Equal(t, []string{"dashboard"}, claims.Audience)
	assert.Equal(t, "ops@fraudguard.io", claims.Email)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "org-1", claims.OrganizationID)
	assert.True(t, claims.ExpiresAt.Equal(now.Add(time.Hour)))
}

func TestDecode_NonStandardClaimTypes(t *testing.T) {
	original := map[string]any{
		"sub":   float64(42),
		"aud":   float64(7),
		"jti":   float64(9),
		"iss":   "https://api.fraudguard.io",
		"email": "analyst@fraudguard.io",
		"iat":   float64(1_699_990_000),
		"exp":   float64(1_700_036_000.5),
	}
	claims, err := Decode(makeToken(t, original))
	require.NoError(t, err)

	assert.Equal(t, original, claims.Raw)
	assert.Empty(t, claims.Subject)
	assert.Nil(t, claims.Audience)
	assert.Equal(t, "https://api.fraudguard.io", claims.Issuer)
	assert.Equal(t, "analyst@fraudguard.io", claims.Email)
	assert.Equal(t, int64(1_699_990_000), claims.IssuedAt.Unix())
	assert.Equal(t, time.Unix(1_700_036_000, 500_000_000).UTC(), claims.ExpiresAt)

	p := newTestPolicy(t)
	assert.False(t, p.ShouldForceLogout(makeToken(t, original)))
}

func TestDecode_StringAudienceWithOddSubject(t *testing.T) {
	claims, err := Decode(makeToken(t, map[string]any{
		"sub": true,
		"aud": []any{"dashboard", float64(3), "api"},
		"exp": fixedNow.Add(time.Hour).Unix(),
	}))
	require.NoError(t, err)
	assert.Empty(t, claims.Subject)
	assert.Equal(t, []string{"dashboard", "api"}, claims.Audience)
	assert.True(t, claims.HasExpiry())
}

func TestDecode_NonNumericExpiryFailsClosed(t *testing.T) {
	token := makeToken(t, map[string]any{"sub": "user-1", "exp": "tomorrow"})

	claims, err := Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "tomorrow", claims.Raw["exp"])
	assert.False(t, claims.HasExpiry())

	p := newTestPolicy(t)
	assert.True(t, p.IsExpired(token))
	assert.True(t, p.ShouldForceLogout(token))
	assert.Equal(t, InvalidTokenLabel, p.FormatExpiry(token))
}

func TestDecode_AcceptsStandardAlphabetAndPadding(t *testing.T) {
	payload := []byte(`{"sub":"a","note":"?>?~~~~"}`)
	std := base64.StdEncoding.EncodeToString(payload)
	require.Contains(t, std, "+")
	require.Contains(t, std, "=")

	claims, err := Decode("h." + std + ".s")
	require.NoError(t, err)
	assert.Equal(t, "a", claims.Subject)
	assert.Equal(t, "?>?~~~~", claims.Raw["note"])
}

func TestDecode_TwoSegmentsAreEnough(t *testing.T) {
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"only-two"}`))
	claims, err := Decode("header." + payload)
	require.NoError(t, err)
	assert.Equal(t, "only-two", claims.Subject)
}

func TestDecode_Failures(t *testing.T) {
	notObject := base64.RawURLEncoding.EncodeToString([]byte(`[1,2,3]`))
	null := base64.RawURLEncoding.EncodeToString([]byte(`null`))
	notJSON := base64.RawURLEncoding.EncodeToString([]byte(`hello world`))
	badUTF8 := base64.RawURLEncoding.EncodeToString([]byte{'{', '"', 0xff, '"', ':', '1', '}'})

	cases := map[string]string{
		"empty":          "",
		"single segment": "abc",
		"empty payload":  "header..sig",
		"trailing dot":   "header.",
		"invalid base64": "invalid.token.format",
		"not json":       "h." + notJSON + ".s",
		"not an object":  "h." + notObject + ".s",
		"null payload":   "h." + null + ".s",
		"invalid utf8":   "h." + badUTF8 + ".s",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			claims, err := Decode(token)
			require.Error(t, err)
			assert.Nil(t, claims)
			assert.Equal(t, ErrCodeDecode, CodeOf(err))
		})
	}
}
