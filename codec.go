package sessionx

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

var payloadReplacer = strings.NewReplacer("+", "-", "/", "_")

// Decode extracts the claims carried in the payload segment of token.
// The signature is never checked; the result is only fit for UX decisions.
func Decode(token string) (*Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return nil, newError(ErrCodeDecode, fmt.Errorf("expected at least 2 segments, got %d", len(parts)))
	}
	segment := strings.TrimSpace(parts[1])
	if segment == "" {
		return nil, newError(ErrCodeDecode, errors.New("payload segment is empty"))
	}

	payload, err := decodeSegment(segment)
	if err != nil {
		return nil, newError(ErrCodeDecode, fmt.Errorf("decode payload: %w", err))
	}
	if !utf8.Valid(payload) {
		return nil, newError(ErrCodeDecode, errors.New("payload is not valid UTF-8"))
	}

	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, newError(ErrCodeDecode, fmt.Errorf("parse payload: %w", err))
	}
	if raw == nil {
		return nil, newError(ErrCodeDecode, errors.New("payload is not an object"))
	}

	// The raw object is authoritative. Registered claims of an unexpected
	// type are read leniently from it instead of failing the whole token.
	parsed := jwt.New()
	if err := json.Unmarshal(payload, parsed); err != nil {
		return rawClaims(raw), nil
	}
	return extractClaims(parsed, raw), nil
}

// decodeSegment accepts both alphabets, with or without padding.
func decodeSegment(segment string) ([]byte, error) {
	normalized := strings.TrimRight(payloadReplacer.Replace(segment), "=")
	return base64.RawURLEncoding.DecodeString(normalized)
}

func extractClaims(token jwt.Token, raw map[string]any) *Claims {
	var audience []string
	if aud := token.Audience(); len(aud) > 0 {
		audience = append([]string(nil), aud...)
	}
	claims := &Claims{
		Subject:   token.Subject(),
		Issuer:    token.Issuer(),
		Audience:  audience,
		IssuedAt:  token.IssuedAt(),
		ExpiresAt: token.Expiration(),
		Raw:       raw,
	}
	fillPrivateClaims(claims, raw)
	return claims
}

// rawClaims keeps only registered claims whose JSON type is the standard one:
// string sub/iss, string or string-array aud, numeric iat/exp.
func rawClaims(raw map[string]any) *Claims {
	claims := &Claims{
		Subject:   stringClaim(raw, "sub"),
		Issuer:    stringClaim(raw, "iss"),
		Audience:  audienceClaim(raw),
		IssuedAt:  numericDateClaim(raw, "iat"),
		ExpiresAt: numericDateClaim(raw, "exp"),
		Raw:       raw,
	}
	fillPrivateClaims(claims, raw)
	return claims
}

func fillPrivateClaims(claims *Claims, raw map[string]any) {
	claims.Email = stringClaim(raw, "email")
	claims.Role = stringClaim(raw, "role")
	claims.SessionID = stringClaim(raw, "session_id")
	claims.OrganizationID = stringClaim(raw, "organization_id")
	if claims.OrganizationID == "" {
		claims.OrganizationID = stringClaim(raw, "org_id")
	}
}

func stringClaim(raw map[string]any, key string) string {
	if v, ok := raw[key].(string); ok {
		return v
	}
	return ""
}

func audienceClaim(raw map[string]any) []string {
	switch v := raw["aud"].(type) {
	case string:
		return []string{v}
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// numericDateClaim returns the zero time unless key holds a JSON number.
func numericDateClaim(raw map[string]any, key string) time.Time {
	v, ok := raw[key].(float64)
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return time.Time{}
	}
	sec, frac := math.Modf(v)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}
