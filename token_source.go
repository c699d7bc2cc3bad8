package sessionx

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/oauth2"
)

// TokenSource exposes the live session as an oauth2.TokenSource so that other
// dashboard API clients send the same bearer token. It fails once the session
// ends, and ends the session itself when the policy forces a logout.
func (c *Controller) TokenSource() oauth2.TokenSource {
	return &sessionTokenSource{c: c}
}

// HTTPClient returns a client that authenticates every request with the session
// token, reusing base's transport and timeout when base is non-nil. The source
// is consulted per request and never cached, so a logout takes effect at once.
func (c *Controller) HTTPClient(base *http.Client) *http.Client {
	client := &http.Client{}
	var transport http.RoundTripper
	if base != nil {
		transport = base.Transport
		client.Timeout = base.Timeout
	}
	client.Transport = &oauth2.Transport{Source: c.TokenSource(), Base: transport}
	return client
}

type sessionTokenSource struct {
	c *Controller
}

func (s *sessionTokenSource) Token() (*oauth2.Token, error) {
	token, gen := s.c.current()
	if token == "" || !s.c.IsAuthenticated() {
		return nil, newError(ErrCodeUnauthenticated, nil)
	}
	status := s.c.policy.Evaluate(token)
	if status.ForceLogout {
		s.c.endSessionIfCurrent(context.Background(), gen, token, reasonExpired)
		return nil, newError(ErrCodeUnauthenticated, errors.New("session expired"))
	}
	return &oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
		Expiry:      status.Claims.ExpiresAt,
	}, nil
}
