package sessionx

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const devIssuer = "sessionx.dev"

// DevAuthAPI is an in-process stand-in for the backend auth API, used for local
// development and tests. It mints and verifies HS256 tokens with a shared secret.
type DevAuthAPI struct {
	mu       sync.Mutex
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
	accounts map[string]devAccount
}

type devAccount struct {
	user     User
	password string
}

// NewDevAuthAPI returns a backend whose tokens live for ttl.
func NewDevAuthAPI(secret []byte, ttl time.Duration) *DevAuthAPI {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &DevAuthAPI{
		secret:   append([]byte(nil), secret...),
		ttl:      ttl,
		now:      time.Now,
		accounts: make(map[string]devAccount),
	}
}

// SetClock changes the time used for minting and verifying tokens.
func (d *DevAuthAPI) SetClock(now func() time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.now = now
}

// AddUser registers a principal with its password.
func (d *DevAuthAPI) AddUser(user User, password string) User {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.addUserLocked(user, password)
}

func (d *DevAuthAPI) addUserLocked(user User, password string) User {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.IsActive = true
	d.accounts[strings.ToLower(user.Email)] = devAccount{user: user, password: password}
	return user
}

// Mint issues a signed token for user.
func (d *DevAuthAPI) Mint(user User) (string, error) {
	d.mu.Lock()
	now := d.now()
	d.mu.Unlock()

	tok, err := jwt.NewBuilder().
		Issuer(devIssuer).
		Subject(user.ID).
		IssuedAt(now).
		Expiration(now.Add(d.ttl)).
		Claim("email", user.Email).
		Claim("role", user.Role).
		Claim("organization_id", user.OrganizationID).
		Build()
	if err != nil {
		return "", fmt.Errorf("build token: %w", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, d.secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return string(signed), nil
}

func (d *DevAuthAPI) Login(_ context.Context, req LoginRequest) (*AuthResponse, error) {
	d.mu.Lock()
	account, ok := d.accounts[strings.ToLower(req.Email)]
	d.mu.Unlock()
	if !ok || account.password != req.Password {
		return nil, &Error{Code: ErrCodeBackendAuth, Message: "Incorrect email or password", Status: http.StatusUnauthorized}
	}
	return d.respond(account.user)
}

func (d *DevAuthAPI) Signup(_ context.Context, req SignupRequest) (*AuthResponse, error) {
	d.mu.Lock()
	if _, exists := d.accounts[strings.ToLower(req.Email)]; exists {
		d.mu.Unlock()
		return nil, &Error{Code: ErrCodeBackendAuth, Message: "Email already registered", Status: http.StatusBadRequest}
	}
	user := d.addUserLocked(User{
		Email:            req.Email,
		Name:             req.Name,
		Role:             "admin",
		OrganizationID:   uuid.NewString(),
		OrganizationName: req.OrganizationName,
	}, req.Password)
	d.mu.Unlock()
	return d.respond(user)
}

func (d *DevAuthAPI) Me(_ context.Context, token string) (*User, error) {
	d.mu.Lock()
	now := d.now
	d.mu.Unlock()

	parsed, err := jwt.Parse([]byte(token),
		jwt.WithKey(jwa.HS256, d.secret),
		jwt.WithValidate(true),
		jwt.WithIssuer(devIssuer),
		jwt.WithClock(jwt.ClockFunc(now)),
	)
	if err != nil {
		return nil, &Error{Code: ErrCodeBackendAuth, Message: "Could not validate credentials", Status: http.StatusUnauthorized, Err: err}
	}
	email, _ := parsed.Get("email")
	address, _ := email.(string)

	d.mu.Lock()
	account, ok := d.accounts[strings.ToLower(address)]
	d.mu.Unlock()
	if !ok || account.user.ID != parsed.Subject() {
		return nil, &Error{Code: ErrCodeBackendAuth, Message: "User not found", Status: http.StatusUnauthorized}
	}
	user := account.user
	return &user, nil
}

func (d *DevAuthAPI) respond(user User) (*AuthResponse, error) {
	token, err := d.Mint(user)
	if err != nil {
		return nil, newError(ErrCodeBackendAuth, err)
	}
	return &AuthResponse{AccessToken: token, TokenType: "bearer", User: user}, nil
}
