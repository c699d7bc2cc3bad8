package sessionx

// State is the controller's position in the session lifecycle.
type State int

const (
	// StateUninitialized is the zero value of a Controller not built by NewController.
	StateUninitialized State = iota
	StateInitializing
	StateUnauthenticated
	StateAuthenticated
	// StateLoggingOut is held only while credentials are being cleared.
	StateLoggingOut
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateLoggingOut:
		return "logging_out"
	}
	return "uninitialized"
}

// Session is an immutable snapshot of the controller state.
type Session struct {
	Token   string
	User    *User
	State   State
	Loading bool
}

// IsAuthenticated holds only when a token and a fetched user are both present.
func (s Session) IsAuthenticated() bool {
	return s.State == StateAuthenticated && s.Token != "" && s.User != nil
}

// Navigator moves the UI to a route after an auth transition.
type Navigator interface {
	Navigate(route string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(route string)

// Navigate calls f(route).
func (f NavigatorFunc) Navigate(route string) {
	f(route)
}

// Logout reasons reported in logs and metrics.
const (
	reasonExplicit      = "explicit"
	reasonExpired       = "expired"
	reasonRefreshFailed = "refresh_failed"
	reasonInvalidStored = "invalid_stored_token"
	reasonRejected      = "rejected_stored_token"
)
