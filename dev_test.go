package sessionx

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDevAuthAPI_FullLifecycle(t *testing.T) {
	ctx := context.Background()
	api := NewDevAuthAPI([]byte("dev-secret"), time.Hour)
	store := NewStore(NewMemoryBackend("test"))
	routes := &eventLog{}

	ctrl := NewController(api, store, WithNavigator(routes))
	require.Equal(t, StateUnauthenticated, ctrl.Initialize(ctx))

	require.NoError(t, ctrl.Signup(ctx, SignupRequest{
		Email:            "founder@acme.io",
		Password:         "s3cret",
		Name:             "Founder",
		OrganizationName: "Acme Risk",
	}))
	snap := ctrl.Session()
	require.True(t, snap.IsAuthenticated())
	assert.Equal(t, "admin", snap.User.Role)
	assert.Equal(t, "Acme Risk", snap.User.OrganizationName)
	assert.NotEmpty(t, snap.User.OrganizationID)

	claims, err := Decode(snap.Token)
	require.NoError(t, err)
	assert.Equal(t, snap.User.ID, claims.Subject)
	assert.Equal(t, "founder@acme.io", claims.Email)
	assert.Equal(t, snap.User.OrganizationID, claims.OrganizationID)

	// a second controller over the same store picks the session up
	restored := NewController(api, store)
	require.Equal(t, StateAuthenticated, restored.Initialize(ctx))
	assert.Equal(t, snap.User.ID, restored.Session().User.ID)

	restored.Logout()
	fresh := NewController(api, store)
	assert.Equal(t, StateUnauthenticated, fresh.Initialize(ctx))

	require.NoError(t, fresh.Login(ctx, "FOUNDER@acme.io", "s3cret"))
	assert.True(t, fresh.IsAuthenticated())
	assert.Equal(t, []string{"navigate:/dashboard"}, routes.all())
}

func TestDevAuthAPI_Errors(t *testing.T) {
	ctx := context.Background()
	api := NewDevAuthAPI([]byte("dev-secret"), time.Hour)
	api.AddUser(User{Email: "analyst@fraudguard.io", Role: "analyst"}, "pw")

	_, err := api.Login(ctx, LoginRequest{Email: "analyst@fraudguard.io", Password: "nope"})
	var authErr *Error
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusUnauthorized, authErr.Status)
	assert.Equal(t, "Incorrect email or password", authErr.Message)

	_, err = api.Signup(ctx, SignupRequest{Email: "analyst@fraudguard.io", Password: "pw", OrganizationName: "Org"})
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusBadRequest, authErr.Status)

	_, err = api.Me(ctx, "not-a-token")
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusUnauthorized, authErr.Status)

	other := NewDevAuthAPI([]byte("other-secret"), time.Hour)
	forged, err := other.Mint(User{ID: "x", Email: "analyst@fraudguard.io"})
	require.NoError(t, err)
	_, err = api.Me(ctx, forged)
	assert.Equal(t, ErrCodeBackendAuth, CodeOf(err))
}

func TestDevAuthAPI_ExpiredTokenIsRejectedOnRestore(t *testing.T) {
	ctx := context.Background()
	api := NewDevAuthAPI([]byte("dev-secret"), time.Hour)
	user := api.AddUser(User{Email: "analyst@fraudguard.io"}, "pw")
	token, err := api.Mint(user)
	require.NoError(t, err)

	backend := NewMemoryBackend("test")
	require.NoError(t, backend.Save(ctx, defaultTokenKey, token))

	// The backend's clock runs ahead of the local one.
	api.SetClock(func() time.Time { return time.Now().Add(2 * time.Hour) })

	ctrl := NewController(api, NewStore(backend))
	assert.Equal(t, StateUnauthenticated, ctrl.Initialize(ctx))
	_, ok, err := backend.Load(ctx, defaultTokenKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDevAuthAPI_ConcurrentSignupRegistersOnce(t *testing.T) {
	api := NewDevAuthAPI([]byte("dev-secret"), time.Hour)
	req := SignupRequest{Email: "race@acme.io", Password: "pw", OrganizationName: "Acme"}

	const attempts = 16
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := api.Signup(context.Background(), req)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var authErr *Error
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, http.StatusBadRequest, authErr.Status)
	}
	assert.Equal(t, 1, succeeded)
}
