package sessionx

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Policy.WarningWindowMinutes)
	assert.Equal(t, 2, cfg.Policy.GraceMinutes)
	assert.Equal(t, "en_US", cfg.Policy.Locale)
	assert.NotNil(t, cfg.Policy.Location)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, "fraudguard_token", cfg.Store.TokenKey)
	assert.Equal(t, "http://localhost:8000/api/v1", cfg.API.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, "/dashboard", cfg.Routes.Landing)
	assert.Equal(t, "/login", cfg.Routes.SignIn)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessionx.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
policy:
  warning_window_minutes: 15
  grace_minutes: 5
  time_zone: UTC
store:
  driver: sqlite
  sqlite_dsn: "file::memory:"
api:
  base_url: https://api.fraudguard.io/api/v1
  timeout: 3s
routes:
  delay: 250ms
`), 0o600))

	t.Setenv("SESSIONX_POLICY_GRACE_MINUTES", "1")
	t.Setenv("SESSIONX_STORE_TOKEN_KEY", "fg_token")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 15, cfg.Policy.WarningWindowMinutes)
	assert.Equal(t, 1, cfg.Policy.GraceMinutes)
	assert.Equal(t, time.UTC, cfg.Policy.Location)
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "fg_token", cfg.Store.TokenKey)
	assert.Equal(t, "https://api.fraudguard.io/api/v1", cfg.API.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.API.Timeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Routes.Delay)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Equal(t, ErrCodeInvalidConfig, CodeOf(err))
	})
	t.Run("grace outside warning window", func(t *testing.T) {
		t.Setenv("SESSIONX_POLICY_GRACE_MINUTES", "10")
		_, err := LoadConfig("")
		assert.Equal(t, ErrCodeInvalidConfig, CodeOf(err))
	})
	t.Run("unknown time zone", func(t *testing.T) {
		t.Setenv("SESSIONX_POLICY_TIME_ZONE", "Mars/Olympus")
		_, err := LoadConfig("")
		assert.Equal(t, ErrCodeInvalidConfig, CodeOf(err))
	})
	t.Run("redis without address", func(t *testing.T) {
		t.Setenv("SESSIONX_STORE_DRIVER", "redis")
		_, err := LoadConfig("")
		assert.Equal(t, ErrCodeInvalidConfig, CodeOf(err))
	})
}

func TestPolicyConfig_Normalize(t *testing.T) {
	cfg := PolicyConfig{}
	cfg.normalize()
	assert.Equal(t, 10, cfg.WarningWindowMinutes)
	assert.Equal(t, 2, cfg.GraceMinutes)

	explicit := PolicyConfig{WarningWindowMinutes: 5}
	explicit.normalize()
	assert.Equal(t, 0, explicit.GraceMinutes)
	assert.NoError(t, explicit.Validate())

	bad := PolicyConfig{TimeZone: "Mars/Olympus"}
	bad.normalize()
	assert.Equal(t, ErrCodeInvalidConfig, CodeOf(bad.Validate()))

	_, err := NewPolicy(PolicyConfig{TimeZone: "Mars/Olympus"})
	assert.Equal(t, ErrCodeInvalidConfig, CodeOf(err))
}

func TestError_Format(t *testing.T) {
	err := &Error{Code: ErrCodeBackendAuth, Message: "Incorrect email or password", Status: 401}
	assert.Equal(t, "Incorrect email or password (status 401)", err.Error())

	wrapped := newError(ErrCodeStorageUnavailable, os.ErrPermission)
	assert.ErrorIs(t, wrapped, os.ErrPermission)
	assert.Equal(t, "Storage unavailable: permission denied", wrapped.Error())
	assert.Equal(t, ErrorCode(""), CodeOf(os.ErrPermission))
}
