package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	sessionx "github.com/bionicotaku/fraudguard-sessionx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SESSIONX_STORE_DRIVER=sqlite\nSESSIONX_EMAIL=from-file@acme.io\n"), 0o600))

	t.Setenv("SESSIONX_EMAIL", "from-env@acme.io")
	t.Setenv("SESSIONX_STORE_DRIVER", "")
	require.NoError(t, os.Unsetenv("SESSIONX_STORE_DRIVER"))

	require.NoError(t, loadEnvFile(path))
	assert.Equal(t, "sqlite", os.Getenv("SESSIONX_STORE_DRIVER"))
	assert.Equal(t, "from-env@acme.io", os.Getenv("SESSIONX_EMAIL"))
}

func TestLoadEnvFile_Missing(t *testing.T) {
	assert.NoError(t, loadEnvFile(filepath.Join(t.TempDir(), "absent.env")))
	assert.NoError(t, loadEnvFile(""))
}

func TestDescribe(t *testing.T) {
	err := describe(&sessionx.Error{Code: sessionx.ErrCodeBackendAuth, Message: "Incorrect email or password", Status: 401})
	assert.EqualError(t, err, "Incorrect email or password (HTTP 401)")

	plain := errors.New("boom")
	assert.Same(t, plain, describe(plain))
}
