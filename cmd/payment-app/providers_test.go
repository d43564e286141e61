package main

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saleorbridge/payment-bridge/internal/appconfig"
)

func TestLoadProviderEnvironments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "providers.yaml")

	yaml := `environments:
  - name: playground-eu
    base_url: https://api.playground.example.com
    region: eu
    is_default: true
  - name: production-eu
    base_url: https://api.example.com
    region: eu
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	envs, err := LoadProviderEnvironments(path)

	require.NoError(t, err)
	require.Len(t, envs, 2)
	assert.Equal(t, "playground-eu", envs[0].Name)
	assert.True(t, envs[0].IsDefault)
	assert.Equal(t, "https://api.example.com", envs[1].BaseURL)
}

func TestLoadProviderEnvironmentsRejectsIncomplete(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "providers.yaml")

	require.NoError(t, os.WriteFile(path, []byte("environments:\n  - name: broken\n"), 0o644))

	_, err := LoadProviderEnvironments(path)
	assert.Error(t, err)
}

func TestLoadProviderEnvironmentsMissingFile(t *testing.T) {
	_, err := LoadProviderEnvironments(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestRespondConfigErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"validation maps to 400", &appconfig.ConfigError{Kind: appconfig.ErrorValidation, Message: "bad"}, 400},
		{"not found maps to 404", &appconfig.ConfigError{Kind: appconfig.ErrorNotFound, Message: "missing"}, 404},
		{"parse maps to 500", &appconfig.ConfigError{Kind: appconfig.ErrorParse, Message: "corrupt"}, 500},
		{"store maps to 502", &appconfig.ConfigError{Kind: appconfig.ErrorStore, Message: "remote down"}, 502},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			respondConfigError(recorder, tt.err)
			assert.Equal(t, tt.expected, recorder.Code)
			assert.Contains(t, recorder.Header().Get("Content-Type"), "application/json")
		})
	}
}
