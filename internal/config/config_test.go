package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(nil, envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sqlite3", cfg.DBDriver)
	assert.Equal(t, 2, cfg.ServiceRetries)
	assert.Equal(t, 30*time.Minute, cfg.IdleTimeout)
	assert.False(t, cfg.LogDev)
	assert.True(t, cfg.Standalone())
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	env := envMap(map[string]string{
		"PORT":              "9000",
		"DB_DRIVER":         "postgres",
		"DB_DSN":            "postgres://localhost/games",
		"SCORE_SERVICE_URL": "https://scores.example.com",
		"LOG_DEV":           "yes",
	})

	cfg, err := Parse([]string{"-port", "9100", "-idle-timeout", "5m"}, env)
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Port)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "postgres://localhost/games", cfg.DBDSN)
	assert.Equal(t, 5*time.Minute, cfg.IdleTimeout)
	assert.True(t, cfg.LogDev)
	assert.False(t, cfg.Standalone())
}

func TestParseRejectsBadValues(t *testing.T) {
	_, err := Parse(nil, envMap(map[string]string{"DB_DRIVER": "mysql"}))
	assert.Error(t, err)

	_, err = Parse(nil, envMap(map[string]string{"SERVICE_RETRIES": "many"}))
	assert.Error(t, err)

	_, err = Parse([]string{"-db-driver", "none"}, envMap(nil))
	assert.Error(t, err, "standalone needs a database")

	_, err = Parse([]string{"-db-driver", "none", "-score-url", "http://scores"}, envMap(nil))
	assert.NoError(t, err)

	_, err = Parse([]string{"-unknown"}, envMap(nil))
	assert.Error(t, err)
}

func TestLoadReadsEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("PORT=7070\nAUTH_SERVICE_URL=https://auth.example.com\n"), 0o600))
	t.Setenv("PORT", "")
	t.Setenv("AUTH_SERVICE_URL", "")
	os.Unsetenv("PORT")
	os.Unsetenv("AUTH_SERVICE_URL")

	cfg, err := Load(nil, path)
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, "https://auth.example.com", cfg.AuthServiceURL)

	_, err = Load(nil, filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}
