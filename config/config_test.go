package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"PORT", "STORE", "SQLITE_PATH", "MONGO_URI", "MONGO_DATABASE",
		"LOG_LEVEL", "LOG_FILE", "TIMEZONE", "CONCURRENCY", "CORS_ORIGINS"} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, StoreSQLite, cfg.Store)
	assert.Equal(t, "targets.db", cfg.SQLitePath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.Len(t, cfg.CORSOrigins, 2)
}

func TestLoad_FlagsOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("TIMEZONE", "Africa/Accra")

	cfg, err := Load([]string{"-port=3000", "-db=:memory:"})
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, ":memory:", cfg.SQLitePath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Africa/Accra", loc.String())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{name: "unknown store", args: []string{"-store=postgres"}},
		{name: "mongo without uri", args: []string{"-store=mongo"}},
		{name: "bad level", env: map[string]string{"LOG_LEVEL": "chatty"}},
		{name: "bad timezone", args: []string{"-tz=Mars/Olympus"}},
		{name: "zero concurrency", args: []string{"-concurrency=0"}},
		{name: "bad port", args: []string{"-port=70000"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(tt.args)
			assert.Error(t, err)
		})
	}
}

func TestGetEnvInt_FallsBackOnGarbage(t *testing.T) {
	t.Setenv("CONCURRENCY", "lots")
	assert.Equal(t, 4, getEnvInt("CONCURRENCY", 4))
}
