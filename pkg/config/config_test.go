package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, StoreDriverMemory, cfg.Store.Driver)
	assert.Equal(t, 10.0, cfg.Gradebook.QuizCapacity)
	assert.Equal(t, 10.0, cfg.Gradebook.AssignmentCapacity)
	assert.Equal(t, 30.0, cfg.Gradebook.MidtermCapacity)
	assert.Equal(t, 50.0, cfg.Gradebook.FinalCapacity)
	assert.Equal(t, 75, cfg.Attendance.GoodStandingThreshold)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "POSTGRES")
	t.Setenv("CACHE_TTL", "not-a-duration")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, ,http://b.test")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, StoreDriverPostgres, cfg.Store.Driver)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
}

func TestLoadFlagOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	flags := Flags("test")
	require.NoError(t, flags.Parse([]string{"--port=7070", "--seed=fixtures.yaml"}))

	cfg, err := Load(flags)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Port)
	assert.Equal(t, "fixtures.yaml", cfg.Store.SeedFile)
	assert.Equal(t, StoreDriverMemory, cfg.Store.Driver)
}
