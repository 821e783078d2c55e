package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, 3*time.Second, cfg.UserServiceTimeout)
	assert.Equal(t, 10, cfg.DefaultPageSize)
	assert.Equal(t, 5, cfg.RecentSales)
	assert.False(t, cfg.Development())
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("POS_HTTP_ADDR", ":9000")
	t.Setenv("POS_DATABASE_URL", "postgres://pos@localhost/pos")
	t.Setenv("POS_USER_SERVICE_URL", "http://localhost:8080/users")
	t.Setenv("POS_USER_SERVICE_TIMEOUT", "500ms")
	t.Setenv("POS_ENV", "development")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.Equal(t, "postgres://pos@localhost/pos", cfg.DatabaseURL)
	assert.Equal(t, "http://localhost:8080/users", cfg.UserServiceURL)
	assert.Equal(t, 500*time.Millisecond, cfg.UserServiceTimeout)
	assert.True(t, cfg.Development())
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Run("page size", func(t *testing.T) {
		t.Setenv("POS_DEFAULT_PAGE_SIZE", "0")
		_, err := LoadConfig()
		assert.Error(t, err)
	})

	t.Run("not a number", func(t *testing.T) {
		t.Setenv("POS_RECENT_SALES", "five")
		_, err := LoadConfig()
		assert.Error(t, err)
	})
}
