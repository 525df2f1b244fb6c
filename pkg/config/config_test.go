package config

import (
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadWithLookuper(envconfig.MapLookuper(map[string]string{}))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://api-capital.backend-capital.com", cfg.Capital.APIBase)
	assert.Equal(t, 9*time.Minute, cfg.Capital.SessionTTL)
	assert.Equal(t, "Capital.com", cfg.Capital.ExchangeName)
	assert.Equal(t, "USD", cfg.Capital.Currency)
	assert.Equal(t, "DAY", cfg.Proxy.DefaultResolution)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, []string{"*"}, cfg.Security.CORSOrigins)
	assert.Equal(t, []string{"GET", "POST", "OPTIONS"}, cfg.Security.CORSMethods)
	assert.False(t, cfg.NATS.Enabled)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadWithLookuper(envconfig.MapLookuper(map[string]string{
		"SERVER_PORT":         "9191",
		"CAPITAL_API_BASE":    "https://demo-api-capital.backend-capital.com/",
		"CAPITAL_API_KEY":     "key",
		"CAPITAL_IDENTIFIER":  "me@example.com",
		"CAPITAL_PASSWORD":    "secret",
		"CACHE_BACKEND":       "Redis",
		"PROXY_FETCH_TIMEOUT": "10s",
	}))
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "https://demo-api-capital.backend-capital.com", cfg.Capital.APIBase)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, 10*time.Second, cfg.Proxy.FetchTimeout)
	assert.NoError(t, cfg.Capital.ValidateCredentials())
	assert.Equal(t, "0.0.0.0:9191", cfg.GetServerAddr())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	_, err := LoadWithLookuper(envconfig.MapLookuper(map[string]string{"SERVER_PORT": "70000"}))
	assert.Error(t, err)

	_, err = LoadWithLookuper(envconfig.MapLookuper(map[string]string{"CACHE_BACKEND": "memcached"}))
	assert.Error(t, err)
}

func TestValidateCredentialsListsMissing(t *testing.T) {
	c := CapitalConfig{APIKey: "key"}
	err := c.ValidateCredentials()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CAPITAL_IDENTIFIER")
	assert.Contains(t, err.Error(), "CAPITAL_PASSWORD")
	assert.NotContains(t, err.Error(), "CAPITAL_API_KEY")
}
