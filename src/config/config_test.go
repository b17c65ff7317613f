package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "SIM", cfg.Symbol)
	assert.Equal(t, int64(1), cfg.TickSize)
	assert.Equal(t, int64(10000), cfg.OpeningPx)
	assert.Equal(t, "USD", cfg.Currency)
	assert.Equal(t, 1, cfg.NumAutoMakers)
	assert.Equal(t, time.Second, cfg.QuoteInterval)
	assert.True(t, cfg.AutoOpen)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SYMBOL", "ACME")
	t.Setenv("OPENING_PX", "25000")
	t.Setenv("NUM_AUTO_MAKERS", "3")
	t.Setenv("QUOTE_INTERVAL", "250ms")
	t.Setenv("AUTO_OPEN", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "ACME", cfg.Symbol)
	assert.Equal(t, int64(25000), cfg.OpeningPx)
	assert.Equal(t, 3, cfg.NumAutoMakers)
	assert.Equal(t, 250*time.Millisecond, cfg.QuoteInterval)
	assert.False(t, cfg.AutoOpen)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"zero tick size", "TICK_SIZE", "0"},
		{"negative opening price", "OPENING_PX", "-5"},
		{"negative maker count", "NUM_AUTO_MAKERS", "-1"},
		{"zero quote interval", "QUOTE_INTERVAL", "0s"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
