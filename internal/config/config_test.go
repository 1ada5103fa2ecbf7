package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	cfg, err := Load(newViper(t))
	require.NoError(t, err)

	assert.Equal(t, ":10000", cfg.Addr)
	assert.Equal(t, "/ws", cfg.WSPath)
	assert.Equal(t, 30*time.Second, cfg.PingInterval)
	assert.Equal(t, 1000, cfg.HistoryCap)
	assert.Equal(t, 500, cfg.HistoryKeep)
	assert.Zero(t, cfg.RateLimit)
	assert.Empty(t, cfg.ICEServers)
	assert.False(t, cfg.Discovery.Enabled)
	assert.Equal(t, 47815, cfg.Discovery.Port)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("RELAY_PING_INTERVAL", "5s")
	t.Setenv("RELAY_DISCOVERY_ENABLED", "true")
	t.Setenv("RELAY_WS_PATH", "signal")
	t.Setenv("PORT", "8080")

	cfg, err := Load(newViper(t))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.PingInterval)
	assert.True(t, cfg.Discovery.Enabled)
	assert.Equal(t, "/signal", cfg.WSPath)
	assert.Equal(t, ":8080", cfg.Addr)
}

func TestExplicitAddrWinsOverPort(t *testing.T) {
	t.Setenv("PORT", "8080")
	v := newViper(t)
	v.Set(KeyAddr, "127.0.0.1:9000")

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
	}{
		{"zero ping interval", KeyPingInterval, "0s"},
		{"keep not below cap", KeyHistoryKeep, 1000},
		{"negative rate", KeyRateLimit, -1},
		{"zero send buffer", KeySendBuffer, 0},
		{"bad ice url", KeyICEServers, []string{"http://not-ice"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newViper(t)
			v.Set(tt.key, tt.val)
			_, err := Load(v)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestParseICEServers(t *testing.T) {
	servers, err := ParseICEServers(
		[]string{"stun:stun.l.google.com:19302, turn:turn.example.com:3478?transport=udp", ""},
		"user", "secret",
	)
	require.NoError(t, err)
	require.Len(t, servers, 2)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, servers[0].URLs)
	assert.Empty(t, servers[0].Username)
	assert.Equal(t, "user", servers[1].Username)
	assert.Equal(t, "secret", servers[1].Credential)
}

func TestParseICEServersTURNNeedsCredentials(t *testing.T) {
	_, err := ParseICEServers([]string{"turn:turn.example.com:3478"}, "", "")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("debug", "development")
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = NewLogger("loud", "production")
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = NewLogger("info", "xml")
	assert.ErrorIs(t, err, ErrInvalid)
}
