package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/studybuddy/go/internal/models"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, models.SyncPolicyFlexible, cfg.Pomodoro.DefaultSyncPolicy)
	assert.Equal(t, 1500, cfg.Pomodoro.DefaultSettings.WorkDuration)
	assert.Equal(t, 30*time.Second, cfg.WebSocket.PingInterval)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
pomodoro:
  default_sync_policy: forced
  default_settings:
    work_duration: 3000
    break_duration: 600
    long_break_duration: 1200
    sessions_before_long_break: 3
websocket:
  ping_interval: 15s
groups:
  - id: 7
    name: algorithms
    created_by: 1
    members:
      - user_id: 2
        role: member
`), 0o600))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, models.SyncPolicyForced, cfg.Pomodoro.DefaultSyncPolicy)
	assert.Equal(t, 3000, cfg.Pomodoro.DefaultSettings.WorkDuration)
	assert.Equal(t, 15*time.Second, cfg.WebSocket.PingInterval)
	assert.Equal(t, 60*time.Second, cfg.WebSocket.ReadTimeout)
	require.Len(t, cfg.Groups, 1)
	assert.Equal(t, models.RoleMember, cfg.Groups[0].Members[0].Role)
}

func TestLoadConfigRejectsInvalidDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pomodoro:\n  default_settings:\n    work_duration: 10\n"), 0o600))

	_, err := loadConfig(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("pomodoro:\n  default_sync_policy: chaotic\n"), 0o600))
	_, err = loadConfig(path)
	assert.Error(t, err)
}

func TestGatewayConfigEnablesRelayWithNATSURL(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("NATS_URL", "")
	assert.False(t, cfg.gatewayConfig().EnableRelay)

	t.Setenv("NATS_URL", "nats://nats:4222")
	gw := cfg.gatewayConfig()
	assert.True(t, gw.EnableRelay)
	assert.Equal(t, "POMODORO_EVENTS", gw.RelayConfig.StreamName)
}
