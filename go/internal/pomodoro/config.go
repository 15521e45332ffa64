package pomodoro

import "github.com/mcdev12/studybuddy/go/internal/models"

// Config holds the defaults used when a group timer is created lazily.
type Config struct {
	DefaultSettings   models.TimerSettings `yaml:"default_settings"`
	DefaultSyncPolicy models.SyncPolicy    `yaml:"default_sync_policy"`
}

// DefaultConfig returns a 25/5/15 FLEXIBLE timer.
func DefaultConfig() Config {
	return Config{
		DefaultSettings:   models.DefaultTimerSettings(),
		DefaultSyncPolicy: models.SyncPolicyFlexible,
	}
}
