package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/studybuddy/go/internal/models"
	"github.com/mcdev12/studybuddy/go/internal/pomodoro"
	"github.com/mcdev12/studybuddy/go/internal/pomodoro/gateway"
)

type Config struct {
	Pomodoro  pomodoro.Config `yaml:"pomodoro"`
	WebSocket struct {
		WriteTimeout   time.Duration `yaml:"write_timeout"`
		ReadTimeout    time.Duration `yaml:"read_timeout"`
		PingInterval   time.Duration `yaml:"ping_interval"`
		MaxMessageSize int64         `yaml:"max_message_size"`
		SendBufferSize int           `yaml:"send_buffer_size"`
	} `yaml:"websocket"`
	Relay struct {
		StreamName    string        `yaml:"stream_name"`
		SubjectPrefix string        `yaml:"subject_prefix"`
		MaxAge        time.Duration `yaml:"max_age"`
	} `yaml:"relay"`
	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`

	// Groups seeds the in-memory membership oracle when STORE=memory.
	Groups []GroupSeed `yaml:"groups"`
}

type GroupSeed struct {
	ID        int64  `yaml:"id"`
	Name      string `yaml:"name"`
	CreatedBy int64  `yaml:"created_by"`
	IsPublic  bool   `yaml:"is_public"`
	Members   []struct {
		UserID int64       `yaml:"user_id"`
		Role   models.Role `yaml:"role"`
	} `yaml:"members"`
}

func defaultConfig() *Config {
	ws := gateway.DefaultConnectionConfig()
	relay := gateway.DefaultRelayConfig()

	cfg := &Config{Pomodoro: pomodoro.DefaultConfig()}
	cfg.WebSocket.WriteTimeout = ws.WriteTimeout
	cfg.WebSocket.ReadTimeout = ws.ReadTimeout
	cfg.WebSocket.PingInterval = ws.PingInterval
	cfg.WebSocket.MaxMessageSize = ws.MaxMessageSize
	cfg.WebSocket.SendBufferSize = ws.SendBufferSize
	cfg.Relay.StreamName = relay.StreamName
	cfg.Relay.SubjectPrefix = relay.SubjectPrefix
	cfg.Relay.MaxAge = relay.MaxAge
	cfg.CORS.AllowedOrigins = []string{"*"}
	return cfg
}

// gatewayConfig merges file settings with environment-only settings.
func (c *Config) gatewayConfig() gateway.Config {
	cfg := gateway.DefaultConfig()
	cfg.ConnectionConfig.WriteTimeout = c.WebSocket.WriteTimeout
	cfg.ConnectionConfig.ReadTimeout = c.WebSocket.ReadTimeout
	cfg.ConnectionConfig.PingInterval = c.WebSocket.PingInterval
	cfg.ConnectionConfig.MaxMessageSize = c.WebSocket.MaxMessageSize
	cfg.ConnectionConfig.SendBufferSize = c.WebSocket.SendBufferSize

	cfg.RelayConfig.StreamName = c.Relay.StreamName
	cfg.RelayConfig.SubjectPrefix = c.Relay.SubjectPrefix
	cfg.RelayConfig.MaxAge = c.Relay.MaxAge
	cfg.RelayConfig.URL = getEnv("NATS_URL", "")
	cfg.RelayConfig.ReconnectWait = getEnvAsDuration("NATS_RECONNECT_WAIT", cfg.RelayConfig.ReconnectWait)
	cfg.EnableRelay = cfg.RelayConfig.URL != ""
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// loadConfig reads path over the defaults. A missing file is not an error.
func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !config.Pomodoro.DefaultSyncPolicy.Valid() {
		return nil, fmt.Errorf("invalid default_sync_policy %q", config.Pomodoro.DefaultSyncPolicy)
	}
	if err := validator.New().Struct(config.Pomodoro.DefaultSettings); err != nil {
		return nil, fmt.Errorf("invalid default_settings: %w", err)
	}

	return config, nil
}
