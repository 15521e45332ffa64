// Package gateway is the realtime and HTTP surface of the pomodoro timers:
// websocket connections subscribed to group and user topics, the REST
// timer and notification routes, and the optional JetStream relay that
// fans frames out across instances.
package gateway

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/studybuddy/go/internal/pomodoro/events"
)

// Config holds configuration for the gateway.
type Config struct {
	ConnectionConfig ConnectionConfig
	RelayConfig      RelayConfig
	EnableRelay      bool
}

// DefaultConfig returns a single-instance configuration.
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		RelayConfig:      DefaultRelayConfig(),
	}
}

// Hub owns the sockets and, when configured, the relay. It is built before
// the application so the application can publish through it.
type Hub struct {
	connectionManager *ConnectionManager
	registry          *Registry
	relay             *EventRelay
}

// NewHub creates the connection manager and connects the relay if enabled.
func NewHub(config Config) (*Hub, error) {
	registry := NewRegistry()
	cm := NewConnectionManager(config.ConnectionConfig, registry)

	hub := &Hub{connectionManager: cm, registry: registry}
	if config.EnableRelay {
		relay, err := NewEventRelay(config.RelayConfig, cm)
		if err != nil {
			return nil, err
		}
		hub.relay = relay
	}
	return hub, nil
}

// Publisher is where the application sends frames.
func (h *Hub) Publisher() events.Publisher {
	if h.relay != nil {
		return h.relay
	}
	return h.connectionManager
}

// CheckRelay fails when the relay is enabled but not connected.
func (h *Hub) CheckRelay(context.Context) error {
	if h.relay == nil || h.relay.Connected() {
		return nil
	}
	return errors.New("NATS disconnected")
}

// RelayEnabled reports whether frames cross instances.
func (h *Hub) RelayEnabled() bool {
	return h.relay != nil
}

// Service is the gateway: the hub plus the handlers serving it.
type Service struct {
	hub                 *Hub
	wsHandler           *WebSocketHandler
	timerHandler        *TimerHandler
	notificationHandler *NotificationHandler
}

// NewService creates a new gateway service.
func NewService(hub *Hub, auth Authenticator, timers TimerService, notifications NotificationService, credential func(r *http.Request) string) *Service {
	return &Service{
		hub:                 hub,
		wsHandler:           NewWebSocketHandler(hub.connectionManager, auth, timers, credential),
		timerHandler:        NewTimerHandler(auth, timers, credential),
		notificationHandler: NewNotificationHandler(auth, notifications, credential),
	}
}

// Start runs the dispatcher and relay until ctx is done, then stops.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Bool("relay", s.hub.relay != nil).Msg("starting pomodoro gateway")

	go s.hub.connectionManager.Start(ctx)

	if s.hub.relay != nil {
		go func() {
			if err := s.hub.relay.Start(ctx); err != nil {
				log.Error().Err(err).Msg("event relay failed")
			}
		}()
	}

	<-ctx.Done()

	log.Info().Msg("pomodoro gateway shutting down")
	return s.Stop()
}

// Stop disconnects every client and releases the relay.
func (s *Service) Stop() error {
	if s.hub.relay != nil {
		if err := s.hub.relay.Stop(); err != nil {
			log.Error().Err(err).Msg("failed to stop event relay")
		}
	}

	s.hub.connectionManager.CloseAll()
	s.hub.registry.Clear()

	log.Info().Msg("pomodoro gateway stopped")
	return nil
}

// RegisterRoutes registers the websocket and REST routes.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.timerHandler.RegisterRoutes(mux)
	s.notificationHandler.RegisterRoutes(mux)
	log.Info().Msg("pomodoro gateway routes registered")
}

// GetStats returns statistics about the gateway.
func (s *Service) GetStats() ConnectionStats {
	return s.hub.connectionManager.GetConnectionStats()
}
