package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/studybuddy/go/internal/pomodoro/events"
)

// RelayConfig holds configuration for the JetStream event relay.
type RelayConfig struct {
	URL             string
	StreamName      string
	SubjectPrefix   string
	MaxReconnects   int
	ReconnectWait   time.Duration
	MaxAge          time.Duration // frames are only useful while live
	Replicas        int
	DuplicateWindow time.Duration
}

// DefaultRelayConfig returns default relay configuration.
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		URL:             nats.DefaultURL,
		StreamName:      "POMODORO_EVENTS",
		SubjectPrefix:   "pomodoro.events",
		MaxReconnects:   -1,
		ReconnectWait:   2 * time.Second,
		MaxAge:          time.Hour,
		Replicas:        1,
		DuplicateWindow: 2 * time.Minute,
	}
}

// envelope wraps an encoded frame on the wire. Payload is forwarded to
// sockets untouched.
type envelope struct {
	EventID   string          `json:"eventId"`
	Topic     events.Topic    `json:"topic"`
	Type      string          `json:"type"`
	Origin    string          `json:"origin"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// EventRelay fans frames out across gateway instances. Publish writes to a
// JetStream stream; every instance runs its own ordered consumer and hands
// what it reads to its local ConnectionManager.
type EventRelay struct {
	nc       *nats.Conn
	js       jetstream.JetStream
	config   RelayConfig
	local    *ConnectionManager
	instance string

	mu         sync.Mutex
	consumeCtx jetstream.ConsumeContext

	// Frames this instance delivered itself after a failed publish. A
	// publish can fail on the client yet still land in the stream; the
	// consumer then skips the copy.
	fallbackMu sync.Mutex
	fallback   map[string]time.Time
}

// NewEventRelay connects to NATS and makes sure the stream exists.
func NewEventRelay(config RelayConfig, local *ConnectionManager) (*EventRelay, error) {
	opts := []nats.Option{
		nats.Name("studybuddy-pomodoro"),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	r := &EventRelay{
		nc:       nc,
		js:       js,
		config:   config,
		local:    local,
		instance: uuid.New().String(),
		fallback: make(map[string]time.Time),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	return r, nil
}

func (r *EventRelay) ensureStream(ctx context.Context) error {
	sc := jetstream.StreamConfig{
		Name:        r.config.StreamName,
		Description: "Pomodoro realtime frames",
		Subjects:    []string{r.config.SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      r.config.MaxAge,
		Storage:     jetstream.MemoryStorage,
		Replicas:    r.config.Replicas,
		Duplicates:  r.config.DuplicateWindow,
	}

	if _, err := r.js.CreateOrUpdateStream(ctx, sc); err != nil {
		return fmt.Errorf("create or update stream: %w", err)
	}
	log.Info().Str("stream", r.config.StreamName).Msg("JetStream stream ready")
	return nil
}

// subject maps "group:7" to "<prefix>.group.7".
func (r *EventRelay) subject(topic events.Topic) string {
	return r.config.SubjectPrefix + "." + strings.ReplaceAll(string(topic), ":", ".")
}

// Publish sends msg to every instance. If the stream is unreachable the
// frame is still delivered to this instance's sockets.
func (r *EventRelay) Publish(ctx context.Context, topic events.Topic, msg *events.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s frame: %w", msg.Type, err)
	}

	env := envelope{
		EventID:   uuid.New().String(),
		Topic:     topic,
		Type:      string(msg.Type),
		Origin:    r.instance,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	_, err = r.js.PublishMsg(ctx, &nats.Msg{Subject: r.subject(topic), Data: data},
		jetstream.WithMsgID(env.EventID),
		jetstream.WithExpectStream(r.config.StreamName),
	)
	if err != nil {
		log.Error().
			Err(err).
			Str("topic", string(topic)).
			Str("event_id", env.EventID).
			Msg("failed to publish to JetStream, delivering locally")
		r.markDelivered(env.EventID)
		if localErr := r.local.Deliver(topic, payload, env.Type); localErr != nil {
			return fmt.Errorf("publish %s: %w", topic, localErr)
		}
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	log.Debug().
		Str("topic", string(topic)).
		Str("event_id", env.EventID).
		Str("event_type", env.Type).
		Msg("event published")
	return nil
}

// Start consumes new frames from the stream until ctx is done.
func (r *EventRelay) Start(ctx context.Context) error {
	consumer, err := r.js.OrderedConsumer(ctx, r.config.StreamName, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{r.config.SubjectPrefix + ".>"},
		DeliverPolicy:  jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return fmt.Errorf("create ordered consumer: %w", err)
	}

	consumeCtx, err := consumer.Consume(r.handleMessage)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}
	r.mu.Lock()
	r.consumeCtx = consumeCtx
	r.mu.Unlock()

	log.Info().
		Str("stream", r.config.StreamName).
		Str("instance", r.instance).
		Msg("event relay started")

	<-ctx.Done()
	return nil
}

func (r *EventRelay) handleMessage(msg jetstream.Msg) {
	r.handleEnvelope(msg.Subject(), msg.Data())
}

func (r *EventRelay) handleEnvelope(subject string, data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("subject", subject).Msg("failed to decode relayed event")
		return
	}

	if env.Origin == r.instance && r.takeDelivered(env.EventID) {
		log.Debug().Str("event_id", env.EventID).Msg("skipping event already delivered locally")
		return
	}

	if err := r.local.Deliver(env.Topic, env.Payload, env.Type); err != nil {
		log.Warn().
			Err(err).
			Str("event_id", env.EventID).
			Str("topic", string(env.Topic)).
			Msg("dropped relayed event")
	}
}

func (r *EventRelay) markDelivered(eventID string) {
	now := time.Now()
	r.fallbackMu.Lock()
	defer r.fallbackMu.Unlock()

	for id, at := range r.fallback {
		if now.Sub(at) > r.config.DuplicateWindow {
			delete(r.fallback, id)
		}
	}
	r.fallback[eventID] = now
}

func (r *EventRelay) takeDelivered(eventID string) bool {
	r.fallbackMu.Lock()
	defer r.fallbackMu.Unlock()

	if _, ok := r.fallback[eventID]; !ok {
		return false
	}
	delete(r.fallback, eventID)
	return true
}

// Connected reports whether the NATS connection is up.
func (r *EventRelay) Connected() bool {
	return r.nc.IsConnected()
}

// Stop stops consuming and closes the NATS connection.
func (r *EventRelay) Stop() error {
	r.mu.Lock()
	if r.consumeCtx != nil {
		r.consumeCtx.Stop()
	}
	r.mu.Unlock()
	if err := r.nc.Drain(); err != nil {
		r.nc.Close()
		return fmt.Errorf("drain NATS connection: %w", err)
	}
	return nil
}
