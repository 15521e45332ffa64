package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/studybuddy/go/internal/dbconfig"
	"github.com/mcdev12/studybuddy/go/internal/groups"
	"github.com/mcdev12/studybuddy/go/internal/health"
	"github.com/mcdev12/studybuddy/go/internal/identity"
	"github.com/mcdev12/studybuddy/go/internal/models"
	"github.com/mcdev12/studybuddy/go/internal/notifications"
	"github.com/mcdev12/studybuddy/go/internal/pomodoro"
	"github.com/mcdev12/studybuddy/go/internal/pomodoro/gateway"
	"github.com/mcdev12/studybuddy/go/internal/pomodoro/repository"
	"github.com/mcdev12/studybuddy/go/internal/pomodoro/rpc"
)

type Services struct {
	Pomodoro      *pomodoro.App
	Gateway       *gateway.Service
	TimerRPC      *rpc.Service
	Notifications *notifications.Service
	Health        *health.Checker

	db   *sql.DB
	pool *pgxpool.Pool
}

// Close releases database handles.
func (s *Services) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close database")
		}
	}
}

type backends struct {
	store   repository.Store
	members pomodoro.MembershipOracle
	inbox   notifications.Repository
}

func setupServices(ctx context.Context, config *Config) (*Services, error) {
	// Wire up dependency injection chain
	// Storage → Hub → App → Gateway/RPC
	clock := clockwork.NewRealClock()
	services := &Services{Health: health.NewChecker(getEnvAsDuration("HEALTH_TIMEOUT", 5*time.Second))}

	var b backends
	switch mode := getEnv("STORE", "postgres"); mode {
	case "memory":
		b = memoryBackends(config, clock)
		log.Warn().Msg("using in-memory storage, state is lost on restart")
	case "postgres":
		dbConfig := dbconfig.NewConfigFromEnv()
		db, err := setupDatabase(ctx, dbConfig)
		if err != nil {
			return nil, err
		}
		services.db = db
		services.Health.Add("database", db.PingContext)

		pool, err := setupPool(ctx, dbConfig)
		if err != nil {
			services.Close()
			return nil, err
		}
		services.pool = pool
		services.Health.Add("pool", pool.Ping)

		if b, err = postgresBackends(ctx, db, pool); err != nil {
			services.Close()
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown STORE %q", mode)
	}

	// Gateway hub first: the app publishes through it
	hub, err := gateway.NewHub(config.gatewayConfig())
	if err != nil {
		services.Close()
		return nil, fmt.Errorf("failed to create gateway hub: %w", err)
	}
	if hub.RelayEnabled() {
		services.Health.Add("nats", hub.CheckRelay)
	}

	// Notifications
	services.Notifications = notifications.NewService(b.inbox, hub.Publisher())

	// Pomodoro
	services.Pomodoro = pomodoro.NewApp(b.store, b.members, hub.Publisher(), services.Notifications, clock, config.Pomodoro)

	// Transports
	auth := identity.NewJWTResolver(getEnv("JWT_SECRET", "dev-secret"), clock)
	services.Gateway = gateway.NewService(hub, auth, services.Pomodoro, services.Notifications, identity.CredentialFromRequest)
	services.TimerRPC = rpc.NewService(services.Pomodoro, auth)

	return services, nil
}

func postgresBackends(ctx context.Context, db *sql.DB, pool *pgxpool.Pool) (backends, error) {
	store := repository.NewPostgresStore(pool)
	if err := store.Migrate(ctx); err != nil {
		return backends{}, fmt.Errorf("failed to migrate timers: %w", err)
	}

	inbox := notifications.NewPostgresRepository(db)
	if err := inbox.Migrate(ctx); err != nil {
		return backends{}, fmt.Errorf("failed to migrate notifications: %w", err)
	}

	return backends{
		store:   store,
		members: groups.NewPostgresOracle(pool),
		inbox:   inbox,
	}, nil
}

func memoryBackends(config *Config, clock clockwork.Clock) backends {
	oracle := groups.NewStaticOracle()
	for _, g := range config.Groups {
		oracle.AddGroup(models.StudyGroup{ID: g.ID, Name: g.Name, CreatedBy: g.CreatedBy, IsPublic: g.IsPublic})
		for _, m := range g.Members {
			oracle.AddMember(g.ID, m.UserID, m.Role)
		}
	}

	return backends{
		store:   repository.NewMemoryStore(clock),
		members: oracle,
		inbox:   notifications.NewMemoryRepository(clock),
	}
}
