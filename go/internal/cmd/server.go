package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mcdev12/studybuddy/go/internal/pomodoro/rpc"
)

func setupServer(config *Config, services *Services) *http.Server {
	mux := http.NewServeMux()

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowedOrigins: config.CORS.AllowedOrigins,
		AllowedHeaders: []string{"*"},
	})

	// Register services
	registerServices(mux, services)

	// Add health check endpoint
	setupHealthCheck(mux, services)

	// Wrap with CORS
	handler := c.Handler(mux)

	// Setup HTTP/2 server
	return &http.Server{
		Addr:    fmt.Sprintf(":%s", getEnv("PORT", "8080")),
		Handler: h2c.NewHandler(handler, &http2.Server{}),
	}
}

func registerServices(mux *http.ServeMux, services *Services) {
	// Websocket and REST routes
	services.Gateway.RegisterRoutes(mux)

	// Register timer RPC service
	timerServicePath, timerServiceHandler := rpc.NewTimerServiceHandler(services.TimerRPC)
	mux.Handle(timerServicePath, timerServiceHandler)
}

func setupHealthCheck(mux *http.ServeMux, services *Services) {
	mux.Handle("GET /health", services.Health)

	mux.HandleFunc("GET /info", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		err := json.NewEncoder(w).Encode(map[string]any{
			"service":     "pomodoro",
			"connections": services.Gateway.GetStats().TotalConnections,
		})
		if err != nil {
			log.Error().Err(err).Msg("failed to write info response")
		}
	})
}
