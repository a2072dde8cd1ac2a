package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mrpasztoradam/goadsym"
	"github.com/mrpasztoradam/goadsym/internal/ams"
)

// maxStreams bounds the number of concurrent WebSocket subscriptions.
const maxStreams = 100

// Server represents the HTTP server
type Server struct {
	config     *Config
	session    *goadsym.PortSession
	symbols    *goadsym.SymbolAccess
	stream     *StreamManager
	publisher  *Publisher
	handler    *Handler
	logger     *slog.Logger
	registry   *prometheus.Registry
	router     *chi.Mux
	httpServer *http.Server
}

// New creates a gateway server over the given channel. A nil channel selects
// the AMS/TCP channel for the configured target; tests pass an emulator.
func New(config *Config, ch goadsym.Channel) (*Server, error) {
	logger, err := newLogger(&config.Logging)
	if err != nil {
		return nil, err
	}

	if ch == nil {
		ch = goadsym.NewAMSChannel(config.ADS.Target, config.Timeout())
	}

	registry := prometheus.NewRegistry()
	metrics := goadsym.NewPrometheusMetrics(registry)

	session, err := goadsym.NewPortSession(ch,
		goadsym.WithTimeout(config.Timeout()),
		goadsym.WithLogger(goadsym.NewSlogLogger(logger)),
		goadsym.WithMetrics(metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	symbols := goadsym.NewSymbolAccess(session)
	stream := NewStreamManager(symbols, logger, maxStreams)

	s := &Server{
		config:   config,
		session:  session,
		symbols:  symbols,
		stream:   stream,
		logger:   logger,
		registry: registry,
		handler:  NewHandler(session, symbols, stream, logger, config.ADS.Target),
	}

	if config.MQTT.Enabled {
		s.publisher = NewPublisher(&config.MQTT, symbols, logger)
	}

	s.setupRouter()

	s.httpServer = &http.Server{
		Addr:         config.Address(),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

func newLogger(cfg *LoggingConfig) (*slog.Logger, error) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level: %s", cfg.Level)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler), nil
}

// setupRouter configures the HTTP router
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))

	if s.config.Server.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.config.Server.CORS.AllowedOrigins,
			AllowedMethods:   s.config.Server.CORS.AllowedMethods,
			AllowedHeaders:   s.config.Server.CORS.AllowedHeaders,
			AllowCredentials: s.config.Server.CORS.AllowCredentials,
			MaxAge:           300,
		}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/symbols/{name}", func(r chi.Router) {
			r.Get("/value", s.handler.HandleReadSymbol)
			r.Post("/value", s.handler.HandleWriteSymbol)
		})

		r.Route("/handles", func(r chi.Router) {
			r.Post("/", s.handler.HandleAcquireHandle)
			r.Route("/{handle}", func(r chi.Router) {
				r.Delete("/", s.handler.HandleReleaseHandle)
				r.Get("/value", s.handler.HandleReadByHandle)
				r.Post("/value", s.handler.HandleWriteByHandle)
			})
		})

		r.Get("/state", s.handler.HandleGetState)
		r.Get("/info", s.handler.HandleInfo)
		r.Get("/health", s.handler.HandleHealth)
		r.Get("/version", s.handler.HandleVersion)
		r.Post("/timeout", s.handler.HandleSetTimeout)
	})

	r.Get("/ws/stream", s.handler.HandleStream)

	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"name":"goadsym gateway","version":%q,"api":"/api/v1","websocket":"/ws/stream","metrics":"/metrics"}`,
			goadsym.LibraryVersion())
	})

	s.router = r
}

// Start opens the session and starts serving. It blocks until the HTTP
// server stops.
func (s *Server) Start(ctx context.Context) error {
	port, err := s.session.Open(ctx, ams.Port(s.config.ADS.SubPort))
	if err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	s.logger.Info("session open", "port", port, "target", s.config.ADS.Target)

	if s.publisher != nil {
		if err := s.publisher.Start(ctx); err != nil {
			s.session.Close()
			return fmt.Errorf("failed to start MQTT publisher: %w", err)
		}
	}

	s.logger.Info("gateway listening", "address", s.config.Address())
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts the gateway down.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")

	if s.publisher != nil {
		s.publisher.Stop()
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	if err := s.session.Close(); err != nil {
		s.logger.Warn("session close failed", "error", err)
	}

	s.logger.Info("gateway stopped")
	return nil
}

// Session returns the underlying session (useful for testing).
func (s *Server) Session() *goadsym.PortSession {
	return s.session
}

// Router returns the chi router (useful for testing).
func (s *Server) Router() *chi.Mux {
	return s.router
}
