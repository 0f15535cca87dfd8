package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lionswap/accounts/config"
	"github.com/lionswap/accounts/internal/clients"
	"github.com/lionswap/accounts/internal/db"
	"github.com/lionswap/accounts/internal/events"
	"github.com/lionswap/accounts/internal/handlers"
	"github.com/lionswap/accounts/internal/logging"
	"github.com/lionswap/accounts/internal/services"
	"github.com/lionswap/accounts/internal/session"
	"github.com/lionswap/accounts/internal/storage"
	"github.com/lionswap/accounts/internal/store"
	"github.com/lionswap/accounts/internal/workers"
	"go.uber.org/zap"
)

// deletionWorkers sizes the pool shared by all in-flight composite
// deletions.
const deletionWorkers = 4

// Server wraps the HTTP server and its owned resources.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	pool       *workers.Pool
	publisher  *events.Publisher
	sessions   session.Store
	logger     *zap.Logger
}

// New constructs a Server with all dependencies wired from config.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	logger, err := logging.Init()
	if err != nil {
		return nil, err
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	accountRepo := store.NewAccountRepository(dbConn)

	publisher, err := newPublisher(ctx, cfg.Events)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	avatars, err := newAvatarStore(ctx, cfg.Avatars)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	sessions := newSessionStore(cfg.Session)

	identityClient := clients.NewIdentityClient(cfg.Upstream.IdentityBaseURL)
	catalogClient := clients.NewCatalogClient(cfg.Upstream.CatalogBaseURL)

	pool := workers.NewPool(deletionWorkers)

	accountService := services.NewAccountService(accountRepo, publisher, logger)
	compositeService := services.NewCompositeService(
		identityClient,
		catalogClient,
		pool,
		publisher,
		avatars,
		logger,
	)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/users", func(r chi.Router) {
		handlers.AccountRouter(r, accountService, avatars)
	})
	router.Route("/composite", func(r chi.Router) {
		handlers.CompositeRouter(r, compositeService)
	})
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, accountService, sessions, cfg.OAuth, cfg.FrontendURL, cfg.JWTSecret, logger)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		pool:       pool,
		publisher:  publisher,
		sessions:   sessions,
		logger:     logger,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("server starting", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown drains the worker pool and releases owned resources.
func (s *Server) Shutdown() error {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.publisher != nil {
		_ = s.publisher.Close()
	}
	if closer, ok := s.sessions.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	_ = s.logger.Sync()
	return s.httpServer.Close()
}

func newPublisher(ctx context.Context, cfg config.EventsConfig) (*events.Publisher, error) {
	switch cfg.Backend {
	case "":
		return nil, nil
	case "rabbitmq":
		backend, err := events.NewRabbitMQBackend(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return events.NewPublisher(backend), nil
	case "pubsub":
		backend, err := events.NewPubSubBackend(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return events.NewPublisher(backend), nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
}

func newAvatarStore(ctx context.Context, cfg config.AvatarsConfig) (*storage.AvatarStore, error) {
	switch cfg.Backend {
	case "":
		return nil, nil
	case "minio":
		backend, err := storage.NewMinioBackend(cfg.Minio)
		if err != nil {
			return nil, err
		}
		avatars := storage.NewAvatarStore(backend)
		if err := avatars.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return avatars, nil
	case "gcs":
		backend, err := storage.NewGCSBackend(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		avatars := storage.NewAvatarStore(backend)
		if err := avatars.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return avatars, nil
	default:
		return nil, fmt.Errorf("unknown avatar backend %q", cfg.Backend)
	}
}

func newSessionStore(cfg config.SessionConfig) session.Store {
	if cfg.RedisAddr != "" {
		return session.NewRedisStore(cfg)
	}
	return session.NewMemoryStore()
}
