package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/todoapi/apiserver/config"
	"github.com/todoapi/apiserver/internal/db"
	"github.com/todoapi/apiserver/internal/handlers"
	"github.com/todoapi/apiserver/internal/mq"
	"github.com/todoapi/apiserver/internal/services"
	"github.com/todoapi/apiserver/internal/store"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	events     *mq.MQ
}

// Deps are the collaborators the router needs. Events may be nil.
type Deps struct {
	DB        *gorm.DB
	Health    handlers.Pinger
	Events    services.EventPublisher
	RateLimit config.RateLimitConfig
}

// New opens the database and the optional event broker and builds the router.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	sqlDB, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	gormDB, err := db.OpenGorm(sqlDB, cfg)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	events, err := mq.NewFromConfig(ctx, cfg.MQ)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	deps := Deps{DB: gormDB, Health: sqlDB, RateLimit: cfg.RateLimit}
	// Leave the interface nil rather than holding a nil *mq.MQ.
	if events != nil {
		deps.Events = events
	}
	router := NewRouter(deps)

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
		db:         sqlDB,
		events:     events,
	}, nil
}

// NewRouter builds the middleware stack and the /healthz, /todoitems and
// /users routes.
func NewRouter(deps Deps) *chi.Mux {
	userRepo := store.NewUserRepository(deps.DB)
	todoRepo := store.NewTodoRepository(deps.DB)

	userService := services.NewUserService(userRepo, deps.Events)
	todoService := services.NewTodoService(todoRepo, userRepo, deps.Events)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	if deps.RateLimit.RPS > 0 {
		burst := deps.RateLimit.Burst
		if burst < 1 {
			burst = 1
		}
		router.Use(handlers.RateLimit(rate.NewLimiter(rate.Limit(deps.RateLimit.RPS), burst)))
	}

	if deps.Health != nil {
		router.Get("/healthz", handlers.Healthz(deps.Health))
	}
	router.Route("/todoitems", func(r chi.Router) {
		handlers.TodoRouter(r, todoService)
	})
	router.Route("/users", func(r chi.Router) {
		handlers.UserRouter(r, userService)
	})
	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests until ctx expires, then releases the
// broker and database.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.events != nil {
		_ = s.events.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
