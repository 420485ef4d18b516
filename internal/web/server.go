// Package web exposes the kiosk, enrollment and report endpoints over HTTP.
package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/kiosk"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
)

// Dependencies are the components the HTTP API serves.
type Dependencies struct {
	Gallery        *gallery.Store
	Kiosks         *kiosk.Manager
	Ledger         ledger.Store
	Admin          config.AdminConfig
	Location       *time.Location
	AllowedOrigins string
}

// Server represents the web server
type Server struct {
	deps           Dependencies
	router         *chi.Mux
	httpServer     *http.Server
	sessionManager *middleware.SessionManager
	startJanitor   func()
	stopJanitor    context.CancelFunc
}

// NewServer creates a new web server. sessionRepo may be nil, in which case
// admin sessions live in memory only.
func NewServer(deps Dependencies, port int, host string, sessionSecret string, sessionRepo middleware.SessionRepository) *Server {
	if deps.Location == nil {
		deps.Location = time.Local
	}
	r := chi.NewRouter()
	sessionManager := middleware.NewSessionManager(sessionSecret, sessionRepo)

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	s := &Server{
		deps:           deps,
		router:         r,
		sessionManager: sessionManager,
		stopJanitor:    stopJanitor,
		startJanitor: func() {
			if deps.Kiosks != nil {
				go deps.Kiosks.RunJanitor(janitorCtx, constants.KioskJanitorInterval, constants.KioskIdleTimeout)
			}
		},
	}

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(2 * time.Minute))
	r.Use(middleware.CORS(deps.AllowedOrigins))
	r.Use(middleware.SecurityHeaders())

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server and the idle kiosk janitor.
func (s *Server) Start() error {
	s.startJanitor()

	log.Printf("Starting web server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down web server...")

	s.stopJanitor()
	s.sessionManager.Stop()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}

// SessionManager returns the admin session manager.
func (s *Server) SessionManager() *middleware.SessionManager {
	return s.sessionManager
}
