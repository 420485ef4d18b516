package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/web/handlers"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	authHandler := handlers.NewAuthHandler(s.deps.Admin, s.sessionManager)
	kioskHandler := handlers.NewKioskHandler(s.deps.Kiosks)
	usersHandler := handlers.NewUsersHandler(s.deps.Gallery)
	attendanceHandler := handlers.NewAttendanceHandler(s.deps.Ledger, s.deps.Location)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handlers.HealthCheck)

		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)
		r.Get("/auth/status", authHandler.Status)

		// The kiosk is unattended and needs no login.
		r.Post("/kiosk/sessions", kioskHandler.Create)
		r.Get("/kiosk/sessions/{id}", kioskHandler.Get)
		r.Delete("/kiosk/sessions/{id}", kioskHandler.Close)
		r.Post("/kiosk/sessions/{id}/frames", kioskHandler.Frame)
		r.Post("/kiosk/sessions/{id}/stream", kioskHandler.Stream)
		r.Post("/kiosk/sessions/{id}/reset", kioskHandler.Reset)
		r.Post("/kiosk/sessions/{id}/attendance", kioskHandler.Record)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(s.sessionManager))

			// Users
			r.Get("/users", usersHandler.List)
			r.Post("/users", usersHandler.Create)
			r.Post("/users/reload", usersHandler.Reload)
			r.Put("/users/{name}", usersHandler.Rename)
			r.Put("/users/{name}/image", usersHandler.Reenroll)
			r.Delete("/users/{name}", usersHandler.Delete)

			// Attendance
			r.Get("/attendance", attendanceHandler.List)
			r.Get("/attendance/export.csv", attendanceHandler.Export)
		})
	})
}
