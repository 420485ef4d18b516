package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/face-attendance/internal/kiosk"
	"github.com/kozaktomas/face-attendance/internal/web"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Face Attendance web server.

The server exposes the kiosk API (open a session, stream frames, record
time in / time out) and the administration API (manage enrolled people,
query and export the attendance ledger) under /api/v1.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().String("session-secret", "", "Secret for signing session cookies (defaults to random)")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")
	sessionSecret := mustGetString(cmd, "session-secret")

	if sessionSecret == "" {
		sessionSecret = os.Getenv("WEB_SESSION_SECRET")
	}
	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host, sessionSecret
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, appOptions{gallery: true, ledger: true, progress: true})
	if err != nil {
		return err
	}
	defer a.Close()

	var sessionRepo middleware.SessionRepository
	if repo := a.sessionRepository(); repo != nil {
		sessionRepo = repo
		fmt.Printf("Session persistence enabled (PostgreSQL)\n")
	}
	fmt.Printf("Attendance ledger: %s\n", a.cfg.Ledger.Backend)

	kiosks := kiosk.NewManager(a.recognizer, a.ledger,
		kiosk.WithStableFrames(a.cfg.Session.StableFrames),
		kiosk.WithMaxSessions(a.cfg.Session.MaxKiosks),
	)
	port, host, sessionSecret := resolveServeHostPort(cmd)

	server := web.NewServer(web.Dependencies{
		Gallery:        a.gallery,
		Kiosks:         kiosks,
		Ledger:         a.ledger,
		Admin:          a.cfg.Admin,
		Location:       time.Local,
		AllowedOrigins: os.Getenv("WEB_ALLOWED_ORIGINS"),
	}, port, host, sessionSecret, sessionRepo)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Face Attendance on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
