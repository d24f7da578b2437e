package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"telehealth-portal/internal/config"
	"telehealth-portal/internal/eligibility"
	"telehealth-portal/internal/models"
	"telehealth-portal/internal/server"
	"telehealth-portal/internal/utils"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "telehealth-portal",
		Short: "Appointment gateway for the telehealth client",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(eligibilityCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads .env when present; a missing file is not an error.
func loadConfig() (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return config.LoadConfig()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	bootLogger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	cfg, err := loadConfig()
	if err != nil {
		bootLogger.Error().Err(err).Msg("failed to load config")
		return err
	}
	logger := server.NewLogger(cfg, os.Stdout)

	ctx := context.Background()
	srv, err := server.New(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to build server")
		return err
	}
	defer srv.Close()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("starting server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func eligibilityCmd() *cobra.Command {
	var (
		viewerID string
		role     string
		at       string
		zone     string
	)
	cmd := &cobra.Command{
		Use:   "eligibility",
		Short: "Evaluate join, cancel and reschedule for an appointment read as JSON from stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := time.LoadLocation(zone)
			if err != nil {
				return fmt.Errorf("invalid --tz: %w", err)
			}
			now := time.Now().In(loc)
			if at != "" {
				now, err = time.ParseInLocation("2006-01-02T15:04:05", at, loc)
				if err != nil {
					return fmt.Errorf("invalid --at, want YYYY-MM-DDTHH:MM:SS: %w", err)
				}
			}
			return evaluate(cmd.InOrStdin(), cmd.OutOrStdout(), models.NewViewer(viewerID, role), now)
		},
	}
	cmd.Flags().StringVar(&viewerID, "viewer", "", "Viewer user id")
	cmd.Flags().StringVar(&role, "role", "patient", "Viewer role (patient, doctor, admin)")
	cmd.Flags().StringVar(&at, "at", "", "Evaluate at this local time instead of now")
	cmd.Flags().StringVar(&zone, "tz", "Local", "Clinic time zone")
	return cmd
}

func evaluate(in io.Reader, out io.Writer, viewer models.Viewer, now time.Time) error {
	var appt models.Appointment
	if err := json.NewDecoder(in).Decode(&appt); err != nil {
		return fmt.Errorf("decode appointment: %w", err)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Appointment models.Appointment `json:"appointment"`
		Viewer      models.Viewer      `json:"viewer"`
		Now         time.Time          `json:"now"`
		Result      eligibility.Result `json:"eligibility"`
	}{appt, viewer, now, eligibility.Evaluate(appt, now, viewer)})
}

func tokenCmd() *cobra.Command {
	var (
		userID string
		role   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a development access token with JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.IsProduction() {
				return errors.New("token signing is disabled in production")
			}
			tok, err := utils.GenerateToken(userID, models.ParseRole(role), cfg.JWTSecret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User id")
	cmd.Flags().StringVar(&role, "role", "patient", "Role")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
