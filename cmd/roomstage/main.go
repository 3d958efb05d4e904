package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tjfontaine/roomstage/internal/auth"
	"github.com/tjfontaine/roomstage/internal/config"
	"github.com/tjfontaine/roomstage/internal/runtime"
	"github.com/tjfontaine/roomstage/internal/staging"
	"github.com/tjfontaine/roomstage/internal/telemetry"
)

const serviceName = "roomstage"

var version = "dev"

var (
	configPath string

	tokenSubject string
	tokenTTL     time.Duration

	breakdownRoom   string
	breakdownStyle  string
	breakdownPrompt string
	breakdownRefs   bool
)

var rootCmd = &cobra.Command{
	Use:           serviceName,
	Short:         "Virtual room staging service",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the staging HTTP server",
	RunE:  runServe,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for local testing",
	Long: `Token signs a short-lived HS256 token with auth.jwt_secret.

Examples:
  roomstage token --subject user-1
  roomstage token --subject user-1 --ttl 24h`,
	RunE: runToken,
}

var breakdownCmd = &cobra.Command{
	Use:   "breakdown",
	Short: "Print the furnishing breakdown and provider prompt",
	Long: `Breakdown derives the staging elements for a room without calling the
image provider. With no --room it lists the recognized room types and styles.

Examples:
  roomstage breakdown
  roomstage breakdown --room kitchen --style industrial --prompt "add plants"`,
	RunE: runBreakdown,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to config.yaml")

	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "Owner id placed in the sub claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "Token lifetime")
	_ = tokenCmd.MarkFlagRequired("subject")

	breakdownCmd.Flags().StringVar(&breakdownRoom, "room", "", "Room type label")
	breakdownCmd.Flags().StringVar(&breakdownStyle, "style", "", "Style label")
	breakdownCmd.Flags().StringVarP(&breakdownPrompt, "prompt", "p", "", "Free-text staging prompt")
	breakdownCmd.Flags().BoolVar(&breakdownRefs, "reference-images", false, "Compose as if reference images were supplied")

	rootCmd.AddCommand(serveCmd, tokenCmd, breakdownCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	tracer, shutdownTracer, err := telemetry.InitTracer(telemetry.Options{
		ServiceName: serviceName,
		Version:     version,
		Enabled:     cfg.Telemetry.Enabled,
	}, logger)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := runtime.New(ctx,
		runtime.WithConfig(cfg),
		runtime.WithLogger(logger),
		runtime.WithTracer(tracer),
	)
	if err != nil {
		return err
	}

	app.Start()
	logger.Info("roomstage started", slog.Int("port", cfg.Server.Port), slog.String("version", version))

	serveErr := app.Wait(ctx)
	if serveErr == nil {
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return errors.Join(serveErr, app.Shutdown(shutdownCtx))
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is not configured")
	}

	token, err := auth.Mint(cfg.Auth.JWTSecret, tokenSubject, cfg.Auth.Audience, tokenTTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

func runBreakdown(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if breakdownRoom == "" {
		fmt.Fprintln(out, "Room types:")
		for _, r := range staging.RoomTypes() {
			fmt.Fprintf(out, "  %s\n", r)
		}
		fmt.Fprintln(out, "Styles:")
		for _, s := range staging.Styles() {
			fmt.Fprintf(out, "  %s\n", s)
		}
		return nil
	}

	b := staging.Derive(breakdownRoom, breakdownStyle, breakdownPrompt)

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		StagingElements any    `json:"stagingElements"`
		Prompt          string `json:"prompt"`
	}{
		StagingElements: b,
		Prompt:          staging.Compose(breakdownPrompt, breakdownRoom, breakdownStyle, b, breakdownRefs),
	})
}
