// Command socialstyles runs the Social Styles assessment server and its
// maintenance tasks.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gmoorevt/socialstyles/internal/api"
	"github.com/gmoorevt/socialstyles/internal/config"
	"github.com/gmoorevt/socialstyles/internal/db"
	"github.com/gmoorevt/socialstyles/internal/events"
	"github.com/gmoorevt/socialstyles/internal/middleware"
	"github.com/gmoorevt/socialstyles/internal/notify"
	"github.com/gmoorevt/socialstyles/internal/services"
)

// Set via -ldflags at build time.
var (
	Version   = "dev"
	Commit    = ""
	BuildTime = ""
)

const appName = "socialstyles"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	logLevel   string
}

func rootCmd() *cobra.Command {
	g := &globalFlags{}
	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Social Styles assessment server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	cmd.AddCommand(
		serveCmd(g),
		migrateCmd(g),
		initAssessmentCmd(g),
		makeAdminCmd(g),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (commit: %s, build: %s)\n", appName, Version, Commit, BuildTime)
			},
		},
	)
	return cmd
}

// setup loads config and installs the default logger.
func (g *globalFlags) setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, nil, err
	}
	levelName := cfg.LogLevel
	if g.logLevel != "" {
		levelName = g.logLevel
	}
	level, err := config.ParseLevel(levelName)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// openStore opens the database, applies pending migrations and returns the store.
func openStore(cfg *config.Config, log *slog.Logger) (*sql.DB, *db.SQLiteStore, error) {
	sqlDB, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	n, err := db.RunMigrations(sqlDB, cfg.MigrationsDir)
	if err != nil {
		_ = sqlDB.Close()
		return nil, nil, err
	}
	if n > 0 {
		log.Info("migrations applied", "count", n)
	}
	store, err := db.NewSQLiteStore(sqlDB, log)
	if err != nil {
		_ = sqlDB.Close()
		return nil, nil, err
	}
	return sqlDB, store, nil
}

func serveCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := g.setup()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

func newBroker(cfg *config.Config, log *slog.Logger) (events.Broker, error) {
	if cfg.ValkeyAddr == "" {
		return events.NewMemoryBroker(log), nil
	}
	return events.NewValkeyBroker(cfg.ValkeyAddr, log)
}

func newNotifier(cfg *config.Config, log *slog.Logger) services.Notifier {
	if cfg.SMTP.Host == "" {
		return notify.LogNotifier{Log: log.With("component", "notify")}
	}
	return notify.NewSMTPNotifier(notify.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg.Secret == config.DevSecret {
		logger.Warn("using the development secret; set SOCIALSTYLES_SECRET")
	}
	sqlDB, store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	broker, err := newBroker(cfg, logger)
	if err != nil {
		return err
	}
	defer broker.Close()

	auth, err := middleware.NewAuth(cfg.Secret)
	if err != nil {
		return err
	}
	teams := services.NewTeamService(services.TeamServiceConfig{
		Store:     store,
		Joins:     services.NewJoinTokens([]byte(cfg.Secret)),
		Notifier:  newNotifier(cfg, logger),
		Events:    broker,
		Logger:    logger,
		BaseURL:   cfg.BaseURL,
		InviteTTL: cfg.InviteTTL,
	})
	defer teams.Drain()

	router := api.NewRouter(api.Deps{
		Auth:           auth,
		Accounts:       services.NewAuthService(store, auth.SignToken, cfg.TokenTTL),
		Users:          services.NewUserService(store, logger),
		Assessments:    services.NewAssessmentService(store, broker, logger),
		Teams:          teams,
		Broker:         broker,
		Logger:         logger,
		Version:        Version,
		AllowedOrigins: cfg.AllowedOrigins,
		Health:         sqlDB.PingContext,
	})

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	// Event streams only end when their request context does.
	srv.RegisterOnShutdown(cancelBase)
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.Addr, "env", cfg.Env, "version", Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown incomplete", "err", err)
		_ = srv.Close()
	}
	return nil
}
