package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/lukeharris/trackd/internal/api"
	"github.com/lukeharris/trackd/internal/auth"
	"github.com/lukeharris/trackd/internal/config"
	"github.com/lukeharris/trackd/internal/invite"
	"github.com/lukeharris/trackd/internal/metrics"
	"github.com/lukeharris/trackd/internal/notify"
	"github.com/lukeharris/trackd/internal/project"
	"github.com/lukeharris/trackd/internal/ratelimit"
	"github.com/lukeharris/trackd/internal/session"
	"github.com/lukeharris/trackd/internal/user"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the trackd server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return err
	}
	logger.Info("connected to database")

	userStore := user.NewStore(pool)
	sessionStore := session.NewStore(pool, cfg.Auth.RefreshTokenDays)
	projectStore := project.NewStore(pool)
	inviteStore := invite.NewStore(pool)

	issuer := auth.NewTokenIssuer(cfg.Auth.SigningKey, cfg.Auth.Issuer, cfg.Auth.AccessTokenTTL)
	authService := auth.NewService(userStore, sessionStore, issuer, logger)

	m := metrics.New()
	m.RegisterDBPoolCollector(func() (int32, int32, int32) {
		stat := pool.Stat()
		return stat.TotalConns(), stat.IdleConns(), stat.AcquiredConns()
	})

	var notifier notify.Notifier = notify.Nop{}
	if cfg.Notifier.URL != "" {
		notifier = notify.NewAMQPNotifier(cfg.Notifier.URL, cfg.Notifier.Queue, logger)
		logger.Info("notifier enabled", "queue", cfg.Notifier.Queue)
	}
	notifier = instrumentedNotifier{next: notifier, metrics: m}

	inviteLimiter := ratelimit.New(cfg.Invites.MaxPerDay, 24*time.Hour)
	inviteService := invite.NewService(inviteStore, userStore, inviteLimiter, notifier, logger, cfg.Invites.DefaultExpiryDays)

	signinLimiter := ratelimit.New(cfg.Auth.SignInRatePerMin, time.Minute)

	// Expired refresh rows are only garbage; live validation never trusts
	// them. Sweep hourly.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := sessionStore.CleanExpired(ctx); err != nil {
					logger.Warn("session cleanup failed", "error", err)
				} else if n > 0 {
					logger.Info("expired sessions removed", "count", n)
				}
			}
		}
	}()

	router := api.NewRouter(api.RouterDeps{
		Auth:           authService,
		Issuer:         issuer,
		Users:          userStore,
		Projects:       projectStore,
		Invitations:    inviteService,
		Metrics:        m,
		Logger:         logger,
		DBPool:         pool,
		SigninLimiter:  signinLimiter,
		SecureCookies:  cfg.Auth.SecureCookies,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-sigCh
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	return srv.Shutdown(shutdownCtx)
}

// instrumentedNotifier counts delivery attempts around the wrapped notifier.
type instrumentedNotifier struct {
	next    notify.Notifier
	metrics *metrics.Metrics
}

func (n instrumentedNotifier) Send(ctx context.Context, msg notify.Message) error {
	if err := n.next.Send(ctx, msg); err != nil {
		n.metrics.IncNotification("error")
		return err
	}
	n.metrics.IncNotification("sent")
	return nil
}
