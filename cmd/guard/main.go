package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/redis/go-redis/v9"

	"github.com/cantolico/guard/internal/audit"
	"github.com/cantolico/guard/internal/config"
	"github.com/cantolico/guard/internal/dispatch"
	"github.com/cantolico/guard/internal/escalation"
	"github.com/cantolico/guard/internal/handlers"
	"github.com/cantolico/guard/internal/logging"
	"github.com/cantolico/guard/internal/loginmon"
	"github.com/cantolico/guard/internal/middleware"
	"github.com/cantolico/guard/internal/notification"
	"github.com/cantolico/guard/internal/repository"
	"github.com/cantolico/guard/internal/server"
	"github.com/cantolico/guard/internal/service"
	"github.com/cantolico/guard/pkg/tokens"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Auth.TokenSecret == "" {
		log.Fatal("auth.token_secret must be set")
	}

	logger := logging.New(logging.ParseLevel(cfg.Log.Level), cfg.Log.Format)
	logging.SetDefault(logger)

	connString := cfg.Database.Postgres.ConnString()

	log.Println("Running database migrations...")
	m, err := migrate.New("file://migrations", connString)
	if err != nil {
		log.Fatalf("Failed to initialize migrations: %v", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	repo, err := repository.NewPostgresRepository(context.Background(), connString)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer repo.Close()

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		log.Fatalf("Failed to parse Redis URL: %v", err)
	}
	redisOpts.MaxRetries = cfg.Redis.MaxRetries
	redisOpts.PoolSize = cfg.Redis.PoolSize
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	channel := buildNotificationChannel(cfg, logger)
	dispatcher, cleanup := buildDispatcher(cfg, channel, logger)
	defer cleanup()

	escalator := escalation.NewEscalator(redisClient, repo, dispatcher, logger, escalation.Config{
		Window:          cfg.Escalation.Window,
		RepeatThreshold: cfg.Escalation.RepeatThreshold,
	})
	writer := audit.NewWriter(repo, escalator, logger, audit.Config{
		WriteTimeout: cfg.Audit.WriteTimeout,
		RetryBackoff: cfg.Audit.RetryBackoff,
	})
	monitor := loginmon.NewMonitor(redisClient, writer, logger, loginmon.Config{
		FailureWindow:    cfg.LoginMonitor.FailureWindow,
		FailureThreshold: cfg.LoginMonitor.FailureThreshold,
		LockoutDuration:  cfg.LoginMonitor.LockoutDuration,
	})

	tg := tokens.NewTokenGenerator(cfg.Auth.TokenSecret, cfg.Auth.AccessTTL)
	authSvc := service.NewAuthService(repo, tg, monitor, writer, logger)
	guardSvc := service.NewGuardService(repo, logger)

	handler := handlers.NewHandler(authSvc, guardSvc, writer, logger)
	guard := middleware.NewGuard(writer)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.NewRouter(handler, tg, guard),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Printf("Guard service listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped gracefully")
}

// buildNotificationChannel assembles the alert delivery channel from config.
// With no SMTP host or webhook URL configured, alerts still land in the
// structured log.
func buildNotificationChannel(cfg *config.Config, logger *logging.Logger) notification.Channel {
	var channels []notification.Channel

	if cfg.Notify.SMTP.Host != "" && len(cfg.Notify.SMTP.Recipients) > 0 {
		channels = append(channels, notification.NewEmailChannel(
			cfg.Notify.SMTP.Host,
			cfg.Notify.SMTP.Port,
			cfg.Notify.SMTP.From,
			cfg.Notify.SMTP.Username,
			cfg.Notify.SMTP.Password,
			cfg.Notify.SMTP.Recipients,
		))
	}
	if cfg.Notify.WebhookURL != "" {
		channels = append(channels, notification.NewWebhookChannel(cfg.Notify.WebhookURL, cfg.Notify.Timeout))
	}
	channels = append(channels, notification.NewLogChannel(log.Printf))

	if len(channels) == 1 {
		return channels[0]
	}
	return notification.NewMultiChannel(channels...)
}

func buildDispatcher(cfg *config.Config, channel notification.Channel, logger *logging.Logger) (dispatch.Dispatcher, func()) {
	if !cfg.NATS.Enabled {
		d := dispatch.NewAsyncDispatcher(channel, cfg.Notify.Timeout, logger)
		return d, d.Close
	}

	conn, err := dispatch.Connect(cfg.NATS.URL, "cantolico-guard")
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}

	sub := dispatch.NewSubscriber(conn, cfg.NATS.Subject, channel, cfg.Notify.Timeout, logger)
	if err := sub.Start(); err != nil {
		log.Fatalf("Failed to subscribe to NATS: %v", err)
	}

	d := dispatch.NewNATSDispatcher(conn, cfg.NATS.Subject, logger)
	return d, func() {
		sub.Stop()
		d.Close()
		conn.Close()
	}
}
