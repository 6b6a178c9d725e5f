package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/sensorgrid/devicehub-backend/api/routes"
	"github.com/sensorgrid/devicehub-backend/internal/auth"
	"github.com/sensorgrid/devicehub-backend/internal/devices"
	"github.com/sensorgrid/devicehub-backend/internal/loginlogs"
	"github.com/sensorgrid/devicehub-backend/internal/otp"
	"github.com/sensorgrid/devicehub-backend/internal/sharing"
	"github.com/sensorgrid/devicehub-backend/internal/stats"
	"github.com/sensorgrid/devicehub-backend/internal/telemetry"
	"github.com/sensorgrid/devicehub-backend/internal/users"
	"github.com/sensorgrid/devicehub-backend/pkg/auth/session"
	"github.com/sensorgrid/devicehub-backend/pkg/config"
	"github.com/sensorgrid/devicehub-backend/pkg/db"
	"github.com/sensorgrid/devicehub-backend/pkg/logger"
	"github.com/sensorgrid/devicehub-backend/pkg/metrics"
	"github.com/sensorgrid/devicehub-backend/pkg/migrate"
	"github.com/sensorgrid/devicehub-backend/pkg/qr"
	"github.com/sensorgrid/devicehub-backend/pkg/redis"
	"github.com/sensorgrid/devicehub-backend/pkg/sms"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	var sender sms.Sender = sms.LogSender{Logger: logg}
	if cfg.SMS.Enabled() {
		client, err := sms.NewClient(cfg.SMS)
		if err != nil {
			logg.Error(context.Background(), "failed to create sms client", err)
			os.Exit(1)
		}
		sender = client
	} else {
		logg.Warn(context.Background(), "sms gateway not configured, otp codes are only logged")
	}
	dispatcher, err := sms.NewDispatcher(sms.DispatcherParams{
		Sender:  sender,
		Logger:  logg,
		Workers: cfg.SMS.Workers,
		Timeout: cfg.SMS.Timeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create sms dispatcher", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	domainMetrics := metrics.NewDomainMetrics(registry)
	httpMetrics := metrics.NewHTTPMetrics(registry)

	deps, err := buildDependencies(cfg, logg, dbClient, redisClient, sessionManager, dispatcher, domainMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}
	deps.HTTPMetrics = httpMetrics
	deps.Gatherer = registry

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exitCode := 0
	select {
	case err := <-serverErr:
		if err != nil {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			exitCode = 1
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var shutdownErr error
	shutdownErr = multierr.Append(shutdownErr, server.Shutdown(shutdownCtx))
	shutdownErr = multierr.Append(shutdownErr, dispatcher.Close(shutdownCtx))
	shutdownErr = multierr.Append(shutdownErr, redisClient.Close())
	shutdownErr = multierr.Append(shutdownErr, dbClient.Close())
	if shutdownErr != nil {
		logg.Error(ctx, "api shutdown incomplete", shutdownErr)
		exitCode = 1
	} else {
		logg.Info(ctx, "api server stopped")
	}
	os.Exit(exitCode)
}

func buildDependencies(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	sessionManager *session.Manager,
	dispatcher *sms.Dispatcher,
	domainMetrics *metrics.DomainMetrics,
) (routes.Dependencies, error) {
	conn := dbClient.DB()
	usersRepo := users.NewRepository(conn)
	sharingRepo := sharing.NewRepository(conn)
	loginRepo := loginlogs.NewRepository(conn)

	usersService, err := users.NewService(usersRepo)
	if err != nil {
		return routes.Dependencies{}, err
	}

	otpService, err := otp.NewService(otp.ServiceParams{
		Repo:        otp.NewRepository(conn),
		Users:       usersRepo,
		Queue:       dispatcher,
		Config:      cfg.OTP,
		SMSTemplate: cfg.SMS.Template,
		Metrics:     domainMetrics,
		Logger:      logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	loginService, err := loginlogs.NewService(loginRepo)
	if err != nil {
		return routes.Dependencies{}, err
	}

	authService, err := auth.NewService(auth.ServiceParams{
		Users:          usersRepo,
		OTP:            otpService,
		LoginLogs:      loginService,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		Logger:         logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	devicesService, err := devices.NewService(devices.ServiceParams{
		Repo:    devices.NewRepository(conn),
		Tx:      dbClient,
		Owners:  usersRepo,
		Grants:  sharingRepo,
		QR:      qr.NewPNGEncoder(cfg.QR.SizePx),
		Codes:   devices.RandomCodes,
		Metrics: domainMetrics,
		Logger:  logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	sharingService, err := sharing.NewService(sharing.ServiceParams{
		Repo:    sharingRepo,
		Tx:      dbClient,
		Metrics: domainMetrics,
		Logger:  logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	telemetryService, err := telemetry.NewService(telemetry.NewRepository(conn), devicesService)
	if err != nil {
		return routes.Dependencies{}, err
	}

	statsService, err := stats.NewService(stats.ServiceParams{
		Users:   usersRepo,
		Devices: devicesService,
		Logins:  loginService,
		OTP:     otpService,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	return routes.Dependencies{
		DB:          dbClient,
		Redis:       redisClient,
		RateLimiter: redisClient,
		Sessions:    sessionManager,
		UserLookup:  usersRepo,
		Auth:        authService,
		OTP:         otpService,
		Users:       usersService,
		Devices:     devicesService,
		Sharing:     sharingService,
		Telemetry:   telemetryService,
		LoginLogs:   loginService,
		Stats:       statsService,
	}, nil
}
