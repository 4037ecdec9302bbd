// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/craftsmenplatform/craftsmen/internal/auth"
	authpg "github.com/craftsmenplatform/craftsmen/internal/auth/postgres"
	"github.com/craftsmenplatform/craftsmen/internal/core"
	"github.com/craftsmenplatform/craftsmen/internal/httpapi"
	"github.com/craftsmenplatform/craftsmen/internal/httpserver"
	"github.com/craftsmenplatform/craftsmen/internal/logging"
	"github.com/craftsmenplatform/craftsmen/internal/notify"
	"github.com/craftsmenplatform/craftsmen/internal/observability"
	"github.com/craftsmenplatform/craftsmen/internal/project"
	projectpg "github.com/craftsmenplatform/craftsmen/internal/project/postgres"
	"github.com/craftsmenplatform/craftsmen/internal/store"
	"github.com/craftsmenplatform/craftsmen/internal/xdg"
	"github.com/craftsmenplatform/craftsmen/pkg/errutil"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long: `Start the HTTP API together with the metrics and health endpoints.
Domain events are recorded in the event log, counted in metrics, turned
into welcome mail and, when brokers are configured, published to Kafka.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(xdg.ConfigFile(configFile), cmd.Flags())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, cmd, nil)
		},
	}

	cmd.Flags().String("addr", "", "API listen address (default :8080)")
	cmd.Flags().String("metrics-addr", "", "metrics/health HTTP address (default 127.0.0.1:9100)")
	cmd.Flags().StringSlice("kafka-brokers", nil, "Kafka brokers for event publishing (empty = disabled)")

	return cmd
}

// runServe wires every component and serves until ctx is cancelled or a
// server fails.
func runServe(ctx context.Context, cfg *Config, cmd *cobra.Command, deps *ServeDeps) error {
	deps = deps.withDefaults()

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.SetDefault(logging.Options{
		Service: "craftsmen",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
		Writer:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}

	logger.Info("starting craftsmen", "addr", cfg.HTTP.Addr, "version", version)

	pool, err := deps.PoolOpener(ctx, store.PoolConfig{
		URL:             cfg.Database.URL,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		ConnectTimeout:  cfg.Database.ConnectTimeout,
	})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()
	logger.Info("connected to database")

	var obsServer *observability.Server
	var metrics *observability.Metrics
	if cfg.Metrics.Addr != "" {
		obsServer = observability.NewServer(cfg.Metrics.Addr, pool.Ping, logger)
		metrics = obsServer.Metrics()
	} else {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
	}

	dispatcher := core.NewDispatcher(logger)
	dispatcher.OnError(metrics.SinkFailed)
	dispatcher.Subscribe("eventlog", store.NewEventLog(pool))
	dispatcher.Subscribe("metrics", metrics.EventSink())
	dispatcher.Subscribe("welcome-mail", notify.NewWelcomeSink(notify.NewLogMailer(logger), logger))

	if len(cfg.Kafka.Brokers) > 0 {
		kcfg := cfg.KafkaSettings()
		publisher := notify.NewKafkaPublisher(deps.KafkaWriterFactory(kcfg), kcfg, logger)
		defer func() {
			if closeErr := publisher.Close(); closeErr != nil {
				errutil.LogError(logger, "closing kafka publisher", closeErr)
			}
		}()
		dispatcher.Subscribe("kafka", publisher)
		logger.Info("kafka publishing enabled", "brokers", cfg.Kafka.Brokers, "topic_prefix", kcfg.TopicPrefix)
	}

	events := core.NewAsyncDispatcher(dispatcher, cfg.Events.QueueCapacity)
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if closeErr := events.Close(drainCtx); closeErr != nil {
			errutil.LogError(logger, "draining event queue", closeErr)
		}
	}()

	policy := cfg.Policy()
	issuer, err := auth.NewJWTIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer, policy.AccessTokenTTL)
	if err != nil {
		return err
	}

	authSvc, err := auth.NewService(auth.ServiceConfig{
		Accounts: authpg.NewAccountRepository(pool, events),
		Hasher:   auth.NewArgon2idHasher(),
		Tokens:   issuer,
		Policy:   policy,
		Retry:    cfg.RetryPolicy(),
		Logger:   logger,
		Observer: metrics,
	})
	if err != nil {
		return err
	}

	projectSvc, err := project.NewService(project.ServiceConfig{
		Projects: projectpg.NewProjectRepository(pool, events),
		Retry:    cfg.RetryPolicy(),
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	api, err := httpapi.New(httpapi.Config{
		AuthRateLimit: httpapi.RateLimitConfig{
			RPS:   cfg.HTTP.RateLimitRPS,
			Burst: cfg.HTTP.RateLimitBurst,
		},
		TrustProxy:     cfg.HTTP.TrustProxy,
		RequestTimeout: cfg.HTTP.RequestTimeout,
	}, httpapi.Deps{
		Auth:     authSvc,
		Projects: projectSvc,
		Tokens:   issuer,
		Observer: metrics,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	servers := []namedServer{{"api", httpserver.New("api", cfg.HTTP.Addr, api.Handler(), logger)}}
	if obsServer != nil {
		servers = append(servers, namedServer{"observability", obsServer})
	}

	var started []namedServer
	defer func() { stopServers(logger, cfg, started) }()
	for _, s := range servers {
		errCh, startErr := s.server.Start()
		if startErr != nil {
			return startErr
		}
		started = append(started, s)
		go monitorServerErrors(ctx, cancel, logger, errCh, s.name)
	}

	if deps.Started != nil {
		deps.Started(servers[0].server.Addr())
	}
	cmd.Println("Craftsmen server started")

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

type namedServer struct {
	name   string
	server Server
}

// stopServers stops servers in reverse start order.
func stopServers(logger *slog.Logger, cfg *Config, servers []namedServer) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	for i := len(servers) - 1; i >= 0; i-- {
		if err := servers[i].server.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping server", "server", servers[i].name, "error", err)
		}
	}
	logger.Info("shutdown complete")
}

// monitorServerErrors cancels ctx when a server reports an error. It exits
// when the channel closes or ctx is done.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, logger *slog.Logger, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			logger.Error("server error, triggering shutdown", "server", serverName, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
