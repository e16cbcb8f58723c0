package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"registrar/internal/auth"
	authhandler "registrar/internal/auth/handler"
	authmetrics "registrar/internal/auth/metrics"
	"registrar/internal/auth/store/session"
	"registrar/internal/auth/token"
	"registrar/internal/catalog"
	cataloghandler "registrar/internal/catalog/handler"
	catalogmetrics "registrar/internal/catalog/metrics"
	catalogstore "registrar/internal/catalog/store"
	"registrar/internal/directory"
	dirhandler "registrar/internal/directory/handler"
	dirstore "registrar/internal/directory/store"
	"registrar/internal/enrollment"
	enrollhandler "registrar/internal/enrollment/handler"
	enrollmetrics "registrar/internal/enrollment/metrics"
	enrollstore "registrar/internal/enrollment/store"
	"registrar/internal/platform/config"
	"registrar/internal/platform/httpserver"
	"registrar/internal/platform/logger"
	"registrar/internal/platform/postgres"
	platformredis "registrar/internal/platform/redis"
	"registrar/pkg/platform/audit"
	auditkafka "registrar/pkg/platform/audit/store/kafka"
	auditmem "registrar/pkg/platform/audit/store/memory"
	auditworker "registrar/pkg/platform/audit/worker"
	mwauth "registrar/pkg/platform/middleware/auth"
	"registrar/pkg/platform/middleware/request"
	"registrar/pkg/platform/middleware/requesttime"
	"registrar/pkg/platform/tx"
)

// sessionStore is what main needs from a session backend: the auth service's
// write surface plus the middleware's liveness check.
type sessionStore interface {
	auth.SessionStore
	mwauth.SessionChecker
}

// main wires the stores, services, and HTTP surface together and owns the
// process lifecycle. Business logic lives in the internal services.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("open postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	directoryStore := dirstore.NewPostgres(db)
	enrollmentStore := enrollstore.NewPostgres(db)
	catalogStore := catalogstore.NewPostgres(db)
	runner := tx.NewSQLRunner(db)

	var sessions sessionStore = session.New()
	if cfg.Redis.URL != "" {
		client, err := platformredis.New(cfg.Redis)
		if err != nil {
			log.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		sessions = session.NewRedis(client.Client)
		log.Info("sessions backed by redis")
	}

	// The audit trail lands in Kafka when brokers are configured; otherwise
	// events stay in the local store. Either way services publish through a
	// buffered inbox so requests never block on the sink.
	var sink audit.Appender = auditmem.NewInMemoryStore()
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaSink, err := auditkafka.New(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Error("connect kafka", "error", err)
			os.Exit(1)
		}
		defer kafkaSink.Close()
		sink = kafkaSink
		log.Info("audit trail backed by kafka", "topic", cfg.Kafka.Topic)
	}
	inbox := auditworker.NewInbox(256)
	worker := auditworker.New(sink, inbox.Events(), log)
	publisher := audit.NewPublisher(inbox)

	tokens := token.NewService(cfg.JWTSigningKey, "registrar")

	authService := auth.NewService(directoryStore, sessions, tokens, runner,
		auth.WithLogger(log),
		auth.WithMetrics(authmetrics.New()),
		auth.WithAuditor(publisher),
		auth.WithSessionTTL(cfg.SessionTTL),
	)
	enrollmentService := enrollment.NewService(directoryStore, enrollmentStore, runner,
		enrollment.WithLogger(log),
		enrollment.WithMetrics(enrollmetrics.New()),
		enrollment.WithAuditor(publisher),
	)
	catalogService := catalog.NewService(directoryStore, catalogStore, runner,
		catalog.WithLogger(log),
		catalog.WithMetrics(catalogmetrics.New()),
		catalog.WithAuditor(publisher),
	)
	directoryService := directory.NewService(directoryStore, runner,
		directory.WithLogger(log),
		directory.WithAuditor(publisher),
	)

	router := chi.NewRouter()
	router.Use(chimiddleware.RealIP)
	router.Use(request.RequestID)
	router.Use(requesttime.Middleware)
	router.Use(request.Recovery(log))
	router.Use(request.Logger(log))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	authhandler.New(authService, tokens, sessions, log).Register(router)
	dirhandler.New(directoryService, tokens, sessions, log).Register(router)
	cataloghandler.New(catalogService, directoryStore, tokens, sessions, log).Register(router)
	enrollhandler.New(enrollmentService, directoryStore, tokens, sessions, log).Register(router)

	srv := httpserver.New(cfg.Addr, router)
	metricsSrv := httpserver.New(cfg.MetricsAddr, promhttp.Handler())

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("starting registrar", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("serving metrics", "addr", cfg.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown server", "error", err)
		}
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown metrics server", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("registrar stopped")
}
