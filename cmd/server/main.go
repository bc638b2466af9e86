package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"deliveryTracking/internal/auth"
	"deliveryTracking/internal/clock"
	"deliveryTracking/internal/config"
	"deliveryTracking/internal/db"
	"deliveryTracking/internal/eta"
	"deliveryTracking/internal/events"
	grpcserver "deliveryTracking/internal/grpc"
	"deliveryTracking/internal/httpapi"
	"deliveryTracking/internal/logger"
	"deliveryTracking/internal/metrics"
	"deliveryTracking/internal/presence"
	"deliveryTracking/internal/rooms"
	"deliveryTracking/internal/tracking"
	"deliveryTracking/internal/ws"
	"deliveryTracking/repository"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "delivery tracking: %v\n", err)
		os.Exit(1)
	}
}

func run() (err error) {
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(logger.Options{
		ServiceName: "delivery-tracking",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
	})
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	log.Info(log.WithField(ctx, "config", cfg.String()), "configuration loaded")

	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i]())
		}
	}()

	d, err := db.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	closers = append(closers, d.Close)
	if len(os.Args) > 1 && os.Args[1] == "rollback" {
		log.Info(ctx, "rolling back last migration")
		return db.RollbackLast(ctx, d)
	}
	store := repository.NewSQLStore(d)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewTrackingMetrics(reg)

	pub, err := events.NewPublisher(cfg.Events.Broker, cfg.Events.NATSURL, cfg.Events.KafkaBrokers)
	if err != nil {
		return fmt.Errorf("events publisher: %w", err)
	}
	emitter := events.NewEmitter(pub, cfg.Events.TopicPrefix)
	closers = append(closers, emitter.Close)

	checks := map[string]httpapi.Check{"db": d.PingContext}
	deps := tracking.Deps{
		Store: store,
		Rooms: rooms.NewRegistry(
			rooms.WithClientBuffer(cfg.Tracking.RoomBuffer),
			rooms.WithDropHandler(func(_ string, event string) { m.IncDropped(event) }),
		),
		Verifier: auth.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer),
		Clock:    clock.System(),
		Logger:   log,
		Metrics:  m,
		Events:   emitter,
	}
	deps.Estimator = eta.New(cfg.Tracking.AverageSpeedKmh, deps.Clock)

	var nearby presence.Index = presence.NewStoreIndex(store)
	if cfg.Redis.URL != "" {
		geo, err := presence.NewRedisGeoIndex(ctx, cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("redis geo index: %w", err)
		}
		closers = append(closers, geo.Close)
		checks["redis"] = geo.Ping
		deps.GeoIndex = geo
		nearby = geo
	}

	svc, err := tracking.New(deps)
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr: cfg.HTTP.Address,
		Handler: httpapi.NewRouter(httpapi.Deps{
			Tracking: svc,
			WS: ws.NewHandler(svc, log, ws.Options{
				WriteTimeout:    cfg.HTTP.WSWriteTimeout,
				PingInterval:    cfg.HTTP.WSPingInterval,
				MaxMessageBytes: cfg.HTTP.WSMaxMessageLen,
			}),
			Verifier: deps.Verifier,
			Nearby:   nearby,
			Drivers:  store,
			Checks:   checks,
			Gatherer: reg,
			Logger:   log,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	var grpcSrv *grpc.Server
	var grpcLis net.Listener
	if cfg.GRPC.Address != "" {
		grpcLis, err = net.Listen("tcp", cfg.GRPC.Address)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		grpcSrv = grpcserver.NewServer(svc, deps.Verifier, log)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(log.WithField(gctx, "address", cfg.HTTP.Address), "http server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if grpcSrv != nil {
		g.Go(func() error {
			log.Info(log.WithField(gctx, "address", cfg.GRPC.Address), "grpc server listening")
			if err := grpcSrv.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("grpc server: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info(ctx, "shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		var errs error
		errs = multierr.Append(errs, httpSrv.Shutdown(sctx))
		if grpcSrv != nil {
			errs = multierr.Append(errs, grpcserver.Shutdown(sctx, grpcSrv))
		}
		return errs
	})
	return g.Wait()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithDefaults()
	if err != nil {
		return nil, err
	}
	if cfg.App.IsProd() {
		return config.Load()
	}
	return cfg, nil
}
