package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"scheduleit/backend/internal/cache"
	"scheduleit/backend/internal/config"
	"scheduleit/backend/internal/events"
	"scheduleit/backend/internal/events/amqpsink"
	"scheduleit/backend/internal/events/kafkasink"
	"scheduleit/backend/internal/observability"
	"scheduleit/backend/internal/service/appointments"
	"scheduleit/backend/internal/service/customers"
	"scheduleit/backend/internal/store/sqlstore"
	grpcTransport "scheduleit/backend/internal/transport/grpc"
	httpTransport "scheduleit/backend/internal/transport/http"
)

const serviceName = "scheduleit-server"

func main() {
	log := observability.NewLogger(os.Stdout, serviceName, "info")
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log = observability.NewLogger(os.Stdout, serviceName, cfg.LogLevel)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped with error", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting",
		slog.String("grpc_addr", cfg.GRPCAddr()),
		slog.String("http_addr", cfg.HTTPAddr),
		slog.String("log_level", cfg.LogLevel),
		slog.Any("events_drivers", cfg.EventsDrivers),
	)

	shutdownTracing, err := observability.SetupTracing(ctx, observability.TracingConfig{
		Enabled:      cfg.OTelEnabled,
		ServiceName:  serviceName,
		OTLPEndpoint: cfg.OTelEndpoint,
		SampleRatio:  cfg.OTelSampleRatio,
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("tracer shutdown failed", slog.Any("err", err))
		}
	}()

	log.Info("connecting to database", databaseLogArgs(cfg.DatabaseDriver, cfg.DatabaseURL)...)
	db, err := sqlstore.Open(cfg.DatabaseDriver, cfg.DatabaseURL, sqlstore.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseDriver, cfg.DatabaseURL)...)
		log.Error("database connection failed", args...)
		return err
	}
	defer func() {
		if err := sqlstore.Close(db); err != nil {
			log.Warn("database close failed", slog.Any("err", err))
		}
	}()

	if cfg.DatabaseAutoMigrate {
		if err := sqlstore.CreateSchema(ctx, db); err != nil {
			log.Error("schema setup failed", slog.Any("err", err))
			return err
		}
	}
	repo := sqlstore.NewRepo(db)

	readyChecks := []httpTransport.ReadyCheck{{Name: "database", Check: repo.Ping}}

	sink, sinkChecks, closeSinks, err := openSinks(cfg, log)
	defer closeSinks()
	if err != nil {
		log.Error("event sink setup failed", slog.Any("err", err), slog.Any("events_drivers", cfg.EventsDrivers))
		return err
	}
	readyChecks = append(readyChecks, sinkChecks...)

	var (
		statsCache  cache.Cache = cache.NewLRU(cfg.StatsCacheSize, cfg.StatsCacheTTL)
		rateLimiter *httpTransport.RateLimiter
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() {
			_ = rdb.Close()
		}()
		statsCache = cache.NewRedis(rdb, "", cfg.StatsCacheTTL)
		rateLimiter = httpTransport.NewRateLimiter(rdb, cfg.RateLimit, cfg.RateLimitWindow, "")
		readyChecks = append(readyChecks, httpTransport.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}

	apptSvc := appointments.NewService(repo, sink,
		appointments.WithLogger(log),
		appointments.WithStatsCache(statsCache),
		appointments.WithUpcomingLimit(cfg.StatsUpcomingLimit),
	)
	custSvc := customers.NewService(repo, log)

	grpcServer := grpcTransport.NewServer(cfg.GRPCRequestTimeout)
	grpcTransport.RegisterAppointmentsServiceServer(grpcServer, grpcTransport.NewAppointmentsServer(apptSvc, log))
	grpcTransport.RegisterCustomersServiceServer(grpcServer, grpcTransport.NewCustomersServer(custSvc, log))

	gin.SetMode(gin.ReleaseMode)
	httpServer := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpTransport.NewRouter(httpTransport.RouterConfig{
			ServiceName:  serviceName,
			Appointments: apptSvc,
			Customers:    custSvc,
			Log:          log,
			CORSOrigins:  cfg.HTTPCORSOrigins,
			RateLimiter:  rateLimiter,
			ReadyChecks:  readyChecks,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		log.Error("grpc listen failed", slog.Any("err", err), slog.String("grpc_addr", cfg.GRPCAddr()))
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("grpc server started", slog.String("grpc_addr", cfg.GRPCAddr()))
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("http server started", slog.String("http_addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received")
		shutdownGRPC(log, grpcServer, cfg.ShutdownTimeout)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("http graceful shutdown failed", slog.Any("err", err))
		}
		return nil
	})

	return g.Wait()
}

// openSinks builds one sink per configured driver. The returned close func is
// safe to call even when err is non-nil.
func openSinks(cfg config.Config, log *slog.Logger) (events.Sink, []httpTransport.ReadyCheck, func(), error) {
	var (
		sinks   events.Multi
		checks  []httpTransport.ReadyCheck
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	for _, driver := range cfg.EventsDrivers {
		switch driver {
		case config.EventsKafka:
			s := kafkasink.New(kafkasink.Config{Brokers: cfg.KafkaBrokers, TopicPrefix: cfg.KafkaTopicPrefix}, log)
			sinks = append(sinks, s)
			checks = append(checks, httpTransport.ReadyCheck{Name: "kafka", Check: kafkasink.ReadyCheck(cfg.KafkaBrokers)})
			closers = append(closers, func() {
				if err := s.Close(); err != nil {
					log.Warn("kafka writer close failed", slog.Any("err", err))
				}
			})
		case config.EventsRabbitMQ:
			s, err := amqpsink.Dial(cfg.RabbitMQURL, cfg.RabbitMQExchange, log)
			if err != nil {
				return nil, nil, closeAll, err
			}
			sinks = append(sinks, s)
			checks = append(checks, httpTransport.ReadyCheck{Name: "rabbitmq", Check: s.Ready})
			closers = append(closers, func() {
				if err := s.Close(); err != nil {
					log.Warn("rabbitmq close failed", slog.Any("err", err))
				}
			})
		default:
			sinks = append(sinks, events.NewLogSink(log))
		}
	}

	if len(sinks) == 1 {
		return sinks[0], checks, closeAll, nil
	}
	return sinks, checks, closeAll, nil
}

func shutdownGRPC(log *slog.Logger, s *grpc.Server, timeout time.Duration) {
	log.Info("shutting down grpc server", slog.Duration("timeout", timeout))

	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		log.Info("grpc server stopped")
	case <-timer.C:
		log.Warn("grpc graceful shutdown timed out; forcing stop")
		s.Stop()
	}
}

func databaseLogArgs(driver, databaseURL string) []any {
	if strings.HasPrefix(strings.ToLower(driver), sqlstore.DriverSQLite) {
		return []any{slog.String("db_driver", driver)}
	}
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_driver", driver),
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
