package main

import (
	"context"
	"database/sql"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"device_triggers/internal/config"
	"device_triggers/internal/engine"
	"device_triggers/internal/handlers"
	"device_triggers/internal/logger"
	"device_triggers/internal/notify"
	"device_triggers/internal/repository"
	"device_triggers/internal/repository/db"
	"device_triggers/internal/server"
	"device_triggers/internal/service"
	"device_triggers/internal/telemetry"
	"device_triggers/internal/transport/mqtt"

	"github.com/redis/go-redis/v9"
)

var version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to config.yml (default configs/config.yml)")
	flag.Parse()

	// load config.yml
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}

	// init logger
	log := logger.Init(cfg.Log.Level, cfg.Log.Format)
	defer func() { _ = log.Sync() }()

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing := initTracing(ctx, cfg, log)
	defer shutdownTracing()

	// open DB
	conn, err := openDB(cfg, log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()
	repos := repository.NewRepository(conn)

	// notification routing
	hub := notify.NewHub()
	sinks := notify.Fanout{notify.NewStoreSink(repos.Notifications), hub}
	if rdb := openRedis(ctx, cfg, log); rdb != nil {
		defer func() { _ = rdb.Close() }()
		sinks = append(sinks, notify.NewRedisSink(rdb, notify.RedisOptions{
			PushChannel: cfg.Redis.PushChannel,
			EmailQueue:  cfg.Redis.EmailQueue,
			FeedLength:  cfg.Redis.FeedLength,
		}))
	}

	// device broker
	var (
		broker    *mqtt.Client
		publisher engine.CommandPublisher
	)
	if cfg.MQTT.Enabled {
		broker, err = mqtt.Dial(mqtt.Options{
			BrokerURL:   cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			QoS:         cfg.MQTT.QoS,
			InsecureTLS: cfg.MQTT.InsecureTLS,
		}, log)
		if err != nil {
			log.Fatalw("failed to connect to mqtt broker", "err", err, "broker", cfg.MQTT.Broker)
		}
		defer broker.Close()
		publisher = broker
	}

	// wire dependencies
	eng := engine.New(repos.Subscriptions, sinks, publisher, log, engine.Options{
		TopicRoot: cfg.MQTT.TopicRoot,
		Timeout:   cfg.Engine.EvaluationTimeout,
		IOStates:  repos.IOStates,
		Alarms:    repos.Alarms,
	})
	monitor := service.NewHealthMonitor(repos.Subscriptions, service.HealthOptions{
		Schedule:    cfg.Health.Schedule,
		MaxTriggers: cfg.Health.MaxTriggers,
		Window:      cfg.Health.Window,
	}, log)
	services := service.NewService(repos, eng, monitor)
	apiHandler := handlers.NewHandler(services, hub, log)

	if err := monitor.Start(ctx); err != nil {
		log.Fatalw("failed to schedule health sweep", "err", err)
	}

	var ingestor *service.Ingestor
	if broker != nil {
		ingestor = service.NewIngestor(broker, eng, cfg.Engine.MaxInFlight, log)
		if err := ingestor.Start(ctx, eng.TopicRoot()); err != nil {
			log.Fatalw("failed to subscribe to device topics", "err", err)
		}
	}

	// start HTTP server
	srv := server.New(server.Options{})
	runHTTPServer(srv, cfg.Port, apiHandler, log)
	log.Infow("device_triggers_started", "version", version, "port", cfg.Port, "mqtt", cfg.MQTT.Enabled, "redis", cfg.Redis.Enabled)

	// graceful shutdown
	waitForShutdown(cancel, srv, ingestor, log)
}

// openDB initializes the SQLite database using configuration.
func openDB(cfg *config.Config, log *logger.Logger) (*sql.DB, error) {
	path := cfg.DB.Path
	if path == "" {
		log.Infow("db.path not set in config; using default file", "default", "triggers.db")
		path = "triggers.db"
	}
	return db.InitDB(path)
}

// openRedis returns nil when Redis is disabled.
func openRedis(ctx context.Context, cfg *config.Config, log *logger.Logger) *redis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		log.Fatalw("failed to connect to redis", "err", err, "addr", cfg.Redis.Addr)
	}
	return rdb
}

func initTracing(ctx context.Context, cfg *config.Config, log *logger.Logger) func() {
	if cfg.Tracing.Endpoint == "" {
		return func() {}
	}
	shutdown, err := telemetry.InitTraceProvider(ctx, cfg.Tracing.Endpoint, version)
	if err != nil {
		log.Errorw("tracing_disabled", "err", err)
		return func() {}
	}
	return func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			log.Errorw("tracing_shutdown_failed", "err", err)
		}
	}
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, ingestor *service.Ingestor, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop intake first, then cancel and drain in-flight passes
	if ingestor != nil {
		uctx, ucancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := ingestor.Stop(uctx); err != nil {
			log.Warnw("mqtt_unsubscribe_failed", "err", err)
		}
		ucancel()
	}
	cancel()
	if ingestor != nil {
		ingestor.Wait()
	}

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}
