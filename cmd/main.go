package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/arec-energy/pumpstream/internal/config"
	"github.com/arec-energy/pumpstream/internal/database"
	server "github.com/arec-energy/pumpstream/internal/grpc"
	"github.com/arec-energy/pumpstream/internal/ingest"
	"github.com/arec-energy/pumpstream/internal/live"
	"github.com/arec-energy/pumpstream/internal/metrics"
	"github.com/arec-energy/pumpstream/internal/transport"
)

// Command pumpstream ingests solar pump telemetry from a broker topic and
// serves it over gRPC.
//
// The service supports:
//   - MQTT or Kafka ingestion with reconnect and redelivery suppression
//   - TimescaleDB, SQLite, InfluxDB or in-memory storage
//   - Hourly, daily, ISO weekly and monthly aggregates
//   - Live sliding windows with daily energy and water counters
//   - Prometheus metrics
//
// Usage:
//
//	pumpstream [flags]
//
// The flags are:
//
//	-config string
//	      path to config file (default "config.yaml")
//	-port int
//	      gRPC server port, overrides server.port
func main() {
	// Parse command line flags
	flags := parseFlags()

	// Load configuration
	appConfig, err := config.Load(flags.ConfigPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if flags.Port > 0 {
		appConfig.Server.Port = flags.Port
	}

	// Initialize structured logger
	logger, err := config.NewLogger(appConfig.Logging)
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	loc, err := appConfig.Location()
	if err != nil {
		logger.Fatalf("Invalid timezone: %v", err)
	}

	// Create a context that will be canceled on shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, err := openRepository(ctx, appConfig.Storage, loc)
	if err != nil {
		logger.Fatalf("Failed to create repository: %v", err)
	}
	logger.WithField("driver", appConfig.Storage.Driver).Info("Storage ready")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	subscriber := newSubscriber(appConfig.Broker)

	ingestMetrics, err := ingest.NewMetrics(registry)
	if err != nil {
		logger.Fatalf("Failed to register ingest metrics: %v", err)
	}
	consumer, err := ingest.NewConsumer(subscriber, repo, ingest.Config{
		Topic:         appConfig.Broker.Topic,
		RetryInterval: appConfig.Broker.RetryInterval,
		DedupeSize:    appConfig.Broker.DedupeSize,
	}, logger, ingestMetrics)
	if err != nil {
		logger.Fatalf("Failed to create consumer: %v", err)
	}

	var opener server.SessionOpener
	if appConfig.Live.Enabled {
		opener = func(ctx context.Context) (*live.Session, error) {
			return live.Open(ctx, subscriber, appConfig.Broker.Topic, live.Options{
				WindowSize:   appConfig.Live.WindowSize,
				Location:     loc,
				RolloverSpec: appConfig.Live.RolloverSpec,
				Logger:       logger,
			})
		}
	}

	// Create and setup gRPC server
	srv, err := server.SetupServer(repo, opener, server.ServerConfig{
		RateLimit:      appConfig.Server.RateLimit,
		RateLimitBurst: appConfig.Server.RateLimitBurst,
	}, logger, registry)
	if err != nil {
		logger.Fatalf("Failed to setup server: %v", err)
	}

	// Start listening
	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", appConfig.Server.Host, appConfig.Server.Port))
	if err != nil {
		logger.Fatalf("Failed to listen: %v", err)
	}

	// Start background services
	errChan := make(chan error, 2)

	if err := consumer.Start(ctx); err != nil {
		logger.Fatalf("Failed to start consumer: %v", err)
	}

	var metricsServer *http.Server
	if appConfig.Metrics.Enabled {
		metricsServer = &http.Server{
			Addr: fmt.Sprintf("%s:%d", appConfig.Metrics.Host, appConfig.Metrics.Port),
			Handler: metrics.NewRouter(registry, func() error {
				if !consumer.Connected() {
					return errors.New("broker not connected")
				}
				return nil
			}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.WithField("addr", metricsServer.Addr).Info("Starting metrics server")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	// Start gRPC server
	logger.WithFields(logrus.Fields{
		"port": appConfig.Server.Port,
	}).Info("Starting gRPC server")

	go func() {
		if err := srv.Serve(lis); err != nil {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	// Handle shutdown gracefully
	handleShutdown(ctx, errChan, logger)
	shutdown(srv, consumer, metricsServer, repo, logger)
}

type Flags struct {
	ConfigPath string
	Port       int
}

func parseFlags() *Flags {
	flags := &Flags{}

	flag.StringVar(&flags.ConfigPath, "config", "config.yaml", "Path to the configuration file")
	flag.IntVar(&flags.Port, "port", 0, "The gRPC server port (overrides server.port)")

	flag.Parse()

	return flags
}

// handleShutdown blocks until a signal arrives, ctx ends or a background
// service fails.
func handleShutdown(ctx context.Context, errChan <-chan error, logger *logrus.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		logger.Info("Context canceled, initiating shutdown")
	case sig := <-sigChan:
		logger.Infof("Received signal %v, initiating shutdown", sig)
	case err := <-errChan:
		logger.WithError(err).Error("Service error, initiating shutdown")
	}
}

func shutdown(
	srv *server.Server,
	consumer *ingest.Consumer,
	metricsServer *http.Server,
	repo database.TimeSeriesRepository,
	logger *logrus.Logger,
) {
	logger.Info("Gracefully stopping server...")
	stopped := make(chan struct{})
	go func() {
		srv.Shutdown()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(10 * time.Second):
		logger.Warn("Graceful stop timed out, closing open streams")
		srv.Stop()
	}
	logger.Info("Server stopped")

	consumer.Stop()

	if metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(ctx); err != nil {
			logger.WithError(err).Warn("Metrics server shutdown")
		}
	}

	// Clean up the repository
	if err := repo.Close(); err != nil {
		logger.WithError(err).Warn("Repository close")
	}
}

func openRepository(ctx context.Context, cfg config.StorageConfig, loc *time.Location) (database.TimeSeriesRepository, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return database.NewPostgresRepo(cfg.Database.ConnString(), database.PostgresOptions{
			Location:       loc,
			MaxConnections: cfg.Database.MaxConnections,
			Hypertable:     cfg.Database.Hypertable,
		})
	case config.DriverSQLite:
		return database.NewSQLiteRepo(cfg.SQLite.Path, loc)
	case config.DriverInfluxDB:
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return database.NewInfluxRepo(ctx, database.InfluxOptions{
			URL:         cfg.InfluxDB.URL,
			Org:         cfg.InfluxDB.Org,
			Token:       cfg.InfluxDB.Token,
			Bucket:      cfg.InfluxDB.Bucket,
			Measurement: cfg.InfluxDB.Measurement,
			Location:    loc,
		})
	case config.DriverMemory:
		return database.NewMemoryRepo(loc), nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

func newSubscriber(cfg config.BrokerConfig) transport.Subscriber {
	if cfg.Transport == config.TransportKafka {
		return transport.NewKafkaSubscriber(transport.KafkaConfig{
			Brokers:   cfg.Brokers,
			Partition: cfg.Partition,
			ClientID:  cfg.ClientID,
			Buffer:    cfg.Buffer,
		})
	}
	return transport.NewMQTTSubscriber(transport.MQTTConfig{
		BrokerURL:      cfg.URL,
		Username:       cfg.Username,
		Password:       cfg.Password,
		ClientID:       cfg.ClientID,
		QoS:            cfg.QoS,
		ConnectTimeout: cfg.ConnectTimeout,
		Buffer:         cfg.Buffer,
	})
}
