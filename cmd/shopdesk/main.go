// Shopdesk Core - Customer Management Platform
//
// This is the main entry point for the Shopdesk Core application.
// Shopdesk is the API gateway for a small-business front office:
//   - Customer records keyed by phone number
//   - Bookings with working-hours slot management
//   - Document submissions with versioned object storage
//   - Two-way customer messaging via an MQTT SMS gateway
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/shopdesk/shopdesk-core/migrations"

	"github.com/shopdesk/shopdesk-core/internal/activity"
	"github.com/shopdesk/shopdesk-core/internal/api"
	"github.com/shopdesk/shopdesk-core/internal/audit"
	"github.com/shopdesk/shopdesk-core/internal/auth"
	"github.com/shopdesk/shopdesk-core/internal/booking"
	"github.com/shopdesk/shopdesk-core/internal/customer"
	"github.com/shopdesk/shopdesk-core/internal/dashboard"
	"github.com/shopdesk/shopdesk-core/internal/document"
	"github.com/shopdesk/shopdesk-core/internal/infrastructure/config"
	"github.com/shopdesk/shopdesk-core/internal/infrastructure/database"
	"github.com/shopdesk/shopdesk-core/internal/infrastructure/influxdb"
	"github.com/shopdesk/shopdesk-core/internal/infrastructure/logging"
	"github.com/shopdesk/shopdesk-core/internal/infrastructure/mqtt"
	"github.com/shopdesk/shopdesk-core/internal/infrastructure/storage"
	"github.com/shopdesk/shopdesk-core/internal/message"
	"github.com/shopdesk/shopdesk-core/internal/settings"
)

// Version information, set at build time:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// closeOnExit wraps a Close for deferral: log the shutdown step, log any
// error, never fail the exit path.
func closeOnExit(log *logging.Logger, name string, closeFn func() error) func() {
	return func() {
		log.Info("closing " + name)
		if err := closeFn(); err != nil {
			log.Error("error closing "+name, "error", err)
		}
	}
}

// run holds the startup sequence, separated from main for testability.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	// Default logger carries us until config is loaded.
	log := logging.Default()
	log.Info("starting Shopdesk Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer closeOnExit(log, "database", db.Close)()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	userRepo := auth.NewUserRepository(db.DB)
	tokenRepo := auth.NewTokenRepository(db.DB)
	customerRepo := customer.NewRepository(db.DB)
	bookingRepo := booking.NewRepository(db.DB)
	documentRepo := document.NewSQLiteRepository(db.DB)
	messageRepo := message.NewRepository(db.DB)
	activityRepo := activity.NewRepository(db.DB)
	serviceRepo := settings.NewServiceRepository(db.DB)
	auditRepo := audit.NewSQLiteRepository(db.DB)
	settingsStore := settings.NewStore(db.DB)

	// First-boot seeding: the initial admin account, then default settings
	// (working hours, slot duration, system prompt).
	if _, seedErr := auth.SeedAdmin(ctx, userRepo, log.Logger); seedErr != nil {
		return fmt.Errorf("seeding admin account: %w", seedErr)
	}
	if seedErr := settingsStore.SeedDefaults(ctx, log.Logger); seedErr != nil {
		return fmt.Errorf("seeding default settings: %w", seedErr)
	}

	// Object storage is required: document sync depends on it.
	store, err := storage.Connect(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("connecting to object storage: %w", err)
	}
	log.Info("object storage connected",
		"endpoint", cfg.Storage.Endpoint,
		"bucket", cfg.Storage.Bucket,
	)

	// MQTT is optional: without it, inbound messaging is unavailable.
	mqttClient, err := connectMQTT(cfg.MQTT, log)
	if err != nil {
		return err
	}
	if mqttClient != nil {
		defer closeOnExit(log, "MQTT connection", mqttClient.Close)()
	}

	// InfluxDB is optional: request and booking telemetry.
	influxClient, err := connectInflux(cfg.InfluxDB, log)
	if err != nil {
		return err
	}
	if influxClient != nil {
		defer closeOnExit(log, "InfluxDB connection", influxClient.Close)()
	}

	// WebSocket hub is shared: the API serves connections, the domain
	// services broadcast events through it.
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	// Typed nils must not reach the services' optional interfaces
	var bookingMetrics booking.MetricsWriter
	if influxClient != nil {
		bookingMetrics = influxClient
	}
	var messageMQTT message.MQTTClient
	if mqttClient != nil {
		messageMQTT = mqttClient
	}

	bookingSvc := booking.NewService(bookingRepo, customerRepo, settingsStore, activityRepo, hub, bookingMetrics, log)
	messageSvc := message.NewService(messageRepo, messageMQTT, hub, activityRepo, log)
	syncSvc := document.NewSyncService(documentRepo, store, log)
	documentSvc := document.NewService(documentRepo, store, syncSvc, hub, activityRepo, log)
	dashboardSvc := dashboard.NewService(customerRepo, bookingRepo, activityRepo)

	// Subscribe to inbound customer messages
	if startErr := messageSvc.Start(ctx); startErr != nil {
		return fmt.Errorf("starting message service: %w", startErr)
	}

	server, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Logger:      log,
		Version:     version,
		UserRepo:    userRepo,
		TokenRepo:   tokenRepo,
		Customers:   customerRepo,
		Bookings:    bookingSvc,
		Documents:   documentSvc,
		Messages:    messageSvc,
		Activities:  activityRepo,
		Dashboard:   dashboardSvc,
		Services:    serviceRepo,
		Settings:    settingsStore,
		AuditRepo:   auditRepo,
		DB:          db,
		Storage:     store,
		MQTT:        mqttClient,
		Metrics:     influxClient,
		ExternalHub: hub,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer closeOnExit(log, "API server", server.Close)()
	log.Info("API server started", "address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))

	if err := healthCheck(ctx, db, store, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred closes run in reverse order: API server, InfluxDB, MQTT,
	// then the database.

	log.Info("Shopdesk Core stopped")
	return nil
}

// connectMQTT connects to the broker when messaging is enabled, returning
// nil without error when it is not.
func connectMQTT(cfg config.MQTTConfig, log *logging.Logger) (*mqtt.Client, error) {
	if !cfg.Enabled {
		log.Info("MQTT disabled, inbound messaging unavailable")
		return nil, nil
	}

	client, err := mqtt.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
		"client_id", cfg.Broker.ClientID,
	)

	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	return client, nil
}

// connectInflux connects to InfluxDB when telemetry is enabled, returning
// nil without error when it is not.
func connectInflux(cfg config.InfluxDBConfig, log *logging.Logger) (*influxdb.Client, error) {
	if !cfg.Enabled {
		log.Info("InfluxDB disabled")
		return nil, nil
	}

	client, err := influxdb.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	log.Info("InfluxDB connected",
		"url", cfg.URL,
		"org", cfg.Org,
		"bucket", cfg.Bucket,
	)

	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})

	return client, nil
}

// getConfigPath returns SHOPDESK_CONFIG when set, the default otherwise.
func getConfigPath() string {
	if path := os.Getenv("SHOPDESK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// mqttClient and influxClient may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, store *storage.Client, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := store.HealthCheck(ctx); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
