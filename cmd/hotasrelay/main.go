// HOTAS Relay Core - rebind execution engine
//
// This is the main entry point for the HOTAS Relay Core service. It
// consumes physical controller snapshots from the polling agent over
// MQTT, evaluates the active rebind map at a fixed tick rate, and
// publishes the resulting virtual device state for the driver agent.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/hotas-relay-core/migrations"

	"github.com/nerrad567/hotas-relay-core/internal/api"
	"github.com/nerrad567/hotas-relay-core/internal/infrastructure/config"
	"github.com/nerrad567/hotas-relay-core/internal/infrastructure/database"
	"github.com/nerrad567/hotas-relay-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/hotas-relay-core/internal/infrastructure/logging"
	"github.com/nerrad567/hotas-relay-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/hotas-relay-core/internal/input"
	"github.com/nerrad567/hotas-relay-core/internal/output"
	"github.com/nerrad567/hotas-relay-core/internal/rebind"
	"github.com/nerrad567/hotas-relay-core/internal/runtime"
	"github.com/nerrad567/hotas-relay-core/internal/telemetry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error { //nolint:gocognit // Startup sequence: each component wired in dependency order
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting HOTAS Relay Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Connect to MQTT broker. In dev mode the service can run without a
	// broker (in-memory sink, no snapshot feed), so failure is tolerated.
	var mqttClient *mqtt.Client
	mqttClient, err = mqtt.Connect(cfg.MQTT)
	if err != nil {
		if !cfg.Engine.DevMode {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		log.Warn("MQTT unavailable, continuing in dev mode", "error", err)
		mqttClient = nil
	}
	if mqttClient != nil {
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
	}

	// Connect to InfluxDB (optional) and build the telemetry recorder
	var recorder telemetry.Recorder = telemetry.NopRecorder{}
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		recorder = telemetry.NewInfluxRecorder(influxClient)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Snapshot buffer and MQTT state bridge
	buffer := input.NewBuffer()
	bridge := input.NewBridge(buffer, log)
	for _, dev := range cfg.VirtualDevices {
		bridge.SeedVirtual(dev.ID, dev.Buttons, dev.Axes, dev.Hats)
		log.Info("virtual device declared",
			"device", dev.ID,
			"buttons", dev.Buttons,
			"axes", dev.Axes,
			"hats", dev.Hats,
		)
	}
	if mqttClient != nil {
		if startErr := bridge.Start(mqttClient); startErr != nil {
			return fmt.Errorf("subscribing to physical state: %w", startErr)
		}
		log.Info("physical state bridge started")
	}

	// Rebind storage and registry
	repo := rebind.NewSQLiteRepository(db.DB)
	registry := rebind.NewRegistry(repo)
	if loadErr := registry.LoadActive(ctx); loadErr != nil {
		if !errors.Is(loadErr, rebind.ErrNoActiveMap) {
			return fmt.Errorf("loading active rebind map: %w", loadErr)
		}
		log.Info("no active rebind map, engine idles until one is activated")
	} else {
		active := registry.Active()
		log.Info("active rebind map loaded",
			"map", active.Slug,
			"rebinds", active.RebindCount(),
		)
	}

	// Output sink: MQTT for normal operation, in-memory in dev mode
	var sink output.Sink
	if cfg.Engine.DevMode || mqttClient == nil {
		sink = output.NewMemorySink()
		log.Warn("dev mode: committing write-sets to in-memory sink")
	} else {
		sink = output.NewMQTTSink(mqttClient)
	}

	// WebSocket hub, shared by the API server and the tick loop
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	// Tick loop
	engine := rebind.NewEngine(log)
	manager := runtime.NewManager(runtime.Config{
		TickInterval:     cfg.TickInterval(),
		SaveInterval:     time.Duration(cfg.Engine.SaveInterval) * time.Second,
		BroadcastDivisor: cfg.WebSocket.TickBroadcastDivisor,
	}, engine, registry, buffer, sink, bridge, recorder, hub, log)
	manager.Start(ctx)
	defer func() {
		log.Info("stopping tick loop")
		manager.Stop(context.Background())
	}()

	// API server
	server, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Logger:      log,
		Registry:    registry,
		Repo:        repo,
		Status:      manager,
		ExternalHub: hub,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, server); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal",
		"tick_rate_hz", cfg.Engine.TickRate,
	)

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. Tick loop (final state save)
	// 3. InfluxDB (if enabled)
	// 4. MQTT
	// 5. Database

	log.Info("HOTAS Relay Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses HOTASRELAY_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HOTASRELAY_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (may be nil in dev mode)
//   - server: API server to check
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, server *api.Server) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	return nil
}
