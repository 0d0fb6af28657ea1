// BrewPi Service - controller synchronisation daemon
//
// brewpi-service finds BrewPi controllers on USB serial ports and TCP
// endpoints, keeps a connection to each and polls them for their installed
// devices. Connection events are journaled in SQLite and mirrored to MQTT;
// temperatures are written to InfluxDB when it is enabled.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/BrewPi/brewpi-service/migrations"

	"github.com/BrewPi/brewpi-service/internal/connector"
	"github.com/BrewPi/brewpi-service/internal/controller"
	"github.com/BrewPi/brewpi-service/internal/datasync"
	"github.com/BrewPi/brewpi-service/internal/infrastructure/config"
	"github.com/BrewPi/brewpi-service/internal/infrastructure/database"
	"github.com/BrewPi/brewpi-service/internal/infrastructure/influxdb"
	"github.com/BrewPi/brewpi-service/internal/infrastructure/logging"
	"github.com/BrewPi/brewpi-service/internal/infrastructure/mqtt"
	"github.com/BrewPi/brewpi-service/internal/journal"
	"github.com/BrewPi/brewpi-service/internal/protocol"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the service together and runs the sync loop until ctx is
// cancelled. It returns nil on a clean shutdown.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting BrewPi service",
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

	db, err := database.Open(ctx, database.Config{
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

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Controller events: journal first so the history is complete even
	// when MQTT is down.
	bus := controller.NewBus(log.With("component", "events"))
	bus.Subscribe("journal", journal.Subscriber(journal.NewSQLiteRepository(db.DB), log))

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
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

		bus.Subscribe("mqtt", controller.NewPublisher(mqttClient, log).Handle)
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	var temperatureSink datasync.TemperatureSink
	influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
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

		temperatureSink = influxClient
		bus.Subscribe("influxdb", datasync.StatusSubscriber(influxClient, log))
	}

	manager, err := newManager(cfg, log)
	if err != nil {
		return fmt.Errorf("configuring controller discovery: %w", err)
	}
	defer func() {
		log.Info("closing controller connections")
		if closeErr := manager.Close(); closeErr != nil {
			log.Error("error closing controllers", "error", closeErr)
		}
	}()

	host := datasync.ResolveHost(cfg.Service.Host)
	syncLog := log.With("component", "datasync")
	syncher := datasync.NewSyncher(
		datasync.Config{
			Host:         host,
			PollInterval: cfg.Sync.PollInterval,
			CommandDelay: cfg.Sync.CommandDelay,
			ConnectDelay: cfg.Sync.ConnectDelay,
		},
		manager,
		protocol.NewDecoder(),
		datasync.NewObserver(host, bus),
		datasync.WithLogger(syncLog),
		datasync.WithHandlerFactory(datasync.NewHandlerFactory(syncLog, temperatureSink)),
	)

	if mqttClient != nil {
		health := datasync.NewHealthReporter(datasync.HealthReporterConfig{
			Version:   version,
			Interval:  cfg.Sync.HealthInterval,
			Publisher:   mqttClient,
			Stats:       syncher,
			Controllers: manager,
		})
		health.SetLogger(syncLog)
		if pubErr := health.PublishStarting(); pubErr != nil {
			log.Warn("publishing starting health failed", "error", pubErr)
		}
		health.Start(ctx)
		defer func() {
			log.Info("stopping health reporter")
			health.Stop()
		}()

		if subErr := subscribeSyncRequests(mqttClient, byte(cfg.MQTT.QoS), syncher); subErr != nil {
			return fmt.Errorf("subscribing to sync requests: %w", subErr)
		}
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, starting sync loop", "host", host)
	syncher.Run(ctx)

	// Deferred Close() calls run in reverse order: health reporter,
	// controllers, InfluxDB, MQTT, database.
	log.Info("shutdown signal received, cleaning up")
	return nil
}

// newManager builds the controller manager from the controllers and sync
// configuration sections.
func newManager(cfg *config.Config, log *logging.Logger) (*connector.Manager, error) {
	discoverer, err := connector.NewDiscoverer(connector.DiscoveryConfig{
		SerialEnabled: cfg.Controllers.Serial.Enabled,
		USBIDs:        cfg.Controllers.Serial.USBIDs,
		Ports:         cfg.Controllers.Serial.Ports,
		Endpoints:     cfg.Controllers.TCP.Endpoints,
	})
	if err != nil {
		return nil, err
	}

	transport := connector.NewTransport(cfg.Controllers.Serial.BaudRate, cfg.Controllers.TCP.DialTimeout)
	connLog := log.With("component", "connector")

	factory := func(address string) *connector.Controller {
		return connector.NewController(address, transport.Dial,
			connector.WithLogger(connLog),
			connector.WithBackoff(cfg.Sync.RetryInitialDelay, cfg.Sync.RetryMaxDelay),
		)
	}
	return connector.NewManager(discoverer.Discover, factory,
		connector.WithManagerLogger(connLog),
		connector.WithForgetAfter(cfg.Sync.ForgetAfter),
	), nil
}

// subscribeSyncRequests wakes the sync loop whenever a message arrives on
// brewpi/request/sync.
func subscribeSyncRequests(client *mqtt.Client, qos byte, syncher *datasync.Syncher) error {
	return client.Subscribe(mqtt.Topics{}.SyncRequest(), qos, func(_ string, _ []byte) error {
		syncher.Trigger()
		return nil
	})
}

// getConfigPath returns the configuration file path.
// Uses BREWPI_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("BREWPI_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies the infrastructure connections. mqttClient and
// influxClient are nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
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
