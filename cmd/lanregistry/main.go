// LAN Device Registry
//
// This is the main entry point for the registry service. Devices on the
// local network announce themselves over HTTP or MQTT; the service keeps one
// record per device and marks silent devices offline on a fixed cadence.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"

	_ "github.com/nerrad567/lanregistry/migrations"

	"github.com/nerrad567/lanregistry/internal/announce"
	"github.com/nerrad567/lanregistry/internal/api"
	"github.com/nerrad567/lanregistry/internal/infrastructure/config"
	"github.com/nerrad567/lanregistry/internal/infrastructure/database"
	"github.com/nerrad567/lanregistry/internal/infrastructure/influxdb"
	"github.com/nerrad567/lanregistry/internal/infrastructure/logging"
	"github.com/nerrad567/lanregistry/internal/infrastructure/mqtt"
	"github.com/nerrad567/lanregistry/internal/registry"
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

// configEnv overrides the config path when --config is not given.
const configEnv = "LANREGISTRY_CONFIG"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options holds the parsed command line.
type options struct {
	configPath   string
	explicitPath bool
	showVersion  bool
}

// parseFlags reads the command line. The config path comes from --config,
// then LANREGISTRY_CONFIG, then the default.
func parseFlags(args []string) (options, error) {
	flags := pflag.NewFlagSet("lanregistry", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", "", "path to the YAML configuration file")
	showVersion := flags.BoolP("version", "v", false, "print version and exit")
	if err := flags.Parse(args); err != nil {
		return options{}, err
	}

	opts := options{showVersion: *showVersion}
	switch {
	case *configPath != "":
		opts.configPath, opts.explicitPath = *configPath, true
	case os.Getenv(configEnv) != "":
		opts.configPath, opts.explicitPath = os.Getenv(configEnv), true
	default:
		opts.configPath = defaultConfigPath
	}
	return opts, nil
}

// run is the actual application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context, args []string) error { //nolint:gocognit,gocyclo // Startup sequence: each optional component adds a branch
	opts, err := parseFlags(args)
	if err != nil {
		return fmt.Errorf("parsing flags: %w", err)
	}
	if opts.showVersion {
		fmt.Printf("lanregistry %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}

	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting LAN device registry",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	log.Info("configuration loaded", "path", opts.configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

	clock := clockwork.NewRealClock()

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := registry.NewMetrics(promRegistry)

	// Open the device store
	var (
		store registry.Store
		db    *database.DB
	)
	switch cfg.Registry.Backend {
	case config.BackendMemory:
		store = registry.NewMemoryStore()
		log.Warn("using in-memory device store; records are lost on restart")
	default:
		db, err = openDatabase(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		store = registry.NewSQLiteStore(db.DB)
	}

	service := registry.NewService(store, clock)
	service.SetLogger(log)
	service.SetMetrics(metrics)

	sweeper := registry.NewSweeper(store, clock, registry.SweeperConfig{
		Interval:       cfg.Registry.SweepInterval,
		OfflineTimeout: cfg.Registry.OfflineTimeout,
	})
	sweeper.SetLogger(log)
	sweeper.SetMetrics(metrics)

	hub := api.NewHub(cfg.WebSocket, log)
	notifiers := registry.Notifiers{hub}

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
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT connection lost, reconnecting", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetServiceID(cfg.Service.ID)
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		sweeper.AddRecorder(sweepStatsRecorder(influxClient))
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Event fan-out is fixed before any announcement can arrive.
	if mqttClient != nil {
		publisher, bridgeErr := startMQTTBridge(mqttClient, service, sweeper, notifiers, log)
		if bridgeErr != nil {
			return bridgeErr
		}
		defer publisher.Stop()
	} else {
		service.SetNotifier(notifiers)
		sweeper.SetNotifier(notifiers)
	}

	if err := sweeper.Start(ctx); err != nil {
		return fmt.Errorf("starting sweeper: %w", err)
	}
	defer sweeper.Stop()

	server, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Metrics:  cfg.Metrics,
		Logger:   log,
		Service:  service,
		Sweeper:  sweeper,
		Gatherer: promRegistry,
		Hub:      hub,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal",
		"backend", cfg.Registry.Backend,
		"offline_timeout", cfg.Registry.OfflineTimeout.String(),
		"sweep_interval", cfg.Registry.SweepInterval.String(),
	)

	<-ctx.Done()

	// Deferred calls run in reverse order: API server, sweeper, event
	// publisher, InfluxDB, MQTT, database.
	log.Info("shutdown signal received, cleaning up")
	return nil
}

// loadConfig reads the config file. A missing default file falls back to
// built-in defaults; a missing explicit file is an error.
func loadConfig(opts options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err == nil {
		return cfg, nil
	}
	if !opts.explicitPath && errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return nil, fmt.Errorf("loading config: %w", err)
}

// openDatabase opens SQLite and applies pending migrations.
func openDatabase(ctx context.Context, cfg *config.Config, log *logging.Logger) (*database.DB, error) {
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	log.Info("database connected", "path", cfg.Database.Path)

	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck,gosec // Already returning the migration error
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database migrations complete")
	return db, nil
}

// mqttTransport is the part of mqtt.Client the announcement bridge uses.
type mqttTransport interface {
	announce.Subscriber
	announce.Publisher
	QoS() byte
}

// startMQTTBridge starts the event publisher, attaches it and base to the
// service and sweeper, and only then subscribes to announcements, so no
// handler runs while the notifiers are being set.
func startMQTTBridge(transport mqttTransport, service *registry.Service, sweeper *registry.Sweeper, base registry.Notifiers, log *logging.Logger) (*announce.EventPublisher, error) {
	publisher := announce.NewEventPublisher(transport, 0)
	publisher.SetLogger(log)
	publisher.Start()

	notifiers := append(append(registry.Notifiers{}, base...), publisher)
	service.SetNotifier(notifiers)
	sweeper.SetNotifier(notifiers)

	listener := announce.NewListener(service)
	listener.SetLogger(log)
	if err := listener.Subscribe(transport, transport.QoS()); err != nil {
		publisher.Stop()
		return nil, fmt.Errorf("subscribing to announcements: %w", err)
	}
	return publisher, nil
}

// sweepStatsRecorder writes each sweep report to InfluxDB.
func sweepStatsRecorder(client *influxdb.Client) registry.SweepRecorder {
	return registry.SweepRecorderFunc(func(r registry.SweepReport) {
		client.WriteSweep(influxdb.SweepStats{
			At:           r.At,
			Online:       r.Online,
			Offline:      r.Offline,
			Transitioned: r.Transitioned,
			Duration:     r.Duration,
		})
	})
}

// healthCheck verifies the configured infrastructure is reachable.
// Nil clients are skipped.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
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
