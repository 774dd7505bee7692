// vantagesync copies the archive of a Davis Vantage weather console into a
// time-series store (InfluxDB 1.x/2.x or VictoriaMetrics).
//
// It resumes from the newest point already stored, pulls every archive
// record the console holds after that point, and then polls once per
// archive interval. Stored readings are optionally published over MQTT and
// a WebSocket stream, and every cycle is recorded in a local SQLite history.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/vantage-sync/migrations"

	"github.com/nerrad567/vantage-sync/internal/api"
	"github.com/nerrad567/vantage-sync/internal/archive"
	"github.com/nerrad567/vantage-sync/internal/console"
	"github.com/nerrad567/vantage-sync/internal/feed"
	"github.com/nerrad567/vantage-sync/internal/history"
	"github.com/nerrad567/vantage-sync/internal/infrastructure/config"
	"github.com/nerrad567/vantage-sync/internal/infrastructure/database"
	"github.com/nerrad567/vantage-sync/internal/infrastructure/influxdb"
	"github.com/nerrad567/vantage-sync/internal/infrastructure/logging"
	"github.com/nerrad567/vantage-sync/internal/infrastructure/mqtt"
	"github.com/nerrad567/vantage-sync/internal/infrastructure/tsdb"
	"github.com/nerrad567/vantage-sync/internal/syncer"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

// storeProbeTimeout bounds the startup EnsureDatabase call.
const storeProbeTimeout = 15 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Store is the time-series backend as seen by main.
type Store interface {
	syncer.Store
	EnsureDatabase(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Close() error
}

// run wires every component and blocks until ctx is cancelled. Only
// configuration and local setup errors are returned; console and store
// faults are retried by the supervisor.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting vantagesync",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, logging.Fields{Version: version, Station: cfg.Station.Name})
	log.Info("configuration loaded",
		"path", configPath,
		"console", fmt.Sprintf("%s:%d", cfg.Console.Host, cfg.Console.Port),
		"store", cfg.Store.Backend,
	)

	loc := cfg.Location()

	// Archive pipeline
	mapper, err := archive.NewMapper(archive.MapperOptions{
		WindUnit: archive.WindUnit(cfg.Archive.WindSpeedUnit),
		Unmapped: archive.UnmappedPolicy(cfg.Archive.UnmappedFields),
		Rename:   cfg.Archive.Rename,
	})
	if err != nil {
		return fmt.Errorf("building field mapping: %w", err)
	}
	normalizer := archive.NewNormalizer(mapper, loc, log.Component("archive"))
	shaper, err := archive.NewShaper(cfg.Store.Measurement, cfg.Store.Tags)
	if err != nil {
		return fmt.Errorf("building shaper: %w", err)
	}

	// Time-series store
	store, err := openStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("creating %s client: %w", cfg.Store.Backend, err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Error("error closing store", "error", closeErr)
		}
	}()

	// The store may come up after us; the supervisor retries writes.
	probeCtx, cancelProbe := context.WithTimeout(ctx, storeProbeTimeout)
	if ensureErr := store.EnsureDatabase(probeCtx); ensureErr != nil {
		log.Warn("store not ready, continuing", "backend", cfg.Store.Backend, "error", ensureErr)
	}
	cancelProbe()

	checks := map[string]api.HealthChecker{"store": store}

	// Sync history
	var (
		db       *database.DB
		recorder syncer.Recorder
		repo     history.Repository
	)
	if cfg.History.Enabled {
		db, err = openHistory(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		sqliteRepo := history.NewSQLiteRepository(db.DB)
		if n, pruneErr := sqliteRepo.Prune(ctx, time.Now(), cfg.GetHistoryRetention()); pruneErr != nil {
			log.Warn("pruning sync history failed", "error", pruneErr)
		} else if n > 0 {
			log.Info("pruned sync history", "cycles", n)
		}
		recorder, repo = sqliteRepo, sqliteRepo
		checks["database"] = db
	}

	// Live outputs
	hub := api.NewHub(cfg.Station.Name, log.Component("websocket"))
	go hub.Run(ctx)
	publishers := syncer.Publishers{hub}

	var liveFeed *feed.Feed
	if cfg.MQTT.Enabled {
		mqttClient, f, feedErr := startFeed(cfg, log)
		if feedErr != nil {
			// The feed is optional; the sync itself does not depend on it.
			log.Warn("MQTT feed disabled", "error", feedErr)
		} else {
			defer func() {
				if closeErr := mqttClient.Close(); closeErr != nil {
					log.Error("error closing MQTT", "error", closeErr)
				}
			}()
			liveFeed = f
			publishers = append(publishers, f)
			checks["mqtt"] = mqttClient
		}
	}

	// Console
	dialer, err := console.NewDialer(cfg.Console.Driver, loc)
	if err != nil {
		return fmt.Errorf("creating console dialer: %w", err)
	}

	resolver := syncer.NewResolver(store, resumeMeasurement(cfg, mapper, shaper), loc, log.Component("resume"))

	supervisor, err := syncer.New(syncer.Config{
		Address: console.Address{
			Host:            cfg.Console.Host,
			Port:            cfg.Console.Port,
			ArchiveInterval: cfg.Console.ArchiveInterval,
		},
		Location:        loc,
		RetryDelay:      cfg.GetRetryDelay(),
		DriftTolerance:  cfg.GetDriftTolerance(),
		DriftCorrection: cfg.Console.DriftCorrection,
	}, syncer.Options{
		Dialer:     dialer,
		Store:      store,
		Resolver:   resolver,
		Normalizer: normalizer,
		Shaper:     shaper,
		Recorder:   recorder,
		Publisher:  publishers,
		Logger:     log.Component("syncer"),
	})
	if err != nil {
		return fmt.Errorf("creating supervisor: %w", err)
	}

	// Status API
	if cfg.API.Enabled {
		deps := api.Deps{
			Config:  cfg.API,
			Logger:  log.Component("api"),
			Station: cfg.Station.Name,
			Version: version,
			Status:  supervisor,
			History: repo,
			Checks:  checks,
			Hub:     hub,
		}
		if liveFeed != nil {
			deps.Feed = liveFeed
		}
		if db != nil {
			deps.DB = db
		}

		server, apiErr := api.New(deps)
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if apiErr = server.Start(ctx); apiErr != nil {
			return fmt.Errorf("starting API server: %w", apiErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	log.Info("vantagesync started",
		"mode", string(shaper.Mode()),
		"archive_interval_minutes", cfg.Console.ArchiveInterval,
	)

	_ = supervisor.Run(ctx) //nolint:errcheck // Always ctx.Err() on shutdown

	log.Info("shutting down")
	return nil
}

// getConfigPath returns VANTAGE_CONFIG or the default path.
func getConfigPath() string {
	if path := os.Getenv("VANTAGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// openStore creates the client for the configured backend.
func openStore(cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case config.BackendVictoriaMetrics:
		return tsdb.New(cfg)
	case config.BackendInfluxDB:
		return influxdb.New(cfg)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// openHistory opens the history database and applies migrations.
func openHistory(ctx context.Context, cfg *config.Config, log *logging.Logger) (*database.DB, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // Already failing
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	schema, _ := db.SchemaVersion(ctx) //nolint:errcheck // Informational only
	log.Info("history database ready", "path", cfg.Database.Path, "schema", schema)
	return db, nil
}

// startFeed connects to the broker and builds the MQTT feed. The feed
// re-sends the last status on every reconnect to replace the retained LWT.
func startFeed(cfg *config.Config, log *logging.Logger) (*mqtt.Client, *feed.Feed, error) {
	client, err := mqtt.Connect(cfg.MQTT, cfg.Station.Name)
	if err != nil {
		return nil, nil, err
	}

	f, err := feed.New(feed.Config{
		Broker:  client,
		Topics:  client.Topics(),
		Station: cfg.Station.Name,
		Logger:  log.Component("feed"),
	})
	if err != nil {
		client.Close() //nolint:errcheck // Already failing
		return nil, nil, err
	}

	client.SetOnConnect(f.Republish)
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT connection lost", "error", err)
	})

	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"topics", client.Topics().All(),
	)
	return client, f, nil
}

// resumeMeasurement picks the measurement the resume point is read from:
// the wide measurement, or in narrow mode the configured resume field
// (default: the barometer field, which every console reports).
func resumeMeasurement(cfg *config.Config, mapper *archive.Mapper, shaper *archive.Shaper) string {
	if shaper.Mode() == archive.ModeWide {
		return shaper.Measurement()
	}
	if cfg.Store.ResumeMeasurement != "" {
		return cfg.Store.ResumeMeasurement
	}
	return mapper.CanonicalName("Barometer")
}
