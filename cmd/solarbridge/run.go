package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/solar-bridge/internal/accessory"
	"github.com/nerrad567/solar-bridge/internal/api"
	"github.com/nerrad567/solar-bridge/internal/audit"
	"github.com/nerrad567/solar-bridge/internal/bridges/mqttbridge"
	"github.com/nerrad567/solar-bridge/internal/controller"
	"github.com/nerrad567/solar-bridge/internal/discovery"
	"github.com/nerrad567/solar-bridge/internal/history"
	"github.com/nerrad567/solar-bridge/internal/infrastructure/config"
	"github.com/nerrad567/solar-bridge/internal/infrastructure/database"
	"github.com/nerrad567/solar-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/solar-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/solar-bridge/internal/infrastructure/metrics"
	"github.com/nerrad567/solar-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/solar-bridge/internal/inverter"
	"github.com/nerrad567/solar-bridge/internal/pairing"
	"github.com/nerrad567/solar-bridge/migrations"
)

// historyDropSyncInterval is how often dropped history writes are copied
// into the metrics.
const historyDropSyncInterval = 30 * time.Second

// run wires every component and blocks until ctx is cancelled. Startup is
// strict: if the inverter cannot be read, run returns an error before any
// listener is started.
func run(ctx context.Context, cfg *config.Config, log *logging.Logger) error {
	log.Info("starting solarbridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	m := metrics.New()

	pairings, err := pairing.NewManager(ctx, pairing.Options{
		Store:     pairing.NewSQLiteStore(db.DB),
		SetupCode: cfg.Accessory.SetupCode,
		Logger:    log,
	})
	if err != nil {
		return fmt.Errorf("initialising pairing: %w", err)
	}
	m.SetPaired(pairings.Paired())

	acc := newAccessory(cfg, log)
	trail := audit.NewSQLiteRepository(db.DB)

	telemetry := connectInfluxDB(ctx, cfg.InfluxDB, log)
	defer telemetry.Close() //nolint:errcheck // nil-safe, errors logged by the client

	dialer, err := inverter.Lookup(cfg.Device.Driver)
	if err != nil {
		return err
	}

	ctrlOpts := controller.Options{
		Dialer:          dialer,
		Path:            cfg.Device.Path,
		Sink:            acc,
		RefreshInterval: cfg.RefreshInterval(),
		FlagSettle:      cfg.Refresh.FlagSettle,
		FrequencySettle: cfg.Refresh.FrequencySettle,
		DeviceTimeout:   cfg.Device.Timeout,
		Logger:          log,
		Metrics:         m,
		Pairing:         pairings,
	}
	if telemetry != nil {
		ctrlOpts.Telemetry = telemetry
	}
	ctrl, err := controller.New(ctx, ctrlOpts)
	if err != nil {
		return fmt.Errorf("starting controller: %w", err)
	}
	defer ctrl.Stop()
	ctrl.PrintPairingInstructions()

	// A client hanging up must not cancel a command already sent to the device.
	acc.OnWrite(func(ctx context.Context, id string, value any) {
		ctrl.HandleWrite(context.WithoutCancel(ctx), controller.WriteRequest{Target: id, Value: value})
	})

	var recorder *history.Recorder
	var historyRepo api.HistoryReader
	if cfg.History.Enabled {
		repo := history.NewSQLiteRepository(db.DB)
		recorder = history.NewRecorder(repo, history.RecorderOptions{
			Retention:     cfg.History.Retention,
			PruneInterval: cfg.History.PruneInterval,
			Logger:        log,
		})
		recorder.Start(ctx, acc)
		defer recorder.Stop()
		historyRepo = repo
	}

	var bridge *mqttbridge.Bridge
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, bridge, err = startMQTT(ctx, cfg, acc, ctrl, trail, log)
		if err != nil {
			return err
		}
		defer func() {
			bridge.Stop()
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
	}

	acc.OnIdentify(func(name string) {
		ctrl.HandleIdentify(name)
		if bridge != nil {
			bridge.HandleIdentify(name)
		}
	})

	var advertiser *discovery.Advertiser
	if cfg.Discovery.Enabled {
		id := pairings.Identity()
		advertiser = discovery.NewAdvertiser(cfg.Discovery, discovery.Info{
			Name:         cfg.Accessory.Name,
			DeviceID:     id.DeviceID,
			Model:        cfg.Accessory.Model,
			SetupID:      id.SetupID,
			ConfigNumber: id.ConfigNumber,
			Category:     pairings.Category(),
			Port:         cfg.API.Port,
			Paired:       pairings.Paired(),
		}, log)
		// The accessory is still usable over HTTP and MQTT without mDNS.
		if err := advertiser.Start(); err != nil {
			log.Warn("mDNS advertisement failed", "error", err)
		}
		defer advertiser.Stop()
	}

	pairings.OnStateChange(func(paired bool) {
		ctrl.HandlePairingStateChange(paired)
		m.SetPaired(paired)
		if advertiser != nil {
			advertiser.SetPaired(paired)
		}
		if bridge != nil {
			bridge.SetPaired(paired)
		}
	})

	apiDeps := api.Deps{
		Config:    cfg.API,
		WS:        cfg.WebSocket,
		Logger:    log,
		Accessory: acc,
		Stats:     ctrl,
		Pairing:   pairings,
		History:   historyRepo,
		Metrics:   m,
		Database:  db,
		Audit:     trail,
		Version:   version,
	}
	if mqttClient != nil {
		apiDeps.MQTT = mqttClient
	}
	if telemetry != nil {
		apiDeps.InfluxDB = telemetry
	}
	server, err := api.New(apiDeps)
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

	log.Info("initialisation complete", "serial", ctrl.SerialNumber(), "paired", pairings.Paired())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ctrl.Run(gctx)
	})
	if recorder != nil {
		g.Go(func() error {
			syncHistoryDrops(gctx, recorder, m)
			return nil
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// newAccessory builds the accessory tree with the configured model's
// profile and any profile overrides.
func newAccessory(cfg *config.Config, log *logging.Logger) *accessory.Accessory {
	profile, ok := accessory.LookupProfile(cfg.Accessory.Model)
	if !ok {
		log.Warn("unknown inverter model, using default profile rules",
			"model", cfg.Accessory.Model, "default", accessory.DefaultModel, "known", accessory.Models())
	}
	return accessory.New(accessory.Info{
		Name:         cfg.Accessory.Name,
		Manufacturer: cfg.Accessory.Manufacturer,
		Model:        cfg.Accessory.Model,
	}, profile.WithOverrides(cfg.Profile.LowBatteryThreshold, cfg.Profile.OutletInUse))
}

// connectInfluxDB returns nil when telemetry is disabled or unreachable.
// Telemetry is optional, so a failure is logged rather than fatal.
func connectInfluxDB(ctx context.Context, cfg config.InfluxDBConfig, log *logging.Logger) *influxdb.Client {
	if !cfg.Enabled {
		log.Info("InfluxDB disabled")
		return nil
	}
	client, err := influxdb.Connect(ctx, cfg)
	if err != nil {
		log.Warn("InfluxDB unavailable, telemetry disabled", "url", cfg.URL, "error", err)
		return nil
	}
	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected", "url", cfg.URL, "org", cfg.Org, "bucket", cfg.Bucket)
	return client
}

func startMQTT(ctx context.Context, cfg *config.Config, acc *accessory.Accessory, ctrl *controller.Controller, trail mqttbridge.Auditor, log *logging.Logger) (*mqtt.Client, *mqttbridge.Bridge, error) {
	client, err := mqtt.Connect(ctx, cfg.MQTT)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log)
	client.SetOnConnect(func() { log.Info("MQTT connected") })
	client.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })

	bridge, err := mqttbridge.New(mqttbridge.Options{
		MQTT:       client,
		Accessory:  acc,
		Topics:     client.Topics(),
		Serial:     ctrl.SerialNumber(),
		QoS:        byte(cfg.MQTT.QoS), // #nosec G115 -- validated to 0..2
		Stats:      ctrl,
		StaleAfter: 3 * cfg.RefreshInterval(),
		Version:    version,
		Audit:      trail,
		Logger:     log,
	})
	if err != nil {
		client.Close() //nolint:errcheck // already failing
		return nil, nil, fmt.Errorf("creating MQTT bridge: %w", err)
	}
	if err := bridge.Start(ctx); err != nil {
		client.Close() //nolint:errcheck // already failing
		return nil, nil, fmt.Errorf("starting MQTT bridge: %w", err)
	}
	log.Info("MQTT bridge started",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"prefix", cfg.MQTT.TopicPrefix,
	)
	return client, bridge, nil
}

// syncHistoryDrops copies the recorder's drop counter into the metrics
// until ctx is done.
func syncHistoryDrops(ctx context.Context, rec *history.Recorder, m *metrics.Metrics) {
	ticker := time.NewTicker(historyDropSyncInterval)
	defer ticker.Stop()

	var last uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := rec.Dropped(); n > last {
				m.HistoryDropped(n - last)
				last = n
			}
		}
	}
}
