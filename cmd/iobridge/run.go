package main

import (
	"context"
	"errors"
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2ctest"

	"github.com/nerrad567/iobridge/internal/api"
	"github.com/nerrad567/iobridge/internal/bridge"
	"github.com/nerrad567/iobridge/internal/infrastructure/config"
	"github.com/nerrad567/iobridge/internal/infrastructure/database"
	"github.com/nerrad567/iobridge/internal/infrastructure/i2cbus"
	"github.com/nerrad567/iobridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/iobridge/internal/infrastructure/logging"
	"github.com/nerrad567/iobridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/iobridge/internal/osc"
	"github.com/nerrad567/iobridge/internal/peripheral"
)

// run wires the bridge from cfg and blocks until ctx is cancelled.
// The HTTP API and MQTT commands are stopped by the bridge before it drains
// the registry; deferred closes run in reverse order after that.
func run(ctx context.Context, cfg *config.Config) error {
	log := logging.New(cfg.Logging, version)
	defer log.Close()

	log.Info("starting iobridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	bus, err := openBus(cfg.I2C, log)
	if err != nil {
		return err
	}
	if closer, ok := bus.(i2c.BusCloser); ok {
		defer func() {
			if closeErr := closer.Close(); closeErr != nil {
				log.Error("error closing I2C bus", "error", closeErr)
			}
		}()
	}

	registry := peripheral.NewRegistry(bus, peripheral.DefaultCatalog())
	registry.SetLogger(log)

	if cfg.Database.Enabled {
		db, dbErr := openDatabase(ctx, cfg.Database, log)
		if dbErr != nil {
			return dbErr
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		registry.SetStore(peripheral.NewSQLiteStore(db.DB))
	}

	sender, err := osc.NewSender(cfg.OSC.Target)
	if err != nil {
		return fmt.Errorf("creating OSC sender: %w", err)
	}
	defer sender.Close()

	fanout := bridge.NewFanout(bridge.NewOSCPublisher(sender))
	fanout.SetLogger(log)

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
		mqttClient.SetOnConnect(func() { log.Info("MQTT connected") })
		mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
		fanout.AddMirror("mqtt", mqttMirror(mqttClient))
		log.Info("MQTT mirror enabled",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"prefix", mqttClient.Topics().Prefix(),
		)
	}

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		fanout.AddMirror("influxdb", influxMirror(influxClient))
		log.Info("InfluxDB mirror enabled", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	var hub *api.Hub
	if cfg.API.Enabled {
		hub = api.NewHub(cfg.WebSocket, log)
		hubCtx, stopHub := context.WithCancel(ctx)
		hubDone := make(chan struct{})
		go func() {
			defer close(hubDone)
			hub.Run(hubCtx)
		}()
		defer func() {
			stopHub()
			<-hubDone
		}()
		fanout.AddMirror("websocket", hub)
	}

	b, err := bridge.New(bridge.Config{
		ListenAddr:    cfg.OSC.Listen,
		MaxPacketSize: cfg.OSC.MaxPacketSize,
		RateHz:        cfg.Poll.RateHz,
	}, registry, fanout)
	if err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	b.SetLogger(log)

	if cfg.API.Enabled {
		srv, srvErr := startAPI(ctx, cfg, log, b, hub, mqttClient, influxClient)
		if srvErr != nil {
			b.Close() //nolint:errcheck // already failing
			return srvErr
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
		b.AddIngress("api", func(context.Context) error { return srv.Close() })
	}

	seeded := b.Seed(ctx, peripheralSpecs(cfg.Peripherals))
	restored, err := registry.Restore(ctx)
	if err != nil {
		log.Error("restoring stored peripherals failed", "error", err)
	}
	log.Info("peripherals loaded", "configured", seeded, "restored", restored, "total", registry.Len())

	if mqttClient != nil {
		topics := mqttClient.Topics()
		//nolint:gosec // G115: QoS validated to 0-2 in config
		if subErr := mqttClient.Subscribe(topics.CommandWildcard(), byte(cfg.MQTT.QoS), commandHandler(ctx, b.Router(), topics)); subErr != nil {
			log.Warn("MQTT command subscription failed", "error", subErr)
		} else {
			b.AddIngress("mqtt", func(context.Context) error {
				return mqttClient.Unsubscribe(topics.CommandWildcard())
			})
		}
	}

	log.Info("bridge running",
		"listen", b.ListenAddr(),
		"target", cfg.OSC.Target,
		"rate_hz", b.Poller().Rate(),
		"mirrors", fanout.Mirrors(),
	)

	if err := b.Run(ctx); err != nil {
		return fmt.Errorf("bridge shutdown: %w", err)
	}
	log.Info("iobridge stopped")
	return nil
}

// openBus opens the configured I2C bus. With I2C disabled the drivers get a
// recording bus that accepts writes and fails reads, which is enough to
// exercise displays and the OSC side without hardware.
func openBus(cfg config.I2CConfig, log *logging.Logger) (i2c.Bus, error) {
	bus, err := i2cbus.Open(cfg)
	if errors.Is(err, i2cbus.ErrDisabled) {
		log.Warn("I2C disabled, using a write-only recording bus")
		return &i2ctest.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening I2C bus: %w", err)
	}
	log.Info("I2C bus opened", "bus", bus.String())
	return bus, nil
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig, log *logging.Logger) (*database.DB, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", cfg.Path)
	return db, nil
}

func startAPI(ctx context.Context, cfg *config.Config, log *logging.Logger, b *bridge.Bridge,
	hub *api.Hub, mqttClient *mqtt.Client, influxClient *influxdb.Client) (*api.Server, error) {
	deps := api.Deps{
		Config:  cfg.API,
		WS:      cfg.WebSocket,
		Logger:  log,
		Bridge:  b,
		Hub:     hub,
		Version: version,
	}
	if mqttClient != nil {
		deps.MQTT = mqttClient
	}
	if influxClient != nil {
		deps.Influx = influxClient
	}

	srv, err := api.New(deps)
	if err != nil {
		return nil, fmt.Errorf("creating API server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting API server: %w", err)
	}
	return srv, nil
}

func peripheralSpecs(cfgs []config.PeripheralConfig) []bridge.PeripheralSpec {
	specs := make([]bridge.PeripheralSpec, len(cfgs))
	for i, p := range cfgs {
		specs[i] = bridge.PeripheralSpec{Name: p.Name, Type: p.Type, Address: p.Address}
	}
	return specs
}
