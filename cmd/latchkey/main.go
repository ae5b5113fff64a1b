// Latchkey Core - Physical Access Controller
//
// This is the main entry point for the Latchkey Core application.
// Latchkey is a standalone access-control node designed for:
//   - Offline-first operation (decisions never leave the box)
//   - Durable card registry and audit trail across power loss
//   - Open integration surface (MQTT, REST, WebSocket)
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	_ "github.com/latchkeyhq/latchkey-core/migrations"

	"github.com/latchkeyhq/latchkey-core/internal/actuator"
	"github.com/latchkeyhq/latchkey-core/internal/api"
	"github.com/latchkeyhq/latchkey-core/internal/auditlog"
	"github.com/latchkeyhq/latchkey-core/internal/engine"
	"github.com/latchkeyhq/latchkey-core/internal/infrastructure/config"
	"github.com/latchkeyhq/latchkey-core/internal/infrastructure/database"
	"github.com/latchkeyhq/latchkey-core/internal/infrastructure/influxdb"
	"github.com/latchkeyhq/latchkey-core/internal/infrastructure/logging"
	"github.com/latchkeyhq/latchkey-core/internal/infrastructure/mqtt"
	"github.com/latchkeyhq/latchkey-core/internal/mode"
	"github.com/latchkeyhq/latchkey-core/internal/registry"
	"github.com/latchkeyhq/latchkey-core/internal/store"
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
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Latchkey Core",
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

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

	// Open database. Holds the audit mirror and, with the sqlite backend,
	// the card registry.
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

	// Card store and registry
	cardStore, err := openStore(cfg, db)
	if err != nil {
		return fmt.Errorf("opening card store: %w", err)
	}
	defer func() {
		if closeErr := cardStore.Close(); closeErr != nil {
			log.Error("error closing card store", "error", closeErr)
		}
	}()

	reg := registry.New(cardStore, cfg.Controller.MaxCards, cfg.Controller.Channels)
	reg.SetLogger(log)
	if loadErr := reg.Load(ctx); loadErr != nil {
		return fmt.Errorf("loading card registry: %w", loadErr)
	}
	log.Info("card registry loaded",
		"backend", cfg.Store.Backend,
		"cards", reg.Count(),
		"capacity", reg.Capacity(),
	)

	// Audit ring, mirrored to SQLite so history survives restarts
	ring := auditlog.NewRing(cfg.Controller.LogCapacity)
	ring.SetLogger(log)
	mirror := auditlog.NewSQLiteMirror(db.DB, cfg.Controller.LogCapacity)
	entries, head, count, loadErr := mirror.Load(ctx)
	if loadErr != nil {
		log.Warn("audit mirror unreadable, starting with empty history", "error", loadErr)
	} else if count > 0 {
		ring.Restore(entries, head, count)
		log.Info("audit history restored", "entries", count)
	}
	ring.SetSink(mirror)

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
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

	// Connect to InfluxDB (optional)
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
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Output bank. Channels drive relay modules over the bus.
	qos := byte(cfg.MQTT.QoS)
	bank := actuator.NewBank(
		buildOutputs(mqttClient, cfg.Controller.Channels, qos),
		cfg.Controller.PulseDuration(),
	)

	machine := mode.NewMachine(cfg.Controller.ModeTimeoutDuration())

	eng := engine.New(reg, machine, bank, ring, cfg.Controller.Channels)
	eng.SetLogger(log)

	// WebSocket hub, shared between the API server and the event reporter
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	reporter := newBusReporter(mqttClient, hub, influxClient, cfg.Site.ID, qos, log)
	eng.SetReporter(reporter)
	eng.SetFeedback(reporter)

	// Publish the initial retained picture before the loop takes ownership
	// of the engine.
	reporter.ModeChanged(machine.Current())
	for _, st := range bank.States() {
		reporter.ChannelChanged(st)
		reporter.MarkChanged(st.Channel, false)
	}

	loop := engine.NewLoop(eng, cfg.Controller.TickInterval())
	loop.SetLogger(log)

	loopDone := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(loopDone)
	}()
	log.Info("control loop started", "tick_ms", cfg.Controller.TickMs)

	if err := subscribeCommands(ctx, mqttClient, loop, qos, log); err != nil {
		return fmt.Errorf("subscribing to command topics: %w", err)
	}

	// Start REST/WebSocket API
	apiServer, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Logger:      log,
		Controller:  loop,
		ExternalHub: hub,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "addr", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Wait for the control loop to stop before releasing outputs so no
	// in-flight command re-arms a channel.
	<-loopDone
	bank.AllOff()
	log.Info("all channels released")

	log.Info("Latchkey Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses LATCHKEY_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("LATCHKEY_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// openStore builds the card persistence adapter selected by configuration.
func openStore(cfg *config.Config, db *database.DB) (store.Store, error) {
	switch cfg.Store.Backend {
	case config.StoreBackendSQLite:
		return store.NewSQLite(db.DB), nil
	case config.StoreBackendFlatfile:
		return store.OpenFlatfile(cfg.Store.Flatfile.Path, cfg.Controller.MaxCards)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// buildOutputs creates one relay output per channel. Each publishes its
// on/off command to the channel's relay topic; the relay module on the bus
// does the switching.
//
// Outputs are driven from the control loop, so commands use the async
// publish: a disconnected broker still surfaces an error (the bank keeps
// the deadline armed and retries on the next sweep), but a slow broker
// cannot stall the loop waiting for acknowledgement.
func buildOutputs(mc *mqtt.Client, channels int, qos byte) []actuator.Output {
	topics := mqtt.Topics{}
	outputs := make([]actuator.Output, channels)
	for i := range outputs {
		topic := topics.IORelaySet(i)
		outputs[i] = actuator.OutputFunc(func(on bool) error {
			payload := "0"
			if on {
				payload = "1"
			}
			return mc.PublishStringAsync(topic, payload, qos, false)
		})
	}
	return outputs
}

// markCommand is the payload for the mark staging command topic.
type markCommand struct {
	Channel  int  `json:"channel"`
	Selected bool `json:"selected"`
}

// subscribeCommands wires inbound MQTT topics to the control loop.
//
// Handlers run on the MQTT client's goroutines; every mutation goes through
// the loop's command queue, never straight into the engine.
func subscribeCommands(ctx context.Context, mc *mqtt.Client, loop *engine.Loop, qos byte, log *logging.Logger) error {
	topics := mqtt.Topics{}

	if err := mc.Subscribe(topics.ReaderScan(), qos, func(_ string, payload []byte) error {
		return loop.Scan(ctx, string(payload))
	}); err != nil {
		return fmt.Errorf("reader scan: %w", err)
	}

	if err := mc.Subscribe(topics.CommandMode(), qos, func(_ string, payload []byte) error {
		target, ok := mode.Parse(string(payload))
		if !ok {
			log.Warn("ignoring invalid mode command", "payload", string(payload))
			return nil
		}
		return loop.RequestMode(ctx, target)
	}); err != nil {
		return fmt.Errorf("mode command: %w", err)
	}

	if err := mc.Subscribe(topics.CommandMark(), qos, func(_ string, payload []byte) error {
		var cmd markCommand
		if err := json.Unmarshal(payload, &cmd); err != nil {
			log.Warn("ignoring malformed mark command", "error", err)
			return nil
		}
		return loop.SetMark(ctx, cmd.Channel, cmd.Selected)
	}); err != nil {
		return fmt.Errorf("mark command: %w", err)
	}

	if err := mc.Subscribe(topics.AllCommandChannels(), qos, func(topic string, payload []byte) error {
		channel, err := channelFromTopic(topic)
		if err != nil {
			log.Warn("ignoring channel command", "topic", topic, "error", err)
			return nil
		}
		on, err := strconv.ParseBool(strings.TrimSpace(string(payload)))
		if err != nil {
			log.Warn("ignoring malformed channel command", "payload", string(payload))
			return nil
		}
		return loop.SetChannel(ctx, channel, on)
	}); err != nil {
		return fmt.Errorf("channel command: %w", err)
	}

	return nil
}

// channelFromTopic extracts the channel number from a channel command topic
// such as "latchkey/command/channel/2".
func channelFromTopic(topic string) (int, error) {
	idx := strings.LastIndex(topic, "/")
	if idx < 0 || idx == len(topic)-1 {
		return 0, fmt.Errorf("no channel segment in %q", topic)
	}
	return strconv.Atoi(topic[idx+1:])
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	// InfluxDB is optional
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
