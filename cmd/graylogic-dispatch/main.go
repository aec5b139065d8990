// Gray Logic Dispatch - cluster device message dispatcher
//
// Each node holds the live sessions of the devices connected to it and
// binds to its own send stream on the cluster backplane. Messages for a
// device are routed to the node holding the device, encoded with the
// device's protocol codec and written to its session; replies travel back
// over the backplane.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/gray-logic-dispatch/internal/api"
	"github.com/nerrad567/gray-logic-dispatch/internal/audit"
	"github.com/nerrad567/gray-logic-dispatch/internal/cluster"
	"github.com/nerrad567/gray-logic-dispatch/internal/device"
	"github.com/nerrad567/gray-logic-dispatch/internal/dispatch"
	"github.com/nerrad567/gray-logic-dispatch/internal/infrastructure/backplane"
	"github.com/nerrad567/gray-logic-dispatch/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-dispatch/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-dispatch/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-dispatch/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-dispatch/internal/message"
	"github.com/nerrad567/gray-logic-dispatch/internal/messaging"
	"github.com/nerrad567/gray-logic-dispatch/internal/metrics"
	"github.com/nerrad567/gray-logic-dispatch/internal/protocol"
	"github.com/nerrad567/gray-logic-dispatch/internal/protocol/jsoncodec"
	"github.com/nerrad567/gray-logic-dispatch/internal/session"
	"github.com/nerrad567/gray-logic-dispatch/migrations"
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

// run is the actual application logic, separated from main for testability.
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Gray Logic Dispatch",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version).With("server_id", cfg.Node.ServerID)
	log.Info("configuration loaded",
		"path", configPath,
		"backplane", cfg.Backplane.Type,
		"level", cfg.Logging.Level,
	)

	// Device catalogue
	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	devices := device.NewRegistry(device.NewSQLiteRepository(db.DB))
	devices.SetLogger(log.Component("device"))
	if refreshErr := devices.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}
	log.Info("device registry initialised", "devices", devices.GetDeviceCount())

	protocols := protocol.NewRegistry()
	if regErr := protocols.Register(jsoncodec.New()); regErr != nil {
		return fmt.Errorf("registering protocols: %w", regErr)
	}

	// Time-series history (optional)
	var influxClient *influxdb.Client
	var sink metrics.OutcomeSink
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
		sink = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}
	recorder := metrics.NewRecorder(cfg.Node.ServerID, sink)

	// Cluster backplane
	bp, err := backplane.Open(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("opening backplane: %w", err)
	}
	defer func() {
		log.Info("closing backplane")
		if closeErr := bp.Close(); closeErr != nil {
			log.Error("error closing backplane", "error", closeErr)
		}
	}()

	clusters := cluster.NewManager(bp)
	clusters.SetLogger(log.Component("cluster"))
	clusters.SetObserver(recorder)
	defer clusters.Close()

	topics := messaging.Topics{Prefix: cfg.Backplane.TopicPrefix}

	// Sessions
	sessions := session.NewManager(cfg.Node.ServerID)
	sessions.SetLogger(log.Component("session"))
	stateTopic, err := cluster.TopicOf[session.DeviceStateEvent](clusters, topics.DeviceState())
	if err != nil {
		return fmt.Errorf("creating device state topic: %w", err)
	}
	sessions.SetStateTopic(stateTopic)
	defer sessions.Close()

	if influxClient != nil {
		if histErr := recordSessionHistory(ctx, stateTopic, cfg.Node.ServerID, influxClient); histErr != nil {
			return histErr
		}
		eventTopic, topicErr := cluster.TopicOf[message.Envelope](clusters, topics.AllDeviceEvents())
		if topicErr != nil {
			return fmt.Errorf("creating device event topic: %w", topicErr)
		}
		if histErr := recordEventHistory(ctx, eventTopic, cfg.Node.ServerID, sessions, influxClient); histErr != nil {
			return histErr
		}
	}

	// Dispatcher
	requests := messaging.NewClusterHandler(clusters, topics)
	requests.SetLogger(log.Component("messaging"))

	dispatcher, err := dispatch.New(dispatch.Options{
		ServerID: cfg.Node.ServerID,
		Sessions: sessions,
		Requests: requests,
		Logger:   log.Component("dispatch"),
		Recorder: recorder,
	})
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}
	if startErr := dispatcher.Start(ctx); startErr != nil {
		return fmt.Errorf("starting dispatcher: %w", startErr)
	}
	defer dispatcher.Stop()

	// Device gateway and HTTP API
	var server *api.Server
	if cfg.Gateway.Enabled {
		server, err = api.New(api.Deps{
			Config:       cfg.Gateway,
			Metrics:      cfg.Metrics,
			ServerID:     cfg.Node.ServerID,
			Version:      version,
			Logger:       log,
			Devices:      devices,
			Protocols:    protocols,
			Sessions:     sessions,
			Events:       requests,
			Sender:       messaging.NewClient(clusters, topics),
			Clusters:     clusters,
			Recorder:     recorder,
			Audit:        audit.NewSQLiteRepository(db.DB),
			ReplyTimeout: cfg.GetReplyTimeout(),
		})
		if err != nil {
			return fmt.Errorf("creating gateway: %w", err)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting gateway: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing gateway", "error", closeErr)
			}
		}()
	} else {
		log.Info("device gateway disabled")
	}

	if err := healthCheck(ctx, db, bp, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order: gateway, dispatcher, sessions,
	// cluster topics, backplane, InfluxDB, database.
	return nil
}

// recordSessionHistory writes this node's device state events to InfluxDB.
func recordSessionHistory(ctx context.Context, topic *cluster.Topic[session.DeviceStateEvent], serverID string, client *influxdb.Client) error {
	sub, err := topic.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribing device state topic: %w", err)
	}
	go func() {
		for rec := range sub.C() {
			ev := rec.Payload
			if ev.ServerID != serverID {
				continue
			}
			client.WriteSessionEvent(ev.ServerID, ev.DeviceID, string(ev.State), ev.Timestamp)
		}
	}()
	return nil
}

// eventWriter is the part of influxdb.Client event history needs.
type eventWriter interface {
	WriteDeviceEvent(serverID, deviceID, kind string, at time.Time)
}

// recordEventHistory writes events reported by devices connected to this
// node. Every node sees every event, so the session owner is the only writer.
func recordEventHistory(ctx context.Context, topic *cluster.Topic[message.Envelope], serverID string, sessions *session.Manager, w eventWriter) error {
	sub, err := topic.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribing device event topic: %w", err)
	}
	go func() {
		for rec := range sub.C() {
			msg, ok := rec.Payload.Message.(message.DeviceMessage)
			if !ok {
				continue
			}
			if _, local := sessions.Lookup(msg.DeviceID()); !local {
				continue
			}
			kind := string(msg.Type())
			if ev, isEvent := msg.(*message.EventMessage); isEvent && ev.Event != "" {
				kind = ev.Event
			}
			w.WriteDeviceEvent(serverID, msg.DeviceID(), kind, msg.Timestamp())
		}
	}()
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, bp backplane.Backplane, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := bp.HealthCheck(ctx); err != nil {
		return fmt.Errorf("backplane: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
