// Gray Logic Node - field device connectivity supervisor
//
// This is the entry point for a Gray Logic field node. The node keeps its
// MQTT link to the Core alive through network and broker outages, escalates
// to peripheral power-off when an outage lasts too long, restores its
// subscriptions after every reconnect and publishes its state document.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/nerrad567/gray-logic-node/internal/api"
	"github.com/nerrad567/gray-logic-node/internal/connectivity"
	"github.com/nerrad567/gray-logic-node/internal/dispatch"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-node/internal/journal"
	"github.com/nerrad567/gray-logic-node/internal/network"
	"github.com/nerrad567/gray-logic-node/internal/node"
	"github.com/nerrad567/gray-logic-node/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

const (
	// defaultConfigPath is used when neither --config nor the environment
	// variable is set.
	defaultConfigPath = "configs/config.yaml"

	// configEnv names the environment variable holding the config path.
	configEnv = "GRAYLOGIC_NODE_CONFIG"

	// telemetryInterval is how often a status snapshot goes to InfluxDB.
	telemetryInterval = time.Minute
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options are the parsed command-line flags.
type options struct {
	configPath  string
	showVersion bool
	showHelp    bool
}

// parseFlags parses the command line. The config path falls back to the
// environment, then to the default.
func parseFlags(args []string) (options, error) {
	var opts options

	flagSet := pflag.NewFlagSet("graylogic-node", pflag.ContinueOnError)
	flagSet.StringVarP(&opts.configPath, "config", "c", "", "path to the node configuration file (env "+configEnv+")")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version and exit")
	flagSet.BoolVarP(&opts.showHelp, "help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			opts.showHelp = true
			return opts, nil
		}
		return opts, err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return opts, fmt.Errorf("unexpected argument: %s", rest[0])
	}

	if opts.configPath == "" {
		opts.configPath = os.Getenv(configEnv)
	}
	if opts.configPath == "" {
		opts.configPath = defaultConfigPath
	}
	return opts, nil
}

// run is the application logic, separated from main for testability.
// It returns nil on a clean shutdown.
func run(ctx context.Context, args []string) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	if opts.showHelp {
		fmt.Fprintln(os.Stderr, "Usage: graylogic-node [--config PATH] [--version]")
		return nil
	}
	if opts.showVersion {
		fmt.Printf("graylogic-node %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}

	log := logging.Default()
	log.Info("starting Gray Logic Node",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", opts.configPath, "node", cfg.Node.Name)

	checks := make(map[string]api.HealthChecker)

	// Connectivity journal
	var journalRepo journal.Repository
	var recorder *journal.Recorder
	if cfg.Database.Enabled {
		db, err := database.Open(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		if err := db.Migrate(ctx, migrations.FS); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		checks["database"] = db

		journalRepo = journal.NewSQLiteRepository(db.DB)
		recorder = journal.NewRecorder(journalRepo, cfg.Database.JournalRetention, 0, log)

		recCtx, stopRecorder := context.WithCancel(context.WithoutCancel(ctx))
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			recorder.Run(recCtx)
		}()
		defer func() {
			stopRecorder()
			wg.Wait()
		}()
		log.Info("connectivity journal enabled", "path", cfg.Database.Path)
	}

	// Telemetry
	var influx *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influx, err = influxdb.Connect(ctx, cfg.InfluxDB, cfg.Node.Name)
		if err != nil {
			log.Warn("influxdb unavailable, telemetry disabled", "error", err)
			influx = nil
		} else {
			influx.SetOnError(func(err error) {
				log.Warn("influxdb write failed", "error", err)
			})
			defer influx.Close()
			checks["influxdb"] = influx
		}
	}

	// Transport and message facade
	topics := mqtt.Topics{NodeID: cfg.Node.Name}
	mqttClient := mqtt.NewClient(cfg.MQTT, topics)
	mqttClient.SetLogger(log)
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	checks["mqtt"] = mqttClient

	disp := dispatch.New(mqttClient, dispatch.Options{
		DefaultQoS:    byte(cfg.MQTT.QoS), //nolint:gosec // validated to 0..2
		DebugMessages: cfg.MQTT.DebugMessages,
		Logger:        log,
	})

	// Network layer and recovery actions
	probe := network.NewInterfaceProbe(cfg.Network.Interface)
	recovery := network.NewCommand("disconnect-recovery", cfg.Recovery.DisconnectCommand, cfg.RecoveryTimeout(), log)

	var reassociator connectivity.Reassociator
	if cmd := network.NewCommand("reassociate", cfg.Network.ReassociateCommand, cfg.RecoveryTimeout(), log); cmd.Configured() {
		reassociator = network.NewCommandReassociator(cmd)
	}

	sup, err := connectivity.NewSupervisor(connectivity.Deps{
		Config: connectivity.Config{
			MaxRetry:                 cfg.Connectivity.MaxRetry,
			FastDisconnectManagement: cfg.Connectivity.FastDisconnectManagement,
			SingleShotFastEscalation: cfg.Connectivity.SingleShotFastEscalation,
			RetryDelay:               cfg.RetryDelay(),
			SettleDelay:              cfg.SettleDelay(),
			KeepAlive:                cfg.KeepAlive(),
		},
		Credentials: connectivity.Credentials{
			ClientID: cfg.ClientID(),
			Username: cfg.MQTT.Auth.Username,
			Password: cfg.MQTT.Auth.Password,
		},
		Transport:    mqttClient,
		Probe:        probe,
		Reassociator: reassociator,
		Callbacks: connectivity.Callbacks{
			DisconnectionRecovery: func() {
				if !recovery.Configured() {
					log.Warn("connectivity lost too long, no disconnect command configured")
					return
				}
				//nolint:errcheck // failures are logged by the command
				recovery.Run(ctx)
			},
			ReconnectSubscriptions: func() {
				if err := disp.RestoreSubscriptions(); err != nil {
					log.Warn("subscriptions not fully restored", "error", err)
				}
			},
		},
		Logger: log,
	})
	if err != nil {
		return fmt.Errorf("creating supervisor: %w", err)
	}

	var bootRecorder node.BootRecorder
	if recorder != nil {
		sup.AddObserver(recorder)
		bootRecorder = recorder
	}
	if influx != nil {
		sup.AddObserver(influx)
	}

	n, err := node.New(node.Deps{
		Name:              cfg.Node.Name,
		Version:           version,
		NetworkConfigured: cfg.Network.Configured(),
		LoopInterval:      cfg.LoopInterval(),
		Supervisor:        sup,
		Dispatcher:        disp,
		Journal:           bootRecorder,
		Logger:            log,
	})
	if err != nil {
		return fmt.Errorf("creating node: %w", err)
	}
	if err := n.Setup(ctx); err != nil {
		if errors.Is(err, node.ErrNotProvisioned) {
			return fmt.Errorf("%w: set network.ssid or GRAYLOGIC_NODE_WIFI_SSID", err)
		}
		return fmt.Errorf("node setup: %w", err)
	}

	n.AddDuty(node.NewStateReporter(node.StateReporterConfig{
		Name:         cfg.Node.Name,
		Version:      version,
		StateTopic:   topics.State(),
		TimeTopic:    topics.SystemTime(),
		CommandTopic: topics.Command(),
		Interval:     cfg.StateInterval(),
	}, disp, sup, probe, log))

	if influx != nil {
		n.AddDuty(telemetryDuty(influx, sup, telemetryInterval))
	}

	// Status API
	if cfg.API.Enabled {
		hub := api.NewHub(log)
		go hub.Run(ctx)
		sup.AddObserver(hub)

		server, err := api.New(api.Deps{
			Config:  cfg.API,
			Logger:  log,
			Status:  sup,
			Info:    probe,
			Journal: journalRepo,
			Hub:     hub,
			Checks:  checks,
			Name:    cfg.Node.Name,
			Version: version,
			Booted:  n.BootedAt(),
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
	}

	log.Info("Gray Logic Node started",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.ClientID(),
		"interface", cfg.Network.Interface,
	)

	if err := n.Run(ctx); err != nil {
		return fmt.Errorf("control loop: %w", err)
	}

	log.Info("shutting down Gray Logic Node")
	return nil
}

// statusWriter is the part of influxdb.Client the telemetry duty uses.
type statusWriter interface {
	WriteStatus(st connectivity.Status)
}

// telemetryDuty writes a supervisor status snapshot every interval.
func telemetryDuty(w statusWriter, src node.StatusSource, interval time.Duration) node.Duty {
	var next time.Time
	return node.DutyFunc(func(context.Context) {
		now := time.Now()
		if now.Before(next) {
			return
		}
		next = now.Add(interval)
		w.WriteStatus(src.Status())
	})
}
