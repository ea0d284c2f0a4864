// Gray Logic Node - networked push-button and message node.
//
// The node joins a wireless network, keeps a session with an MQTT broker,
// publishes button presses and HTTP-submitted commands, and runs everything
// that touches connection state on one cooperative event loop fed to a
// watchdog.
//
// Usage:
//
//	glnode                                  run with GLNODE_CONFIG or configs/config.yaml
//	glnode -config /etc/glnode/config.yaml  run with an explicit config file
//	glnode -token alice -scopes command     print a bearer token and exit
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/nerrad567/gray-logic-node/migrations"

	"github.com/nerrad567/gray-logic-node/internal/api"
	"github.com/nerrad567/gray-logic-node/internal/auth"
	"github.com/nerrad567/gray-logic-node/internal/backoff"
	"github.com/nerrad567/gray-logic-node/internal/command"
	"github.com/nerrad567/gray-logic-node/internal/gpio"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-node/internal/input"
	"github.com/nerrad567/gray-logic-node/internal/journal"
	"github.com/nerrad567/gray-logic-node/internal/loop"
	"github.com/nerrad567/gray-logic-node/internal/network"
	"github.com/nerrad567/gray-logic-node/internal/radio"
	"github.com/nerrad567/gray-logic-node/internal/session"
	"github.com/nerrad567/gray-logic-node/internal/watchdog"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	// Default configuration file path
	defaultConfigPath = "configs/config.yaml"

	// recorderBuffer is the journal hand-off capacity.
	recorderBuffer = 256

	// queueReportInterval is how often queue depth goes to InfluxDB.
	queueReportInterval = 10 * time.Second

	// Exit codes.
	exitError    = 1
	exitWatchdog = 2
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, loop.ErrWatchdogViolation) {
			os.Exit(exitWatchdog)
		}
		os.Exit(exitError)
	}
}

// options are the command line flags.
type options struct {
	configPath string
	tokenFor   string
	scopes     string
	tokenTTL   time.Duration
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("glnode", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "", "config file (default $GLNODE_CONFIG or "+defaultConfigPath+")")
	fs.StringVar(&opts.tokenFor, "token", "", "print a bearer token for this subject and exit")
	fs.StringVar(&opts.scopes, "scopes", "command,read", "comma separated scopes for -token")
	fs.DurationVar(&opts.tokenTTL, "ttl", auth.DefaultTTL, "lifetime for -token")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.configPath == "" {
		opts.configPath = getConfigPath()
	}
	return opts, nil
}

// run is the actual application logic, separated from main for testability.
//
// Returns:
//   - error: nil on clean shutdown; loop.ErrWatchdogViolation when the event
//     loop stalled, in which case the hardware watchdog is left armed
func run(ctx context.Context, args []string, stdout io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	log := logging.Default()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if opts.tokenFor != "" {
		return printToken(stdout, cfg.Security.JWT.Secret, opts)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("starting Gray Logic Node",
		"version", version,
		"commit", commit,
		"build_date", date,
		"device_id", cfg.Device.ID,
		"config", opts.configPath,
	)

	// Database and journal
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: time.Duration(cfg.Database.BusyTimeout) * time.Second,
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
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	history := journal.NewRepository(db.DB, cfg.Database.Retain)
	recorder := journal.NewRecorder(recorderBuffer)
	recorder.SetLogger(log.With("component", "journal"))
	recorder.AddSink(history)

	hub := api.NewHub(cfg.WebSocket, log.With("component", "websocket"))
	recorder.AddSink(hub)

	influxClient, err := connectInflux(cfg, log)
	if err != nil {
		return err
	}
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		recorder.AddSink(influxClient)
	}

	// The recorder outlives the loop so the final transitions are stored;
	// it is stopped and drained before the database closes.
	recCtx, stopRecorder := context.WithCancel(context.Background())
	recorder.Start(recCtx)
	defer func() {
		stopRecorder()
		recorder.Wait()
	}()

	// Network
	rad := newRadio(cfg.Network)
	sup := network.NewSupervisor(rad, network.Config{
		ConnectTimeout: cfg.Network.ConnectTimeout,
		Retry:          retryConfig(cfg.Network.Retry),
	})
	sup.SetLogger(log.With("component", "network"))

	if err := sup.Connect(ctx, credentials(cfg.Network)); err != nil {
		// The supervisor has scheduled a retry; the loop carries on.
		log.Warn("initial association failed", "error", err)
	} else {
		log.Info("network associated", "ssid", cfg.Network.SSID, "driver", cfg.Network.Driver)
	}

	// Broker session
	transport := mqtt.New(cfg.MQTT, cfg.StatusTopic())
	transport.SetLogger(log.With("component", "mqtt"))
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := transport.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()

	mgr := session.NewManager(transport, func() bool { return sup.Status().Connected() }, session.Config{
		QueueCapacity:  cfg.MQTT.QueueCapacity,
		MaxAttempts:    cfg.MQTT.MaxAttempts,
		Retry:          retryConfig(cfg.MQTT.Retry),
		KeepAlive:      cfg.MQTT.KeepAlive,
		ConnectTimeout: cfg.MQTT.ConnectTimeout,
		PublishTimeout: cfg.MQTT.PublishTimeout,
	})
	mgr.SetLogger(log.With("component", "session"))

	qos := session.QoS(cfg.MQTT.QoS)
	if err := mgr.Subscribe(cfg.MQTT.Topic, session.AtLeastOnce); err != nil {
		return fmt.Errorf("subscribing to %s: %w", cfg.MQTT.Topic, err)
	}
	if cfg.MQTT.Greeting != "" {
		if err := mgr.Publish(session.NewMessage(cfg.MQTT.Topic, []byte(cfg.MQTT.Greeting), qos)); err != nil {
			return fmt.Errorf("queueing greeting: %w", err)
		}
	}

	if influxClient != nil {
		go influxClient.ReportQueue(ctx, queueReportInterval, mgr.QueueStats)
	}

	bridge := command.NewBridge(command.Config{
		Topic:     cfg.MQTT.Topic,
		QoS:       qos,
		MaxLength: cfg.Command.MaxLength,
		Buffer:    cfg.MQTT.QueueCapacity,
	})

	// Button
	button, err := openButton(cfg.Input)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := button.Close(); closeErr != nil {
			log.Error("error closing button", "error", closeErr)
		}
	}()
	log.Info("button ready", "driver", cfg.Input.Driver, "chip", cfg.Input.Chip, "line", cfg.Input.Line)

	// Watchdog last, so a slow startup cannot trip it.
	wd, err := watchdog.Open(cfg.Loop.WatchdogDevice)
	if err != nil {
		return err
	}

	// HTTP
	var telemetry api.Telemetry
	if influxClient != nil {
		telemetry = influxClient
	}
	srv, err := api.New(api.Deps{
		Config:    cfg.API,
		WS:        cfg.WebSocket,
		Security:  cfg.Security,
		Logger:    log.With("component", "api"),
		Commands:  bridge,
		Network:   sup,
		Session:   mgr,
		History:   history,
		Telemetry: telemetry,
		Hub:       hub,
		Version:   version,
		StartedAt: time.Now(),
	})
	if err != nil {
		return closeWatchdog(wd, fmt.Errorf("creating API server: %w", err))
	}
	if err := srv.Start(ctx); err != nil {
		return closeWatchdog(wd, fmt.Errorf("starting API server: %w", err))
	}
	defer func() {
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	if cfg.Security.JWT.Secret == "" {
		log.Warn("security.jwt.secret is empty, command ingress is unauthenticated")
	}

	lp := loop.New(loop.Deps{
		Network:    sup,
		Session:    mgr,
		Button:     button,
		Classifier: input.NewClassifier(input.Config{Debounce: cfg.Input.Debounce, LongPress: cfg.Input.LongPress}),
		Commands:   bridge.Pending(),
		Inbound:    transport.Inbound(),
		Recorder:   recorder,
		Watchdog:   wd,
	}, loop.Config{
		Tick:           cfg.Loop.Tick,
		WatchdogPeriod: cfg.Loop.WatchdogPeriod,
		FailedRetry:    cfg.MQTT.FailedRetry,
		EventTopic:     cfg.MQTT.Topic,
		EventQoS:       qos,
		ShortPayload:   cfg.Input.ShortPayload,
		LongPayload:    cfg.Input.LongPayload,
	})
	lp.SetLogger(log.With("component", "loop"))

	log.Info("initialisation complete, event loop running", "tick", cfg.Loop.Tick)

	if err := lp.Run(ctx); err != nil {
		if errors.Is(err, loop.ErrWatchdogViolation) {
			// Leave the watchdog armed: the hardware reset is the recovery.
			log.Error("event loop stalled, exiting with watchdog armed", "error", err)
			return err
		}
		return closeWatchdog(wd, err)
	}

	log.Info("shutdown signal received, cleaning up",
		"ticks", lp.Ticks(),
		"journal_dropped", recorder.Dropped(),
		"inbound_dropped", transport.InboundDropped(),
	)
	return closeWatchdog(wd, nil)
}

// getConfigPath returns the configuration file path.
// Uses GLNODE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GLNODE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// printToken mints a bearer token for operators and scripts.
func printToken(w io.Writer, secret string, opts options) error {
	var scopes []auth.Scope
	for _, s := range strings.Split(opts.scopes, ",") {
		switch sc := auth.Scope(strings.TrimSpace(s)); sc {
		case "":
		case auth.ScopeCommand, auth.ScopeRead:
			scopes = append(scopes, sc)
		default:
			return fmt.Errorf("unknown scope %q", sc)
		}
	}

	tok, err := auth.Generate(opts.tokenFor, secret, opts.tokenTTL, scopes...)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}
	_, err = fmt.Fprintln(w, tok)
	return err
}

func retryConfig(r config.RetryConfig) backoff.Config {
	return backoff.Config{Base: r.Base, Cap: r.Cap, Jitter: r.Jitter}
}

// credentials builds the association target. The none radio ignores it but
// the supervisor still validates it, so a placeholder SSID stands in.
func credentials(cfg config.NetworkConfig) network.Credentials {
	creds := network.Credentials{SSID: cfg.SSID, Passphrase: cfg.Passphrase}
	if cfg.Driver == "none" && creds.SSID == "" {
		creds.SSID = "none"
	}
	return creds
}

func newRadio(cfg config.NetworkConfig) network.Radio {
	if cfg.Driver == "none" {
		return radio.None{}
	}
	return radio.NewNMCLI(radio.NMCLIConfig{
		Binary:    cfg.NMCLIBinary,
		Interface: cfg.Interface,
		Timeout:   cfg.ConnectTimeout,
	})
}

func openButton(cfg config.InputConfig) (input.Source, error) {
	if cfg.Driver == "none" {
		return input.NoneSource{}, nil
	}
	btn, err := gpio.Open(gpio.Config{
		Chip:      cfg.Chip,
		Line:      cfg.Line,
		ActiveLow: cfg.ActiveLow,
		PullUp:    cfg.PullUp,
	})
	if err != nil {
		return nil, fmt.Errorf("opening button: %w", err)
	}
	return btn, nil
}

// connectInflux returns nil when telemetry is disabled.
func connectInflux(cfg *config.Config, log *logging.Logger) (*influxdb.Client, error) {
	if !cfg.InfluxDB.Enabled {
		log.Info("InfluxDB disabled")
		return nil, nil
	}
	client, err := influxdb.Connect(cfg.InfluxDB, cfg.Device.ID)
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected",
		"url", cfg.InfluxDB.URL,
		"org", cfg.InfluxDB.Org,
		"bucket", cfg.InfluxDB.Bucket,
	)
	return client, nil
}

// closeWatchdog disarms the watchdog and returns cause, or the close error
// when there was no cause.
func closeWatchdog(wd watchdog.Feeder, cause error) error {
	if err := wd.Close(); err != nil && cause == nil {
		return fmt.Errorf("closing watchdog: %w", err)
	}
	return cause
}
