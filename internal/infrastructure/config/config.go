package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for a Gray Logic node.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Network   NetworkConfig   `yaml:"network"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Input     InputConfig     `yaml:"input"`
	Command   CommandConfig   `yaml:"command"`
	Loop      LoopConfig      `yaml:"loop"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Database  DatabaseConfig  `yaml:"database"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// DeviceConfig identifies this node.
type DeviceConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`

	// TopicPrefix roots the status topic (<prefix>/status).
	TopicPrefix string `yaml:"topic_prefix"`
}

// RetryConfig shapes an exponential backoff.
type RetryConfig struct {
	Base   time.Duration `yaml:"base"`
	Cap    time.Duration `yaml:"cap"`
	Jitter float64       `yaml:"jitter"`
}

// NetworkConfig contains wireless association settings.
type NetworkConfig struct {
	// Driver selects the radio: "nmcli" or "none".
	Driver string `yaml:"driver"`

	Interface      string        `yaml:"interface"`
	SSID           string        `yaml:"ssid"`
	Passphrase     string        `yaml:"passphrase"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	Retry          RetryConfig   `yaml:"retry"`

	// NMCLIBinary overrides the nmcli executable path.
	NMCLIBinary string `yaml:"nmcli_binary"`
}

// MQTTConfig contains MQTT broker session settings.
type MQTTConfig struct {
	Broker MQTTBrokerConfig `yaml:"broker"`
	Auth   MQTTAuthConfig   `yaml:"auth"`

	// Topic is the fixed deployment topic. Commands and button events are
	// published here and the node subscribes to it.
	Topic string `yaml:"topic"`
	QoS   int    `yaml:"qos"`

	KeepAlive      time.Duration `yaml:"keepalive"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`

	// MaxAttempts is how many failed connects put the session in Failed.
	MaxAttempts int         `yaml:"max_attempts"`
	Retry       RetryConfig `yaml:"retry"`

	// FailedRetry is how long a Failed session waits before reopening.
	FailedRetry time.Duration `yaml:"failed_retry"`

	QueueCapacity int `yaml:"queue_capacity"`

	// Greeting is enqueued once at boot. Empty disables it.
	Greeting string `yaml:"greeting"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// InputConfig contains push button settings.
type InputConfig struct {
	// Driver selects the button source: "gpiocdev" or "none".
	Driver    string `yaml:"driver"`
	Chip      string `yaml:"chip"`
	Line      int    `yaml:"line"`
	ActiveLow bool   `yaml:"active_low"`
	PullUp    bool   `yaml:"pull_up"`

	Debounce  time.Duration `yaml:"debounce"`
	LongPress time.Duration `yaml:"long_press"`

	ShortPayload string `yaml:"short_payload"`
	LongPayload  string `yaml:"long_payload"`
}

// CommandConfig contains command ingress settings.
type CommandConfig struct {
	MaxLength int `yaml:"max_length"`
}

// LoopConfig contains event loop settings.
type LoopConfig struct {
	Tick           time.Duration `yaml:"tick"`
	WatchdogPeriod time.Duration `yaml:"watchdog_period"`

	// WatchdogDevice is a hardware watchdog such as /dev/watchdog.
	// Empty disables it.
	WatchdogDevice string `yaml:"watchdog_device"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// DatabaseConfig contains SQLite journal settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// Retain is how many journal notices are kept. 0 keeps everything.
	Retain int `yaml:"retain"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains the bearer token secret for command ingress.
// An empty secret leaves ingress open to the local network.
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GLNODE_SECTION_KEY
// For example: GLNODE_NETWORK_SSID, GLNODE_MQTT_PASSWORD
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			ID:          "node-01",
			Name:        "Gray Logic Node",
			TopicPrefix: "glnode/node-01",
		},
		Network: NetworkConfig{
			Driver:         "nmcli",
			Interface:      "wlan0",
			ConnectTimeout: 10 * time.Second,
			Retry: RetryConfig{
				Base:   1 * time.Second,
				Cap:    30 * time.Second,
				Jitter: 0.2,
			},
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "glnode-node-01",
			},
			Topic:          "glnode/node-01/message",
			QoS:            1,
			KeepAlive:      60 * time.Second,
			ConnectTimeout: 10 * time.Second,
			PublishTimeout: 500 * time.Millisecond,
			MaxAttempts:    5,
			Retry: RetryConfig{
				Base:   1 * time.Second,
				Cap:    30 * time.Second,
				Jitter: 0.2,
			},
			FailedRetry:   30 * time.Second,
			QueueCapacity: 16,
			Greeting:      "Hello World",
		},
		Input: InputConfig{
			Driver:       "gpiocdev",
			Chip:         "gpiochip0",
			Line:         17,
			ActiveLow:    true,
			PullUp:       true,
			Debounce:     50 * time.Millisecond,
			LongPress:    1000 * time.Millisecond,
			ShortPayload: "Hello",
			LongPayload:  "World",
		},
		Command: CommandConfig{
			MaxLength: 128,
		},
		Loop: LoopConfig{
			Tick:           10 * time.Millisecond,
			WatchdogPeriod: 1000 * time.Millisecond,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 4096,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Database: DatabaseConfig{
			Path:        "./data/glnode.db",
			WALMode:     true,
			BusyTimeout: 5,
			Retain:      10000,
		},
		InfluxDB: InfluxDBConfig{
			Org:           "graylogic",
			Bucket:        "glnode",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GLNODE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GLNODE_DEVICE_ID"); v != "" {
		cfg.Device.ID = v
	}

	// Network credentials (never commit the passphrase to the config file)
	if v := os.Getenv("GLNODE_NETWORK_SSID"); v != "" {
		cfg.Network.SSID = v
	}
	if v := os.Getenv("GLNODE_NETWORK_PASSPHRASE"); v != "" {
		cfg.Network.Passphrase = v
	}

	// MQTT
	if v := os.Getenv("GLNODE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GLNODE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GLNODE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("GLNODE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("GLNODE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("GLNODE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
	if v := os.Getenv("GLNODE_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Device.ID == "" {
		errs = append(errs, "device.id is required")
	}

	// Network
	switch c.Network.Driver {
	case "nmcli":
		if c.Network.SSID == "" {
			errs = append(errs, "network.ssid is required for the nmcli driver (set GLNODE_NETWORK_SSID)")
		}
		// Link state is read from sysfs by interface name.
		if c.Network.Interface == "" {
			errs = append(errs, "network.interface is required for the nmcli driver")
		}
	case "none":
	default:
		errs = append(errs, "network.driver must be nmcli or none")
	}
	errs = append(errs, c.Network.Retry.validate("network.retry")...)

	// MQTT
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.Topic == "" {
		errs = append(errs, "mqtt.topic is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 1 {
		errs = append(errs, "mqtt.qos must be 0 or 1")
	}
	if c.MQTT.QueueCapacity < 1 {
		errs = append(errs, "mqtt.queue_capacity must be at least 1")
	}
	// paho holds a publish for up to this long on a stalled socket.
	if c.MQTT.PublishTimeout <= 0 || c.MQTT.PublishTimeout >= c.Loop.WatchdogPeriod {
		errs = append(errs, "mqtt.publish_timeout must be positive and shorter than loop.watchdog_period")
	}
	if c.MQTT.MaxAttempts < 1 {
		errs = append(errs, "mqtt.max_attempts must be at least 1")
	}
	errs = append(errs, c.MQTT.Retry.validate("mqtt.retry")...)

	// Input
	switch c.Input.Driver {
	case "gpiocdev":
		if c.Input.Chip == "" || c.Input.Line < 0 {
			errs = append(errs, "input.chip and input.line are required for the gpiocdev driver")
		}
	case "none":
	default:
		errs = append(errs, "input.driver must be gpiocdev or none")
	}

	// Loop timing must sample the button faster than it debounces and
	// yield faster than the watchdog period.
	if c.Loop.Tick <= 0 {
		errs = append(errs, "loop.tick must be positive")
	} else {
		if c.Loop.Tick >= c.Input.Debounce {
			errs = append(errs, "loop.tick must be shorter than input.debounce")
		}
		if c.Loop.Tick >= c.Loop.WatchdogPeriod {
			errs = append(errs, "loop.tick must be shorter than loop.watchdog_period")
		}
	}
	if c.Input.LongPress <= c.Input.Debounce {
		errs = append(errs, "input.long_press must be longer than input.debounce")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	// The secret is optional, but a short one is worse than none because
	// it suggests protection that is not there.
	const minJWTSecretLength = 32
	if s := c.Security.JWT.Secret; s != "" && len(s) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (r RetryConfig) validate(section string) []string {
	var errs []string
	if r.Base <= 0 {
		errs = append(errs, section+".base must be positive")
	}
	if r.Cap < r.Base {
		errs = append(errs, section+".cap must not be less than base")
	}
	if r.Jitter < 0 || r.Jitter > 1 {
		errs = append(errs, section+".jitter must be between 0 and 1")
	}
	return errs
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// StatusTopic is where the node announces online/offline.
func (c *Config) StatusTopic() string {
	return strings.TrimSuffix(c.Device.TopicPrefix, "/") + "/status"
}
