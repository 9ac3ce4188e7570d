package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the EnOcean bridge.
// All configuration is loaded from YAML and can be overridden by
// environment variables.
type Config struct {
	Service  ServiceConfig   `yaml:"service"`
	MQTT     MQTTConfig      `yaml:"mqtt"`
	Logging  LoggingConfig   `yaml:"logging"`
	Gateways []GatewayConfig `yaml:"gateways"`
	Devices  []DeviceConfig  `yaml:"devices"`
}

// ServiceConfig contains service identity settings.
type ServiceConfig struct {
	// ID uniquely identifies this bridge instance. Used in the MQTT
	// client id and health reporting.
	ID string `yaml:"id"`

	// HealthInterval is how often to publish health status, in seconds.
	// Default: 30.
	HealthInterval int `yaml:"health_interval"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
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

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// String returns a representation with the password masked.
func (m MQTTConfig) String() string {
	password := ""
	if m.Auth.Password != "" {
		password = "[REDACTED]"
	}
	return fmt.Sprintf("MQTTConfig{Host:%q, Port:%d, ClientID:%q, Username:%q, Password:%s, QoS:%d}",
		m.Broker.Host, m.Broker.Port, m.Broker.ClientID, m.Auth.Username, password, m.QoS)
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// GatewayConfig describes one physical bus link.
type GatewayConfig struct {
	// ID uniquely identifies the gateway within this bridge. Used in
	// MQTT topics and logs.
	ID string `yaml:"id"`

	// Name is a human-readable label.
	Name string `yaml:"name"`

	// DeviceType selects the transceiver model: fam14, fgw14-usb,
	// fam-usb, or lan. The serial baud rate is derived from this.
	DeviceType string `yaml:"device_type"`

	// SerialPath is the device path for serial transceivers,
	// e.g. /dev/ttyUSB0.
	SerialPath string `yaml:"serial_path"`

	// Address is the hostname or IP for LAN gateways.
	Address string `yaml:"address"`

	// Port is the TCP port for LAN gateways. Default: 5100.
	Port int `yaml:"port"`

	// BaseID is the transceiver's own 4-byte address in "AA-BB-CC-DD"
	// form. Outbound sender ids must lie in base_id..base_id+127.
	BaseID string `yaml:"base_id"`

	// AutoReconnect enables reconnection when the link fails.
	// Default: true.
	AutoReconnect *bool `yaml:"auto_reconnect"`

	// ReconnectInterval is the initial delay between reconnection
	// attempts, in seconds. Default: 5.
	ReconnectInterval int `yaml:"reconnect_interval"`

	// FixedBackoff retries at ReconnectInterval forever instead of
	// backing off exponentially.
	FixedBackoff bool `yaml:"fixed_backoff"`

	// MessageDelayMS is the minimum spacing between outbound telegrams,
	// in milliseconds. Protects battery-powered receivers from bursts.
	// Default: 10.
	MessageDelayMS int `yaml:"message_delay_ms"`

	// TeachIn enables sending teach-in telegrams for pairing.
	TeachIn bool `yaml:"teach_in"`
}

// ReconnectEnabled returns the AutoReconnect setting with its default
// applied.
func (g GatewayConfig) ReconnectEnabled() bool {
	return g.AutoReconnect == nil || *g.AutoReconnect
}

// DeviceConfig describes one logical device reached through a gateway.
type DeviceConfig struct {
	// ID is the logical device identifier used in MQTT topics.
	ID string `yaml:"id"`

	// Name is a human-readable label.
	Name string `yaml:"name"`

	// Gateway is the id of the gateway this device is reached through.
	Gateway string `yaml:"gateway"`

	// Platform is the entity kind: switch, light, or sensor.
	Platform string `yaml:"platform"`

	// Address is the device's address expression, e.g. "FE-DB-0A-1B"
	// or "FE-DB-0A-1B left".
	Address string `yaml:"address"`

	// EEP is the profile the device's telegrams decode under,
	// e.g. "F6-02-01".
	EEP string `yaml:"eep"`

	// Sender is the simulated sender used to command actuators.
	// Required for switch and light platforms.
	Sender SenderConfig `yaml:"sender"`
}

// SenderConfig describes the sender id and profile used to command an
// actuator.
type SenderConfig struct {
	Address string `yaml:"address"`
	EEP     string `yaml:"eep"`
}

// Load reads configuration from a YAML file and applies environment
// variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: ENOCEAN_BRIDGE_SECTION_KEY
// For example: ENOCEAN_BRIDGE_MQTT_HOST, ENOCEAN_BRIDGE_LOG_LEVEL
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			ID:             "enocean-bridge",
			HealthInterval: 30,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "enocean-bridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the
// configuration.
func applyEnvOverrides(cfg *Config) {
	// Service
	if v := os.Getenv("ENOCEAN_BRIDGE_SERVICE_ID"); v != "" {
		cfg.Service.ID = v
	}

	// MQTT
	if v := os.Getenv("ENOCEAN_BRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("ENOCEAN_BRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("ENOCEAN_BRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Logging
	if v := os.Getenv("ENOCEAN_BRIDGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// GetHealthInterval returns the health publish interval as a Duration.
func (c *Config) GetHealthInterval() time.Duration {
	return time.Duration(c.Service.HealthInterval) * time.Second
}

// Validate checks the configuration for structural errors. All problems
// are collected and reported together rather than one at a time.
//
// Semantic checks on addresses and profiles happen later at gateway and
// entity construction, which still fails setup eagerly but with the more
// specific error.
//
// Returns:
//   - error: Description of all validation failures, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	errs = append(errs, c.validateService()...)
	errs = append(errs, c.validateMQTT()...)
	errs = append(errs, c.validateLogging()...)
	errs = append(errs, c.validateGateways()...)
	errs = append(errs, c.validateDevices()...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (c *Config) validateService() []string {
	var errs []string
	if c.Service.ID == "" {
		errs = append(errs, "service.id is required")
	}
	if c.Service.HealthInterval < 1 {
		errs = append(errs, "service.health_interval must be at least 1 second")
	}
	return errs
}

func (c *Config) validateMQTT() []string {
	var errs []string
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	return errs
}

func (c *Config) validateLogging() []string {
	var errs []string

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("logging.level %q is invalid (use debug, info, warn, or error)", c.Logging.Level))
	}

	switch c.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Sprintf("logging.format %q is invalid (use json or text)", c.Logging.Format))
	}

	return errs
}

var validDeviceTypes = map[string]bool{
	"fam14":     true,
	"fgw14-usb": true,
	"fam-usb":   true,
	"lan":       true,
}

func (c *Config) validateGateways() []string {
	var errs []string

	if len(c.Gateways) == 0 {
		errs = append(errs, "at least one gateway is required")
	}

	seen := make(map[string]bool)
	for i, gw := range c.Gateways {
		if gw.ID == "" {
			errs = append(errs, fmt.Sprintf("gateways[%d].id is required", i))
			continue
		}
		if seen[gw.ID] {
			errs = append(errs, fmt.Sprintf("gateways[%d].id %q is already used by another gateway", i, gw.ID))
		}
		seen[gw.ID] = true

		if !validDeviceTypes[gw.DeviceType] {
			errs = append(errs, fmt.Sprintf("gateways[%d].device_type %q is invalid (use fam14, fgw14-usb, fam-usb, or lan)", i, gw.DeviceType))
		}
		if gw.DeviceType == "lan" {
			if gw.Address == "" {
				errs = append(errs, fmt.Sprintf("gateways[%d].address is required for lan gateways", i))
			}
		} else if gw.SerialPath == "" {
			errs = append(errs, fmt.Sprintf("gateways[%d].serial_path is required for serial gateways", i))
		}
		if gw.BaseID == "" {
			errs = append(errs, fmt.Sprintf("gateways[%d].base_id is required", i))
		}
		if gw.MessageDelayMS < 0 {
			errs = append(errs, fmt.Sprintf("gateways[%d].message_delay_ms must not be negative", i))
		}
		if gw.ReconnectInterval < 0 {
			errs = append(errs, fmt.Sprintf("gateways[%d].reconnect_interval must not be negative", i))
		}
	}

	return errs
}

var validPlatforms = map[string]bool{
	"switch": true,
	"light":  true,
	"sensor": true,
}

// actuatorPlatforms are platforms that command a device and therefore
// need a configured sender.
var actuatorPlatforms = map[string]bool{
	"switch": true,
	"light":  true,
}

func (c *Config) validateDevices() []string {
	var errs []string

	gatewayIDs := make(map[string]bool, len(c.Gateways))
	for _, gw := range c.Gateways {
		gatewayIDs[gw.ID] = true
	}

	seen := make(map[string]bool)
	for i, dev := range c.Devices {
		if dev.ID == "" {
			errs = append(errs, fmt.Sprintf("devices[%d].id is required", i))
			continue
		}
		if seen[dev.ID] {
			errs = append(errs, fmt.Sprintf("devices[%d].id %q is already used by another device", i, dev.ID))
		}
		seen[dev.ID] = true

		if !gatewayIDs[dev.Gateway] {
			errs = append(errs, fmt.Sprintf("devices[%d].gateway %q is not a configured gateway", i, dev.Gateway))
		}
		if !validPlatforms[dev.Platform] {
			errs = append(errs, fmt.Sprintf("devices[%d].platform %q is invalid (use switch, light, or sensor)", i, dev.Platform))
		}
		if dev.Address == "" {
			errs = append(errs, fmt.Sprintf("devices[%d].address is required", i))
		}
		if dev.EEP == "" {
			errs = append(errs, fmt.Sprintf("devices[%d].eep is required", i))
		}
		if actuatorPlatforms[dev.Platform] {
			if dev.Sender.Address == "" {
				errs = append(errs, fmt.Sprintf("devices[%d].sender.address is required for %s platform", i, dev.Platform))
			}
			if dev.Sender.EEP == "" {
				errs = append(errs, fmt.Sprintf("devices[%d].sender.eep is required for %s platform", i, dev.Platform))
			}
		}
	}

	return errs
}
