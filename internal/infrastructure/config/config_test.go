package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_ValidConfig(t *testing.T) {
	// Create a temporary config file
	content := `
service:
  id: "test-bridge"
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
gateways:
  - id: "gw1"
    device_type: "fam14"
    serial_path: "/dev/ttyUSB0"
    base_id: "FF-AA-80-00"
devices:
  - id: "hall-switch"
    gateway: "gw1"
    platform: "sensor"
    address: "FE-DB-0A-1B left"
    eep: "F6-02-01"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Service.ID != "test-bridge" {
		t.Errorf("Service.ID = %q, want %q", cfg.Service.ID, "test-bridge")
	}

	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}

	if len(cfg.Gateways) != 1 || cfg.Gateways[0].BaseID != "FF-AA-80-00" {
		t.Errorf("Gateways = %+v, want one gateway with base id FF-AA-80-00", cfg.Gateways)
	}

	if len(cfg.Devices) != 1 || cfg.Devices[0].Address != "FE-DB-0A-1B left" {
		t.Errorf("Devices = %+v, want one device at FE-DB-0A-1B left", cfg.Devices)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

// validGateway returns a gateway config that passes validation.
func validGateway() GatewayConfig {
	return GatewayConfig{
		ID:         "gw1",
		DeviceType: "fam14",
		SerialPath: "/dev/ttyUSB0",
		BaseID:     "FF-AA-80-00",
	}
}

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Gateways = []GatewayConfig{validGateway()}
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing service id",
			mutate:  func(c *Config) { c.Service.ID = "" },
			wantErr: "service.id",
		},
		{
			name:    "invalid qos",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "logging.level",
		},
		{
			name:    "no gateways",
			mutate:  func(c *Config) { c.Gateways = nil },
			wantErr: "at least one gateway",
		},
		{
			name: "duplicate gateway id",
			mutate: func(c *Config) {
				c.Gateways = append(c.Gateways, validGateway())
			},
			wantErr: "already used",
		},
		{
			name: "unknown device type",
			mutate: func(c *Config) {
				c.Gateways[0].DeviceType = "fam99"
			},
			wantErr: "device_type",
		},
		{
			name: "lan gateway missing address",
			mutate: func(c *Config) {
				c.Gateways[0].DeviceType = "lan"
				c.Gateways[0].Address = ""
			},
			wantErr: "address is required for lan",
		},
		{
			name: "serial gateway missing path",
			mutate: func(c *Config) {
				c.Gateways[0].SerialPath = ""
			},
			wantErr: "serial_path",
		},
		{
			name: "missing base id",
			mutate: func(c *Config) {
				c.Gateways[0].BaseID = ""
			},
			wantErr: "base_id",
		},
		{
			name: "device references unknown gateway",
			mutate: func(c *Config) {
				c.Devices = []DeviceConfig{{
					ID: "lamp", Gateway: "nope", Platform: "sensor",
					Address: "00-00-00-01", EEP: "A5-04-02",
				}}
			},
			wantErr: "not a configured gateway",
		},
		{
			name: "switch without sender",
			mutate: func(c *Config) {
				c.Devices = []DeviceConfig{{
					ID: "lamp", Gateway: "gw1", Platform: "switch",
					Address: "00-00-00-01", EEP: "M5-38-08",
				}}
			},
			wantErr: "sender.address",
		},
		{
			name: "invalid platform",
			mutate: func(c *Config) {
				c.Devices = []DeviceConfig{{
					ID: "lamp", Gateway: "gw1", Platform: "thermostat",
					Address: "00-00-00-01", EEP: "A5-04-02",
				}}
			},
			wantErr: "platform",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Validate_AggregatesErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Service.ID = ""
	cfg.Gateways[0].BaseID = ""
	cfg.Gateways[0].SerialPath = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want error")
	}
	for _, want := range []string{"service.id", "base_id", "serial_path"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error = %v, want it to mention %q", err, want)
		}
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("ENOCEAN_BRIDGE_SERVICE_ID", "bridge-override")
	t.Setenv("ENOCEAN_BRIDGE_MQTT_HOST", "mqtt.example.com")
	t.Setenv("ENOCEAN_BRIDGE_MQTT_USERNAME", "testuser")
	t.Setenv("ENOCEAN_BRIDGE_MQTT_PASSWORD", "testpass")
	t.Setenv("ENOCEAN_BRIDGE_LOG_LEVEL", "debug")

	applyEnvOverrides(cfg)

	if cfg.Service.ID != "bridge-override" {
		t.Errorf("Service.ID = %q, want %q", cfg.Service.ID, "bridge-override")
	}

	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}

	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}

	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestMQTTConfig_StringRedactsPassword(t *testing.T) {
	cfg := MQTTConfig{
		Broker: MQTTBrokerConfig{Host: "localhost", Port: 1883},
		Auth:   MQTTAuthConfig{Username: "user", Password: "hunter2"},
	}

	s := cfg.String()
	if strings.Contains(s, "hunter2") {
		t.Errorf("String() = %q, must not contain the password", s)
	}
	if !strings.Contains(s, "[REDACTED]") {
		t.Errorf("String() = %q, want password marker", s)
	}
}

func TestGatewayConfig_ReconnectEnabled(t *testing.T) {
	gw := validGateway()
	if !gw.ReconnectEnabled() {
		t.Error("ReconnectEnabled() = false by default, want true")
	}

	off := false
	gw.AutoReconnect = &off
	if gw.ReconnectEnabled() {
		t.Error("ReconnectEnabled() = true with auto_reconnect: false")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Service.ID == "" {
		t.Error("defaultConfig should have non-empty Service.ID")
	}

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}

	if cfg.Service.HealthInterval != 30 {
		t.Errorf("defaultConfig Service.HealthInterval = %d, want 30", cfg.Service.HealthInterval)
	}
}
