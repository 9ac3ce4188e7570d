package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	originalEnv := os.Getenv("ENOCEAN_BRIDGE_CONFIG")
	defer os.Setenv("ENOCEAN_BRIDGE_CONFIG", originalEnv)

	os.Setenv("ENOCEAN_BRIDGE_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("error = %v, want config load failure", err)
	}
}

// TestRun_InvalidEntityConfig verifies run fails before touching any
// hardware when a device's sender falls outside its gateway's range.
func TestRun_InvalidEntityConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	configContent := `
service:
  id: test-bridge

mqtt:
  broker:
    host: "127.0.0.1"
    port: 1883
    client_id: "test-client"
    tls: false
  qos: 1
  reconnect:
    initial_delay: 1
    max_delay: 60

logging:
  level: info
  format: text
  output: stdout

gateways:
  - id: gw1
    device_type: fam-usb
    serial_path: /dev/ttyUSB0
    base_id: FF-AA-80-00

devices:
  - id: office-light
    gateway: gw1
    platform: light
    address: 00-00-00-05
    eep: M5-38-08
    sender:
      address: FF-AA-90-00
      eep: A5-38-08
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("ENOCEAN_BRIDGE_CONFIG")
	defer os.Setenv("ENOCEAN_BRIDGE_CONFIG", originalEnv)
	os.Setenv("ENOCEAN_BRIDGE_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with sender out of range")
	}
	if !strings.Contains(err.Error(), "entity registry") {
		t.Errorf("error = %v, want entity registry failure", err)
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	originalEnv := os.Getenv("ENOCEAN_BRIDGE_CONFIG")
	defer os.Setenv("ENOCEAN_BRIDGE_CONFIG", originalEnv)

	os.Unsetenv("ENOCEAN_BRIDGE_CONFIG")

	path := getConfigPath()
	if path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	originalEnv := os.Getenv("ENOCEAN_BRIDGE_CONFIG")
	defer os.Setenv("ENOCEAN_BRIDGE_CONFIG", originalEnv)

	expected := "/custom/path/config.yaml"
	os.Setenv("ENOCEAN_BRIDGE_CONFIG", expected)

	path := getConfigPath()
	if path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}
