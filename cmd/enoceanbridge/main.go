// EnOcean Bridge - Eltako gateway to MQTT adapter
//
// This is the main entry point for the EnOcean bridge service. It
// connects Eltako series 14 gateways (serial or LAN) to an MQTT broker,
// translating ESP2 telegrams into state messages and MQTT commands into
// telegrams.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jtjart/enocean-bridge/internal/bridges/enocean"
	"github.com/jtjart/enocean-bridge/internal/device"
	"github.com/jtjart/enocean-bridge/internal/infrastructure/config"
	"github.com/jtjart/enocean-bridge/internal/infrastructure/logging"
	"github.com/jtjart/enocean-bridge/internal/infrastructure/mqtt"
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
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
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
	log.Info("starting EnOcean bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Build the entity registry. All config problems surface here in a
	// single pass, before anything touches hardware.
	entities, err := device.BuildEntities(cfg)
	if err != nil {
		return fmt.Errorf("building entity registry: %w", err)
	}
	log.Info("entity registry built", "devices", len(entities))

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
	mqttClient.SetLogger(log)
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Create and start the gateways
	manager, err := startGateways(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("starting gateways: %w", err)
	}
	defer func() {
		log.Info("closing gateways")
		if closeErr := manager.CloseAll(); closeErr != nil {
			log.Error("error closing gateways", "error", closeErr)
		}
	}()

	// Create and start the bridge
	bridge, err := enocean.NewBridge(enocean.BridgeOptions{
		ServiceID:      cfg.Service.ID,
		Version:        version,
		Manager:        manager,
		MQTTClient:     &mqttBridgeAdapter{client: mqttClient},
		Bindings:       device.Bindings(entities),
		HealthInterval: cfg.GetHealthInterval(),
		Logger:         log,
	})
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}
	if err := bridge.Start(ctx); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	defer func() {
		log.Info("stopping bridge")
		bridge.Stop()
	}()

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// 1. Bridge
	// 2. Gateways
	// 3. MQTT

	log.Info("EnOcean bridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses ENOCEAN_BRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("ENOCEAN_BRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// startGateways builds a gateway per configured transceiver and starts
// them all. With reconnection enabled a gateway whose initial connect
// fails stays in its retry loop rather than aborting startup, so one
// unplugged USB stick does not take down the rest.
func startGateways(ctx context.Context, cfg *config.Config, log *logging.Logger) (*enocean.Manager, error) {
	manager := enocean.NewManager()

	for _, gc := range cfg.Gateways {
		gw, err := enocean.NewGatewayFromConfig(gc, log)
		if err != nil {
			_ = manager.CloseAll()
			return nil, err
		}
		if err := manager.Add(gw); err != nil {
			_ = manager.CloseAll()
			return nil, err
		}

		if err := gw.Start(ctx); err != nil {
			_ = manager.CloseAll()
			return nil, fmt.Errorf("gateway %q: %w", gc.ID, err)
		}
		log.Info("gateway started",
			"gateway", gc.ID,
			"device_type", gc.DeviceType,
			"base_id", gc.BaseID,
		)
	}

	return manager, nil
}

// mqttBridgeAdapter adapts the infrastructure MQTT client to the
// bridge's MQTTClient interface. The Subscribe handler types differ
// only in name (mqtt.Handler vs a bare func), which Go treats as
// distinct method signatures.
type mqttBridgeAdapter struct {
	client *mqtt.Client
}

// Publish implements enocean.MQTTClient.
func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements enocean.MQTTClient.
func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error {
	return a.client.Subscribe(topic, qos, handler)
}

// IsConnected implements enocean.MQTTClient.
func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}
