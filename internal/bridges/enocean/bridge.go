package enocean

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jtjart/enocean-bridge/internal/infrastructure/mqtt"
)

// Bridge operation constants.
const (
	// commandTopicParts is the number of parts in a command topic:
	// enocean/command/{gateway}/{device}.
	commandTopicParts = 4

	// commandTimeout bounds how long a queued command may wait for the
	// radio bus.
	commandTimeout = 5 * time.Second
)

// EntityBinding ties one logical device to a gateway, an address, and
// the profiles used to decode its telegrams and command it.
type EntityBinding struct {
	// DeviceID is the logical device identifier used in MQTT topics.
	DeviceID string

	// Name is a human-readable label.
	Name string

	// GatewayID names the gateway the device is reached through.
	GatewayID string

	// Platform is the entity kind: switch, light, or sensor.
	Platform string

	// Address is where the device's telegrams come from. May carry a
	// discriminator for dual rocker halves.
	Address AddressExpression

	// Profile decodes the device's telegrams.
	Profile Profile

	// Sender is the simulated sender id used to command actuators.
	// Zero for sensors.
	Sender DeviceID

	// SenderProfile selects how commands are encoded. Zero for sensors.
	SenderProfile Profile
}

// IsActuator reports whether the binding accepts commands.
func (e EntityBinding) IsActuator() bool {
	return e.Platform == "switch" || e.Platform == "light"
}

// Bridge orchestrates bidirectional translation between the radio bus
// and MQTT. It handles:
//   - Receiving commands via MQTT and translating them to telegrams
//   - Receiving telegrams and publishing decoded state updates to MQTT
//   - Publishing gateway connection status transitions
//   - Health reporting and graceful shutdown
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	serviceID string
	version   string
	manager   *Manager
	mqtt      MQTTClient
	health    *HealthReporter

	// Entity lookups (built in Start from the bindings)
	bindings  map[string]map[string]EntityBinding // gateway id -> device id -> binding
	bindingMu sync.RWMutex

	// Registered listeners and subscriptions, released on Stop
	listeners  map[*Gateway][]*Listener
	statusSubs map[*Gateway]*StatusSubscription

	// State cache for change detection
	stateCache   map[string]map[string]any // device id -> last published state
	stateCacheMu sync.RWMutex

	// Shutdown coordination
	done      chan struct{}
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc

	logger   Logger
	loggerMu sync.RWMutex
}

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// ServiceID identifies this bridge instance.
	ServiceID string

	// Version is the bridge software version, reported in health.
	Version string

	// Manager holds the gateways the bridge serves.
	Manager *Manager

	// MQTTClient is the MQTT client implementation.
	MQTTClient MQTTClient

	// Bindings are the configured entities.
	Bindings []EntityBinding

	// HealthInterval is how often to publish health status.
	HealthInterval time.Duration

	// Logger is optional structured logger.
	Logger Logger
}

// NewBridge creates a new bridge instance.
// Call Start() to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.Manager == nil {
		return nil, fmt.Errorf("%w: manager is required", ErrInvalidConfig)
	}
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("%w: MQTT client is required", ErrInvalidConfig)
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		serviceID:  opts.ServiceID,
		version:    opts.Version,
		manager:    opts.Manager,
		mqtt:       opts.MQTTClient,
		bindings:   make(map[string]map[string]EntityBinding),
		listeners:  make(map[*Gateway][]*Listener),
		statusSubs: make(map[*Gateway]*StatusSubscription),
		stateCache: make(map[string]map[string]any),
		done:       make(chan struct{}),
		ctx:        ctx,
		ctxCancel:  ctxCancel,
		logger:     opts.Logger,
	}

	for _, binding := range opts.Bindings {
		if _, ok := b.manager.Get(binding.GatewayID); !ok {
			ctxCancel()
			return nil, fmt.Errorf("%w: device %q references unknown gateway %q",
				ErrInvalidConfig, binding.DeviceID, binding.GatewayID)
		}
		perGateway := b.bindings[binding.GatewayID]
		if perGateway == nil {
			perGateway = make(map[string]EntityBinding)
			b.bindings[binding.GatewayID] = perGateway
		}
		perGateway[binding.DeviceID] = binding
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		Manager:   opts.Manager,
		Version:   opts.Version,
		Interval:  opts.HealthInterval,
		Publisher: opts.MQTTClient,
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}
	for gwID, perGateway := range b.bindings {
		b.health.SetDeviceCount(gwID, len(perGateway))
	}

	return b, nil
}

// Start begins bridge operation: registers a listener per entity,
// subscribes to gateway status transitions, subscribes to MQTT command
// topics, and starts health reporting.
func (b *Bridge) Start(ctx context.Context) error {
	for gwID, perGateway := range b.bindings {
		gw, ok := b.manager.Get(gwID)
		if !ok {
			return fmt.Errorf("%w: gateway %q disappeared", ErrInvalidConfig, gwID)
		}

		for _, binding := range perGateway {
			binding := binding
			l, err := gw.Register(binding.Address, binding.Profile, func(t Telegram) {
				b.handleTelegram(binding, t)
			})
			if err != nil {
				return fmt.Errorf("register %q on %q: %w", binding.DeviceID, gwID, err)
			}
			b.listeners[gw] = append(b.listeners[gw], l)
		}

		b.statusSubs[gw] = gw.SubscribeStatus(func(state ConnectionState) {
			b.publishGatewayStatus(gw.ID(), state)
		})
	}

	commandTopic := mqtt.Topics{}.AllCommands()
	if err := b.mqtt.Subscribe(commandTopic, 1, b.handleCommandMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logInfo("subscribed to commands", "topic", commandTopic)

	b.health.Start(ctx)

	entityCount := 0
	for _, perGateway := range b.bindings {
		entityCount += len(perGateway)
	}
	b.logInfo("bridge started",
		"service_id", b.serviceID,
		"gateways", b.manager.Len(),
		"devices", entityCount)

	return nil
}

// Stop gracefully shuts down the bridge: unregisters listeners, stops
// health reporting, and aborts in-flight commands.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.ctxCancel()

		for gw, listeners := range b.listeners {
			for _, l := range listeners {
				gw.Unregister(l)
			}
		}
		for gw, sub := range b.statusSubs {
			gw.UnsubscribeStatus(sub)
		}

		b.health.Stop()

		b.logInfo("bridge stopped")
	})
}

// handleCommandMessage routes an incoming MQTT command to its entity.
// The gateway and device ids come from the topic:
// enocean/command/{gateway}/{device}.
func (b *Bridge) handleCommandMessage(topic string, payload []byte) error {
	parts := strings.Split(topic, "/")
	if len(parts) != commandTopicParts {
		return fmt.Errorf("invalid command topic %q", topic)
	}
	gatewayID, deviceID := parts[2], parts[3]

	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.logError("failed to parse command", err)
		return err
	}
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	if cmd.DeviceID == "" {
		cmd.DeviceID = deviceID
	}

	b.logInfo("received command",
		"command_id", cmd.ID,
		"gateway", gatewayID,
		"device_id", deviceID,
		"command", cmd.Command)

	b.bindingMu.RLock()
	binding, ok := b.bindings[gatewayID][deviceID]
	b.bindingMu.RUnlock()

	if !ok {
		b.publishAckError(cmd, gatewayID, "", ErrCodeUnknownDevice,
			fmt.Sprintf("device %s not configured on gateway %s", deviceID, gatewayID))
		return nil
	}

	gw, ok := b.manager.Get(gatewayID)
	if !ok {
		b.publishAckError(cmd, gatewayID, binding.Address.ID.String(),
			ErrCodeBridgeError, fmt.Sprintf("gateway %s not running", gatewayID))
		return nil
	}

	// Errors are reported via the ack topic, not back to paho.
	b.executeCommand(gw, binding, cmd)
	return nil
}

// executeCommand translates a command into telegrams and sends them.
func (b *Bridge) executeCommand(gw *Gateway, binding EntityBinding, cmd CommandMessage) {
	address := binding.Address.ID.String()

	if cmd.Command == "teach_in" {
		b.executeTeachIn(gw, binding, cmd)
		return
	}

	if !binding.IsActuator() {
		b.publishAckError(cmd, gw.ID(), address, ErrCodeInvalidCommand,
			fmt.Sprintf("%s entities do not accept commands", binding.Platform))
		return
	}

	var on bool
	switch cmd.Command {
	case "on":
		on = true
	case "off":
		on = false
	case "toggle":
		on = !b.cachedOn(binding.DeviceID)
	default:
		b.publishAckError(cmd, gw.ID(), address, ErrCodeInvalidCommand,
			fmt.Sprintf("unknown command: %s", cmd.Command))
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	if err := b.sendSwitching(ctx, gw, binding, on); err != nil {
		code := ErrCodeWriteFailed
		if gw.State() != StateConnected {
			code = ErrCodeGatewayOffline
		}
		b.publishAckError(cmd, gw.ID(), address, code, err.Error())
		return
	}

	b.publishAck(cmd, gw.ID(), address, AckAccepted)

	// Actuators with a status profile confirm over the air; for the rest
	// the command itself is the best state we will get.
	if binding.Profile != ProfileM5_38_08 {
		b.publishState(binding, map[string]any{"on": on})
	}
}

// sendSwitching emits the telegrams that switch an actuator, encoded
// per the configured sender profile. Rocker senders emulate a button
// press followed by the release, central command senders use a single
// 4BS telegram.
func (b *Bridge) sendSwitching(ctx context.Context, gw *Gateway, binding EntityBinding, on bool) error {
	switch binding.SenderProfile {
	case ProfileF6_02_01, ProfileF6_02_02:
		button := ButtonFor(binding.Address.Discriminator, on)
		if err := gw.Send(ctx, EncodeRockerPress(binding.Sender, button)); err != nil {
			return err
		}
		return gw.Send(ctx, EncodeRockerRelease(binding.Sender))
	case ProfileA5_38_08:
		return gw.Send(ctx, EncodeCentralSwitching(binding.Sender, on))
	default:
		return fmt.Errorf("%w: sender profile %q cannot switch", ErrInvalidProfile, binding.SenderProfile)
	}
}

// executeTeachIn pairs the entity's sender with the physical device.
func (b *Bridge) executeTeachIn(gw *Gateway, binding EntityBinding, cmd CommandMessage) {
	address := binding.Address.ID.String()
	if !binding.IsActuator() {
		b.publishAckError(cmd, gw.ID(), address, ErrCodeInvalidCommand,
			"teach-in only applies to actuators")
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	if err := gw.SendTeachIn(ctx, binding.Sender); err != nil {
		b.publishAckError(cmd, gw.ID(), address, ErrCodeWriteFailed, err.Error())
		return
	}
	b.publishAck(cmd, gw.ID(), address, AckAccepted)
}

// cachedOn returns the last published on/off state for a device.
// Unknown devices read as off, so the first toggle turns them on.
func (b *Bridge) cachedOn(deviceID string) bool {
	b.stateCacheMu.RLock()
	defer b.stateCacheMu.RUnlock()
	on, _ := b.stateCache[deviceID]["on"].(bool)
	return on
}

// handleTelegram decodes a telegram for one entity and publishes the
// resulting state. Runs on the gateway read loop.
func (b *Bridge) handleTelegram(binding EntityBinding, t Telegram) {
	decoded, err := DecodeTelegram(binding.Profile, t)
	if err != nil {
		b.logDebug("telegram did not decode",
			"device_id", binding.DeviceID,
			"eep", binding.Profile.String(),
			"error", err.Error())
		return
	}

	state, ok := b.buildState(binding, decoded)
	if !ok {
		return
	}
	b.publishState(binding, state)
}

// buildState renders a decoded telegram into the entity's state map.
// Returns ok=false when the telegram belongs to the other half of a
// dual rocker and this entity should ignore it.
func (b *Bridge) buildState(binding EntityBinding, decoded DecodedTelegram) (map[string]any, bool) {
	switch v := decoded.(type) {
	case RockerAction:
		if v.Pressed {
			if d := binding.Address.Discriminator; d != "" && v.Button.Side() != d {
				return nil, false
			}
			if binding.IsActuator() {
				// A physical switch wired to a rocker flips on each
				// energy-bow press; the contact does not carry on/off.
				return map[string]any{"on": !b.cachedOn(binding.DeviceID)}, true
			}
			return map[string]any{
				"button":  v.Button.Side(),
				"on":      v.Button.On(),
				"pressed": true,
			}, true
		}
		if binding.IsActuator() {
			// The release just lets the energy bow back up.
			return nil, false
		}
		// Releases carry no button; they close out whichever press the
		// entity saw last.
		return map[string]any{"pressed": false}, true
	case ActuatorStatus:
		return map[string]any{"on": v.On}, true
	case CentralCommand:
		return map[string]any{"on": v.On}, true
	case ClimateReading:
		return map[string]any{
			"temperature": v.Temperature,
			"humidity":    v.Humidity,
		}, true
	default:
		return nil, false
	}
}

// publishState publishes a state message when it differs from the last
// published state for the device.
func (b *Bridge) publishState(binding EntityBinding, state map[string]any) {
	if b.stateUnchanged(binding.DeviceID, state) {
		return
	}

	msg := NewStateMessage(binding.DeviceID, binding.GatewayID,
		binding.Address.ID.String(), binding.Profile, state)

	payload, err := json.Marshal(msg)
	if err != nil {
		b.logError("failed to marshal state", err)
		return
	}

	topic := mqtt.Topics{}.State(binding.GatewayID, binding.DeviceID)
	if err := b.mqtt.Publish(topic, payload, 1, true); err != nil {
		b.logError("failed to publish state", err)
	}
}

// stateUnchanged checks the new state against the cache, updating the
// cache when it differs. Returns true when unchanged (skip publish).
func (b *Bridge) stateUnchanged(deviceID string, state map[string]any) bool {
	b.stateCacheMu.Lock()
	defer b.stateCacheMu.Unlock()

	if statesEqual(b.stateCache[deviceID], state) {
		return true
	}

	// Merge rather than replace, so a release ({"pressed": false}) does
	// not erase the cached on/off used by toggle.
	cached := b.stateCache[deviceID]
	if cached == nil {
		cached = make(map[string]any)
		b.stateCache[deviceID] = cached
	}
	for k, v := range state {
		cached[k] = v
	}
	return false
}

// statesEqual compares a published state against the cache.
// State values are bool, string, or float64, all ==-comparable.
func statesEqual(cached, state map[string]any) bool {
	if cached == nil {
		return false
	}
	for k, v := range state {
		if cached[k] != v {
			return false
		}
	}
	return true
}

// ClearStateCache removes all entries from the state cache.
func (b *Bridge) ClearStateCache() {
	b.stateCacheMu.Lock()
	defer b.stateCacheMu.Unlock()
	b.stateCache = make(map[string]map[string]any)
}

// publishGatewayStatus publishes a gateway connection transition.
// Retained so late subscribers see the current state.
func (b *Bridge) publishGatewayStatus(gatewayID string, state ConnectionState) {
	msg := NewGatewayStatusMessage(gatewayID, state)

	payload, err := json.Marshal(msg)
	if err != nil {
		b.logError("failed to marshal gateway status", err)
		return
	}

	topic := mqtt.Topics{}.GatewayStatus(gatewayID)
	if err := b.mqtt.Publish(topic, payload, 1, true); err != nil {
		b.logError("failed to publish gateway status", err)
	}
}

// publishAck publishes a command acknowledgment.
func (b *Bridge) publishAck(cmd CommandMessage, gatewayID, address string, status AckStatus) {
	ack := NewAckMessage(cmd, status, gatewayID, address)
	b.publishAckMessage(gatewayID, cmd.DeviceID, ack)
}

// publishAckError publishes a failed command acknowledgment.
func (b *Bridge) publishAckError(cmd CommandMessage, gatewayID, address, code, message string) {
	ack := NewAckError(cmd, gatewayID, address, code, message)
	b.publishAckMessage(gatewayID, cmd.DeviceID, ack)

	b.logError("command failed",
		fmt.Errorf("code=%s message=%s", code, message))
}

func (b *Bridge) publishAckMessage(gatewayID, deviceID string, ack AckMessage) {
	payload, err := json.Marshal(ack)
	if err != nil {
		b.logError("failed to marshal ack", err)
		return
	}

	topic := mqtt.Topics{}.Ack(gatewayID, deviceID)
	if err := b.mqtt.Publish(topic, payload, 1, false); err != nil {
		b.logError("failed to publish ack", err)
	}
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()

	if b.health != nil {
		b.health.SetLogger(logger)
	}
}

// logInfo logs an info message if logger is set.
func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (b *Bridge) logError(msg string, err error) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}

// logDebug logs a debug message if logger is set.
func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}
