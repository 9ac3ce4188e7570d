package enocean

import (
	"encoding/json"
	"fmt"
	"time"
)

// MQTT message types exchanged between the bridge and its consumers.

// CommandMessage is received on enocean/command/{gateway}/{device} to
// execute a device command.
type CommandMessage struct {
	// ID uniquely identifies this command for correlation with
	// acknowledgments. Generated by the sender; the bridge assigns one
	// when absent.
	ID string `json:"id"`

	// Timestamp is when the command was issued (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// DeviceID is the logical device identifier.
	DeviceID string `json:"device_id"`

	// Command is the command name ("on", "off", "toggle").
	Command string `json:"command"`

	// Parameters contains command-specific values.
	Parameters map[string]any `json:"parameters,omitempty"`

	// Source indicates where the command originated.
	Source string `json:"source,omitempty"`
}

// AckStatus represents the acknowledgment status of a command.
type AckStatus string

const (
	// AckAccepted indicates the command was transmitted on the radio bus.
	AckAccepted AckStatus = "accepted"

	// AckFailed indicates the command could not be executed.
	AckFailed AckStatus = "failed"
)

// AckMessage is published on enocean/ack/{gateway}/{device} to
// acknowledge a command.
type AckMessage struct {
	// CommandID is the ID from the original command.
	CommandID string `json:"command_id"`

	// Timestamp is when the acknowledgment was sent (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// DeviceID is the logical device identifier.
	DeviceID string `json:"device_id"`

	// Status indicates the acknowledgment status.
	Status AckStatus `json:"status"`

	// Gateway is the id of the gateway that carried the command.
	Gateway string `json:"gateway"`

	// Address is the target device address ("FE-DB-0A-1B").
	Address string `json:"address"`

	// Error contains details if status is "failed".
	Error *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	// Code is the error code (e.g., "GATEWAY_OFFLINE", "INVALID_COMMAND").
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`
}

// Error codes for command failures.
const (
	ErrCodeGatewayOffline    = "GATEWAY_OFFLINE"
	ErrCodeInvalidCommand    = "INVALID_COMMAND"
	ErrCodeInvalidParameters = "INVALID_PARAMETERS"
	ErrCodeUnknownDevice     = "UNKNOWN_DEVICE"
	ErrCodeWriteFailed       = "WRITE_FAILED"
	ErrCodeBridgeError       = "BRIDGE_ERROR"
)

// StateMessage is published on enocean/state/{gateway}/{device} when a
// device's state changes.
// QoS: 1, Retained: Yes
type StateMessage struct {
	// DeviceID is the logical device identifier.
	DeviceID string `json:"device_id"`

	// Timestamp is when the state was observed (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// State contains the current device state.
	// Structure depends on platform:
	//   Switch/light: {"on": true}
	//   Rocker:       {"button": "left", "on": true, "pressed": true}
	//   Climate:      {"temperature": 21.5, "humidity": 45.0}
	State map[string]any `json:"state"`

	// Gateway is the id of the gateway the telegram arrived on.
	Gateway string `json:"gateway"`

	// Address is the device address ("FE-DB-0A-1B").
	Address string `json:"address"`

	// EEP is the profile the state was decoded under.
	EEP string `json:"eep"`
}

// GatewayStatusMessage is published on enocean/gateway/{gateway}/status
// when the gateway's connection state changes.
// QoS: 1, Retained: Yes
type GatewayStatusMessage struct {
	// Gateway is the gateway id.
	Gateway string `json:"gateway"`

	// Timestamp is when the transition happened (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// State is the connection state ("disconnected", "connecting",
	// "connected", "error").
	State string `json:"state"`
}

// HealthStatus represents the operational status of a gateway.
type HealthStatus string

const (
	// HealthHealthy indicates the gateway link is up and telegrams flow.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates the link is up but reconnecting or silent.
	HealthDegraded HealthStatus = "degraded"

	// HealthUnhealthy indicates the link is down.
	HealthUnhealthy HealthStatus = "unhealthy"

	// HealthOffline indicates the bridge itself is gone (from LWT).
	HealthOffline HealthStatus = "offline"
)

// HealthMessage is published on enocean/health/{gateway} to report
// operational status.
// QoS: 1, Retained: Yes
// Interval: per service.health_interval (default 30 seconds)
type HealthMessage struct {
	// Gateway is the gateway id.
	Gateway string `json:"gateway"`

	// Timestamp is when the health status was generated (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Status indicates the current operational status.
	Status HealthStatus `json:"status"`

	// Version is the bridge software version.
	Version string `json:"version"`

	// UptimeSeconds is how long the bridge has been running.
	UptimeSeconds int64 `json:"uptime_seconds"`

	// Connection contains link details.
	Connection *ConnectionStatus `json:"connection,omitempty"`

	// Statistics contains operational metrics.
	Statistics *GatewayStatistics `json:"statistics,omitempty"`

	// DevicesManaged is the number of configured devices on the gateway.
	DevicesManaged int `json:"devices_managed"`

	// Reason explains the status (especially for degraded/unhealthy).
	Reason string `json:"reason,omitempty"`
}

// ConnectionStatus describes the gateway link state.
type ConnectionStatus struct {
	// State is the connection state name.
	State string `json:"state"`

	// LastMessage is when the most recent telegram arrived.
	LastMessage *time.Time `json:"last_message,omitempty"`
}

// GatewayStatistics contains operational metrics.
type GatewayStatistics struct {
	// TelegramsReceived is the total number of telegrams received.
	TelegramsReceived uint64 `json:"telegrams_received"`

	// TelegramsSent is the total number of telegrams sent.
	TelegramsSent uint64 `json:"telegrams_sent"`

	// FramesDropped is the number of frames that failed validation.
	FramesDropped uint64 `json:"frames_dropped"`

	// Errors is the total number of link errors encountered.
	Errors uint64 `json:"errors"`

	// Reconnects is the number of successful reconnections.
	Reconnects uint64 `json:"reconnects"`
}

// JSON marshalling helpers

// MarshalJSON marshals a CommandMessage with an RFC3339 timestamp.
func (m *CommandMessage) MarshalJSON() ([]byte, error) {
	type Alias CommandMessage
	return json.Marshal(&struct {
		*Alias
		Timestamp string `json:"timestamp"`
	}{
		Alias:     (*Alias)(m),
		Timestamp: m.Timestamp.UTC().Format(time.RFC3339),
	})
}

// UnmarshalJSON unmarshals a CommandMessage, tolerating a missing
// timestamp.
func (m *CommandMessage) UnmarshalJSON(data []byte) error {
	type Alias CommandMessage
	aux := &struct {
		*Alias
		Timestamp string `json:"timestamp"`
	}{
		Alias: (*Alias)(m),
	}
	if err := json.Unmarshal(data, aux); err != nil {
		return fmt.Errorf("unmarshal command message: %w", err)
	}
	if aux.Timestamp != "" {
		t, err := time.Parse(time.RFC3339, aux.Timestamp)
		if err != nil {
			return fmt.Errorf("parse timestamp: %w", err)
		}
		m.Timestamp = t
	}
	return nil
}

// NewAckMessage creates an acknowledgment message for a command.
func NewAckMessage(cmd CommandMessage, status AckStatus, gatewayID, address string) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		DeviceID:  cmd.DeviceID,
		Status:    status,
		Gateway:   gatewayID,
		Address:   address,
	}
}

// NewAckError creates an acknowledgment with error details.
func NewAckError(cmd CommandMessage, gatewayID, address, code, message string) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		DeviceID:  cmd.DeviceID,
		Status:    AckFailed,
		Gateway:   gatewayID,
		Address:   address,
		Error: &AckError{
			Code:    code,
			Message: message,
		},
	}
}

// NewStateMessage creates a state message for a device.
func NewStateMessage(deviceID, gatewayID, address string, profile Profile, state map[string]any) StateMessage {
	return StateMessage{
		DeviceID:  deviceID,
		Timestamp: time.Now().UTC(),
		State:     state,
		Gateway:   gatewayID,
		Address:   address,
		EEP:       profile.String(),
	}
}

// NewGatewayStatusMessage creates a connection status message.
func NewGatewayStatusMessage(gatewayID string, state ConnectionState) GatewayStatusMessage {
	return GatewayStatusMessage{
		Gateway:   gatewayID,
		Timestamp: time.Now().UTC(),
		State:     state.String(),
	}
}

// NewHealthMessage creates a health status message from gateway counters.
func NewHealthMessage(g *Gateway, version string, deviceCount int, startTime time.Time) HealthMessage {
	stats := g.Stats()
	state := g.State()

	msg := HealthMessage{
		Gateway:        g.ID(),
		Timestamp:      time.Now().UTC(),
		Status:         healthFor(state),
		Version:        version,
		UptimeSeconds:  int64(time.Since(startTime).Seconds()),
		DevicesManaged: deviceCount,
	}

	conn := &ConnectionStatus{State: state.String()}
	if last := g.LastMessageTime(); !last.IsZero() {
		conn.LastMessage = &last
	}
	msg.Connection = conn

	msg.Statistics = &GatewayStatistics{
		TelegramsReceived: stats.TelegramsRx,
		TelegramsSent:     stats.TelegramsTx,
		FramesDropped:     stats.Transport.FramesDropped,
		Errors:            stats.Transport.ErrorsTotal,
		Reconnects:        stats.Transport.ReconnectsTotal,
	}

	switch state {
	case StateConnecting:
		msg.Reason = "link reconnecting"
	case StateError:
		msg.Reason = "link down"
	case StateDisconnected:
		msg.Reason = "gateway closed"
	}

	return msg
}

// healthFor maps a connection state to an operational health status.
func healthFor(state ConnectionState) HealthStatus {
	switch state {
	case StateConnected:
		return HealthHealthy
	case StateConnecting:
		return HealthDegraded
	default:
		return HealthUnhealthy
	}
}
