package mqtt

import "fmt"

// Topic prefixes for the EnOcean bridge.
//
// All device topics use the flat scheme: enocean/{category}/{gateway}/{device}
// where gateway is the configured gateway id and device is the logical
// device id.
const (
	// TopicPrefix is the base for all bridge topics.
	TopicPrefix = "enocean"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "enocean/system"
)

// Topics provides builders for the bridge's MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.State("gw1", "hall-switch")
//	// Returns: "enocean/state/gw1/hall-switch"
type Topics struct{}

// State returns the topic for device state updates.
//
// Example: enocean/state/gw1/hall-switch
func (Topics) State(gatewayID, deviceID string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, gatewayID, deviceID)
}

// Command returns the topic for commands to a device.
//
// Example: enocean/command/gw1/living-room-lamp
func (Topics) Command(gatewayID, deviceID string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, gatewayID, deviceID)
}

// Ack returns the topic for command acknowledgements.
//
// Example: enocean/ack/gw1/living-room-lamp
func (Topics) Ack(gatewayID, deviceID string) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefix, gatewayID, deviceID)
}

// Health returns the topic for a gateway's health status.
//
// Example: enocean/health/gw1
func (Topics) Health(gatewayID string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, gatewayID)
}

// GatewayStatus returns the topic for a gateway's connection status.
//
// Example: enocean/gateway/gw1/status
func (Topics) GatewayStatus(gatewayID string) string {
	return fmt.Sprintf("%s/gateway/%s/status", TopicPrefix, gatewayID)
}

// SystemStatus returns the bridge-wide status topic. The Last Will and
// Testament is registered here so subscribers see "offline" on a crash.
//
// Example: enocean/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllCommands returns a pattern matching commands to every device on
// every gateway.
//
// Pattern: enocean/command/+/+
func (Topics) AllCommands() string {
	return fmt.Sprintf("%s/command/+/+", TopicPrefix)
}

// GatewayCommands returns a pattern matching commands to every device
// on one gateway.
//
// Pattern: enocean/command/gw1/+
func (Topics) GatewayCommands(gatewayID string) string {
	return fmt.Sprintf("%s/command/%s/+", TopicPrefix, gatewayID)
}

// AllStates returns a pattern matching all device state updates.
//
// Pattern: enocean/state/+/+
func (Topics) AllStates() string {
	return fmt.Sprintf("%s/state/+/+", TopicPrefix)
}

// AllHealth returns a pattern matching all gateway health updates.
//
// Pattern: enocean/health/+
func (Topics) AllHealth() string {
	return fmt.Sprintf("%s/health/+", TopicPrefix)
}

// AllTopics returns a pattern matching every bridge topic.
// Use with caution, this receives ALL traffic.
//
// Pattern: enocean/#
func (Topics) AllTopics() string {
	return "enocean/#"
}
