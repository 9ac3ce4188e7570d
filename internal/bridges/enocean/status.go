package enocean

// ConnectionState describes the health of a gateway's bus link.
//
// Transitions:
//
//	Connecting → Connected    first frame or successful connect
//	Connected  → Error        I/O failure on the link
//	Error      → Connecting   reconnect attempt started
//	any        → Disconnected explicit unload
//
// Subscribers are notified exactly once per transition; setting the same
// state twice does not produce a second notification.
type ConnectionState int

const (
	// StateDisconnected means the gateway is not attempting to communicate.
	// This is the initial state and the terminal state after unload.
	StateDisconnected ConnectionState = iota

	// StateConnecting means a connection or reconnection attempt is in
	// progress.
	StateConnecting

	// StateConnected means the link is up and telegrams flow.
	StateConnected

	// StateError means the link failed and reconnection has not yet started
	// (or is disabled).
	StateError
)

// String returns the lowercase state name used in logs and MQTT payloads.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}
