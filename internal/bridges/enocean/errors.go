package enocean

import "errors"

// Domain errors for the EnOcean bridge package.
var (
	// ErrInvalidConfig is returned when gateway configuration is malformed
	// (bad base id, missing required field, duplicate gateway id). Setup
	// fails eagerly on this error; it is never deferred to the first send.
	ErrInvalidConfig = errors.New("enocean: invalid configuration")

	// ErrNotConnected is returned when an operation requires a connection
	// but the transport is not connected.
	ErrNotConnected = errors.New("enocean: not connected")

	// ErrConnectionFailed is returned when establishing the transport
	// link fails.
	ErrConnectionFailed = errors.New("enocean: connection failed")

	// ErrWriteFailed is returned when writing a frame to the link fails.
	ErrWriteFailed = errors.New("enocean: write failed")

	// ErrInvalidFrame is returned when a received byte sequence is not a
	// valid ESP2 frame (bad sync, bad checksum, truncated).
	ErrInvalidFrame = errors.New("enocean: invalid frame")

	// ErrInvalidAddress is returned when an address expression string
	// cannot be parsed.
	ErrInvalidAddress = errors.New("enocean: invalid address")

	// ErrInvalidProfile is returned when an EEP identifier is not in the
	// supported set.
	ErrInvalidProfile = errors.New("enocean: invalid profile")

	// ErrProfileMismatch is returned when a telegram cannot carry the
	// requested profile (wrong ORG or otherwise unrepresentable). Listeners
	// treat it as "not for me" and ignore the telegram.
	ErrProfileMismatch = errors.New("enocean: telegram does not match profile")

	// ErrDecodeFailed is returned when a telegram has the right shape for
	// a profile but its payload cannot be decoded.
	ErrDecodeFailed = errors.New("enocean: decode failed")

	// ErrSenderOutOfRange is returned when an outbound sender id is not
	// within the gateway's base id range.
	ErrSenderOutOfRange = errors.New("enocean: sender id outside base id range")

	// ErrTeachInDisabled is returned when a teach-in telegram is requested
	// but teach-in is disabled for the gateway.
	ErrTeachInDisabled = errors.New("enocean: teach-in disabled")

	// ErrGatewayClosed is returned when an operation is attempted on a
	// gateway that has been unloaded.
	ErrGatewayClosed = errors.New("enocean: gateway closed")

	// ErrDuplicateGateway is returned when two gateways are registered
	// under the same id.
	ErrDuplicateGateway = errors.New("enocean: duplicate gateway id")
)
