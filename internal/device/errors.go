package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrInvalidEntity) {
//	    // handle validation failure
//	}
var (
	// ErrInvalidEntity is returned when a configured device fails
	// semantic validation.
	ErrInvalidEntity = errors.New("device: invalid entity")

	// ErrSenderConflict is returned when sender id assignments collide
	// or fall outside their gateway's address range.
	ErrSenderConflict = errors.New("device: sender conflict")

	// ErrUnknownGateway is returned when a device references a gateway
	// id that is not configured.
	ErrUnknownGateway = errors.New("device: unknown gateway")
)
