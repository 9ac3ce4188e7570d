package mqtt

import "errors"

// Sentinel errors, checkable with errors.Is.
var (
	// ErrConnectionFailed wraps a failed initial broker handshake.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrNotConnected is returned for operations while the link is down.
	// Paho keeps retrying in the background; callers decide whether to
	// drop or retry the message.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrPublishFailed wraps publish rejections and timeouts.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed wraps subscribe rejections and timeouts.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")
)
