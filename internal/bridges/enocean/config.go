package enocean

import (
	"fmt"
	"time"

	"github.com/jtjart/enocean-bridge/internal/infrastructure/config"
)

// DeviceType identifies the transceiver model a gateway talks to.
// The model determines the link type and serial baud rate.
type DeviceType string

const (
	// DeviceTypeFAM14 is the DIN rail bus master, serial at 57600 baud.
	DeviceTypeFAM14 DeviceType = "fam14"

	// DeviceTypeFGW14USB is the DIN rail USB gateway, serial at 57600 baud.
	DeviceTypeFGW14USB DeviceType = "fgw14-usb"

	// DeviceTypeFAMUSB is the USB stick transceiver, serial at 9600 baud.
	DeviceTypeFAMUSB DeviceType = "fam-usb"

	// DeviceTypeLAN is a TCP-attached gateway.
	DeviceTypeLAN DeviceType = "lan"
)

// ParseDeviceType validates a device type string from configuration.
func ParseDeviceType(s string) (DeviceType, error) {
	switch DeviceType(s) {
	case DeviceTypeFAM14, DeviceTypeFGW14USB, DeviceTypeFAMUSB, DeviceTypeLAN:
		return DeviceType(s), nil
	default:
		return "", fmt.Errorf("%w: unknown device type %q", ErrInvalidConfig, s)
	}
}

// BaudRate returns the serial speed for the device type.
// Zero for LAN gateways.
func (d DeviceType) BaudRate() int {
	switch d {
	case DeviceTypeFAM14, DeviceTypeFGW14USB:
		return 57600
	case DeviceTypeFAMUSB:
		return 9600
	default:
		return 0
	}
}

// IsSerial reports whether the device type attaches over a serial port.
func (d DeviceType) IsSerial() bool {
	return d != DeviceTypeLAN
}

// NewGatewayFromConfig builds a gateway from its configuration section.
//
// All semantic validation happens here, eagerly: an unknown device type,
// a malformed base id, or a bad port fails construction with
// ErrInvalidConfig instead of surfacing later as a runtime fault.
func NewGatewayFromConfig(cfg config.GatewayConfig, logger Logger) (*Gateway, error) {
	deviceType, err := ParseDeviceType(cfg.DeviceType)
	if err != nil {
		return nil, fmt.Errorf("gateway %q: %w", cfg.ID, err)
	}

	baseID, err := ParseDeviceID(cfg.BaseID)
	if err != nil {
		return nil, fmt.Errorf("gateway %q: %w: base id: %w", cfg.ID, ErrInvalidConfig, err)
	}

	dialer, err := dialerFor(deviceType, cfg)
	if err != nil {
		return nil, fmt.Errorf("gateway %q: %w", cfg.ID, err)
	}

	policy := ReconnectPolicy{
		Enabled: cfg.ReconnectEnabled(),
		Fixed:   cfg.FixedBackoff,
	}
	if cfg.ReconnectInterval > 0 {
		policy.Interval = time.Duration(cfg.ReconnectInterval) * time.Second
	}

	transport := NewTransport(dialer, policy, logger)

	opts := GatewayOptions{
		ID:      cfg.ID,
		Name:    cfg.Name,
		BaseID:  baseID,
		TeachIn: cfg.TeachIn,
	}
	if cfg.MessageDelayMS > 0 {
		opts.MessageDelay = time.Duration(cfg.MessageDelayMS) * time.Millisecond
	}

	return NewGateway(opts, transport, logger)
}

// dialerFor selects the link type for a device type.
func dialerFor(deviceType DeviceType, cfg config.GatewayConfig) (Dialer, error) {
	if deviceType.IsSerial() {
		if cfg.SerialPath == "" {
			return nil, fmt.Errorf("%w: serial path is required for %s", ErrInvalidConfig, deviceType)
		}
		return &SerialDialer{
			Path:     cfg.SerialPath,
			BaudRate: deviceType.BaudRate(),
		}, nil
	}

	if cfg.Address == "" {
		return nil, fmt.Errorf("%w: address is required for lan gateways", ErrInvalidConfig)
	}
	port := cfg.Port
	if port == 0 {
		port = DefaultLANPort
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, port)
	}
	return &TCPDialer{Host: cfg.Address, Port: port}, nil
}
