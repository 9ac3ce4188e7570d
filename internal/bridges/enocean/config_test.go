package enocean

import (
	"errors"
	"testing"

	"github.com/jtjart/enocean-bridge/internal/infrastructure/config"
)

func TestParseDeviceType(t *testing.T) {
	tests := []struct {
		input   string
		want    DeviceType
		wantErr bool
	}{
		{input: "fam14", want: DeviceTypeFAM14},
		{input: "fgw14-usb", want: DeviceTypeFGW14USB},
		{input: "fam-usb", want: DeviceTypeFAMUSB},
		{input: "lan", want: DeviceTypeLAN},
		{input: "usb300", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDeviceType(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("ParseDeviceType(%q) error = %v, want ErrInvalidConfig", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDeviceType(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseDeviceType(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDeviceType_BaudRate(t *testing.T) {
	tests := []struct {
		deviceType DeviceType
		baud       int
		serial     bool
	}{
		{DeviceTypeFAM14, 57600, true},
		{DeviceTypeFGW14USB, 57600, true},
		{DeviceTypeFAMUSB, 9600, true},
		{DeviceTypeLAN, 0, false},
	}

	for _, tt := range tests {
		if got := tt.deviceType.BaudRate(); got != tt.baud {
			t.Errorf("%s BaudRate() = %d, want %d", tt.deviceType, got, tt.baud)
		}
		if got := tt.deviceType.IsSerial(); got != tt.serial {
			t.Errorf("%s IsSerial() = %v, want %v", tt.deviceType, got, tt.serial)
		}
	}
}

func serialGatewayConfig() config.GatewayConfig {
	return config.GatewayConfig{
		ID:         "gw1",
		DeviceType: "fam-usb",
		SerialPath: "/dev/ttyUSB0",
		BaseID:     "FF-AA-80-00",
	}
}

func TestNewGatewayFromConfig_Serial(t *testing.T) {
	gw, err := NewGatewayFromConfig(serialGatewayConfig(), nil)
	if err != nil {
		t.Fatalf("NewGatewayFromConfig() error = %v", err)
	}
	if gw.ID() != "gw1" {
		t.Errorf("ID() = %q, want gw1", gw.ID())
	}
	if gw.BaseID() != (DeviceID{0xFF, 0xAA, 0x80, 0x00}) {
		t.Errorf("BaseID() = %v, want FF-AA-80-00", gw.BaseID())
	}
}

func TestNewGatewayFromConfig_LAN(t *testing.T) {
	cfg := config.GatewayConfig{
		ID:         "lan1",
		DeviceType: "lan",
		Address:    "10.0.0.5",
		BaseID:     "FF-AA-80-00",
	}
	if _, err := NewGatewayFromConfig(cfg, nil); err != nil {
		t.Fatalf("NewGatewayFromConfig() error = %v", err)
	}
}

func TestNewGatewayFromConfig_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.GatewayConfig)
	}{
		{
			name:   "unknown device type",
			modify: func(c *config.GatewayConfig) { c.DeviceType = "usb300" },
		},
		{
			name:   "bad base id",
			modify: func(c *config.GatewayConfig) { c.BaseID = "not-hex" },
		},
		{
			name:   "missing serial path",
			modify: func(c *config.GatewayConfig) { c.SerialPath = "" },
		},
		{
			name: "lan without address",
			modify: func(c *config.GatewayConfig) {
				c.DeviceType = "lan"
				c.Address = ""
			},
		},
		{
			name: "lan port out of range",
			modify: func(c *config.GatewayConfig) {
				c.DeviceType = "lan"
				c.Address = "10.0.0.5"
				c.Port = 70000
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := serialGatewayConfig()
			tt.modify(&cfg)

			_, err := NewGatewayFromConfig(cfg, nil)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("NewGatewayFromConfig() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}
