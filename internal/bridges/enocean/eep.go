package enocean

import (
	"fmt"
	"strings"
)

// Profile identifies the EnOcean Equipment Profile (EEP) governing how a
// telegram's payload bits are interpreted. The supported set is closed:
// each profile has exactly one DecodedTelegram variant, and decoding under
// the wrong profile fails with ErrProfileMismatch rather than silently
// misinterpreting bits.
type Profile string

// Supported profiles.
const (
	// ProfileF6_02_01 is a light and blind control rocker switch (type 1).
	ProfileF6_02_01 Profile = "F6-02-01"

	// ProfileF6_02_02 is a light and blind control rocker switch (type 2).
	// Same payload layout as F6-02-01.
	ProfileF6_02_02 Profile = "F6-02-02"

	// ProfileM5_38_08 is the Eltako actuator status telegram for switching
	// relays (FSR14 and relatives).
	ProfileM5_38_08 Profile = "M5-38-08"

	// ProfileA5_38_08 is central command gateway switching.
	ProfileA5_38_08 Profile = "A5-38-08"

	// ProfileA5_04_02 is a temperature and humidity sensor.
	ProfileA5_04_02 Profile = "A5-04-02"
)

// supportedProfiles is the closed decode set.
var supportedProfiles = map[Profile]struct{}{
	ProfileF6_02_01: {},
	ProfileF6_02_02: {},
	ProfileM5_38_08: {},
	ProfileA5_38_08: {},
	ProfileA5_04_02: {},
}

// ParseProfile parses an EEP identifier like "F6-02-01".
// Lowercase input and underscore separators are accepted.
func ParseProfile(s string) (Profile, error) {
	norm := Profile(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "_", "-")))
	if _, ok := supportedProfiles[norm]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidProfile, s)
	}
	return norm, nil
}

// String returns the canonical EEP identifier.
func (p Profile) String() string { return string(p) }

// DecodedTelegram is the closed tagged variant for decoded payloads: one
// case per supported profile, selected by explicit profile-tag dispatch in
// DecodeTelegram.
type DecodedTelegram interface {
	// Profile returns the EEP the payload was decoded under.
	Profile() Profile

	sealedDecoded()
}

// RockerButton identifies one of the four buttons of a dual rocker switch.
// The codes match the F6-02-0x first-action field.
type RockerButton byte

const (
	// ButtonLeftBottom is rocker A, bottom contact ("left off").
	ButtonLeftBottom RockerButton = 0

	// ButtonLeftTop is rocker A, top contact ("left on").
	ButtonLeftTop RockerButton = 1

	// ButtonRightBottom is rocker B, bottom contact ("right off").
	ButtonRightBottom RockerButton = 2

	// ButtonRightTop is rocker B, top contact ("right on").
	ButtonRightTop RockerButton = 3
)

// Side returns the discriminator value ("left" or "right") for the rocker
// half this button belongs to.
func (b RockerButton) Side() string {
	if b <= ButtonLeftTop {
		return "left"
	}
	return "right"
}

// On reports whether the button is a top ("on") contact.
func (b RockerButton) On() bool {
	return b == ButtonLeftTop || b == ButtonRightTop
}

// RockerAction is the decoded form of an F6-02-0x telegram.
type RockerAction struct {
	profile Profile

	// Button is the first action: which of the four contacts acted.
	Button RockerButton

	// Pressed is the energy bow flag: true while the button is held down,
	// false on the release telegram.
	Pressed bool

	// SecondButton is the second action, valid only if SecondValid is set
	// (both rockers operated at once).
	SecondButton RockerButton
	SecondValid  bool
}

func (r RockerAction) Profile() Profile { return r.profile }
func (RockerAction) sealedDecoded()     {}

// ActuatorStatus is the decoded form of an M5-38-08 telegram: the state an
// Eltako switching actuator reports after executing a command.
type ActuatorStatus struct {
	On bool
}

func (ActuatorStatus) Profile() Profile { return ProfileM5_38_08 }
func (ActuatorStatus) sealedDecoded()   {}

// CentralCommand is the decoded form of an A5-38-08 switching telegram.
type CentralCommand struct {
	On bool
}

func (CentralCommand) Profile() Profile { return ProfileA5_38_08 }
func (CentralCommand) sealedDecoded()   {}

// ClimateReading is the decoded form of an A5-04-02 telegram.
type ClimateReading struct {
	// Temperature in °C, range -20..+60.
	Temperature float64

	// Humidity in %, range 0..100.
	Humidity float64
}

func (ClimateReading) Profile() Profile { return ProfileA5_04_02 }
func (ClimateReading) sealedDecoded()   {}

// A5-38-08 payload constants.
const (
	centralCommandSwitching = 0x01

	// lrnDataBit distinguishes a data telegram (bit set) from a teach-in
	// telegram (bit clear) in 4BS DB0.
	lrnDataBit = 0x08
)

// M5-38-08 DB3 values.
const (
	actuatorStatusOn  = 0x70
	actuatorStatusOff = 0x50
)

// DecodeTelegram decodes a telegram under the given profile.
//
// A telegram whose ORG does not fit the profile fails with
// ErrProfileMismatch: the registry dispatches by address only, so listeners
// routinely see telegrams meant for a different profile sharing the same
// address and must treat this error as "ignore". A telegram with the right
// shape but an undecodable payload fails with ErrDecodeFailed.
//
// Note that encode(decode(t)) == t is NOT guaranteed: several profiles are
// lossy or asymmetric (M5-38-08 is receive-only, F6 release telegrams drop
// the button code).
func DecodeTelegram(p Profile, t Telegram) (DecodedTelegram, error) {
	switch p {
	case ProfileF6_02_01, ProfileF6_02_02:
		return decodeRocker(p, t)
	case ProfileM5_38_08:
		return decodeActuatorStatus(t)
	case ProfileA5_38_08:
		return decodeCentralCommand(t)
	case ProfileA5_04_02:
		return decodeClimate(t)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidProfile, p)
	}
}

func decodeRocker(p Profile, t Telegram) (DecodedTelegram, error) {
	if t.ORG != ORGRPS {
		return nil, fmt.Errorf("%w: %s needs RPS, got ORG %02X", ErrProfileMismatch, p, t.ORG)
	}
	db3 := t.Data[0]
	return RockerAction{
		profile:      p,
		Button:       RockerButton((db3 >> 5) & 0x03),
		Pressed:      db3&0x10 != 0,
		SecondButton: RockerButton((db3 >> 1) & 0x03),
		SecondValid:  db3&0x01 != 0,
	}, nil
}

func decodeActuatorStatus(t Telegram) (DecodedTelegram, error) {
	if t.ORG != ORGRPS {
		return nil, fmt.Errorf("%w: M5-38-08 needs RPS, got ORG %02X", ErrProfileMismatch, t.ORG)
	}
	switch t.Data[0] {
	case actuatorStatusOn:
		return ActuatorStatus{On: true}, nil
	case actuatorStatusOff:
		return ActuatorStatus{On: false}, nil
	default:
		return nil, fmt.Errorf("%w: M5-38-08 state byte %02X", ErrDecodeFailed, t.Data[0])
	}
}

func decodeCentralCommand(t Telegram) (DecodedTelegram, error) {
	if t.ORG != ORG4BS {
		return nil, fmt.Errorf("%w: A5-38-08 needs 4BS, got ORG %02X", ErrProfileMismatch, t.ORG)
	}
	if t.Data[3]&lrnDataBit == 0 {
		return nil, fmt.Errorf("%w: A5-38-08 teach-in telegram", ErrDecodeFailed)
	}
	if t.Data[0] != centralCommandSwitching {
		return nil, fmt.Errorf("%w: A5-38-08 command %02X not supported", ErrDecodeFailed, t.Data[0])
	}
	return CentralCommand{On: t.Data[3]&0x01 != 0}, nil
}

func decodeClimate(t Telegram) (DecodedTelegram, error) {
	if t.ORG != ORG4BS {
		return nil, fmt.Errorf("%w: A5-04-02 needs 4BS, got ORG %02X", ErrProfileMismatch, t.ORG)
	}
	if t.Data[3]&lrnDataBit == 0 {
		return nil, fmt.Errorf("%w: A5-04-02 teach-in telegram", ErrDecodeFailed)
	}
	if t.Data[1] > 250 || t.Data[2] > 250 {
		return nil, fmt.Errorf("%w: A5-04-02 reading out of range", ErrDecodeFailed)
	}
	return ClimateReading{
		Humidity:    float64(t.Data[1]) * 100.0 / 250.0,
		Temperature: -20.0 + float64(t.Data[2])*80.0/250.0,
	}, nil
}

// EncodeRockerPress builds the telegram for pressing a rocker button on
// behalf of the given sender id.
func EncodeRockerPress(sender DeviceID, button RockerButton) Telegram {
	db3 := byte(button)<<5 | 0x10
	return NewRPSTelegram(sender, db3, statusRPSPressed)
}

// EncodeRockerRelease builds the release telegram following a press.
// The button code is not carried on release; receivers pair it with the
// preceding press.
func EncodeRockerRelease(sender DeviceID) Telegram {
	return NewRPSTelegram(sender, 0x00, statusRPSReleased)
}

// EncodeCentralSwitching builds an A5-38-08 switching telegram.
func EncodeCentralSwitching(sender DeviceID, on bool) Telegram {
	db0 := byte(lrnDataBit)
	if on {
		db0 |= 0x01
	}
	return New4BSTelegram(sender, [4]byte{centralCommandSwitching, 0x00, 0x00, db0})
}

// TeachInTelegram builds the A5-38-08 teach-in telegram an actuator pairs
// a new sender id with. The fixed payload carries the EEP function and
// manufacturer fields with the LRN bit cleared.
func TeachInTelegram(sender DeviceID) Telegram {
	return New4BSTelegram(sender, [4]byte{0xE0, 0x40, 0x0D, 0x80})
}

// ButtonFor maps a discriminator and desired switch state to the rocker
// button that produces it. An empty discriminator behaves like "left",
// matching how single-channel senders are configured in actuators.
func ButtonFor(discriminator string, on bool) RockerButton {
	right := discriminator == "right"
	switch {
	case right && on:
		return ButtonRightTop
	case right && !on:
		return ButtonRightBottom
	case on:
		return ButtonLeftTop
	default:
		return ButtonLeftBottom
	}
}
