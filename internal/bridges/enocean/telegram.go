package enocean

import (
	"fmt"
	"time"
)

// Telegram is one decoded unit of bus traffic: an ESP2 radio telegram
// tagged with its sender id. Telegrams are immutable values; the codec
// creates them on receipt and they are never mutated afterwards.
type Telegram struct {
	// Source is the sender's device id.
	Source DeviceID

	// ORG identifies the telegram organisation (RPS, 1BS, 4BS).
	ORG byte

	// Data holds the four payload bytes (DB3..DB0).
	Data [4]byte

	// Status carries repeater count and RPS qualifier flags.
	Status byte

	// Timestamp records when the telegram was received or created.
	Timestamp time.Time
}

// TelegramFromFrame builds a Telegram from a received wire frame.
func TelegramFromFrame(f Frame) Telegram {
	return Telegram{
		Source:    f.ID,
		ORG:       f.ORG,
		Data:      f.Data,
		Status:    f.Status,
		Timestamp: time.Now(),
	}
}

// Frame converts the telegram to a transmit frame (header TRT).
func (t Telegram) Frame() Frame {
	return Frame{
		Header: HeaderTRT,
		ORG:    t.ORG,
		Data:   t.Data,
		ID:     t.Source,
		Status: t.Status,
	}
}

// String returns a human-readable representation for logs.
func (t Telegram) String() string {
	org := "?"
	switch t.ORG {
	case ORGRPS:
		org = "RPS"
	case ORG1BS:
		org = "1BS"
	case ORG4BS:
		org = "4BS"
	}
	return fmt.Sprintf("Telegram{From:%s, ORG:%s, Data:%X, Status:%02X}", t.Source, org, t.Data, t.Status)
}

// RPS status byte values for transmitted rocker telegrams.
const (
	// statusRPSPressed marks a T2-1 telegram with the NU (pressed) flag.
	statusRPSPressed byte = 0x30

	// statusRPSReleased marks a T2-1 telegram with the U (released) flag.
	statusRPSReleased byte = 0x20
)

// NewRPSTelegram creates an RPS telegram ready for transmit.
func NewRPSTelegram(sender DeviceID, db3, status byte) Telegram {
	return Telegram{
		Source:    sender,
		ORG:       ORGRPS,
		Data:      [4]byte{db3, 0, 0, 0},
		Status:    status,
		Timestamp: time.Now(),
	}
}

// New4BSTelegram creates a 4BS telegram ready for transmit.
func New4BSTelegram(sender DeviceID, data [4]byte) Telegram {
	return Telegram{
		Source:    sender,
		ORG:       ORG4BS,
		Data:      data,
		Timestamp: time.Now(),
	}
}
