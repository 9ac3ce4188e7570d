package enocean

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// deviceIDLength is the fixed width of an EnOcean device id in bytes.
const deviceIDLength = 4

// baseIDRange is the number of sender ids a transceiver can emit on behalf
// of entities: base id through base id + 127.
const baseIDRange = 128

// DeviceID is a 4-byte EnOcean device identifier.
//
// Text form: "AA-BB-CC-DD" (uppercase hex, dash separated), matching the
// notation used in transceiver documentation and configuration files.
type DeviceID [deviceIDLength]byte

// ParseDeviceID parses a device id in "AA-BB-CC-DD" form.
// Lowercase hex digits are accepted.
func ParseDeviceID(s string) (DeviceID, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != deviceIDLength {
		return DeviceID{}, fmt.Errorf("%w: expected 4 dash-separated bytes, got %q", ErrInvalidAddress, s)
	}

	var id DeviceID
	for i, p := range parts {
		var b byte
		if _, err := fmt.Sscanf(strings.ToUpper(p), "%02X", &b); err != nil || len(p) != 2 {
			return DeviceID{}, fmt.Errorf("%w: byte %d of %q is not two hex digits", ErrInvalidAddress, i, s)
		}
		id[i] = b
	}
	return id, nil
}

// String returns the id in "AA-BB-CC-DD" form.
func (id DeviceID) String() string {
	return fmt.Sprintf("%02X-%02X-%02X-%02X", id[0], id[1], id[2], id[3])
}

// ToUint32 converts the id to its big-endian integer value.
func (id DeviceID) ToUint32() uint32 {
	return binary.BigEndian.Uint32(id[:])
}

// DeviceIDFromUint32 creates a DeviceID from a big-endian integer value.
func DeviceIDFromUint32(v uint32) DeviceID {
	var id DeviceID
	binary.BigEndian.PutUint32(id[:], v)
	return id
}

// InRangeOf reports whether the id lies within the sender range of the
// given base id (base id through base id + 127). Transceivers reject
// outbound telegrams whose sender field is outside this window.
func (id DeviceID) InRangeOf(baseID DeviceID) bool {
	// Widened so base ids near the top of the address space do not wrap.
	base := uint64(baseID.ToUint32())
	v := uint64(id.ToUint32())
	return v >= base && v < base+baseIDRange
}

// AddressExpression is a device id plus an optional discriminator.
//
// The discriminator distinguishes multiple logical devices sharing one
// physical address, such as the "left" and "right" halves of a dual rocker
// switch. An empty discriminator acts as a wildcard: a registration without
// one matches any discriminator for that id.
//
// Text forms: "FE-DB-0A-1B" and "FE-DB-0A-1B left".
type AddressExpression struct {
	ID            DeviceID
	Discriminator string
}

// ParseAddressExpression parses an address expression string.
func ParseAddressExpression(s string) (AddressExpression, error) {
	fields := strings.Fields(s)
	switch len(fields) {
	case 1:
		id, err := ParseDeviceID(fields[0])
		if err != nil {
			return AddressExpression{}, err
		}
		return AddressExpression{ID: id}, nil
	case 2:
		id, err := ParseDeviceID(fields[0])
		if err != nil {
			return AddressExpression{}, err
		}
		return AddressExpression{ID: id, Discriminator: strings.ToLower(fields[1])}, nil
	default:
		return AddressExpression{}, fmt.Errorf("%w: expected \"id\" or \"id discriminator\", got %q", ErrInvalidAddress, s)
	}
}

// String returns the expression in its text form.
func (a AddressExpression) String() string {
	if a.Discriminator == "" {
		return a.ID.String()
	}
	return a.ID.String() + " " + a.Discriminator
}

// Equal reports whether two expressions have the same id and discriminator.
func (a AddressExpression) Equal(other AddressExpression) bool {
	return a.ID == other.ID && a.Discriminator == other.Discriminator
}

// MatchesSource reports whether a telegram from the given source id is of
// interest to this expression. Telegrams carry only the plain device id;
// the discriminator is recovered from the decoded payload, so matching at
// dispatch time is by id alone. A discriminator-bearing registration still
// receives every telegram for its id and filters on the decoded side itself.
func (a AddressExpression) MatchesSource(source DeviceID) bool {
	return a.ID == source
}
