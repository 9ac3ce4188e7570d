package enocean

import (
	"bufio"
	"fmt"
	"io"
)

// ESP2 wire format constants.
//
// Every ESP2 frame is exactly 14 bytes:
//
//	Byte 0-1:  Sync (0xA5 0x5A)
//	Byte 2:    Header: H_SEQ (upper 3 bits) | length (lower 5 bits, always 11)
//	Byte 3:    ORG: telegram organisation (RPS, 1BS, 4BS)
//	Byte 4-7:  Data (DB3..DB0 for 4BS, DB3 only for RPS/1BS)
//	Byte 8-11: Sender device id (big-endian)
//	Byte 12:   Status (repeater count, T21/NU flags)
//	Byte 13:   Checksum: low byte of the sum of bytes 2-12
const (
	syncByte1 = 0xA5
	syncByte2 = 0x5A

	// frameLength is the total ESP2 frame size including sync bytes.
	frameLength = 14

	// headerLength is the value of the header length field: the 11 bytes
	// from ORG through status.
	headerLength = 0x0B

	// HeaderRRT marks a received radio telegram (H_SEQ 0).
	HeaderRRT byte = 0x0B

	// HeaderTRT marks a radio telegram to transmit (H_SEQ 3).
	HeaderTRT byte = 0x6B
)

// ORG values identify the telegram organisation, which governs how the
// four data bytes are laid out.
const (
	// ORGRPS is a repeated switch telegram (rocker buttons, window handles).
	ORGRPS byte = 0x05

	// ORG1BS is a one-byte sensor telegram.
	ORG1BS byte = 0x06

	// ORG4BS is a four-byte sensor or controller telegram.
	ORG4BS byte = 0x07
)

// Frame is one ESP2 frame as it appears on the wire, without sync bytes
// and checksum (both are handled by the codec).
type Frame struct {
	Header byte
	ORG    byte
	Data   [4]byte
	ID     DeviceID
	Status byte
}

// checksum computes the ESP2 additive checksum over the 11 payload bytes.
func (f Frame) checksum() byte {
	sum := int(f.Header) + int(f.ORG) + int(f.Status)
	for _, b := range f.Data {
		sum += int(b)
	}
	for _, b := range f.ID {
		sum += int(b)
	}
	return byte(sum & 0xFF)
}

// Encode serialises the frame to its 14-byte wire form, including sync
// bytes and checksum.
func (f Frame) Encode() []byte {
	buf := make([]byte, frameLength)
	buf[0] = syncByte1
	buf[1] = syncByte2
	buf[2] = f.Header
	buf[3] = f.ORG
	copy(buf[4:8], f.Data[:])
	copy(buf[8:12], f.ID[:])
	buf[12] = f.Status
	buf[13] = f.checksum()
	return buf
}

// ParseFrame parses a complete 14-byte wire frame including sync bytes.
// It validates sync, the header length field and the checksum.
func ParseFrame(data []byte) (Frame, error) {
	if len(data) != frameLength {
		return Frame{}, fmt.Errorf("%w: length %d, want %d", ErrInvalidFrame, len(data), frameLength)
	}
	if data[0] != syncByte1 || data[1] != syncByte2 {
		return Frame{}, fmt.Errorf("%w: bad sync %02X%02X", ErrInvalidFrame, data[0], data[1])
	}
	if data[2]&0x1F != headerLength {
		return Frame{}, fmt.Errorf("%w: header length %d, want %d", ErrInvalidFrame, data[2]&0x1F, headerLength)
	}

	f := Frame{
		Header: data[2],
		ORG:    data[3],
		Status: data[12],
	}
	copy(f.Data[:], data[4:8])
	copy(f.ID[:], data[8:12])

	if got, want := data[13], f.checksum(); got != want {
		return Frame{}, fmt.Errorf("%w: checksum %02X, want %02X", ErrInvalidFrame, got, want)
	}
	return f, nil
}

// FrameReader extracts ESP2 frames from a byte stream.
//
// The stream is scanned for the two sync bytes, so the reader resynchronises
// after noise or a partial frame: garbage between frames is discarded and
// only a frame with a valid checksum is returned. A checksum failure is
// reported as ErrInvalidFrame and the scan continues with the next call.
//
// Not safe for concurrent use; each transport owns exactly one reader.
type FrameReader struct {
	r *bufio.Reader
}

// NewFrameReader wraps a stream in a FrameReader.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: bufio.NewReaderSize(r, 4*frameLength)}
}

// Read blocks until a full frame is framed out of the stream.
//
// Returns ErrInvalidFrame (recoverable, call Read again) for a frame that
// fails validation after sync, or the underlying stream error (fatal) when
// the link breaks.
func (fr *FrameReader) Read() (Frame, error) {
	if err := fr.sync(); err != nil {
		return Frame{}, err
	}

	buf := make([]byte, frameLength)
	buf[0] = syncByte1
	buf[1] = syncByte2
	if _, err := io.ReadFull(fr.r, buf[2:]); err != nil {
		return Frame{}, fmt.Errorf("read frame body: %w", err)
	}
	return ParseFrame(buf)
}

// sync consumes the stream until both sync bytes have been seen.
func (fr *FrameReader) sync() error {
	for {
		b, err := fr.r.ReadByte()
		if err != nil {
			return fmt.Errorf("read sync: %w", err)
		}
		if b != syncByte1 {
			continue
		}
		next, err := fr.r.ReadByte()
		if err != nil {
			return fmt.Errorf("read sync: %w", err)
		}
		if next == syncByte2 {
			return nil
		}
		// 0xA5 0xA5 0x5A: the second 0xA5 may start a real sync pair.
		if next == syncByte1 {
			if err := fr.r.UnreadByte(); err != nil {
				return fmt.Errorf("read sync: %w", err)
			}
		}
	}
}
