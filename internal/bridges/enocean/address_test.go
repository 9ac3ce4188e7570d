package enocean

import (
	"errors"
	"testing"
)

func TestParseDeviceID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    DeviceID
		wantErr bool
	}{
		{name: "uppercase", input: "FE-DB-0A-1B", want: DeviceID{0xFE, 0xDB, 0x0A, 0x1B}},
		{name: "lowercase", input: "fe-db-0a-1b", want: DeviceID{0xFE, 0xDB, 0x0A, 0x1B}},
		{name: "zeros", input: "00-00-00-05", want: DeviceID{0, 0, 0, 5}},
		{name: "surrounding whitespace", input: "  FF-AA-80-00 ", want: DeviceID{0xFF, 0xAA, 0x80, 0x00}},
		{name: "too few bytes", input: "FE-DB-0A", wantErr: true},
		{name: "too many bytes", input: "FE-DB-0A-1B-00", wantErr: true},
		{name: "not hex", input: "FE-DB-0A-ZZ", wantErr: true},
		{name: "single digit byte", input: "FE-DB-0A-1", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDeviceID(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseDeviceID(%q) error = nil, want error", tt.input)
				}
				if !errors.Is(err, ErrInvalidAddress) {
					t.Errorf("error = %v, want ErrInvalidAddress", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDeviceID(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseDeviceID(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestDeviceID_String(t *testing.T) {
	id := DeviceID{0xFE, 0xDB, 0x0A, 0x1B}
	if got := id.String(); got != "FE-DB-0A-1B" {
		t.Errorf("String() = %q, want FE-DB-0A-1B", got)
	}
}

func TestDeviceID_Uint32RoundTrip(t *testing.T) {
	id := DeviceID{0xFF, 0xAA, 0x80, 0x7F}
	if got := DeviceIDFromUint32(id.ToUint32()); got != id {
		t.Errorf("round trip = %v, want %v", got, id)
	}
	if got := id.ToUint32(); got != 0xFFAA807F {
		t.Errorf("ToUint32() = %08X, want FFAA807F", got)
	}
}

func TestDeviceID_InRangeOf(t *testing.T) {
	base := DeviceID{0xFF, 0xAA, 0x80, 0x00}

	tests := []struct {
		name string
		id   DeviceID
		want bool
	}{
		{name: "base itself", id: DeviceID{0xFF, 0xAA, 0x80, 0x00}, want: true},
		{name: "last in range", id: DeviceID{0xFF, 0xAA, 0x80, 0x7F}, want: true},
		{name: "one past range", id: DeviceID{0xFF, 0xAA, 0x80, 0x80}, want: false},
		{name: "below base", id: DeviceID{0xFF, 0xAA, 0x7F, 0xFF}, want: false},
		{name: "unrelated", id: DeviceID{0x00, 0x00, 0x00, 0x05}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.id.InRangeOf(base); got != tt.want {
				t.Errorf("%s.InRangeOf(%s) = %v, want %v", tt.id, base, got, tt.want)
			}
		})
	}
}

// TestDeviceID_InRangeOf_TopOfAddressSpace: a base near 0xFFFFFFFF must
// not wrap the window back to zero.
func TestDeviceID_InRangeOf_TopOfAddressSpace(t *testing.T) {
	base := DeviceID{0xFF, 0xFF, 0xFF, 0x80}

	tests := []struct {
		name string
		id   DeviceID
		want bool
	}{
		{name: "base itself", id: DeviceID{0xFF, 0xFF, 0xFF, 0x80}, want: true},
		{name: "top of address space", id: DeviceID{0xFF, 0xFF, 0xFF, 0xFF}, want: true},
		{name: "zero", id: DeviceID{0x00, 0x00, 0x00, 0x00}, want: false},
		{name: "below base", id: DeviceID{0xFF, 0xFF, 0xFF, 0x7F}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.id.InRangeOf(base); got != tt.want {
				t.Errorf("%s.InRangeOf(%s) = %v, want %v", tt.id, base, got, tt.want)
			}
		})
	}
}

func TestParseAddressExpression(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    AddressExpression
		wantErr bool
	}{
		{
			name:  "plain id",
			input: "FE-DB-0A-1B",
			want:  AddressExpression{ID: DeviceID{0xFE, 0xDB, 0x0A, 0x1B}},
		},
		{
			name:  "with discriminator",
			input: "FE-DB-0A-1B left",
			want:  AddressExpression{ID: DeviceID{0xFE, 0xDB, 0x0A, 0x1B}, Discriminator: "left"},
		},
		{
			name:  "discriminator lowercased",
			input: "FE-DB-0A-1B RIGHT",
			want:  AddressExpression{ID: DeviceID{0xFE, 0xDB, 0x0A, 0x1B}, Discriminator: "right"},
		},
		{name: "bad id", input: "nope left", wantErr: true},
		{name: "too many fields", input: "FE-DB-0A-1B left extra", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAddressExpression(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseAddressExpression(%q) error = nil, want error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAddressExpression(%q) error = %v", tt.input, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseAddressExpression(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestAddressExpression_String(t *testing.T) {
	plain := AddressExpression{ID: DeviceID{0xFE, 0xDB, 0x0A, 0x1B}}
	if got := plain.String(); got != "FE-DB-0A-1B" {
		t.Errorf("String() = %q, want FE-DB-0A-1B", got)
	}

	withDisc := AddressExpression{ID: DeviceID{0xFE, 0xDB, 0x0A, 0x1B}, Discriminator: "left"}
	if got := withDisc.String(); got != "FE-DB-0A-1B left" {
		t.Errorf("String() = %q, want \"FE-DB-0A-1B left\"", got)
	}
}

// TestAddressExpression_MatchesSource verifies matching is by id alone:
// a discriminator-bearing registration still sees every telegram for its
// id, since the wire carries no discriminator.
func TestAddressExpression_MatchesSource(t *testing.T) {
	id := DeviceID{0x00, 0x00, 0x00, 0x05}
	other := DeviceID{0x00, 0x00, 0x00, 0x06}

	tests := []struct {
		name   string
		expr   AddressExpression
		source DeviceID
		want   bool
	}{
		{name: "same id", expr: AddressExpression{ID: id}, source: id, want: true},
		{name: "different id", expr: AddressExpression{ID: id}, source: other, want: false},
		{name: "discriminator ignores id match", expr: AddressExpression{ID: id, Discriminator: "left"}, source: id, want: true},
		{name: "discriminator different id", expr: AddressExpression{ID: id, Discriminator: "right"}, source: other, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.expr.MatchesSource(tt.source); got != tt.want {
				t.Errorf("MatchesSource() = %v, want %v", got, tt.want)
			}
		})
	}
}
