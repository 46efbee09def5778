package mra

import (
	"errors"
	"testing"
)

func TestDecodeStringZRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"ascii", "hello"},
		{"empty", ""},
		{"cyrillic", "Привет, мир"},
		{"surrogate pair", "beyond the BMP: 𝄞"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Lead with padding so the scan starts mid-buffer.
			buf := append(make([]byte, 6), utf16z(tt.text)...)
			got, err := decodeStringZ(NewByteSource(buf), 6)
			if err != nil {
				t.Fatalf("decodeStringZ() error = %v", err)
			}
			if got != tt.text {
				t.Errorf("decodeStringZ() = %q, want %q", got, tt.text)
			}
		})
	}
}

func TestDecodeStringZUnterminated(t *testing.T) {
	// No null code unit anywhere before the end of the buffer.
	buf := []byte{'a', 0x00, 'b', 0x00, 'c', 0x00}
	_, err := decodeStringZ(NewByteSource(buf), 0)
	if !errors.Is(err, ErrMalformedString) {
		t.Errorf("decodeStringZ() error = %v, want ErrMalformedString", err)
	}
}

func TestDecodeStringZOddRemainder(t *testing.T) {
	// A single trailing byte cannot hold a code unit; the scan must stop.
	buf := []byte{'a', 0x00, 'b'}
	_, err := decodeStringZ(NewByteSource(buf), 0)
	if !errors.Is(err, ErrMalformedString) {
		t.Errorf("decodeStringZ() error = %v, want ErrMalformedString", err)
	}
}
