package mra

import (
	"encoding/binary"
	"fmt"
)

// ByteSource is an immutable, bounds-checked view over the loaded archive
// bytes. All decoder components read through it; an access past the end of
// the buffer is reported as ErrOutOfBounds, never a panic.
type ByteSource struct {
	data []byte
}

// NewByteSource takes ownership of data. The caller must not modify the
// slice afterwards.
func NewByteSource(data []byte) *ByteSource {
	return &ByteSource{data: data}
}

func (s *ByteSource) Len() int {
	return len(s.data)
}

// Slice returns n bytes starting at off. The returned slice aliases the
// underlying buffer and must not be modified.
func (s *ByteSource) Slice(off, n uint32) ([]byte, error) {
	end := uint64(off) + uint64(n)
	if end > uint64(len(s.data)) {
		return nil, fmt.Errorf("read [0x%x, 0x%x) beyond file length 0x%x: %w", off, end, len(s.data), ErrOutOfBounds)
	}
	return s.data[off:end], nil
}

// Uint32 reads a little-endian u32 at off.
func (s *ByteSource) Uint32(off uint32) (uint32, error) {
	b, err := s.Slice(off, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// Uint64 reads a little-endian u64 at off.
func (s *ByteSource) Uint64(off uint32) (uint64, error) {
	b, err := s.Slice(off, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}
