package mra

import (
	"errors"
	"math"
	"testing"
)

func TestByteSourceReads(t *testing.T) {
	src := NewByteSource([]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08})

	v32, err := src.Uint32(0)
	if err != nil {
		t.Fatalf("Uint32(0) error = %v", err)
	}
	if v32 != 0x04030201 {
		t.Errorf("Uint32(0) = 0x%08x, want 0x04030201", v32)
	}

	v64, err := src.Uint64(0)
	if err != nil {
		t.Fatalf("Uint64(0) error = %v", err)
	}
	if v64 != 0x0807060504030201 {
		t.Errorf("Uint64(0) = 0x%016x, want 0x0807060504030201", v64)
	}

	// A slice ending exactly at the buffer end is fine.
	b, err := src.Slice(4, 4)
	if err != nil {
		t.Fatalf("Slice(4, 4) error = %v", err)
	}
	if len(b) != 4 || b[0] != 0x05 {
		t.Errorf("Slice(4, 4) = %v", b)
	}
}

func TestByteSourceOutOfBounds(t *testing.T) {
	src := NewByteSource(make([]byte, 8))

	tests := []struct {
		name string
		err  error
	}{
		{"u32 straddling the end", func() error { _, err := src.Uint32(6); return err }()},
		{"u64 past the end", func() error { _, err := src.Uint64(8); return err }()},
		{"slice past the end", func() error { _, err := src.Slice(4, 5); return err }()},
		{"offset near uint32 max", func() error { _, err := src.Slice(math.MaxUint32, 8); return err }()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, ErrOutOfBounds) {
				t.Errorf("error = %v, want ErrOutOfBounds", tt.err)
			}
		})
	}
}

func TestOffsetTableResolve(t *testing.T) {
	ta := newTestArchive()
	off := ta.addRecord(1, rootRecord(0))
	data := ta.bytes()

	src := NewByteSource(data)
	table, err := NewOffsetTable(src)
	if err != nil {
		t.Fatalf("NewOffsetTable() error = %v", err)
	}

	got, err := table.Resolve(1)
	if err != nil {
		t.Fatalf("Resolve(1) error = %v", err)
	}
	if got != off {
		t.Errorf("Resolve(1) = 0x%x, want 0x%x", got, off)
	}

	if _, err := table.Resolve(0); !errors.Is(err, ErrInvalidID) {
		t.Errorf("Resolve(0) error = %v, want ErrInvalidID", err)
	}

	// An id whose table slot lies past the end of the file.
	if _, err := table.Resolve(1 << 20); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("Resolve(1<<20) error = %v, want ErrOutOfBounds", err)
	}
}
