package mra

import (
	"encoding/binary"
	"errors"
	"testing"
	"time"
)

func TestReadMessageHeader(t *testing.T) {
	rec := make([]byte, messageHeaderSize)
	binary.LittleEndian.PutUint32(rec[0:], 120)
	binary.LittleEndian.PutUint32(rec[4:], 7)
	binary.LittleEndian.PutUint32(rec[8:], 9)
	binary.LittleEndian.PutUint64(rec[16:], 116444736000000000)
	binary.LittleEndian.PutUint32(rec[24:], TypeSMS)
	rec[28] = 1
	binary.LittleEndian.PutUint32(rec[32:], 4)
	binary.LittleEndian.PutUint32(rec[36:], messageMagic)
	binary.LittleEndian.PutUint32(rec[40:], 2)
	binary.LittleEndian.PutUint32(rec[48:], 64)

	h, err := readMessageHeader(NewByteSource(rec), 0)
	if err != nil {
		t.Fatalf("readMessageHeader() error = %v", err)
	}

	if h.Size != 120 || h.PrevID != 7 || h.NextID != 9 {
		t.Errorf("links = (%d, %d, %d), want (120, 7, 9)", h.Size, h.PrevID, h.NextID)
	}
	if h.Type != TypeSMS {
		t.Errorf("type = 0x%x, want 0x%x", h.Type, TypeSMS)
	}
	if !h.Incoming {
		t.Error("incoming = false, want true")
	}
	if h.NicknameLength != 4 || h.MessageLength != 2 || h.RTFSize != 64 {
		t.Errorf("lengths = (%d, %d, %d), want (4, 2, 64)", h.NicknameLength, h.MessageLength, h.RTFSize)
	}
}

func TestReadMessageHeaderBadMagic(t *testing.T) {
	rec := make([]byte, messageHeaderSize)
	binary.LittleEndian.PutUint32(rec[36:], 0x1234)

	_, err := readMessageHeader(NewByteSource(rec), 0)
	if !errors.Is(err, ErrBadMagic) {
		t.Errorf("readMessageHeader() error = %v, want ErrBadMagic", err)
	}
}

func TestReadMessageHeaderTruncated(t *testing.T) {
	_, err := readMessageHeader(NewByteSource(make([]byte, messageHeaderSize-1)), 0)
	if !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("readMessageHeader() error = %v, want ErrOutOfBounds", err)
	}
}

func TestReadLinkPair(t *testing.T) {
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint32(buf[4:], 11)
	binary.LittleEndian.PutUint32(buf[8:], 22)

	pair, err := readLinkPair(NewByteSource(buf), 4)
	if err != nil {
		t.Fatalf("readLinkPair() error = %v", err)
	}
	if pair.Forward != 11 || pair.Backward != 22 {
		t.Errorf("readLinkPair() = %+v, want {11 22}", pair)
	}
}

func TestFiletimeToTime(t *testing.T) {
	tests := []struct {
		name string
		ft   uint64
		want time.Time
	}{
		{"zero stays zero", 0, time.Time{}},
		{"unix epoch", 116444736000000000, time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"with sub-second ticks", 116444736000000001, time.Date(1970, 1, 1, 0, 0, 0, 100, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FiletimeToTime(tt.ft)
			if !got.Equal(tt.want) {
				t.Errorf("FiletimeToTime(%d) = %v, want %v", tt.ft, got, tt.want)
			}
		})
	}
}
