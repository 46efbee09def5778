package mra

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/frozenspider/mail.ru-reader/model"
)

// Layout constants of the mra.dbs container, little-endian throughout.
const (
	// offsetTableLocOffset is where the u32 giving the offset table's base
	// byte offset lives.
	offsetTableLocOffset = 0x10
	// rootRecordSlot is the offset-table slot whose record carries the root
	// conversation id. This is a format constant, not a general rule.
	rootRecordSlot = 1
	// rootConversationOffset is where the root conversation id sits inside
	// the root record.
	rootConversationOffset = 0x2C
	// cursorOffset is where a record's conversation cursor LinkPair sits,
	// relative to the record's resolved offset.
	cursorOffset = 4
	// markerOffset is where the history marker sits, relative to the cursor.
	markerOffset = 0x190
	// messageRootOffset is where a conversation's message-root LinkPair
	// sits, relative to the cursor.
	messageRootOffset = 0x24

	messageHeaderSize = 56
	messageMagic      = 0x38

	// TypeSMS marks a message that originated as an SMS.
	TypeSMS = 0x11
)

// historyMarker is the literal "mrahistory_" encoded as UTF-16LE. Its
// presence at markerOffset distinguishes conversation records from
// unrelated records sharing the same id space.
var historyMarker = []byte{
	0x6D, 0x00, 0x72, 0x00, 0x61, 0x00, 0x68, 0x00, 0x69, 0x00, 0x73, 0x00,
	0x74, 0x00, 0x6F, 0x00, 0x72, 0x00, 0x79, 0x00, 0x5F, 0x00,
}

// MessageHeader is the fixed 56-byte layout at the start of every message
// record.
type MessageHeader struct {
	Size   uint32
	PrevID uint32
	NextID uint32
	// Filetime is a raw Windows FILETIME value, 100ns ticks since
	// 1601-01-01 UTC.
	Filetime uint64
	Type     uint32
	Incoming bool
	// NicknameLength is the author-name length in UTF-16 code units,
	// terminator included. It locates where the text begins.
	NicknameLength uint32
	Magic          uint32
	MessageLength  uint32
	// RTFSize is the byte size of an optional embedded rich-text blob,
	// which is not decoded here.
	RTFSize uint32
}

func readLinkPair(src *ByteSource, off uint32) (model.LinkPair, error) {
	b, err := src.Slice(off, 8)
	if err != nil {
		return model.LinkPair{}, err
	}
	return model.LinkPair{
		Forward:  binary.LittleEndian.Uint32(b[0:4]),
		Backward: binary.LittleEndian.Uint32(b[4:8]),
	}, nil
}

func readMessageHeader(src *ByteSource, off uint32) (MessageHeader, error) {
	b, err := src.Slice(off, messageHeaderSize)
	if err != nil {
		return MessageHeader{}, err
	}
	h := MessageHeader{
		Size:           binary.LittleEndian.Uint32(b[0:4]),
		PrevID:         binary.LittleEndian.Uint32(b[4:8]),
		NextID:         binary.LittleEndian.Uint32(b[8:12]),
		Filetime:       binary.LittleEndian.Uint64(b[16:24]),
		Type:           binary.LittleEndian.Uint32(b[24:28]),
		Incoming:       b[28] == 1,
		NicknameLength: binary.LittleEndian.Uint32(b[32:36]),
		Magic:          binary.LittleEndian.Uint32(b[36:40]),
		MessageLength:  binary.LittleEndian.Uint32(b[40:44]),
		RTFSize:        binary.LittleEndian.Uint32(b[48:52]),
	}
	if h.Magic != messageMagic {
		return MessageHeader{}, fmt.Errorf("record at 0x%x: magic 0x%x: %w", off, h.Magic, ErrBadMagic)
	}
	return h, nil
}

// filetimeEpochDiff is the number of 100ns ticks between the FILETIME epoch
// (1601-01-01) and the Unix epoch.
const filetimeEpochDiff = 116444736000000000

// FiletimeToTime converts a Windows FILETIME value to UTC time. A zero
// value maps to the zero time.
func FiletimeToTime(ft uint64) time.Time {
	if ft == 0 {
		return time.Time{}
	}
	return time.Unix(0, (int64(ft)-filetimeEpochDiff)*100).UTC()
}
