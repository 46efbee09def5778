package mra

import "fmt"

// OffsetTable resolves logical record ids to byte offsets. The table's
// base is located via the u32 at file offset 0x10; entries are 4 bytes
// each, indexed by id. The format does not bound the table's logical
// extent, so entries are read lazily through the ByteSource and every
// access is bounds-checked individually instead of materializing the
// table up front.
type OffsetTable struct {
	src  *ByteSource
	base uint32
}

func NewOffsetTable(src *ByteSource) (*OffsetTable, error) {
	base, err := src.Uint32(offsetTableLocOffset)
	if err != nil {
		return nil, fmt.Errorf("offset table base: %w", err)
	}
	return &OffsetTable{src: src, base: base}, nil
}

// Base returns the table's base byte offset within the file.
func (t *OffsetTable) Base() uint32 {
	return t.base
}

// Resolve maps a record id to its byte offset. Id 0 is the list terminator
// sentinel; callers must treat it as "no further link" rather than resolve
// it. An entry pointing outside the file fails with ErrOutOfBounds.
func (t *OffsetTable) Resolve(id uint32) (uint32, error) {
	if id == 0 {
		return 0, fmt.Errorf("resolve id 0: %w", ErrInvalidID)
	}

	// Computed in 64 bits so a huge id cannot wrap the entry address.
	entry := uint64(t.base) + 4*uint64(id)
	if entry+4 > uint64(t.src.Len()) {
		return 0, fmt.Errorf("offset table entry for id %d at 0x%x: %w", id, entry, ErrOutOfBounds)
	}

	off, err := t.src.Uint32(uint32(entry))
	if err != nil {
		return 0, fmt.Errorf("offset table entry for id %d: %w", id, err)
	}
	if uint64(off) >= uint64(t.src.Len()) {
		return 0, fmt.Errorf("record %d resolves to 0x%x beyond file length 0x%x: %w", id, off, t.src.Len(), ErrOutOfBounds)
	}
	return off, nil
}
