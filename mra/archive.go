// Package mra decodes the proprietary mra.dbs message-history container
// written by Mail.ru Agent. The format is a single binary blob: an
// id-to-offset indirection table located via a fixed header field, a
// linked list of conversation records identified by a fixed UTF-16LE
// marker, and per conversation a linked chain of fixed-layout message
// records carrying UTF-16LE author and text strings.
//
// The decoder is strictly read-only and fails the whole run on the first
// structural error: the chains have no resynchronization points, so
// nothing reachable past a corrupt link can be trusted.
package mra

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"

	"github.com/frozenspider/mail.ru-reader/filter"
	"github.com/frozenspider/mail.ru-reader/model"
)

// Options configures an Archive.
type Options struct {
	// Logger receives decode tracing (offsets, ids, decisions) at debug
	// level. Nil disables tracing; correctness never depends on it.
	Logger *slog.Logger
	// LinkBudget caps the number of link hops per traversal as a safety
	// net against cyclic chains. Zero disables the cap, matching the
	// format's unverified assumption that chains are finite.
	LinkBudget int
}

// Archive is a decoded view over one mra.dbs file. It holds the immutable
// file bytes and the offset table; traversals are performed on demand.
type Archive struct {
	src    *ByteSource
	table  *OffsetTable
	logger *slog.Logger
	budget int
}

// Open reads the file at path into memory and prepares it for decoding.
func Open(path string, opts Options) (*Archive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	return OpenBytes(data, opts)
}

// OpenBytes creates an Archive over the provided buffer. The buffer must
// not be modified for the lifetime of the Archive.
func OpenBytes(data []byte, opts Options) (*Archive, error) {
	src := NewByteSource(data)
	table, err := NewOffsetTable(src)
	if err != nil {
		return nil, err
	}
	a := &Archive{
		src:    src,
		table:  table,
		logger: opts.Logger,
		budget: opts.LinkBudget,
	}
	a.trace("offset table located", "base", fmt.Sprintf("0x%08x", table.Base()))
	return a, nil
}

func (a *Archive) trace(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Debug(msg, args...)
	}
}

// Conversations walks the conversation list from its root and returns
// every record carrying the history marker, in traversal order. Records
// without the marker share the id space with conversations but belong to
// other subsystems; they are skipped without breaking the walk.
func (a *Archive) Conversations() ([]model.Conversation, error) {
	rootOff, err := a.table.Resolve(rootRecordSlot)
	if err != nil {
		return nil, fmt.Errorf("root record: %w", err)
	}
	id, err := a.src.Uint32(rootOff + rootConversationOffset)
	if err != nil {
		return nil, fmt.Errorf("root conversation id: %w", err)
	}
	a.trace("conversation walk starting", "rootID", id)

	var conversations []model.Conversation
	for hops := 0; id != 0; hops++ {
		if a.budget > 0 && hops >= a.budget {
			return nil, fmt.Errorf("conversation chain at id %d after %d hops: %w", id, hops, ErrLinkBudget)
		}

		off, err := a.table.Resolve(id)
		if err != nil {
			return nil, err
		}
		cursorAddr := off + cursorOffset
		cursor, err := readLinkPair(a.src, cursorAddr)
		if err != nil {
			return nil, fmt.Errorf("conversation cursor of record %d: %w", id, err)
		}

		if a.hasMarker(cursorAddr + markerOffset) {
			nameOff := cursorAddr + markerOffset + uint32(len(historyMarker))
			name, err := decodeStringZ(a.src, nameOff)
			if err != nil {
				return nil, fmt.Errorf("conversation name of record %d: %w", id, err)
			}
			root, err := readLinkPair(a.src, cursorAddr+messageRootOffset)
			if err != nil {
				return nil, fmt.Errorf("message root of record %d: %w", id, err)
			}
			a.trace("conversation record", "id", id, "offset", fmt.Sprintf("0x%08x", off), "name", name)
			conversations = append(conversations, model.Conversation{
				ID:          id,
				Name:        name,
				MessageRoot: root,
			})
		} else {
			a.trace("record skipped, no history marker", "id", id, "offset", fmt.Sprintf("0x%08x", off))
		}

		id = cursor.Backward
	}

	return conversations, nil
}

// hasMarker reports whether the 22-byte history marker sits at off. A probe
// that would run past the file is treated as marker-absent: unrelated
// records sharing the id space may simply be shorter than a conversation
// record.
func (a *Archive) hasMarker(off uint32) bool {
	b, err := a.src.Slice(off, uint32(len(historyMarker)))
	return err == nil && bytes.Equal(b, historyMarker)
}

// Messages walks the message chain of conv, newest first: the root points
// at the most recent message and each header links to the chronologically
// previous one.
func (a *Archive) Messages(conv model.Conversation) ([]model.Message, error) {
	var msgs []model.Message

	id := conv.MessageRoot.Forward
	for hops := 0; id != 0; hops++ {
		if a.budget > 0 && hops >= a.budget {
			return nil, fmt.Errorf("message chain of conversation %d at id %d after %d hops: %w", conv.ID, id, hops, ErrLinkBudget)
		}

		off, err := a.table.Resolve(id)
		if err != nil {
			return nil, err
		}
		header, err := readMessageHeader(a.src, off)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", id, err)
		}

		authorOff := off + messageHeaderSize
		author, err := decodeStringZ(a.src, authorOff)
		if err != nil {
			return nil, fmt.Errorf("author of message %d: %w", id, err)
		}

		// NicknameLength counts UTF-16 code units, terminator included.
		// Computed in 64 bits so a huge length cannot wrap the offset.
		text64 := uint64(authorOff) + 2*uint64(header.NicknameLength)
		if text64 >= uint64(a.src.Len()) {
			return nil, fmt.Errorf("text of message %d at 0x%x: %w", id, text64, ErrOutOfBounds)
		}
		textOff := uint32(text64)
		if header.Type == TypeSMS {
			unit, err := a.src.Slice(textOff, 2)
			if err != nil {
				return nil, fmt.Errorf("text of message %d: %w", id, ErrMalformedString)
			}
			// Known producer quirk for SMS records, apparently never
			// triggered by real data. See the format notes in DESIGN.md.
			if unit[0] == 0 && unit[1] == 0 {
				textOff += 6
			}
		}
		text, err := decodeStringZ(a.src, textOff)
		if err != nil {
			return nil, fmt.Errorf("text of message %d: %w", id, err)
		}

		a.trace("message record", "id", id, "offset", fmt.Sprintf("0x%08x", off), "author", author)
		msgs = append(msgs, model.Message{
			ConversationID: conv.ID,
			Conversation:   conv.Name,
			Seq:            len(msgs),
			Author:         author,
			Text:           text,
			SentAt:         FiletimeToTime(header.Filetime),
			Type:           header.Type,
			Incoming:       header.Incoming,
		})

		id = header.PrevID
	}

	return msgs, nil
}

// CountMessages decodes the whole archive and returns the total message
// count across all conversations.
func (a *Archive) CountMessages() (int, error) {
	return a.CountExportable(nil)
}

// CountExportable counts the messages that pass f, mirroring what the
// export pipeline will emit. A nil filter counts everything.
func (a *Archive) CountExportable(f *filter.Filter) (int, error) {
	conversations, err := a.Conversations()
	if err != nil {
		return 0, err
	}
	total := 0
	for _, conv := range conversations {
		if f != nil && !f.AllowsConversation(conv.Name) {
			continue
		}
		msgs, err := a.Messages(conv)
		if err != nil {
			return 0, err
		}
		if f == nil {
			total += len(msgs)
			continue
		}
		for _, msg := range msgs {
			if f.AllowsMessage(msg.Author, msg.Text) {
				total++
			}
		}
	}
	return total, nil
}
