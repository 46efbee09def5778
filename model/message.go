package model

import "time"

// LinkPair is a pair of 32-bit record links as stored in the archive.
// The directional meaning of the fields is reverse-engineered from observed
// traversal behavior: Backward chains conversation records together, and a
// conversation's message-root pair holds the id of its most recent message
// in Forward.
type LinkPair struct {
	Forward  uint32
	Backward uint32
}

// Conversation is one contact thread decoded from the archive.
type Conversation struct {
	// ID is the logical record id the conversation was resolved from.
	ID uint32
	// Name is the display name stored right after the history marker.
	Name string
	// MessageRoot links to the conversation's message chain; its Forward
	// field is the id of the newest message.
	MessageRoot LinkPair
}

// Message is a single decoded message. The decoder fills the archive
// fields; ID, Hash and Raw are filled by the pipeline producer for the
// export sinks.
type Message struct {
	ConversationID uint32
	Conversation   string
	// Seq is the position within the decoded chain, newest first.
	Seq      int
	Author   string
	Text     string
	SentAt   time.Time
	Type     uint32
	Incoming bool

	ID   string
	Hash string
	Raw  []byte
}

// Envelope wraps a message alongside an optional error encountered while
// decoding.
type Envelope struct {
	Message Message
	Err     error
}
