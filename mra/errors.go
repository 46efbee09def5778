package mra

import "errors"

// Decode errors. Every one of them is fatal for the whole run: the offset
// table and the linked chains have no redundancy or resynchronization
// points, so a single bad link invalidates everything reachable from it.
var (
	// ErrOutOfBounds reports an offset or span past the end of the file.
	ErrOutOfBounds = errors.New("offset out of bounds")
	// ErrInvalidID reports a zero id used where a real record id was
	// required. Id 0 is the list terminator sentinel and is never resolved.
	ErrInvalidID = errors.New("invalid record id")
	// ErrBadMagic reports a record resolved as a message whose magic field
	// does not carry the expected value.
	ErrBadMagic = errors.New("bad message header magic")
	// ErrMalformedString reports a string scan that ran past the file
	// bounds without finding its terminator.
	ErrMalformedString = errors.New("unterminated utf-16 string")
	// ErrLinkBudget reports a traversal that exceeded the configured link
	// budget, most likely a cyclic chain.
	ErrLinkBudget = errors.New("link traversal budget exceeded")
)
