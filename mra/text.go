package mra

import (
	"fmt"

	"golang.org/x/text/encoding/unicode"
)

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// decodeStringZ scans a null-terminated UTF-16LE string starting at off and
// returns it as UTF-8. The scan advances two bytes at a time and never
// reads past the source; running off the end of the file without finding a
// terminator is a malformed string, not a silent truncation.
func decodeStringZ(src *ByteSource, off uint32) (string, error) {
	end := off
	for {
		b, err := src.Slice(end, 2)
		if err != nil {
			return "", fmt.Errorf("string at 0x%x: %w", off, ErrMalformedString)
		}
		if b[0] == 0 && b[1] == 0 {
			break
		}
		end += 2
	}

	span, err := src.Slice(off, end-off)
	if err != nil {
		return "", err
	}
	decoded, err := utf16le.NewDecoder().Bytes(span)
	if err != nil {
		return "", fmt.Errorf("string at 0x%x: %w", off, ErrMalformedString)
	}
	return string(decoded), nil
}
