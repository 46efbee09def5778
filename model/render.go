package model

import (
	"fmt"
	"mime"
	"strings"
)

// RFC822 renders the message as a minimal RFC 5322 document so the mbox and
// IMAP sinks can carry it. The archive stores no addresses, only display
// names, so synthetic addresses under mra.invalid are generated from them.
func (m Message) RFC822() []byte {
	var b strings.Builder

	writeHeader := func(name, value string) {
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString("\r\n")
	}

	writeHeader("From", formatAddress(m.Author))
	writeHeader("To", formatAddress(m.Conversation))
	writeHeader("Subject", mime.QEncoding.Encode("utf-8", m.Conversation))
	if !m.SentAt.IsZero() {
		writeHeader("Date", m.SentAt.Format("Mon, 02 Jan 2006 15:04:05 -0700"))
	}
	if m.ID != "" {
		writeHeader("Message-ID", "<"+m.ID+">")
	}
	writeHeader("X-MRA-Type", fmt.Sprintf("0x%02x", m.Type))
	if m.Incoming {
		writeHeader("X-MRA-Direction", "incoming")
	} else {
		writeHeader("X-MRA-Direction", "outgoing")
	}
	writeHeader("MIME-Version", "1.0")
	writeHeader("Content-Type", "text/plain; charset=utf-8")
	writeHeader("Content-Transfer-Encoding", "8bit")
	b.WriteString("\r\n")

	text := strings.ReplaceAll(m.Text, "\r\n", "\n")
	for _, line := range strings.Split(text, "\n") {
		b.WriteString(line)
		b.WriteString("\r\n")
	}

	return []byte(b.String())
}

func formatAddress(name string) string {
	return fmt.Sprintf("%s <%s@mra.invalid>", mime.QEncoding.Encode("utf-8", name), addressSlug(name))
}

// addressSlug reduces a display name to a safe local part.
func addressSlug(name string) string {
	var sb strings.Builder
	lastDot := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastDot = false
		default:
			if !lastDot {
				sb.WriteByte('.')
				lastDot = true
			}
		}
	}
	slug := strings.Trim(sb.String(), ".")
	if slug == "" {
		return "unknown"
	}
	return slug
}
