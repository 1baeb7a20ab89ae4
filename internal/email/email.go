// Package email holds the data model for a fully received message and a
// pure library boundary for extracting the RFC 5322 Message-ID header
// from a raw DATA payload.
package email

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
)

// ErrMissingMessageID is returned when the header section parses but no
// Message-ID header is present.
var ErrMissingMessageID = errors.New("missing Message-ID header")

// ErrMalformedHeaders is returned when the DATA payload is empty, so there
// is no header section to scan.
var ErrMalformedHeaders = errors.New("could not parse RFC 5322 header section")

// Email is the parsed payload of one received message: a Message-ID
// extracted from its headers, and the raw DATA bytes it was extracted
// from (trailing CRLF preserved, dot-terminator line excluded).
type Email struct {
	MessageID string
	Raw       []byte
}

// SmtpEmail is one successfully received message: the envelope (From/To)
// plus its parsed content. Borrows the raw-bytes buffer of its
// surrounding connection handler; its lifetime must not outlive that
// handler's scope.
type SmtpEmail struct {
	From    string // "" if the envelope sender was the null reverse-path
	To      []string
	Content Email
}

// New builds an Email from raw DATA bytes: a pure function from bytes to
// (message_id | error). Fails the whole mail if the Message-ID header is
// absent.
func New(raw []byte) (Email, error) {
	id, err := ParseMessageID(raw)
	if err != nil {
		return Email{}, err
	}
	return Email{MessageID: id, Raw: raw}, nil
}

// ParseMessageID scans the RFC 5322 header section of raw (everything up
// to the first blank line) for a Message-ID header, unfolding
// continuation lines per RFC 5322 §2.2.3, and returns its value verbatim
// (including the "<...>" delimiters). It does not attempt a full MIME
// parse, only this header-section scan.
func ParseMessageID(raw []byte) (string, error) {
	headers, ok := splitHeaderSection(raw)
	if !ok {
		return "", ErrMalformedHeaders
	}

	for name, value := range iterHeaders(headers) {
		if strings.EqualFold(name, "Message-ID") {
			v := strings.TrimSpace(value)
			if v == "" {
				return "", ErrMissingMessageID
			}
			return v, nil
		}
	}
	return "", ErrMissingMessageID
}

// splitHeaderSection returns the byte range up to (excluding) the first
// blank line, which RFC 5322 §2.1 defines as the boundary between headers
// and body. Without a blank line, the whole of raw is taken as the header
// section; ok=false is returned only for empty input.
func splitHeaderSection(raw []byte) ([]byte, bool) {
	for _, sep := range [][]byte{[]byte("\r\n\r\n"), []byte("\n\n")} {
		if idx := bytes.Index(raw, sep); idx >= 0 {
			return raw[:idx+len(sep)/2], true
		}
	}
	// A message consisting of only a header section with no body and no
	// trailing blank line (unusual, but the terminator guarantees at
	// least one trailing CRLF) is still parseable.
	if len(raw) > 0 {
		return raw, true
	}
	return nil, false
}

// iterHeaders yields (name, value) pairs from a raw header block, joining
// folded continuation lines (leading whitespace) into the previous
// header's value, per RFC 5322 §2.2.3.
func iterHeaders(headers []byte) map[string]string {
	result := map[string]string{}
	scanner := bufio.NewScanner(bytes.NewReader(headers))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var curName, curValue string
	flush := func() {
		if curName != "" {
			if existing, ok := result[curName]; ok {
				result[curName] = existing + " " + curValue
			} else {
				result[curName] = curValue
			}
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if (line[0] == ' ' || line[0] == '\t') && curName != "" {
			curValue += " " + strings.TrimSpace(line)
			continue
		}
		flush()
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			curName = ""
			curValue = ""
			continue
		}
		curName = strings.TrimSpace(line[:idx])
		curValue = strings.TrimSpace(line[idx+1:])
	}
	flush()

	return result
}
