package smtp

import (
	"net/mail"
	"strings"
)

// ParseMailbox parses the parameter of a MAIL FROM / RCPT TO command
// (e.g. "FROM:<user@example.com>" or "TO:<user@example.com> SIZE=123") and
// returns the bare "local@domain" mailbox string.
//
// Earlier address parsers in this lineage split the address into
// Name/Local/Domain fields; the gateway only ever needs the plain
// "local@domain" mailbox string, so the struct split is dropped and only
// the validation rules survive.
func ParseMailbox(param string) (string, error) {
	inner, ok := cutAngleOrBare(param)
	if !ok {
		return "", ErrBadMailbox
	}

	// Null reverse-path ("MAIL FROM:<>") is valid and means "no sender".
	if inner == "" {
		return "", nil
	}

	addr, err := mail.ParseAddress(inner)
	if err != nil {
		return "", ErrBadMailbox
	}

	if !validMailbox(addr.Address) {
		return "", ErrBadMailbox
	}

	return addr.Address, nil
}

// cutAngleOrBare extracts the mailbox portion of a MAIL/RCPT parameter,
// which may or may not be wrapped in angle brackets, and may carry
// trailing ESMTP parameters (SIZE=..., BODY=...) after a space.
func cutAngleOrBare(param string) (string, bool) {
	param = strings.TrimSpace(param)
	if param == "" {
		return "", false
	}

	// Drop the "FROM:" / "TO:" prefix if the caller passed the whole
	// verb argument rather than a pre-split value.
	if idx := strings.IndexByte(param, ':'); idx >= 0 {
		prefix := strings.ToUpper(param[:idx])
		if prefix == "FROM" || prefix == "TO" {
			param = strings.TrimSpace(param[idx+1:])
			if param == "" {
				return "", false
			}
		}
	}

	if strings.HasPrefix(param, "<") {
		end := strings.IndexByte(param, '>')
		if end < 0 {
			return "", false
		}
		return param[1:end], true
	}

	// Angle brackets omitted, accepted leniently: take everything up to
	// the first space (start of ESMTP params).
	if sp := strings.IndexByte(param, ' '); sp >= 0 {
		param = param[:sp]
	}
	return param, true
}

// validMailbox enforces the RFC 5321 §4.5.3.1 length limits on the
// local-part and domain.
func validMailbox(address string) bool {
	at := strings.LastIndexByte(address, '@')
	if at < 0 {
		return false
	}
	local, domain := address[:at], address[at+1:]
	if len(local) > 64 {
		return false
	}
	if len(domain) > 253 {
		return false
	}
	if len(local)+len(domain) > 254 {
		return false
	}
	return true
}
