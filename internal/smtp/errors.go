package smtp

import (
	"errors"
	"fmt"
)

// Kind categorises the failures that cross component boundaries in the
// gateway: Config, Parsing, SysIo, Tls, and the rest of the taxonomy below.
type Kind int

const (
	KindConfig Kind = iota
	KindMailParsing
	KindSmtp
	KindSysIO
	KindTLS
	KindDestination
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindMailParsing:
		return "mail_parsing"
	case KindSmtp:
		return "smtp"
	case KindSysIO:
		return "sys_io"
	case KindTLS:
		return "tls"
	case KindDestination:
		return "destination"
	default:
		return "unknown"
	}
}

// Error wraps an underlying error with a Kind so callers can branch on the
// failure category without parsing strings.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap attaches a Kind to an existing error.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// Sentinel errors used throughout the session/destination/connection layers.
var (
	ErrNoDataEnd       = errors.New("no DATA_END received")
	ErrDuplicateResult = errors.New("a mail was already received on this session")
	ErrNotDir          = errors.New("path is not a directory")
	ErrAlreadyExists   = errors.New("message-id already exists at destination")
	ErrNotImplemented  = errors.New("destination not implemented")
	ErrNoListener      = errors.New("no listener could be bound")
	ErrBadMailbox      = errors.New("invalid mailbox syntax")
	ErrLineTooLong     = errors.New("line exceeds the maximum accepted length")
)

// KindOf extracts the Kind of err if it (or something it wraps) is an *Error,
// defaulting to KindSmtp for untagged errors raised inside the protocol layer.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindSmtp
}
